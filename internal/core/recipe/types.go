package recipe

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Difficulty 難度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "EASY"
	DifficultyMedium Difficulty = "MEDIUM"
	DifficultyHard   Difficulty = "HARD"
)

// Valid 是否為可辨識的難度
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Ingredient 食材與用量
type Ingredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Recipe 通過驗證的食譜
type Recipe struct {
	Name              string
	Ingredients       []Ingredient
	Steps             []string
	EstimatedCookTime time.Duration
	Difficulty        Difficulty
	Warnings          []string
}

// Candidate 模型產生、尚未驗證的食譜，欄位與 Recipe 相同
type Candidate Recipe

// recipeJSON 食譜的 JSON 形式，烹調時間以整數分鐘表示
type recipeJSON struct {
	Name            string       `json:"name"`
	Ingredients     []Ingredient `json:"ingredients"`
	Steps           []string     `json:"steps"`
	CookTimeMinutes int64        `json:"cook_time_minutes"`
	Difficulty      Difficulty   `json:"difficulty"`
	Warnings        []string     `json:"warnings,omitempty"`
}

func (r Recipe) MarshalJSON() ([]byte, error) {
	return json.Marshal(recipeJSON{
		Name:            r.Name,
		Ingredients:     r.Ingredients,
		Steps:           r.Steps,
		CookTimeMinutes: int64(r.EstimatedCookTime / time.Minute),
		Difficulty:      r.Difficulty,
		Warnings:        r.Warnings,
	})
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	return Recipe(c).MarshalJSON()
}

// MarshalRecipes 以 {"recipes":[...]} 格式序列化，ParseResponse 可以無損讀回
func MarshalRecipes(recipes []Recipe) ([]byte, error) {
	return json.Marshal(struct {
		Recipes []Recipe `json:"recipes"`
	}{Recipes: recipes})
}

// AvailableIngredient 使用者手邊的食材
type AvailableIngredient struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// GenerationRequest 組 prompt 所需的輸入，Liked / Disliked 已正規化並排序
type GenerationRequest struct {
	Available []AvailableIngredient
	Liked     []string
	Disliked  []string
}

// SynthesisRequest 對外的合成請求
type SynthesisRequest struct {
	UserID               string                `json:"user_id"`
	AvailableIngredients []AvailableIngredient `json:"available_ingredients"`
}

// Validate 檢查請求欄位
func (r SynthesisRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	if len(r.AvailableIngredients) == 0 {
		return fmt.Errorf("available_ingredients must not be empty")
	}
	for i, ing := range r.AvailableIngredients {
		if strings.TrimSpace(ing.Name) == "" {
			return fmt.Errorf("available_ingredients[%d]: name is required", i)
		}
		if ing.Quantity <= 0 {
			return fmt.Errorf("available_ingredients[%d]: quantity must be positive", i)
		}
	}
	return nil
}

// SynthesisResult 合成結果；Partial 表示嘗試次數用盡但仍有部分食譜
type SynthesisResult struct {
	Recipes  []Recipe `json:"recipes"`
	Attempts int      `json:"attempts"`
	Partial  bool     `json:"partial"`
}
