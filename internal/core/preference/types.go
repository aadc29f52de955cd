package preference

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"recipe-synthesizer/internal/pkg/common"
)

// Sentiment 食材好惡
type Sentiment string

const (
	Like    Sentiment = "LIKE"
	Dislike Sentiment = "DISLIKE"
)

// ParseSentiment 不分大小寫解析好惡
func ParseSentiment(s string) (Sentiment, error) {
	switch Sentiment(strings.ToUpper(strings.TrimSpace(s))) {
	case Like:
		return Like, nil
	case Dislike:
		return Dislike, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSentiment, s)
}

// Record 單筆偏好紀錄
type Record struct {
	UserID     string    `json:"user_id"`
	Ingredient string    `json:"ingredient"`
	Sentiment  Sentiment `json:"sentiment"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Summary 依好惡分組後的食材名稱
type Summary struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
}

// Item 批次寫入的單筆輸入
type Item struct {
	Ingredient string    `json:"ingredient"`
	Sentiment  Sentiment `json:"sentiment"`
}

// Outcome 批次寫入單筆結果
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeConflict  Outcome = "conflict"
)

// ItemResult 批次寫入的單筆結果
type ItemResult struct {
	Ingredient string    `json:"ingredient"`
	Sentiment  Sentiment `json:"sentiment"`
	Outcome    Outcome   `json:"outcome"`
	Existing   Sentiment `json:"existing,omitempty"`
}

var (
	ErrInvalidSentiment   = errors.New("invalid sentiment")
	ErrEmptyIngredient    = errors.New("ingredient name is empty")
	ErrEmptyUserID        = errors.New("user id is empty")
	ErrContradictoryBatch = errors.New("batch holds both sentiments for one ingredient")
)

// ConflictError 與既有紀錄相反的寫入
type ConflictError struct {
	UserID     string
	Ingredient string
	Existing   Sentiment
	Requested  Sentiment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("preference conflict for user %s: %q is already %s, cannot set %s",
		e.UserID, e.Ingredient, e.Existing, e.Requested)
}

// NormalizeIngredient 正規化食材名稱，"Red  Onion" 與 "red onion" 視為相同
func NormalizeIngredient(name string) string {
	return common.NormalizeName(name)
}
