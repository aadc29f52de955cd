package recipe

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"recipe-synthesizer/internal/core/ai/service"
)

const systemPrompt = "You are a meticulous recipe generator. " +
	"You only answer with a single JSON object and never add commentary."

const outputShape = `{"recipes":[{"name":"Recipe name","ingredients":[{"name":"ingredient","quantity":1,"unit":"cup"}],"steps":["First step","Second step"],"cook_time_minutes":30,"difficulty":"EASY"}]}`

// 重試時依序附加的變化提示，不改變任何限制條件
var attemptVariations = []string{
	"Previous suggestions were not usable. Propose different dishes than the most obvious choices.",
	"Favor a different cooking technique for each recipe (for example roasting, stir-frying, simmering, baking).",
	"Draw on a different cuisine for each recipe while keeping every rule above.",
}

const (
	temperatureStep = 0.1
	maxTemperature  = 1.0
)

// PromptBuilder 把生成請求轉成 prompt，相同輸入與嘗試次數必得相同輸出
type PromptBuilder struct {
	MaxRecipes      int
	BaseTemperature float64
}

// NewPromptBuilder 創建 prompt 產生器
func NewPromptBuilder(maxRecipes int, baseTemperature float64) PromptBuilder {
	if maxRecipes <= 0 {
		maxRecipes = 5
	}
	return PromptBuilder{MaxRecipes: maxRecipes, BaseTemperature: baseTemperature}
}

// Build 組出第 attempt 次（從 1 開始）的 prompt
func (b PromptBuilder) Build(req GenerationRequest, attempt int) service.Prompt {
	if attempt < 1 {
		attempt = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate up to %d distinct structured recipes.\n\n", b.MaxRecipes)

	sb.WriteString("Available ingredients (name: quantity unit):\n")
	for _, ing := range req.Available {
		fmt.Fprintf(&sb, "- %s: %s", strings.TrimSpace(ing.Name), formatQuantity(ing.Quantity))
		if u := strings.TrimSpace(ing.Unit); u != "" {
			sb.WriteString(" " + u)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nLiked ingredients (favor these when possible):\n")
	writeNameList(&sb, req.Liked)

	sb.WriteString("\nDisliked ingredients (never use these, not even as garnish or an optional topping):\n")
	writeNameList(&sb, req.Disliked)

	sb.WriteString("\nRules:\n")
	rules := []string{
		"Build each recipe mainly from the available ingredients and do not exceed the available quantities.",
		"Never include a disliked ingredient in the ingredients list or in any step.",
		"List every ingredient mentioned in the steps in the ingredients list with a numeric quantity and a unit.",
		"Give the steps in order, one instruction per entry.",
		"cook_time_minutes is a positive whole number of minutes.",
		"difficulty is exactly one of EASY, MEDIUM or HARD.",
		"Every recipe name is unique.",
	}
	for i, r := range rules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}

	if attempt > 1 {
		fmt.Fprintf(&sb, "\nAttempt %d. %s\n", attempt, attemptVariations[(attempt-2)%len(attemptVariations)])
	}

	sb.WriteString("\nRespond with only a JSON object in exactly this shape:\n")
	sb.WriteString(outputShape)

	return service.Prompt{
		System:      systemPrompt,
		User:        sb.String(),
		Temperature: b.temperature(attempt),
		Attempt:     attempt,
	}
}

// temperature 每次重試調高一級，上限 1.0，四捨五入到小數兩位
func (b PromptBuilder) temperature(attempt int) float64 {
	t := b.BaseTemperature + temperatureStep*float64(attempt-1)
	if t > maxTemperature {
		t = maxTemperature
	}
	return math.Round(t*100) / 100
}

func writeNameList(sb *strings.Builder, names []string) {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	if len(sorted) == 0 {
		sb.WriteString("- (none)\n")
		return
	}
	for _, n := range sorted {
		sb.WriteString("- " + n + "\n")
	}
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}
