package recipe

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"recipe-synthesizer/internal/pkg/common"
)

// FailureReason 驗證失敗的類別
type FailureReason string

const (
	ReasonStructure FailureReason = "structure"
	ReasonDisliked  FailureReason = "disliked"
)

// ValidationFailure 候選食譜被排除的原因
type ValidationFailure struct {
	Reason FailureReason
	Detail string
}

func (f *ValidationFailure) Error() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

func structureFailure(format string, args ...interface{}) *ValidationFailure {
	return &ValidationFailure{Reason: ReasonStructure, Detail: fmt.Sprintf(format, args...)}
}

// Validator 依使用者的不喜歡清單與手邊食材檢查候選食譜。
// 建立後唯讀，可在多個 goroutine 間共用
type Validator struct {
	disliked  []namedPhrase
	known     []namedPhrase
	available map[string]AvailableIngredient
}

type namedPhrase struct {
	name       string
	normalized string
	words      phrase
	disliked   bool
}

// NewValidator 創建驗證器
func NewValidator(req GenerationRequest) *Validator {
	v := &Validator{available: make(map[string]AvailableIngredient, len(req.Available))}

	seen := make(map[string]bool)
	seenDisliked := make(map[string]bool)
	addKnown := func(name string, disliked bool) {
		np := namedPhrase{
			name:       strings.TrimSpace(name),
			normalized: common.NormalizeName(name),
			words:      tokenize(name),
			disliked:   disliked,
		}
		if np.normalized == "" {
			return
		}
		// 沒有字母或數字的名稱（例如 emoji）只能以完整名稱比對
		if disliked && !seenDisliked[np.normalized] {
			seenDisliked[np.normalized] = true
			v.disliked = append(v.disliked, np)
		}
		key := np.words.String()
		if len(np.words) == 0 || seen[key] {
			return
		}
		seen[key] = true
		v.known = append(v.known, np)
	}

	// 不喜歡的先登錄，同名時以不喜歡為準
	for _, name := range req.Disliked {
		addKnown(name, true)
	}
	for _, name := range req.Liked {
		addKnown(name, false)
	}
	for _, ing := range req.Available {
		addKnown(ing.Name, false)
		v.available[tokenize(ing.Name).String()] = ing
	}
	return v
}

// Validate 依序檢查結構完整性、偏好相容性，最後附上一致性警告。
// 前兩項失敗直接排除，一致性問題只產生警告
func (v *Validator) Validate(c Candidate) (Recipe, error) {
	if err := checkStructure(c); err != nil {
		return Recipe{}, err
	}

	listed := make([]phrase, len(c.Ingredients))
	for i, ing := range c.Ingredients {
		listed[i] = tokenize(ing.Name)
		normalized := common.NormalizeName(ing.Name)
		for _, d := range v.disliked {
			if d.normalized == normalized || d.words.within(listed[i]) {
				return Recipe{}, &ValidationFailure{
					Reason: ReasonDisliked,
					Detail: fmt.Sprintf("ingredient %q matches disliked %q", ing.Name, d.name),
				}
			}
		}
	}

	r := Recipe{
		Name:              c.Name,
		Ingredients:       append([]Ingredient(nil), c.Ingredients...),
		Steps:             append([]string(nil), c.Steps...),
		EstimatedCookTime: c.EstimatedCookTime,
		Difficulty:        c.Difficulty,
		Warnings:          v.coherenceWarnings(c, listed),
	}
	return r, nil
}

// Validate 只依不喜歡清單檢查單一候選食譜
func Validate(c Candidate, disliked []string) (Recipe, error) {
	return NewValidator(GenerationRequest{Disliked: disliked}).Validate(c)
}

func checkStructure(c Candidate) error {
	if strings.TrimSpace(c.Name) == "" {
		return structureFailure("name is empty")
	}
	if len(c.Ingredients) == 0 {
		return structureFailure("no ingredients")
	}
	for i, ing := range c.Ingredients {
		if strings.TrimSpace(ing.Name) == "" {
			return structureFailure("ingredient %d has no name", i)
		}
		if ing.Quantity < 0 || math.IsNaN(ing.Quantity) || math.IsInf(ing.Quantity, 0) {
			return structureFailure("ingredient %q has invalid quantity %v", ing.Name, ing.Quantity)
		}
	}
	if len(c.Steps) == 0 {
		return structureFailure("no steps")
	}
	for i, step := range c.Steps {
		if strings.TrimSpace(step) == "" {
			return structureFailure("step %d is empty", i+1)
		}
	}
	if c.EstimatedCookTime <= 0 {
		return structureFailure("cook time must be positive")
	}
	if !c.Difficulty.Valid() {
		return structureFailure("unknown difficulty %q", c.Difficulty)
	}
	return nil
}

// coherenceWarnings 步驟與食材清單的交叉比對，盡力而為
func (v *Validator) coherenceWarnings(c Candidate, listed []phrase) []string {
	steps := make([]phrase, len(c.Steps))
	for i, s := range c.Steps {
		steps[i] = tokenize(s)
	}

	var warnings []string
	for _, k := range v.known {
		if k.words.overlapsAny(listed) {
			continue
		}
		for i, step := range steps {
			if !k.words.within(step) {
				continue
			}
			if k.disliked {
				warnings = append(warnings, fmt.Sprintf("step %d mentions disliked ingredient %q", i+1, k.name))
			} else {
				warnings = append(warnings, fmt.Sprintf("step %d mentions %q which is not in the ingredient list", i+1, k.name))
			}
			break
		}
	}

	for i, ing := range c.Ingredients {
		if len(listed[i]) == 0 {
			continue
		}
		head := phrase{listed[i][len(listed[i])-1]}
		used := false
		for _, step := range steps {
			if head.within(step) {
				used = true
				break
			}
		}
		if !used {
			warnings = append(warnings, fmt.Sprintf("ingredient %q is not mentioned in any step", ing.Name))
		}

		av, ok := v.available[listed[i].String()]
		if ok && tokenize(av.Unit).String() == tokenize(ing.Unit).String() && ing.Quantity > av.Quantity {
			warnings = append(warnings, fmt.Sprintf("ingredient %q uses %s %s but only %s %s is available",
				ing.Name, formatQuantity(ing.Quantity), ing.Unit, formatQuantity(av.Quantity), av.Unit))
		}
	}
	return warnings
}

// phrase 經過小寫化與簡易單複數還原的字詞序列
type phrase []string

func tokenize(s string) phrase {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		words[i] = stem(w)
	}
	return words
}

// stem 只處理常見的英文複數：berries→berry、tomatoes→tomato、onions→onion
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "oes"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

func (p phrase) String() string {
	return strings.Join(p, " ")
}

// within 判斷 p 是否以完整字詞連續出現在 text 中
func (p phrase) within(text phrase) bool {
	if len(p) == 0 || len(p) > len(text) {
		return false
	}
outer:
	for i := 0; i+len(p) <= len(text); i++ {
		for j := range p {
			if text[i+j] != p[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

func (p phrase) overlapsAny(list []phrase) bool {
	for _, other := range list {
		if p.within(other) || other.within(p) {
			return true
		}
	}
	return false
}
