package recipe

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"recipe-synthesizer/internal/pkg/common"

	"go.uber.org/zap"
)

// ErrMalformedResponse 模型輸出中找不到任何可解析的結構
var ErrMalformedResponse = errors.New("malformed response")

// 嘗試解析的起點上限，避免長篇散文拖慢解析
const maxPayloadStarts = 256

var (
	recipeListKeys  = []string{"recipes", "recipe_suggestions", "suggestions", "results", "items", "data", "recipe"}
	nameKeys        = []string{"name", "title", "recipe_name", "dish_name", "dish"}
	ingredientsKeys = []string{"ingredients", "ingredient_list", "ingredients_list"}
	stepsKeys       = []string{"steps", "instructions", "directions", "method", "preparation"}
	cookTimeKeys    = []string{
		"cook_time_minutes", "estimated_cook_time", "estimated_cook_time_minutes",
		"cooking_time_minutes", "cooking_time", "cook_time", "total_time_minutes", "total_time",
		"time", "duration",
	}
	difficultyKeys = []string{"difficulty", "difficulty_level", "level"}
	warningsKeys   = []string{"warnings"}

	ingredientNameKeys = []string{"name", "ingredient", "ingredient_name", "item"}
	quantityKeys       = []string{"quantity", "amount", "qty"}
	unitKeys           = []string{"unit", "units", "measure", "measurement"}
	stepTextKeys       = []string{"instruction", "text", "description", "action", "step"}
)

var (
	quantityPrefixPattern = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?\s*-\s*\d+(?:\.\d+)?|\d+\s+\d+/\d+|\d+/\d+|\d+(?:\.\d+)?|\.\d+)\s*(.*)$`)
	stepNumberPattern     = regexp.MustCompile(`(?i)^(?:step\s*)?\d+\s*[.):]\s+`)
	isoDurationPattern    = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)
	timeRangePattern      = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:-|\x{2013}|to)\s*(\d+(?:\.\d+)?)`)
	timePartPattern       = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(hours?|hrs?|h|minutes?|mins?|m|seconds?|secs?|s)\b`)
	bareNumberPattern     = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

var knownUnits = map[string]bool{
	"cup": true, "cups": true, "tbsp": true, "tsp": true, "tablespoon": true, "tablespoons": true,
	"teaspoon": true, "teaspoons": true, "g": true, "gram": true, "grams": true, "kg": true,
	"ml": true, "l": true, "liter": true, "liters": true, "litre": true, "litres": true,
	"oz": true, "ounce": true, "ounces": true, "lb": true, "lbs": true, "pound": true, "pounds": true,
	"clove": true, "cloves": true, "slice": true, "slices": true, "piece": true, "pieces": true,
	"pinch": true, "can": true, "cans": true, "bunch": true, "handful": true, "stalk": true, "stalks": true,
}

var difficultySynonyms = map[string]Difficulty{
	"EASY": DifficultyEasy, "SIMPLE": DifficultyEasy, "BEGINNER": DifficultyEasy, "LOW": DifficultyEasy,
	"MEDIUM": DifficultyMedium, "MODERATE": DifficultyMedium, "INTERMEDIATE": DifficultyMedium, "AVERAGE": DifficultyMedium,
	"HARD": DifficultyHard, "DIFFICULT": DifficultyHard, "ADVANCED": DifficultyHard, "CHALLENGING": DifficultyHard, "HIGH": DifficultyHard,
}

// ParseResponse 從模型輸出中找出食譜清單並轉成候選食譜。
// 無法解析的單一項目會被丟棄；完全找不到結構時回傳 ErrMalformedResponse
func ParseResponse(raw string) ([]Candidate, error) {
	text := common.StripCodeFence(raw)
	entries, ok := locatePayload(text)
	if !ok && text != strings.TrimSpace(raw) {
		entries, ok = locatePayload(raw)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no recipe structure found", ErrMalformedResponse)
	}

	candidates := make([]Candidate, 0, len(entries))
	for i, entry := range entries {
		c, err := toCandidate(entry)
		if err != nil {
			common.LogDebug("丟棄無法解析的食譜項目", zap.Int("index", i), zap.Error(err))
			continue
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// locatePayload 依序從每個 { 或 [ 嘗試：完整解碼、修復後解碼、截斷陣列搶救
func locatePayload(text string) ([]interface{}, bool) {
	starts := 0
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		if starts++; starts > maxPayloadStarts {
			break
		}

		variants := []string{text[i:], repairJSON(text[i:])}
		for _, s := range variants {
			if v, ok := decodeFirst(s); ok {
				if entries, ok := entriesOf(v, 0); ok {
					return entries, true
				}
			}
		}
		for _, s := range variants {
			if entries := salvage(s); len(entries) > 0 {
				return entries, true
			}
		}
	}
	return nil, false
}

func repairJSON(s string) string {
	return common.RemoveTrailingCommas(common.QuoteJSONKeys(s))
}

// decodeFirst 解碼第一個 JSON 值，忽略其後的文字
func decodeFirst(s string) (interface{}, bool) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// entriesOf 辨識可接受的外形：{"recipes":[...]}、{"recipes":{"recipe_1":...}}、純陣列、單一食譜物件
func entriesOf(v interface{}, depth int) ([]interface{}, bool) {
	if depth > 2 {
		return nil, false
	}
	switch t := v.(type) {
	case []interface{}:
		if len(t) == 0 || containsObject(t) {
			return t, true
		}
	case map[string]interface{}:
		f := normalizeFields(t)
		if list, ok := f.first(recipeListKeys...); ok {
			switch l := list.(type) {
			case nil:
				return []interface{}{}, true
			case []interface{}:
				return l, true
			case map[string]interface{}:
				if looksLikeRecipe(l) {
					return []interface{}{l}, true
				}
				if nested, ok := entriesOf(l, depth+1); ok {
					return nested, true
				}
				return orderedValues(l), true
			}
			return nil, false
		}
		if looksLikeRecipe(t) {
			return []interface{}{t}, true
		}
	}
	return nil, false
}

func containsObject(list []interface{}) bool {
	for _, e := range list {
		if _, ok := e.(map[string]interface{}); ok {
			return true
		}
	}
	return false
}

func looksLikeRecipe(m map[string]interface{}) bool {
	f := normalizeFields(m)
	if _, ok := f.first(nameKeys...); !ok {
		return false
	}
	_, hasIngredients := f.first(ingredientsKeys...)
	_, hasSteps := f.first(stepsKeys...)
	return hasIngredients || hasSteps
}

// orderedValues 依鍵名自然排序取出物件值（recipe_2 排在 recipe_10 之前）
func orderedValues(m map[string]interface{}) []interface{} {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if _, ok := v.(map[string]interface{}); ok {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return naturalLess(keys[i], keys[j]) })

	out := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func naturalLess(a, b string) bool {
	pa, na := splitNumericSuffix(a)
	pb, nb := splitNumericSuffix(b)
	if pa != pb {
		return pa < pb
	}
	if na != nb {
		return na < nb
	}
	return a < b
}

func splitNumericSuffix(s string) (string, int) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	n, err := strconv.Atoi(s[i:])
	if err != nil {
		return s, -1
	}
	return s[:i], n
}

// salvage 逐一讀取被截斷陣列中完整的元素
func salvage(s string) []interface{} {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	switch tok {
	case json.Delim('['):
		return streamElements(dec, false)
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil
			}
			key, _ := keyTok.(string)
			if containsKey(recipeListKeys, fieldKey(key)) {
				open, err := dec.Token()
				if err != nil {
					return nil
				}
				switch open {
				case json.Delim('['):
					return streamElements(dec, false)
				case json.Delim('{'):
					return streamElements(dec, true)
				}
				return nil
			}
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil
			}
		}
	}
	return nil
}

func streamElements(dec *json.Decoder, keyed bool) []interface{} {
	var out []interface{}
	for dec.More() {
		if keyed {
			if _, err := dec.Token(); err != nil {
				break
			}
		}
		var v interface{}
		if err := dec.Decode(&v); err != nil {
			break
		}
		if _, ok := v.(map[string]interface{}); ok {
			out = append(out, v)
		}
	}
	return out
}

// fields 以正規化鍵名索引的物件
type fields map[string]interface{}

func fieldKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(k)
}

func normalizeFields(m map[string]interface{}) fields {
	f := make(fields, len(m))
	for k, v := range m {
		f[fieldKey(k)] = v
	}
	return f
}

func (f fields) first(keys ...string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := f[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// text 取第一個出現的字串欄位，缺漏時為空字串
func (f fields) text(keys ...string) (string, error) {
	v, ok := f.first(keys...)
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", v)
	}
	return strings.TrimSpace(s), nil
}

func containsKey(keys []string, k string) bool {
	for _, key := range keys {
		if key == k {
			return true
		}
	}
	return false
}

func toCandidate(v interface{}) (Candidate, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return Candidate{}, fmt.Errorf("entry is %T, not an object", v)
	}
	f := normalizeFields(m)

	var c Candidate
	var err error
	if c.Name, err = f.text(nameKeys...); err != nil {
		return Candidate{}, fmt.Errorf("name: %w", err)
	}

	rawIngredients, _ := f.first(ingredientsKeys...)
	if c.Ingredients, err = coerceIngredients(rawIngredients); err != nil {
		return Candidate{}, fmt.Errorf("ingredients: %w", err)
	}

	rawSteps, _ := f.first(stepsKeys...)
	if c.Steps, err = coerceSteps(rawSteps); err != nil {
		return Candidate{}, fmt.Errorf("steps: %w", err)
	}

	rawTime, _ := f.first(cookTimeKeys...)
	if c.EstimatedCookTime, err = coerceCookTime(rawTime); err != nil {
		return Candidate{}, fmt.Errorf("cook time: %w", err)
	}

	rawDifficulty, _ := f.first(difficultyKeys...)
	if c.Difficulty, err = coerceDifficulty(rawDifficulty); err != nil {
		return Candidate{}, fmt.Errorf("difficulty: %w", err)
	}

	rawWarnings, _ := f.first(warningsKeys...)
	c.Warnings = coerceStrings(rawWarnings)
	return c, nil
}

func coerceIngredients(v interface{}) ([]Ingredient, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		out := make([]Ingredient, 0, len(t))
		for i, e := range t {
			ing, err := coerceIngredient(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out = append(out, ing)
		}
		return out, nil
	case map[string]interface{}:
		// {"rice": "2 cups"} 形式，依名稱排序
		names := make([]string, 0, len(t))
		for k := range t {
			names = append(names, k)
		}
		sort.Strings(names)
		out := make([]Ingredient, 0, len(t))
		for _, name := range names {
			ing := Ingredient{Name: strings.TrimSpace(name)}
			switch val := t[name].(type) {
			case map[string]interface{}:
				detail := normalizeFields(val)
				unit, err := detail.text(unitKeys...)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				rawQty, _ := detail.first(quantityKeys...)
				q, qtyUnit, err := coerceQuantity(rawQty)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				if unit == "" {
					unit = qtyUnit
				}
				ing.Quantity, ing.Unit = q, unit
			default:
				q, unit, err := coerceQuantity(val)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				ing.Quantity, ing.Unit = q, unit
			}
			if ing.Name == "" {
				return nil, errors.New("empty ingredient name")
			}
			out = append(out, ing)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected %T", v)
}

func coerceIngredient(v interface{}) (Ingredient, error) {
	switch t := v.(type) {
	case string:
		return ingredientFromString(t)
	case map[string]interface{}:
		f := normalizeFields(t)
		name, err := f.text(ingredientNameKeys...)
		if err != nil {
			return Ingredient{}, err
		}
		unit, err := f.text(unitKeys...)
		if err != nil {
			return Ingredient{}, err
		}
		rawQty, _ := f.first(quantityKeys...)
		q, qtyUnit, err := coerceQuantity(rawQty)
		if err != nil {
			return Ingredient{}, err
		}
		if unit == "" {
			unit = qtyUnit
		}
		if name == "" {
			return Ingredient{}, errors.New("ingredient without name")
		}
		return Ingredient{Name: name, Quantity: q, Unit: unit}, nil
	}
	return Ingredient{}, fmt.Errorf("unexpected ingredient %T", v)
}

// ingredientFromString 解析 "2 cups of rice"、"1 1/2 tbsp olive oil"、"salt" 這類寫法
func ingredientFromString(s string) (Ingredient, error) {
	s = strings.TrimSpace(strings.TrimLeft(s, "-*• "))
	if s == "" {
		return Ingredient{}, errors.New("empty ingredient")
	}
	q, rest, ok := parseQuantityPrefix(s)
	if !ok {
		return Ingredient{Name: s}, nil
	}

	words := strings.Fields(rest)
	unit := ""
	if len(words) > 1 && knownUnits[strings.ToLower(strings.TrimSuffix(words[0], "."))] {
		unit, words = words[0], words[1:]
		if len(words) > 1 && strings.EqualFold(words[0], "of") {
			words = words[1:]
		}
	}
	name := strings.Join(words, " ")
	if name == "" {
		return Ingredient{}, fmt.Errorf("no ingredient name in %q", s)
	}
	return Ingredient{Name: name, Quantity: q, Unit: unit}, nil
}

// coerceQuantity 數字直接採用；字串取前導數量，其餘文字當作單位
func coerceQuantity(v interface{}) (float64, string, error) {
	switch t := v.(type) {
	case nil:
		return 0, "", nil
	case json.Number:
		f, err := t.Float64()
		return f, "", err
	case float64:
		return t, "", nil
	case string:
		s := strings.TrimSpace(t)
		if q, rest, ok := parseQuantityPrefix(s); ok {
			return q, strings.TrimSpace(rest), nil
		}
		return 0, s, nil
	}
	return 0, "", fmt.Errorf("unexpected quantity %T", v)
}

func parseQuantityPrefix(s string) (float64, string, bool) {
	m := quantityPrefixPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	q, ok := evalQuantity(m[1])
	if !ok {
		return 0, "", false
	}
	return q, m[2], true
}

// evalQuantity 支援 "2"、"0.5"、"1/2"、"1 1/2"，範圍 "2-3" 取上限
func evalQuantity(tok string) (float64, bool) {
	tok = strings.TrimSpace(tok)
	if i := strings.IndexByte(tok, '-'); i != -1 {
		return evalQuantity(tok[i+1:])
	}
	if parts := strings.Fields(tok); len(parts) == 2 {
		whole, ok1 := evalQuantity(parts[0])
		frac, ok2 := evalQuantity(parts[1])
		return whole + frac, ok1 && ok2
	}
	if num, den, ok := strings.Cut(tok, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	f, err := strconv.ParseFloat(tok, 64)
	return f, err == nil
}

func coerceSteps(v interface{}) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		var out []string
		for _, line := range strings.Split(t, "\n") {
			if step := cleanStep(line); step != "" {
				out = append(out, step)
			}
		}
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for i, e := range t {
			var raw string
			switch s := e.(type) {
			case string:
				raw = s
			case map[string]interface{}:
				f := normalizeFields(s)
				for _, k := range stepTextKeys {
					if str, ok := f[k].(string); ok {
						raw = str
						break
					}
				}
			default:
				return nil, fmt.Errorf("[%d]: unexpected %T", i, e)
			}
			if step := cleanStep(raw); step != "" {
				out = append(out, step)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected %T", v)
}

func cleanStep(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimLeft(s, "-*•"))
	return strings.TrimSpace(stepNumberPattern.ReplaceAllString(s, ""))
}

// coerceCookTime 數字視為分鐘；字串支援 "45 min"、"1 hour 30 minutes"、"1h30m"、"PT40M"、"30-40 minutes"（取上限）。
// 一律無條件進位到整分鐘
func coerceCookTime(v interface{}) (time.Duration, error) {
	switch t := v.(type) {
	case nil:
		return 0, nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return minutes(f)
	case float64:
		return minutes(t)
	case string:
		return parseCookTime(t)
	}
	return 0, fmt.Errorf("unexpected %T", v)
}

func parseCookTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	if m := isoDurationPattern.FindStringSubmatch(strings.ToUpper(s)); m != nil && m[1]+m[2]+m[3] != "" {
		h, _ := strconv.ParseFloat(orZero(m[1]), 64)
		mi, _ := strconv.ParseFloat(orZero(m[2]), 64)
		sec, _ := strconv.ParseFloat(orZero(m[3]), 64)
		return minutes(h*60 + mi + sec/60)
	}

	lower := strings.ToLower(s)
	if d, err := time.ParseDuration(strings.ReplaceAll(lower, " ", "")); err == nil {
		return minutes(d.Minutes())
	}

	lower = timeRangePattern.ReplaceAllString(lower, "$2")
	parts := timePartPattern.FindAllStringSubmatch(lower, -1)
	if len(parts) == 0 {
		n := bareNumberPattern.FindString(lower)
		if n == "" {
			return 0, fmt.Errorf("no duration in %q", s)
		}
		f, _ := strconv.ParseFloat(n, 64)
		return minutes(f)
	}

	total := 0.0
	for _, p := range parts {
		n, _ := strconv.ParseFloat(p[1], 64)
		switch p[2][0] {
		case 'h':
			total += n * 60
		case 's':
			total += n / 60
		default:
			total += n
		}
	}
	return minutes(total)
}

func orZero(s string) string {
	if s == "" {
		return "0"
	}
	return s
}

// maxCookMinutes time.Duration 能表示的最大整分鐘數
const maxCookMinutes = math.MaxInt64 / int64(time.Minute)

var errCookTimeRange = errors.New("cook time out of range")

func minutes(f float64) (time.Duration, error) {
	if f <= 0 || math.IsNaN(f) {
		return 0, nil
	}
	m := math.Ceil(f)
	if m > float64(maxCookMinutes) {
		return 0, fmt.Errorf("%w: %v minutes", errCookTimeRange, f)
	}
	return time.Duration(m) * time.Minute, nil
}

func coerceDifficulty(v interface{}) (Difficulty, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		words := strings.Fields(strings.ToUpper(t))
		if len(words) == 0 {
			return "", nil
		}
		key := strings.Trim(words[0], ".,;:!()")
		if d, ok := difficultySynonyms[key]; ok {
			return d, nil
		}
		return Difficulty(strings.ToUpper(strings.TrimSpace(t))), nil
	}
	return "", fmt.Errorf("unexpected %T", v)
}

func coerceStrings(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, e := range list {
		if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
