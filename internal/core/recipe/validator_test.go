package recipe

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validCandidate() Candidate {
	return Candidate{
		Name: "Chicken Rice Bowl",
		Ingredients: []Ingredient{
			{Name: "rice", Quantity: 1, Unit: "cup"},
			{Name: "chicken", Quantity: 200, Unit: "g"},
			{Name: "lime", Quantity: 1},
		},
		Steps: []string{
			"Cook the rice.",
			"Grill the chicken and slice it.",
			"Serve over rice with a squeeze of lime.",
		},
		EstimatedCookTime: 30 * time.Minute,
		Difficulty:        DifficultyEasy,
	}
}

func failureReason(t *testing.T, err error) FailureReason {
	t.Helper()
	var vf *ValidationFailure
	if !errors.As(err, &vf) {
		t.Fatalf("expected *ValidationFailure, got %v", err)
	}
	return vf.Reason
}

func TestValidateAcceptsCompleteCandidate(t *testing.T) {
	c := validCandidate()
	r, err := Validate(c, []string{"cilantro"})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if r.Name != c.Name || len(r.Ingredients) != 3 || len(r.Steps) != 3 {
		t.Fatalf("unexpected recipe: %+v", r)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}

	r.Ingredients[0].Name = "changed"
	if c.Ingredients[0].Name != "rice" {
		t.Fatalf("recipe shares ingredient storage with the candidate")
	}
}

func TestValidateStructure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Candidate)
	}{
		{"empty name", func(c *Candidate) { c.Name = "  " }},
		{"no ingredients", func(c *Candidate) { c.Ingredients = nil }},
		{"nameless ingredient", func(c *Candidate) { c.Ingredients[1].Name = "" }},
		{"negative quantity", func(c *Candidate) { c.Ingredients[0].Quantity = -1 }},
		{"no steps", func(c *Candidate) { c.Steps = []string{} }},
		{"blank step", func(c *Candidate) { c.Steps[1] = " " }},
		{"zero cook time", func(c *Candidate) { c.EstimatedCookTime = 0 }},
		{"unknown difficulty", func(c *Candidate) { c.Difficulty = "EXTREME" }},
		{"missing difficulty", func(c *Candidate) { c.Difficulty = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			_, err := Validate(c, nil)
			if got := failureReason(t, err); got != ReasonStructure {
				t.Fatalf("reason = %q, want structure", got)
			}
		})
	}
}

func TestValidateStructureCheckedBeforePreferences(t *testing.T) {
	c := validCandidate()
	c.Ingredients = append(c.Ingredients, Ingredient{Name: "cilantro", Quantity: 1, Unit: "bunch"})
	c.Difficulty = ""
	_, err := Validate(c, []string{"cilantro"})
	if got := failureReason(t, err); got != ReasonStructure {
		t.Fatalf("reason = %q, want structure first", got)
	}
}

func TestValidateRejectsDisliked(t *testing.T) {
	tests := []struct {
		ingredient string
		disliked   string
	}{
		{"cilantro", "cilantro"},
		{"Cilantro", "cilantro"},
		{"  fresh   CILANTRO leaves ", "cilantro"},
		{"cherry tomatoes", "tomato"},
		{"berries", "berry"},
		{"green onions", "green onion"},
		{"red onion", "Red Onion"},
		{"🌶️", "🌶️"},
		{" & ", "&"},
	}
	for _, tt := range tests {
		t.Run(tt.ingredient, func(t *testing.T) {
			c := validCandidate()
			c.Ingredients = append(c.Ingredients, Ingredient{Name: tt.ingredient, Quantity: 1, Unit: "cup"})
			_, err := Validate(c, []string{tt.disliked})
			if got := failureReason(t, err); got != ReasonDisliked {
				t.Fatalf("reason = %q, want disliked", got)
			}
		})
	}
}

func TestValidateSymbolOnlyDislike(t *testing.T) {
	c := validCandidate()
	c.Ingredients = append(c.Ingredients, Ingredient{Name: "chili flakes", Quantity: 1, Unit: "tsp"})
	c.Steps = append(c.Steps, "Sprinkle the chili flakes.")
	if _, err := Validate(c, []string{"🌶️"}); err != nil {
		t.Fatalf("symbol-only dislike must not match other names: %v", err)
	}

	c.Ingredients = append(c.Ingredients, Ingredient{Name: "🌶️", Quantity: 1})
	_, err := Validate(c, []string{"🌶️"})
	if got := failureReason(t, err); got != ReasonDisliked {
		t.Fatalf("reason = %q, want disliked", got)
	}
}

func TestValidateDislikeMatchesWholeWords(t *testing.T) {
	tests := []struct {
		ingredient string
		disliked   string
	}{
		{"pineapple", "apple"},
		{"grass-fed beef", "glass"},
		{"green bell pepper", "red bell pepper"},
		{"onion", "green onion"},
	}
	for _, tt := range tests {
		c := validCandidate()
		c.Ingredients = append(c.Ingredients, Ingredient{Name: tt.ingredient, Quantity: 1})
		c.Steps = append(c.Steps, "Add the "+tt.ingredient+".")
		if _, err := Validate(c, []string{tt.disliked}); err != nil {
			t.Fatalf("%q with disliked %q: %v", tt.ingredient, tt.disliked, err)
		}
	}
}

func TestValidateCoherenceWarnings(t *testing.T) {
	v := NewValidator(GenerationRequest{
		Available: []AvailableIngredient{
			{Name: "rice", Quantity: 2, Unit: "cups"},
			{Name: "chicken", Quantity: 100, Unit: "g"},
			{Name: "lime", Quantity: 1},
			{Name: "garlic", Quantity: 3, Unit: "cloves"},
		},
		Disliked: []string{"cilantro"},
	})

	c := validCandidate()
	c.Ingredients = append(c.Ingredients, Ingredient{Name: "sesame oil", Quantity: 1, Unit: "tsp"})
	c.Steps = append(c.Steps, "Fry the garlic.", "Garnish with cilantro if you like.")

	r, err := v.Validate(c)
	if err != nil {
		t.Fatalf("coherence problems must not reject: %v", err)
	}
	joined := strings.Join(r.Warnings, "\n")
	for _, want := range []string{
		`step 4 mentions "garlic" which is not in the ingredient list`,
		`step 5 mentions disliked ingredient "cilantro"`,
		`ingredient "sesame oil" is not mentioned in any step`,
		`ingredient "chicken" uses 200 g but only 100 g is available`,
	} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing warning %q in:\n%s", want, joined)
		}
	}
	if strings.Contains(joined, `"rice" uses`) {
		t.Fatalf("unit cup vs cups should compare equal and 1 <= 2:\n%s", joined)
	}
}

func TestValidateReplacesModelWarnings(t *testing.T) {
	c := validCandidate()
	c.Warnings = []string{"made up by the model"}
	r, err := Validate(c, nil)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("warnings = %v", r.Warnings)
	}
}
