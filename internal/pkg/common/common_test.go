package common

import (
	"encoding/json"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `  {"a":1} `, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence with prose", "Here you go:\n```\n[1,2]\n```\nEnjoy!", `[1,2]`},
		{"unterminated", "```json\n{\"a\":", `{"a":`},
		{"only marker", "```", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFence(tt.in); got != tt.want {
				t.Fatalf("StripCodeFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONRepair(t *testing.T) {
	raw := `{name: "Soup", steps: ["boil",], tags: {spicy: true,},}`
	fixed := RemoveTrailingCommas(QuoteJSONKeys(raw))

	var v map[string]interface{}
	if err := json.Unmarshal([]byte(fixed), &v); err != nil {
		t.Fatalf("repaired JSON does not parse: %v (%s)", err, fixed)
	}
	if v["name"] != "Soup" {
		t.Fatalf("unexpected name %v", v["name"])
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"  Red   Onion ": "red onion",
		"TOMATO":         "tomato",
		"\tgreen\nbeans": "green beans",
		"   ":            "",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHashString(t *testing.T) {
	if HashString("ab", "c") == HashString("a", "bc") {
		t.Fatalf("part boundaries must affect the hash")
	}
	if HashString("x") != HashString("x") {
		t.Fatalf("hash must be deterministic")
	}
	if len(HashString("x")) != 64 {
		t.Fatalf("expected hex sha-256")
	}
}

func TestCustomErrorResponse(t *testing.T) {
	ce := ErrGatewayExhausted.WithErr(NewValidationError("upstream"))
	if ce.Code != ErrCodeGatewayExhausted || ce.Status != ErrGatewayExhausted.Status {
		t.Fatalf("WithErr must keep code and status")
	}
	if !IsValidationError(ce) {
		t.Fatalf("expected wrapped validation error")
	}
	if ErrGatewayExhausted.Err != nil {
		t.Fatalf("WithErr must not mutate the shared error")
	}
	if r := ce.Response(true); r.Details == "" {
		t.Fatalf("expected details in debug mode")
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("sk-1234567890abcd"); got == "sk-1234567890abcd" {
		t.Fatalf("secret not masked")
	}
}
