package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/core/recipe"
	"recipe-synthesizer/internal/pkg/common"
)

func TestToCustomError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"custom passthrough", common.ErrTooManyRequests, common.ErrCodeTooManyRequests, http.StatusTooManyRequests},
		{"conflict", fmt.Errorf("upsert: %w", &preference.ConflictError{Ingredient: "egg"}), common.ErrCodePreferenceConflict, http.StatusConflict},
		{"contradictory batch", fmt.Errorf("%w: egg", preference.ErrContradictoryBatch), common.ErrCodePreferenceConflict, http.StatusConflict},
		{"validation", common.NewValidationError("bad"), common.ErrCodeInvalidRequest, http.StatusBadRequest},
		{"empty user", preference.ErrEmptyUserID, common.ErrCodeInvalidRequest, http.StatusBadRequest},
		{"empty ingredient", preference.ErrEmptyIngredient, common.ErrCodeInvalidRequest, http.StatusBadRequest},
		{"invalid sentiment", fmt.Errorf("%w: \"meh\"", preference.ErrInvalidSentiment), common.ErrCodeInvalidRequest, http.StatusBadRequest},
		{"no valid recipes", &recipe.SynthesisError{Kind: recipe.ErrNoValidRecipes, Attempts: 3}, common.ErrCodeNoValidRecipes, http.StatusUnprocessableEntity},
		{"gateway exhausted", &recipe.SynthesisError{Kind: recipe.ErrGatewayExhausted, Attempts: 3}, common.ErrCodeGatewayExhausted, http.StatusBadGateway},
		{"canceled", fmt.Errorf("synthesize: %w", context.Canceled), common.ErrCodeRequestCanceled, common.StatusClientClosedRequest},
		{"deadline", context.DeadlineExceeded, common.ErrCodeRequestTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), common.ErrCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ToCustomError(tt.err)
			if ce.Code != tt.code || ce.Status != tt.status {
				t.Fatalf("got %s/%d, want %s/%d", ce.Code, ce.Status, tt.code, tt.status)
			}
		})
	}
}

func TestToCustomErrorKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	ce := ToCustomError(cause)
	if !errors.Is(ce, cause) {
		t.Fatalf("expected wrapped cause")
	}
	if ce == common.ErrInternalError {
		t.Fatalf("shared error value must not be returned with a cause")
	}
	if got := ce.Response(true).Details; got != "disk full" {
		t.Fatalf("debug details = %q", got)
	}
	if got := ce.Response(false).Details; got != "" {
		t.Fatalf("details leaked outside debug: %q", got)
	}
}
