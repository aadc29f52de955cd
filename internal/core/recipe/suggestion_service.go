package recipe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"recipe-synthesizer/internal/core/ai/service"
	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/pkg/common"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// State 合成流程狀態
type State string

const (
	StateBuilding   State = "BUILDING"
	StateCalling    State = "CALLING"
	StateParsing    State = "PARSING"
	StateValidating State = "VALIDATING"
	StateRetrying   State = "RETRYING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

const (
	defaultMaxAttempts = 3
	defaultMaxRecipes  = 5
	maxRetryWait       = 5 * time.Second
)

// 合成流程的終止失敗類別
var (
	ErrGatewayExhausted = errors.New("generation gateway exhausted")
	ErrNoValidRecipes   = errors.New("no valid recipes")
)

// SynthesisError 嘗試次數用盡且沒有任何可用食譜
type SynthesisError struct {
	Kind     error
	Attempts int
	Cause    error
}

func (e *SynthesisError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%v after %d attempts", e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%v after %d attempts: %v", e.Kind, e.Attempts, e.Cause)
}

func (e *SynthesisError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Generator 生成閘道
type Generator interface {
	Generate(ctx context.Context, p service.Prompt) (string, error)
}

// PreferenceReader 讀取使用者的好惡
type PreferenceReader interface {
	Summary(ctx context.Context, userID string) (preference.Summary, error)
}

// SuggestionOptions 合成流程選項
type SuggestionOptions struct {
	MaxAttempts int
	MaxRecipes  int
	Temperature float64
}

// SuggestionService 食譜合成流程：組 prompt、呼叫模型、解析、驗證，不足時重試
type SuggestionService struct {
	generator   Generator
	preferences PreferenceReader
	prompts     PromptBuilder
	maxAttempts int
	maxRecipes  int
	tracer      trace.Tracer
}

// NewSuggestionService 創建食譜合成服務
func NewSuggestionService(gen Generator, prefs PreferenceReader, opts SuggestionOptions) *SuggestionService {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.MaxRecipes <= 0 {
		opts.MaxRecipes = defaultMaxRecipes
	}
	return &SuggestionService{
		generator:   gen,
		preferences: prefs,
		prompts:     NewPromptBuilder(opts.MaxRecipes, opts.Temperature),
		maxAttempts: opts.MaxAttempts,
		maxRecipes:  opts.MaxRecipes,
		tracer:      otel.Tracer("recipe-synthesizer/recipe"),
	}
}

// SuggestRecipes 依手邊食材與已存的偏好合成最多 MaxRecipes 道食譜。
// 嘗試用盡但有部分結果時回傳 Partial；完全沒有結果時回傳 *SynthesisError
func (s *SuggestionService) SuggestRecipes(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, common.NewValidationError(err.Error())
	}

	ctx, span := s.tracer.Start(ctx, "recipe.synthesize", trace.WithAttributes(
		attribute.String("user.id", req.UserID),
		attribute.Int("recipe.available_ingredients", len(req.AvailableIngredients)),
	))
	defer span.End()

	summary, err := s.preferences.Summary(ctx, req.UserID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load preferences: %w", err)
	}
	genReq := GenerationRequest{
		Available: req.AvailableIngredients,
		Liked:     sortedCopy(summary.Liked),
		Disliked:  sortedCopy(summary.Disliked),
	}
	validator := NewValidator(genReq)

	common.LogInfo("開始合成食譜",
		zap.String("user_id", req.UserID),
		zap.Int("available", len(genReq.Available)),
		zap.Int("liked", len(genReq.Liked)),
		zap.Int("disliked", len(genReq.Disliked)),
	)

	recipes := make([]Recipe, 0, s.maxRecipes)
	seen := make(map[string]bool)
	var lastErr error
	lastFailedAtGateway := false

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if attempt > 1 {
			s.enter(span, attempt-1, StateRetrying)
			if err := waitBeforeRetry(ctx, lastErr); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.enter(span, attempt, StateBuilding)
		prompt := s.prompts.Build(genReq, attempt)

		s.enter(span, attempt, StateCalling)
		raw, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lastErr, lastFailedAtGateway = err, true
			common.LogWarn("生成服務呼叫失敗", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		lastFailedAtGateway = false

		s.enter(span, attempt, StateParsing)
		candidates, err := ParseResponse(raw)
		if err != nil {
			lastErr = err
			common.LogWarn("模型回應無法解析", zap.Int("attempt", attempt), zap.Int("response_length", len(raw)), zap.Error(err))
			continue
		}

		s.enter(span, attempt, StateValidating)
		accepted := 0
		for _, c := range candidates {
			r, err := validator.Validate(c)
			if err != nil {
				lastErr = err
				common.LogDebug("候選食譜未通過驗證", zap.String("name", c.Name), zap.Error(err))
				continue
			}
			key := common.NormalizeName(r.Name)
			if seen[key] {
				common.LogDebug("略過重複的食譜名稱", zap.String("name", r.Name))
				continue
			}
			seen[key] = true
			if len(r.Warnings) > 0 {
				common.LogInfo("recipe coherence warnings", zap.String("name", r.Name), zap.Strings("warnings", r.Warnings))
			}
			recipes = append(recipes, r)
			accepted++
			if len(recipes) == s.maxRecipes {
				break
			}
		}
		common.LogInfo("合成嘗試完成",
			zap.Int("attempt", attempt),
			zap.Int("candidates", len(candidates)),
			zap.Int("accepted", accepted),
			zap.Int("total", len(recipes)),
		)
		if accepted == 0 && len(candidates) == 0 {
			lastErr = errors.New("response contained no recipes")
		}

		if len(recipes) >= s.maxRecipes {
			s.enter(span, attempt, StateDone)
			return &SynthesisResult{Recipes: recipes, Attempts: attempt}, nil
		}
	}

	if len(recipes) > 0 {
		s.enter(span, s.maxAttempts, StateDone)
		common.LogInfo("嘗試次數用盡，回傳部分結果", zap.Int("recipes", len(recipes)))
		return &SynthesisResult{Recipes: recipes, Attempts: s.maxAttempts, Partial: true}, nil
	}

	s.enter(span, s.maxAttempts, StateFailed)
	kind := ErrNoValidRecipes
	if lastFailedAtGateway {
		kind = ErrGatewayExhausted
	}
	serr := &SynthesisError{Kind: kind, Attempts: s.maxAttempts, Cause: lastErr}
	span.RecordError(serr)
	span.SetStatus(codes.Error, kind.Error())
	common.LogError("食譜合成失敗", zap.String("user_id", req.UserID), zap.Error(serr))
	return nil, serr
}

func (s *SuggestionService) enter(span trace.Span, attempt int, st State) {
	span.AddEvent(string(st), trace.WithAttributes(attribute.Int("attempt", attempt)))
	common.LogDebug("synthesis state", zap.Int("attempt", attempt), zap.String("state", string(st)))
}

// waitBeforeRetry 上游要求限流等待時，在下一次嘗試前等候（上限 maxRetryWait）
func waitBeforeRetry(ctx context.Context, lastErr error) error {
	var ge *service.Error
	if !errors.As(lastErr, &ge) || ge.RetryAfter <= 0 {
		return nil
	}
	wait := ge.RetryAfter
	if wait > maxRetryWait {
		wait = maxRetryWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}
