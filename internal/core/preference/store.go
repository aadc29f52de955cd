package preference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recipe-synthesizer/internal/pkg/common"

	"go.uber.org/zap"
)

// Store 偏好服務：同一使用者對同一食材只能有一種好惡
type Store struct {
	repo Repository
}

// NewStore 創建偏好服務
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// Upsert 寫入偏好。已有相同好惡時為冪等操作；已有相反好惡時回傳 *ConflictError 且不變更狀態。
// 第二個回傳值表示是否新建紀錄
func (s *Store) Upsert(ctx context.Context, userID, ingredient string, sentiment Sentiment) (*Record, bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, false, ErrEmptyUserID
	}
	name := NormalizeIngredient(ingredient)
	if name == "" {
		return nil, false, ErrEmptyIngredient
	}
	if sentiment != Like && sentiment != Dislike {
		return nil, false, fmt.Errorf("%w: %q", ErrInvalidSentiment, sentiment)
	}

	stored, created, err := s.repo.PutIfAbsent(ctx, Record{
		UserID:     userID,
		Ingredient: name,
		Sentiment:  sentiment,
	})
	if err != nil {
		return nil, false, fmt.Errorf("store preference: %w", err)
	}
	if stored.Sentiment != sentiment {
		common.LogDebug("偏好衝突",
			zap.String("user_id", userID),
			zap.String("ingredient", name),
			zap.String("existing", string(stored.Sentiment)),
			zap.String("requested", string(sentiment)),
		)
		return stored, false, &ConflictError{
			UserID:     userID,
			Ingredient: name,
			Existing:   stored.Sentiment,
			Requested:  sentiment,
		}
	}
	return stored, created, nil
}

// UpsertBatch 批次寫入。批次內同一食材出現相反好惡時整批拒絕；
// 與既有紀錄衝突的項目標記為 conflict，其餘照常寫入
func (s *Store) UpsertBatch(ctx context.Context, userID string, items []Item) ([]ItemResult, error) {
	seen := make(map[string]Sentiment, len(items))
	unique := make([]Item, 0, len(items))
	for _, it := range items {
		name := NormalizeIngredient(it.Ingredient)
		if name == "" {
			return nil, ErrEmptyIngredient
		}
		if it.Sentiment != Like && it.Sentiment != Dislike {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSentiment, it.Sentiment)
		}
		if prev, ok := seen[name]; ok {
			if prev != it.Sentiment {
				return nil, fmt.Errorf("%w: %q", ErrContradictoryBatch, name)
			}
			continue
		}
		seen[name] = it.Sentiment
		unique = append(unique, Item{Ingredient: name, Sentiment: it.Sentiment})
	}

	results := make([]ItemResult, 0, len(unique))
	for _, it := range unique {
		res := ItemResult{Ingredient: it.Ingredient, Sentiment: it.Sentiment}
		_, created, err := s.Upsert(ctx, userID, it.Ingredient, it.Sentiment)
		var conflict *ConflictError
		switch {
		case errors.As(err, &conflict):
			res.Outcome = OutcomeConflict
			res.Existing = conflict.Existing
		case err != nil:
			return results, err
		case created:
			res.Outcome = OutcomeCreated
		default:
			res.Outcome = OutcomeUnchanged
		}
		results = append(results, res)
	}
	return results, nil
}

// List 列出使用者所有偏好
func (s *Store) List(ctx context.Context, userID string) ([]Record, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrEmptyUserID
	}
	recs, err := s.repo.Query(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return recs, nil
}

// Summary 依好惡分組
func (s *Store) Summary(ctx context.Context, userID string) (Summary, error) {
	recs, err := s.List(ctx, userID)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(recs), nil
}

// Summarize 將紀錄依好惡分組，保持輸入順序
func Summarize(recs []Record) Summary {
	sum := Summary{Liked: []string{}, Disliked: []string{}}
	for _, r := range recs {
		switch r.Sentiment {
		case Like:
			sum.Liked = append(sum.Liked, r.Ingredient)
		case Dislike:
			sum.Disliked = append(sum.Disliked, r.Ingredient)
		}
	}
	return sum
}

// Remove 刪除偏好，不存在時為 no-op
func (s *Store) Remove(ctx context.Context, userID, ingredient string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrEmptyUserID
	}
	name := NormalizeIngredient(ingredient)
	if name == "" {
		return ErrEmptyIngredient
	}
	if err := s.repo.Delete(ctx, userID, name); err != nil {
		return fmt.Errorf("remove preference: %w", err)
	}
	return nil
}

// Clear 刪除使用者所有偏好
func (s *Store) Clear(ctx context.Context, userID string) (int, error) {
	recs, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	for _, r := range recs {
		if err := s.repo.Delete(ctx, r.UserID, r.Ingredient); err != nil {
			return 0, fmt.Errorf("clear preferences: %w", err)
		}
	}
	return len(recs), nil
}
