package preference

import (
	"context"
	"errors"
)

// ErrNotFound 紀錄不存在
var ErrNotFound = errors.New("preference not found")

// Repository 偏好持久層，ingredient 參數皆已正規化
type Repository interface {
	// Get 取得單筆紀錄，不存在時回傳 ErrNotFound
	Get(ctx context.Context, userID, ingredient string) (*Record, error)

	// PutIfAbsent 原子性地在 (userID, ingredient) 不存在時寫入 rec，
	// 回傳寫入後實際存在的紀錄以及是否由本次寫入
	PutIfAbsent(ctx context.Context, rec Record) (*Record, bool, error)

	// Query 列出使用者所有紀錄，依食材名稱排序
	Query(ctx context.Context, userID string) ([]Record, error)

	// Delete 刪除紀錄，不存在時不視為錯誤
	Delete(ctx context.Context, userID, ingredient string) error
}
