package preference

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepository)(nil)

type memoryKey struct {
	userID     string
	ingredient string
}

// MemoryRepository 以 map 保存偏好，供測試與 database.driver=memory 使用
type MemoryRepository struct {
	mu      sync.RWMutex
	records map[memoryKey]Record
	now     func() time.Time
}

// NewMemoryRepository 創建記憶體偏好儲存
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		records: make(map[memoryKey]Record),
		now:     time.Now,
	}
}

func (r *MemoryRepository) Get(_ context.Context, userID, ingredient string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[memoryKey{userID, ingredient}]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *MemoryRepository) PutIfAbsent(_ context.Context, rec Record) (*Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey{rec.UserID, rec.Ingredient}
	if existing, ok := r.records[key]; ok {
		return &existing, false, nil
	}
	now := r.now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.records[key] = rec
	return &rec, true, nil
}

func (r *MemoryRepository) Query(_ context.Context, userID string) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0)
	for k, rec := range r.records {
		if k.userID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ingredient < out[j].Ingredient })
	return out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, userID, ingredient string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.records, memoryKey{userID, ingredient})
	return nil
}
