package preference

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ Repository = (*GormRepository)(nil)

// preferenceModel 資料表 ingredient_preferences
type preferenceModel struct {
	ID         string    `gorm:"type:varchar(36);primaryKey"`
	UserID     string    `gorm:"size:128;not null;uniqueIndex:idx_pref_user_ingredient,priority:1"`
	Ingredient string    `gorm:"size:256;not null;uniqueIndex:idx_pref_user_ingredient,priority:2"`
	Sentiment  string    `gorm:"size:16;not null"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}

func (preferenceModel) TableName() string { return "ingredient_preferences" }

func (m preferenceModel) toRecord() Record {
	return Record{
		UserID:     m.UserID,
		Ingredient: m.Ingredient,
		Sentiment:  Sentiment(m.Sentiment),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

// Migrate 建立偏好資料表與唯一索引
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&preferenceModel{})
}

// GormRepository 以 gorm 保存偏好，支援 SQLite 與 PostgreSQL
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository 創建 gorm 偏好儲存
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Get(ctx context.Context, userID, ingredient string) (*Record, error) {
	var m preferenceModel
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND ingredient = ?", userID, ingredient).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec := m.toRecord()
	return &rec, nil
}

// PutIfAbsent 以 INSERT ... ON CONFLICT DO NOTHING 搶佔 (user_id, ingredient)，
// 再於同一交易中讀回勝出的紀錄
func (r *GormRepository) PutIfAbsent(ctx context.Context, rec Record) (*Record, bool, error) {
	now := time.Now().UTC()
	m := preferenceModel{
		ID:         uuid.NewString(),
		UserID:     rec.UserID,
		Ingredient: rec.Ingredient,
		Sentiment:  string(rec.Sentiment),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	var (
		stored  preferenceModel
		created bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "ingredient"}},
			DoNothing: true,
		}).Create(&m)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		return tx.Where("user_id = ? AND ingredient = ?", rec.UserID, rec.Ingredient).
			Take(&stored).Error
	})
	if err != nil {
		return nil, false, err
	}

	out := stored.toRecord()
	return &out, created, nil
}

func (r *GormRepository) Query(ctx context.Context, userID string) ([]Record, error) {
	var models []preferenceModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ingredient ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(models))
	for _, m := range models {
		out = append(out, m.toRecord())
	}
	return out, nil
}

func (r *GormRepository) Delete(ctx context.Context, userID, ingredient string) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND ingredient = ?", userID, ingredient).
		Delete(&preferenceModel{}).Error
}

// Ping 檢查資料庫連線
func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
