package preference

import (
	"errors"
	"net/http"

	"recipe-synthesizer/internal/api/handlers"
	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UpsertRequest 單筆偏好寫入
type UpsertRequest struct {
	Ingredient string `json:"ingredient" binding:"required"`
	Sentiment  string `json:"sentiment" binding:"required"`
}

// BatchRequest 批次偏好寫入
type BatchRequest struct {
	Preferences []UpsertRequest `json:"preferences" binding:"required,min=1,dive"`
}

// ListResponse 使用者偏好清單
type ListResponse struct {
	UserID      string              `json:"user_id"`
	Preferences []preference.Record `json:"preferences"`
	Liked       []string            `json:"liked"`
	Disliked    []string            `json:"disliked"`
}

// ConflictResponse 偏好衝突時的響應，帶出既有好惡
type ConflictResponse struct {
	common.ErrorResponse
	Ingredient string               `json:"ingredient"`
	Existing   preference.Sentiment `json:"existing"`
	Requested  preference.Sentiment `json:"requested"`
}

// Handler 偏好處理程序
type Handler struct {
	store *preference.Store
}

// NewHandler 創建偏好處理程序
func NewHandler(store *preference.Store) *Handler {
	return &Handler{store: store}
}

// List 列出使用者所有偏好
func (h *Handler) List(c *gin.Context) {
	userID := c.Param("user_id")
	recs, err := h.store.List(c.Request.Context(), userID)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	if recs == nil {
		recs = []preference.Record{}
	}
	sum := preference.Summarize(recs)
	c.JSON(http.StatusOK, ListResponse{
		UserID:      userID,
		Preferences: recs,
		Liked:       sum.Liked,
		Disliked:    sum.Disliked,
	})
}

// Upsert 寫入單筆偏好：新建回 201，已存在相同好惡回 200，相反好惡回 409
func (h *Handler) Upsert(c *gin.Context) {
	userID := c.Param("user_id")

	var req UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBindError(c, err)
		return
	}
	sentiment, err := preference.ParseSentiment(req.Sentiment)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}

	rec, created, err := h.store.Upsert(c.Request.Context(), userID, req.Ingredient, sentiment)
	var conflict *preference.ConflictError
	if errors.As(err, &conflict) {
		common.LogWarn("偏好衝突",
			zap.String("request_id", requestid.Get(c)),
			zap.String("user_id", userID),
			zap.String("ingredient", conflict.Ingredient),
			zap.String("existing", string(conflict.Existing)),
		)
		c.AbortWithStatusJSON(http.StatusConflict, ConflictResponse{
			ErrorResponse: common.ErrPreferenceConflict.Response(false),
			Ingredient:    conflict.Ingredient,
			Existing:      conflict.Existing,
			Requested:     conflict.Requested,
		})
		return
	}
	if err != nil {
		handlers.RespondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, rec)
}

// UpsertBatch 批次寫入偏好，回傳每筆結果
func (h *Handler) UpsertBatch(c *gin.Context) {
	userID := c.Param("user_id")

	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBindError(c, err)
		return
	}

	items := make([]preference.Item, len(req.Preferences))
	for i, p := range req.Preferences {
		sentiment, err := preference.ParseSentiment(p.Sentiment)
		if err != nil {
			handlers.RespondError(c, err)
			return
		}
		items[i] = preference.Item{Ingredient: p.Ingredient, Sentiment: sentiment}
	}

	results, err := h.store.UpsertBatch(c.Request.Context(), userID, items)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "results": results})
}

// Remove 刪除單筆偏好，不存在時同樣回 204
func (h *Handler) Remove(c *gin.Context) {
	if err := h.store.Remove(c.Request.Context(), c.Param("user_id"), c.Param("ingredient")); err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Clear 刪除使用者所有偏好
func (h *Handler) Clear(c *gin.Context) {
	userID := c.Param("user_id")
	n, err := h.store.Clear(c.Request.Context(), userID)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	common.LogInfo("已清除使用者偏好", zap.String("user_id", userID), zap.Int("removed", n))
	c.Status(http.StatusNoContent)
}
