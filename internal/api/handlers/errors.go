package handlers

import (
	"context"
	"errors"
	"net/http"

	"recipe-synthesizer/internal/core/preference"
	"recipe-synthesizer/internal/core/recipe"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ContextKeyDebug 在 gin context 中標記是否輸出錯誤細節
const ContextKeyDebug = "debug"

// ToCustomError 將領域錯誤對應到 API 錯誤代碼
func ToCustomError(err error) *common.CustomError {
	var ce *common.CustomError
	var conflict *preference.ConflictError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.As(err, &conflict), errors.Is(err, preference.ErrContradictoryBatch):
		return common.ErrPreferenceConflict.WithErr(err)
	case common.IsValidationError(err),
		errors.Is(err, preference.ErrEmptyUserID),
		errors.Is(err, preference.ErrEmptyIngredient),
		errors.Is(err, preference.ErrInvalidSentiment):
		return common.ErrInvalidRequest.WithErr(err)
	case errors.Is(err, recipe.ErrNoValidRecipes):
		return common.ErrNoValidRecipes.WithErr(err)
	case errors.Is(err, recipe.ErrGatewayExhausted):
		return common.ErrGatewayExhausted.WithErr(err)
	case errors.Is(err, context.Canceled):
		return common.ErrRequestCanceled.WithErr(err)
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrRequestTimeout.WithErr(err)
	default:
		return common.ErrInternalError.WithErr(err)
	}
}

// RespondError 寫出錯誤響應並記錄
func RespondError(c *gin.Context, err error) {
	ce := ToCustomError(err)
	fields := []zap.Field{
		zap.String("request_id", requestid.Get(c)),
		zap.String("code", ce.Code),
		zap.Int("status", ce.Status),
		zap.Error(err),
	}
	if ce.Status >= http.StatusInternalServerError {
		common.LogError("請求處理失敗", fields...)
	} else {
		common.LogWarn("request rejected", fields...)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(ce.Status, ce.Response(c.GetBool(ContextKeyDebug)))
}

// RespondBindError 請求格式錯誤
func RespondBindError(c *gin.Context, err error) {
	RespondError(c, common.NewValidationError(err.Error()))
}
