package recipe

import (
	"context"
	"net/http"

	"recipe-synthesizer/internal/api/handlers"
	recipeService "recipe-synthesizer/internal/core/recipe"
	"recipe-synthesizer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IngredientInput 使用者手邊的一項食材
type IngredientInput struct {
	Name     string  `json:"name" binding:"required"`
	Quantity float64 `json:"quantity" binding:"gt=0"`
	Unit     string  `json:"unit"`
}

// SuggestRequest 食譜推薦請求，偏好由伺服器端讀取
type SuggestRequest struct {
	UserID               string            `json:"user_id" binding:"required"`
	AvailableIngredients []IngredientInput `json:"available_ingredients" binding:"required,min=1,dive"`
}

// Suggester 食譜合成服務
type Suggester interface {
	SuggestRecipes(ctx context.Context, req recipeService.SynthesisRequest) (*recipeService.SynthesisResult, error)
}

// Handler 食譜處理程序
type Handler struct {
	suggestions Suggester
}

// NewHandler 創建新的食譜處理程序
func NewHandler(suggestions Suggester) *Handler {
	return &Handler{suggestions: suggestions}
}

// HandleSuggest 依手邊食材與使用者偏好推薦食譜
func (h *Handler) HandleSuggest(c *gin.Context) {
	requestID := requestid.Get(c)

	var req SuggestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBindError(c, err)
		return
	}

	common.LogInfo("開始處理食譜推薦請求",
		zap.String("request_id", requestID),
		zap.String("user_id", req.UserID),
		zap.Int("available", len(req.AvailableIngredients)),
	)

	serviceReq := recipeService.SynthesisRequest{
		UserID:               req.UserID,
		AvailableIngredients: make([]recipeService.AvailableIngredient, len(req.AvailableIngredients)),
	}
	for i, ing := range req.AvailableIngredients {
		serviceReq.AvailableIngredients[i] = recipeService.AvailableIngredient{
			Name:     ing.Name,
			Quantity: ing.Quantity,
			Unit:     ing.Unit,
		}
	}

	result, err := h.suggestions.SuggestRecipes(c.Request.Context(), serviceReq)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}

	common.LogInfo("食譜推薦成功",
		zap.String("request_id", requestID),
		zap.Int("recipes", len(result.Recipes)),
		zap.Int("attempts", result.Attempts),
		zap.Bool("partial", result.Partial),
	)
	c.JSON(http.StatusOK, result)
}
