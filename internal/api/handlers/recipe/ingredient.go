package recipe

import (
	"errors"
	"net/http"

	"recipe-normalizer/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// IngredientRequest 單行食材解析請求
type IngredientRequest struct {
	Line string `json:"line" binding:"required"`
}

// IngredientResponse 單行食材解析結果
type IngredientResponse struct {
	Ingredients []common.Ingredient   `json:"ingredients"`
	Diagnostic  *common.AssemblyError `json:"diagnostic,omitempty"`
}

// HandleIngredient 解析單行食材；無法解析時回傳 422 與解析警告
func (h *Handler) HandleIngredient(c *gin.Context) {
	var req IngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
		return
	}

	ingredients, err := h.parser.Parse(req.Line)
	if err != nil {
		var warning *common.AssemblyError
		if !errors.As(err, &warning) {
			respondError(c, err, h.debug)
			return
		}
		c.JSON(http.StatusUnprocessableEntity, IngredientResponse{Ingredients: []common.Ingredient{}, Diagnostic: warning})
		return
	}

	c.JSON(http.StatusOK, IngredientResponse{Ingredients: ingredients})
}
