package recipe

import (
	"net/http"

	"recipe-normalizer/internal/infrastructure/render"
	"recipe-normalizer/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// HandleRender 組裝食譜並輸出 Markdown；組裝失敗時回傳診斷
func (h *Handler) HandleRender(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
		return
	}

	outcome, err := h.process(c.Request.Context(), req.document(h.now()))
	if err != nil {
		respondError(c, err, h.debug)
		return
	}
	if !outcome.Succeeded() {
		resp := common.ErrNotRenderable.Response(h.debug)
		c.JSON(statusFor(outcome), gin.H{
			"code":        resp.Code,
			"message":     resp.Message,
			"diagnostics": outcome.Diagnostics,
		})
		return
	}

	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(render.Markdown(outcome.Recipe)))
}
