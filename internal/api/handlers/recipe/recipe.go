package recipe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"recipe-normalizer/internal/core/ingredient"
	"recipe-normalizer/internal/core/queue"
	recipeService "recipe-normalizer/internal/core/recipe"
	"recipe-normalizer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MaxBatchDocuments 單次批次請求的文件數上限
const MaxBatchDocuments = 50

// BatchRequest 批次組裝請求
type BatchRequest struct {
	Documents []DocumentRequest `json:"documents" binding:"required,min=1,dive"`
}

// BatchResponse 批次組裝結果，順序與請求相同
type BatchResponse struct {
	Outcomes  []common.Outcome `json:"outcomes"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}

// Handler 食譜處理程序
type Handler struct {
	service *recipeService.Service
	queue   *queue.Manager
	parser  *ingredient.Parser
	workers int
	debug   bool
	now     func() time.Time
}

// NewHandler 創建新的食譜處理程序；queue 為 nil 時直接呼叫 service
func NewHandler(service *recipeService.Service, q *queue.Manager, parser *ingredient.Parser, workers int, debug bool) *Handler {
	if workers <= 0 {
		workers = 1
	}
	return &Handler{
		service: service,
		queue:   q,
		parser:  parser,
		workers: workers,
		debug:   debug,
		now:     time.Now,
	}
}

// HandleParse 組裝單一食譜
func (h *Handler) HandleParse(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
		return
	}

	doc := req.document(h.now())
	outcome, err := h.process(c.Request.Context(), doc)
	if err != nil {
		respondError(c, err, h.debug)
		return
	}

	common.LogInfo("食譜組裝完成",
		zap.String("request_id", requestid.Get(c)),
		zap.String("source", doc.Source),
		zap.String("status", string(outcome.Status)),
		zap.Int("diagnostics", len(outcome.Diagnostics)),
	)
	c.JSON(statusFor(outcome), outcome)
}

// HandleParseBatch 批次組裝，單一文件失敗不影響其他文件
func (h *Handler) HandleParseBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, common.ErrInvalidRequest.Wrap(err), h.debug)
		return
	}
	if len(req.Documents) > MaxBatchDocuments {
		respondError(c, common.ErrInputTooLarge.Wrap(errors.New("too many documents in batch")), h.debug)
		return
	}

	now := h.now()
	docs := make([]common.RawDocument, len(req.Documents))
	for i, d := range req.Documents {
		docs[i] = d.document(now)
	}

	outcomes, err := h.service.ProcessBatch(c.Request.Context(), docs, h.workers)
	if err != nil {
		respondError(c, contextError(err), h.debug)
		return
	}

	resp := BatchResponse{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Succeeded() {
			resp.Succeeded++
		} else {
			resp.Failed++
		}
	}
	common.LogInfo("批次組裝完成",
		zap.String("request_id", requestid.Get(c)),
		zap.Int("documents", len(docs)),
		zap.Int("succeeded", resp.Succeeded),
		zap.Int("failed", resp.Failed),
	)
	c.JSON(http.StatusOK, resp)
}

// process 經由隊列組裝，等待結果或請求結束
func (h *Handler) process(ctx context.Context, doc common.RawDocument) (common.Outcome, error) {
	if h.queue == nil {
		outcome, err := h.service.Process(ctx, doc)
		if err != nil {
			return common.Outcome{}, contextError(err)
		}
		return outcome, nil
	}

	result, err := h.queue.Enqueue(ctx, doc)
	switch {
	case errors.Is(err, queue.ErrQueueFull):
		return common.Outcome{}, common.ErrQueueFull.Wrap(err)
	case errors.Is(err, queue.ErrClosed):
		return common.Outcome{}, common.ErrServiceUnavailable.Wrap(err)
	case err != nil:
		return common.Outcome{}, contextError(err)
	}

	select {
	case res := <-result:
		if res.Error != nil {
			if errors.Is(res.Error, queue.ErrClosed) {
				return common.Outcome{}, common.ErrServiceUnavailable.Wrap(res.Error)
			}
			return common.Outcome{}, contextError(res.Error)
		}
		return res.Outcome, nil
	case <-ctx.Done():
		return common.Outcome{}, contextError(ctx.Err())
	}
}

// contextError 將 context 錯誤轉為對應的 API 錯誤
func contextError(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return common.ErrGatewayTimeout.Wrap(err)
	case errors.Is(err, context.Canceled):
		return common.ErrRequestTimeout.Wrap(err)
	}
	return err
}
