package recipe

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"recipe-normalizer/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DocumentRequest 單一文件的請求內容
type DocumentRequest struct {
	Source     string     `json:"source"`                  // 來源識別碼，空字串時為 "request"
	Text       string     `json:"text" binding:"required"` // 食譜全文
	Language   string     `json:"language,omitempty"`      // es / en
	ReceivedAt *time.Time `json:"received_at,omitempty"`   // 省略時使用伺服器時間
}

// document 轉為原始文件
func (r DocumentRequest) document(now time.Time) common.RawDocument {
	doc := common.RawDocument{
		Source:     strings.TrimSpace(r.Source),
		Text:       r.Text,
		Language:   strings.ToLower(strings.TrimSpace(r.Language)),
		ReceivedAt: now.UTC(),
	}
	if doc.Source == "" {
		doc.Source = "request"
	}
	if r.ReceivedAt != nil {
		doc.ReceivedAt = r.ReceivedAt.UTC()
	}
	return doc
}

// statusFor 依組裝結果決定 HTTP 狀態碼
func statusFor(outcome common.Outcome) int {
	if outcome.Succeeded() {
		return http.StatusOK
	}
	for _, d := range outcome.Diagnostics {
		if d.Kind == common.KindInputTooLarge {
			return http.StatusRequestEntityTooLarge
		}
	}
	return http.StatusUnprocessableEntity
}

// respondError 輸出錯誤響應，非 CustomError 一律視為內部錯誤
func respondError(c *gin.Context, err error, debug bool) {
	var customErr *common.CustomError
	if !errors.As(err, &customErr) {
		customErr = common.ErrInternalError.Wrap(err)
	}

	fields := []zap.Field{
		zap.String("request_id", requestid.Get(c)),
		zap.String("code", customErr.Code),
		zap.Error(err),
	}
	if customErr.Status >= http.StatusInternalServerError {
		common.LogError("Request failed", fields...)
	} else {
		common.LogWarn("Request rejected", fields...)
	}

	c.AbortWithStatusJSON(customErr.Status, customErr.Response(debug))
}
