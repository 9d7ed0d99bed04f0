package middleware

import (
	"bytes"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"
)

const defaultDedupWindow = time.Second

// deduplicator 記錄最近的請求指紋
type deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	requests  map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func newDeduplicator(window time.Duration) *deduplicator {
	if window <= 0 {
		window = defaultDedupWindow
	}
	return &deduplicator{
		window:   window,
		requests: make(map[string]time.Time),
		now:      time.Now,
	}
}

// seen 記錄指紋，窗口內重複時回傳 true
func (d *deduplicator) seen(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.lastSweep) > 10*d.window {
		for k, t := range d.requests {
			if now.Sub(t) > d.window {
				delete(d.requests, k)
			}
		}
		d.lastSweep = now
	}

	if last, ok := d.requests[fingerprint]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.requests[fingerprint] = now
	return false
}

// Deduplication 拒絕窗口內相同的 POST 請求
func Deduplication(cfg *config.Config) gin.HandlerFunc {
	window := defaultDedupWindow
	if cfg != nil && cfg.DedupWindow > 0 {
		window = cfg.DedupWindow
	}
	d := newDeduplicator(window)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		body := ""
		if c.Request.Body != nil {
			data, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogWarn("Failed to read request body", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, common.ErrInputTooLarge.Response(false))
				return
			}
			body = string(data)
			c.Request.Body = io.NopCloser(bytes.NewReader(data))
		}

		fingerprint := common.HashStrings(c.Request.Method, c.Request.URL.Path, c.ClientIP(), body)
		if d.seen(fingerprint) {
			common.LogWarn("Duplicate request rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, common.ErrTooManyRequests.Response(false))
			return
		}

		c.Next()
	}
}
