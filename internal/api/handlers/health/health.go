package health

import (
	"net/http"
	"runtime"
	"time"

	"recipe-normalizer/internal/core/queue"
	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// context 中的鍵
const (
	ConfigKey = "config"
	QueueKey  = "queue"
	CacheKey  = "cache"
)

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
	Cache     map[string]interface{} `json:"cache,omitempty"`
}

// statsProvider 提供統計資料的快取
type statsProvider interface {
	GetStats() map[string]interface{}
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	// 獲取配置
	cfg, exists := c.Get(ConfigKey)
	if !exists {
		common.LogError("Configuration not found in context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Configuration not found",
		})
		return
	}
	config, ok := cfg.(*config.Config)
	if !ok {
		common.LogError("Invalid configuration type in context")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Invalid configuration type",
		})
		return
	}

	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   config.App.Version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if q, ok := c.Get(QueueKey); ok {
		if manager, ok := q.(*queue.Manager); ok && manager != nil {
			status := manager.Status()
			response.Queue = &status
			if !status.Running {
				response.Status = "degraded"
			}
		}
	}
	if s, ok := c.Get(CacheKey); ok {
		if stats, ok := s.(statsProvider); ok {
			response.Cache = stats.GetStats()
		}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器，隊列未運行或已滿時回傳 503
func ReadinessCheck(c *gin.Context) {
	if q, ok := c.Get(QueueKey); ok {
		if manager, ok := q.(*queue.Manager); ok && manager != nil {
			status := manager.Status()
			if !status.Running || status.QueueLength >= status.MaxQueueSize {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "not_ready",
					"queue":  status,
				})
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
