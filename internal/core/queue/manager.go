package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 隊列已滿
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed 隊列已關閉
	ErrClosed = errors.New("queue manager is closed")
)

// Handler 處理單一文件
type Handler func(ctx context.Context, doc common.RawDocument) (common.Outcome, error)

// Request 隊列請求
type Request struct {
	Context  context.Context
	Document common.RawDocument
	Result   chan Result
}

// Result 處理結果
type Result struct {
	Outcome common.Outcome
	Error   error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
	Running        bool  `json:"running"`
}

// Manager 隊列管理器
type Manager struct {
	config    *config.QueueConfig
	queue     chan *Request
	done      chan struct{}
	processed int64
	mu        sync.RWMutex
	running   bool
	closed    bool
	wg        sync.WaitGroup
}

// NewManager 創建新的隊列管理器
func NewManager(cfg *config.QueueConfig) *Manager {
	return &Manager{
		config: cfg,
		queue:  make(chan *Request, cfg.MaxSize),
		done:   make(chan struct{}),
	}
}

// Start 啟動工作協程
func (m *Manager) Start(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.closed {
		return
	}
	m.running = true

	for i := 0; i < m.config.Workers; i++ {
		m.wg.Add(1)
		go m.worker(i, handler)
	}
	common.LogInfo("處理隊列已啟動",
		zap.Int("workers", m.config.Workers),
		zap.Int("max_queue_size", m.config.MaxSize),
	)
}

func (m *Manager) worker(id int, handler Handler) {
	defer m.wg.Done()
	for {
		select {
		case req := <-m.queue:
			m.handle(id, handler, req)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) handle(id int, handler Handler, req *Request) {
	defer atomic.AddInt64(&m.processed, 1)

	// 請求已被取消時不再處理
	if err := req.Context.Err(); err != nil {
		req.Result <- Result{Error: err}
		return
	}

	outcome, err := handler(req.Context, req.Document)
	req.Result <- Result{Outcome: outcome, Error: err}
	common.LogDebug("Request processed",
		zap.Int("worker", id),
		zap.String("source", req.Document.Source),
	)
}

// Enqueue 將請求加入隊列，隊列已滿時立即失敗
func (m *Manager) Enqueue(ctx context.Context, doc common.RawDocument) (<-chan Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	req := &Request{
		Context:  ctx,
		Document: doc,
		Result:   make(chan Result, 1),
	}

	select {
	case m.queue <- req:
		common.LogDebug("Request enqueued",
			zap.Int("queue_length", len(m.queue)),
			zap.Int("max_queue_size", m.config.MaxSize),
		)
		return req.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		common.LogWarn("處理隊列已滿", zap.Int("max_queue_size", m.config.MaxSize))
		return nil, ErrQueueFull
	}
}

// Status 獲取隊列狀態
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return Status{
		QueueLength:    len(m.queue),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		MaxQueueSize:   m.config.MaxSize,
		Workers:        m.config.Workers,
		Running:        m.running && !m.closed,
	}
}

// Close 停止工作協程，尚未處理的請求回傳 ErrClosed
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.done)
	m.mu.Unlock()

	m.wg.Wait()

	for {
		select {
		case req := <-m.queue:
			req.Result <- Result{Error: ErrClosed}
		default:
			common.LogInfo("處理隊列已關閉", zap.Int64("processed", atomic.LoadInt64(&m.processed)))
			return
		}
	}
}
