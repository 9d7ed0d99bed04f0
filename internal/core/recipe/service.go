package recipe

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"recipe-normalizer/internal/core/cache"
	"recipe-normalizer/internal/pkg/common"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service 食譜服務：組裝流程加上結果快取與日誌
type Service struct {
	pipeline *Pipeline
	cache    cache.Store
}

// NewService 創建新的食譜服務，store 可為 nil
func NewService(pipeline *Pipeline, store cache.Store) *Service {
	return &Service{
		pipeline: pipeline,
		cache:    store,
	}
}

// Pipeline 回傳底層組裝流程
func (s *Service) Pipeline() *Pipeline {
	return s.pipeline
}

// Process 組裝單一文件
func (s *Service) Process(ctx context.Context, doc common.RawDocument) (common.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return common.Outcome{}, err
	}

	start := time.Now()
	key := s.getCacheKey(doc)
	if outcome, ok := s.getFromCache(ctx, key); ok {
		return outcome, nil
	}

	outcome := s.pipeline.Process(doc)
	common.LogOutcome(doc.Source, outcome, time.Since(start))

	s.setToCache(ctx, key, outcome)
	return outcome, nil
}

// ProcessBatch 並行組裝多個文件，結果順序與輸入一致
func (s *Service) ProcessBatch(ctx context.Context, docs []common.RawDocument, workers int) ([]common.Outcome, error) {
	if workers <= 0 {
		workers = 1
	}
	outcomes := make([]common.Outcome, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, doc := range docs {
		g.Go(func() error {
			outcome, err := s.Process(gctx, doc)
			if err != nil {
				return err
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// getCacheKey 生成緩存鍵
func (s *Service) getCacheKey(doc common.RawDocument) string {
	opts := s.pipeline.Options()
	flags := "strict"
	if opts.AllowPartial {
		flags = "partial"
	}
	return common.HashStrings(doc.Source, doc.Language, doc.ReceivedAt.UTC().Format(time.RFC3339Nano), flags, doc.Text)
}

// getFromCache 從緩存獲取結果
func (s *Service) getFromCache(ctx context.Context, key string) (common.Outcome, bool) {
	if s.cache == nil {
		return common.Outcome{}, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			common.LogWarn("讀取快取失敗", zap.Error(err))
		}
		return common.Outcome{}, false
	}
	var outcome common.Outcome
	if err := common.ParseJSONBytes(data, &outcome); err != nil {
		common.LogWarn("快取內容無法解析", zap.Error(err))
		return common.Outcome{}, false
	}
	return outcome, true
}

// setToCache 將結果存入緩存
func (s *Service) setToCache(ctx context.Context, key string, outcome common.Outcome) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(outcome)
	if err != nil {
		common.LogWarn("結果序列化失敗", zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, key, data); err != nil {
		common.LogWarn("寫入快取失敗", zap.Error(err))
	}
}
