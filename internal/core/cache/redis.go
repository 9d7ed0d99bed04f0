package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// keyPrefix Redis 鍵前綴
const keyPrefix = "recipe:outcome:"

// RedisStore 以 Redis 共享組裝結果
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore 創建 Redis 快取並測試連線
func NewRedisStore(cfg *config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// 測試連接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("Redis 快取已連線", zap.String("addr", cfg.Redis.Addr))
	return &RedisStore{client: client, ttl: cfg.TTL}, nil
}

// Get 獲取緩存
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			common.LogCacheMiss("redis", key)
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to get cache: %w", err)
	}
	common.LogCacheHit("redis", key)
	return data, nil
}

// Set 設置緩存
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, redisKey(key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// GetStats 獲取連線池統計
func (s *RedisStore) GetStats() map[string]interface{} {
	st := s.client.PoolStats()
	return map[string]interface{}{
		"backend":     "redis",
		"hits":        st.Hits,
		"misses":      st.Misses,
		"timeouts":    st.Timeouts,
		"total_conns": st.TotalConns,
		"idle_conns":  st.IdleConns,
	}
}

// Close 關閉連線
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// redisKey 生成緩存鍵
func redisKey(key string) string {
	return keyPrefix + key
}
