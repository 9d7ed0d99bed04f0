package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipe-normalizer/internal/infrastructure/config"
)

func newTestManager(maxSize int) (*Manager, *time.Time) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(&config.CacheConfig{Enabled: true, MaxSize: maxSize, TTL: time.Minute})
	m.now = func() time.Time { return now }
	return m, &now
}

func TestManager_GetSet(t *testing.T) {
	m, _ := newTestManager(10)
	defer m.Close()
	ctx := context.Background()

	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty cache error = %v, want ErrMiss", err)
	}
	if err := m.Set(ctx, "a", []byte("uno")); err != nil {
		t.Fatal(err)
	}
	got, err := m.Get(ctx, "a")
	if err != nil || string(got) != "uno" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	stats := m.GetStats()
	if stats["hits"].(int64) != 1 || stats["misses"].(int64) != 1 || stats["size"].(int) != 1 {
		t.Errorf("stats = %v", stats)
	}
}

func TestManager_Expiry(t *testing.T) {
	m, now := newTestManager(10)
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "a", []byte("x")); err != nil {
		t.Fatal(err)
	}
	*now = now.Add(2 * time.Minute)
	if _, err := m.Get(ctx, "a"); !errors.Is(err, ErrMiss) {
		t.Errorf("expired entry error = %v, want ErrMiss", err)
	}
	if m.GetStats()["evictions"].(int64) != 1 {
		t.Errorf("evictions = %v", m.GetStats()["evictions"])
	}
}

func TestManager_EvictLRU(t *testing.T) {
	m, now := newTestManager(2)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "a", []byte("a"))
	*now = now.Add(time.Second)
	m.Set(ctx, "b", []byte("b"))
	// a 被讀取過，b 應被淘汰
	if _, err := m.Get(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := m.Set(ctx, "c", []byte("c")); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Get(ctx, "b"); !errors.Is(err, ErrMiss) {
		t.Error("least used entry was not evicted")
	}
	for _, k := range []string{"a", "c"} {
		if _, err := m.Get(ctx, k); err != nil {
			t.Errorf("Get(%s) error = %v", k, err)
		}
	}
}

func TestManager_OverwriteAtCapacity(t *testing.T) {
	m, _ := newTestManager(1)
	defer m.Close()
	ctx := context.Background()

	m.Set(ctx, "a", []byte("1"))
	if err := m.Set(ctx, "a", []byte("2")); err != nil {
		t.Fatal(err)
	}
	got, _ := m.Get(ctx, "a")
	if string(got) != "2" || m.GetStats()["evictions"].(int64) != 0 {
		t.Errorf("overwrite = %q, stats %v", got, m.GetStats())
	}
}

func TestNew(t *testing.T) {
	store, err := New(&config.CacheConfig{Enabled: false})
	if err != nil || store != nil {
		t.Errorf("disabled cache = %v, %v", store, err)
	}

	store, err = New(&config.CacheConfig{Enabled: true, Backend: "memory", MaxSize: 1, TTL: time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*Manager); !ok {
		t.Errorf("memory backend = %T", store)
	}
	store.Close()

	if _, err := New(&config.CacheConfig{Enabled: true, Backend: "memcached"}); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestRedisKey(t *testing.T) {
	if got := redisKey("abc"); got != "recipe:outcome:abc" {
		t.Errorf("redisKey = %q", got)
	}
}
