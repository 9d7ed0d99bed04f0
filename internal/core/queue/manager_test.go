package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"recipe-normalizer/internal/infrastructure/config"
	"recipe-normalizer/internal/pkg/common"
)

func echoHandler(_ context.Context, doc common.RawDocument) (common.Outcome, error) {
	return common.Outcome{
		Status: common.OutcomeSucceeded,
		Recipe: &common.Recipe{Source: doc.Source},
	}, nil
}

func wait(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for result")
	}
	return Result{}
}

func TestManager_Process(t *testing.T) {
	m := NewManager(&config.QueueConfig{Workers: 2, MaxSize: 4})
	m.Start(echoHandler)
	defer m.Close()

	ch, err := m.Enqueue(context.Background(), common.RawDocument{Source: "a.txt"})
	if err != nil {
		t.Fatal(err)
	}
	res := wait(t, ch)
	if res.Error != nil || res.Outcome.Recipe.Source != "a.txt" {
		t.Errorf("result = %+v", res)
	}

	st := m.Status()
	if st.ProcessedCount != 1 || !st.Running || st.Workers != 2 {
		t.Errorf("status = %+v", st)
	}
}

func TestManager_QueueFull(t *testing.T) {
	// 未啟動工作協程，請求只會累積
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 1})
	defer m.Close()

	if _, err := m.Enqueue(context.Background(), common.RawDocument{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Enqueue(context.Background(), common.RawDocument{}); !errors.Is(err, ErrQueueFull) {
		t.Errorf("err = %v, want ErrQueueFull", err)
	}
}

func TestManager_CanceledRequest(t *testing.T) {
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 2})
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := m.Enqueue(ctx, common.RawDocument{})
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	m.Start(func(context.Context, common.RawDocument) (common.Outcome, error) {
		t.Error("handler called for a canceled request")
		return common.Outcome{}, nil
	})
	defer m.Close()

	if res := wait(t, ch); !errors.Is(res.Error, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", res.Error)
	}
}

func TestManager_Close(t *testing.T) {
	m := NewManager(&config.QueueConfig{Workers: 1, MaxSize: 2})
	ch, err := m.Enqueue(context.Background(), common.RawDocument{})
	if err != nil {
		t.Fatal(err)
	}
	m.Close()
	m.Close()

	if res := wait(t, ch); !errors.Is(res.Error, ErrClosed) {
		t.Errorf("pending request error = %v, want ErrClosed", res.Error)
	}
	if _, err := m.Enqueue(context.Background(), common.RawDocument{}); !errors.Is(err, ErrClosed) {
		t.Errorf("enqueue after close = %v", err)
	}
	if m.Status().Running {
		t.Error("closed queue reports running")
	}
}
