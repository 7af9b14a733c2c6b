package worker

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// startPool runs a pool until the test ends. The returned channel is closed
// when Run returns.
func startPool(t *testing.T, cfg Config) (*Pool, context.CancelFunc, <-chan struct{}) {
	t.Helper()
	cfg.Logger = testLogger()
	p := New(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := p.Run(ctx); err != nil {
			t.Errorf("run: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return p, cancel, stopped
}

func TestPool_RunsTasks(t *testing.T) {
	p, _, _ := startPool(t, Config{Workers: 2})

	var ran int32
	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		err := p.Submit(context.Background(), "count", func(ctx context.Context) error {
			atomic.AddInt32(&ran, 1)
			done <- struct{}{}
			return nil
		})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d tasks ran", atomic.LoadInt32(&ran))
		}
	}
}

func TestPool_PanicIsolated(t *testing.T) {
	p, _, _ := startPool(t, Config{Workers: 1})

	_ = p.Submit(context.Background(), "boom", func(ctx context.Context) error { panic("boom") })
	_ = p.Submit(context.Background(), "fails", func(ctx context.Context) error { return errors.New("nope") })

	done := make(chan struct{})
	_ = p.Submit(context.Background(), "after", func(ctx context.Context) error {
		close(done)
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestPool_QueueFull(t *testing.T) {
	p, _, _ := startPool(t, Config{Workers: 1, QueueSize: 1, EnqueueTimeout: 20 * time.Millisecond})

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)

	block := func(ctx context.Context) error {
		<-release
		return nil
	}
	_ = p.Submit(context.Background(), "first", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	if err := p.Submit(context.Background(), "queued", block); err != nil {
		t.Fatalf("second task should fit in the queue: %v", err)
	}
	if err := p.Submit(context.Background(), "dropped", block); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestPool_SubmitAfterClose(t *testing.T) {
	p := New(Config{Logger: testLogger()})
	p.Close()
	p.Close()
	if err := p.Submit(context.Background(), "late", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestPool_DrainsOnShutdown(t *testing.T) {
	p, cancel, stopped := startPool(t, Config{Workers: 1})

	var ran int32
	gate := make(chan struct{})
	_ = p.Submit(context.Background(), "slow", func(ctx context.Context) error {
		<-gate
		atomic.AddInt32(&ran, 1)
		return nil
	})
	_ = p.Submit(context.Background(), "queued", func(ctx context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})

	cancel()
	close(gate)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop")
	}
	if atomic.LoadInt32(&ran) != 2 {
		t.Fatalf("queued tasks should drain, ran %d", ran)
	}
}

func TestPool_DrainTimeoutCancelsTasks(t *testing.T) {
	p, cancel, _ := startPool(t, Config{Workers: 1, DrainTimeout: 20 * time.Millisecond})

	cancelled := make(chan struct{})
	started := make(chan struct{})
	_ = p.Submit(context.Background(), "stuck", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	})
	<-started
	cancel()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("task context was not cancelled after the drain timeout")
	}
}
