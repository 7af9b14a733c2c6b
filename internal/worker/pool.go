// Package worker runs background tasks on a fixed set of goroutines fed by a
// bounded queue.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"laureate/internal/domain"
	"laureate/internal/metrics"

	"github.com/google/uuid"
)

const (
	defaultWorkers        = 8
	defaultQueueSize      = 256
	defaultEnqueueTimeout = 2 * time.Second
	defaultDrainTimeout   = 30 * time.Second
)

var (
	ErrClosed    = errors.New("worker pool closed")
	ErrQueueFull = errors.New("worker queue full")
)

type Config struct {
	Workers   int
	QueueSize int
	// EnqueueTimeout bounds how long Submit waits for room in a full queue.
	EnqueueTimeout time.Duration
	// DrainTimeout bounds how long Run waits for queued tasks at shutdown
	// before cancelling them.
	DrainTimeout time.Duration
	Logger       *slog.Logger
}

type job struct {
	id   string
	name string
	task domain.Task
}

// Pool implements domain.TaskRunner. Tasks are isolated from each other: an
// error or panic in one is logged and does not affect the rest.
type Pool struct {
	queue          chan job
	workers        int
	enqueueTimeout time.Duration
	drainTimeout   time.Duration
	logger         *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.EnqueueTimeout <= 0 {
		cfg.EnqueueTimeout = defaultEnqueueTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pool{
		queue:          make(chan job, cfg.QueueSize),
		workers:        cfg.Workers,
		enqueueTimeout: cfg.EnqueueTimeout,
		drainTimeout:   cfg.DrainTimeout,
		logger:         cfg.Logger,
	}
}

// Submit enqueues task. When the queue is full it waits up to the enqueue
// timeout, then drops the task with ErrQueueFull.
func (p *Pool) Submit(ctx context.Context, name string, task domain.Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrClosed
	}

	j := job{id: uuid.NewString(), name: name, task: task}

	select {
	case p.queue <- j:
		metrics.QueueDepth.Inc()
		return nil
	default:
	}

	p.logger.Warn("worker queue full, waiting", "task", name, "id", j.id)
	timer := time.NewTimer(p.enqueueTimeout)
	defer timer.Stop()

	select {
	case p.queue <- j:
		metrics.QueueDepth.Inc()
		return nil
	case <-timer.C:
		metrics.DroppedJobs.Inc()
		p.logger.Error("task dropped: worker queue full", "task", name, "id", j.id, "waited", p.enqueueTimeout)
		return fmt.Errorf("%w: %s", ErrQueueFull, name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run starts the workers and blocks until ctx is done. It then stops
// accepting tasks and drains the queue; tasks still running after the drain
// timeout have their context cancelled.
func (p *Pool) Run(ctx context.Context) error {
	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	p.logger.Info("worker pool started", "workers", p.workers, "queue", cap(p.queue))
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work(taskCtx)
	}

	<-ctx.Done()
	p.Close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool drained")
	case <-time.After(p.drainTimeout):
		p.logger.Warn("worker pool drain timed out, cancelling tasks", "timeout", p.drainTimeout)
		cancel()
		<-done
	}
	return nil
}

// Close stops accepting tasks. Queued tasks still run.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
}

func (p *Pool) work(ctx context.Context) {
	defer p.wg.Done()
	for j := range p.queue {
		metrics.QueueDepth.Dec()
		p.run(ctx, j)
	}
}

func (p *Pool) run(ctx context.Context, j job) {
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panic", "task", j.name, "id", j.id, "panic", r)
		}
	}()

	start := time.Now()
	if err := j.task(ctx); err != nil {
		p.logger.Error("task failed", "task", j.name, "id", j.id, "err", err)
		return
	}
	p.logger.Debug("task done", "task", j.name, "id", j.id, "elapsed", time.Since(start))
}
