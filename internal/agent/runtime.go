package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"laureate/internal/domain"

	"golang.org/x/time/rate"
)

const defaultHistoryLimit = 40

// ErrRecursionLimit is returned when a turn is not allowed a single model step.
var ErrRecursionLimit = errors.New("recursion limit reached")

// Runtime is a tool-less conversational agent: one model step per turn, with
// per-thread history kept in a ThreadStore.
type Runtime struct {
	provider   domain.Provider
	store      domain.ThreadStore
	prompt     *PromptProfile
	maxHistory int
	limiter    *rate.Limiter
	model      string
	logger     *slog.Logger
}

type RuntimeConfig struct {
	Provider   domain.Provider
	Store      domain.ThreadStore
	Prompt     *PromptProfile // nil = built-in profile
	MaxHistory int
	// RatePerMinute caps model calls across all threads; 0 disables pacing.
	RatePerMinute int
	Model         string // recorded with assistant messages
	Logger        *slog.Logger
}

func NewRuntime(cfg RuntimeConfig) *Runtime {
	if cfg.Prompt == nil {
		cfg.Prompt = DefaultPromptProfile()
	}
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = defaultHistoryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}
	return &Runtime{
		provider:   cfg.Provider,
		store:      cfg.Store,
		prompt:     cfg.Prompt,
		maxHistory: cfg.MaxHistory,
		limiter:    limiter,
		model:      cfg.Model,
		logger:     cfg.Logger,
	}
}

// Stream runs one turn for req.ThreadID, writing model tokens to out as they
// arrive. The turn is persisted only when the model stream completes.
func (r *Runtime) Stream(ctx context.Context, req domain.AgentRequest, out chan<- domain.StreamEvent) error {
	// A tool-less turn always needs exactly one step.
	if req.RecursionLimit < 1 {
		return fmt.Errorf("%w: limit %d", ErrRecursionLimit, req.RecursionLimit)
	}

	if err := r.store.EnsureThread(ctx, req.ThreadID); err != nil {
		return fmt.Errorf("thread %s: %w", req.ThreadID, err)
	}

	history, err := r.store.GetMessages(ctx, req.ThreadID, r.maxHistory)
	if err != nil {
		r.logger.Warn("failed to load history, continuing without it", "thread", req.ThreadID, "err", err)
		history = nil
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()
	text, err := r.relay(ctx, domain.ChatRequest{Messages: r.prompt.BuildMessages(history, req.Input)}, out)
	if err != nil {
		return fmt.Errorf("model stream: %w", err)
	}
	latency := time.Since(start)

	r.logger.Debug("turn complete",
		"thread", req.ThreadID,
		"history", len(history),
		"reply_len", len(text),
		"latency_ms", latency.Milliseconds(),
	)

	// The reply is already on its way; a failed save only costs future context.
	if err := r.store.AddMessage(ctx, req.ThreadID, domain.MessageRecord{Role: "user", Content: req.Input}); err != nil {
		r.logger.Warn("failed to save user message", "thread", req.ThreadID, "err", err)
		return nil
	}
	if err := r.store.AddMessage(ctx, req.ThreadID, domain.MessageRecord{
		Role:      "assistant",
		Content:   text,
		Model:     r.model,
		LatencyMs: latency.Milliseconds(),
	}); err != nil {
		r.logger.Warn("failed to save assistant message", "thread", req.ThreadID, "err", err)
	}
	return nil
}

// relay streams from the provider into out while accumulating the text.
func (r *Runtime) relay(ctx context.Context, req domain.ChatRequest, out chan<- domain.StreamEvent) (string, error) {
	streamCh := make(chan domain.StreamEvent, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- r.provider.ChatStream(ctx, req, streamCh)
		close(streamCh)
	}()

	var sb strings.Builder
	for evt := range streamCh {
		if evt.Type != domain.StreamToken {
			continue
		}
		sb.WriteString(evt.Content)
		select {
		case out <- evt:
		case <-ctx.Done():
		}
	}
	return sb.String(), <-errCh
}
