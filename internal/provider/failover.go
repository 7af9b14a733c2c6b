package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"laureate/internal/domain"
)

// FailoverProvider tries multiple providers in order, falling back to the next
// one when the current fails before producing any output.
type FailoverProvider struct {
	providers []domain.Provider
	logger    *slog.Logger
}

// NewFailoverProvider creates a failover chain from the given providers.
// At least one provider is required.
func NewFailoverProvider(providers []domain.Provider, logger *slog.Logger) *FailoverProvider {
	return &FailoverProvider{
		providers: providers,
		logger:    logger,
	}
}

func (fp *FailoverProvider) Name() string {
	names := make([]string, len(fp.providers))
	for i, p := range fp.providers {
		names[i] = p.Name()
	}
	return "failover(" + strings.Join(names, "→") + ")"
}

func (fp *FailoverProvider) Healthy(ctx context.Context) error {
	var errs []error
	for _, p := range fp.providers {
		err := p.Healthy(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("no healthy provider in failover chain: %w", errors.Join(errs...))
}

// ChatStream streams from each provider in turn. Once a provider has emitted
// a token its error is final, since partial output cannot be taken back.
func (fp *FailoverProvider) ChatStream(ctx context.Context, req domain.ChatRequest, out chan<- domain.StreamEvent) error {
	if len(fp.providers) == 0 {
		return errors.New("failover chain is empty")
	}

	var lastErr error
	for i, p := range fp.providers {
		emitted, err := relayStream(ctx, p, req, out)
		if err == nil {
			if i > 0 {
				fp.logger.Info("failover: used fallback provider",
					"provider", p.Name(),
					"attempt", i+1,
				)
			}
			return nil
		}
		if emitted || ctx.Err() != nil {
			return err
		}
		lastErr = err
		fp.logger.Warn("failover: provider failed, trying next",
			"provider", p.Name(),
			"attempt", i+1,
			"err", err,
		)
	}
	return fmt.Errorf("all providers in failover chain failed: %w", lastErr)
}

// relayStream runs one provider's stream through a private channel so the
// chain can tell whether anything reached out.
func relayStream(ctx context.Context, p domain.Provider, req domain.ChatRequest, out chan<- domain.StreamEvent) (bool, error) {
	relay := make(chan domain.StreamEvent)
	done := make(chan bool)
	go func() {
		emitted := false
		for evt := range relay {
			select {
			case out <- evt:
				emitted = true
			case <-ctx.Done():
			}
		}
		done <- emitted
	}()

	err := p.ChatStream(ctx, req, relay)
	close(relay)
	return <-done, err
}
