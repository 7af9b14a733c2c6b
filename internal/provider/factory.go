package provider

import (
	"fmt"
	"log/slog"
	"time"

	"laureate/internal/config"
	"laureate/internal/domain"
)

// preset holds the endpoint defaults for a known OpenAI-compatible backend.
type preset struct {
	APIBase string
	Model   string
}

var presets = map[string]preset{
	"groq":   {APIBase: "https://api.groq.com/openai/v1", Model: "meta-llama/llama-4-scout-17b-16e-instruct"},
	"openai": {APIBase: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
	"ollama": {APIBase: "http://localhost:11434/v1", Model: "llama3.1"},
}

// Known reports whether name is a built-in preset.
func Known(name string) bool {
	_, ok := presets[name]
	return ok
}

// New builds the configured provider. Fallback endpoints, if any, are chained
// behind the primary in a FailoverProvider.
func New(pc config.ProviderConfig, logger *slog.Logger) (domain.Provider, error) {
	primary, err := newEndpoint(pc.Endpoint, pc, logger)
	if err != nil {
		return nil, err
	}
	if len(pc.Fallbacks) == 0 {
		return primary, nil
	}

	chain := []domain.Provider{primary}
	for i, fb := range pc.Fallbacks {
		p, err := newEndpoint(fb, pc, logger)
		if err != nil {
			return nil, fmt.Errorf("fallback %d: %w", i, err)
		}
		chain = append(chain, p)
	}
	return NewFailoverProvider(chain, logger), nil
}

// newEndpoint resolves one endpoint against its preset. Unknown names are
// treated as OpenAI-compatible when an API base is given.
func newEndpoint(ep config.Endpoint, pc config.ProviderConfig, logger *slog.Logger) (*OpenAI, error) {
	ps, ok := presets[ep.Name]
	if !ok && ep.APIBase == "" {
		return nil, fmt.Errorf("provider %q: no preset and no apiBase configured", ep.Name)
	}
	apiBase := ep.APIBase
	if apiBase == "" {
		apiBase = ps.APIBase
	}
	model := ep.Model
	if model == "" {
		model = ps.Model
	}
	if model == "" {
		return nil, fmt.Errorf("provider %q: no model configured", ep.Name)
	}

	return NewOpenAI(OpenAIConfig{
		Name:        ep.Name,
		APIKey:      ep.APIKey,
		APIBase:     apiBase,
		Model:       model,
		Temperature: pc.Temperature,
		MaxTokens:   pc.MaxTokens,
		Timeout:     time.Duration(pc.TimeoutSeconds) * time.Second,
		Logger:      logger.With("provider", ep.Name),
	}), nil
}
