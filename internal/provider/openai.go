package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"laureate/internal/domain"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAI implements domain.Provider for any OpenAI-compatible chat endpoint
// (Groq, OpenAI, Ollama's /v1).
type OpenAI struct {
	name        string
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

type OpenAIConfig struct {
	Name        string // label used in logs and errors
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration // response header timeout
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = SharedHTTPClient(cfg.Timeout)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	// Retries stay off: a failed turn is reported, not replayed.
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.APIBase),
		option.WithHTTPClient(cfg.HTTPClient),
		option.WithMaxRetries(0),
	)

	return &OpenAI{
		name:        cfg.Name,
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      cfg.Logger,
	}
}

func (o *OpenAI) Name() string  { return o.name }
func (o *OpenAI) Model() string { return o.model }

func (o *OpenAI) Healthy(ctx context.Context) error {
	if _, err := o.client.Models.List(ctx); err != nil {
		return fmt.Errorf("%s not reachable: %w", o.name, err)
	}
	return nil
}

// ChatStream sends the conversation and writes each content delta to out as a
// StreamToken event. It does not close out.
func (o *OpenAI) ChatStream(ctx context.Context, req domain.ChatRequest, out chan<- domain.StreamEvent) error {
	model := req.Model
	if model == "" {
		model = o.model
	}
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toOpenAIMessages(req.Messages),
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = o.temperature
	}
	if temperature > 0 {
		params.Temperature = openai.Float(temperature)
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = o.maxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	stream := o.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	chunks := 0
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		chunks++
		select {
		case out <- domain.StreamEvent{Type: domain.StreamToken, Content: delta}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%s stream: %w", o.name, err)
	}

	o.logger.Debug("stream complete", "provider", o.name, "model", model, "chunks", chunks)
	return nil
}

func toOpenAIMessages(msgs []domain.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(m.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
