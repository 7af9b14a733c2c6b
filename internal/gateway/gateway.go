package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"

	"laureate/internal/domain"
	"laureate/internal/metrics"
	"laureate/internal/whatsapp"
)

const (
	// DefaultMaxBodyBytes caps a webhook POST body.
	DefaultMaxBodyBytes = 1 << 20
	RunningMessage      = "LAUREATE WhatsApp Agent is running!"
)

// Deduper remembers delivered message ids.
type Deduper interface {
	// CheckAndRemember reports whether id was seen before and records it.
	CheckAndRemember(id string) bool
}

// Responder produces one reply string per user turn.
type Responder interface {
	Ready() bool
	Respond(ctx context.Context, threadID, input string) (string, error)
}

type Config struct {
	WebhookPath  string
	VerifyToken  string
	AppSecret    string // empty disables signature checks
	MaxBodyBytes int64
	MetricsPath  string // serves metrics.Default; empty disables the endpoint

	Dedup      Deduper
	Runner     domain.TaskRunner
	Agent      Responder
	Dispatcher domain.ReplyDispatcher
	Logger     *slog.Logger
}

// Gateway is the webhook front door: it verifies the subscription, accepts
// deliveries exactly once per message id and hands each new message to a
// background pipeline.
type Gateway struct {
	cfg    Config
	mux    *http.ServeMux
	logger *slog.Logger
}

func New(cfg Config) *Gateway {
	if cfg.WebhookPath == "" {
		cfg.WebhookPath = "/whatsapp"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	g := &Gateway{cfg: cfg, mux: http.NewServeMux(), logger: cfg.Logger}

	g.mux.HandleFunc("GET "+cfg.WebhookPath, g.handleVerification)
	g.mux.HandleFunc("POST "+cfg.WebhookPath, g.handleIncoming)
	g.mux.HandleFunc("GET /{$}", g.handleRoot)
	g.mux.HandleFunc("GET /health", g.handleHealth)
	if cfg.MetricsPath != "" {
		g.mux.Handle("GET "+cfg.MetricsPath, metrics.Default.Handler())
	}
	return g
}

// Handler returns the HTTP handler to mount on the server.
func (g *Gateway) Handler() http.Handler {
	return g.mux
}

// handleVerification answers the platform's subscription handshake.
func (g *Gateway) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.verify_token") == g.cfg.VerifyToken {
		g.logger.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, html.EscapeString(q.Get("hub.challenge")))
		return
	}

	g.logger.Warn("webhook verification failed", "mode", q.Get("hub.mode"))
	http.Error(w, "Verification token mismatch", http.StatusForbidden)
}

// handleIncoming acknowledges a delivery at once. New messages are queued for
// the pipeline; duplicates and non-message events are acknowledged and dropped.
func (g *Gateway) handleIncoming(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, g.cfg.MaxBodyBytes))
	if err != nil {
		metrics.WebhooksRejected.Inc()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			g.logger.Warn("webhook body too large", "limit", tooLarge.Limit)
			http.Error(w, "Request entity too large", http.StatusRequestEntityTooLarge)
			return
		}
		g.logger.Warn("webhook body unreadable", "err", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if g.cfg.AppSecret != "" {
		if !whatsapp.VerifySignature(body, g.cfg.AppSecret, r.Header.Get(whatsapp.SignatureHeader)) {
			metrics.WebhooksRejected.Inc()
			g.logger.Warn("webhook invalid signature")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	if !json.Valid(body) {
		metrics.WebhooksRejected.Inc()
		g.logger.Warn("webhook body is not JSON")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	// Valid JSON of an unexpected shape carries no message; acknowledge it so
	// the platform does not redeliver.
	var payload whatsapp.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.WebhooksIgnored.Inc()
		g.logger.Info("non-message webhook", "err", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	id, ok := payload.FirstMessageID()
	if !ok {
		metrics.WebhooksIgnored.Inc()
		g.logger.Info("non-message webhook")
		w.WriteHeader(http.StatusOK)
		return
	}

	if g.cfg.Dedup.CheckAndRemember(id) {
		metrics.WebhooksDuplicate.Inc()
		g.logger.Info("ignoring duplicate message", "message_id", id)
		w.WriteHeader(http.StatusOK)
		return
	}

	metrics.WebhooksAccepted.Inc()
	task := func(ctx context.Context) error {
		g.process(ctx, id, payload)
		return nil
	}
	// The id stays remembered even if the job is dropped: a redelivery is
	// still a duplicate.
	if err := g.cfg.Runner.Submit(r.Context(), "message "+id, task); err != nil {
		g.logger.Error("message not queued", "message_id", id, "err", err)
	}
	w.WriteHeader(http.StatusOK)
}

func (g *Gateway) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": RunningMessage})
}

func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"agent":  g.cfg.Agent.Ready(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
