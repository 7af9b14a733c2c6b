package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIBase    = "https://graph.facebook.com/v20.0"
	DefaultTimeout    = 15 * time.Second
	DefaultSendRate   = 80 // messages per second, Cloud API default throughput
	maxErrorBodyBytes = 4096
)

// ErrSendTimeout marks a send that did not complete within the timeout.
var ErrSendTimeout = errors.New("whatsapp send timed out")

// APIError is a non-2xx response from the Cloud API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp API %d: %s", e.Status, e.Body)
}

// Sender posts one outbound message to the platform.
type Sender interface {
	Send(ctx context.Context, msg OutboundMessage) error
}

type ClientConfig struct {
	APIBase       string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
	// SendRate paces sends per second; <= 0 disables pacing.
	SendRate   float64
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client sends messages through the WhatsApp Cloud API. One attempt per
// message; it never retries.
type Client struct {
	endpoint string
	token    string
	timeout  time.Duration
	limiter  *rate.Limiter
	http     *http.Client
	logger   *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		// The per-send context carries the deadline.
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.SendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), max(1, int(cfg.SendRate)))
	}
	return &Client{
		endpoint: fmt.Sprintf("%s/%s/messages", cfg.APIBase, cfg.PhoneNumberID),
		token:    cfg.AccessToken,
		timeout:  cfg.Timeout,
		limiter:  limiter,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
	}
}

// Send posts msg and waits for the response, bounded by the client timeout.
func (c *Client) Send(ctx context.Context, msg OutboundMessage) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		// The limiter fails early when the slot lies past the deadline; only a
		// cancelled parent is not a timeout.
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("waiting for send slot: %w", err)
		}
		return fmt.Errorf("%w: waiting for send slot: %w", ErrSendTimeout, err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", ErrSendTimeout, err)
		}
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &APIError{Status: resp.StatusCode, Body: string(respBody)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.logger.Debug("whatsapp message sent", "to", msg.To, "kind", msg.Kind())
	return nil
}
