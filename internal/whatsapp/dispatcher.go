package whatsapp

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"laureate/internal/domain"
	"laureate/internal/metrics"
)

// Dispatcher maps structured replies to Cloud API payloads and sends them.
// It implements domain.ReplyDispatcher.
type Dispatcher struct {
	sender Sender
	logger *slog.Logger
}

func NewDispatcher(sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{sender: sender, logger: logger}
}

// Dispatch sends reply to recipient. Failures are logged and swallowed: the
// platform offers no way to report them back to the user.
func (d *Dispatcher) Dispatch(ctx context.Context, recipient string, reply domain.Reply) {
	msg, ok := d.build(recipient, reply)
	if !ok {
		return
	}

	start := time.Now()
	err := d.sender.Send(ctx, msg)
	metrics.SendLatency.ObserveSince(start)
	if err != nil {
		metrics.DispatchFailures.Inc()
		d.logFailure(recipient, msg.Kind(), err)
		return
	}

	switch reply.Kind() {
	case domain.ReplyButtons:
		metrics.DispatchButtons.Inc()
	case domain.ReplyList:
		metrics.DispatchList.Inc()
	default:
		metrics.DispatchText.Inc()
	}
	d.logger.Info("reply dispatched", "to", recipient, "kind", msg.Kind())
}

func (d *Dispatcher) build(recipient string, reply domain.Reply) (OutboundMessage, bool) {
	switch r := reply.(type) {
	case domain.TextReply:
		return TextMessage(recipient, r.Body), true
	case domain.ButtonReply:
		if r.Body == "" {
			// Interactive messages require a body; there is nothing to send.
			d.logger.Warn("button reply without body not sent", "to", recipient, "options", len(r.Options))
			return OutboundMessage{}, false
		}
		if len(r.Options) == 0 {
			return TextMessage(recipient, r.Body), true
		}
		return ButtonsMessage(recipient, r.Body, r.Options), true
	case domain.ListReply:
		return ListMessage(recipient, r), true
	default:
		d.logger.Error("unknown reply type", "to", recipient, "type", reply)
		return OutboundMessage{}, false
	}
}

func (d *Dispatcher) logFailure(recipient, kind string, err error) {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		d.logger.Error("whatsapp rejected message",
			"to", recipient, "kind", kind, "status", apiErr.Status, "body", apiErr.Body)
	case errors.Is(err, ErrSendTimeout):
		d.logger.Error("whatsapp send timed out", "to", recipient, "kind", kind, "err", err)
	default:
		d.logger.Error("whatsapp send failed", "to", recipient, "kind", kind, "err", err)
	}
}
