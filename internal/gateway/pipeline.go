package gateway

import (
	"context"
	"errors"

	"laureate/internal/agent"
	"laureate/internal/metrics"
	"laureate/internal/reply"
	"laureate/internal/whatsapp"
)

// process runs one accepted message through normalize, agent, parse and
// dispatch. Each failure is logged here and ends the job without a reply.
func (g *Gateway) process(ctx context.Context, messageID string, payload whatsapp.Payload) {
	metrics.PipelineRuns.Inc()
	logger := g.logger.With("message_id", messageID)

	if !g.cfg.Agent.Ready() {
		logger.Error("agent not initialized, dropping message")
		return
	}

	in, ok := whatsapp.Normalize(payload)
	if !ok {
		logger.Info("message not actionable")
		return
	}
	logger = logger.With("thread", in.ThreadID)

	raw, err := g.cfg.Agent.Respond(ctx, in.ThreadID, in.AgentInput())
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrAgentUnavailable):
			logger.Error("agent unavailable", "err", err)
		case errors.Is(err, agent.ErrAgentTimeout):
			logger.Error("agent timed out", "err", err)
		default:
			logger.Error("agent failed", "err", err)
		}
		return
	}

	r := reply.Parse(raw)
	if reply.IsListFailure(r) {
		metrics.ListParseFailures.Inc()
		logger.Warn("malformed list reply, sending apology", "raw_len", len(raw))
	}

	g.cfg.Dispatcher.Dispatch(ctx, in.Recipient, r)
}
