package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"laureate/internal/domain"
	"laureate/internal/metrics"
)

var (
	// ErrAgentUnavailable means no agent has been installed yet.
	ErrAgentUnavailable = errors.New("agent unavailable")
	// ErrAgentTimeout wraps a turn that ran past its deadline.
	ErrAgentTimeout = errors.New("agent timed out")
	// ErrAgentFailed wraps any other failed turn.
	ErrAgentFailed = errors.New("agent failed")
)

const defaultRecursionLimit = 100

// SessionManager turns one user input into one reply string by folding the
// installed agent's token stream. Conversation state lives in the agent,
// keyed by thread id.
type SessionManager struct {
	agent          atomic.Pointer[installedAgent]
	recursionLimit int
	logger         *slog.Logger
}

type installedAgent struct {
	domain.Agent
}

type SessionConfig struct {
	RecursionLimit int
	Logger         *slog.Logger
}

func NewSessionManager(cfg SessionConfig) *SessionManager {
	if cfg.RecursionLimit == 0 {
		cfg.RecursionLimit = defaultRecursionLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &SessionManager{
		recursionLimit: cfg.RecursionLimit,
		logger:         cfg.Logger,
	}
}

// Install sets the agent used by subsequent Respond calls. Installing nil
// makes the manager unavailable again.
func (sm *SessionManager) Install(a domain.Agent) {
	if a == nil {
		sm.agent.Store(nil)
		sm.logger.Info("agent uninstalled")
		return
	}
	sm.agent.Store(&installedAgent{a})
	sm.logger.Info("agent installed", "recursion_limit", sm.recursionLimit)
}

// Ready reports whether an agent is installed.
func (sm *SessionManager) Ready() bool {
	return sm.agent.Load() != nil
}

// Respond runs one turn and returns the concatenated token fragments in
// arrival order. No fragments yields "". Failures are never retried.
func (sm *SessionManager) Respond(ctx context.Context, threadID, input string) (string, error) {
	a := sm.agent.Load()
	if a == nil {
		return "", ErrAgentUnavailable
	}

	start := time.Now()
	out := make(chan domain.StreamEvent, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Stream(ctx, domain.AgentRequest{
			ThreadID:       threadID,
			Input:          input,
			RecursionLimit: sm.recursionLimit,
		}, out)
		close(out)
	}()

	var sb strings.Builder
	fragments := 0
	for evt := range out {
		if evt.Type == domain.StreamToken {
			sb.WriteString(evt.Content)
			fragments++
		}
	}
	err := <-errCh
	metrics.AgentLatency.ObserveSince(start)

	if err != nil {
		metrics.AgentFailures.Inc()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: thread %s: %w", ErrAgentTimeout, threadID, err)
		}
		return "", fmt.Errorf("%w: thread %s: %w", ErrAgentFailed, threadID, err)
	}

	sm.logger.Debug("agent turn folded",
		"thread", threadID,
		"fragments", fragments,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return sb.String(), nil
}
