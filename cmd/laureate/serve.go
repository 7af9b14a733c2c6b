package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"laureate/internal/agent"
	"laureate/internal/config"
	"laureate/internal/dedup"
	"laureate/internal/gateway"
	"laureate/internal/memory"
	"laureate/internal/provider"
	"laureate/internal/whatsapp"
	"laureate/internal/worker"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const pruneInterval = time.Hour

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the WhatsApp webhook gateway",
		Long:  "Starts the webhook server, the worker pool and the tutor agent. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.RequireCredentials(cfg); err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg.General)
	if err != nil {
		return err
	}
	defer closeLog()
	logger = log

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := memory.NewSQLiteStore(cfg.Memory.DBPath, logger)
	if err != nil {
		return fmt.Errorf("memory store: %w", err)
	}
	defer store.Close()

	sessions := agent.NewSessionManager(agent.SessionConfig{
		RecursionLimit: cfg.Agent.RecursionLimit,
		Logger:         logger,
	})
	// A gateway without an agent still acknowledges webhooks; messages are
	// dropped with an error log until the agent is available.
	if rt, err := buildAgent(cfg, store, logger); err != nil {
		logger.Error("agent initialization failed", "err", err)
	} else {
		sessions.Install(rt)
		logger.Info("agent initialized", "provider", cfg.Provider.Name, "model", cfg.Provider.Model)
	}

	client := whatsapp.NewClient(whatsapp.ClientConfig{
		APIBase:       cfg.WhatsApp.APIBase,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		Timeout:       time.Duration(cfg.WhatsApp.SendTimeoutSeconds) * time.Second,
		SendRate:      float64(cfg.WhatsApp.SendRatePerSecond),
		Logger:        logger,
	})

	pool := worker.New(worker.Config{
		Workers:        cfg.Worker.Workers,
		QueueSize:      cfg.Worker.QueueSize,
		EnqueueTimeout: time.Duration(cfg.Worker.EnqueueTimeoutMs) * time.Millisecond,
		DrainTimeout:   time.Duration(cfg.Worker.DrainTimeoutSeconds) * time.Second,
		Logger:         logger,
	})

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Endpoint
	}
	gw := gateway.New(gateway.Config{
		WebhookPath:  cfg.WhatsApp.WebhookPath,
		VerifyToken:  cfg.WhatsApp.VerifyToken,
		AppSecret:    cfg.WhatsApp.AppSecret,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		MetricsPath:  metricsPath,
		Dedup:        dedup.New(cfg.WhatsApp.DedupCapacity),
		Runner:       pool,
		Agent:        sessions,
		Dispatcher:   whatsapp.NewDispatcher(client, logger),
		Logger:       logger,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           gw.Handler(),
		ReadHeaderTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("gateway listening", "addr", srv.Addr, "webhook", cfg.WhatsApp.WebhookPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down gateway...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSeconds)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return pool.Run(gctx)
	})

	if cfg.Memory.RetentionDays > 0 {
		retention := time.Duration(cfg.Memory.RetentionDays) * 24 * time.Hour
		g.Go(func() error {
			pruneLoop(gctx, store, retention)
			return nil
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("gateway stopped", "err", err)
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildAgent wires the provider, prompt profile and thread memory into the
// agent runtime.
func buildAgent(cfg *config.Config, store *memory.SQLiteStore, logger *slog.Logger) (*agent.Runtime, error) {
	prov, err := provider.New(cfg.Provider, logger)
	if err != nil {
		return nil, fmt.Errorf("provider: %w", err)
	}

	prompt := agent.DefaultPromptProfile()
	if cfg.Agent.PromptFile != "" {
		prompt, err = agent.LoadPromptProfile(cfg.Agent.PromptFile)
		if err != nil {
			return nil, err
		}
	}

	return agent.NewRuntime(agent.RuntimeConfig{
		Provider:      prov,
		Store:         store,
		Prompt:        prompt,
		MaxHistory:    cfg.Memory.MaxHistory,
		RatePerMinute: cfg.Provider.RateLimitPerMinute,
		Model:         cfg.Provider.Model,
		Logger:        logger,
	}), nil
}

// pruneLoop deletes threads idle for longer than retention, once at start and
// then every pruneInterval, until ctx is done.
func pruneLoop(ctx context.Context, store *memory.SQLiteStore, retention time.Duration) {
	prune := func() {
		if _, err := store.PruneIdle(ctx, time.Now().Add(-retention)); err != nil && ctx.Err() == nil {
			logger.Warn("thread pruning failed", "err", err)
		}
	}

	prune()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
