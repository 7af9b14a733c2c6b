package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"time"

	"laureate/internal/agent"
	"laureate/internal/config"
	"laureate/internal/memory"
	"laureate/internal/provider"

	"github.com/spf13/cobra"
)

const rule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

// doctorReport tallies check outcomes and prints one line per check.
type doctorReport struct {
	w                      io.Writer
	passed, warned, failed int
}

func (r *doctorReport) pass(check, detail string) {
	r.passed++
	r.line("PASS", check, detail)
}

func (r *doctorReport) warn(check, detail string) {
	r.warned++
	r.line("WARN", check, detail)
}

func (r *doctorReport) fail(check, detail string) {
	r.failed++
	r.line("FAIL", check, detail)
}

// record passes with okDetail when err is nil and fails with err otherwise.
func (r *doctorReport) record(check string, err error, okDetail string) {
	if err != nil {
		r.fail(check, err.Error())
		return
	}
	r.pass(check, okDetail)
}

func (r *doctorReport) line(status, check, detail string) {
	fmt.Fprintf(r.w, "  [%s] %-20s %s\n", status, check, detail)
}

func (r *doctorReport) summary() error {
	fmt.Fprintf(r.w, "\n%s\nResults: %d passed, %d warnings, %d failed\n", rule, r.passed, r.warned, r.failed)
	switch {
	case r.failed > 0:
		fmt.Fprintln(r.w, "\nFix the failed checks before running 'laureate serve'.")
		return fmt.Errorf("%d check(s) failed", r.failed)
	case r.warned > 0:
		fmt.Fprintln(r.w, "\nLAUREATE should work, but consider fixing the warnings.")
	default:
		fmt.Fprintln(r.w, "\nAll checks passed. LAUREATE is ready to serve.")
	}
	return nil
}

func doctorCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your LAUREATE installation",
		Long: `Verifies that the configuration, credentials, database, prompt profile and
model provider are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			r := &doctorReport{w: cmd.OutOrStdout()}
			fmt.Fprintf(r.w, "LAUREATE Doctor v%s\n%s\n\n", version, rule)

			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err != nil {
				r.warn("Config file", fmt.Sprintf("not found at %s, using defaults", cfgPath))
			} else {
				r.pass("Config file", cfgPath)
			}

			cfg, _, err := config.LoadOrDefaults(cfgPath)
			if err != nil {
				r.fail("Config validation", err.Error())
				return r.summary()
			}
			r.pass("Config validation", "valid")

			r.record("WhatsApp", config.RequireCredentials(cfg), "phone number id "+cfg.WhatsApp.PhoneNumberID)
			if cfg.WhatsApp.AppSecret == "" {
				r.warn("Signatures", "whatsapp.appSecret not set, webhook bodies are not authenticated")
			} else {
				r.pass("Signatures", "X-Hub-Signature-256 enforced")
			}

			schema, err := checkDatabase(cmd.Context(), cfg.Memory.DBPath, logger)
			r.record("Database", err, fmt.Sprintf("%s (schema v%d)", cfg.Memory.DBPath, schema))

			checkPrompt(r, cfg.Agent.PromptFile)
			checkProvider(cmd.Context(), r, cfg.Provider, offline)

			addr := cfg.Server.Addr()
			if err := checkPort(addr); err != nil {
				r.warn("Listen address", fmt.Sprintf("%s may be in use: %v", addr, err))
			} else {
				r.pass("Listen address", addr+" available")
			}

			if cfg.General.LogFile != "" {
				if err := os.MkdirAll(filepath.Dir(cfg.General.LogFile), 0o755); err != nil {
					r.warn("Log file", fmt.Sprintf("cannot create log directory: %v", err))
				} else {
					r.pass("Log file", cfg.General.LogFile)
				}
			}

			return r.summary()
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip the provider reachability check")
	return cmd
}

func checkPrompt(r *doctorReport, path string) {
	if path == "" {
		r.pass("Prompt profile", agent.DefaultPromptProfile().Name+" (built-in)")
		return
	}
	p, err := agent.LoadPromptProfile(path)
	if err != nil {
		r.fail("Prompt profile", err.Error())
		return
	}
	r.pass("Prompt profile", p.Name)
}

func checkProvider(ctx context.Context, r *doctorReport, pc config.ProviderConfig, offline bool) {
	prov, err := provider.New(pc, logger)
	if err != nil {
		r.fail("Provider", err.Error())
		return
	}
	check := "Provider: " + prov.Name()
	switch {
	case pc.APIKey == "" && pc.Name != "ollama":
		r.warn(check, "no API key configured")
	case offline:
		r.pass(check, "configured")
	default:
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		r.record(check, prov.Healthy(ctx), "reachable")
	}
}

// checkDatabase opens the store the way serve does, which applies pending
// migrations, and returns the resulting schema version.
func checkDatabase(ctx context.Context, dbPath string, logger *slog.Logger) (int, error) {
	store, err := memory.NewSQLiteStore(dbPath, logger)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.EnsureThread(ctx, "_doctor"); err != nil {
		return 0, fmt.Errorf("not writable: %w", err)
	}
	if err := store.DeleteThread(ctx, "_doctor"); err != nil {
		return 0, fmt.Errorf("not writable: %w", err)
	}
	v, err := store.SchemaVersion()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
