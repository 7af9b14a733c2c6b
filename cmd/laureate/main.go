package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"laureate/internal/config"
	"laureate/internal/provider"

	"github.com/spf13/cobra"
)

var (
	version    = "0.1.0"
	logger     *slog.Logger
	configPath string // overridable via --config flag
)

func main() {
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	root := &cobra.Command{
		Use:   "laureate",
		Short: "LAUREATE: WhatsApp gateway for the JAMB/Post-UTME tutor",
		Long: `laureate receives WhatsApp Cloud API webhooks, asks the tutor agent for a
reply and sends it back as text, reply buttons or a list.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.laureate/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(chatCmd())
	root.AddCommand(parseCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(configCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(backupCmd())
	root.AddCommand(restoreCmd())
	root.AddCommand(serviceCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return config.ExpandPath(configPath)
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the config file, falling back to defaults plus the
// environment when the file does not exist.
func loadConfig() (*config.Config, error) {
	cfgPath := resolveConfigPath()
	cfg, found, err := config.LoadOrDefaults(cfgPath)
	if err != nil {
		return nil, err
	}
	if !found {
		logger.Info("config file not found, using defaults and environment", "path", cfgPath)
	}
	return cfg, nil
}

// newLogger builds the process logger from the general section. The returned
// closer releases the log file, if any.
func newLogger(g config.GeneralConfig) (*slog.Logger, func() error, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(g.LogLevel)); err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", g.LogLevel, err)
	}

	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	if g.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(g.LogFile), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(g.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), closer, nil
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", cfgPath)
			}
			if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
				return err
			}

			cfg := config.Defaults()
			// Keep credentials out of the file; they come from the environment.
			cfg.WhatsApp.AccessToken = "${WHATSAPP_TOKEN}"
			cfg.WhatsApp.PhoneNumberID = "${WHATSAPP_PHONE_NUMBER_ID}"
			cfg.WhatsApp.VerifyToken = "${WHATSAPP_VERIFY_TOKEN}"
			cfg.Provider.APIKey = "${GROQ_API_KEY}"
			if err := config.Save(cfgPath, cfg); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(config.ExpandPath(cfg.Memory.DBPath)), 0o755); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show config and provider status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			logger.Info("config", "path", resolveConfigPath(), "listen", cfg.Server.Addr(), "webhook", cfg.WhatsApp.WebhookPath)
			if err := config.RequireCredentials(cfg); err != nil {
				logger.Warn("whatsapp", "ready", false, "err", err)
			} else {
				logger.Info("whatsapp", "ready", true, "phone_number_id", cfg.WhatsApp.PhoneNumberID)
			}

			prov, err := provider.New(cfg.Provider, logger)
			if err != nil {
				logger.Warn("provider", "name", cfg.Provider.Name, "err", err)
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			if err := prov.Healthy(ctx); err != nil {
				logger.Warn("provider", "name", prov.Name(), "healthy", false, "err", err)
			} else {
				logger.Info("provider", "name", prov.Name(), "model", cfg.Provider.Model, "healthy", true)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and modify configuration",
		Long:  "Get, set, and list configuration values. Changes are saved to the config file.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Get a config value (e.g. worker.workers)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			val, err := config.GetByPath(config.Sanitize(cfg), args[0])
			if err != nil {
				return err
			}
			data, _ := json.MarshalIndent(val, "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [path] [value]",
		Short: "Set a config value (e.g. worker.workers 16)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := config.SetByPath(cfg, args[0], args[1]); err != nil {
				return fmt.Errorf("set value: %w", err)
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			if err := config.Save(cfgPath, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			value := args[1]
			if config.IsSecret(args[0]) {
				value = "****"
			}
			logger.Info("config updated", "path", args[0], "value", value, "file", cfgPath)
			return nil
		},
	})

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List all config values, secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return writeConfigList(cmd.OutOrStdout(), config.Sanitize(cfg), asJSON)
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print the nested JSON document instead of path = value lines")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show config file path",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), resolveConfigPath())
		},
	})

	return cmd
}

func writeConfigList(w io.Writer, cfg *config.Config, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	paths := config.ListPaths(cfg)
	for _, p := range slices.Sorted(maps.Keys(paths)) {
		if _, err := fmt.Fprintf(w, "%s = %v\n", p, paths[p]); err != nil {
			return err
		}
	}
	return nil
}
