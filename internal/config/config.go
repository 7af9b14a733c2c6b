package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for the LAUREATE gateway.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Server   ServerConfig   `json:"server"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
	Agent    AgentConfig    `json:"agent"`
	Provider ProviderConfig `json:"provider"`
	Memory   MemoryConfig   `json:"memory"`
	Worker   WorkerConfig   `json:"worker"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

type ServerConfig struct {
	Host                   string `json:"host"`
	Port                   int    `json:"port"`
	ReadTimeoutSeconds     int    `json:"readTimeoutSeconds"`
	WriteTimeoutSeconds    int    `json:"writeTimeoutSeconds"`
	ShutdownTimeoutSeconds int    `json:"shutdownTimeoutSeconds"`
	MaxBodyBytes           int64  `json:"maxBodyBytes"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type WhatsAppConfig struct {
	APIBase            string `json:"apiBase"`
	PhoneNumberID      string `json:"phoneNumberId,omitempty"`
	AccessToken        string `json:"accessToken,omitempty" secret:"true"`
	VerifyToken        string `json:"verifyToken,omitempty" secret:"true"`
	AppSecret          string `json:"appSecret,omitempty" secret:"true"` // enables X-Hub-Signature-256 checks
	WebhookPath        string `json:"webhookPath"`
	SendTimeoutSeconds int    `json:"sendTimeoutSeconds"`
	SendRatePerSecond  int    `json:"sendRatePerSecond"` // 0 = unpaced
	DedupCapacity      int    `json:"dedupCapacity"`
}

type AgentConfig struct {
	RecursionLimit int    `json:"recursionLimit"`
	PromptFile     string `json:"promptFile,omitempty"` // YAML prompt profile; empty = built-in tutor
}

// Endpoint is one OpenAI-compatible chat backend.
type Endpoint struct {
	Name    string `json:"name"` // groq | openai | ollama | any name with apiBase
	APIKey  string `json:"apiKey,omitempty" secret:"true"`
	APIBase string `json:"apiBase,omitempty"`
	Model   string `json:"model,omitempty"`
}

type ProviderConfig struct {
	Endpoint
	Temperature        float64    `json:"temperature"`
	MaxTokens          int        `json:"maxTokens,omitempty"`
	TimeoutSeconds     int        `json:"timeoutSeconds"`
	RateLimitPerMinute int        `json:"rateLimitPerMinute,omitempty"` // 0 = unlimited
	Fallbacks          []Endpoint `json:"fallbacks,omitempty"`
}

type MemoryConfig struct {
	DBPath        string `json:"dbPath"`
	MaxHistory    int    `json:"maxHistory"`
	RetentionDays int    `json:"retentionDays"` // 0 = keep threads forever
}

type WorkerConfig struct {
	Workers             int `json:"workers"`
	QueueSize           int `json:"queueSize"`
	EnqueueTimeoutMs    int `json:"enqueueTimeoutMs"`
	DrainTimeoutSeconds int `json:"drainTimeoutSeconds"`
}

// MetricsConfig configures the Prometheus text endpoint.
type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.laureate).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".laureate"
	}
	return filepath.Join(home, ".laureate")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

// Load reads a JSON config file, expands ${VAR} references, overlays the
// environment and validates the result.
func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return finish(cfg)
}

// LoadOrDefaults behaves like Load but falls back to Defaults plus the
// environment when the file does not exist. The bool reports whether a file
// was read.
func LoadOrDefaults(path string) (*Config, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, false, err
	}
	cfg, err = finish(Defaults())
	return cfg, false, err
}

func finish(cfg *Config) (*Config, error) {
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.Memory.DBPath = ExpandPath(cfg.Memory.DBPath)
	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)
	cfg.Agent.PromptFile = ExpandPath(cfg.Agent.PromptFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	// Holds the access token and app secret.
	return os.WriteFile(path, data, 0o600)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.General.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeoutSeconds < 1 || cfg.Server.WriteTimeoutSeconds < 1 {
		errs = append(errs, "server read/write timeouts must be >= 1")
	}
	if cfg.Server.ShutdownTimeoutSeconds < 1 {
		errs = append(errs, "server.shutdownTimeoutSeconds must be >= 1")
	}
	if cfg.Server.MaxBodyBytes < 1 {
		errs = append(errs, "server.maxBodyBytes must be >= 1")
	}

	if !strings.HasPrefix(cfg.WhatsApp.WebhookPath, "/") {
		errs = append(errs, "whatsapp.webhookPath must start with /")
	}
	if cfg.WhatsApp.APIBase == "" {
		errs = append(errs, "whatsapp.apiBase is required")
	}
	if cfg.WhatsApp.SendTimeoutSeconds < 1 {
		errs = append(errs, "whatsapp.sendTimeoutSeconds must be >= 1")
	}
	if cfg.WhatsApp.SendRatePerSecond < 0 {
		errs = append(errs, "whatsapp.sendRatePerSecond must be >= 0")
	}
	if cfg.WhatsApp.DedupCapacity < 1 {
		errs = append(errs, "whatsapp.dedupCapacity must be >= 1")
	}

	if cfg.Agent.RecursionLimit < 1 || cfg.Agent.RecursionLimit > 1000 {
		errs = append(errs, "agent.recursionLimit must be between 1 and 1000")
	}

	if cfg.Provider.Name == "" {
		errs = append(errs, "provider.name is required")
	}
	if cfg.Provider.Temperature < 0 || cfg.Provider.Temperature > 2 {
		errs = append(errs, "provider.temperature must be between 0 and 2")
	}
	if cfg.Provider.TimeoutSeconds < 1 {
		errs = append(errs, "provider.timeoutSeconds must be >= 1")
	}
	if cfg.Provider.RateLimitPerMinute < 0 {
		errs = append(errs, "provider.rateLimitPerMinute must be >= 0")
	}
	for i, fb := range cfg.Provider.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Sprintf("provider.fallbacks.%d.name is required", i))
		}
	}

	if cfg.Memory.DBPath == "" {
		errs = append(errs, "memory.dbPath is required")
	}
	if cfg.Memory.MaxHistory < 1 {
		errs = append(errs, "memory.maxHistory must be >= 1")
	}
	if cfg.Memory.RetentionDays < 0 {
		errs = append(errs, "memory.retentionDays must be >= 0")
	}

	if cfg.Worker.Workers < 1 || cfg.Worker.Workers > 256 {
		errs = append(errs, "worker.workers must be between 1 and 256")
	}
	if cfg.Worker.QueueSize < 1 {
		errs = append(errs, "worker.queueSize must be >= 1")
	}
	if cfg.Worker.EnqueueTimeoutMs < 0 {
		errs = append(errs, "worker.enqueueTimeoutMs must be >= 0")
	}
	if cfg.Worker.DrainTimeoutSeconds < 1 {
		errs = append(errs, "worker.drainTimeoutSeconds must be >= 1")
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Endpoint, "/") {
		errs = append(errs, "metrics.endpoint must start with /")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// RequireCredentials reports the platform credentials that serving needs but
// the config lacks.
func RequireCredentials(cfg *Config) error {
	var missing []string
	if cfg.WhatsApp.AccessToken == "" {
		missing = append(missing, "whatsapp.accessToken (WHATSAPP_TOKEN)")
	}
	if cfg.WhatsApp.PhoneNumberID == "" {
		missing = append(missing, "whatsapp.phoneNumberId (WHATSAPP_PHONE_NUMBER_ID)")
	}
	if cfg.WhatsApp.VerifyToken == "" {
		missing = append(missing, "whatsapp.verifyToken (WHATSAPP_VERIFY_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing credentials: %s", strings.Join(missing, ", "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
