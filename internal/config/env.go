package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverlay lists the environment variables that override file values.
type envOverlay struct {
	AccessToken    string `env:"WHATSAPP_TOKEN"`
	PhoneNumberID  string `env:"WHATSAPP_PHONE_NUMBER_ID"`
	VerifyToken    string `env:"WHATSAPP_VERIFY_TOKEN"`
	AppSecret      string `env:"WHATSAPP_APP_SECRET"`
	GroqAPIKey     string `env:"GROQ_API_KEY"`
	ProviderAPIKey string `env:"LAUREATE_PROVIDER_API_KEY"`
	Port           int    `env:"PORT"`
	LogLevel       string `env:"LAUREATE_LOG_LEVEL"`
}

// ApplyEnv overlays set environment variables onto cfg. GROQ_API_KEY only
// applies to groq endpoints; LAUREATE_PROVIDER_API_KEY applies to the primary
// endpoint whatever its name.
func ApplyEnv(cfg *Config) error {
	var ov envOverlay
	if err := env.Parse(&ov); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	setIf(&cfg.WhatsApp.AccessToken, ov.AccessToken)
	setIf(&cfg.WhatsApp.PhoneNumberID, ov.PhoneNumberID)
	setIf(&cfg.WhatsApp.VerifyToken, ov.VerifyToken)
	setIf(&cfg.WhatsApp.AppSecret, ov.AppSecret)
	setIf(&cfg.General.LogLevel, ov.LogLevel)

	if cfg.Provider.Name == "groq" {
		setIf(&cfg.Provider.APIKey, ov.GroqAPIKey)
	}
	for i := range cfg.Provider.Fallbacks {
		if cfg.Provider.Fallbacks[i].Name == "groq" {
			setIf(&cfg.Provider.Fallbacks[i].APIKey, ov.GroqAPIKey)
		}
	}
	setIf(&cfg.Provider.APIKey, ov.ProviderAPIKey)

	if ov.Port != 0 {
		cfg.Server.Port = ov.Port
	}
	return nil
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
