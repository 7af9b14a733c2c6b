package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   4000,
			ReadTimeoutSeconds:     10,
			WriteTimeoutSeconds:    30,
			ShutdownTimeoutSeconds: 15,
			MaxBodyBytes:           1 << 20,
		},
		WhatsApp: WhatsAppConfig{
			APIBase:            "https://graph.facebook.com/v20.0",
			WebhookPath:        "/whatsapp",
			SendTimeoutSeconds: 15,
			SendRatePerSecond:  80,
			DedupCapacity:      100,
		},
		Agent: AgentConfig{
			RecursionLimit: 100,
		},
		Provider: ProviderConfig{
			Endpoint: Endpoint{
				Name:  "groq",
				Model: "meta-llama/llama-4-scout-17b-16e-instruct",
			},
			Temperature:    0.1,
			TimeoutSeconds: 120,
		},
		Memory: MemoryConfig{
			DBPath:     "~/.laureate/memory.db",
			MaxHistory: 40,
		},
		Worker: WorkerConfig{
			Workers:             8,
			QueueSize:           256,
			EnqueueTimeoutMs:    2000,
			DrainTimeoutSeconds: 30,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
