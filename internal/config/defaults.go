package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			DefaultProvider: "ollama",
			MaxMessages:     15,
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled:      true,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
			"openai": {
				Enabled:      false,
				APIKey:       "${OPENAI_API_KEY}",
				DefaultModel: "gpt-4o-mini",
			},
		},
		Classifier: ModelConfig{},
		Persona:    ModelConfig{},
		Storage: StorageConfig{
			Backend: "sqlite",
			DBPath:  "~/.scamtrap/honeypot.db",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
		Telegram: TelegramConfig{
			Enabled: false,
		},
		Reporting: ReportingConfig{
			Endpoint:       "",
			TimeoutSeconds: 5,
		},
	}
}
