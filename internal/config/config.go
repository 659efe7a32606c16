// Package config holds the root configuration for the honeypot service.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration.
type Config struct {
	General    GeneralConfig             `json:"general"`
	Providers  map[string]ProviderConfig `json:"providers"`
	Classifier ModelConfig               `json:"classifier"`
	Persona    ModelConfig               `json:"persona"`
	Storage    StorageConfig             `json:"storage"`
	Gateway    GatewayConfig             `json:"gateway"`
	Telegram   TelegramConfig            `json:"telegram"`
	Reporting  ReportingConfig           `json:"reporting"`
}

type GeneralConfig struct {
	LogLevel        string `json:"logLevel"`
	DefaultProvider string `json:"defaultProvider"`
	PlaybookPath    string `json:"playbookPath,omitempty"` // optional YAML vocabulary overrides
	MaxMessages     int    `json:"maxMessages"`            // engagement hard cap
}

type ProviderConfig struct {
	Enabled      bool   `json:"enabled"`
	APIBase      string `json:"apiBase,omitempty"`
	APIKey       string `json:"apiKey,omitempty"`
	DefaultModel string `json:"defaultModel,omitempty"`
}

// ModelConfig binds one pipeline stage (classification or reply generation)
// to a provider and model.
type ModelConfig struct {
	Provider string `json:"provider,omitempty"` // empty = general.defaultProvider
	Model    string `json:"model,omitempty"`    // empty = provider default
}

type StorageConfig struct {
	Backend       string `json:"backend"` // "sqlite" | "redis"
	DBPath        string `json:"dbPath,omitempty"`
	RedisAddr     string `json:"redisAddr,omitempty"`
	RedisPassword string `json:"redisPassword,omitempty"`
	RedisDB       int    `json:"redisDB,omitempty"`
}

type GatewayConfig struct {
	Enabled bool   `json:"enabled"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	APIKey  string `json:"apiKey,omitempty"`
}

type TelegramConfig struct {
	Enabled   bool     `json:"enabled"`
	Token     string   `json:"token,omitempty"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

type ReportingConfig struct {
	Endpoint       string `json:"endpoint"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

// DefaultConfigDir returns the default config directory (~/.scamtrap).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scamtrap"
	}
	return filepath.Join(home, ".scamtrap")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = expandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.Storage.DBPath = expandPath(cfg.Storage.DBPath)
	cfg.General.PlaybookPath = expandPath(cfg.General.PlaybookPath)

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
			return match
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

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Storage.Backend {
	case "sqlite", "redis":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be sqlite or redis, got %q", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "sqlite" && cfg.Storage.DBPath == "" {
		errs = append(errs, "storage.dbPath is required for the sqlite backend")
	}
	if cfg.Storage.Backend == "redis" && cfg.Storage.RedisAddr == "" {
		errs = append(errs, "storage.redisAddr is required for the redis backend")
	}
	if cfg.General.MaxMessages < 1 || cfg.General.MaxMessages > 100 {
		errs = append(errs, "general.maxMessages must be between 1 and 100")
	}
	if cfg.Gateway.Enabled && (cfg.Gateway.Port < 1 || cfg.Gateway.Port > 65535) {
		errs = append(errs, "gateway.port must be a valid TCP port")
	}
	if cfg.Reporting.TimeoutSeconds < 1 || cfg.Reporting.TimeoutSeconds > 60 {
		errs = append(errs, "reporting.timeoutSeconds must be between 1 and 60")
	}
	if _, ok := cfg.Providers[cfg.General.DefaultProvider]; !ok {
		errs = append(errs, fmt.Sprintf("general.defaultProvider %q has no providers entry", cfg.General.DefaultProvider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
