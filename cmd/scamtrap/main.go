package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scamtrap/internal/channel"
	"scamtrap/internal/classifier"
	"scamtrap/internal/config"
	"scamtrap/internal/domain"
	"scamtrap/internal/engage"
	"scamtrap/internal/intel"
	"scamtrap/internal/persona"
	"scamtrap/internal/playbook"
	"scamtrap/internal/policy"
	"scamtrap/internal/provider"
	"scamtrap/internal/report"
	"scamtrap/internal/store"

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
		Use:   "scamtrap",
		Short: "Scamtrap: a conversational scam honeypot",
		Long:  "Scamtrap engages suspected scam senders in automated conversation and extracts actionable intelligence.",
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default: ~/.scamtrap/config.json)")

	root.AddCommand(initCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(sessionsCmd())
	root.AddCommand(doctorCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// resolveConfigPath returns the config path from --config flag or default.
func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.DefaultConfigPath()
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgDir := config.DefaultConfigDir()
			cfgPath := config.DefaultConfigPath()
			if err := os.MkdirAll(cfgDir, 0o755); err != nil {
				return err
			}
			if _, err := os.Stat(cfgPath); err == nil {
				return fmt.Errorf("config already exists at %s", cfgPath)
			}
			if err := config.Save(cfgPath, config.Defaults()); err != nil {
				return err
			}
			logger.Info("initialized", "config", cfgPath)
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the honeypot (gateway + enabled channels)",
		Long:  "Starts the HTTP gateway and any enabled channels. Press Ctrl+C to stop.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Warn("config not found, using defaults", "path", cfgPath, "err", err)
		cfg = config.Defaults()
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyLogLevel(cfg.General.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pb := playbook.Default()
	if cfg.General.PlaybookPath != "" {
		pb, err = playbook.Load(cfg.General.PlaybookPath, logger)
		if err != nil {
			return fmt.Errorf("playbook: %w", err)
		}
	}

	convStore, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("conversation store: %w", err)
	}
	defer convStore.Close()

	provFactory := provider.NewFactory(cfg, logger)
	classifierProv, err := provFactory.Get(cfg.Classifier.Provider)
	if err != nil {
		return fmt.Errorf("classifier provider: %w", err)
	}
	personaProv, err := provFactory.Get(cfg.Persona.Provider)
	if err != nil {
		return fmt.Errorf("persona provider: %w", err)
	}

	if err := classifierProv.Healthy(ctx); err != nil {
		logger.Warn("classifier provider unhealthy at startup",
			"provider", classifierProv.Name(), "err", err)
	}

	engine := engage.NewEngine(engage.Config{
		Store: convStore,
		Classifier: classifier.New(classifier.Config{
			Provider: classifierProv,
			Model:    cfg.Classifier.Model,
			Playbook: pb,
			Logger:   logger,
		}),
		Persona: persona.New(persona.Config{
			Provider: personaProv,
			Model:    cfg.Persona.Model,
			Playbook: pb,
			Logger:   logger,
		}),
		Extractor: intel.NewExtractor(pb),
		Policy: policy.New(policy.Config{
			MaxMessages: cfg.General.MaxMessages,
			Playbook:    pb,
			Logger:      logger,
		}),
		Reporter: report.NewClient(report.Config{
			Endpoint: cfg.Reporting.Endpoint,
			Timeout:  time.Duration(cfg.Reporting.TimeoutSeconds) * time.Second,
			Logger:   logger,
		}),
		Logger:        logger,
		NeutralReply:  pb.NeutralReply,
		ReportTimeout: time.Duration(cfg.Reporting.TimeoutSeconds) * time.Second,
	})

	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		tg := channel.NewTelegram(channel.TelegramConfig{
			Token:     cfg.Telegram.Token,
			AllowFrom: cfg.Telegram.AllowFrom,
			Logger:    logger,
		}, engine, convStore)
		go func() {
			if err := tg.Start(ctx); err != nil {
				logger.Error("telegram channel error", "err", err)
			}
		}()
		logger.Info("telegram channel enabled")
	}

	if !cfg.Gateway.Enabled {
		logger.Info("gateway disabled, running channels only. Press Ctrl+C to stop.")
		<-ctx.Done()
		return nil
	}

	web := channel.NewWeb(channel.WebConfig{
		Host:   cfg.Gateway.Host,
		Port:   cfg.Gateway.Port,
		APIKey: cfg.Gateway.APIKey,
		Logger: logger,
	}, engine, convStore)

	logger.Info("honeypot started. Press Ctrl+C to stop.")
	return web.Start(ctx)
}

// buildStore picks the conversation store backend from config.
func buildStore(cfg *config.Config) (domain.ConversationStore, error) {
	switch cfg.Storage.Backend {
	case "redis":
		return store.NewRedisStore(store.RedisConfig{
			Addr:     cfg.Storage.RedisAddr,
			Password: cfg.Storage.RedisPassword,
			DB:       cfg.Storage.RedisDB,
			Logger:   logger,
		})
	default:
		return store.NewSQLiteStore(cfg.Storage.DBPath, logger)
	}
}

func sessionsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions and their extracted intelligence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			cfg, err := config.Load(cfgPath)
			if err != nil {
				cfg = config.Defaults()
			}

			convStore, err := buildStore(cfg)
			if err != nil {
				return fmt.Errorf("conversation store: %w", err)
			}
			defer convStore.Close()

			sessions, err := convStore.ListSessions(context.Background(), limit)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions recorded.")
				return nil
			}

			data, err := json.MarshalIndent(sessions, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum sessions to list")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("scamtrap v%s\n", version)
		},
	}
}

func applyLogLevel(level string) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
