package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"scamtrap/internal/config"
	"scamtrap/internal/provider"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run diagnostic checks on your Scamtrap installation",
		Long: `Verifies that Scamtrap's configuration, providers, storage, and
gateway port are correctly set up. Reports pass/fail for each check.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath := resolveConfigPath()
			fmt.Printf("Scamtrap Doctor v%s\n", version)
			fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

			passed := 0
			failed := 0
			warned := 0

			// 1. Config file exists
			if _, err := os.Stat(cfgPath); err != nil {
				printFail("Config file", fmt.Sprintf("not found at %s", cfgPath))
				fmt.Printf("\nRun 'scamtrap init' to create a default configuration.\n")
				return nil
			}
			printPass("Config file", cfgPath)
			passed++

			// 2. Config loads and validates
			cfg, err := config.Load(cfgPath)
			if err != nil {
				printFail("Config load", err.Error())
				failed++
				fmt.Printf("\n%d passed, %d failed\n", passed, failed)
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if err := config.Validate(cfg); err != nil {
				printFail("Config validation", err.Error())
				failed++
			} else {
				printPass("Config validation", "valid")
				passed++
			}

			// 3. Storage backend reachable
			switch cfg.Storage.Backend {
			case "redis":
				if err := checkTCP(cfg.Storage.RedisAddr); err != nil {
					printFail("Redis", fmt.Sprintf("%s unreachable: %v", cfg.Storage.RedisAddr, err))
					failed++
				} else {
					printPass("Redis", cfg.Storage.RedisAddr)
					passed++
				}
			default:
				if err := checkDatabase(cfg.Storage.DBPath); err != nil {
					printFail("Database", err.Error())
					failed++
				} else {
					printPass("Database", cfg.Storage.DBPath)
					passed++
				}
			}

			// 4. Providers configured and healthy
			providerCount := 0
			factory := provider.NewFactory(cfg, logger)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			for name, pc := range cfg.Providers {
				if !pc.Enabled {
					continue
				}
				providerCount++
				p, err := factory.Get(name)
				if err != nil {
					printFail("Provider: "+name, err.Error())
					failed++
					continue
				}
				if err := p.Healthy(ctx); err != nil {
					printWarn("Provider: "+name, fmt.Sprintf("enabled but unhealthy: %v", err))
					warned++
				} else {
					printPass("Provider: "+name, "healthy")
					passed++
				}
			}
			if providerCount == 0 {
				printFail("Providers", "no providers enabled")
				failed++
			}

			// 5. Gateway port available
			if cfg.Gateway.Enabled {
				port := cfg.Gateway.Port
				if port == 0 {
					port = 8080
				}
				if err := checkPort(port); err != nil {
					printWarn("Gateway port", fmt.Sprintf("port %d may be in use: %v", port, err))
					warned++
				} else {
					printPass("Gateway port", fmt.Sprintf(":%d available", port))
					passed++
				}
			}

			// 6. Reporting endpoint configured
			if cfg.Reporting.Endpoint == "" {
				printWarn("Reporting", "no endpoint configured, session reports will be dropped")
				warned++
			} else {
				printPass("Reporting", cfg.Reporting.Endpoint)
				passed++
			}

			// Summary
			fmt.Printf("\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
			fmt.Printf("Results: %d passed, %d warnings, %d failed\n", passed, warned, failed)
			if failed > 0 {
				fmt.Printf("\nPlease fix the failed checks before running Scamtrap.\n")
				return fmt.Errorf("%d check(s) failed", failed)
			}
			if warned > 0 {
				fmt.Printf("\nScamtrap should work but consider fixing the warnings.\n")
			} else {
				fmt.Printf("\nAll checks passed! Scamtrap is ready to run.\n")
			}
			return nil
		},
	}
}

func checkDatabase(dbPath string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("cannot create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return fmt.Errorf("cannot open: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("cannot ping: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS _doctor_test (id INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	db.ExecContext(ctx, "DROP TABLE IF EXISTS _doctor_test")

	return nil
}

func checkTCP(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 3*time.Second)
	if err != nil {
		return err
	}
	conn.Close()
	return nil
}

func checkPort(port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}
	ln.Close()
	return nil
}

func printPass(check, detail string) {
	fmt.Printf("  [PASS] %-20s %s\n", check, detail)
}

func printFail(check, detail string) {
	fmt.Printf("  [FAIL] %-20s %s\n", check, detail)
}

func printWarn(check, detail string) {
	fmt.Printf("  [WARN] %-20s %s\n", check, detail)
}
