// Package main provides the discogrid binary entry point.
// Discogrid serves the onboarding questionnaire and the assistant routes
// (text generation, gap analysis and entity extraction) that run on top of it.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	// Register LLM providers via init()
	_ "github.com/youcodecowboy/disco-grid/llm/providers"

	"github.com/youcodecowboy/disco-grid/config"
	"github.com/youcodecowboy/disco-grid/contract"
	"github.com/youcodecowboy/disco-grid/onboarding"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "discogrid"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Manufacturing onboarding service",
		Long: `Discogrid serves a conditional onboarding questionnaire for
manufacturers and the assistant routes built on the collected answers:

- Question visibility and session progress
- Text generation
- Gap analysis
- Entity extraction

Running without a subcommand starts the HTTP server.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serve(cmd.Context(), configPath)
			},
		},
		evalCmd(&configPath),
		catalogCmd(&configPath),
		configCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
			},
		},
	)
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.NewLoader(nil).Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	signalCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(signalCtx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	logger.Info("Discogrid ready", "version", Version, "addr", cfg.Server.Addr, "storage", cfg.Storage.Backend)
	return app.Run(signalCtx)
}

func evalCmd(configPath *string) *cobra.Command {
	var catalogDir, contractPath string

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Print the questions visible for a contract",
		Long: `Eval loads the question catalog and a JSON contract of answers and prints
the questions that are currently visible, marking those already answered.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(*configPath, catalogDir)
			if err != nil {
				return err
			}
			c := contract.New()
			if contractPath != "" {
				data, err := os.ReadFile(contractPath)
				if err != nil {
					return fmt.Errorf("read contract: %w", err)
				}
				if err := json.Unmarshal(data, c); err != nil {
					return fmt.Errorf("parse contract %s: %w", contractPath, err)
				}
			}

			visible, current, progress := onboarding.ComputeState(cat, c)
			out := cmd.OutOrStdout()
			for _, q := range visible {
				mark := " "
				if q.Answered(c) {
					mark = "x"
				}
				fmt.Fprintf(out, "[%s] %-32s %s\n", mark, q.ID, q.Prompt)
			}
			fmt.Fprintf(out, "\n%d/%d answered (%.0f%%), %d required missing\n",
				progress.Answered, progress.Total, progress.PercentComplete, progress.RequiredMissing)
			if current != nil {
				fmt.Fprintf(out, "next: %s\n", current.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogDir, "catalog", "", "Catalog base directory (overrides config)")
	cmd.Flags().StringVar(&contractPath, "contract", "", "JSON contract file")
	return cmd
}

func catalogCmd(configPath *string) *cobra.Command {
	var catalogDir string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Question catalog commands",
	}
	validate := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the question catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(*configPath, catalogDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d sections, %d questions from %d files\n",
				len(cat.Sections()), len(cat.Questions()), len(cat.Sources()))
			return nil
		},
	}
	validate.Flags().StringVar(&catalogDir, "catalog", "", "Catalog base directory (overrides config)")
	cmd.AddCommand(validate)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the user config file with defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.NewLoader(nil).EnsureUserConfig()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	})
	return cmd
}

// loadCatalog loads the catalog named by the config, with baseDir replacing
// the configured directory when set.
func loadCatalog(configPath, baseDir string) (*onboarding.Catalog, error) {
	cfg, err := config.NewLoader(slog.New(slog.DiscardHandler)).Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if baseDir != "" {
		cfg.Catalog.BaseDir = baseDir
	}
	cat, err := onboarding.LoadCatalog(cfg.Catalog.BaseDir, cfg.Catalog.Patterns)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return cat, nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
