package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacentio/usergraph/internal/app"
	"github.com/jacentio/usergraph/internal/config"
)

var configPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads --config (if given) and the environment.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

var rootCmd = &cobra.Command{
	Use:          "usergraph",
	Short:        "Users, posts and comments over a document store",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := a.Serve(ctx)

		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Warn("closing store", "error", err)
		}
		return serveErr
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Replace all data with a fresh upstream snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.New(cfg, logger)
		if err != nil {
			return fmt.Errorf("initializing app: %w", err)
		}
		ctx := cmd.Context()
		if err := a.Connect(ctx); err != nil {
			return err
		}
		defer a.Close(context.Background())

		summary, err := a.Service().Reload(ctx)
		if err != nil {
			return fmt.Errorf("loading data: %w", err)
		}
		fmt.Printf("Loaded %d users, %d posts, %d comments\n", summary.Users, summary.Posts, summary.Comments)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath, os.Getenv)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		m := &config.Manager{}
		return m.Write(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a TOML config file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loadCmd)

	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
