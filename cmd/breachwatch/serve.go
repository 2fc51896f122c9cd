package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jpalmerr/breachwatch"
	"github.com/jpalmerr/breachwatch/config"
)

const (
	shutdownTimeout = 10 * time.Second

	// log rotation limits when --log-file is set
	logMaxSizeMB  = 10
	logMaxBackups = 3
)

// newLogger creates a JSON logger for CLI use. When logFile is non-empty,
// output goes to a size-rotated file instead of stderr.
func newLogger(logFile string) *slog.Logger {
	var w io.Writer = os.Stderr
	if logFile != "" {
		w = &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			LocalTime:  true,
		}
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// serveCmd starts the BreachWatch dashboard server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the BreachWatch dashboard server.

The server will:
  - Load a .env file from the working directory if one exists
  - Load configuration from the specified YAML file
  - Start polling the HIBP API for all configured emails
  - Serve the dashboard UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  breachwatch serve -c config.yaml
  breachwatch serve -c config.yaml --log-file /var/log/breachwatch.log`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	serveCmd.Flags().String("log-file", "", "write logs to this file with rotation instead of stderr")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	logFile, _ := cmd.Flags().GetString("log-file")
	logger := newLogger(logFile)

	// .env is the usual delivery mechanism for ${HIBP_API_KEY}; absence
	// is not an error
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded environment from .env")
	}

	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("config loaded",
		"emails", len(cfg.Emails),
		"update_interval", cfg.UpdateInterval.Duration().String(),
		"retry_interval", cfg.RetryInterval.Duration().String(),
	)
	logger.Info("starting server", "port", cfg.Port)

	// convert config to SDK sensors and options
	_, opts, err := config.Build(cfg)
	if err != nil {
		return fmt.Errorf("failed to build sensors: %w", err)
	}
	opts = append(opts, breachwatch.WithLogger(logger))

	m, err := breachwatch.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// start server - blocks until context cancelled
	errChan := make(chan error, 1)
	go func() {
		errChan <- m.Start(ctx)
	}()

	// wait for server to finish
	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		// signal received, wait for graceful shutdown with timeout
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
