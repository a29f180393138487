// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avena-robotics/control-core/orchestrator"
	"github.com/avena-robotics/control-core/pkg/clog"
	"github.com/avena-robotics/control-core/pkg/metrics"
	"github.com/avena-robotics/control-core/pkg/telemetry"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "orchestratord",
	Short:   "Fleet orchestrator: event listener, client registry and scenario engine",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("orchestratord version %s (%s)\n", Version, Commit))
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the orchestrator and block until shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		name, _ := cmd.Flags().GetString("name")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		logLevel, _ := cmd.Root().PersistentFlags().GetString("log-level")

		logger := clog.New(name, parseLevel(logLevel), os.Stderr)
		clog.SetGlobal(logger)

		telProvider, err := telemetry.Setup(name, Version)
		if err != nil {
			return fmt.Errorf("setting up telemetry: %w", err)
		}
		defer telProvider.Shutdown(context.Background())

		fc, err := loadFileConfig(configPath)
		if err != nil {
			return err
		}
		if fc.MetricsAddr != "" && !cmd.Flags().Changed("metrics-addr") {
			metricsAddr = fc.MetricsAddr
		}

		opts := append(fc.toOptions(name), orchestrator.WithLogger(logger))
		o, err := orchestrator.New(opts...)
		if err != nil {
			return fmt.Errorf("building orchestrator: %w", err)
		}

		if metricsAddr != "" {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			go func() {
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
			logger.Info("metrics endpoint listening", "addr", metricsAddr)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Info("orchestrator starting", "name", name, "config", configPath)
		if err := o.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("orchestrator run: %w", err)
		}
		logger.Info("orchestrator stopped")
		return nil
	},
}

func init() {
	runCmd.Flags().String("config", "./orchestrator.json", "Path to the orchestrator's JSON configuration file")
	runCmd.Flags().String("name", "fleet-orchestrator", "Orchestrator identity (listener name, FSM name)")
	runCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Address for the Prometheus /metrics endpoint (empty to disable)")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
