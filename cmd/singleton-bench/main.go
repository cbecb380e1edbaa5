// Package main provides the singleton-bench binary. It runs every
// construction strategy against a fresh registry from a burst of concurrent
// workers and reports elapsed time and the number of instances created.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zhuanxuhit/singleton-notes/bench"
	"github.com/zhuanxuhit/singleton-notes/config"
	"github.com/zhuanxuhit/singleton-notes/metrics"
	"github.com/zhuanxuhit/singleton-notes/singleton"
)

const (
	Version = "0.1.0"
	appName = "singleton-bench"
)

var errUniqueness = errors.New("more than one instance observed")

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

type flags struct {
	configPath  string
	workers     int
	iterations  int
	strategies  []string
	eager       bool
	logLevel    string
	metricsFile string
}

func rootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Benchmark lazy singleton construction strategies",
		Long: `singleton-bench resets a shared-instance registry, releases a burst of
concurrent workers that each access the instance many times, and reports
the elapsed wall time and the number of distinct instances created.

Lazy mode (the default) runs single-check locking, double-check locking and
first-use initialization in that order. --eager runs eager initialization
against a registry whose instance is built up front.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "Config file path (YAML), defaults to ./"+config.ProjectConfigFile+" if present")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent workers per run (default GOMAXPROCS)")
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "Access calls per worker")
	cmd.Flags().StringSliceVar(&f.strategies, "strategy", nil, "Strategy to run (single-check, double-check, first-use, eager); repeatable")
	cmd.Flags().BoolVar(&f.eager, "eager", false, "Use the eager registry")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "Write prometheus metrics to this file after the runs")

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	logger, err := newLogger(cmd.ErrOrStderr(), f.logLevel)
	if err != nil {
		return err
	}

	cfg, err := config.NewLoader(logger).Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyFlags(cmd, cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}
	strategies, err := cfg.ResolveStrategies()
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	opts := []singleton.Option{
		singleton.WithLogger(logger),
		singleton.WithCreateHook(collector.CreateHook()),
	}
	var reg *singleton.Registry
	if cfg.Eager {
		if reg, err = singleton.NewEager(opts...); err != nil {
			return err
		}
	} else {
		reg = singleton.New(opts...)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Debug("Starting benchmark",
		slog.String("mode", reg.Mode().String()),
		slog.Int("workers", cfg.Workers),
		slog.Int("iterations", cfg.Iterations))

	report, err := bench.Suite(ctx, reg, strategies, bench.Options{
		Workers:    cfg.Workers,
		Iterations: cfg.Iterations,
		Metrics:    collector,
		Logger:     logger,
	})
	if renderErr := report.Render(cmd.OutOrStdout()); renderErr != nil && err == nil {
		err = renderErr
	}
	if err != nil {
		return err
	}

	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		logger.Info("Wrote metrics", slog.String("path", cfg.MetricsFile))
	}

	if !report.OK() {
		return errUniqueness
	}
	return nil
}

// applyFlags overrides cfg with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *config.Config, f flags) {
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("iterations") {
		cfg.Iterations = f.iterations
	}
	if changed("strategy") {
		cfg.Strategies = f.strategies
	}
	if changed("eager") {
		cfg.Eager = f.eager
	}
	if changed("metrics-file") {
		cfg.MetricsFile = f.metricsFile
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
