package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/config"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/metrics"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/monitor"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/predict"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/protocol"
	"github.com/roh1t-coder/Speech-Emotion-Recognition-SER/internal/session"
)

const (
	serviceName    = "ser-capture-engine"
	serviceVersion = "1.0.0"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (built-in defaults when empty)")
	mode := flag.String("mode", "realtime", "Run mode: realtime, bounded, or file")
	filePath := flag.String("file", "", "Audio file to submit (mode file)")
	durationMs := flag.Int("duration", 0, "Stop the bounded recording after this many milliseconds (0 runs to the cap)")
	flag.Parse()

	// Load configuration
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Initialize logger based on configuration
	logger := initLogger(cfg.Logging)

	logger.Info("Engine starting",
		slog.String("service", serviceName),
		slog.String("version", serviceVersion),
		slog.String("mode", *mode),
		slog.String("backend", cfg.Backend.BaseURL),
	)

	// Initialize Prometheus metrics on a dedicated registry
	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry)

	predictor := predict.New(cfg.Backend, logger, appMetrics)
	controller := session.NewController(cfg, logger, appMetrics, predictor, nil)

	// Start the monitor endpoint (if enabled)
	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		mon = monitor.New(cfg.Monitor, logger, controller, predictor, registry)
		if err := mon.Start(); err != nil {
			logger.Error("Failed to start monitor endpoint", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var exitCode int
	switch *mode {
	case "realtime":
		exitCode = runRealtime(ctx, controller, logger, sigChan)
	case "bounded":
		exitCode = runBounded(controller, logger, cfg, *durationMs, sigChan)
	case "file":
		exitCode = runFile(ctx, predictor, logger, *filePath)
	default:
		fmt.Fprintf(os.Stderr, "Unknown mode %q: expected realtime, bounded, or file\n", *mode)
		exitCode = 2
	}

	// Terminal teardown funnels through the same guaranteed-release path
	controller.Close()

	if mon != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := mon.Stop(shutdownCtx); err != nil {
			logger.Error("Error stopping monitor endpoint", slog.String("error", err.Error()))
		}
	}

	logger.Info("Engine stopped")
	os.Exit(exitCode)
}

// runRealtime streams chunks until interrupted, printing each incremental result
func runRealtime(ctx context.Context, controller *session.Controller, logger *slog.Logger, sigChan chan os.Signal) int {
	controller.OnResult(func(result protocol.Result) {
		fmt.Printf("%s (%.0f%%)\n", result.Emotion, result.Confidence)
	})
	controller.OnError(func(err error) {
		logger.Warn("Streaming error", slog.String("error", err.Error()))
	})

	if err := controller.ActivateRealtime(ctx); err != nil {
		logger.Error("Failed to activate realtime mode", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("Realtime streaming active, press Ctrl+C to stop")

	sig := <-sigChan
	logger.Info("Received shutdown signal", slog.String("signal", sig.String()))

	controller.Deactivate()
	return 0
}

// runBounded records one capped clip and prints the single result
func runBounded(controller *session.Controller, logger *slog.Logger, cfg *config.Config, durationMs int, sigChan chan os.Signal) int {
	results := make(chan protocol.Result, 1)
	failures := make(chan error, 1)
	controller.OnResult(func(result protocol.Result) { results <- result })
	controller.OnError(func(err error) { failures <- err })

	if err := controller.StartBounded(); err != nil {
		logger.Error("Failed to start bounded recording", slog.String("error", err.Error()))
		return 1
	}

	if durationMs > 0 && time.Duration(durationMs)*time.Millisecond < cfg.Bounded.GetMaxDuration() {
		time.AfterFunc(time.Duration(durationMs)*time.Millisecond, controller.StopBounded)
	}

	deadline := cfg.Bounded.GetMaxDuration() + cfg.Backend.GetRequestTimeout()

	select {
	case result := <-results:
		fmt.Printf("%s (%.0f%%)\n", result.Emotion, result.Confidence)
		return 0
	case err := <-failures:
		logger.Error("Bounded recording failed", slog.String("error", err.Error()))
		return 1
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		controller.StopBounded()
		return 0
	case <-time.After(deadline + time.Second):
		logger.Error("Timed out waiting for the bounded result")
		return 1
	}
}

// runFile submits a pre-existing audio file to the one-shot endpoint
func runFile(ctx context.Context, predictor *predict.Client, logger *slog.Logger, path string) int {
	if path == "" {
		fmt.Fprintln(os.Stderr, "Mode file requires -file <path>")
		return 2
	}

	result, err := predictor.PredictFile(ctx, path)
	if err != nil {
		logger.Error("File prediction failed", slog.String("error", err.Error()))
		return 1
	}

	fmt.Printf("%s (%.0f%%)\n", result.Emotion, result.Confidence)
	return 0
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var output *os.File
	switch cfg.Output {
	case "stderr":
		output = os.Stderr
	case "stdout", "":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stdout\n", cfg.Output, err)
			output = os.Stdout
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
