package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"podkeeper/internal/config"
	"podkeeper/internal/lifecycle"
	"podkeeper/internal/metrics"
	"podkeeper/internal/provider/runpod"
)

// Exit codes
const (
	exitSuccess     = 0
	exitFailure     = 1
	exitInterrupted = 130
)

const pushTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("podkeeper"),
		kong.Description("Keep exactly one named RunPod pod running, or count, stop or terminate the pods carrying that name."),
		kong.Writers(stdout, stderr),
	)
	if err != nil {
		fmt.Fprintf(stderr, "podkeeper: %v\n", err)
		return exitFailure
	}
	if _, err := parser.Parse(args); err != nil {
		fmt.Fprintf(stderr, "podkeeper: error: %v\n", err)
		return exitFailure
	}

	logger := newLogger(&cli, stderr)
	log := logger.WithField("run_id", uuid.NewString())

	cfg, err := config.Load(cli.Config)
	if err != nil {
		log.WithError(err).Error("Failed to load config")
		return exitFailure
	}
	log = log.WithField("pod", cfg.PodName)

	if !cli.Count && !cli.cleanup() {
		if err := cfg.ValidateForCreate(); err != nil {
			log.WithError(err).Error("Invalid configuration for pod management")
			return exitFailure
		}
	}

	apiKey, err := config.ResolveAPIKey(cli.APIKey)
	if err != nil {
		log.WithError(err).Error("Failed to set up RunPod API client")
		return exitFailure
	}

	client := runpod.NewClient(apiKey,
		runpod.WithBaseURL(cli.baseURL()),
		runpod.WithTimeout(cli.Timeout),
	)
	manager := lifecycle.New(client, cfg, log)

	switch {
	case cli.Count:
		var counts lifecycle.PodCounts
		counts, err = manager.Counts(ctx)
		if err == nil {
			fmt.Fprintf(stdout, "Pods matching name '%s': Total=%d, Running=%d\n", cfg.PodName, counts.Total, counts.Running)
		}
	case cli.cleanup():
		log.Info("Executing cleanup actions")
		err = manager.Cleanup(ctx, lifecycle.CleanupOptions{Stop: cli.Stop, Terminate: cli.Terminate})
	default:
		log.Info("Executing pod management")
		var podID string
		podID, err = manager.Manage(ctx)
		if err == nil {
			log.WithField("pod_id", podID).Info("Pod management successful")
		}
	}

	if cli.Pushgateway != "" {
		pushMetrics(ctx, log, cli.Pushgateway, cfg.PodName)
	}

	return exitCode(ctx, log, err, stderr)
}

func newLogger(cli *CLI, out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	if cli.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}
	logger.SetLevel(logrus.InfoLevel)
	if cli.Debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// pushMetrics never fails the run; an interrupted run still pushes.
func pushMetrics(ctx context.Context, log logrus.FieldLogger, url, podName string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	if err := metrics.Push(ctx, url, "podkeeper", map[string]string{"pod": podName}); err != nil {
		log.WithError(err).Warn("Failed to push metrics")
		return
	}
	log.Debug("Metrics pushed")
}

func exitCode(ctx context.Context, log logrus.FieldLogger, err error, stderr io.Writer) int {
	switch {
	case err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)):
		fmt.Fprintln(stderr, "Operation interrupted. Exiting.")
		return exitInterrupted
	case err != nil:
		log.WithError(err).Error("Operation failed")
		return exitFailure
	default:
		return exitSuccess
	}
}
