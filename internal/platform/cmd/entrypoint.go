// Package cmd holds the startup plumbing shared by quickroll commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/louisbranch/quickroll/internal/platform/config"
	"github.com/louisbranch/quickroll/internal/platform/logging"
	"github.com/louisbranch/quickroll/internal/platform/otel"
	"github.com/louisbranch/quickroll/internal/platform/timeouts"
)

// ServiceRoll names the roll service in telemetry and logs.
const ServiceRoll = "quickroll"

// RunOptions controls shared entrypoint behavior.
type RunOptions struct {
	// ShutdownTimeout sets the timeout used when stopping telemetry.
	ShutdownTimeout time.Duration
	// LogOutput receives log records when telemetry export is off.
	LogOutput io.Writer
	Logging   logging.Config
}

// ParseConfig loads environment defaults into cfg.
func ParseConfig[T any](cfg *T) error {
	if cfg == nil {
		return errors.New("config target is required")
	}
	return config.ParseEnv(cfg)
}

// RunWithTelemetry configures telemetry and logging, then runs the service
// loop with the resulting logger.
func RunWithTelemetry(ctx context.Context, service string, options RunOptions, run func(context.Context, *slog.Logger) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("service name is required")
	}
	if run == nil {
		return fmt.Errorf("run function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if options.LogOutput == nil {
		options.LogOutput = io.Discard
	}

	otelCfg, err := otel.LoadConfig()
	if err != nil {
		return err
	}
	shutdown, err := otel.Setup(ctx, service, otelCfg)
	if err != nil {
		return err
	}
	logger, err := logging.New(options.Logging, options.LogOutput, service, otelCfg.Active())
	if err != nil {
		_ = shutdown(ctx)
		return err
	}
	defer func() {
		shutdownTimeout := options.ShutdownTimeout
		if shutdownTimeout <= 0 {
			shutdownTimeout = timeouts.Shutdown
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", slog.String("service", service), slog.Any("error", err))
		}
	}()
	return run(ctx, logger)
}
