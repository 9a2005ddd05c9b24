// Package worker provides the ticker loop that drives the pipeline's
// background work: the queue processor tick and the periodic feed check.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const logFieldWorker = "worker"

// TickerConfig configures a ticker loop with an optional secondary cadence.
type TickerConfig struct {
	// Name identifies the worker for logging.
	Name string

	// Interval is the main ticker interval.
	Interval time.Duration

	// OnTick is called when the main ticker fires.
	OnTick func(ctx context.Context)

	// RunOnStart runs OnTick once before the first tick.
	RunOnStart bool

	// SecondaryInterval is the cadence for the secondary task; 0 disables it.
	SecondaryInterval time.Duration

	// OnSecondaryTick is called when the secondary ticker fires.
	OnSecondaryTick func(ctx context.Context)

	// Logger for the worker.
	Logger *zerolog.Logger
}

// TickerLoop runs until the context is cancelled, returning the wrapped
// context error.
func TickerLoop(ctx context.Context, cfg TickerConfig) error {
	logger := cfg.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	logger.Info().Str(logFieldWorker, cfg.Name).Msg("starting ticker loop")
	defer logger.Info().Str(logFieldWorker, cfg.Name).Msg("ticker loop stopped")

	if cfg.RunOnStart && cfg.OnTick != nil {
		cfg.OnTick(ctx)
	}

	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	var secondary <-chan time.Time

	if cfg.SecondaryInterval > 0 && cfg.OnSecondaryTick != nil {
		t := time.NewTicker(cfg.SecondaryInterval)
		defer t.Stop()

		secondary = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("ticker loop %s: %w", cfg.Name, ctx.Err())
		case <-ticker.C:
			if cfg.OnTick != nil {
				cfg.OnTick(ctx)
			}
		case <-secondary:
			cfg.OnSecondaryTick(ctx)
		}
	}
}

// Wait blocks until duration elapses or the context is cancelled.
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return fmt.Errorf("wait interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// RecoverPanic recovers from panics and logs them.
// Use as: defer worker.RecoverPanic(logger, "operation name")
func RecoverPanic(logger *zerolog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error().
			Interface("panic", r).
			Str("operation", operation).
			Msg("recovered from panic")
	}
}
