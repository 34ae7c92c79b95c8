package captions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"captionsaver/internal/config"
	"captionsaver/internal/logging"
)

const (
	DefaultRetryInterval = 1500 * time.Millisecond
	DefaultMaxAttempts   = 10
)

// ErrAttemptsExhausted is returned when every attempt failed.
var ErrAttemptsExhausted = errors.New("caption enable attempts exhausted")

// RetryLoop retries an Enabler on a fixed interval.
type RetryLoop struct {
	Interval    time.Duration
	MaxAttempts int
	Logger      *slog.Logger
}

// NewRetryLoop reads the [captions] config section.
func NewRetryLoop(cfg *config.Config, logger *slog.Logger) *RetryLoop {
	return &RetryLoop{
		Interval:    cfg.CaptionRetryInterval(),
		MaxAttempts: cfg.Captions.MaxAttempts,
		Logger:      logger,
	}
}

// Run tries immediately and then once per interval. It returns the number of
// attempts made and nil on success, ErrAttemptsExhausted (wrapping the last
// failure) when the budget runs out, or the context error on cancellation.
func (l *RetryLoop) Run(ctx context.Context, enabler Enabler) (int, error) {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultRetryInterval
	}
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	logger := l.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		lastErr = enabler.Enable(ctx)
		if lastErr == nil {
			logger.Info("captions enabled", logging.Int("attempt", attempt))
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		logger.Debug("caption enable attempt failed",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", maxAttempts),
			logging.Error(lastErr),
		)
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}
	return maxAttempts, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, maxAttempts, lastErr)
}
