package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// RetryConfig tunes the retry/backoff envelope around each stage call.
// Zero-valued fields fall back to the package defaults, so callers that
// only care about overriding one knob don't have to restate the rest.
type RetryConfig struct {
	MaxRetries   int
	BaseWait     time.Duration
	CallDeadline time.Duration
}

var defaultRetryConfig = RetryConfig{
	MaxRetries:   2,
	BaseWait:     500 * time.Millisecond,
	CallDeadline: 15 * time.Second,
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultRetryConfig.MaxRetries
	}
	if c.BaseWait <= 0 {
		c.BaseWait = defaultRetryConfig.BaseWait
	}
	if c.CallDeadline <= 0 {
		c.CallDeadline = defaultRetryConfig.CallDeadline
	}
	return c
}

// callWithRetry invokes fn with exponential backoff (base cfg.BaseWait, ×2)
// up to cfg.MaxRetries times, classifying errors as retryable or not, and
// enforcing a hard per-call deadline — grounded on the teacher's
// callLLMWithRetry.
func callWithRetry(ctx context.Context, logger *zap.Logger, stage string, cfg RetryConfig, fn func(ctx context.Context) (RawCompletion, error)) (RawCompletion, error) {
	cfg = cfg.withDefaults()
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := cfg.BaseWait * time.Duration(1<<(attempt-1))
			logger.Info("retrying pipeline stage call",
				zap.String("stage", stage),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return RawCompletion{}, ctx.Err()
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, cfg.CallDeadline)
		resp, err := fn(callCtx)
		cancel()

		if err == nil {
			return resp, nil
		}

		lastErr = err
		logger.Warn("pipeline stage call failed",
			zap.String("stage", stage),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if !isRetryableError(err) {
			return RawCompletion{}, fmt.Errorf("non-retryable %s error: %w", stage, err)
		}
	}

	return RawCompletion{}, fmt.Errorf("%s failed after %d retries: %w", stage, cfg.MaxRetries, lastErr)
}

// isRetryableError classifies transport/provider errors as worth a retry.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	nonRetryable := []string{
		"context canceled",
		"unauthorized",
		"invalid api key",
		"bad request",
		"invalid argument",
		"model not found",
	}
	for _, pattern := range nonRetryable {
		if strings.Contains(errStr, pattern) {
			return false
		}
	}

	retryable := []string{
		"timeout",
		"deadline exceeded",
		"connection reset",
		"connection refused",
		"eof",
		"server error",
		"502", "503", "504", "529",
		"rate limit",
		"too many requests",
		"overloaded",
		"temporarily unavailable",
	}
	for _, pattern := range retryable {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return true
}
