package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestCallWithRetry_SucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	calls := 0
	resp, err := callWithRetry(context.Background(), zap.NewNop(), "classify", RetryConfig{BaseWait: time.Millisecond}, func(ctx context.Context) (RawCompletion, error) {
		calls++
		return RawCompletion{Text: "ok"}, nil
	})
	if err != nil {
		t.Fatalf("callWithRetry() error = %v", err)
	}
	if resp.Text != "ok" {
		t.Errorf("resp.Text = %q, want ok", resp.Text)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCallWithRetry_RetriesOnRetryableError(t *testing.T) {
	calls := 0
	resp, err := callWithRetry(context.Background(), zap.NewNop(), "classify", RetryConfig{MaxRetries: 2, BaseWait: time.Millisecond}, func(ctx context.Context) (RawCompletion, error) {
		calls++
		if calls < 3 {
			return RawCompletion{}, errors.New("connection reset")
		}
		return RawCompletion{Text: "recovered"}, nil
	})
	if err != nil {
		t.Fatalf("callWithRetry() error = %v", err)
	}
	if resp.Text != "recovered" {
		t.Errorf("resp.Text = %q, want recovered", resp.Text)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestCallWithRetry_StopsImmediatelyOnNonRetryableError(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), zap.NewNop(), "classify", RetryConfig{MaxRetries: 3, BaseWait: time.Millisecond}, func(ctx context.Context) (RawCompletion, error) {
		calls++
		return RawCompletion{}, errors.New("invalid api key")
	})
	if err == nil {
		t.Fatal("expected an error for a non-retryable failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retries on a non-retryable error)", calls)
	}
}

func TestCallWithRetry_ExhaustsConfiguredRetries(t *testing.T) {
	calls := 0
	_, err := callWithRetry(context.Background(), zap.NewNop(), "classify", RetryConfig{MaxRetries: 2, BaseWait: time.Millisecond}, func(ctx context.Context) (RawCompletion, error) {
		calls++
		return RawCompletion{}, errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected an error once retries are exhausted")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (1 initial + 2 retries)", calls)
	}
}

func TestRetryConfig_WithDefaultsFillsZeroFields(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5}.withDefaults()
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5 (explicit value preserved)", cfg.MaxRetries)
	}
	if cfg.BaseWait != defaultRetryConfig.BaseWait {
		t.Errorf("BaseWait = %v, want default %v", cfg.BaseWait, defaultRetryConfig.BaseWait)
	}
	if cfg.CallDeadline != defaultRetryConfig.CallDeadline {
		t.Errorf("CallDeadline = %v, want default %v", cfg.CallDeadline, defaultRetryConfig.CallDeadline)
	}
}
