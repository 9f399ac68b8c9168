package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/fiscal-doc-pipeline/internal/core/domain"
)

func fastConfig(breaker bool) Config {
	return Config{
		RetryMaxAttempts:        3,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         2 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          breaker,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func TestCallRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)

	attempts := 0
	out, err := Call(context.Background(), exec, "oracle.complete", func(context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", domain.WrapError(domain.ErrTemporary, "generate", errors.New("503"))
		}
		return `{"document_type":"Invoice"}`, nil
	}, ClassifyByKind)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 || out != `{"document_type":"Invoice"}` {
		t.Fatalf("unexpected result: attempts=%d out=%q", attempts, out)
	}
}

func TestExecuteDoesNotRetryInvalidInput(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)

	attempts := 0
	errBad := domain.WrapError(domain.ErrInvalidInput, "send email", errors.New("missing recipient"))
	err := exec.Execute(context.Background(), "backend.send_email", func(context.Context) error {
		attempts++
		return errBad
	}, ClassifyByKind)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestExecuteStopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(fastConfig(false), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := exec.Execute(ctx, "op", func(context.Context) error {
		t.Fatalf("operation must not run with a cancelled context")
		return nil
	}, ClassifyByKind)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecuteOpensCircuitAfterFailures(t *testing.T) {
	cfg := fastConfig(true)
	cfg.RetryMaxAttempts = 1
	exec := NewExecutor(cfg, nil)

	errDown := errors.New("connection refused")
	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "op", func(context.Context) error {
			return errDown
		}, ClassifyByKind)
		if !errors.Is(err, errDown) {
			t.Fatalf("expected failure on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "op", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, ClassifyByKind)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}

	other := exec.Execute(context.Background(), "other-op", func(context.Context) error { return nil }, ClassifyByKind)
	if other != nil {
		t.Fatalf("breakers must be per operation, got %v", other)
	}
}

func TestClassifyByKind(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorClassification
	}{
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), ErrorClassification{Retryable: true, RecordFailure: true}},
		{domain.WrapError(domain.ErrUnauthorized, "op", errors.New("x")), ErrorClassification{}},
		{context.DeadlineExceeded, ErrorClassification{}},
		{errors.New("boom"), ErrorClassification{RecordFailure: true}},
	}
	for _, tc := range cases {
		if got := ClassifyByKind(tc.err); got != tc.want {
			t.Fatalf("ClassifyByKind(%v) = %+v, want %+v", tc.err, got, tc.want)
		}
	}
}
