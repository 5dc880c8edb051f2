// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"
	"testing"
	"time"
)

func TestRetryWithBackoff_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), RetryConfig{MaxRetries: 3}, func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestRetryWithBackoff_RetriesOnTransientError(t *testing.T) {
	calls := 0
	transient := NewTransientError("file still growing", nil)

	err := RetryWithBackoff(context.Background(), RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Multiplier:      2.0,
	}, func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), RetryConfig{
		MaxRetries:      5,
		InitialInterval: time.Millisecond,
		Multiplier:      2.0,
	}, func(ctx context.Context) error {
		calls++
		return NewPermanentError("permission denied", nil)
	})

	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if calls != 1 {
		t.Errorf("expected 1 call (no retries on permanent error), got %d", calls)
	}
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(context.Background(), RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		Multiplier:      2.0,
	}, func(ctx context.Context) error {
		calls++
		return NewTransientError("always fails", nil)
	})

	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 4 {
		t.Errorf("expected 4 calls (1 + 3 retries), got %d", calls)
	}
}

func TestRetryWithBackoff_StopsAtMaxElapsedTime(t *testing.T) {
	calls := 0
	start := time.Now()
	err := RetryWithBackoff(context.Background(), PollRetryConfig(5*time.Millisecond, 40*time.Millisecond), func(ctx context.Context) error {
		calls++
		return NewTransientError("still growing", nil)
	})

	if err == nil {
		t.Fatal("expected error once the time budget ran out")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("retry ran for %v, expected it to stop near 40ms", elapsed)
	}
	if calls < 2 {
		t.Errorf("expected several polls, got %d", calls)
	}
}

func TestRetryWithBackoff_RespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	err := RetryWithBackoff(ctx, RetryConfig{
		MaxRetries:      10,
		InitialInterval: 50 * time.Millisecond,
		Multiplier:      1.0,
	}, func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError("transient", nil)
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call before cancellation, got %d", calls)
	}
}

func TestRetryWithBackoff_OnRetryCallback(t *testing.T) {
	var retried []int
	_ = RetryWithBackoff(context.Background(), RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		Multiplier:      1.0,
		OnRetry:         func(attempt int, err error) { retried = append(retried, attempt) },
	}, func(ctx context.Context) error {
		return NewTransientError("transient", nil)
	})

	if len(retried) != 2 || retried[0] != 1 || retried[1] != 2 {
		t.Errorf("expected retries [1 2], got %v", retried)
	}
}

func TestRetryWithStats(t *testing.T) {
	calls := 0
	stats, err := RetryWithStats(context.Background(), RetryConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		Multiplier:      1.0,
	}, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return fmt.Errorf("read xref: %w", io.ErrUnexpectedEOF)
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if stats.TotalAttempts != 2 || stats.SuccessfulAfter != 2 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if len(stats.ErrorTypes) != 1 || stats.ErrorTypes[0] != "Transient" {
		t.Errorf("expected one Transient error, got %v", stats.ErrorTypes)
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"unexpected eof", fmt.Errorf("parse: %w", io.ErrUnexpectedEOF), ErrorTypeTransient, true},
		{"missing file", fmt.Errorf("open: %w", fs.ErrNotExist), ErrorTypeNotFound, false},
		{"permission", fmt.Errorf("open: %w", fs.ErrPermission), ErrorTypePermanent, false},
		{"missing tool", &exec.Error{Name: "pdftoppm", Err: exec.ErrNotFound}, ErrorTypePermanent, false},
		{"canceled", context.Canceled, ErrorTypeCanceled, false},
		{"deadline", context.DeadlineExceeded, ErrorTypeTimeout, false},
		{"malformed", errors.New("malformed xref table"), ErrorTypeInvalidInput, false},
		{"unknown", errors.New("boom"), ErrorTypeUnknown, false},
		{"already classified", NewTransientError("growing", nil), ErrorTypeTransient, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			if got.Type != tt.wantType {
				t.Errorf("type = %v, want %v", got.Type, tt.wantType)
			}
			if got.IsRetryable() != tt.retryable {
				t.Errorf("retryable = %v, want %v", got.IsRetryable(), tt.retryable)
			}
		})
	}

	if ClassifyError(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestClassifiedError_Unwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewTransientError("incomplete", cause)

	if !errors.Is(err, cause) {
		t.Error("expected wrapped cause to be reachable")
	}
	if err.Error() != "incomplete" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", err)) {
		t.Error("expected wrapped transient error to stay retryable")
	}
}
