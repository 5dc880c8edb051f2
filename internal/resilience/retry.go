// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryConfig holds retry configuration.
type RetryConfig struct {
	MaxRetries      int                          // Maximum number of retry attempts, 0 = bounded only by MaxElapsedTime
	InitialInterval time.Duration                // Initial retry interval
	MaxInterval     time.Duration                // Maximum retry interval
	Multiplier      float64                      // Exponential backoff multiplier (e.g. 2.0 doubles each attempt)
	MaxElapsedTime  time.Duration                // Maximum total time for all retries, 0 = unbounded
	Jitter          bool                         // Add up to 25% random jitter to spread retries
	OnRetry         func(attempt int, err error) // Optional callback invoked before each retry
}

// PollRetryConfig retries at a fixed interval until timeout has elapsed.
// It suits waiting on a file that another process is still writing.
func PollRetryConfig(interval, timeout time.Duration) RetryConfig {
	return RetryConfig{
		InitialInterval: interval,
		MaxInterval:     interval,
		Multiplier:      1.0,
		MaxElapsedTime:  timeout,
	}
}

// RetryableOperation represents an operation that can be retried.
type RetryableOperation func(ctx context.Context) error

// RetryWithBackoff executes an operation with exponential backoff and optional jitter.
// The delay before attempt n is: InitialInterval * Multiplier^(n-1), capped at MaxInterval.
// It stops at the first non-retryable error, after MaxRetries retries, or
// when the next delay would cross MaxElapsedTime. The last error is returned.
func RetryWithBackoff(ctx context.Context, config RetryConfig, operation RetryableOperation) error {
	start := time.Now()
	var lastErr error

	for attempt := 0; config.MaxRetries <= 0 || attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(config, attempt)
			if config.MaxElapsedTime > 0 && time.Since(start)+delay > config.MaxElapsedTime {
				return lastErr
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}

			if config.OnRetry != nil {
				config.OnRetry(attempt, lastErr)
			}
		}

		err := operation(ctx)
		if err == nil {
			return nil
		}

		lastErr = err

		if !ClassifyError(err).IsRetryable() {
			return err
		}
		if config.MaxRetries <= 0 && config.MaxElapsedTime <= 0 {
			// neither bound set: a single attempt
			return err
		}
	}

	return lastErr
}

func backoff(config RetryConfig, attempt int) time.Duration {
	delay := float64(config.InitialInterval)
	for i := 1; i < attempt; i++ {
		delay *= config.Multiplier
	}
	if config.Jitter {
		delay += delay * 0.25 * rand.Float64()
	}
	if config.MaxInterval > 0 {
		return min(time.Duration(delay), config.MaxInterval)
	}
	return time.Duration(delay)
}

// RetryStats holds statistics about retry operations.
type RetryStats struct {
	TotalAttempts   int           `json:"total_attempts"`
	SuccessfulAfter int           `json:"successful_after"` // 0 if failed, attempt number if succeeded
	TotalDuration   time.Duration `json:"total_duration"`
	LastError       string        `json:"last_error,omitempty"`
	ErrorTypes      []string      `json:"error_types,omitempty"`
}

// RetryWithStats executes an operation with retry and collects statistics.
func RetryWithStats(ctx context.Context, config RetryConfig, operation RetryableOperation) (*RetryStats, error) {
	stats := &RetryStats{
		ErrorTypes: make([]string, 0),
	}

	start := time.Now()

	err := RetryWithBackoff(ctx, config, func(ctx context.Context) error {
		stats.TotalAttempts++
		err := operation(ctx)
		if err != nil {
			stats.LastError = err.Error()
			stats.ErrorTypes = append(stats.ErrorTypes, ClassifyError(err).Type.String())
		}
		return err
	})

	stats.TotalDuration = time.Since(start)
	if err == nil {
		stats.SuccessfulAfter = stats.TotalAttempts
	}

	return stats, err
}
