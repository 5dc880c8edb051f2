// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package extractor turns a PDF into text by trying extraction strategies in a
// fixed order until one yields non-blank text.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cardscan/internal/observability"
)

// ErrNoTextFound is returned when every strategy failed or returned blank text
var ErrNoTextFound = errors.New("no text found")

// Strategy is one way of getting text out of a PDF
type Strategy interface {
	Name() string
	Extract(ctx context.Context, path string) (string, error)
}

// StrategyFunc adapts a function to the Strategy interface
type StrategyFunc struct {
	StrategyName string
	Fn           func(ctx context.Context, path string) (string, error)
}

func (s StrategyFunc) Name() string { return s.StrategyName }

func (s StrategyFunc) Extract(ctx context.Context, path string) (string, error) {
	return s.Fn(ctx, path)
}

// Result is the text produced by the winning strategy
type Result struct {
	Text     string
	Method   string
	Attempts int
	Duration time.Duration
}

// AttemptError records why one strategy did not produce text
type AttemptError struct {
	Method string
	Err    error // nil when the strategy returned blank text
}

func (e *AttemptError) Error() string {
	if e.Err == nil {
		return e.Method + ": empty text"
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Chain runs strategies in order. It is safe for concurrent use as long as
// its strategies are.
type Chain struct {
	strategies []Strategy
	timeout    time.Duration
	observer   *observability.StandardObserver
	debug      *observability.DebugObserver
}

// NewChain creates a chain over strategies in preference order
func NewChain(strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies}
}

// WithTimeout bounds each attempt. Zero disables the bound.
func (c *Chain) WithTimeout(d time.Duration) *Chain {
	c.timeout = d
	return c
}

// SetObserver sets the observability component
func (c *Chain) SetObserver(observer *observability.StandardObserver) {
	c.observer = observer
	if observer != nil {
		c.debug = observer.DebugObserver
	}
}

// Methods lists the strategy names in the order they are tried
func (c *Chain) Methods() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract returns the text of the first strategy that produces non-blank
// text. When none does, the error wraps ErrNoTextFound and every AttemptError.
func (c *Chain) Extract(ctx context.Context, path string) (Result, error) {
	start := time.Now()
	var attempts []error

	for i, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		text, err := c.attempt(ctx, s, path)
		if err == nil && strings.TrimSpace(text) != "" {
			return Result{
				Text:     text,
				Method:   s.Name(),
				Attempts: i + 1,
				Duration: time.Since(start),
			}, nil
		}

		// cancellation is not a strategy failure
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		attempts = append(attempts, &AttemptError{Method: s.Name(), Err: err})
	}

	if len(attempts) == 0 {
		return Result{}, fmt.Errorf("%w: no extraction method enabled", ErrNoTextFound)
	}
	return Result{}, fmt.Errorf("%w: %w", ErrNoTextFound, errors.Join(attempts...))
}

func (c *Chain) attempt(ctx context.Context, s Strategy, path string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	finishTiming := c.observer.StartTiming("extractor", s.Name(), path)
	finishStep := c.debug.StartStep("extractor", s.Name(), path)

	text, err := s.Extract(ctx, path)
	blank := strings.TrimSpace(text) == ""

	metadata := map[string]interface{}{"chars": len(text)}
	if err != nil {
		metadata["error"] = err
	}
	finishTiming(err == nil && !blank, metadata)

	switch {
	case err != nil:
		finishStep(false, err.Error())
	case blank:
		finishStep(false, "empty text")
	default:
		finishStep(true, fmt.Sprintf("%d chars", len(text)))
	}

	return text, err
}
