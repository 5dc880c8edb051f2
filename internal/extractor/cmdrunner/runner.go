// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package cmdrunner runs the external poppler binaries used by the extractors.
package cmdrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"cardscan/internal/observability"
)

// maxStderr caps how much stderr is kept in errors and debug output
const maxStderr = 8 << 10

// Runner executes an external command. Tests substitute a stub.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	Debug *observability.DebugObserver
}

// New returns an ExecRunner that traces commands to debug when non-nil
func New(debug *observability.DebugObserver) *ExecRunner {
	return &ExecRunner{Debug: debug}
}

// Run executes name with args, killing the process when ctx is done
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.Debug.LogDetail("exec", fmt.Sprintf("%s %s failed after %dms: %v: %s",
			name, strings.Join(args, " "), dur.Milliseconds(), err, Truncate(errb.String(), maxStderr)))
		return out.Bytes(), errb.Bytes(), &Error{Name: name, Err: err, Stderr: Truncate(errb.String(), maxStderr)}
	}

	r.Debug.LogDetail("exec", fmt.Sprintf("%s ok in %dms (stdout %d bytes)", name, dur.Milliseconds(), out.Len()))
	return out.Bytes(), errb.Bytes(), nil
}

// Error describes a failed external command
type Error struct {
	Name   string
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" {
		return fmt.Sprintf("%s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Name, e.Err, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotInstalled reports whether err means the binary could not be found
func IsNotInstalled(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

// Truncate shortens s to max bytes, marking the cut
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
