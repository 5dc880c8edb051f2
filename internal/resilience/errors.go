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
	"strings"
	"syscall"
)

// ErrorType represents different types of errors for handling strategies
type ErrorType int

const (
	ErrorTypeUnknown       ErrorType = iota
	ErrorTypeTransient               // File still being written, busy handles
	ErrorTypePermanent               // Permissions, missing tools
	ErrorTypeTimeout                 // Deadline exceeded
	ErrorTypeCanceled                // Context canceled
	ErrorTypeInvalidInput            // Malformed documents
	ErrorTypeNotFound                // Missing files
)

func (et ErrorType) String() string {
	switch et {
	case ErrorTypeUnknown:
		return "Unknown"
	case ErrorTypeTransient:
		return "Transient"
	case ErrorTypePermanent:
		return "Permanent"
	case ErrorTypeTimeout:
		return "Timeout"
	case ErrorTypeCanceled:
		return "Canceled"
	case ErrorTypeInvalidInput:
		return "InvalidInput"
	case ErrorTypeNotFound:
		return "NotFound"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(et))
	}
}

// ClassifiedError wraps an error with type information
type ClassifiedError struct {
	Original  error
	Type      ErrorType
	Message   string
	Retryable bool
}

func (e *ClassifiedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Original == nil {
		return e.Type.String()
	}
	return e.Original.Error()
}

func (e *ClassifiedError) Unwrap() error {
	return e.Original
}

// IsRetryable returns whether this error should be retried
func (e *ClassifiedError) IsRetryable() bool {
	return e.Retryable
}

// ClassifyError categorizes an error for appropriate handling
func ClassifyError(err error) *ClassifiedError {
	if err == nil {
		return nil
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified
	}

	classify := func(t ErrorType, label string, retryable bool) *ClassifiedError {
		return &ClassifiedError{
			Original:  err,
			Type:      t,
			Message:   fmt.Sprintf("%s: %v", label, err),
			Retryable: retryable,
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return classify(ErrorTypeCanceled, "Canceled", false)
	case errors.Is(err, context.DeadlineExceeded):
		return classify(ErrorTypeTimeout, "Timeout error", false)
	case errors.Is(err, exec.ErrNotFound):
		return classify(ErrorTypePermanent, "Tool not installed", false)
	case errors.Is(err, fs.ErrNotExist):
		return classify(ErrorTypeNotFound, "File not found", false)
	case errors.Is(err, fs.ErrPermission):
		return classify(ErrorTypePermanent, "Permission denied", false)
	case isIncompleteRead(err):
		return classify(ErrorTypeTransient, "Incomplete file", true)
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return classify(ErrorTypeTimeout, "Timeout error", false)
	case strings.Contains(errStr, "invalid") || strings.Contains(errStr, "malformed") ||
		strings.Contains(errStr, "corrupt"):
		return classify(ErrorTypeInvalidInput, "Invalid input", false)
	}

	return classify(ErrorTypeUnknown, "Unknown error", false)
}

// isIncompleteRead reports errors typical of reading a file another process
// is still writing
func isIncompleteRead(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.EAGAIN)
}

// NewTransientError creates a new transient error
func NewTransientError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypeTransient,
		Message:   message,
		Retryable: true,
	}
}

// NewPermanentError creates a new permanent error
func NewPermanentError(message string, cause error) *ClassifiedError {
	return &ClassifiedError{
		Original:  cause,
		Type:      ErrorTypePermanent,
		Message:   message,
		Retryable: false,
	}
}

// IsRetryable reports whether an error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return ClassifyError(err).IsRetryable()
}
