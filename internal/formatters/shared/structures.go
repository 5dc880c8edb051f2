// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package shared

import (
	"errors"
	"path/filepath"
	"strings"

	"cardscan/internal/batch"
	"cardscan/internal/formatters"
	"cardscan/internal/processor"
)

// Report is the top-level structure for JSON/YAML output
type Report struct {
	Input      string       `json:"input" yaml:"input"`
	Total      int          `json:"total" yaml:"total"`
	Succeeded  int          `json:"succeeded" yaml:"succeeded"`
	Failed     int          `json:"failed" yaml:"failed"`
	DurationMs int64        `json:"duration_ms" yaml:"duration_ms"`
	Files      []FileResult `json:"files" yaml:"files"`
}

// FileResult is one processed document
type FileResult struct {
	Source     string `json:"source" yaml:"source"`
	Status     string `json:"status" yaml:"status"`
	Reason     string `json:"reason" yaml:"reason"`
	Output     string `json:"output,omitempty" yaml:"output,omitempty"`
	CardNumber string `json:"card_number,omitempty" yaml:"card_number,omitempty"`
	Method     string `json:"method,omitempty" yaml:"method,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
	DurationMs int64  `json:"duration_ms" yaml:"duration_ms"`
}

// Status values
const (
	StatusOK   = "ok"
	StatusFail = "fail"
)

// MaskNumber keeps the last four digits of a card number
func MaskNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// ConvertSummary converts a batch summary into the JSON/YAML structure.
// Every file is included regardless of options.Verbose.
func ConvertSummary(summary *batch.Summary, options formatters.FormatterOptions) Report {
	report := Report{
		Input:      summary.Input,
		Total:      summary.Total(),
		Succeeded:  summary.Succeeded,
		Failed:     summary.Failed,
		DurationMs: summary.Duration.Milliseconds(),
		Files:      make([]FileResult, 0, summary.Total()),
	}
	for _, o := range summary.Outcomes {
		report.Files = append(report.Files, ConvertOutcome(o, options))
	}
	return report
}

// ConvertOutcome converts one outcome
func ConvertOutcome(o processor.Outcome, options formatters.FormatterOptions) FileResult {
	result := FileResult{
		Source:     o.Source,
		Status:     StatusOK,
		Reason:     string(o.Reason),
		Output:     o.OutputPath,
		Method:     o.Method,
		DurationMs: o.Duration.Milliseconds(),
	}
	if !o.OK() {
		result.Status = StatusFail
	}
	if o.CardNumber != "" {
		result.CardNumber = o.CardNumber
		if !options.ShowNumber {
			result.CardNumber = MaskNumber(o.CardNumber)
		}
	}
	if o.Err != nil {
		result.Error = o.Err.Error()
	}
	return result
}

// FailureMessage is the short, user-facing cause of a failed outcome
func FailureMessage(o processor.Outcome) string {
	var we *processor.WriteError
	switch {
	case errors.Is(o.Err, processor.ErrNoTextFound):
		return "no text found"
	case errors.Is(o.Err, processor.ErrNoMatchFound):
		return "no card number found"
	case errors.As(o.Err, &we):
		return "cannot write " + filepath.ToSlash(we.Path) + ": " + unwrapMessage(we.Err)
	case o.Err != nil:
		return o.Err.Error()
	default:
		return string(o.Reason)
	}
}

func unwrapMessage(err error) string {
	if err == nil {
		return ""
	}
	if inner := errors.Unwrap(err); inner != nil {
		return inner.Error()
	}
	return err.Error()
}
