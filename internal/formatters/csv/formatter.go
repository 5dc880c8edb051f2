// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package csv

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"cardscan/internal/batch"
	"cardscan/internal/formatters"
	"cardscan/internal/formatters/shared"
)

// Formatter implements CSV output formatting
type Formatter struct{}

// NewFormatter creates a new CSV formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "csv"
}

func (f *Formatter) Description() string {
	return "Comma-separated values for spreadsheet import, one row per PDF"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

func (f *Formatter) Format(summary *batch.Summary, options formatters.FormatterOptions) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	headers := []string{"Source", "Status", "Reason", "Card Number", "Output", "Method"}
	if options.Verbose {
		headers = append(headers, "Duration ms", "Error")
	}
	if err := w.Write(headers); err != nil {
		return "", err
	}

	for _, o := range summary.Outcomes {
		r := shared.ConvertOutcome(o, options)
		row := []string{r.Source, r.Status, r.Reason, r.CardNumber, r.Output, r.Method}
		if options.Verbose {
			row = append(row, strconv.FormatInt(r.DurationMs, 10), r.Error)
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("error formatting CSV: %w", err)
	}
	return sb.String(), nil
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
