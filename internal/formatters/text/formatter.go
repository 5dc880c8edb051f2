// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"cardscan/internal/batch"
	"cardscan/internal/formatters"
	"cardscan/internal/formatters/shared"
	"cardscan/internal/processor"

	"github.com/fatih/color"
)

// Formatter implements text-based output formatting
type Formatter struct {
	colors map[string]*color.Color
}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"green":   color.New(color.FgGreen),
			"red":     color.New(color.FgRed),
			"cyan":    color.New(color.FgCyan),
			"magenta": color.New(color.FgMagenta),
			"white":   color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable summary with colors; lists failures, or every file with --verbose"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(summary *batch.Summary, options formatters.FormatterOptions) (string, error) {
	if options.NoColor {
		color.NoColor = true
	}

	var builder strings.Builder

	if summary.Total() == 0 {
		builder.WriteString("No PDF files found.\n")
		return builder.String(), nil
	}

	for _, o := range summary.Outcomes {
		if !o.OK() || options.Verbose {
			builder.WriteString(f.StatusLine(o, options))
			builder.WriteByte('\n')
		}
	}

	f.appendTotals(&builder, summary)
	return builder.String(), nil
}

// StatusLine renders one outcome:
//
//	[OK] invoice.pdf -> output_txt/invoice.txt
//	[FAIL] scan.pdf: no text found
func (f *Formatter) StatusLine(o processor.Outcome, options formatters.FormatterOptions) string {
	if options.NoColor {
		color.NoColor = true
	}
	name := filepath.Base(o.Source)

	if !o.OK() {
		return fmt.Sprintf("%s %s: %s", f.colors["red"].Sprint("[FAIL]"), name, shared.FailureMessage(o))
	}

	line := fmt.Sprintf("%s %s -> %s", f.colors["green"].Sprint("[OK]"), name, filepath.ToSlash(o.OutputPath))
	if options.Verbose {
		number := o.CardNumber
		if !options.ShowNumber {
			number = shared.MaskNumber(number)
		}
		line += fmt.Sprintf(" %s %s", f.colors["cyan"].Sprint(number), f.colors["magenta"].Sprintf("(%s, %s)", o.Method, round(o.Duration)))
	}
	return line
}

// Totals renders only the closing totals line
func (f *Formatter) Totals(summary *batch.Summary, options formatters.FormatterOptions) string {
	if options.NoColor {
		color.NoColor = true
	}
	if summary.Total() == 0 {
		return "No PDF files found.\n"
	}
	var builder strings.Builder
	f.appendTotals(&builder, summary)
	return builder.String()
}

func (f *Formatter) appendTotals(builder *strings.Builder, summary *batch.Summary) {
	files := "files"
	if summary.Total() == 1 {
		files = "file"
	}
	f.colors["white"].Fprintf(builder, "%d %s processed", summary.Total(), files)
	builder.WriteString(": ")
	f.colors["green"].Fprintf(builder, "%d succeeded", summary.Succeeded)
	builder.WriteString(", ")
	if summary.Failed > 0 {
		f.colors["red"].Fprintf(builder, "%d failed", summary.Failed)
	} else {
		builder.WriteString("0 failed")
	}
	fmt.Fprintf(builder, " in %s\n", round(summary.Duration))
}

func round(d time.Duration) time.Duration {
	if d > time.Second {
		return d.Round(10 * time.Millisecond)
	}
	return d.Round(time.Millisecond)
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
