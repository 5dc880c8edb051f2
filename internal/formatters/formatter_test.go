// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package formatters_test

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"
	"testing"
	"time"

	"cardscan/internal/batch"
	"cardscan/internal/formatters"
	_ "cardscan/internal/formatters/csv"
	_ "cardscan/internal/formatters/json"
	"cardscan/internal/formatters/junit"
	"cardscan/internal/formatters/shared"
	"cardscan/internal/formatters/text"
	_ "cardscan/internal/formatters/yaml"
	"cardscan/internal/processor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() *batch.Summary {
	return &batch.Summary{
		Input: "inbox",
		Outcomes: []processor.Outcome{
			{
				Source:     "inbox/invoice.pdf",
				OutputPath: "output_txt/invoice.txt",
				CardNumber: "4539148803436467",
				Method:     "text_layer",
				Reason:     processor.ReasonOK,
				Duration:   12 * time.Millisecond,
			},
			{
				Source:   "inbox/scan.pdf",
				Reason:   processor.ReasonNoTextFound,
				Err:      fmt.Errorf("%w: ocr: tesseract failed", processor.ErrNoTextFound),
				Duration: 3 * time.Second,
			},
			{
				Source: "inbox/locked.pdf",
				Method: "layout",
				Reason: processor.ReasonWriteError,
				Err:    &processor.WriteError{Path: "output_txt/locked.txt", Err: fmt.Errorf("rename: %w", assert.AnError)},
			},
		},
		Succeeded: 1,
		Failed:    2,
		Duration:  3100 * time.Millisecond,
	}
}

func TestRegistry_ListsAllFormats(t *testing.T) {
	assert.Equal(t, []string{"csv", "json", "junit", "text", "yaml"}, formatters.List())

	_, err := formatters.Export("sarif", sampleSummary(), formatters.FormatterOptions{})
	assert.ErrorContains(t, err, "unsupported format 'sarif'")
}

func TestJSON_MasksNumbersByDefault(t *testing.T) {
	out, err := formatters.Export("json", sampleSummary(), formatters.FormatterOptions{})
	require.NoError(t, err)

	var report shared.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Files, 3)
	assert.Equal(t, "************6467", report.Files[0].CardNumber)
	assert.Equal(t, "fail", report.Files[1].Status)
	assert.Equal(t, "no_text_found", report.Files[1].Reason)
	assert.Contains(t, report.Files[1].Error, "no text found")

	out, err = formatters.Export("json", sampleSummary(), formatters.FormatterOptions{ShowNumber: true})
	require.NoError(t, err)
	assert.Contains(t, out, `"card_number": "4539148803436467"`)
}

func TestYAML_SameStructureAsJSON(t *testing.T) {
	out, err := formatters.Export("yaml", sampleSummary(), formatters.FormatterOptions{})
	require.NoError(t, err)

	var report shared.Report
	require.NoError(t, yaml.Unmarshal([]byte(out), &report))
	assert.Equal(t, "inbox", report.Input)
	assert.Equal(t, int64(3100), report.DurationMs)
	assert.Equal(t, "output_txt/invoice.txt", report.Files[0].Output)
}

func TestCSV(t *testing.T) {
	out, err := formatters.Export("csv", sampleSummary(), formatters.FormatterOptions{})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Source,Status,Reason,Card Number,Output,Method", lines[0])
	assert.Equal(t, "inbox/invoice.pdf,ok,ok,************6467,output_txt/invoice.txt,text_layer", lines[1])
}

func TestJUnit(t *testing.T) {
	out, err := formatters.Export("junit", sampleSummary(), formatters.FormatterOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, xml.Header))

	var suites junit.TestSuites
	require.NoError(t, xml.Unmarshal([]byte(strings.TrimPrefix(out, xml.Header)), &suites))
	assert.Equal(t, 3, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 1, suites.Errors)

	cases := suites.TestSuites[0].TestCases
	assert.Nil(t, cases[0].Failure)
	require.NotNil(t, cases[1].Failure)
	assert.Equal(t, "no text found", cases[1].Failure.Message)
	require.NotNil(t, cases[2].Error)
}

func TestText(t *testing.T) {
	opts := formatters.FormatterOptions{NoColor: true}

	out, err := formatters.Export("text", sampleSummary(), opts)
	require.NoError(t, err)
	assert.NotContains(t, out, "[OK]", "successes are listed only in verbose mode")
	assert.Contains(t, out, "[FAIL] scan.pdf: no text found\n")
	assert.Contains(t, out, "[FAIL] locked.pdf: cannot write output_txt/locked.txt: "+assert.AnError.Error())
	assert.Contains(t, out, "3 files processed: 1 succeeded, 2 failed in 3.1s")

	opts.Verbose = true
	out, err = formatters.Export("text", sampleSummary(), opts)
	require.NoError(t, err)
	assert.Contains(t, out, "[OK] invoice.pdf -> output_txt/invoice.txt ************6467 (text_layer, 12ms)")

	empty, err := formatters.Export("text", &batch.Summary{}, opts)
	require.NoError(t, err)
	assert.Equal(t, "No PDF files found.\n", empty)
}

func TestText_StatusLine(t *testing.T) {
	f := text.NewFormatter()
	opts := formatters.FormatterOptions{NoColor: true}
	s := sampleSummary()

	assert.Equal(t, "[OK] invoice.pdf -> output_txt/invoice.txt", f.StatusLine(s.Outcomes[0], opts))
	assert.Equal(t, "[FAIL] scan.pdf: no text found", f.StatusLine(s.Outcomes[1], opts))

	noMatch := processor.Outcome{Source: "x/receipt.pdf", Reason: processor.ReasonNoMatchFound, Err: processor.ErrNoMatchFound}
	assert.Equal(t, "[FAIL] receipt.pdf: no card number found", f.StatusLine(noMatch, opts))
}

func TestMaskNumber(t *testing.T) {
	assert.Equal(t, "********9012", shared.MaskNumber("345678909012"))
	assert.Equal(t, "1234", shared.MaskNumber("1234"))
	assert.Equal(t, "", shared.MaskNumber(""))
}

func TestText_Totals(t *testing.T) {
	opts := formatters.FormatterOptions{NoColor: true}
	f := text.NewFormatter()

	assert.Equal(t, "3 files processed: 1 succeeded, 2 failed in 3.1s\n", f.Totals(sampleSummary(), opts))

	one := &batch.Summary{Outcomes: []processor.Outcome{{Source: "a.pdf", Reason: processor.ReasonOK}}, Succeeded: 1, Duration: 40 * time.Millisecond}
	assert.Equal(t, "1 file processed: 1 succeeded, 0 failed in 40ms\n", f.Totals(one, opts))
}
