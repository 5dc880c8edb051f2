// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package batch processes a single PDF or every PDF in a directory.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"cardscan/internal/observability"
	"cardscan/internal/parallel"
	"cardscan/internal/processor"
)

// ErrNotPDF is returned when a single input file lacks the .pdf extension
var ErrNotPDF = errors.New("not a PDF file")

// FileProcessor handles one file. *processor.Processor implements it.
type FileProcessor interface {
	Process(ctx context.Context, path string) processor.Outcome
}

// Options tunes a Runner
type Options struct {
	Recursive bool // walk subdirectories
	Workers   int  // > 1 processes files concurrently

	// OnOutcome is called once per file as soon as its outcome is known.
	// With Workers > 1 calls arrive in completion order from the
	// collecting goroutine, never concurrently.
	OnOutcome func(processor.Outcome)
}

// Summary reports every processed file in input order
type Summary struct {
	Input     string              `json:"input"`
	Outcomes  []processor.Outcome `json:"-"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Duration  time.Duration       `json:"duration"`
}

// Total returns the number of files processed
func (s *Summary) Total() int {
	return len(s.Outcomes)
}

// Runner drives a FileProcessor over its inputs
type Runner struct {
	processor FileProcessor
	options   Options
	observer  *observability.StandardObserver
}

// NewRunner creates a batch runner
func NewRunner(p FileProcessor, opts Options) *Runner {
	return &Runner{processor: p, options: opts}
}

// SetObserver sets the observability component
func (r *Runner) SetObserver(observer *observability.StandardObserver) {
	r.observer = observer
}

// IsPDF reports whether name has a .pdf extension, ignoring case
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// Run processes input, which is either a PDF file or a directory. A failing
// file never stops the batch; the error return is reserved for inputs that
// cannot be enumerated.
func (r *Runner) Run(ctx context.Context, input string) (*Summary, error) {
	start := time.Now()

	files, err := r.Collect(input)
	if err != nil {
		return nil, err
	}

	finishStep := r.debug().StartStep("batch", "run", input)
	r.debug().LogMetric("batch", "files", len(files))

	var outcomes []processor.Outcome
	if r.options.Workers > 1 && len(files) > 1 {
		outcomes = r.runParallel(ctx, files)
	} else {
		outcomes = r.runSequential(ctx, files)
	}

	summary := &Summary{Input: input, Outcomes: outcomes, Duration: time.Since(start)}
	for _, o := range outcomes {
		if o.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}

	finishStep(summary.Failed == 0, fmt.Sprintf("%d ok, %d failed", summary.Succeeded, summary.Failed))
	return summary, nil
}

func (r *Runner) runSequential(ctx context.Context, files []string) []processor.Outcome {
	outcomes := make([]processor.Outcome, 0, len(files))
	for _, file := range files {
		var outcome processor.Outcome
		if err := ctx.Err(); err != nil {
			outcome = processor.Outcome{Source: file, Reason: processor.ReasonCanceled, Err: err}
		} else {
			outcome = r.processor.Process(ctx, file)
		}
		outcomes = append(outcomes, outcome)
		r.report(outcome)
	}
	return outcomes
}

func (r *Runner) runParallel(ctx context.Context, files []string) []processor.Outcome {
	reported := make(map[string]bool, len(files))
	pp := parallel.NewParallelProcessor(r.options.Workers, r.processor.Process, r.observer)
	outcomes, stats := pp.ProcessFiles(ctx, files, func(completed, total int, outcome processor.Outcome) {
		reported[outcome.Source] = true
		r.report(outcome)
	})
	r.debug().LogMetric("batch", "workers", stats.WorkerCount)
	r.debug().LogMetric("batch", "avg_file_ms", stats.AvgFileTime.Milliseconds())

	// outcomes for files never submitted were not reported yet
	for _, o := range outcomes {
		if !reported[o.Source] {
			r.report(o)
		}
	}
	return outcomes
}

func (r *Runner) report(o processor.Outcome) {
	if r.options.OnOutcome != nil {
		r.options.OnOutcome(o)
	}
}

func (r *Runner) debug() *observability.DebugObserver {
	if r.observer == nil {
		return nil
	}
	return r.observer.DebugObserver
}

// Collect resolves input to the PDF files a run would process, sorted by
// path
func (r *Runner) Collect(input string) ([]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("cannot access input %s: %w", input, err)
	}

	if !info.IsDir() {
		if !IsPDF(input) {
			return nil, fmt.Errorf("%w: %s", ErrNotPDF, input)
		}
		return []string{input}, nil
	}

	if r.options.Recursive {
		return walk(input)
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, fmt.Errorf("cannot read directory %s: %w", input, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && IsPDF(entry.Name()) {
			files = append(files, filepath.Join(input, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func walk(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && IsPDF(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot walk directory %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}
