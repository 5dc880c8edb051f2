// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package processor runs one PDF through extraction, matching and
// normalization and writes the card number next to its siblings in the
// output directory.
package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cardscan/internal/extractor"
	"cardscan/internal/matcher"
	"cardscan/internal/normalizer"
	"cardscan/internal/observability"
)

// Per-file failure causes
var (
	ErrNoTextFound  = extractor.ErrNoTextFound
	ErrNoMatchFound = matcher.ErrNoMatchFound
)

// WriteError means the output file could not be written
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Reason classifies an Outcome
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonNoTextFound  Reason = "no_text_found"
	ReasonNoMatchFound Reason = "no_match_found"
	ReasonWriteError   Reason = "write_error"
	ReasonCanceled     Reason = "canceled"
)

// Outcome is the result of processing one source document
type Outcome struct {
	Source     string
	OutputPath string // set on success
	CardNumber string // set on success
	Method     string // extraction method that produced the text
	Reason     Reason
	Err        error
	Duration   time.Duration
}

// OK reports whether the output file was written
func (o Outcome) OK() bool {
	return o.Reason == ReasonOK
}

// TextExtractor produces text for a PDF. *extractor.Chain implements it.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (extractor.Result, error)
}

// Processor handles single files. It holds no per-file state and is safe for
// concurrent use.
type Processor struct {
	extractor TextExtractor
	matcher   *matcher.Matcher
	outputDir string

	observer *observability.StandardObserver
	debug    *observability.DebugObserver
}

// New creates a Processor writing into outputDir
func New(ext TextExtractor, m *matcher.Matcher, outputDir string) *Processor {
	if m == nil {
		m = matcher.NewDefault()
	}
	return &Processor{
		extractor: ext,
		matcher:   m,
		outputDir: outputDir,
	}
}

// SetObserver sets the observability component
func (p *Processor) SetObserver(observer *observability.StandardObserver) {
	p.observer = observer
	if observer != nil {
		p.debug = observer.DebugObserver
	}
}

// OutputDir returns the directory outputs are written to
func (p *Processor) OutputDir() string {
	return p.outputDir
}

// OutputPath returns where the result for source is written: the source
// file name with its extension replaced by .txt
func (p *Processor) OutputPath(source string) string {
	base := filepath.Base(source)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(p.outputDir, stem+".txt")
}

// Process extracts, matches, normalizes and writes the card number of path.
// Nothing is written unless every stage succeeds.
func (p *Processor) Process(ctx context.Context, path string) Outcome {
	start := time.Now()
	outcome := Outcome{Source: path}

	finishTiming := p.observer.StartTiming("processor", "process", path)
	finishStep := p.debug.StartStep("processor", "process", path)

	p.run(ctx, path, &outcome)
	outcome.Duration = time.Since(start)

	metadata := map[string]interface{}{"reason": string(outcome.Reason)}
	if outcome.Method != "" {
		metadata["method"] = outcome.Method
	}
	if outcome.Err != nil {
		metadata["error"] = outcome.Err
		finishStep(false, outcome.Err.Error())
	} else {
		finishStep(true, outcome.OutputPath)
	}
	finishTiming(outcome.OK(), metadata)

	return outcome
}

func (p *Processor) run(ctx context.Context, path string, outcome *Outcome) {
	text, err := p.extractor.Extract(ctx, path)
	if err != nil {
		outcome.Reason, outcome.Err = classify(err), err
		return
	}
	outcome.Method = text.Method

	match, err := p.matcher.Find(text.Text)
	if err != nil {
		outcome.Reason, outcome.Err = ReasonNoMatchFound, fmt.Errorf("%s text: %w", text.Method, err)
		return
	}
	p.debug.LogDetail("matcher", fmt.Sprintf("line %d: %q", match.Line, match.Raw))
	if p.debug != nil {
		if all := p.matcher.FindAll(text.Text); len(all) > 1 {
			p.debug.LogMetric("matcher", "candidates", len(all))
		}
	}

	number := normalizer.Normalize(match.Raw)
	outputPath := p.OutputPath(path)

	if err := writeAtomic(outputPath, number+"\n"); err != nil {
		outcome.Reason, outcome.Err = ReasonWriteError, &WriteError{Path: outputPath, Err: err}
		return
	}

	outcome.Reason = ReasonOK
	outcome.CardNumber = number
	outcome.OutputPath = outputPath
}

// classify maps an extraction error to a Reason
func classify(err error) Reason {
	if !errors.Is(err, ErrNoTextFound) &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return ReasonCanceled
	}
	return ReasonNoTextFound
}

// EnsureOutputDir creates dir and its parents
func EnsureOutputDir(dir string) error {
	if dir == "" {
		return errors.New("output directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat output directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output path %s is not a directory", dir)
	}
	return nil
}

// writeAtomic writes content to a temp file in the target directory and
// renames it over path, so readers never see a partial file
func writeAtomic(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	cleanup := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	if _, err := tmp.WriteString(content); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
