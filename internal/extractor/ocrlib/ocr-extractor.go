// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ocrlib recognizes text on rendered PDF pages. Pages are rasterized
// with poppler's pdftoppm and each image is passed to an Engine.
package ocrlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cardscan/internal/extractor/cmdrunner"
	"cardscan/internal/observability"
	"cardscan/internal/pdfcheck"
	"cardscan/internal/platform"
)

// Defaults for rasterization
const (
	DefaultBinary   = "pdftoppm"
	DefaultDPI      = 300
	DefaultMaxPages = 10
)

// DefaultBinaryName is DefaultBinary with the platform executable extension
func DefaultBinaryName() string {
	return DefaultBinary + platform.GetPlatform().GetExecutableExtension()
}

// Engine turns one page image into text
type Engine interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// ErrNoEngine is returned when OCR is attempted without an engine
var ErrNoEngine = errors.New("no OCR engine configured")

// Extractor renders pages and runs OCR on them
type Extractor struct {
	Binary   string
	DPI      int
	MaxPages int
	TempDir  string // parent of the per-document render directory; "" = os default
	Runner   cmdrunner.Runner
	Engine   Engine

	// PageCount reports the number of pages of a PDF. Defaults to pdfcheck.PageCount.
	PageCount func(path string) (int, error)

	Debug *observability.DebugObserver
}

// New creates an OCR extractor with defaults applied
func New(engine Engine, runner cmdrunner.Runner) *Extractor {
	if runner == nil {
		runner = cmdrunner.New(nil)
	}
	return &Extractor{
		Binary:    DefaultBinaryName(),
		DPI:       DefaultDPI,
		MaxPages:  DefaultMaxPages,
		Runner:    runner,
		Engine:    engine,
		PageCount: pdfcheck.PageCount,
	}
}

// ExtractText renders up to MaxPages pages of filePath and returns the
// recognized text of all pages in order, separated by blank lines
func (e *Extractor) ExtractText(ctx context.Context, filePath string) (string, error) {
	if e.Engine == nil {
		return "", ErrNoEngine
	}

	lastPage := e.pagesToRender(filePath)

	dir, err := os.MkdirTemp(e.TempDir, "cardscan-ocr-*")
	if err != nil {
		return "", fmt.Errorf("failed to create render directory: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := filepath.Join(dir, "page")
	dpi := e.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	args := []string{"-r", fmt.Sprint(dpi), "-png", "-f", "1"}
	if lastPage > 0 {
		args = append(args, "-l", fmt.Sprint(lastPage))
	}
	args = append(args, filePath, prefix)

	if _, _, err := e.Runner.Run(ctx, e.binary(), args...); err != nil {
		if cmdrunner.IsNotInstalled(err) {
			return "", fmt.Errorf("%s not installed: %w", e.binary(), err)
		}
		return "", fmt.Errorf("page rendering failed: %w", err)
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", err
	}
	if len(images) == 0 {
		return "", fmt.Errorf("page rendering produced no images")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order
	sort.Strings(images)

	var pages []string
	var failures []error
	for _, img := range images {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := e.Engine.Recognize(ctx, img)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", filepath.Base(img), err))
			e.Debug.LogDetail("ocr", fmt.Sprintf("%s failed on %s: %v", e.Engine.Name(), filepath.Base(img), err))
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	if len(pages) == 0 {
		return "", fmt.Errorf("OCR failed on every page: %w", errors.Join(failures...))
	}
	return strings.Join(pages, "\n\n"), nil
}

// pagesToRender returns the last page to rasterize, 0 meaning no limit
func (e *Extractor) pagesToRender(filePath string) int {
	limit := e.MaxPages
	if e.PageCount == nil {
		return limit
	}

	n, err := e.PageCount(filePath)
	if err != nil {
		e.Debug.LogDetail("ocr", fmt.Sprintf("page count unavailable, rendering up to %d pages: %v", limit, err))
		return limit
	}
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

func (e *Extractor) binary() string {
	if e.Binary == "" {
		return DefaultBinaryName()
	}
	return e.Binary
}
