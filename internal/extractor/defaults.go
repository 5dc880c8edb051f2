// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package extractor

import (
	"context"
	"time"

	"cardscan/internal/extractor/cmdrunner"
	"cardscan/internal/extractor/layouttextlib"
	"cardscan/internal/extractor/ocrlib"
	"cardscan/internal/extractor/pdftextlib"
	"cardscan/internal/observability"
)

// Strategy names, in default preference order
const (
	MethodTextLayer = "text_layer"
	MethodLayout    = "layout"
	MethodOCR       = "ocr"
)

// Options selects and tunes the default strategies
type Options struct {
	TextLayer struct {
		Enabled  bool
		MaxPages int
	}
	Layout struct {
		Enabled  bool
		Binary   string
		MaxPages int
	}
	OCR struct {
		Enabled  bool
		Binary   string
		DPI      int
		MaxPages int
		TempDir  string
	}
	Timeout time.Duration // per attempt, 0 = none
}

// DefaultOptions enables all three strategies with their package defaults
func DefaultOptions() Options {
	var opts Options
	opts.TextLayer.Enabled = true
	opts.TextLayer.MaxPages = pdftextlib.DefaultMaxPages
	opts.Layout.Enabled = true
	opts.Layout.Binary = layouttextlib.DefaultBinaryName()
	opts.OCR.Enabled = true
	opts.OCR.Binary = ocrlib.DefaultBinaryName()
	opts.OCR.DPI = ocrlib.DefaultDPI
	opts.OCR.MaxPages = ocrlib.DefaultMaxPages
	opts.Timeout = 2 * time.Minute
	return opts
}

// NewDefaultChain builds text layer -> layout -> OCR, skipping disabled
// strategies. OCR is skipped when engine is nil. A nil runner runs commands
// with os/exec.
func NewDefaultChain(opts Options, engine ocrlib.Engine, runner cmdrunner.Runner, observer *observability.StandardObserver) *Chain {
	var debug *observability.DebugObserver
	if observer != nil {
		debug = observer.DebugObserver
	}
	if runner == nil {
		runner = cmdrunner.New(debug)
	}

	var strategies []Strategy

	if opts.TextLayer.Enabled {
		maxPages := opts.TextLayer.MaxPages
		strategies = append(strategies, StrategyFunc{
			StrategyName: MethodTextLayer,
			Fn: func(ctx context.Context, path string) (string, error) {
				content, err := pdftextlib.ExtractText(ctx, path, pdftextlib.Options{MaxPages: maxPages})
				if err != nil {
					return "", err
				}
				return content.Text, nil
			},
		})
	}

	if opts.Layout.Enabled {
		layout := layouttextlib.New(opts.Layout.Binary, opts.Layout.MaxPages, runner)
		strategies = append(strategies, StrategyFunc{StrategyName: MethodLayout, Fn: layout.ExtractText})
	}

	if opts.OCR.Enabled && engine != nil {
		ocr := ocrlib.New(engine, runner)
		if opts.OCR.Binary != "" {
			ocr.Binary = opts.OCR.Binary
		}
		if opts.OCR.DPI > 0 {
			ocr.DPI = opts.OCR.DPI
		}
		ocr.MaxPages = opts.OCR.MaxPages
		ocr.TempDir = opts.OCR.TempDir
		ocr.Debug = debug
		strategies = append(strategies, StrategyFunc{StrategyName: MethodOCR, Fn: ocr.ExtractText})
	}

	chain := NewChain(strategies...).WithTimeout(opts.Timeout)
	chain.SetObserver(observer)
	return chain
}
