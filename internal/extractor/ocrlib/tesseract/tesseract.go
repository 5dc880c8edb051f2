// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package tesseract implements ocrlib.Engine with gosseract. It requires cgo
// and the tesseract/leptonica libraries, so it is kept out of the packages
// that only need the Engine interface.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// DefaultLanguage is used when none is configured
const DefaultLanguage = "eng"

// Engine runs Tesseract through a fresh gosseract client per image
type Engine struct {
	Languages     []string
	DPI           int
	TessdataDir   string
	clientFactory func() *gosseract.Client
}

// New creates a Tesseract engine for the given languages
func New(dpi int, tessdataDir string, languages ...string) *Engine {
	if len(languages) == 0 {
		languages = []string{DefaultLanguage}
	}
	return &Engine{
		Languages:     languages,
		DPI:           dpi,
		TessdataDir:   tessdataDir,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the text Tesseract reads from the image at imagePath
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := e.clientFactory()
	defer c.Close()

	if e.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.TessdataDir); err != nil {
			return "", fmt.Errorf("set tessdata dir: %w", err)
		}
	}
	if err := c.SetLanguage(e.Languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if e.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.DPI)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImage(imagePath); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
