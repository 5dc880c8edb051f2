// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package layouttextlib extracts layout-preserving text with poppler's pdftotext.
package layouttextlib

import (
	"context"
	"fmt"
	"strings"

	"cardscan/internal/extractor/cmdrunner"
	"cardscan/internal/platform"
)

// DefaultBinary is looked up on PATH when no binary is configured
const DefaultBinary = "pdftotext"

// DefaultBinaryName is DefaultBinary with the platform executable extension
func DefaultBinaryName() string {
	return DefaultBinary + platform.GetPlatform().GetExecutableExtension()
}

// Extractor runs pdftotext -layout and returns its output
type Extractor struct {
	Binary   string
	MaxPages int // 0 = all pages
	Runner   cmdrunner.Runner
}

// New creates an Extractor. Empty binary falls back to DefaultBinaryName.
func New(binary string, maxPages int, runner cmdrunner.Runner) *Extractor {
	if binary == "" {
		binary = DefaultBinaryName()
	}
	if runner == nil {
		runner = cmdrunner.New(nil)
	}
	return &Extractor{Binary: binary, MaxPages: maxPages, Runner: runner}
}

// ExtractText returns the text of filePath with the physical layout kept.
// Pages are separated by form feeds in pdftotext output; they become blank lines.
func (e *Extractor) ExtractText(ctx context.Context, filePath string) (string, error) {
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if e.MaxPages > 0 {
		args = append(args, "-l", fmt.Sprint(e.MaxPages))
	}
	args = append(args, filePath, "-")

	out, _, err := e.Runner.Run(ctx, e.Binary, args...)
	if cmdrunner.IsNotInstalled(err) {
		return "", fmt.Errorf("%s not installed: %w", e.Binary, err)
	}
	if err != nil {
		return "", fmt.Errorf("layout extraction failed: %w", err)
	}

	return strings.ReplaceAll(string(out), "\f", "\n\n"), nil
}
