// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package ocrlib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"cardscan/internal/platform"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// renderRunner imitates pdftoppm by writing one file per page next to the prefix
type renderRunner struct {
	pages int
	name  string
	args  []string
	err   error
}

func (r *renderRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.name = name
	r.args = args
	if r.err != nil {
		return nil, []byte("render failed"), r.err
	}
	prefix := args[len(args)-1]
	for i := 1; i <= r.pages; i++ {
		path := fmt.Sprintf("%s-%02d.png", prefix, i)
		if err := os.WriteFile(path, []byte(fmt.Sprintf("page %d", i)), 0o600); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}

// fileEngine "recognizes" an image by returning its contents
type fileEngine struct {
	fail map[string]bool
}

func (fileEngine) Name() string { return "stub" }

func (f fileEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	if f.fail[filepath.Base(imagePath)] {
		return "", errors.New("unreadable image")
	}
	data, err := os.ReadFile(imagePath)
	return string(data), err
}

func newTestExtractor(t *testing.T, runner *renderRunner, engine Engine) *Extractor {
	e := New(engine, runner)
	e.TempDir = t.TempDir()
	e.PageCount = func(string) (int, error) { return runner.pages, nil }
	return e
}

func TestExtractText_PagesInOrder(t *testing.T) {
	runner := &renderRunner{pages: 3}
	e := newTestExtractor(t, runner, fileEngine{})

	text, err := e.ExtractText(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "page 1\n\npage 2\n\npage 3", text)
	assert.Equal(t, []string{"-r", "300", "-png", "-f", "1", "-l", "3", "scan.pdf"}, runner.args[:len(runner.args)-1])
}

func TestExtractText_LimitsPages(t *testing.T) {
	runner := &renderRunner{pages: 2}
	e := newTestExtractor(t, runner, fileEngine{})
	e.MaxPages = 2
	e.PageCount = func(string) (int, error) { return 40, nil }

	_, err := e.ExtractText(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Contains(t, runner.args, "-l")
	assert.Equal(t, "2", runner.args[6])
}

func TestExtractText_PageCountFailureUsesLimit(t *testing.T) {
	runner := &renderRunner{pages: 1}
	e := newTestExtractor(t, runner, fileEngine{})
	e.PageCount = func(string) (int, error) { return 0, errors.New("corrupt xref") }

	text, err := e.ExtractText(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "page 1", text)
	assert.Equal(t, fmt.Sprint(DefaultMaxPages), runner.args[6])
}

func TestExtractText_SkipsFailedPages(t *testing.T) {
	runner := &renderRunner{pages: 2}
	e := newTestExtractor(t, runner, fileEngine{fail: map[string]bool{"page-01.png": true}})

	text, err := e.ExtractText(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "page 2", text)
}

func TestExtractText_AllPagesFail(t *testing.T) {
	runner := &renderRunner{pages: 1}
	e := newTestExtractor(t, runner, fileEngine{fail: map[string]bool{"page-01.png": true}})

	_, err := e.ExtractText(context.Background(), "scan.pdf")
	assert.Error(t, err)
}

func TestExtractText_RenderFailure(t *testing.T) {
	runner := &renderRunner{err: errors.New("exit status 1")}
	e := newTestExtractor(t, runner, fileEngine{})

	_, err := e.ExtractText(context.Background(), "scan.pdf")
	assert.Error(t, err)
}

func TestExtractText_NoImages(t *testing.T) {
	runner := &renderRunner{pages: 0}
	e := newTestExtractor(t, runner, fileEngine{})
	e.PageCount = nil

	_, err := e.ExtractText(context.Background(), "scan.pdf")
	assert.Error(t, err)
}

func TestExtractText_NoEngine(t *testing.T) {
	e := New(nil, &renderRunner{})
	_, err := e.ExtractText(context.Background(), "scan.pdf")
	assert.ErrorIs(t, err, ErrNoEngine)
}

func TestExtractText_CleansUpRenderDirectory(t *testing.T) {
	runner := &renderRunner{pages: 1}
	e := newTestExtractor(t, runner, fileEngine{})

	_, err := e.ExtractText(context.Background(), "scan.pdf")
	require.NoError(t, err)

	entries, err := os.ReadDir(e.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestExtractText_DefaultBinaryHasPlatformExtension(t *testing.T) {
	runner := &renderRunner{pages: 1}
	e := newTestExtractor(t, runner, fileEngine{})

	_, err := e.ExtractText(context.Background(), "scan.pdf")
	require.NoError(t, err)
	assert.Equal(t, "pdftoppm"+platform.GetPlatform().GetExecutableExtension(), runner.name)

	e.Binary = ""
	assert.Equal(t, DefaultBinaryName(), e.binary())
}
