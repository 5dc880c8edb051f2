// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package pdftextlib

import (
	"context"
	"testing"

	"cardscan/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText_TextLayer(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePDF(t, dir, "invoice.pdf", "Invoice 42", "Card: 0012-3456-7890-1234")

	content, err := ExtractText(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "invoice.pdf", content.Filename)
	assert.Equal(t, 1, content.PageCount)
	assert.Contains(t, content.Text, "0012-3456-7890-1234")
}

func TestExtractText_NoTextLayer(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WritePDF(t, dir, "scan.pdf")

	content, err := ExtractText(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Empty(t, content.Text)
}

func TestExtractText_NotAPDF(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "broken.pdf", "this is not a pdf")

	_, err := ExtractText(context.Background(), path, Options{})
	assert.Error(t, err)
}

func TestExtractText_MissingFile(t *testing.T) {
	_, err := ExtractText(context.Background(), "/nonexistent/file.pdf", Options{})
	assert.Error(t, err)
}

func TestCleanText(t *testing.T) {
	in := "  Card:\t0012-3456  \n\n   \nTotal   42 "
	assert.Equal(t, "Card: 0012-3456\nTotal 42", cleanText(in))
}
