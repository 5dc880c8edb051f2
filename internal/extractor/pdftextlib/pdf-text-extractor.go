// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdftextlib reads the embedded text layer of a PDF with ledongthuc/pdf.
package pdftextlib

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// DefaultMaxPages bounds how many pages are read from one document
const DefaultMaxPages = 50

// TextContent represents the extracted text layer of a PDF document
type TextContent struct {
	Filename    string
	Text        string
	PageCount   int // pages read
	FailedPages int
}

// Options tune text layer extraction
type Options struct {
	MaxPages int // 0 means DefaultMaxPages
}

// ExtractText extracts the text layer of filePath. Pages are read in order and
// AcroForm field values are appended after the page text. Malformed documents
// that make the parser panic are reported as errors.
func ExtractText(ctx context.Context, filePath string, opts Options) (content *TextContent, err error) {
	content = &TextContent{
		Filename: filepath.Base(filePath),
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("error parsing PDF %s: %v", content.Filename, r)
		}
	}()

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return content, fmt.Errorf("error opening PDF: %w", err)
	}
	defer f.Close()

	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	content.PageCount = min(r.NumPage(), maxPages)

	var buf bytes.Buffer
	for i := 1; i <= content.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return content, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			content.FailedPages++
			continue
		}

		text, err := extractPageText(p)
		if err != nil {
			content.FailedPages++
			continue
		}
		if buf.Len() > 0 {
			buf.WriteString("\n")
		}
		buf.WriteString(text)
	}

	if formData := extractFormData(r); formData != "" {
		buf.WriteString("\n")
		buf.WriteString(formData)
	}

	content.Text = cleanText(buf.String())
	return content, nil
}

// extractFormData returns "name: value" lines for filled AcroForm fields
func extractFormData(r *pdf.Reader) string {
	root := r.Trailer().Key("Root")
	if root.IsNull() {
		return ""
	}
	fields := root.Key("AcroForm").Key("Fields")
	if fields.IsNull() || fields.Kind() != pdf.Array {
		return ""
	}

	var buf bytes.Buffer
	for i := 0; i < fields.Len(); i++ {
		name, value := fieldNameValue(fields.Index(i))
		if name != "" && value != "" {
			fmt.Fprintf(&buf, "%s: %s\n", name, value)
		}
	}
	return buf.String()
}

func fieldNameValue(field pdf.Value) (string, string) {
	if field.Kind() != pdf.Dict {
		return "", ""
	}

	var name string
	if t := field.Key("T"); t.Kind() == pdf.String {
		name = t.Text()
	}

	value := valueText(field.Key("V"))
	if value == "" {
		value = valueText(field.Key("DV"))
	}
	return name, value
}

func valueText(v pdf.Value) string {
	switch v.Kind() {
	case pdf.String:
		return v.Text()
	case pdf.Name:
		return v.Name()
	}
	return ""
}

// extractPageText rebuilds the page line by line from positioned text runs,
// falling back to the plain content stream text
func extractPageText(p pdf.Page) (string, error) {
	rows, err := p.GetTextByRow()
	if err != nil {
		return p.GetPlainText(nil)
	}

	sorted := make([]*pdf.Row, 0, len(rows))
	for _, row := range rows {
		if row != nil && len(row.Content) > 0 {
			sorted = append(sorted, row)
		}
	}

	// PDF y grows upward, so the top of the page comes first with descending y
	sort.SliceStable(sorted, func(i, j int) bool {
		return averageY(sorted[i].Content) > averageY(sorted[j].Content)
	})

	var buf bytes.Buffer
	for _, row := range sorted {
		line := rowText(row.Content)
		if strings.TrimSpace(line) != "" {
			buf.WriteString(line)
			buf.WriteString("\n")
		}
	}
	return buf.String(), nil
}

func averageY(texts []pdf.Text) float64 {
	if len(texts) == 0 {
		return 0
	}
	var total float64
	for _, t := range texts {
		total += t.Y
	}
	return total / float64(len(texts))
}

// rowText joins the runs of one row left to right, inserting a space where
// the gap between runs exceeds a fifth of the font size
func rowText(texts []pdf.Text) string {
	if len(texts) == 0 {
		return ""
	}

	sorted := make([]pdf.Text, len(texts))
	copy(sorted, texts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].X < sorted[j].X
	})

	var buf bytes.Buffer
	for i, t := range sorted {
		buf.WriteString(t.S)
		if i == len(sorted)-1 {
			break
		}

		fontSize := t.FontSize
		if fontSize <= 0 {
			fontSize = 12
		}
		if gap := sorted[i+1].X - (t.X + t.W); gap > fontSize*0.2 {
			buf.WriteString(" ")
		}
	}
	return buf.String()
}

// cleanText trims lines, drops empty ones, turns tabs into spaces and
// collapses runs of spaces
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))

	for _, line := range lines {
		line = strings.ReplaceAll(line, "\t", " ")
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
