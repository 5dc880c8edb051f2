// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package pdfcheck inspects PDF structure with pdfcpu without extracting text.
package pdfcheck

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// keep pdfcpu from creating its config directory under the user's home
	api.DisableConfigDir()
}

// header is the magic every PDF starts with
var header = []byte("%PDF-")

// configuration returns a relaxed pdfcpu configuration; real-world invoices
// rarely pass strict validation
func configuration() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Validate reports whether path is a structurally complete PDF
func Validate(path string) error {
	if err := checkHeader(path); err != nil {
		return err
	}
	if err := api.ValidateFile(path, configuration()); err != nil {
		return fmt.Errorf("invalid PDF file: %w", err)
	}
	return nil
}

// PageCount returns the number of pages of the PDF at path
func PageCount(path string) (int, error) {
	if err := checkHeader(path); err != nil {
		return 0, err
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}
	return n, nil
}

func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, len(header))
	if _, err := io.ReadFull(f, buf); err != nil || !bytes.Equal(buf, header) {
		return fmt.Errorf("not a PDF file: %s", path)
	}
	return nil
}
