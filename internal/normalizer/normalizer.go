// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package normalizer turns a matched card number into its canonical digit string.
package normalizer

import "strings"

// Normalize removes every non-digit character from raw and strips leading
// zeros. An input made only of zeros normalizes to "0". An input without any
// digit normalizes to the empty string.
func Normalize(raw string) string {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}

	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		// all zeros: keep a single digit
		return "0"
	}
	return trimmed
}

// Digits returns the ASCII digits of s in order, dropping separators.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
