// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package matcher locates card-number-shaped digit runs in extracted text.
package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"cardscan/internal/normalizer"
)

// Default digit bounds, counted after separator removal.
const (
	DefaultMinDigits = 12
	DefaultMaxDigits = 19
)

// ErrNoMatchFound is returned when no substring satisfies the card pattern.
var ErrNoMatchFound = errors.New("no card number found")

// DefaultSectionTerminators end a marked card section, in addition to a blank
// line or a line starting with an underscore.
var DefaultSectionTerminators = []string{"Invoice", "Thank", "see you"}

// Config controls what the matcher accepts.
type Config struct {
	MinDigits int
	MaxDigits int

	// SectionMarker, when non-empty, restricts the first search pass to the
	// lines following the first line that contains it.
	SectionMarker      string
	SectionTerminators []string
}

// Match is a candidate card number as it appears in the text.
type Match struct {
	Raw    string // substring including separators
	Offset int    // byte offset of Raw in the searched text
	Line   int    // 1-based line number of Raw
}

// Digits returns the number of digits in the match.
func (m Match) Digits() int {
	return len(normalizer.Digits(m.Raw))
}

// Matcher finds card numbers in text. It is safe for concurrent use.
type Matcher struct {
	cfg Config

	// A run of digits where single hyphens or spaces may separate groups.
	regex *regexp.Regexp
}

// New creates a Matcher. Zero bounds fall back to the defaults.
func New(cfg Config) (*Matcher, error) {
	if cfg.MinDigits <= 0 {
		cfg.MinDigits = DefaultMinDigits
	}
	if cfg.MaxDigits <= 0 {
		cfg.MaxDigits = DefaultMaxDigits
	}
	if cfg.MinDigits > cfg.MaxDigits {
		return nil, fmt.Errorf("min digits %d exceeds max digits %d", cfg.MinDigits, cfg.MaxDigits)
	}
	if cfg.SectionTerminators == nil {
		cfg.SectionTerminators = DefaultSectionTerminators
	}

	return &Matcher{
		cfg:   cfg,
		regex: regexp.MustCompile(`\d+(?:[ -]\d+)*`),
	}, nil
}

// NewDefault creates a Matcher with the default 12..19 digit bounds.
func NewDefault() *Matcher {
	m, _ := New(Config{})
	return m
}

// Config returns the effective configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Find returns the first card number in document order. When a section
// marker is configured and present, the section is searched first.
func (m *Matcher) Find(text string) (Match, error) {
	if m.cfg.SectionMarker != "" {
		if start, end, ok := m.section(text); ok {
			if found := m.scan(text[start:end], 1); len(found) > 0 {
				match := found[0]
				match.Offset += start
				match.Line = strings.Count(text[:match.Offset], "\n") + 1
				return match, nil
			}
		}
	}

	found := m.scan(text, 1)
	if len(found) == 0 {
		return Match{}, ErrNoMatchFound
	}
	return found[0], nil
}

// FindAll returns every card number in document order.
func (m *Matcher) FindAll(text string) []Match {
	return m.scan(text, -1)
}

// scan collects up to limit matches (all when limit < 0).
func (m *Matcher) scan(text string, limit int) []Match {
	var matches []Match

	for _, loc := range m.regex.FindAllStringIndex(text, -1) {
		if !isBoundary(text, loc[0]-1) || !isBoundary(text, loc[1]) {
			continue
		}

		for _, c := range m.candidates(text[loc[0]:loc[1]]) {
			offset := loc[0] + c[0]
			matches = append(matches, Match{
				Raw:    text[offset : loc[0]+c[1]],
				Offset: offset,
				Line:   strings.Count(text[:offset], "\n") + 1,
			})
			if limit > 0 && len(matches) >= limit {
				return matches
			}
		}
	}

	return matches
}

// minLeadingGroup is the smallest first group of a space-grouped card number.
// Shorter leading groups ("Qty 2", "Page 1") are neighbouring numbers.
const minLeadingGroup = 4

// candidates splits a digit run into acceptable card numbers. A
// hyphen-joined unit stands alone, so a number printed next to another one
// ("2024 0012-3456-7890-1234") is still found. Consecutive space-joined
// units form one number that is accepted or rejected as a whole; only
// undersized leading units are dropped. Returned ranges are relative to run.
func (m *Matcher) candidates(run string) [][2]int {
	type unit struct {
		start, end, digits int
		hyphenated         bool
	}

	var units []unit
	start := 0
	for i := 0; i <= len(run); i++ {
		if i == len(run) || run[i] == ' ' {
			seg := run[start:i]
			units = append(units, unit{
				start:      start,
				end:        i,
				digits:     len(normalizer.Digits(seg)),
				hyphenated: strings.IndexByte(seg, '-') >= 0,
			})
			start = i + 1
		}
	}

	var out [][2]int
	accept := func(group []unit) {
		for len(group) > 1 && group[0].digits < minLeadingGroup {
			group = group[1:]
		}
		if len(group) == 0 {
			return
		}
		digits := 0
		for _, u := range group {
			digits += u.digits
		}
		if digits >= m.cfg.MinDigits && digits <= m.cfg.MaxDigits {
			out = append(out, [2]int{group[0].start, group[len(group)-1].end})
		}
	}

	plain := 0
	for i, u := range units {
		if !u.hyphenated {
			continue
		}
		accept(units[plain:i])
		accept(units[i : i+1])
		plain = i + 1
	}
	accept(units[plain:])
	return out
}

// section returns the byte range of the marked card section.
func (m *Matcher) section(text string) (int, int, bool) {
	idx := strings.Index(text, m.cfg.SectionMarker)
	if idx < 0 {
		return 0, 0, false
	}

	nl := strings.IndexByte(text[idx:], '\n')
	if nl < 0 {
		return 0, 0, false
	}
	start := idx + nl + 1
	end := start

	for end < len(text) {
		lineEnd := strings.IndexByte(text[end:], '\n')
		var line string
		if lineEnd < 0 {
			line = text[end:]
		} else {
			line = text[end : end+lineEnd]
		}

		if m.terminates(line) {
			break
		}
		if lineEnd < 0 {
			end = len(text)
			break
		}
		end += lineEnd + 1
	}

	return start, end, end > start
}

func (m *Matcher) terminates(line string) bool {
	if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "_") {
		return true
	}
	for _, word := range m.cfg.SectionTerminators {
		if word != "" && strings.Contains(line, word) {
			return true
		}
	}
	return false
}

// isBoundary reports whether position i in text may border a card number.
func isBoundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := text[i]
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return false
	case c >= '0' && c <= '9':
		return false
	}
	return true
}
