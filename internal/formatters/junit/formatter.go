// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package junit

import (
	"encoding/xml"
	"fmt"
	"path/filepath"
	"time"

	"cardscan/internal/batch"
	"cardscan/internal/formatters"
	"cardscan/internal/formatters/shared"
	"cardscan/internal/processor"
)

// JUnit XML structures based on the standard JUnit XML schema
type TestSuites struct {
	XMLName    xml.Name    `xml:"testsuites"`
	Name       string      `xml:"name,attr"`
	Tests      int         `xml:"tests,attr"`
	Failures   int         `xml:"failures,attr"`
	Errors     int         `xml:"errors,attr"`
	Time       string      `xml:"time,attr"`
	TestSuites []TestSuite `xml:"testsuite"`
}

type TestSuite struct {
	XMLName   xml.Name   `xml:"testsuite"`
	Name      string     `xml:"name,attr"`
	Tests     int        `xml:"tests,attr"`
	Failures  int        `xml:"failures,attr"`
	Errors    int        `xml:"errors,attr"`
	Time      string     `xml:"time,attr"`
	TestCases []TestCase `xml:"testcase"`
}

type TestCase struct {
	XMLName   xml.Name `xml:"testcase"`
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      string   `xml:"time,attr"`
	Failure   *Failure `xml:"failure,omitempty"`
	Error     *Failure `xml:"error,omitempty"`
}

type Failure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// Formatter implements JUnit XML output formatting. Each PDF is a test
// case; extraction and matching failures are failures, write errors are
// errors.
type Formatter struct{}

// NewFormatter creates a new JUnit XML formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "junit"
}

func (f *Formatter) Description() string {
	return "JUnit XML format for CI/CD integration, one test case per PDF"
}

func (f *Formatter) FileExtension() string {
	return ".xml"
}

func (f *Formatter) Format(summary *batch.Summary, options formatters.FormatterOptions) (string, error) {
	suite := TestSuite{
		Name:      "card-extraction",
		Time:      seconds(summary.Duration),
		TestCases: make([]TestCase, 0, summary.Total()),
	}

	for _, o := range summary.Outcomes {
		tc := TestCase{
			Name:      filepath.Base(o.Source),
			ClassName: "cardscan." + filepath.Base(filepath.Dir(o.Source)),
			Time:      seconds(o.Duration),
		}
		if !o.OK() {
			result := shared.ConvertOutcome(o, options)
			failure := &Failure{
				Message: shared.FailureMessage(o),
				Type:    result.Reason,
				Content: result.Error,
			}
			if o.Reason == processor.ReasonWriteError {
				tc.Error = failure
				suite.Errors++
			} else {
				tc.Failure = failure
				suite.Failures++
			}
		}
		suite.TestCases = append(suite.TestCases, tc)
		suite.Tests++
	}

	testSuites := TestSuites{
		Name:       "cardscan",
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		Errors:     suite.Errors,
		Time:       suite.Time,
		TestSuites: []TestSuite{suite},
	}

	xmlData, err := xml.MarshalIndent(testSuites, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error formatting JUnit XML: %w", err)
	}

	return xml.Header + string(xmlData) + "\n", nil
}

func seconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
