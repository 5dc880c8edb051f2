// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package help

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"cardscan/internal/formatters"
	"cardscan/internal/paths"
	"cardscan/internal/platform"

	"github.com/fatih/color"
)

// Topic names accepted by Show
const (
	TopicGeneral    = ""
	TopicFormats    = "formats"
	TopicStrategies = "strategies"
)

// System renders help content to a writer
type System struct {
	out    io.Writer
	colors map[string]*color.Color
}

// NewSystem creates a new help system
func NewSystem(out io.Writer, noColor bool) *System {
	if noColor {
		color.NoColor = true
	}

	return &System{
		out: out,
		colors: map[string]*color.Color{
			"title":   color.New(color.FgWhite, color.Bold),
			"header":  color.New(color.FgBlue, color.Bold),
			"item":    color.New(color.FgCyan),
			"warning": color.New(color.FgYellow),
			"example": color.New(color.FgMagenta),
		},
	}
}

// Show renders the named topic. Unknown topics print the general help
// preceded by a warning.
func (h *System) Show(topic string) {
	switch strings.ToLower(topic) {
	case TopicGeneral, "help":
		h.ShowGeneralHelp()
	case TopicFormats:
		h.ShowFormatsHelp()
	case TopicStrategies:
		h.ShowStrategiesHelp()
	default:
		h.colors["warning"].Fprintf(h.out, "Unknown help topic %q\n\n", topic)
		h.ShowGeneralHelp()
	}
}

// ShowGeneralHelp displays usage and options
func (h *System) ShowGeneralHelp() {
	h.colors["title"].Fprintln(h.out, "cardscan - extract card numbers from PDF documents")
	fmt.Fprintln(h.out, "==================================================")
	fmt.Fprintln(h.out)
	h.colors["header"].Fprintln(h.out, "USAGE:")
	fmt.Fprintln(h.out, "  cardscan [options] [file.pdf | directory]")
	fmt.Fprintln(h.out, "  cardscan --watch [options] [directory]")
	fmt.Fprintln(h.out)

	h.colors["header"].Fprintln(h.out, "OPTIONS:")
	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  -o, --output\t<dir>\tDirectory for extracted card numbers (default: output_txt)")
	fmt.Fprintln(w, "  -w, --watch\t\tWatch the directory and process PDFs as they arrive")
	fmt.Fprintln(w, "  --config\t<path>\tPath to configuration file (YAML)")
	fmt.Fprintln(w, "  --profile\t<name>\tProfile name to use from config file")
	fmt.Fprintln(w, "  --list-profiles\t\tList available profiles and exit")
	fmt.Fprintf(w, "  --format\t<format>\tSummary format: %s (default: text)\n", strings.Join(formatters.List(), ", "))
	fmt.Fprintln(w, "  --recursive\t\tProcess PDFs in subdirectories too")
	fmt.Fprintln(w, "  --workers\t<n>\tNumber of files processed in parallel (default: 1)")
	fmt.Fprintln(w, "  --no-ocr\t\tSkip OCR for PDFs without a text layer")
	fmt.Fprintln(w, "  --show-number\t\tPrint full card numbers in the summary (otherwise last four digits)")
	fmt.Fprintln(w, "  --verbose\t\tList every file in the summary, not only failures")
	fmt.Fprintln(w, "  --debug\t\tLog extraction attempts and timings to stderr")
	fmt.Fprintln(w, "  --quiet\t\tSuppress per-file progress lines")
	fmt.Fprintln(w, "  --no-color\t\tDisable colored output")
	fmt.Fprintln(w, "  --version\t\tShow version information")
	fmt.Fprintln(w, "  -h, --help\t[topic]\tShow this help, or a topic: formats, strategies")
	w.Flush()

	fmt.Fprintln(h.out)
	h.colors["header"].Fprintln(h.out, "EXAMPLES:")
	h.colors["example"].Fprintln(h.out, "  cardscan invoice.pdf")
	h.colors["example"].Fprintln(h.out, "  cardscan -o cards --recursive --workers 4 ./statements")
	h.colors["example"].Fprintln(h.out, "  cardscan --format json --no-ocr ./inbox > report.json")
	h.colors["example"].Fprintln(h.out, "  cardscan --watch ./inbox")
	h.colors["example"].Fprintln(h.out, "  cardscan --profile fast ./inbox")

	fmt.Fprintln(h.out)
	h.colors["header"].Fprintln(h.out, "EXIT CODES:")
	fmt.Fprintln(h.out, "  0  every PDF produced a card number")
	fmt.Fprintln(h.out, "  1  startup error (bad config, missing input, unwritable output directory)")
	fmt.Fprintln(h.out, "  2  at least one PDF failed")

	fmt.Fprintln(h.out)
	h.colors["header"].Fprintln(h.out, "CONFIGURATION:")
	fmt.Fprintln(h.out, "  Project config: cardscan.yaml, cardscan.yml or config.yaml (in current directory)")
	fmt.Fprintf(h.out, "  User config: %s\n", paths.GetConfigFile())
	fmt.Fprintf(h.out, "  Environment: %s - Override config directory\n", platform.ConfigDirEnv)
}

// ShowFormatsHelp lists the registered summary formats
func (h *System) ShowFormatsHelp() {
	h.colors["title"].Fprintln(h.out, "Summary Formats")
	fmt.Fprintln(h.out, "===============")
	fmt.Fprintln(h.out)

	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	h.colors["header"].Fprintln(w, "  FORMAT\tEXT\tDESCRIPTION")
	for _, name := range formatters.List() {
		f, _ := formatters.Get(name)
		fmt.Fprintf(w, "  %s\t%s\t%s\n", h.colors["item"].Sprint(name), f.FileExtension(), f.Description())
	}
	w.Flush()
}

// ShowStrategiesHelp describes the extraction fallback order
func (h *System) ShowStrategiesHelp() {
	h.colors["title"].Fprintln(h.out, "Extraction Strategies")
	fmt.Fprintln(h.out, "=====================")
	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "Strategies are tried in order; the first non-blank text is used.")
	fmt.Fprintln(h.out)

	w := tabwriter.NewWriter(h.out, 0, 0, 2, ' ', 0)
	h.colors["header"].Fprintln(w, "  METHOD\tREQUIRES\tDESCRIPTION")
	fmt.Fprintf(w, "  %s\t-\tEmbedded text layer, read in-process\n", h.colors["item"].Sprint("text_layer"))
	fmt.Fprintf(w, "  %s\tpdftotext\tLayout-preserving conversion with poppler\n", h.colors["item"].Sprint("layout"))
	fmt.Fprintf(w, "  %s\tpdftoppm, tesseract\tRender pages to images and recognize them\n", h.colors["item"].Sprint("ocr"))
	w.Flush()

	fmt.Fprintln(h.out)
	fmt.Fprintln(h.out, "Each strategy can be disabled in the extraction section of the config file;")
	fmt.Fprintln(h.out, "--no-ocr disables OCR for one run.")
}
