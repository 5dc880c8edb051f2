// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"cardscan/internal/batch"
	"cardscan/internal/config"
	"cardscan/internal/extractor"
	"cardscan/internal/extractor/ocrlib/tesseract"
	"cardscan/internal/help"
	"cardscan/internal/matcher"
	"cardscan/internal/observability"
	"cardscan/internal/paths"
	"cardscan/internal/processor"
	"cardscan/internal/version"
	"cardscan/internal/watch"

	"cardscan/internal/formatters"
	_ "cardscan/internal/formatters/csv"
	_ "cardscan/internal/formatters/json"
	_ "cardscan/internal/formatters/junit"
	"cardscan/internal/formatters/text"
	_ "cardscan/internal/formatters/yaml"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Exit codes
const (
	exitOK          = 0
	exitStartup     = 1
	exitFileFailure = 2
)

// cliFlags holds command line flag values
type cliFlags struct {
	outputDir    string
	watch        bool
	help         bool
	version      bool
	configFile   string
	profileName  string
	listProfiles bool
	format       string
	recursive    bool
	workers      int
	noOCR        bool
	showNumber   bool
	verbose      bool
	debug        bool
	quiet        bool
	noColor      bool

	positional []string
	set        map[string]bool
}

// isFlagSet checks if a flag was explicitly set on the command line
func (f *cliFlags) isFlagSet(names ...string) bool {
	for _, name := range names {
		if f.set[name] {
			return true
		}
	}
	return false
}

func newFlagSet(f *cliFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("cardscan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: cardscan [options] [file.pdf | directory]  (see --help)")
	}

	fs.StringVar(&f.outputDir, "output", "", "Directory for extracted card numbers (default: output_txt)")
	fs.StringVar(&f.outputDir, "o", "", "Alias for --output")
	fs.BoolVar(&f.watch, "watch", false, "Watch the directory and process PDFs as they arrive")
	fs.BoolVar(&f.watch, "w", false, "Alias for --watch")
	fs.BoolVar(&f.help, "help", false, "Show help information")
	fs.BoolVar(&f.help, "h", false, "Alias for --help")
	fs.BoolVar(&f.version, "version", false, "Show version information")
	fs.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&f.profileName, "profile", "", "Profile name to use from config file")
	fs.BoolVar(&f.listProfiles, "list-profiles", false, "List available profiles")
	fs.StringVar(&f.format, "format", "", "Summary format: text, json, yaml, csv, junit (default: text)")
	fs.BoolVar(&f.recursive, "recursive", false, "Process PDFs in subdirectories too")
	fs.IntVar(&f.workers, "workers", 0, "Number of files processed in parallel")
	fs.BoolVar(&f.noOCR, "no-ocr", false, "Skip OCR for PDFs without a text layer")
	fs.BoolVar(&f.showNumber, "show-number", false, "Print full card numbers in the summary")
	fs.BoolVar(&f.verbose, "verbose", false, "List every file in the summary")
	fs.BoolVar(&f.debug, "debug", false, "Log extraction attempts and timings to stderr")
	fs.BoolVar(&f.quiet, "quiet", false, "Suppress per-file progress lines")
	fs.BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	return fs
}

// parseFlags parses args, allowing flags before and after the positional
// argument
func parseFlags(args []string, stderr io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: make(map[string]bool)}
	fs := newFlagSet(f, stderr)

	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return nil, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		f.positional = append(f.positional, rest[0])
		rest = rest[1:]
	}

	fs.Visit(func(fl *flag.Flag) {
		f.set[fl.Name] = true
	})
	return f, nil
}

// loadConfiguration loads the config file, the profile and the flags, in
// increasing priority
func loadConfiguration(flags *cliFlags, stderr io.Writer) (*config.Config, string, error) {
	cfg, used, err := config.LoadConfigOrDefault(flags.configFile)
	if err != nil {
		if flags.configFile != "" {
			return nil, used, err
		}
		fmt.Fprintf(stderr, "Warning: Error loading config file %s: %v\n", used, err)
		fmt.Fprintf(stderr, "Using default configuration\n")
		used = ""
	}

	if flags.profileName != "" {
		if err := cfg.ApplyProfile(flags.profileName); err != nil {
			return nil, used, err
		}
	}

	applyFlags(cfg, flags)
	config.ApplyPlatformDefaults(cfg)
	return cfg, used, config.ValidateConfig(cfg)
}

func applyFlags(cfg *config.Config, flags *cliFlags) {
	d := &cfg.Defaults
	if flags.isFlagSet("output", "o") && flags.outputDir != "" {
		d.OutputDir = flags.outputDir
	}
	if flags.isFlagSet("format") && flags.format != "" {
		d.Format = flags.format
	}
	if flags.isFlagSet("workers") {
		d.Workers = flags.workers
	}
	if flags.isFlagSet("recursive") {
		d.Recursive = flags.recursive
	}
	if flags.isFlagSet("debug") {
		d.Debug = flags.debug
	}
	if flags.isFlagSet("quiet") {
		d.Quiet = flags.quiet
	}
	if flags.isFlagSet("no-color") {
		d.NoColor = flags.noColor
	}
	if flags.isFlagSet("no-ocr") {
		d.NoOCR = flags.noOCR
	}
}

func listProfiles(cfg *config.Config, used string, stdout io.Writer) {
	if used != "" {
		fmt.Fprintf(stdout, "Profiles (%s):\n", used)
	} else {
		fmt.Fprintln(stdout, "Available profiles:")
	}
	for _, name := range cfg.ListProfiles() {
		profile := cfg.GetProfile(name)
		if profile != nil && profile.Description != "" {
			fmt.Fprintf(stdout, "  - %s: %s\n", name, profile.Description)
		} else {
			fmt.Fprintf(stdout, "  - %s\n", name)
		}
	}
}

// buildProcessor wires the extraction chain, the matcher and the output
// directory
func buildProcessor(cfg *config.Config, observer *observability.StandardObserver) (*processor.Processor, error) {
	m, err := matcher.New(cfg.MatcherConfig())
	if err != nil {
		return nil, err
	}
	if err := processor.EnsureOutputDir(cfg.Defaults.OutputDir); err != nil {
		return nil, err
	}

	ocr := cfg.Extraction.OCR
	engine := tesseract.New(ocr.DPI, ocr.TessdataDir, ocr.Languages...)
	chain := extractor.NewDefaultChain(cfg.ExtractorOptions(), engine, nil, observer)

	p := processor.New(chain, m, cfg.Defaults.OutputDir)
	p.SetObserver(observer)
	return p, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitStartup
	}

	if flags.version {
		fmt.Fprintln(stdout, version.Info())
		return exitOK
	}

	// Auto-detect non-interactive environment
	noColor := flags.noColor || !isTerminal(stderr) || os.Getenv("CI") != ""

	if flags.help {
		topic := ""
		if len(flags.positional) > 0 {
			topic = flags.positional[0]
		}
		help.NewSystem(stdout, noColor).Show(topic)
		return exitOK
	}

	cfg, used, err := loadConfiguration(flags, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStartup
	}
	if flags.listProfiles {
		listProfiles(cfg, used, stdout)
		return exitOK
	}
	if len(flags.positional) > 1 {
		fmt.Fprintf(stderr, "Error: expected one file or directory, got %d\n", len(flags.positional))
		return exitStartup
	}

	noColor = noColor || cfg.Defaults.NoColor
	if noColor {
		color.NoColor = true
	}

	var observer *observability.StandardObserver
	if cfg.Defaults.Debug {
		dbg := observability.NewDebugObserver(stderr)
		observer = dbg.StandardObserver
		dbg.LogDetail("main", fmt.Sprintf("Command line arguments: %v", args))
		if used != "" {
			dbg.LogDetail("main", "Config file: "+used)
		}
	}

	input := cfg.Defaults.InputDir
	if len(flags.positional) == 1 {
		input = flags.positional[0]
	}
	if input == "" {
		input = "."
	}

	proc, err := buildProcessor(cfg, observer)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStartup
	}

	options := formatters.FormatterOptions{
		Verbose:    flags.verbose,
		NoColor:    noColor,
		ShowNumber: flags.showNumber,
	}
	status := text.NewFormatter()
	progress := func(o processor.Outcome) {
		if !cfg.Defaults.Quiet {
			fmt.Fprintln(stderr, status.StatusLine(o, options))
		}
	}

	if flags.watch {
		return runWatch(ctx, cfg, input, proc, observer, progress, stderr)
	}

	runner := batch.NewRunner(proc, batch.Options{
		Recursive: cfg.Defaults.Recursive,
		Workers:   cfg.Defaults.Workers,
		OnOutcome: progress,
	})
	runner.SetObserver(observer)

	summary, err := runner.Run(ctx, input)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStartup
	}

	// progress lines already list each file
	if cfg.Defaults.Format == "text" && !cfg.Defaults.Quiet && !flags.verbose {
		fmt.Fprint(stdout, status.Totals(summary, options))
	} else {
		out, err := formatters.Export(cfg.Defaults.Format, summary, options)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitStartup
		}
		fmt.Fprint(stdout, out)
	}

	if summary.Failed > 0 {
		return exitFileFailure
	}
	return exitOK
}

func runWatch(ctx context.Context, cfg *config.Config, dir string, proc *processor.Processor, observer *observability.StandardObserver, progress func(processor.Outcome), stderr io.Writer) int {
	dir, err := paths.ResolvePath(dir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStartup
	}
	w, err := watch.New(cfg.WatchConfig(dir), proc)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStartup
	}
	w.SetObserver(observer)
	w.OnOutcome = progress
	w.OnError = func(err error) {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	if !cfg.Defaults.Quiet {
		fmt.Fprintf(stderr, "Watching %s for PDFs, writing to %s (Ctrl-C to stop)\n", dir, cfg.Defaults.OutputDir)
	}
	if err := w.Run(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitStartup
	}
	return exitOK
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// isTerminal checks if w is a terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
