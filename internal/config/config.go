// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"cardscan/internal/extractor"
	"cardscan/internal/extractor/layouttextlib"
	"cardscan/internal/extractor/ocrlib"
	"cardscan/internal/extractor/pdftextlib"
	"cardscan/internal/matcher"
	"cardscan/internal/paths"
	"cardscan/internal/watch"

	"gopkg.in/yaml.v3"
)

// DefaultOutputDir is where card numbers are written unless configured
const DefaultOutputDir = "output_txt"

// Supported summary formats
var validFormats = map[string]bool{"text": true, "json": true, "yaml": true, "csv": true, "junit": true}

// Config represents the application configuration
type Config struct {
	// Default settings
	Defaults Defaults `yaml:"defaults"`

	// Text extraction strategies, tried in the order listed here
	Extraction struct {
		Timeout   time.Duration `yaml:"timeout"` // per strategy attempt
		TextLayer struct {
			Enabled  bool `yaml:"enabled"`
			MaxPages int  `yaml:"max_pages"`
		} `yaml:"text_layer"`
		Layout struct {
			Enabled  bool   `yaml:"enabled"`
			Binary   string `yaml:"binary"`
			MaxPages int    `yaml:"max_pages"`
		} `yaml:"layout"`
		OCR struct {
			Enabled     bool     `yaml:"enabled"`
			Binary      string   `yaml:"binary"` // pdftoppm
			Languages   []string `yaml:"languages"`
			TessdataDir string   `yaml:"tessdata_dir"`
			DPI         int      `yaml:"dpi"`
			MaxPages    int      `yaml:"max_pages"`
			TempDir     string   `yaml:"temp_dir"`
		} `yaml:"ocr"`
	} `yaml:"extraction"`

	// Card number pattern
	Matcher struct {
		MinDigits          int      `yaml:"min_digits"`
		MaxDigits          int      `yaml:"max_digits"`
		SectionMarker      string   `yaml:"section_marker"`
		SectionTerminators []string `yaml:"section_terminators"`
	} `yaml:"matcher"`

	// Watch mode
	Watch struct {
		SettleInterval   time.Duration `yaml:"settle_interval"`
		StabilizeTimeout time.Duration `yaml:"stabilize_timeout"`
		InitialScan      bool          `yaml:"initial_scan"`
	} `yaml:"watch"`

	// Profiles for different document sources
	Profiles map[string]Profile `yaml:"profiles"`
}

// Defaults holds settings that flags can override
type Defaults struct {
	InputDir  string `yaml:"input_dir"`
	OutputDir string `yaml:"output_dir"`
	Format    string `yaml:"format"`
	Workers   int    `yaml:"workers"`
	Recursive bool   `yaml:"recursive"`
	Debug     bool   `yaml:"debug"`
	Quiet     bool   `yaml:"quiet"`
	NoColor   bool   `yaml:"no_color"`
	NoOCR     bool   `yaml:"no_ocr"`
}

// Profile represents a named set of overrides. Pointer fields distinguish
// "not set" from a zero value.
type Profile struct {
	Description string `yaml:"description"`
	InputDir    string `yaml:"input_dir"`
	OutputDir   string `yaml:"output_dir"`
	Format      string `yaml:"format"`
	Workers     *int   `yaml:"workers"`
	Recursive   *bool  `yaml:"recursive"`
	Debug       *bool  `yaml:"debug"`
	Quiet       *bool  `yaml:"quiet"`
	NoColor     *bool  `yaml:"no_color"`
	NoOCR       *bool  `yaml:"no_ocr"`

	SectionMarker string `yaml:"section_marker"`
}

// Default returns the built-in configuration
func Default() *Config {
	config := &Config{
		Profiles: make(map[string]Profile),
	}

	config.Defaults.OutputDir = DefaultOutputDir
	config.Defaults.Format = "text"
	config.Defaults.Workers = 1

	config.Extraction.Timeout = 2 * time.Minute
	config.Extraction.TextLayer.Enabled = true
	config.Extraction.TextLayer.MaxPages = pdftextlib.DefaultMaxPages
	config.Extraction.Layout.Enabled = true
	config.Extraction.Layout.Binary = layouttextlib.DefaultBinaryName()
	config.Extraction.OCR.Enabled = true
	config.Extraction.OCR.Binary = ocrlib.DefaultBinaryName()
	config.Extraction.OCR.Languages = []string{"eng"}
	config.Extraction.OCR.DPI = ocrlib.DefaultDPI
	config.Extraction.OCR.MaxPages = ocrlib.DefaultMaxPages
	config.Extraction.OCR.TempDir = paths.GetTempDir()

	config.Matcher.MinDigits = matcher.DefaultMinDigits
	config.Matcher.MaxDigits = matcher.DefaultMaxDigits
	config.Matcher.SectionTerminators = append([]string(nil), matcher.DefaultSectionTerminators...)

	config.Watch.SettleInterval = watch.DefaultSettleInterval
	config.Watch.StabilizeTimeout = watch.DefaultStabilizeTimeout

	config.Profiles["fast"] = Profile{
		Description: "Text-layer PDFs only, OCR disabled, parallel workers",
		Workers:     intPtr(4),
		NoOCR:       boolPtr(true),
	}

	return config
}

// LoadConfig loads configuration from the specified file path. An empty
// path returns the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	if configPath == "" {
		return config, nil
	}

	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	defaults := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// YAML leaves absent bools false; restore the defaults that are true
	if !containsField(data, "extraction", "text_layer", "enabled") {
		config.Extraction.TextLayer.Enabled = defaults.Extraction.TextLayer.Enabled
	}
	if !containsField(data, "extraction", "layout", "enabled") {
		config.Extraction.Layout.Enabled = defaults.Extraction.Layout.Enabled
	}
	if !containsField(data, "extraction", "ocr", "enabled") {
		config.Extraction.OCR.Enabled = defaults.Extraction.OCR.Enabled
	}
	// built-in profiles stay available unless redefined
	for name, profile := range defaults.Profiles {
		if _, exists := config.Profiles[name]; !exists {
			if config.Profiles == nil {
				config.Profiles = make(map[string]Profile)
			}
			config.Profiles[name] = profile
		}
	}

	ApplyPlatformDefaults(config)

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// FindConfigFile looks for a configuration file in the working directory,
// then in the platform configuration directory
func FindConfigFile() string {
	for _, name := range []string{"cardscan.yaml", "cardscan.yml", "config.yaml"} {
		if fileExists(name) {
			return name
		}
	}

	if standardConfig := paths.GetConfigFile(); fileExists(standardConfig) {
		return standardConfig
	}

	return ""
}

// LoadConfigOrDefault loads configuration from configFile (or searches
// standard locations when configFile is empty). A discovered file that fails
// to load falls back to the defaults; an explicitly named one is an error.
func LoadConfigOrDefault(configFile string) (*Config, string, error) {
	if configFile != "" {
		cfg, err := LoadConfig(configFile)
		return cfg, configFile, err
	}

	found := FindConfigFile()
	if found == "" {
		return Default(), "", nil
	}
	cfg, err := LoadConfig(found)
	if err != nil {
		return Default(), found, err
	}
	return cfg, found, nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ListProfiles returns the available profile names, sorted
func (c *Config) ListProfiles() []string {
	profiles := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		profiles = append(profiles, name)
	}
	sort.Strings(profiles)
	return profiles
}

// GetProfile returns a profile by name, or nil if not found
func (c *Config) GetProfile(name string) *Profile {
	if profile, exists := c.Profiles[name]; exists {
		return &profile
	}
	return nil
}

// ApplyProfile copies the profile's set fields over Defaults
func (c *Config) ApplyProfile(name string) error {
	profile := c.GetProfile(name)
	if profile == nil {
		return fmt.Errorf("profile %q not found (available: %v)", name, c.ListProfiles())
	}

	d := &c.Defaults
	if profile.InputDir != "" {
		d.InputDir = paths.NormalizePath(profile.InputDir)
	}
	if profile.OutputDir != "" {
		d.OutputDir = paths.NormalizePath(profile.OutputDir)
	}
	if profile.Format != "" {
		d.Format = profile.Format
	}
	if profile.Workers != nil {
		d.Workers = *profile.Workers
	}
	if profile.Recursive != nil {
		d.Recursive = *profile.Recursive
	}
	if profile.Debug != nil {
		d.Debug = *profile.Debug
	}
	if profile.Quiet != nil {
		d.Quiet = *profile.Quiet
	}
	if profile.NoColor != nil {
		d.NoColor = *profile.NoColor
	}
	if profile.NoOCR != nil {
		d.NoOCR = *profile.NoOCR
	}
	if profile.SectionMarker != "" {
		c.Matcher.SectionMarker = profile.SectionMarker
	}

	return ValidateConfig(c)
}

// containsField checks if a nested field exists in the YAML data
func containsField(data []byte, path ...string) bool {
	var yamlData map[string]interface{}
	err := yaml.Unmarshal(data, &yamlData)
	if err != nil {
		return false
	}

	current := yamlData
	for i, key := range path {
		if i == len(path)-1 {
			_, exists := current[key]
			return exists
		}
		if next, ok := current[key].(map[string]interface{}); ok {
			current = next
		} else {
			return false
		}
	}
	return false
}

// ValidateConfig rejects settings the pipeline cannot run with
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.New("configuration cannot be nil")
	}

	var errs []error

	if !validFormats[config.Defaults.Format] {
		errs = append(errs, fmt.Errorf("unsupported format %q (use text, json, yaml, csv or junit)", config.Defaults.Format))
	}
	if config.Defaults.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", config.Defaults.Workers))
	}

	m := config.Matcher
	if m.MinDigits < 1 {
		errs = append(errs, fmt.Errorf("matcher.min_digits must be at least 1, got %d", m.MinDigits))
	}
	if m.MaxDigits < m.MinDigits {
		errs = append(errs, fmt.Errorf("matcher.max_digits (%d) is below min_digits (%d)", m.MaxDigits, m.MinDigits))
	}

	ocr := config.Extraction.OCR
	if ocr.DPI < 0 || ocr.DPI > 1200 {
		errs = append(errs, fmt.Errorf("extraction.ocr.dpi must be between 0 and 1200, got %d", ocr.DPI))
	}
	if config.Extraction.Timeout < 0 {
		errs = append(errs, fmt.Errorf("extraction.timeout must not be negative"))
	}
	if config.Watch.SettleInterval < 0 || config.Watch.StabilizeTimeout < 0 {
		errs = append(errs, fmt.Errorf("watch intervals must not be negative"))
	}

	for _, p := range []struct{ name, value string }{
		{"defaults.input_dir", config.Defaults.InputDir},
		{"defaults.output_dir", config.Defaults.OutputDir},
		{"extraction.ocr.temp_dir", ocr.TempDir},
		{"extraction.ocr.tessdata_dir", ocr.TessdataDir},
	} {
		if err := paths.ValidatePath(p.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}

	return errors.Join(errs...)
}

// ApplyPlatformDefaults normalizes the paths in the configuration
func ApplyPlatformDefaults(config *Config) {
	if config == nil {
		return
	}
	config.Defaults.InputDir = paths.NormalizePath(config.Defaults.InputDir)
	config.Defaults.OutputDir = paths.NormalizePath(config.Defaults.OutputDir)
	config.Extraction.OCR.TempDir = paths.NormalizePath(config.Extraction.OCR.TempDir)
	config.Extraction.OCR.TessdataDir = paths.NormalizePath(config.Extraction.OCR.TessdataDir)
	if config.Extraction.OCR.TempDir == "" {
		config.Extraction.OCR.TempDir = paths.GetTempDir()
	}
}

// ExtractorOptions converts the extraction section
func (c *Config) ExtractorOptions() extractor.Options {
	e := c.Extraction

	opts := extractor.DefaultOptions()
	opts.Timeout = e.Timeout
	opts.TextLayer.Enabled = e.TextLayer.Enabled
	opts.TextLayer.MaxPages = e.TextLayer.MaxPages
	opts.Layout.Enabled = e.Layout.Enabled
	opts.Layout.Binary = e.Layout.Binary
	opts.Layout.MaxPages = e.Layout.MaxPages
	opts.OCR.Enabled = e.OCR.Enabled && !c.Defaults.NoOCR
	opts.OCR.Binary = e.OCR.Binary
	opts.OCR.DPI = e.OCR.DPI
	opts.OCR.MaxPages = e.OCR.MaxPages
	opts.OCR.TempDir = e.OCR.TempDir
	return opts
}

// MatcherConfig converts the matcher section
func (c *Config) MatcherConfig() matcher.Config {
	return matcher.Config{
		MinDigits:          c.Matcher.MinDigits,
		MaxDigits:          c.Matcher.MaxDigits,
		SectionMarker:      c.Matcher.SectionMarker,
		SectionTerminators: c.Matcher.SectionTerminators,
	}
}

// WatchConfig converts the watch section for dir
func (c *Config) WatchConfig(dir string) watch.Config {
	return watch.Config{
		Dir:              dir,
		SettleInterval:   c.Watch.SettleInterval,
		StabilizeTimeout: c.Watch.StabilizeTimeout,
		InitialScan:      c.Watch.InitialScan,
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
