// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package paths

import (
	"os"
	"path/filepath"

	"cardscan/internal/platform"
)

// ConfigFileName is the file looked up in the configuration directory
const ConfigFileName = "config.yaml"

// GetConfigDir returns the cardscan configuration directory
func GetConfigDir() string {
	if dir := os.Getenv(platform.ConfigDirEnv); dir != "" {
		return dir
	}
	return platform.GetPlatform().GetConfigDir()
}

// GetConfigFile returns the path to the main config file
func GetConfigFile() string {
	return filepath.Join(GetConfigDir(), ConfigFileName)
}

// GetTempDir returns the platform-appropriate temporary directory. OCR
// page images are rendered below it.
func GetTempDir() string {
	return platform.GetPlatform().GetTempDir()
}

// NormalizePath normalizes a file path for the current platform
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}
	return platform.GetPlatform().NormalizePath(path)
}

// ResolvePath returns the absolute, normalized form of path. Absolute
// paths are only normalized so a UNC prefix survives.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	normalized := NormalizePath(path)
	if platform.GetPlatform().IsAbsolutePath(normalized) {
		return normalized, nil
	}
	return filepath.Abs(normalized)
}

// ValidatePath validates a path for the current platform
func ValidatePath(path string) error {
	if path == "" {
		return nil
	}

	if platform.IsWindows() {
		return validateWindowsPath(path)
	}

	return validateUnixPath(path)
}

// validateWindowsPath validates a Windows path
func validateWindowsPath(path string) error {
	invalidChars := []rune{'<', '>', ':', '"', '|', '?', '*'}
	for i, char := range path {
		for _, invalid := range invalidChars {
			if char == invalid {
				// drive letter colon (C:)
				if char == ':' && i == 1 {
					continue
				}
				return &PathValidationError{
					Path:   path,
					Reason: "contains invalid character: " + string(char),
				}
			}
		}
	}

	if len(path) > 32767 {
		return &PathValidationError{
			Path:   path,
			Reason: "path exceeds maximum length of 32,767 characters",
		}
	}

	return nil
}

// validateUnixPath rejects null bytes, the only character Unix forbids
func validateUnixPath(path string) error {
	for _, char := range path {
		if char == 0 {
			return &PathValidationError{
				Path:   path,
				Reason: "contains null byte",
			}
		}
	}

	return nil
}

// PathValidationError represents a path validation error
type PathValidationError struct {
	Path   string
	Reason string
}

func (e *PathValidationError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Reason
}
