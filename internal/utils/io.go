// Package utils provides small filesystem helpers shared by the sinks.
package utils

import (
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
)

// SecurePath normalizes a log file path and rejects directory traversal
// sequences. Absolute paths pass through cleaned; relative paths resolve
// against the working directory.
func SecurePath(path string) (string, error) {
	if path == "" {
		return "", ewrap.New("path cannot be empty")
	}

	cleanPath := filepath.Clean(path)

	if strings.Contains(cleanPath, "..") {
		return "", ewrap.New("invalid path contains directory traversal sequence").
			WithMetadata("path", path)
	}

	if filepath.IsAbs(cleanPath) {
		return cleanPath, nil
	}

	abs, err := filepath.Abs(cleanPath)
	if err != nil {
		return "", ewrap.Wrap(err, "resolving log file path").
			WithMetadata("path", path)
	}

	return abs, nil
}
