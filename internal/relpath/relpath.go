// Package relpath normalizes and validates caller-supplied relative paths.
//
// Every path that enters the engine passes through Sanitize exactly once;
// the sanitized form is the only key shape used by the scheduler, the index,
// and the on-disk layout.
package relpath

import (
	"errors"
	"os"
	"strings"
)

// ErrInvalid is returned when a path cannot be made into a safe relative path.
var ErrInvalid = errors.New("invalid relative path")

// Sanitize normalizes separators to the host separator, strips leading
// separators, and rejects any path containing a ".." segment.
//
// Returns the sanitized path or ErrInvalid.
func Sanitize(path string) (string, error) {
	if path == "" {
		return "", ErrInvalid
	}

	sep := string(os.PathSeparator)

	// Normalize both separator styles before inspection so "..\x" and "../x"
	// are treated the same on every host.
	normalized := strings.ReplaceAll(path, "/", sep)
	normalized = strings.ReplaceAll(normalized, "\\", sep)
	normalized = strings.TrimLeft(normalized, sep)

	if normalized == "" {
		return "", ErrInvalid
	}

	for _, segment := range strings.Split(normalized, sep) {
		if segment == ".." {
			return "", ErrInvalid
		}
	}

	return normalized, nil
}
