// Package fsops provides the content hashing and atomic file primitives the
// replication engine is built on.
//
// The filesystem offers only weak primitives; everything stronger (two-phase
// writes, self-healing) is composed in the engine package from the operations
// here. All temporary and backup files use 32-hex uniquifiers so concurrent
// operations on the same destination never collide.
package fsops

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// HashFile streams the file through SHA-256 and returns the digest as
// uppercase hex.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// WriteAndHash copies r into a new file at path, hashing while streaming so
// the content is only read once. Returns the byte count and the uppercase
// hex SHA-256 of what was written. The file is removed on error.
func WriteAndHash(path string, r io.Reader) (int64, string, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(path)
		return 0, "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	return n, strings.ToUpper(hex.EncodeToString(h.Sum(nil))), nil
}

// UniqueHex returns a 32-character lowercase hex string for naming side
// files.
func UniqueHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
