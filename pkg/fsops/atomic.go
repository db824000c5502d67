package fsops

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kydras/kydrastore/internal/logger"
)

// AtomicReplace moves temp onto final.
//
// When final already exists the replace goes through a backup path: final is
// renamed aside, temp is renamed into place, and the backup is deleted. If
// either rename fails the fallback is delete-then-move. When final does not
// exist a plain rename is used, with a copy fallback for cross-device moves.
func AtomicReplace(temp, final string) error {
	if _, err := os.Stat(final); err == nil {
		backup := final + ".bak_" + UniqueHex()

		if err := os.Rename(final, backup); err == nil {
			if err := os.Rename(temp, final); err == nil {
				if err := os.Remove(backup); err != nil {
					logger.Warn("could not remove replace backup %s: %v", backup, err)
				}
				return nil
			}
			// Put the original back before falling through.
			if err := os.Rename(backup, final); err != nil {
				logger.Warn("could not restore %s from backup: %v", final, err)
			}
		}

		// Fallback: delete-then-move.
		if err := os.Remove(final); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to replace %s: %w", final, err)
		}
	}

	if err := os.Rename(temp, final); err != nil {
		// Rename fails across devices; fall back to a copy.
		if copyErr := copyContents(temp, final); copyErr != nil {
			return fmt.Errorf("failed to move %s to %s: %w", temp, final, err)
		}
		if err := os.Remove(temp); err != nil {
			logger.Warn("could not remove temp %s after copy: %v", temp, err)
		}
	}
	return nil
}

// CopyWithReplace copies src over dst via a uniquely-named temporary in
// dst's directory, deleting any existing dst before the final rename.
func CopyWithReplace(src, dst string) error {
	tmp := dst + "." + UniqueHex() + ".tmp"

	if err := copyContents(src, tmp); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		os.Remove(tmp)
		return fmt.Errorf("failed to remove existing %s: %w", dst, err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename %s to %s: %w", tmp, dst, err)
	}
	return nil
}

func copyContents(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}

	_, err = io.Copy(out, in)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// IsSideFile reports whether name is one of the engine's transient side
// files: a two-phase staging file, a copy temporary, or a replace backup.
// Stale side files left by a crash are safe to delete.
func IsSideFile(name string) bool {
	if strings.HasSuffix(name, ".2pc") || strings.HasSuffix(name, ".tmp") {
		return true
	}
	return strings.Contains(name, ".bak_")
}
