package pool

import "github.com/kydras/kydrastore/pkg/glob"

// Rule controls placement for files whose relative path matches Pattern.
//
// Rules are evaluated in list order; the first match wins. A file matching no
// rule gets the defaults: one replica, no drive constraint, no tier
// preference.
type Rule struct {
	// Pattern is a glob over the sanitized relative path (`*` within a
	// segment, `**` across segments, case-insensitive).
	Pattern string

	// TargetDrive optionally constrains placement to a drive whose root path
	// or drive letter equals this value (case-insensitive). Advisory: when no
	// pool drive matches, placement falls back to the unconstrained set.
	TargetDrive string

	// DuplicationLevel is the required replica count. Values below 1 are
	// treated as 1.
	DuplicationLevel int

	// PreferSSD boosts flash-backed drives in scheduling.
	PreferSSD bool

	// MaxFileSize, when positive, excludes files larger than this many bytes
	// from the rule's eligible drives.
	MaxFileSize int64

	// PreferredTier, when not TierUnspecified, boosts drives of that tier.
	PreferredTier DriveTier
}

// Matches reports whether the sanitized relative path matches the rule.
func (r *Rule) Matches(relPath string) bool {
	return glob.Match(r.Pattern, relPath)
}

// Replicas returns the effective duplication level, never below 1.
func (r *Rule) Replicas() int {
	if r == nil || r.DuplicationLevel < 1 {
		return 1
	}
	return r.DuplicationLevel
}
