package engine

import (
	"sort"
	"strings"

	"github.com/kydras/kydrastore/pkg/pool"
)

// Scoring weights. The base components sum to 0.90; the tier and SSD
// multipliers cover the remaining headroom.
const (
	weightSpace  = 0.45
	weightIO     = 0.35
	weightHealth = 0.10

	tierExactMultiplier     = 1.2
	tierDownshiftMultiplier = 1.0
	tierMissMultiplier      = 0.8
	ssdMultiplier           = 1.1
)

// ScoreDrive computes the placement suitability of a single drive for a file
// under the given rule. It is a pure function over (drive, rule, size):
// RankDrives scores eligible drives with the size it was given (zero on the
// write path, the reference copy's size when the rebalancer adds replicas),
// and the rebalancer reuses it with size zero to rank holders for eviction.
func ScoreDrive(d *pool.Drive, rule *pool.Rule, size int64) float64 {
	spaceRatio := 0.5
	if d.TotalSize > 0 {
		spaceRatio = float64(d.FreeSpace) / float64(d.TotalSize)
	}

	ioNorm := d.IOScore() / 3.0

	var healthWeight float64
	switch d.Health {
	case pool.HealthHealthy:
		healthWeight = 1.0
	case pool.HealthWarning:
		healthWeight = 0.6
	case pool.HealthCritical:
		healthWeight = 0.2
	default:
		healthWeight = 0.5
	}

	score := weightSpace*spaceRatio + weightIO*ioNorm + weightHealth*healthWeight

	tierMult := 1.0
	if rule != nil && rule.PreferredTier != pool.TierUnspecified {
		switch {
		case d.Tier() == rule.PreferredTier:
			tierMult = tierExactMultiplier
		case rule.PreferredTier == pool.TierHot && d.Tier() == pool.TierWarm:
			tierMult = tierDownshiftMultiplier
		default:
			tierMult = tierMissMultiplier
		}
	}

	ssdMult := 1.0
	if rule != nil && rule.PreferSSD && d.IsSolidState() {
		ssdMult = ssdMultiplier
	}

	return score * tierMult * ssdMult
}

// RankDrives filters the pool's drives down to those eligible to hold a
// file of the given size under the rule, ordered by descending suitability.
// Ties keep pool insertion order.
//
// Filtering, in order: healthy drives only; sufficient free space (zero free
// means unknown and passes); advisory target-drive narrowing; the rule's
// maximum file size.
func RankDrives(p *pool.Pool, size int64, rule *pool.Rule) []*pool.Drive {
	var eligible []*pool.Drive
	for i := range p.Drives {
		d := &p.Drives[i]
		if d.Health != pool.HealthHealthy {
			continue
		}
		if d.FreeSpace != 0 && int64(d.FreeSpace) <= max(size, 0) {
			continue
		}
		eligible = append(eligible, d)
	}

	if rule != nil && rule.TargetDrive != "" {
		var targeted []*pool.Drive
		for _, d := range eligible {
			if strings.EqualFold(d.RootPath, rule.TargetDrive) ||
				strings.EqualFold(d.DriveLetter(), rule.TargetDrive) {
				targeted = append(targeted, d)
			}
		}
		// The target is advisory: keep the unconstrained set when nothing
		// matches.
		if len(targeted) > 0 {
			eligible = targeted
		}
	}

	if rule != nil && rule.MaxFileSize > 0 && size > rule.MaxFileSize {
		return nil
	}

	SortByScore(eligible, rule, size)
	return eligible
}

// SortByScore orders an arbitrary drive set by descending ScoreDrive,
// preserving the incoming order among equals.
func SortByScore(drives []*pool.Drive, rule *pool.Rule, size int64) {
	sort.SliceStable(drives, func(i, j int) bool {
		return ScoreDrive(drives[i], rule, size) > ScoreDrive(drives[j], rule, size)
	})
}
