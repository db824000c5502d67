package pool

import (
	"path/filepath"
	"strings"
	"time"
)

// DriveClass is the coarse device type of a drive's underlying volume.
type DriveClass int

const (
	DriveClassUnknown DriveClass = iota
	DriveClassHDD
	DriveClassSSD
	DriveClassNVMe
	DriveClassNetwork
	DriveClassRemovable
)

func (c DriveClass) String() string {
	switch c {
	case DriveClassHDD:
		return "HDD"
	case DriveClassSSD:
		return "SSD"
	case DriveClassNVMe:
		return "NVMe"
	case DriveClassNetwork:
		return "Network"
	case DriveClassRemovable:
		return "Removable"
	default:
		return "Unknown"
	}
}

// DriveHealth is the last observed health state of a drive root.
type DriveHealth int

const (
	HealthUnknown DriveHealth = iota
	HealthHealthy
	HealthWarning
	HealthCritical
	HealthFailed
)

func (h DriveHealth) String() string {
	switch h {
	case HealthHealthy:
		return "Healthy"
	case HealthWarning:
		return "Warning"
	case HealthCritical:
		return "Critical"
	case HealthFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// DriveTier is a coarse performance tier derived from the device class.
type DriveTier int

const (
	TierUnspecified DriveTier = iota
	TierHot
	TierWarm
	TierCold
)

func (t DriveTier) String() string {
	switch t {
	case TierHot:
		return "Hot"
	case TierWarm:
		return "Warm"
	case TierCold:
		return "Cold"
	default:
		return "Unspecified"
	}
}

// Drive is a single filesystem root participating in a pool. It is the unit
// of placement: every replica of a file lives directly under one drive root.
type Drive struct {
	// RootPath is the directory under which this drive stores replicas.
	RootPath string

	// VolumeRoot is the root of the volume containing RootPath, for display
	// and drive-letter matching (e.g. `C:\` or `/`).
	VolumeRoot string

	// Label is a human-readable name for the drive.
	Label string

	// TotalSize and FreeSpace are the last probed capacity figures in bytes.
	// Zero means unknown.
	TotalSize uint64
	FreeSpace uint64

	Class  DriveClass
	Health DriveHealth

	// LastHealthCheck is when TotalSize/FreeSpace/Health were last refreshed.
	LastHealthCheck time.Time
}

// Tier derives the performance tier from the device class.
func (d *Drive) Tier() DriveTier {
	switch d.Class {
	case DriveClassNVMe, DriveClassSSD:
		return TierHot
	case DriveClassHDD, DriveClassUnknown:
		return TierWarm
	default:
		return TierCold
	}
}

// IOScore is a relative throughput weight for the device class, used by the
// placement scheduler.
func (d *Drive) IOScore() float64 {
	switch d.Class {
	case DriveClassNVMe:
		return 3.0
	case DriveClassSSD:
		return 2.0
	case DriveClassHDD:
		return 1.0
	case DriveClassNetwork:
		return 0.8
	default:
		return 0.6
	}
}

// IsSolidState reports whether the drive is flash-backed.
func (d *Drive) IsSolidState() bool {
	return d.Class == DriveClassSSD || d.Class == DriveClassNVMe
}

// DriveLetter returns the volume's drive letter ("C") when the volume root
// has the letter-colon shape, or "" otherwise.
func (d *Drive) DriveLetter() string {
	vol := strings.TrimRight(d.VolumeRoot, `\/`)
	if len(vol) == 2 && vol[1] == ':' {
		return string(vol[0])
	}
	return ""
}

// volumeRootOf derives the volume root for a path: the Windows volume name
// when present, "/" otherwise.
func volumeRootOf(path string) string {
	if vol := filepath.VolumeName(path); vol != "" {
		return vol + `\`
	}
	return "/"
}
