// Package pool defines the storage pool data model: pools, member drives,
// and placement rules.
//
// A Pool groups independent filesystem roots into one replicated namespace.
// Pools live in memory for the process lifetime; only the replica index is
// persisted. Pool objects carry no I/O logic of their own beyond drive
// probing; the engine package drives all replication.
package pool

import (
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
)

// PoolType is an informational classification of a pool's intended use.
type PoolType int

const (
	TypeJBOD PoolType = iota
	TypeMirror
	TypePerformance
	TypeArchive
	TypeCustom
)

func (t PoolType) String() string {
	switch t {
	case TypeJBOD:
		return "jbod"
	case TypeMirror:
		return "mirror"
	case TypePerformance:
		return "performance"
	case TypeArchive:
		return "archive"
	default:
		return "custom"
	}
}

// ParsePoolType maps a config string to a PoolType. Unrecognized values
// become TypeCustom.
func ParsePoolType(s string) PoolType {
	switch s {
	case "jbod":
		return TypeJBOD
	case "mirror":
		return TypeMirror
	case "performance":
		return TypePerformance
	case "archive":
		return TypeArchive
	default:
		return TypeCustom
	}
}

// Pool is a logical group of filesystem roots treated as one replicated
// namespace.
//
// Drives and Rules are owned by value and ordered: rule evaluation is
// top-to-bottom first-match, and scheduler ties break by drive insertion
// order. The engine serializes drive-membership changes per pool.
type Pool struct {
	ID   string
	Name string
	Type PoolType

	// MountPoint is a display-only hint; nothing is mounted there.
	MountPoint string

	Drives []Drive
	Rules  []Rule

	CreatedUTC time.Time
	UpdatedUTC time.Time
}

// New creates a pool with a fresh opaque ID and a host-appropriate mount
// point hint.
func New(name string, poolType PoolType) *Pool {
	now := time.Now().UTC()
	return &Pool{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       poolType,
		MountPoint: mountPointHint(name),
		CreatedUTC: now,
		UpdatedUTC: now,
	}
}

func mountPointHint(name string) string {
	if runtime.GOOS == "windows" {
		return `K:\` + name
	}
	return "/pools/" + name
}

// Touch records a mutation timestamp.
func (p *Pool) Touch() {
	p.UpdatedUTC = time.Now().UTC()
}

// ResolveRule returns the first rule matching the sanitized relative path,
// or nil when no rule matches.
func (p *Pool) ResolveRule(relPath string) *Rule {
	for i := range p.Rules {
		if p.Rules[i].Matches(relPath) {
			return &p.Rules[i]
		}
	}
	return nil
}

// FindDrive returns the member drive with the given root path, or nil.
// Comparison is by cleaned path.
func (p *Pool) FindDrive(rootPath string) *Drive {
	cleaned := filepath.Clean(rootPath)
	for i := range p.Drives {
		if filepath.Clean(p.Drives[i].RootPath) == cleaned {
			return &p.Drives[i]
		}
	}
	return nil
}
