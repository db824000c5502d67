package pool

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/disk"

	"github.com/kydras/kydrastore/internal/logger"
)

// networkFilesystems are fstypes reported by the OS that indicate a remote
// or fuse-bridged volume.
var networkFilesystems = map[string]bool{
	"nfs":        true,
	"nfs4":       true,
	"cifs":       true,
	"smbfs":      true,
	"smb2":       true,
	"sshfs":      true,
	"fuse.sshfs": true,
	"9p":         true,
	"afpfs":      true,
	"webdav":     true,
}

// NewDrive builds a Drive for a filesystem root and performs the initial
// probe. The root directory is created if missing.
func NewDrive(rootPath string) (Drive, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return Drive{}, err
	}

	d := Drive{
		RootPath:   rootPath,
		VolumeRoot: volumeRootOf(rootPath),
		Label:      labelFor(rootPath),
		Class:      guessClass(rootPath),
	}
	d.Refresh()
	d.Health = CheckHealth(rootPath)
	return d, nil
}

func labelFor(rootPath string) string {
	trimmed := strings.TrimRight(rootPath, `\/`)
	if idx := strings.LastIndexAny(trimmed, `\/`); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// guessClass makes a host-specific guess at the device class. UNC-prefixed
// roots and network fstypes map to Network; everything else stays Unknown
// until the operator reclassifies it.
func guessClass(rootPath string) DriveClass {
	if strings.HasPrefix(rootPath, `\\`) || strings.HasPrefix(rootPath, "//") {
		return DriveClassNetwork
	}
	if usage, err := disk.Usage(rootPath); err == nil {
		if networkFilesystems[strings.ToLower(usage.Fstype)] {
			return DriveClassNetwork
		}
	}
	return DriveClassUnknown
}

// Refresh re-reads total and free bytes from the OS and stamps
// LastHealthCheck. Probe failures leave the previous figures in place.
func (d *Drive) Refresh() {
	usage, err := disk.Usage(d.RootPath)
	if err != nil {
		logger.Warn("drive probe failed for %s: %v", d.RootPath, err)
		return
	}
	d.TotalSize = usage.Total
	d.FreeSpace = usage.Free
	d.LastHealthCheck = time.Now().UTC()
}

// CheckHealth probes a root by writing and deleting a uniquely-named
// sentinel file. A writable root is Healthy; anything else is Warning.
func CheckHealth(rootPath string) DriveHealth {
	info, err := os.Stat(rootPath)
	if err != nil || !info.IsDir() {
		return HealthWarning
	}

	sentinel := sentinelPath(rootPath)
	if err := os.WriteFile(sentinel, []byte("kydras health probe"), 0644); err != nil {
		return HealthWarning
	}
	if err := os.Remove(sentinel); err != nil {
		logger.Warn("could not remove health sentinel %s: %v", sentinel, err)
	}
	return HealthHealthy
}

func sentinelPath(rootPath string) string {
	uniq := strings.ReplaceAll(uuid.NewString(), "-", "")
	return filepath.Join(rootPath, ".kydras_health_"+uniq)
}
