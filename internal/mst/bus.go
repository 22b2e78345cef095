package mst

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// drmDPAuxClass is a var rather than a const so tests can point it at a
// temporary fake sysfs tree.
var drmDPAuxClass = "/sys/class/drm_dp_aux_dev"

var i2cDevNumRe = regexp.MustCompile(`i2c-(\d+)$`)

// BusHandle is the opaque descriptor returned by LocateBus: a device file
// path plus its numeric bus id, e.g. /dev/i2c-4 and 4.
type BusHandle struct {
	Path string

	// SysfsPath is the sysfs directory of the i2c sibling device backing
	// Path, e.g. /sys/devices/.../i2c-4 — used to build the PHYSICAL_ID
	// reported to the host.
	SysfsPath string

	ID int
}

// LocateBus finds the i2c-dev sibling of the DP-AUX device named auxName.
//
// It walks the drm_dp_aux_dev subsystem for a device whose "name" attribute
// equals auxName, then the i2c subsystem siblings of that device, then the
// i2c-dev children of the first i2c sibling. Only the first match at each
// level is used; extras are ignored.
func LocateBus(auxName string) (*BusHandle, error) {
	auxDir, err := findAuxDevice(auxName)
	if err != nil {
		return nil, err
	}

	i2cSibling, err := findI2CSibling(auxDir)
	if err != nil {
		return nil, models.ErrNotSupported(fmt.Sprintf("did not find an i2c-dev associated with DP aux %q", auxName))
	}

	devName, err := firstI2CDevChild(i2cSibling)
	if err != nil {
		return nil, models.ErrNotSupported(fmt.Sprintf("did not find an i2c-dev associated with DP aux %q", auxName))
	}

	m := i2cDevNumRe.FindStringSubmatch(devName)
	if m == nil {
		return nil, models.ErrNotSupported(fmt.Sprintf("could not parse bus id from %q", devName))
	}
	var id int
	if _, err := fmt.Sscanf(m[1], "%d", &id); err != nil {
		return nil, models.ErrNotSupported(fmt.Sprintf("could not parse bus id from %q", devName))
	}

	return &BusHandle{Path: filepath.Join("/dev", devName), SysfsPath: i2cSibling, ID: id}, nil
}

// findAuxDevice returns the sysfs device directory of the drm_dp_aux_dev
// entry whose name attribute matches auxName.
func findAuxDevice(auxName string) (string, error) {
	entries, err := os.ReadDir(drmDPAuxClass)
	if err != nil {
		return "", models.ErrNotSupported(fmt.Sprintf("did not find an i2c-dev associated with DP aux %q", auxName))
	}
	for _, e := range entries {
		devDir := filepath.Join(drmDPAuxClass, e.Name())
		nameBytes, err := os.ReadFile(filepath.Join(devDir, "name"))
		if err != nil {
			continue
		}
		if trimNewline(nameBytes) == auxName {
			resolved, err := filepath.EvalSymlinks(devDir)
			if err != nil {
				resolved = devDir
			}
			return resolved, nil
		}
	}
	return "", models.ErrNotSupported(fmt.Sprintf("did not find an i2c-dev associated with DP aux %q", auxName))
}

// findI2CSibling walks the parent of auxDevDir for a sibling whose
// subsystem symlink points at the i2c class.
func findI2CSibling(auxDevDir string) (string, error) {
	parent := filepath.Dir(auxDevDir)
	entries, err := os.ReadDir(parent)
	if err != nil {
		return "", fmt.Errorf("mst: read %s: %w", parent, err)
	}
	for _, e := range entries {
		candidate := filepath.Join(parent, e.Name())
		subsystem, err := filepath.EvalSymlinks(filepath.Join(candidate, "subsystem"))
		if err != nil {
			continue
		}
		if filepath.Base(subsystem) == "i2c" {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("mst: no i2c sibling under %s", parent)
}

// firstI2CDevChild returns the first i2c-dev child directory name under
// i2cDir (a bus device such as .../i2c-4), e.g. "i2c-4".
func firstI2CDevChild(i2cDir string) (string, error) {
	entries, err := os.ReadDir(i2cDir)
	if err != nil {
		return "", fmt.Errorf("mst: read %s: %w", i2cDir, err)
	}
	for _, e := range entries {
		candidate := filepath.Join(i2cDir, e.Name())
		subsystem, err := filepath.EvalSymlinks(filepath.Join(candidate, "subsystem"))
		if err != nil {
			continue
		}
		if filepath.Base(subsystem) == "i2c-dev" {
			return e.Name(), nil
		}
	}
	return "", fmt.Errorf("mst: no i2c-dev child under %s", i2cDir)
}

func trimNewline(b []byte) string {
	n := len(b)
	for n > 0 && (b[n-1] == '\n' || b[n-1] == '\r' || b[n-1] == ' ') {
		n--
	}
	return string(b[:n])
}
