package mst

import (
	"fmt"
	"os"
)

// dmiProductFamilyPath is a var rather than a const so tests can point it at
// a temporary file.
var dmiProductFamilyPath = "/sys/class/dmi/id/product_family"

// HardwareFamily returns the host's DMI product family, used to build the
// quirks-only instance ID fallback. There is no fwupd context object in this
// standalone daemon to supply it, so it is read directly from sysfs; "unknown"
// is returned when the attribute is absent (e.g. non-x86 or virtualized
// hosts without a DMI table).
func HardwareFamily() string {
	data, err := os.ReadFile(dmiProductFamilyPath)
	if err != nil {
		return "unknown"
	}
	family := trimNewline(data)
	if family == "" {
		return "unknown"
	}
	return family
}

// InstanceIDs returns the instance IDs this device advertises to the host:
// a full match on the DP-AUX quirk name, and a quirks-only fallback scoped
// to the host's hardware family.
func (d *Device) InstanceIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []string{
		fmt.Sprintf(`REALTEK-MST\Name_%s`, d.auxName),
		fmt.Sprintf(`REALTEK-MST\Name_%s&Family_%s`, d.auxName, HardwareFamily()),
	}
}

// PhysicalID returns the PHYSICAL_ID string identifying the underlying udev
// device, valid once Probe has located the bus.
func (d *Device) PhysicalID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return ""
	}
	return "I2C_PATH=" + d.bus.SysfsPath
}

// BusPath returns the /dev node backing the located bus, valid once Probe
// has succeeded. Used by callers that want to watch the node disappear and
// reappear across the reset Attach triggers.
func (d *Device) BusPath() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.bus == nil {
		return ""
	}
	return d.bus.Path
}
