package models

// DeviceFlag is one bit of device metadata advertised alongside the device.
type DeviceFlag uint8

const (
	FlagInternal DeviceFlag = 1 << iota
	FlagUpdatable
	FlagDualImage
	FlagCanVerifyImage
	FlagNeedsShutdown
)

// Set returns flags with f added.
func (flags DeviceFlag) Set(f DeviceFlag) DeviceFlag { return flags | f }

// Clear returns flags with f removed.
func (flags DeviceFlag) Clear(f DeviceFlag) DeviceFlag { return flags &^ f }

// Has reports whether f is set in flags.
func (flags DeviceFlag) Has(f DeviceFlag) bool { return flags&f != 0 }

// Strings returns the set flags as their names, for logging and JSON.
func (flags DeviceFlag) Strings() []string {
	var out []string
	for _, pair := range []struct {
		bit  DeviceFlag
		name string
	}{
		{FlagInternal, "internal"},
		{FlagUpdatable, "updatable"},
		{FlagDualImage, "dual-image"},
		{FlagCanVerifyImage, "can-verify-image"},
		{FlagNeedsShutdown, "needs-shutdown"},
	} {
		if flags.Has(pair.bit) {
			out = append(out, pair.name)
		}
	}
	return out
}
