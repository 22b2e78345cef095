//go:build linux

package mst

import (
	"fmt"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// HardwareReset asserts a host-wired reset line to the hub by name (BCM GPIO
// numbering, e.g. "GPIO4"), for boards where the host can pull the hub's
// reset pin directly. This is a fallback only: the normal reset path is the
// in-band register write in mode.go, and most DP-AUX-only hosts have no such
// line wired at all, in which case quirk config leaves pinName empty and
// this is never called.
func HardwareReset(pinName string) error {
	if pinName == "" {
		return nil
	}
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("mst: gpio host init: %w", err)
	}
	pin := gpioreg.ByName(pinName)
	if pin == nil {
		return fmt.Errorf("mst: gpio pin %s not found", pinName)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("mst: assert reset low on %s: %w", pinName, err)
	}
	time.Sleep(1 * time.Millisecond)
	if err := pin.Out(gpio.High); err != nil {
		return fmt.Errorf("mst: release reset on %s: %w", pinName, err)
	}
	time.Sleep(10 * time.Millisecond)
	slog.Debug("mst: asserted hardware reset line", "pin", pinName)
	return nil
}
