// Package controller orchestrates the one *mst.Device this daemon drives:
// connecting to it, serializing update requests against it, and tracking
// the status/progress snapshot the HTTP surface reports.
//
// Adapted from the teacher's central Controller, which guarded a shared
// mutable system state behind a single apply() mutation point; here there is
// only one device and only one mutating operation (an update), so the same
// shape narrows to two mutexes: one serializing the whole detach..attach
// bracket (spec.md §5 — one update in flight per handle), and one guarding
// the cheap progress snapshot so reading it never waits on an update. The
// device info that Status also returns comes from mst.Device.Info, which
// waits for any device call in progress (such as WriteFirmware) to finish.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/dpmst/rtd2142fw/internal/config"
	"github.com/dpmst/rtd2142fw/internal/events"
	"github.com/dpmst/rtd2142fw/internal/models"
	"github.com/dpmst/rtd2142fw/internal/mst"
	"github.com/dpmst/rtd2142fw/internal/watch"
)

// resetWaitTimeout bounds how long RunUpdate waits for the bus node to
// reappear after Attach triggers a hub reset, before giving up on the
// advisory wait and re-reading dual-bank state via Reload anyway.
const resetWaitTimeout = 10 * time.Second

// Controller owns the device and config store for one hub.
type Controller struct {
	updateMu sync.Mutex // held for the full detach..attach bracket of an update

	mu       sync.Mutex // guards progress below
	dev      *mst.Device
	store    config.Store
	bus      *events.Bus
	progress models.Progress
	mock     bool
}

// New creates a Controller for the quirk-supplied DP-AUX name. If mock is
// true the device is backed by an in-memory register mock instead of real
// I2C/sysfs, for --mock CLI runs and local development.
func New(auxName string, store config.Store, bus *events.Bus, mock bool) *Controller {
	c := &Controller{store: store, bus: bus, mock: mock}

	onProgress := func(p models.Progress) {
		c.mu.Lock()
		c.progress = p
		c.mu.Unlock()
		bus.Publish(p)
	}

	if mock {
		dev, _ := mst.NewMockDevice(auxName, onProgress)
		c.dev = dev
	} else {
		c.dev = mst.NewDevice(auxName, onProgress)
	}
	return c
}

// Connect locates and opens the hub's I2C bus, then reads its current
// dual-bank state. Must succeed once before Status or RunUpdate is useful.
func (c *Controller) Connect() error {
	if err := c.dev.Probe(); err != nil {
		return fmt.Errorf("controller: probe: %w", err)
	}
	if err := c.dev.Open(); err != nil {
		return fmt.Errorf("controller: open: %w", err)
	}
	if err := c.dev.Reload(); err != nil {
		return fmt.Errorf("controller: reload: %w", err)
	}
	return nil
}

// Status returns the device's current version/flags plus the most recent
// progress snapshot. The progress snapshot never waits on an in-flight
// update; the device info does, because mst.Device.Info takes the device
// lock that WriteFirmware and the other device calls hold while they run.
func (c *Controller) Status() (models.DeviceInfo, models.Progress) {
	c.mu.Lock()
	progress := c.progress
	c.mu.Unlock()
	return c.dev.Info(), progress
}

// InstanceIDs and PhysicalID expose the host instance identifiers spec.md §6
// names, valid once Connect has succeeded.
func (c *Controller) InstanceIDs() []string { return c.dev.InstanceIDs() }
func (c *Controller) PhysicalID() string    { return c.dev.PhysicalID() }

// RunUpdate drives one full update cycle: detach (enter ISP), write the
// image to the inactive bank and verify it, attach (exit ISP, reset), then
// reload dual-bank state so Status reflects the new active bank. ctx is
// checked once before Detach and bounds the advisory bus-node wait after
// Attach; once Detach has started, the write, verify and attach phases run
// to completion — the underlying register protocol is synchronous per
// spec.md §5 and does not itself support mid-operation cancellation.
func (c *Controller) RunUpdate(ctx context.Context, image []byte) error {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := c.dev.Detach(); err != nil {
		return fmt.Errorf("controller: detach: %w", err)
	}

	writeErr := c.dev.WriteFirmware(image)

	attachErr := c.dev.Attach()
	switch {
	case writeErr != nil && attachErr != nil:
		return fmt.Errorf("controller: write failed (%w), then attach also failed: %v", writeErr, attachErr)
	case writeErr != nil:
		return fmt.Errorf("controller: write: %w", writeErr)
	case attachErr != nil:
		return fmt.Errorf("controller: attach: %w", attachErr)
	}

	c.waitForReset(ctx)

	if err := c.dev.Reload(); err != nil {
		if !c.tryHardwareResetFallback(err) {
			return fmt.Errorf("controller: reload after attach: %w", err)
		}
		if err := c.dev.Reload(); err != nil {
			return fmt.Errorf("controller: reload after hardware reset fallback: %w", err)
		}
	}
	return nil
}

// tryHardwareResetFallback pulls the quirk-configured GPIO reset line, if
// any, when the in-band register reset left the hub without confirming
// normal mode (spec.md §9's dual 0xEE reset paths — a host that wires a
// physical reset pin has a second way to recover from that case). Reports
// whether a hardware reset was actually attempted.
func (c *Controller) tryHardwareResetFallback(reloadErr error) bool {
	var appErr *models.AppError
	if !errors.As(reloadErr, &appErr) || appErr.Code != "NEEDS_USER_ACTION" {
		return false
	}
	quirk, err := c.store.Load()
	if err != nil || quirk.ResetGPIO == "" {
		return false
	}
	if err := mst.HardwareReset(quirk.ResetGPIO); err != nil {
		slog.Warn("controller: hardware reset fallback failed", "pin", quirk.ResetGPIO, "err", err)
		return false
	}
	slog.Info("controller: pulled hardware reset line after register reset left hub in ISP mode", "pin", quirk.ResetGPIO)
	return true
}

// waitForReset gives the hub a bounded window to re-enumerate its I2C
// sibling after the reset Attach triggers. It is advisory only: Attach's
// MCU_MODE re-read has already decided whether the reset took, and Reload's
// DDC/CI query runs afterwards either way; this just avoids hammering a bus
// node that is mid-disappearance.
func (c *Controller) waitForReset(ctx context.Context) {
	if c.mock {
		return
	}
	path := c.dev.BusPath()
	if path == "" {
		return
	}
	waitCtx, cancel := context.WithTimeout(ctx, resetWaitTimeout)
	defer cancel()
	w := watch.New(filepath.Dir(path))
	if err := w.WaitForReappearance(waitCtx, path); err != nil {
		slog.Debug("controller: bus node did not reappear before timeout, proceeding to reload anyway", "path", path, "err", err)
	}
}

// Close releases the device's bus handle and flushes any pending config
// writes.
func (c *Controller) Close() error {
	err := c.dev.Close()
	if ferr := c.store.Flush(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
