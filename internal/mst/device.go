package mst

import (
	"fmt"
	"sync"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// Protocol is the identifier this updater advertises for the hub.
const Protocol = "com.realtek.rtd2142"

// FirmwareSize is the size a firmware image must be to be accepted by
// WriteFirmware.
const FirmwareSize = userSize

// State is the Device Facade's lifecycle state.
type State int

const (
	StateDetached State = iota
	StateProbed
	StateOpen
	StateISP
)

func (s State) String() string {
	switch s {
	case StateDetached:
		return "detached"
	case StateProbed:
		return "probed"
	case StateOpen:
		return "open"
	case StateISP:
		return "isp"
	default:
		return "unknown"
	}
}

// TransportOpener opens a Transport for a located bus. Swappable for tests.
type TransportOpener func(path string) (Transport, error)

// Device is the facade the rest of the daemon drives: discovery, open,
// firmware write, and the detach/attach bracket around ISP mode.
//
// States and transitions:
//
//	DETACHED -> PROBED  on successful Probe
//	PROBED   -> OPEN    on Open
//	OPEN     -> ISP     on Detach
//	ISP      -> ISP     on WriteFirmware
//	ISP      -> OPEN    on Attach (failure leaves state OPEN + NEEDS_SHUTDOWN flag)
//	OPEN     -> DETACHED on Close
type Device struct {
	mu sync.Mutex

	auxName string
	bus     *BusHandle
	opener  TransportOpener
	locate  func(auxName string) (*BusHandle, error)

	state State
	flags models.DeviceFlag

	transport Transport
	regs      *regs
	mode      *mode
	flash     *flashIface
	bank      *bankManager

	active  Bank
	version string

	onProgress func(models.Progress)
}

// NewDevice creates a Device for the DP-AUX quirk name auxName. onProgress,
// if non-nil, is called at every chunk boundary and phase transition.
func NewDevice(auxName string, onProgress func(models.Progress)) *Device {
	return &Device{
		auxName:    auxName,
		opener:     openI2CTransport,
		locate:     LocateBus,
		state:      StateDetached,
		onProgress: onProgress,
	}
}

// NewMockDevice returns a Device pre-wired to an in-memory MockTransport,
// bypassing LocateBus and the real I2C ioctls. It is used by the --mock CLI
// flag and by integration tests that want the full Probe..Close lifecycle
// without real hardware. The returned MockTransport can be configured (DDC/CI
// response, flash contents) before Probe/Open are called.
func NewMockDevice(auxName string, onProgress func(models.Progress)) (*Device, *MockTransport) {
	d := NewDevice(auxName, onProgress)
	mt := NewMockTransport()
	d.locate = func(string) (*BusHandle, error) {
		return &BusHandle{Path: "mock:" + auxName, SysfsPath: "mock:" + auxName, ID: 0}, nil
	}
	d.opener = func(string) (Transport, error) { return mt, nil }
	return d, mt
}

// Name is the device name this updater always advertises. No host-reported
// device name is compared against it.
func (d *Device) Name() string { return "RTD2142" }

func (d *Device) emit(status models.ProgressStatus, done, total int) {
	if d.onProgress == nil {
		return
	}
	d.onProgress(models.Progress{Status: status, Done: uint32(done), Total: uint32(total)})
}

// Probe locates the hub's I2C bus via its DP-AUX quirk name. It only
// locates the bus; no device-name check is made here or by its callers.
func (d *Device) Probe() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateDetached {
		return models.ErrInternal(fmt.Sprintf("mst: Probe called in state %s", d.state))
	}

	bus, err := d.locate(d.auxName)
	if err != nil {
		return err
	}
	d.bus = bus
	d.state = StateProbed
	return nil
}

// Open opens the located I2C bus and wires up the register/mode/flash/bank
// layers.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateProbed {
		return models.ErrInternal(fmt.Sprintf("mst: Open called in state %s", d.state))
	}

	t, err := d.opener(d.bus.Path)
	if err != nil {
		return err
	}
	d.transport = t
	d.regs = newRegs(t)
	d.mode = newMode(d.regs)
	d.flash = newFlashIface(d.regs)
	d.bank = newBankManager(d.mode, d.flash, func(status models.ProgressStatus, done, total int) {
		d.emit(status, done, total)
	})
	d.state = StateOpen
	return nil
}

// Reload re-reads dual-bank info from the running firmware and updates the
// device's advertised version and UPDATABLE flag. Clears both first so a
// partial failure leaves no stale metadata.
func (d *Device) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateOpen {
		return models.ErrInternal(fmt.Sprintf("mst: Reload called in state %s", d.state))
	}

	d.flags = d.flags.Clear(models.FlagUpdatable)
	d.version = ""

	info, err := d.bank.reload()
	if err != nil {
		return err
	}

	if info.isEnabled && info.mode == ModeDiff {
		d.flags = d.flags.Set(models.FlagUpdatable)
		d.active = info.activeBank
		switch info.activeBank {
		case BankUser1:
			d.version = info.user1Version.String()
		case BankUser2:
			d.version = info.user2Version.String()
		}
	}
	return nil
}

// Info returns the device's advertised name/version/flags.
func (d *Device) Info() models.DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	flags := models.FlagInternal | models.FlagDualImage | models.FlagCanVerifyImage | d.flags
	return models.DeviceInfo{
		Name:     "RTD2142",
		Protocol: Protocol,
		Version:  d.version,
		Flags:    flags,
		FlagsStr: flags.Strings(),
	}
}

// Detach enters ISP mode, exposing the SPI flash for programming.
func (d *Device) Detach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateOpen {
		return models.ErrInternal(fmt.Sprintf("mst: Detach called in state %s", d.state))
	}
	d.emit(models.StatusDeviceRestart, 0, 0)
	if err := d.mode.enterISP(); err != nil {
		return err
	}
	d.state = StateISP
	return nil
}

// WriteFirmware programs image into the inactive USER bank and commits the
// bank-switch flag. Must be called while in ISP mode (after Detach).
func (d *Device) WriteFirmware(image []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateISP {
		return models.ErrInternal(fmt.Sprintf("mst: WriteFirmware called in state %s", d.state))
	}
	return d.bank.writeFirmware(d.active, image)
}

// ReadFirmware reads n bytes from the currently active bank's base address,
// for dump/backup use. Must be called while in ISP mode.
func (d *Device) ReadFirmware(n int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateISP {
		return nil, models.ErrInternal(fmt.Sprintf("mst: ReadFirmware called in state %s", d.state))
	}
	base, _ := bankAddrs(d.active)
	if d.active == BankBoot {
		base = addrBoot
	}
	buf := make([]byte, n)
	d.emit(models.StatusDeviceRead, 0, n)
	err := d.flash.read(base, buf, func(done int) {
		d.emit(models.StatusDeviceRead, done, n)
	})
	return buf, err
}

// Attach exits ISP mode and resets the MCU. On failure to leave ISP mode,
// the device stays OPEN but gains NEEDS_SHUTDOWN and returns a
// NeedsUserAction error; a following Reload still refreshes active_bank.
func (d *Device) Attach() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateISP {
		return models.ErrInternal(fmt.Sprintf("mst: Attach called in state %s", d.state))
	}

	err := d.mode.exitISP()
	d.state = StateOpen
	if err != nil {
		d.flags = d.flags.Set(models.FlagNeedsShutdown)
		return err
	}
	return nil
}

// Close releases the I2C bus handle.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateOpen {
		return models.ErrInternal(fmt.Sprintf("mst: Close called in state %s", d.state))
	}
	var err error
	if d.transport != nil {
		err = d.transport.Close()
	}
	d.state = StateDetached
	d.transport = nil
	d.regs = nil
	d.mode = nil
	d.flash = nil
	d.bank = nil
	return err
}
