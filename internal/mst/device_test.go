package mst

import (
	"testing"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// newTestDevice builds a Device already in StateOpen against a fresh
// MockTransport, bypassing Probe/Open's real bus discovery.
func newTestDevice(t *testing.T, mt *MockTransport) *Device {
	t.Helper()
	d := NewDevice("DPDDC-E", nil)
	d.opener = func(string) (Transport, error) { return mt, nil }
	d.bus = &BusHandle{Path: "/dev/i2c-4", ID: 4}
	d.state = StateProbed
	if err := d.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return d
}

func TestDevice_ProbeWrongState(t *testing.T) {
	d := NewDevice("DPDDC-E", nil)
	d.state = StateOpen
	if err := d.Probe(); err == nil {
		t.Error("Probe from StateOpen must fail")
	}
}

func TestDevice_ReloadUnsupportedFirmware(t *testing.T) {
	mt := NewMockTransport()
	d := newTestDevice(t, mt)

	if err := d.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	info := d.Info()
	if info.Flags.Has(models.FlagUpdatable) {
		t.Error("expected UPDATABLE unset for a DDC/CI response with no dual-bank support")
	}
	if info.Version != "" {
		t.Errorf("expected empty version, got %q", info.Version)
	}
}

func TestDevice_ReloadNormal(t *testing.T) {
	mt := NewMockTransport()
	mt.SetDDCResponse(dualBankResponse{0xCA, 0x09, 0x01, 0x01, 0x01, 0x02, 0x05, 0x00, 0x00, 0, 0})
	d := newTestDevice(t, mt)

	if err := d.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	info := d.Info()
	if !info.Flags.Has(models.FlagUpdatable) {
		t.Error("expected UPDATABLE set")
	}
	if info.Version != "2.5" {
		t.Errorf("Version = %q, want 2.5", info.Version)
	}
}

func TestDevice_FullUpdateCycle(t *testing.T) {
	mt := NewMockTransport()
	mt.SetDDCResponse(dualBankResponse{0xCA, 0x09, 0x01, 0x01, 0x01, 0x02, 0x05, 0x00, 0x00, 0, 0})
	d := newTestDevice(t, mt)

	if err := d.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}

	if err := d.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	if d.state != StateISP {
		t.Fatalf("state = %v, want StateISP", d.state)
	}

	image := make([]byte, FirmwareSize)
	for i := range image {
		image[i] = 0xA5
	}
	if err := d.WriteFirmware(image); err != nil {
		t.Fatalf("WriteFirmware: %v", err)
	}

	if err := d.Attach(); err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if d.state != StateOpen {
		t.Fatalf("state after Attach = %v, want StateOpen", d.state)
	}

	mt.SetDDCResponse(dualBankResponse{0xCA, 0x09, 0x01, 0x01, 0x02, 0x02, 0x05, 0x01, 0x01, 0, 0})
	if err := d.Reload(); err != nil {
		t.Fatalf("Reload after attach: %v", err)
	}
	if got := d.Info().Version; got != "1.1" {
		t.Errorf("version after reload = %q, want 1.1", got)
	}
}

func TestDevice_AttachFailureSetsNeedsShutdown(t *testing.T) {
	mt := NewMockTransport()
	d := newTestDevice(t, mt)

	if err := d.Detach(); err != nil {
		t.Fatalf("Detach: %v", err)
	}
	mt.SetStuckInISP(true)

	err := d.Attach()
	if err == nil {
		t.Fatal("expected NeedsUserAction error")
	}
	if appErr, ok := err.(*models.AppError); !ok || appErr.Code != "NEEDS_USER_ACTION" {
		t.Errorf("err = %#v, want NEEDS_USER_ACTION", err)
	}
	if !d.Info().Flags.Has(models.FlagNeedsShutdown) {
		t.Error("expected NEEDS_SHUTDOWN flag after failed attach")
	}
	if d.state != StateOpen {
		t.Errorf("state after failed Attach = %v, want StateOpen", d.state)
	}
}
