package mst

import "testing"

// TestHardwareReset_EmptyPinIsNoOp holds on both the linux and non-linux
// build of HardwareReset: an empty quirk-configured pin name means the host
// has no hardware reset line wired, and must never touch GPIO hardware.
func TestHardwareReset_EmptyPinIsNoOp(t *testing.T) {
	if err := HardwareReset(""); err != nil {
		t.Errorf("HardwareReset(\"\") = %v, want nil", err)
	}
}
