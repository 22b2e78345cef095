package mst

import (
	"bytes"
	"testing"
)

func TestFlashRead_DiscardsFirstByteAtAddressMinusOne(t *testing.T) {
	mt := NewMockTransport()
	r := newRegs(mt)
	fl := newFlashIface(r)

	want := []byte{0x11, 0x22, 0x33, 0x44}
	// Seed flash so that address-1 holds a sentinel and address.. holds want.
	mt.SeedFlash(0x0FFF, append([]byte{0xDE}, want...))

	got := make([]byte, len(want))
	if err := fl.read(0x1000, got, nil); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("read(0x1000) = % x, want % x", got, want)
	}
}

func TestFlashEraseSector_RequiresAlignment(t *testing.T) {
	mt := NewMockTransport()
	fl := newFlashIface(newRegs(mt))

	if err := fl.eraseSector(0x1001); err == nil {
		t.Error("expected error for unaligned sector erase address")
	}
	if err := fl.eraseSector(0x1000); err != nil {
		t.Errorf("eraseSector(0x1000): %v", err)
	}
}

func TestFlashEraseBlock_RequiresAlignment(t *testing.T) {
	mt := NewMockTransport()
	fl := newFlashIface(newRegs(mt))

	if err := fl.eraseBlock(0x10001); err == nil {
		t.Error("expected error for unaligned block erase address")
	}
	if err := fl.eraseBlock(0x10000); err != nil {
		t.Errorf("eraseBlock(0x10000): %v", err)
	}
	if mt.EraseBlockCount() != 1 {
		t.Errorf("EraseBlockCount = %d, want 1", mt.EraseBlockCount())
	}
}

func TestFlashWriteThenRead_RoundTrip(t *testing.T) {
	mt := NewMockTransport()
	fl := newFlashIface(newRegs(mt))

	data := bytes.Repeat([]byte{0xC3}, 600) // spans more than 2 pages
	if err := fl.write(0x20000, data, nil); err != nil {
		t.Fatalf("write: %v", err)
	}

	got := make([]byte, len(data))
	if err := fl.read(0x20000, got, nil); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("read-back does not match written data")
	}
}
