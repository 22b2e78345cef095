package mst

import "testing"

func TestQueryDualBank_Unsupported(t *testing.T) {
	mt := NewMockTransport()
	m := newMode(newRegs(mt))

	_, valid, err := m.queryDualBank()
	if err != nil {
		t.Fatalf("queryDualBank: %v", err)
	}
	if valid {
		t.Error("expected invalid response when DDC/CI echo bytes are unset")
	}
}

func TestQueryDualBank_Valid(t *testing.T) {
	mt := NewMockTransport()
	mt.SetDDCResponse(dualBankResponse{0xCA, 0x09, 1, 1, 1, 2, 5, 0, 0, 0, 0})
	m := newMode(newRegs(mt))

	resp, valid, err := m.queryDualBank()
	if err != nil {
		t.Fatalf("queryDualBank: %v", err)
	}
	if !valid {
		t.Fatal("expected a valid response")
	}
	if resp[3] != 1 {
		t.Errorf("mode byte = %d, want 1", resp[3])
	}
}

func TestGPIO88_SetLevel(t *testing.T) {
	mt := NewMockTransport()
	m := newMode(newRegs(mt))

	if err := m.setGPIO88(true); err != nil {
		t.Fatalf("setGPIO88(true): %v", err)
	}
	if v := mt.IndirectReg(indirectGPIO88Val); v&1 == 0 {
		t.Errorf("GPIO88 value register = 0x%02x, want bit0 set", v)
	}
	if cfg := mt.IndirectReg(indirectGPIO88Cfg); cfg&0x0F != 0x01 {
		t.Errorf("GPIO88 config register low nibble = 0x%x, want 0x1", cfg&0x0F)
	}

	if err := m.setGPIO88(false); err != nil {
		t.Fatalf("setGPIO88(false): %v", err)
	}
	if v := mt.IndirectReg(indirectGPIO88Val); v&1 != 0 {
		t.Errorf("GPIO88 value register = 0x%02x, want bit0 clear", v)
	}
}

func TestEnterExitISP(t *testing.T) {
	mt := NewMockTransport()
	m := newMode(newRegs(mt))

	if err := m.enterISP(); err != nil {
		t.Fatalf("enterISP: %v", err)
	}
	if v := mt.DirectReg(regMCUMode); v&mcuModeISP == 0 {
		t.Fatal("expected ISP bit set after enterISP")
	}
	if v := mt.IndirectReg(indirectOverclock); v != overclockValue {
		t.Errorf("overclock register = 0x%02x, want 0x%02x", v, overclockValue)
	}

	if err := m.exitISP(); err != nil {
		t.Fatalf("exitISP: %v", err)
	}
	if v := mt.DirectReg(regMCUMode); v&mcuModeISP != 0 {
		t.Error("expected ISP bit clear after exitISP")
	}
}
