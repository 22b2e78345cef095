package mst

import (
	"time"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// Direct register map for mode control and flash access.
const (
	regDDCCICmd  = 0xCA
	regMCUMode   = 0x6F
	regResetTrig = 0xEE

	mcuModeISP       = 0x80
	mcuModeWriteBusy = 0x20
	mcuModeWriteBuf  = 0x10
)

// Indirect registers for the RTD2142's internal GPIO88 line (write-protect).
const (
	indirectOverclock  = 0x06A0
	indirectGPIO88Cfg  = 0x104F
	indirectGPIO88Val  = 0xFE3F
	overclockValue     = 0x74
)

const ispEntryTimeout = 60 * time.Second

// mode drives the DDC/CI probe and the ISP mode transitions on top of the
// register layer.
type mode struct {
	r *regs
}

func newMode(r *regs) *mode { return &mode{r: r} }

// dualBankResponse is the raw 11-byte response to the DDC/CI dual-bank query.
type dualBankResponse [11]byte

// queryDualBank issues the DDC/CI command sequence used to read dual-bank
// state from the running firmware. The response is only meaningful if its
// first two bytes echo 0xCA, 0x09; otherwise the firmware predates
// dual-bank support.
func (m *mode) queryDualBank() (dualBankResponse, bool, error) {
	var resp dualBankResponse
	if err := m.r.writeDirect(regDDCCICmd, 0x09); err != nil {
		return resp, false, err
	}
	time.Sleep(200 * time.Millisecond)
	if err := m.r.t.Write([]byte{0x01}); err != nil {
		return resp, false, err
	}
	raw, err := m.r.t.Read(len(resp))
	if err != nil {
		return resp, false, err
	}
	copy(resp[:], raw)
	valid := resp[0] == 0xCA && resp[1] == 0x09
	return resp, valid, nil
}

// enterISP puts the MCU into In-System-Programming mode and lifts the SPI
// flash write-protect line.
func (m *mode) enterISP() error {
	if err := m.r.writeDirect(regMCUMode, mcuModeISP); err != nil {
		return err
	}
	if err := m.r.pollUntil(regMCUMode, mcuModeISP, mcuModeISP, ispEntryTimeout); err != nil {
		return models.ErrInternal(err.Error())
	}
	// Overclock the MCU; documented to stabilize the ISP protocol and
	// speed up programming.
	if err := m.r.writeIndirect(indirectOverclock, overclockValue); err != nil {
		return err
	}
	return m.setGPIO88(true)
}

// exitISP restores the write-protect line and, if the MCU is still in ISP
// mode, forces a reset. Returns a NeedsUserAction error if the reset does
// not take within the settling delay.
func (m *mode) exitISP() error {
	if err := m.setGPIO88(false); err != nil {
		return err
	}

	v, err := m.r.readDirect(regMCUMode)
	if err != nil {
		return err
	}
	if v&mcuModeISP == 0 {
		return nil
	}

	// Trigger the reset by reading back the reset-trigger register and
	// setting its request bit. This write commonly NAKs because the MCU is
	// mid reset by the time it lands; the subsequent mode re-read is what
	// actually decides success, so the error here is swallowed.
	rv, rerr := m.r.readDirect(regResetTrig)
	if rerr == nil {
		_ = m.r.writeDirect(regResetTrig, rv|0x02)
	}

	time.Sleep(time.Second)

	v, err = m.r.readDirect(regMCUMode)
	if err != nil {
		return err
	}
	if v&mcuModeISP != 0 {
		return models.ErrNeedsUserAction("MCU did not leave ISP mode after reset; device needs a power cycle")
	}
	return nil
}

// setGPIO88 configures the pin as push-pull output (idempotent) and drives
// the requested level. The pin is internal to the RTD2142, addressed
// through the indirect mailbox — not a host GPIO line.
func (m *mode) setGPIO88(high bool) error {
	cfg, err := m.r.readIndirect(indirectGPIO88Cfg)
	if err != nil {
		return err
	}
	if err := m.r.writeIndirect(indirectGPIO88Cfg, (cfg&0xF0)|0x01); err != nil {
		return err
	}

	val, err := m.r.readIndirect(indirectGPIO88Val)
	if err != nil {
		return err
	}
	var level byte
	if high {
		level = 1
	}
	return m.r.writeIndirect(indirectGPIO88Val, (val&0xFE)|level)
}
