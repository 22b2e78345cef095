package mst

import (
	"bytes"
	"fmt"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// Bank identifies a flash region holding a firmware image.
type Bank int

const (
	BankBoot Bank = iota
	BankUser1
	BankUser2
	BankInvalid
)

// Dual-bank mode as reported by the DDC/CI query.
type BankMode int

const (
	ModeUserOnly BankMode = iota
	ModeDiff
	ModeCopy
	ModeUserOnlyFlag
)

// Flash region layout.
const (
	addrBoot   = 0x00000
	addrUser1  = 0x10000
	addrUser2  = 0x80000
	userSize   = 0x70000
	addrFlag1  = 0xFE304
	addrFlag2  = 0xFF304
	flagSector = 0xFE000 // FLAG1's sector (addrFlag1 &^ 0xFFF); FLAG2's is 0xFF000
)

// flagPayload is written to the flag sector of the just-programmed bank;
// the hub reinterprets this constant on next boot to switch active banks.
var flagPayload = []byte{0xAA, 0xAA, 0xAA, 0xFF, 0xFF}

// version is a firmware version pair reported for a bank.
type version struct {
	major, minor byte
}

func (v version) String() string { return fmt.Sprintf("%d.%d", v.major, v.minor) }

// dualBankInfo is the parsed result of a DDC/CI dual-bank query.
type dualBankInfo struct {
	isEnabled    bool
	mode         BankMode
	activeBank   Bank
	user1Version version
	user2Version version
}

// parseDualBankInfo decodes the 11-byte DDC/CI response. Responses whose
// enabled byte, mode, or active bank fall outside the known range are
// treated as "dual-bank not supported" rather than rejected outright.
func parseDualBankInfo(resp dualBankResponse, valid bool) dualBankInfo {
	if !valid {
		return dualBankInfo{isEnabled: false}
	}
	info := dualBankInfo{
		isEnabled:    true,
		mode:         BankMode(resp[3]),
		activeBank:   Bank(resp[4]),
		user1Version: version{resp[5], resp[6]},
		user2Version: version{resp[7], resp[8]},
	}
	if resp[2] != 1 {
		info.isEnabled = false
	}
	if info.mode > ModeUserOnlyFlag {
		info.isEnabled = false
	}
	if info.activeBank > BankUser2 {
		info.isEnabled = false
	}
	return info
}

// targetBank returns the bank an update should be written to: the inactive
// USER bank. BOOT (and any other non-USER1 bank) targets USER1.
func targetBank(active Bank) Bank {
	if active == BankUser1 {
		return BankUser2
	}
	return BankUser1
}

// bankAddrs returns the base address of the bank's USER image and the
// address of its flag word.
func bankAddrs(b Bank) (base uint32, flagAddr uint32) {
	if b == BankUser1 {
		return addrUser1, addrFlag1
	}
	return addrUser2, addrFlag2
}

// bankManager owns dual-bank discovery and the update sequence; it is
// built on top of the mode controller and flash interface.
type bankManager struct {
	mode  *mode
	flash *flashIface
	onProgress func(status models.ProgressStatus, done, total int)
}

func newBankManager(m *mode, fl *flashIface, onProgress func(models.ProgressStatus, int, int)) *bankManager {
	return &bankManager{mode: m, flash: fl, onProgress: onProgress}
}

func (bm *bankManager) progress(status models.ProgressStatus, done, total int) {
	if bm.onProgress != nil {
		bm.onProgress(status, done, total)
	}
}

// reload queries dual-bank state from the running firmware and returns it.
func (bm *bankManager) reload() (dualBankInfo, error) {
	resp, valid, err := bm.mode.queryDualBank()
	if err != nil {
		return dualBankInfo{}, err
	}
	return parseDualBankInfo(resp, valid), nil
}

// writeFirmware erases the target bank, programs image, verifies it, then
// commits the bank-switch flag. image must be exactly userSize bytes.
func (bm *bankManager) writeFirmware(active Bank, image []byte) error {
	if len(image) != userSize {
		return models.ErrBadRequest(fmt.Sprintf("mst: firmware image is %d bytes, want %d", len(image), userSize))
	}

	target := targetBank(active)
	base, flagAddr := bankAddrs(target)

	bm.progress(models.StatusDeviceErase, 0, userSize)
	for i := 0; i < userSize/blockSize; i++ {
		if err := bm.flash.eraseBlock(base + uint32(i)*blockSize); err != nil {
			return err
		}
		bm.progress(models.StatusDeviceErase, (i+1)*blockSize, userSize)
	}

	bm.progress(models.StatusDeviceWrite, 0, userSize)
	if err := bm.flash.write(base, image, func(done int) {
		bm.progress(models.StatusDeviceWrite, done, userSize)
	}); err != nil {
		return err
	}

	bm.progress(models.StatusDeviceVerify, 0, userSize)
	readback := make([]byte, userSize)
	if err := bm.flash.read(base, readback, func(done int) {
		bm.progress(models.StatusDeviceVerify, done, userSize)
	}); err != nil {
		return err
	}
	if !bytes.Equal(readback, image) {
		return models.ErrWrite("flash contents after write do not match firmware image")
	}

	flagSectorAddr := flagAddr &^ (sectorSize - 1)
	bm.progress(models.StatusDeviceErase, 0, len(flagPayload))
	if err := bm.flash.eraseSector(flagSectorAddr); err != nil {
		return err
	}

	bm.progress(models.StatusDeviceWrite, 0, len(flagPayload))
	return bm.flash.write(flagAddr, flagPayload, nil)
}
