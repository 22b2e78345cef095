package mst

import (
	"fmt"
	"time"

	"github.com/dpmst/rtd2142fw/internal/models"
)

// Flash register map.
const (
	regCmdAttr     = 0x60
	regEraseOpcode = 0x61
	regAddrHi      = 0x64
	regAddrMid     = 0x65
	regAddrLo      = 0x66
	regReadOpcode  = 0x6A
	regWriteOpcode = 0x6D
	regFIFO        = 0x70
	regWriteLen    = 0x71

	cmdAttrEraseStart = 0xB8
	cmdAttrEraseBusy  = 0x01

	eraseOpcodeSector = 0x20
	eraseOpcodeBlock  = 0xD8
	readOpcode        = 0x03
	writeOpcode       = 0x02

	flashSize      = 0x100000
	sectorSize     = 0x1000
	blockSize      = 0x10000
	maxChunk       = 256
	eraseTimeout   = 10 * time.Second
	programTimeout = 10 * time.Second
)

// flashIface drives the SPI flash command sequences over the register
// layer while the MCU is in ISP mode.
type flashIface struct {
	r *regs
}

func newFlashIface(r *regs) *flashIface { return &flashIface{r: r} }

func (f *flashIface) setAddress(addr uint32) error {
	if err := f.r.writeDirect(regAddrHi, byte(addr>>16)); err != nil {
		return err
	}
	if err := f.r.writeDirect(regAddrMid, byte(addr>>8)); err != nil {
		return err
	}
	return f.r.writeDirect(regAddrLo, byte(addr))
}

// read reads len(buf) bytes starting at address into buf, reporting
// progress via onChunk after each transaction.
func (f *flashIface) read(address uint32, buf []byte, onChunk func(done int)) error {
	if address >= flashSize {
		return models.ErrBadRequest(fmt.Sprintf("mst: flash read address 0x%x out of range", address))
	}
	if len(buf) > flashSize {
		return models.ErrBadRequest("mst: flash read size exceeds flash capacity")
	}

	// The first byte returned after setting the address is unpredictable,
	// so the read starts one byte early and discards it.
	effective := (address - 1) & 0xFFFFFF
	if err := f.setAddress(effective); err != nil {
		return err
	}
	if err := f.r.writeDirect(regReadOpcode, readOpcode); err != nil {
		return err
	}
	if err := f.r.t.Write([]byte{regFIFO}); err != nil {
		return err
	}
	if _, err := f.r.t.Read(1); err != nil {
		return err
	}

	done := 0
	for done < len(buf) {
		n := len(buf) - done
		if n > maxChunk {
			n = maxChunk
		}
		chunk, err := f.r.t.Read(n)
		if err != nil {
			return err
		}
		copy(buf[done:], chunk)
		done += n
		if onChunk != nil {
			onChunk(done)
		}
	}
	return nil
}

// eraseSector erases the 4 KiB sector containing address.
func (f *flashIface) eraseSector(address uint32) error {
	if address&(sectorSize-1) != 0 {
		return models.ErrBadRequest(fmt.Sprintf("mst: sector erase address 0x%x not 4KiB aligned", address))
	}
	return f.erase(address, eraseOpcodeSector, false)
}

// eraseBlock erases the 64 KiB block containing address. ADDR_MID/LO are
// forced to zero; the hub derives the block boundary from ADDR_HI alone.
func (f *flashIface) eraseBlock(address uint32) error {
	if address&(blockSize-1) != 0 {
		return models.ErrBadRequest(fmt.Sprintf("mst: block erase address 0x%x not 64KiB aligned", address))
	}
	return f.erase(address, eraseOpcodeBlock, true)
}

func (f *flashIface) erase(address uint32, opcode byte, zeroLowAddr bool) error {
	if zeroLowAddr {
		address &^= 0xFFFF
	}
	if err := f.setAddress(address); err != nil {
		return err
	}
	if err := f.r.writeDirect(regCmdAttr, cmdAttrEraseStart); err != nil {
		return err
	}
	if err := f.r.writeDirect(regEraseOpcode, opcode); err != nil {
		return err
	}
	if err := f.r.writeDirect(regCmdAttr, cmdAttrEraseStart|cmdAttrEraseBusy); err != nil {
		return err
	}
	return f.r.pollUntil(regCmdAttr, cmdAttrEraseBusy, 0, eraseTimeout)
}

// write programs len(data) bytes starting at address, up to 256 bytes per
// SPI page program, reporting progress via onChunk after each page.
func (f *flashIface) write(address uint32, data []byte, onChunk func(done int)) error {
	done := 0
	for done < len(data) {
		n := len(data) - done
		if n > maxChunk {
			n = maxChunk
		}
		chunk := data[done : done+n]
		if err := f.programPage(address, chunk); err != nil {
			return err
		}
		address += uint32(n)
		done += n
		if onChunk != nil {
			onChunk(done)
		}
	}
	return nil
}

func (f *flashIface) programPage(address uint32, chunk []byte) error {
	if err := f.r.writeDirect(regWriteOpcode, writeOpcode); err != nil {
		return err
	}
	if err := f.r.writeDirect(regWriteLen, byte(len(chunk)-1)); err != nil {
		return err
	}
	if err := f.setAddress(address); err != nil {
		return err
	}
	if err := f.r.pollUntil(regMCUMode, mcuModeWriteBuf, 0, programTimeout); err != nil {
		return fmt.Errorf("mst: flash write at 0x%x: %w", address, err)
	}
	if err := f.r.writeMulti(regFIFO, chunk); err != nil {
		return err
	}
	if err := f.r.writeDirect(regMCUMode, mcuModeISP|mcuModeWriteBusy); err != nil {
		return err
	}
	if err := f.r.pollUntil(regMCUMode, mcuModeWriteBusy, 0, programTimeout); err != nil {
		return fmt.Errorf("mst: flash write at 0x%x: %w", address, err)
	}
	return nil
}
