// Package cart models the cartridge-facing half of the address space:
// a flat ROM byte vector at 0x0000-0x7FFF and a flat external RAM
// array at 0xA000-0xBFFF. No MBC bank switching or header parsing is
// performed in this core.
package cart

const extRAMLen = 0x2000

// Cartridge is a ROM-only cartridge: no bank switching, no header
// decoding beyond accepting a raw byte vector at construction.
type Cartridge struct {
	rom    []byte
	extRAM [extRAMLen]byte
}

// New constructs a Cartridge directly from a raw ROM byte vector.
func New(rom []byte) *Cartridge {
	return &Cartridge{rom: rom}
}

// ReadROM serves the ROM at 0x0000-0x7FFF (addr is 0-based into the
// ROM); addresses past the end of the supplied ROM read as 0xFF.
// External RAM is served by ReadExtRAM, with addr offset from 0xA000
// by the bus.
func (c *Cartridge) ReadROM(addr uint16) byte {
	if int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	return 0xFF
}

// WriteROM is a no-op: a ROM-only cartridge has no bank-control
// registers to write.
func (c *Cartridge) WriteROM(uint16, byte) {}

func (c *Cartridge) ReadExtRAM(addr uint16) byte { return c.extRAM[addr] }
func (c *Cartridge) WriteExtRAM(addr uint16, v byte) { c.extRAM[addr] = v }
