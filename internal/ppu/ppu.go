// Package ppu implements the DMG pixel processing unit: VRAM/OAM
// storage, the LCDC/STAT/scroll/palette registers, the four-phase
// scanline mode state machine, and the tile map + sprite rendering
// pipeline that produces a 256x256 RGB565 background framebuffer.
package ppu

import (
	"github.com/kschmitt/gbdmg/internal/irq"
	"github.com/kschmitt/gbdmg/internal/tile"
)

// Mode is the current scanline phase. Values follow the STAT register's
// mode-bit encoding, so byte(m) is what software reads in STAT bits 0-1.
type Mode byte

const (
	ModeHBlank Mode = iota
	ModeVBlank
	ModeOAM
	ModeVRAM
)

// Per-mode dot budgets. One scanline is 456 dots; one frame is
// 154 lines, i.e. 70,224 dots.
const (
	oamDots    = 80
	vramDots   = 172
	hblankDots = 204
	lineDots   = oamDots + vramDots + hblankDots // 456
	vblankLine = 144
	lastLine   = 153
)

// Framebuffer is the full 256x256 background plane the composer
// renders into, RGB565, owned by the PPU. Rendering writes in place;
// callers borrow it by pointer at frame boundaries.
type Framebuffer [256][256]tile.RGB565

// PPU owns VRAM/OAM and the scanline timing state machine.
type PPU struct {
	vram [0x2000]byte // 0x8000-0x9FFF
	oam  [0xA0]byte   // 0xFE00-0xFE9F

	lcdc byte // FF40
	stat byte // FF41: bits0-1 mode, bit2 coincidence, bits3-6 interrupt selects
	scy  byte // FF42
	scx  byte // FF43
	ly   byte // FF44
	lyc  byte // FF45
	bgp  byte // FF47
	obp0 byte // FF48
	obp1 byte // FF49
	wy   byte // FF4A
	wx   byte // FF4B

	mode  Mode
	clock int // dots elapsed in the current mode

	req irq.Requester

	fb Framebuffer
}

// New constructs a PPU that raises interrupts through req.
func New(req irq.Requester) *PPU {
	return &PPU{req: req, mode: ModeOAM}
}

// --- CPU-facing register/VRAM/OAM access ---

func (p *PPU) ReadVRAM(addr uint16) byte     { return p.vram[addr-0x8000] }
func (p *PPU) WriteVRAM(addr uint16, v byte) { p.vram[addr-0x8000] = v }

func (p *PPU) ReadOAM(addr uint16) byte     { return p.oam[addr-0xFE00] }
func (p *PPU) WriteOAM(addr uint16, v byte) { p.oam[addr-0xFE00] = v }

func (p *PPU) LCDC() byte { return p.lcdc }
func (p *PPU) SCY() byte  { return p.scy }
func (p *PPU) SCX() byte  { return p.scx }
func (p *PPU) LY() byte   { return p.ly }
func (p *PPU) LYC() byte  { return p.lyc }
func (p *PPU) BGP() byte  { return p.bgp }
func (p *PPU) OBP0() byte { return p.obp0 }
func (p *PPU) OBP1() byte { return p.obp1 }
func (p *PPU) WY() byte   { return p.wy }
func (p *PPU) WX() byte   { return p.wx }

// STAT reads with bit7 fixed high, matching real DMG hardware.
func (p *PPU) STAT() byte { return 0x80 | (p.stat & 0x7F) }

// SetLCDC writes LCDC, resetting the scanline state machine on an
// off-to-on or on-to-off transition: mode/clock/scanline freeze while
// the LCD is off and restart clean when it powers back on.
func (p *PPU) SetLCDC(v byte) {
	prev := p.lcdc
	p.lcdc = v
	on := v&0x80 != 0
	wasOn := prev&0x80 != 0
	if on == wasOn {
		return
	}
	p.ly = 0
	p.clock = 0
	p.setMode(ModeOAM)
	if on {
		p.updateCoincidence()
	}
}

func (p *PPU) SetSTAT(v byte) {
	// Mode bits (0-1) and coincidence flag (bit2) are hardware-owned;
	// only the interrupt-select bits 3-6 are CPU-writable.
	p.stat = (p.stat & 0x07) | (v & 0x78)
}

func (p *PPU) SetSCY(v byte) { p.scy = v }
func (p *PPU) SetSCX(v byte) { p.scx = v }

// SetLY ignores writes: LY (0xFF44) is read-only.
func (p *PPU) SetLY(byte) {}

func (p *PPU) SetLYC(v byte) {
	p.lyc = v
	p.updateCoincidence()
}

func (p *PPU) SetBGP(v byte)  { p.bgp = v }
func (p *PPU) SetOBP0(v byte) { p.obp0 = v }
func (p *PPU) SetOBP1(v byte) { p.obp1 = v }
func (p *PPU) SetWY(v byte)   { p.wy = v }
func (p *PPU) SetWX(v byte)   { p.wx = v }

// Mode reports the current scanline phase.
func (p *PPU) Mode() Mode { return p.mode }

// ModeClock reports the dots elapsed in the current mode.
func (p *PPU) ModeClock() int { return p.clock }

// RestoreTiming overwrites the scanline state machine's position. Used
// by the driver's snapshot restore; it bypasses the CPU-facing register
// semantics (LY is otherwise read-only) and recomputes the coincidence
// flag without firing the STAT interrupt, since the restored IF already
// reflects whatever had fired by the snapshot point.
func (p *PPU) RestoreTiming(m Mode, clock int, ly byte) {
	p.mode = m
	p.clock = clock
	p.ly = ly
	p.stat = p.stat&^0x03 | byte(m)&0x03
	if p.ly == p.lyc {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
}

// Enabled reports whether LCDC bit 7 (LCD power) is set.
func (p *PPU) Enabled() bool { return p.lcdc&0x80 != 0 }

// Tick advances the PPU by one dot. A no-op while the LCD is off.
func (p *PPU) Tick() {
	if !p.Enabled() {
		return
	}
	p.clock++

	switch p.mode {
	case ModeOAM:
		if p.clock >= oamDots {
			p.clock = 0
			p.setMode(ModeVRAM)
		}
	case ModeVRAM:
		if p.clock >= vramDots {
			p.clock = 0
			p.setMode(ModeHBlank)
		}
	case ModeHBlank:
		if p.clock >= hblankDots {
			p.clock = 0
			p.ly++
			if p.ly == vblankLine {
				if p.req != nil {
					p.req(irq.VBlank)
				}
				p.setMode(ModeVBlank)
			} else {
				p.setMode(ModeOAM)
			}
			p.updateCoincidence()
		}
	case ModeVBlank:
		if p.clock >= lineDots {
			p.clock = 0
			p.ly++
			if p.ly > lastLine {
				p.ly = 0
				p.setMode(ModeOAM)
			}
			p.updateCoincidence()
		}
	}
}

// setMode transitions to mode, firing the matching STAT interrupt
// select (bits 3/4/5 for HBlank/VBlank/OAM respectively) on change.
func (p *PPU) setMode(m Mode) {
	if p.mode == m {
		return
	}
	p.mode = m
	p.stat = (p.stat &^ 0x03) | byte(m)

	var selectBit byte
	switch m {
	case ModeHBlank:
		selectBit = 1 << 3
	case ModeVBlank:
		selectBit = 1 << 4
	case ModeOAM:
		selectBit = 1 << 5
	default:
		return
	}
	if p.stat&selectBit != 0 && p.req != nil {
		p.req(irq.LCDStat)
	}
}

// updateCoincidence recomputes the LY==LYC flag and fires the STAT
// interrupt select (bit 6) on a match.
func (p *PPU) updateCoincidence() {
	if p.ly == p.lyc {
		p.stat |= 1 << 2
		if p.stat&(1<<6) != 0 && p.req != nil {
			p.req(irq.LCDStat)
		}
	} else {
		p.stat &^= 1 << 2
	}
}
