// Package bus wires the CPU-visible 16-bit address space to the
// cartridge, VRAM/OAM (via the PPU), WRAM, HRAM, the timer, the
// joypad gate, and the IE/IF interrupt registers. It owns the
// boot ROM overlay and the single IF register shared by every
// interrupt source.
package bus

import (
	"github.com/kschmitt/gbdmg/internal/cart"
	"github.com/kschmitt/gbdmg/internal/irq"
	"github.com/kschmitt/gbdmg/internal/joypad"
	"github.com/kschmitt/gbdmg/internal/ppu"
	"github.com/kschmitt/gbdmg/internal/timer"
)

// Bus is the single owner of the emulator's shared mutable state: the
// cartridge, PPU, timer, and joypad gate are composed inside it, and
// the CPU receives a pointer to it per step rather than owning it.
type Bus struct {
	cart *cart.Cartridge
	ppu  *ppu.PPU
	tmr  *timer.Timer
	pad  *joypad.Gate

	wram [0x2000]byte // 0xC000-0xDFFF (0xE000-0xFDFF echoes it)
	hram [0x7F]byte   // 0xFF80-0xFFFE

	ie    byte // 0xFFFF
	ifReg byte // 0xFF0F, lower 5 bits used

	sb byte // 0xFF01 serial data, inert storage (no serial transfer is emulated)
	sc byte // 0xFF02 serial control, inert storage

	bootROM     []byte
	bootEnabled bool

	clock int // bus-global cycle counter

	dmaActive bool
	dmaSrc    uint16
	dmaIndex  int
}

// New constructs a Bus around a raw cartridge ROM byte vector. The
// boot ROM overlay starts disabled; call SetBootROM to enable it.
func New(rom []byte) *Bus {
	b := &Bus{cart: cart.New(rom)}
	b.ppu = ppu.New(b.requestIRQ)
	b.tmr = timer.New(b.requestIRQ)
	b.pad = joypad.New(b.requestIRQ)
	return b
}

func (b *Bus) requestIRQ(bit byte) { b.ifReg |= bit }

// PPU exposes the PPU for the driver's render/frame-boundary access.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// Joypad exposes the joypad gate for the driver's input injection.
func (b *Bus) Joypad() *joypad.Gate { return b.pad }

// Timer exposes the timer for the driver's snapshot/restore access.
func (b *Bus) Timer() *timer.Timer { return b.tmr }

// Clock returns the bus-global cycle counter.
func (b *Bus) Clock() int { return b.clock }

// IE/IF accessors, shared with the CPU's interrupt dispatch.
func (b *Bus) IE() byte { return b.ie }
func (b *Bus) IF() byte { return b.ifReg }

// SetIF overwrites IF directly; used by the CPU's interrupt dispatch
// to acknowledge a serviced bit (IF &= ~bit), which bypasses the
// OR-only semantics of a CPU *write* to 0xFF0F.
func (b *Bus) SetIF(v byte) { b.ifReg = v & 0x1F }

// SetBootROM installs a 256-byte boot ROM overlay at 0x0000-0x00FF,
// active until the CPU writes a nonzero value to 0xFF50.
func (b *Bus) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		return
	}
	b.bootROM = make([]byte, 0x100)
	copy(b.bootROM, data[:0x100])
	b.bootEnabled = true
}

// Read dispatches a CPU-facing memory read across the address space.
func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x0100 && b.bootEnabled:
		return b.bootROM[addr]
	case addr < 0x8000:
		return b.cart.ReadROM(addr)
	case addr <= 0x9FFF:
		return b.ppu.ReadVRAM(addr)
	case addr <= 0xBFFF:
		return b.cart.ReadExtRAM(addr - 0xA000)
	case addr <= 0xDFFF:
		return b.wram[addr-0xC000]
	case addr <= 0xFDFF: // echo RAM mirrors 0xC000-0xDDFF
		return b.wram[addr-0x2000-0xC000]
	case addr <= 0xFE9F:
		if b.dmaActive {
			return 0xFF
		}
		return b.ppu.ReadOAM(addr)
	case addr <= 0xFEFF:
		return 0xFF // unmapped, matches real DMG behavior
	case addr == 0xFF00:
		return b.pad.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return b.sc
	case addr == 0xFF04:
		return b.tmr.DIV()
	case addr == 0xFF05:
		return b.tmr.TIMA()
	case addr == 0xFF06:
		return b.tmr.TMA()
	case addr == 0xFF07:
		return 0xF8 | b.tmr.TAC()
	case addr == 0xFF0F:
		return 0xE0 | (b.ifReg & 0x1F)
	case addr == 0xFF40:
		return b.ppu.LCDC()
	case addr == 0xFF41:
		return b.ppu.STAT()
	case addr == 0xFF42:
		return b.ppu.SCY()
	case addr == 0xFF43:
		return b.ppu.SCX()
	case addr == 0xFF44:
		return b.ppu.LY()
	case addr == 0xFF45:
		return b.ppu.LYC()
	case addr == 0xFF46:
		return byte(b.dmaSrc >> 8)
	case addr == 0xFF47:
		return b.ppu.BGP()
	case addr == 0xFF48:
		return b.ppu.OBP0()
	case addr == 0xFF49:
		return b.ppu.OBP1()
	case addr == 0xFF4A:
		return b.ppu.WY()
	case addr == 0xFF4B:
		return b.ppu.WX()
	case addr == 0xFF50:
		return 0xFF
	case addr <= 0xFF7F:
		return 0xFF // remaining I/O registers (APU etc.) not implemented
	case addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	}
	return 0xFF
}

// Write dispatches a CPU-facing memory write. A write into the boot
// ROM region while the overlay is active indicates a CPU bug:
// it is a CPU implementation bug, so it aborts the session.
func (b *Bus) Write(addr uint16, v byte) {
	switch {
	case addr < 0x0100 && b.bootEnabled:
		panic("bus: illegal write into boot ROM overlay")
	case addr < 0x8000:
		b.cart.WriteROM(addr, v)
	case addr <= 0x9FFF:
		b.ppu.WriteVRAM(addr, v)
	case addr <= 0xBFFF:
		b.cart.WriteExtRAM(addr-0xA000, v)
	case addr <= 0xDFFF:
		b.wram[addr-0xC000] = v
	case addr <= 0xFDFF:
		b.wram[addr-0x2000-0xC000] = v
	case addr <= 0xFE9F:
		if !b.dmaActive {
			b.ppu.WriteOAM(addr, v)
		}
	case addr <= 0xFEFF:
		// unmapped, ignored
	case addr == 0xFF00:
		b.pad.SetSelect(v)
	case addr == 0xFF01:
		b.sb = v
	case addr == 0xFF02:
		b.sc = v
	case addr == 0xFF04:
		b.tmr.SetDIV(v)
	case addr == 0xFF05:
		b.tmr.SetTIMA(v)
	case addr == 0xFF06:
		b.tmr.SetTMA(v)
	case addr == 0xFF07:
		b.tmr.SetTAC(v)
	case addr == 0xFF0F:
		// Writes OR into IF; a written 1 sets the bit, a written 0
		// never clears it. The CPU's dispatch acknowledgement
		// uses SetIF directly to clear a serviced bit.
		b.ifReg = (b.ifReg | v) & 0x1F
	case addr == 0xFF40:
		b.ppu.SetLCDC(v)
	case addr == 0xFF41:
		b.ppu.SetSTAT(v)
	case addr == 0xFF42:
		b.ppu.SetSCY(v)
	case addr == 0xFF43:
		b.ppu.SetSCX(v)
	case addr == 0xFF44:
		b.ppu.SetLY(v) // ignored: LY is read-only
	case addr == 0xFF45:
		b.ppu.SetLYC(v)
	case addr == 0xFF46:
		b.startOAMDMA(v)
	case addr == 0xFF47:
		b.ppu.SetBGP(v)
	case addr == 0xFF48:
		b.ppu.SetOBP0(v)
	case addr == 0xFF49:
		b.ppu.SetOBP1(v)
	case addr == 0xFF4A:
		b.ppu.SetWY(v)
	case addr == 0xFF4B:
		b.ppu.SetWX(v)
	case addr == 0xFF50:
		// Any nonzero write disables the overlay permanently; it
		// cannot be re-enabled by a later write.
		if v != 0 {
			b.bootEnabled = false
		}
	case addr <= 0xFF7F:
		// remaining I/O registers (APU etc.) not implemented, ignored
	case addr <= 0xFFFE:
		b.hram[addr-0xFF80] = v
	case addr == 0xFFFF:
		b.ie = v
	}
}

func (b *Bus) startOAMDMA(srcHigh byte) {
	b.dmaActive = true
	b.dmaSrc = uint16(srcHigh) << 8
	b.dmaIndex = 0
}

// Tick advances the bus by one cycle: the timer, the PPU (one dot),
// and, if active, one byte of OAM DMA.
func (b *Bus) Tick() {
	b.clock++
	b.tmr.Tick()
	b.ppu.Tick()

	if b.dmaActive {
		v := b.Read(b.dmaSrc + uint16(b.dmaIndex))
		b.ppu.WriteOAM(0xFE00+uint16(b.dmaIndex), v)
		b.dmaIndex++
		if b.dmaIndex >= 0xA0 {
			b.dmaActive = false
		}
	}
}

// TickN advances the bus by n cycles.
func (b *Bus) TickN(n int) {
	for i := 0; i < n; i++ {
		b.Tick()
	}
}

// InjectInput forwards a key event to the joypad gate.
func (b *Bus) InjectInput(k joypad.Key, pressed bool) { b.pad.SetPressed(k, pressed) }

// Interrupt bit constants re-exported for convenience at the CPU
// boundary; callers can also import internal/irq directly.
const (
	IRQVBlank  = irq.VBlank
	IRQLCDStat = irq.LCDStat
	IRQTimer   = irq.Timer
	IRQSerial  = irq.Serial
	IRQJoypad  = irq.Joypad
)
