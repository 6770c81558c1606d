// Package emu implements the driver loop that ties the CPU, Bus, and
// PPU together into a steppable machine and exposes the
// framebuffer/scroll/input surface a presenter needs.
package emu

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/kschmitt/gbdmg/internal/bus"
	"github.com/kschmitt/gbdmg/internal/cpu"
	"github.com/kschmitt/gbdmg/internal/joypad"
	"github.com/kschmitt/gbdmg/internal/ppu"
)

// CyclesPerFrame is the number of bus cycles in one frame at 60 Hz
// pacing: 4,194,304 Hz / 60 = 69,905.
const CyclesPerFrame = 4_194_304 / 60

// Driver owns the Bus and CPU and drives them forward in either
// single-instruction or whole-frame increments.
type Driver struct {
	bus *bus.Bus
	cpu *cpu.CPU
}

// New constructs a Driver around a cartridge ROM and an optional boot
// ROM (pass nil to skip the overlay and start execution at 0x0100).
func New(rom []byte, bootROM []byte) *Driver {
	b := bus.New(rom)
	c := cpu.New(b)
	if bootROM != nil {
		b.SetBootROM(bootROM)
		c.SetPC(0x0000)
	} else {
		c.ResetNoBoot()
		c.SetPC(0x0100)
	}
	return &Driver{bus: b, cpu: c}
}

// Step advances the CPU by one instruction and ticks the bus (timer,
// PPU, OAM DMA) by the number of cycles the instruction consumed.
func (d *Driver) Step() {
	cycles := d.cpu.Step()
	d.bus.TickN(cycles)
}

// RunFrame steps until the bus clock has advanced by at least
// CyclesPerFrame since the call began.
func (d *Driver) RunFrame() {
	start := d.bus.Clock()
	for d.bus.Clock() < start+CyclesPerFrame {
		d.Step()
	}
}

// Framebuffer renders the current background and sprite layers and
// returns a pointer to the PPU's owned 256x256 RGB565 buffer. The next
// Framebuffer call re-renders into the same buffer in place.
func (d *Driver) Framebuffer() *ppu.Framebuffer {
	return d.bus.PPU().Render()
}

// Scroll returns the current (SCX, SCY) background scroll registers.
func (d *Driver) Scroll() (scx, scy byte) {
	return d.bus.PPU().SCX(), d.bus.PPU().SCY()
}

// InjectInput forwards a key event to the joypad gate.
func (d *Driver) InjectInput(k joypad.Key, pressed bool) {
	d.bus.InjectInput(k, pressed)
}

// CPU exposes the CPU for tooling (e.g. trace dumps) that needs direct
// register access.
func (d *Driver) CPU() *cpu.CPU { return d.cpu }

// Bus exposes the Bus for tooling that needs direct memory access.
func (d *Driver) Bus() *bus.Bus { return d.bus }

// snapshot is the gob-encodable image of everything a debugger needs
// to inspect or rewind: CPU registers, bus-owned I/O state, and the
// PPU/timer internals (scanline position, mode dot counter, timer
// cycle counter) that aren't reachable through the CPU-facing
// register surface.
type snapshot struct {
	A, F byte
	B, C byte
	D, E byte
	H, L byte
	SP   uint16
	PC   uint16
	IME  bool

	IE byte
	IF byte

	WRAM [0x2000]byte
	HRAM [0x7F]byte
	VRAM [0x2000]byte
	OAM  [0xA0]byte

	LCDC, STAT, SCY, SCX, LY, LYC byte
	BGP, OBP0, OBP1, WY, WX       byte
	PPUMode                       byte
	PPUClock                      int

	DIV, TIMA, TMA, TAC byte
	TimerClock          int
}

// Snapshot encodes the state listed in snapshot with encoding/gob for
// an external debugger or rewind tool; it does not represent a
// save-game file format. It does not include external cartridge RAM,
// the serial registers, the joypad selection, OAM DMA progress, the
// CPU's HALT and EI-pending state, the boot ROM overlay flag, or the
// bus cycle counter.
func (d *Driver) Snapshot() ([]byte, error) {
	b := d.bus
	p := b.PPU()
	s := snapshot{
		A: d.cpu.A, F: d.cpu.F,
		B: d.cpu.B, C: d.cpu.C,
		D: d.cpu.D, E: d.cpu.E,
		H: d.cpu.H, L: d.cpu.L,
		SP:  d.cpu.SP,
		PC:  d.cpu.PC,
		IME: d.cpu.IME,
		IE:  b.IE(),
		IF:  b.IF(),

		LCDC: p.LCDC(), STAT: p.STAT(), SCY: p.SCY(), SCX: p.SCX(),
		LY: p.LY(), LYC: p.LYC(),
		BGP: p.BGP(), OBP0: p.OBP0(), OBP1: p.OBP1(), WY: p.WY(), WX: p.WX(),
		PPUMode:  byte(p.Mode()),
		PPUClock: p.ModeClock(),

		DIV:        b.Timer().DIV(),
		TIMA:       b.Timer().TIMA(),
		TMA:        b.Timer().TMA(),
		TAC:        b.Timer().TAC(),
		TimerClock: b.Timer().Clock(),
	}
	for i := range s.VRAM {
		s.VRAM[i] = p.ReadVRAM(0x8000 + uint16(i))
	}
	for i := range s.OAM {
		s.OAM[i] = p.ReadOAM(0xFE00 + uint16(i))
	}
	for i := range s.WRAM {
		s.WRAM[i] = b.Read(0xC000 + uint16(i))
	}
	for i := range s.HRAM {
		s.HRAM[i] = b.Read(0xFF80 + uint16(i))
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&s); err != nil {
		return nil, fmt.Errorf("emu: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore decodes a snapshot produced by Snapshot and overwrites the
// machine's visible state in place.
func (d *Driver) Restore(data []byte) error {
	var s snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("emu: decode snapshot: %w", err)
	}

	c := d.cpu
	c.A, c.F = s.A, s.F
	c.B, c.C = s.B, s.C
	c.D, c.E = s.D, s.E
	c.H, c.L = s.H, s.L
	c.SP = s.SP
	c.SetPC(s.PC)
	c.IME = s.IME

	b := d.bus
	b.Write(0xFFFF, s.IE)
	p := b.PPU()
	p.SetLCDC(s.LCDC)
	p.SetSTAT(s.STAT)
	p.SetSCY(s.SCY)
	p.SetSCX(s.SCX)
	p.SetLYC(s.LYC)
	p.SetBGP(s.BGP)
	p.SetOBP0(s.OBP0)
	p.SetOBP1(s.OBP1)
	p.SetWY(s.WY)
	p.SetWX(s.WX)
	p.RestoreTiming(ppu.Mode(s.PPUMode), s.PPUClock, s.LY)
	for i, v := range s.VRAM {
		p.WriteVRAM(0x8000+uint16(i), v)
	}
	for i, v := range s.OAM {
		p.WriteOAM(0xFE00+uint16(i), v)
	}
	for i, v := range s.WRAM {
		b.Write(0xC000+uint16(i), v)
	}
	for i, v := range s.HRAM {
		b.Write(0xFF80+uint16(i), v)
	}
	b.Timer().Restore(s.DIV, s.TIMA, s.TMA, s.TAC, s.TimerClock)
	// IF goes last so register-restore side effects (LYC writes can
	// re-fire a STAT request) cannot leak bits past the snapshot.
	b.SetIF(s.IF)
	return nil
}
