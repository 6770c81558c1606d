// Package cpu implements the SM83 instruction set against a Bus: fetch,
// decode, execute, and interrupt dispatch. It does not own timing by
// itself. Step reports the cycle cost of the instruction it executed
// and the caller (the driver) advances the bus by that many cycles.
package cpu

import (
	"fmt"
	"math/bits"

	"github.com/kschmitt/gbdmg/internal/bus"
)

// CPU implements the SM83 core: all documented unprefixed and
// CB-prefixed opcodes, HALT, and IME-gated interrupt servicing.
type CPU struct {
	// 8-bit registers
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME    bool
	halted bool
	// EI enables IME after the following instruction
	eiPending bool

	bus *bus.Bus
}

// New creates a CPU starting at 0x0000, where the boot ROM overlay
// begins execution.
func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, SP: 0xFFFE, PC: 0x0000}
}

// SetPC allows tests or a boot stub to set the program counter.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// ResetNoBoot sets registers to typical DMG post-boot state.
// Useful when running without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.IME = false
	c.halted = false
	c.eiPending = false
}

const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setFlags(z, n, h, cy bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if cy {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) carrySet() bool { return c.F&flagC != 0 }

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | hi<<8
}

func (c *CPU) read16(addr uint16) uint16 {
	return uint16(c.read8(addr)) | uint16(c.read8(addr+1))<<8
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// r8 reads the register selected by a 3-bit operand field
// (0=B 1=C 2=D 3=E 4=H 5=L 6=(HL) 7=A).
func (c *CPU) r8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	default:
		return c.A
	}
}

func (c *CPU) setR8(idx, v byte) {
	switch idx & 7 {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

// rp16 reads the register pair selected by a 2-bit operand field
// (0=BC 1=DE 2=HL 3=SP).
func (c *CPU) rp16(idx byte) uint16 {
	switch idx & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHL()
	default:
		return c.SP
	}
}

func (c *CPU) setRP16(idx byte, v uint16) {
	switch idx & 3 {
	case 0:
		c.setBC(v)
	case 1:
		c.setDE(v)
	case 2:
		c.setHL(v)
	default:
		c.SP = v
	}
}

// indAddr resolves the (BC)/(DE)/(HL+)/(HL-) indirect operand for the
// 0x02/0x12/0x22/0x32 column, applying the HL post-increment/decrement.
func (c *CPU) indAddr(idx byte) uint16 {
	switch idx & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		hl := c.getHL()
		c.setHL(hl + 1)
		return hl
	default:
		hl := c.getHL()
		c.setHL(hl - 1)
		return hl
	}
}

// cond evaluates the NZ/Z/NC/C condition field of conditional jumps,
// calls, and returns.
func (c *CPU) cond(idx byte) bool {
	switch idx & 3 {
	case 0:
		return c.F&flagZ == 0
	case 1:
		return c.F&flagZ != 0
	case 2:
		return c.F&flagC == 0
	default:
		return c.F&flagC != 0
	}
}

// alu applies the 0x80-0xBF operation group
// (0=ADD 1=ADC 2=SUB 3=SBC 4=AND 5=XOR 6=OR 7=CP) to A.
func (c *CPU) alu(opIdx, v byte) {
	switch opIdx & 7 {
	case 0: // ADD
		r := uint16(c.A) + uint16(v)
		c.setFlags(byte(r) == 0, false, c.A&0x0F+v&0x0F > 0x0F, r > 0xFF)
		c.A = byte(r)
	case 1: // ADC
		ci := uint16(0)
		if c.carrySet() {
			ci = 1
		}
		r := uint16(c.A) + uint16(v) + ci
		c.setFlags(byte(r) == 0, false, uint16(c.A&0x0F)+uint16(v&0x0F)+ci > 0x0F, r > 0xFF)
		c.A = byte(r)
	case 2: // SUB
		r := c.A - v
		c.setFlags(r == 0, true, c.A&0x0F < v&0x0F, c.A < v)
		c.A = r
	case 3: // SBC
		ci := int16(0)
		if c.carrySet() {
			ci = 1
		}
		r := int16(c.A) - int16(v) - ci
		c.setFlags(byte(r) == 0, true, int16(c.A&0x0F)-int16(v&0x0F)-ci < 0, r < 0)
		c.A = byte(r)
	case 4: // AND
		c.A &= v
		c.setFlags(c.A == 0, false, true, false)
	case 5: // XOR
		c.A ^= v
		c.setFlags(c.A == 0, false, false, false)
	case 6: // OR
		c.A |= v
		c.setFlags(c.A == 0, false, false, false)
	case 7: // CP
		c.setFlags(c.A == v, true, c.A&0x0F < v&0x0F, c.A < v)
	}
}

// rotShift applies the CB 0x00-0x3F operation group
// (0=RLC 1=RRC 2=RL 3=RR 4=SLA 5=SRA 6=SWAP 7=SRL) to v.
func (c *CPU) rotShift(y, v byte) byte {
	carryIn := byte(0)
	if c.carrySet() {
		carryIn = 1
	}
	var out, cf byte
	switch y & 7 {
	case 0: // RLC
		cf = v >> 7
		out = v<<1 | cf
	case 1: // RRC
		cf = v & 1
		out = v>>1 | cf<<7
	case 2: // RL
		cf = v >> 7
		out = v<<1 | carryIn
	case 3: // RR
		cf = v & 1
		out = v>>1 | carryIn<<7
	case 4: // SLA
		cf = v >> 7
		out = v << 1
	case 5: // SRA
		cf = v & 1
		out = v>>1 | v&0x80
	case 6: // SWAP
		out = v<<4 | v>>4
	case 7: // SRL
		cf = v & 1
		out = v >> 1
	}
	c.setFlags(out == 0, false, false, cf == 1)
	return out
}

// serviceInterrupt dispatches the highest-priority pending, enabled
// interrupt: acknowledge the IF bit, disable IME, push PC, and jump to
// the fixed vector. Returns 0 when nothing is pending.
func (c *CPU) serviceInterrupt() int {
	pending := c.bus.IE() & c.bus.IF() & 0x1F
	if pending == 0 {
		return 0
	}
	bit := uint(bits.TrailingZeros8(pending))
	c.bus.SetIF(c.bus.IF() &^ (1 << bit))
	c.IME = false
	c.halted = false
	c.push16(c.PC)
	c.PC = 0x0040 + uint16(bit)*8
	return 20
}

// Step executes one instruction (servicing a pending interrupt first,
// if IME permits) and returns its cycle cost. The caller is
// responsible for advancing the bus by that many cycles; Step itself
// never ticks anything.
func (c *CPU) Step() (cycles int) {
	// EI takes effect after the instruction that follows it, so an
	// eiPending raised before this step commits at its end; one raised
	// BY this step waits for the next. DI in between cancels it.
	eiQueued := c.eiPending
	defer func() {
		if eiQueued && c.eiPending {
			c.IME = true
			c.eiPending = false
		}
	}()

	if c.halted {
		if c.bus.IE()&c.bus.IF()&0x1F == 0 {
			return 4
		}
		c.halted = false
	}
	if c.IME {
		if cyc := c.serviceInterrupt(); cyc != 0 {
			return cyc
		}
	}

	op := c.fetch8()

	switch {
	case op == 0x76: // HALT
		c.halted = true
		return 4
	case op >= 0x40 && op <= 0x7F: // LD r,r'
		dst, src := (op>>3)&7, op&7
		c.setR8(dst, c.r8(src))
		if dst == 6 || src == 6 {
			return 8
		}
		return 4
	case op >= 0x80 && op <= 0xBF: // ADD/ADC/SUB/SBC/AND/XOR/OR/CP A,r
		c.alu((op>>3)&7, c.r8(op&7))
		if op&7 == 6 {
			return 8
		}
		return 4
	}

	switch op {
	case 0x00: // NOP
		return 4
	case 0x10: // STOP: low-power mode is not modeled; the padding byte is consumed
		c.fetch8()
		return 4

	case 0x06, 0x0E, 0x16, 0x1E, 0x26, 0x2E, 0x36, 0x3E: // LD r,d8
		idx := (op >> 3) & 7
		c.setR8(idx, c.fetch8())
		if idx == 6 {
			return 12
		}
		return 8

	case 0x01, 0x11, 0x21, 0x31: // LD rr,d16
		c.setRP16(op>>4, c.fetch16())
		return 12
	case 0x08: // LD (a16),SP
		c.write16(c.fetch16(), c.SP)
		return 20

	case 0x02, 0x12, 0x22, 0x32: // LD (BC/DE/HL+/HL-),A
		c.write8(c.indAddr(op>>4), c.A)
		return 8
	case 0x0A, 0x1A, 0x2A, 0x3A: // LD A,(BC/DE/HL+/HL-)
		c.A = c.read8(c.indAddr(op >> 4))
		return 8

	case 0xE0: // LDH (a8),A
		c.write8(0xFF00+uint16(c.fetch8()), c.A)
		return 12
	case 0xF0: // LDH A,(a8)
		c.A = c.read8(0xFF00 + uint16(c.fetch8()))
		return 12
	case 0xE2: // LD (C),A
		c.write8(0xFF00+uint16(c.C), c.A)
		return 8
	case 0xF2: // LD A,(C)
		c.A = c.read8(0xFF00 + uint16(c.C))
		return 8
	case 0xEA: // LD (a16),A
		c.write8(c.fetch16(), c.A)
		return 16
	case 0xFA: // LD A,(a16)
		c.A = c.read8(c.fetch16())
		return 16

	case 0x04, 0x0C, 0x14, 0x1C, 0x24, 0x2C, 0x34, 0x3C: // INC r
		idx := (op >> 3) & 7
		v := c.r8(idx) + 1
		c.setR8(idx, v)
		c.setFlags(v == 0, false, v&0x0F == 0, c.carrySet())
		if idx == 6 {
			return 12
		}
		return 4
	case 0x05, 0x0D, 0x15, 0x1D, 0x25, 0x2D, 0x35, 0x3D: // DEC r
		idx := (op >> 3) & 7
		v := c.r8(idx) - 1
		c.setR8(idx, v)
		c.setFlags(v == 0, true, v&0x0F == 0x0F, c.carrySet())
		if idx == 6 {
			return 12
		}
		return 4

	case 0x03, 0x13, 0x23, 0x33: // INC rr
		c.setRP16(op>>4, c.rp16(op>>4)+1)
		return 8
	case 0x0B, 0x1B, 0x2B, 0x3B: // DEC rr
		c.setRP16(op>>4, c.rp16(op>>4)-1)
		return 8
	case 0x09, 0x19, 0x29, 0x39: // ADD HL,rr
		hl, rr := c.getHL(), c.rp16(op>>4)
		r := uint32(hl) + uint32(rr)
		c.F &= flagZ
		if hl&0x0FFF+rr&0x0FFF > 0x0FFF {
			c.F |= flagH
		}
		if r > 0xFFFF {
			c.F |= flagC
		}
		c.setHL(uint16(r))
		return 8

	case 0xC6, 0xCE, 0xD6, 0xDE, 0xE6, 0xEE, 0xF6, 0xFE: // ALU A,d8
		c.alu((op>>3)&7, c.fetch8())
		return 8

	case 0x07, 0x0F, 0x17, 0x1F: // RLCA/RRCA/RLA/RRA: like CB rotates but Z always clear
		c.A = c.rotShift((op>>3)&3, c.A)
		c.F &^= flagZ
		return 4

	case 0x27: // DAA
		a := c.A
		carry := c.carrySet()
		if c.F&flagN == 0 {
			if carry || a > 0x99 {
				a += 0x60
				carry = true
			}
			if c.F&flagH != 0 || a&0x0F > 0x09 {
				a += 0x06
			}
		} else {
			if carry {
				a -= 0x60
			}
			if c.F&flagH != 0 {
				a -= 0x06
			}
		}
		c.A = a
		c.F &= flagN
		if c.A == 0 {
			c.F |= flagZ
		}
		if carry {
			c.F |= flagC
		}
		return 4
	case 0x2F: // CPL
		c.A = ^c.A
		c.F = c.F&(flagZ|flagC) | flagN | flagH
		return 4
	case 0x37: // SCF
		c.F = c.F&flagZ | flagC
		return 4
	case 0x3F: // CCF
		c.F = c.F&flagZ | (c.F&flagC ^ flagC)
		return 4

	case 0x18: // JR r8
		off := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(off))
		return 12
	case 0x20, 0x28, 0x30, 0x38: // JR cc,r8
		off := int8(c.fetch8())
		if c.cond((op >> 3) & 3) {
			c.PC = uint16(int32(c.PC) + int32(off))
			return 12
		}
		return 8
	case 0xC3: // JP a16
		c.PC = c.fetch16()
		return 16
	case 0xC2, 0xCA, 0xD2, 0xDA: // JP cc,a16
		addr := c.fetch16()
		if c.cond((op >> 3) & 3) {
			c.PC = addr
			return 16
		}
		return 12
	case 0xE9: // JP HL
		c.PC = c.getHL()
		return 4

	case 0xCD: // CALL a16
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 24
	case 0xC4, 0xCC, 0xD4, 0xDC: // CALL cc,a16
		addr := c.fetch16()
		if c.cond((op >> 3) & 3) {
			c.push16(c.PC)
			c.PC = addr
			return 24
		}
		return 12
	case 0xC9: // RET
		c.PC = c.pop16()
		return 16
	case 0xC0, 0xC8, 0xD0, 0xD8: // RET cc
		if c.cond((op >> 3) & 3) {
			c.PC = c.pop16()
			return 20
		}
		return 8
	case 0xD9: // RETI
		c.PC = c.pop16()
		c.IME = true
		return 16
	case 0xC7, 0xCF, 0xD7, 0xDF, 0xE7, 0xEF, 0xF7, 0xFF: // RST t
		c.push16(c.PC)
		c.PC = uint16(op & 0x38)
		return 16

	case 0xC5, 0xD5, 0xE5, 0xF5: // PUSH rr (AF in slot 3)
		if op == 0xF5 {
			c.push16(c.getAF())
		} else {
			c.push16(c.rp16((op >> 4) & 3))
		}
		return 16
	case 0xC1, 0xD1, 0xE1, 0xF1: // POP rr (AF in slot 3)
		if op == 0xF1 {
			c.setAF(c.pop16())
		} else {
			c.setRP16((op>>4)&3, c.pop16())
		}
		return 12

	case 0xE8: // ADD SP,r8
		c.SP = c.addSPRel()
		return 16
	case 0xF8: // LD HL,SP+r8
		c.setHL(c.addSPRel())
		return 12
	case 0xF9: // LD SP,HL
		c.SP = c.getHL()
		return 8

	case 0xF3: // DI
		c.IME = false
		c.eiPending = false
		return 4
	case 0xFB: // EI
		c.eiPending = true
		return 4

	case 0xCB:
		return c.stepCB(c.fetch8())

	default:
		// 0xD3/0xDB/0xDD/0xE3/0xE4/0xEB-0xED/0xF4/0xFC/0xFD lock up
		// real hardware; executing one means the program ran off the
		// rails, so abort rather than silently continue.
		panic(fmt.Sprintf("cpu: illegal opcode %#02x at %#04x", op, c.PC-1))
	}
}

// addSPRel fetches a signed offset and computes SP+offset, setting
// H/C from the low-byte addition as the hardware does.
func (c *CPU) addSPRel() uint16 {
	off := int8(c.fetch8())
	low := byte(c.SP)
	c.setFlags(false, false, low&0x0F+byte(off)&0x0F > 0x0F, uint16(low)+uint16(byte(off)) > 0xFF)
	return uint16(int32(c.SP) + int32(off))
}

// stepCB executes a CB-prefixed rotate/shift/swap/BIT/RES/SET opcode.
func (c *CPU) stepCB(cb byte) int {
	idx := cb & 7
	y := (cb >> 3) & 7
	cycles := 8
	if idx == 6 {
		cycles = 16
		if cb>>6 == 1 { // BIT (HL) only reads
			cycles = 12
		}
	}
	switch cb >> 6 {
	case 0: // rotate/shift/swap
		c.setR8(idx, c.rotShift(y, c.r8(idx)))
	case 1: // BIT y,r
		c.F = c.F&flagC | flagH
		if c.r8(idx)&(1<<y) == 0 {
			c.F |= flagZ
		}
	case 2: // RES y,r
		c.setR8(idx, c.r8(idx)&^(1<<y))
	case 3: // SET y,r
		c.setR8(idx, c.r8(idx)|1<<y)
	}
	return cycles
}
