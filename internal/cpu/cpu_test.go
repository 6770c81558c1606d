package cpu

import (
	"testing"

	"github.com/kschmitt/gbdmg/internal/bus"
	"github.com/kschmitt/gbdmg/internal/irq"
)

func newCPUWithROM(code []byte) *CPU {
	rom := make([]byte, 0x8000)
	copy(rom, code)
	b := bus.New(rom)
	return New(b)
}

func TestCPU_NopAndPC(t *testing.T) {
	c := newCPUWithROM([]byte{0x00}) // NOP
	if cycles := c.Step(); cycles != 4 {
		t.Fatalf("NOP cycles got %d want 4", cycles)
	}
	if c.PC != 1 {
		t.Fatalf("PC after NOP got %#04x want 0x0001", c.PC)
	}
}

func TestCPU_LD_A_d8_And_XOR_A(t *testing.T) {
	c := newCPUWithROM([]byte{0x3E, 0x12, 0xAF}) // LD A,0x12; XOR A
	c.Step()
	if c.A != 0x12 {
		t.Fatalf("A after LD got %02x want 12", c.A)
	}
	c.Step()
	if c.A != 0x00 {
		t.Fatalf("A after XOR got %02x want 00", c.A)
	}
	if c.F&flagZ == 0 {
		t.Fatalf("Z flag not set after XOR A")
	}
}

func TestCPU_LD_r_HL(t *testing.T) {
	// LD HL,0xC000; LD (HL),0x3C; LD B,(HL); LD E,(HL)
	c := newCPUWithROM([]byte{0x21, 0x00, 0xC0, 0x36, 0x3C, 0x46, 0x5E})
	c.Step()
	c.Step()
	if cycles := c.Step(); cycles != 8 {
		t.Fatalf("LD B,(HL) cycles got %d want 8", cycles)
	}
	if c.B != 0x3C {
		t.Fatalf("B after LD B,(HL) got %02x want 3C", c.B)
	}
	c.Step()
	if c.E != 0x3C {
		t.Fatalf("E after LD E,(HL) got %02x want 3C", c.E)
	}
}

func TestCPU_LD_a16_A_and_LD_A_a16(t *testing.T) {
	// LD A,0x77; LD (0xC000),A; LD A,0x00; LD A,(0xC000)
	prog := []byte{0x3E, 0x77, 0xEA, 0x00, 0xC0, 0x3E, 0x00, 0xFA, 0x00, 0xC0}
	c := newCPUWithROM(prog)
	c.Step()
	c.Step()
	if a := c.bus.Read(0xC000); a != 0x77 {
		t.Fatalf("WRAM at C000 got %02x want 77", a)
	}
	c.Step()
	c.Step()
	if c.A != 0x77 {
		t.Fatalf("A after LD A,(C000) got %02x want 77", c.A)
	}
}

func TestCPU_JP_and_JR(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xC3 // JP 0x0010
	rom[0x0001] = 0x10
	rom[0x0002] = 0x00
	rom[0x0010] = 0x18 // JR -2: hops back onto itself
	rom[0x0011] = 0xFE
	b := bus.New(rom)
	c := New(b)
	cycles := c.Step()
	if cycles != 16 || c.PC != 0x0010 {
		t.Fatalf("JP cycles=%d PC=%#04x want cycles=16 PC=0x0010", cycles, c.PC)
	}
	pcBefore := c.PC
	c.Step()
	if c.PC != pcBefore {
		t.Fatalf("JR -2 PC got %#04x want %#04x", c.PC, pcBefore)
	}
}

func TestCPU_INC_B_Flags(t *testing.T) {
	c := newCPUWithROM([]byte{0x04, 0x04}) // INC B twice
	c.B = 0x0F
	c.F = flagC
	c.Step()
	if c.B != 0x10 {
		t.Fatalf("INC B result got %02x want 10", c.B)
	}
	if c.F&flagH == 0 {
		t.Fatalf("INC B should set H flag")
	}
	if c.F&flagC == 0 {
		t.Fatalf("INC B should preserve C flag")
	}
	c.B = 0xFF
	c.Step()
	if c.B != 0x00 || c.F&flagZ == 0 {
		t.Fatalf("INC B to 0 should set Z flag, B=%02x, F=%02x", c.B, c.F)
	}
}

func TestCPU_LD_16bit_and_LDH(t *testing.T) {
	// LD HL,0xC000; LD (HL),0x5A; LD A,0x00; LDH A,(0x00); LDH (0x01),A
	prog := []byte{
		0x21, 0x00, 0xC0,
		0x36, 0x5A,
		0x3E, 0x00,
		0xF0, 0x00,
		0xE0, 0x01,
	}
	c := newCPUWithROM(prog)
	c.Bus().Write(0xFF00, 0x30) // deselect both joypad groups for a stable read

	for i := 0; i < 5; i++ {
		c.Step()
	}
	if v := c.Bus().Read(0xC000); v != 0x5A {
		t.Fatalf("WRAM C000 got %02x want 5A", v)
	}
	if v := c.Bus().Read(0xFF01); v != c.A {
		t.Fatalf("LDH (01),A expected FF01 == A (%02x), got %02x", c.A, v)
	}
}

func TestCPU_CALL_RET(t *testing.T) {
	rom := make([]byte, 0x8000)
	rom[0x0000] = 0xCD // CALL 0x0005
	rom[0x0001] = 0x05
	rom[0x0002] = 0x00
	rom[0x0005] = 0xC9 // RET
	b := bus.New(rom)
	c := New(b)
	c.Step()
	if c.PC != 0x0005 {
		t.Fatalf("PC after CALL got %04x want 0005", c.PC)
	}
	retCycles := c.Step()
	if c.PC != 0x0003 || retCycles != 16 {
		t.Fatalf("RET did not return to 0003; PC=%04x cyc=%d", c.PC, retCycles)
	}
}

func TestCPU_CB_BitAndSet(t *testing.T) {
	// SET 3,B; BIT 3,B; RES 3,B; BIT 3,B
	c := newCPUWithROM([]byte{0xCB, 0xD8, 0xCB, 0x58, 0xCB, 0x98, 0xCB, 0x58})
	c.Step()
	if c.B != 0x08 {
		t.Fatalf("SET 3,B got %02x want 08", c.B)
	}
	c.Step()
	if c.F&flagZ != 0 {
		t.Fatalf("BIT 3,B should clear Z when the bit is set")
	}
	c.Step()
	if c.B != 0x00 {
		t.Fatalf("RES 3,B got %02x want 00", c.B)
	}
	c.Step()
	if c.F&flagZ == 0 {
		t.Fatalf("BIT 3,B should set Z when the bit is clear")
	}
}

func TestCPU_InterruptDispatch(t *testing.T) {
	c := newCPUWithROM([]byte{0x00}) // never reached: interrupt fires first
	c.IME = true
	c.Bus().Write(0xFFFF, irq.VBlank)
	c.Bus().Write(0xFF0F, irq.VBlank)

	cycles := c.Step()
	if cycles != 20 {
		t.Fatalf("dispatch cycles got %d want 20", cycles)
	}
	if c.PC != 0x0040 {
		t.Fatalf("PC after VBlank dispatch got %#04x want 0x0040", c.PC)
	}
	if c.IME {
		t.Fatalf("IME not cleared by dispatch")
	}
	if c.Bus().IF()&irq.VBlank != 0 {
		t.Fatalf("serviced IF bit not acknowledged")
	}
}

func TestCPU_EITakesEffectAfterFollowingInstruction(t *testing.T) {
	c := newCPUWithROM([]byte{0xFB, 0x00, 0x00}) // EI; NOP; NOP
	c.Bus().Write(0xFFFF, irq.VBlank)
	c.Bus().Write(0xFF0F, irq.VBlank)

	c.Step() // EI
	if c.IME {
		t.Fatalf("IME enabled during the EI instruction itself")
	}
	c.Step() // NOP executes before the interrupt window opens
	if c.PC != 0x0002 {
		t.Fatalf("instruction after EI preempted: PC=%#04x", c.PC)
	}
	if !c.IME {
		t.Fatalf("IME not enabled after the instruction following EI")
	}
	c.Step()
	if c.PC != 0x0040 {
		t.Fatalf("pending interrupt not serviced once IME enabled: PC=%#04x", c.PC)
	}
}

func TestCPU_HALTWakesOnPendingInterrupt(t *testing.T) {
	c := newCPUWithROM([]byte{0x76, 0x00}) // HALT; NOP
	c.Bus().Write(0xFFFF, irq.Timer)

	c.Step() // HALT
	if cycles := c.Step(); cycles != 4 {
		t.Fatalf("halted idle step cycles got %d want 4", cycles)
	}
	if c.PC != 0x0001 {
		t.Fatalf("PC advanced while halted: %#04x", c.PC)
	}

	c.Bus().Write(0xFF0F, irq.Timer)
	c.Step() // wakes without dispatch (IME off) and runs the NOP
	if c.PC != 0x0002 {
		t.Fatalf("HALT did not wake on pending interrupt: PC=%#04x", c.PC)
	}
}

func TestCPU_IllegalOpcodePanics(t *testing.T) {
	c := newCPUWithROM([]byte{0xD3})
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on illegal opcode 0xD3")
		}
	}()
	c.Step()
}
