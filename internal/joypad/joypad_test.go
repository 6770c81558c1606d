package joypad

import (
	"testing"

	"github.com/kschmitt/gbdmg/internal/irq"
)

func TestGate_DefaultAllReleased(t *testing.T) {
	g := New(nil)
	if got := g.Read() & 0x0F; got != 0x0F {
		t.Fatalf("default lower nibble = %#02x, want 0x0F", got)
	}
}

func TestGate_DirectionPressClearsBit(t *testing.T) {
	var raised byte
	g := New(func(bit byte) { raised |= bit })
	g.SetSelect(0x20) // bit5=1(unselected buttons), bit4=0(select directions)
	g.SetPressed(Down, true)

	got := g.Read()
	if got&0x08 != 0 {
		t.Fatalf("Down not reflected: %#02x", got)
	}
	if raised&irq.Joypad == 0 {
		t.Fatalf("JOYPAD interrupt not requested on press")
	}
}

func TestGate_ButtonGroupIndependent(t *testing.T) {
	g := New(nil)
	g.SetSelect(0x10) // select buttons (P15=0), deselect directions
	g.SetPressed(A, true)
	g.SetPressed(Up, true) // direction press should not show while directions unselected

	got := g.Read()
	if got&0x01 != 0 {
		t.Fatalf("A not reflected while buttons selected: %#02x", got)
	}
	if got&0x04 == 0 {
		t.Fatalf("Up leaked into button-selected read: %#02x", got)
	}
}

func TestGate_ReleaseSetsBitBack(t *testing.T) {
	g := New(nil)
	g.SetSelect(0x20)
	g.SetPressed(Right, true)
	g.SetPressed(Right, false)
	if got := g.Read() & 0x0F; got != 0x0F {
		t.Fatalf("released key not reflected: %#02x", got)
	}
}

func TestGate_NoInterruptOnRepeatedPress(t *testing.T) {
	count := 0
	g := New(func(bit byte) { count++ })
	g.SetSelect(0x20)
	g.SetPressed(Left, true)
	g.SetPressed(Left, true)
	if count != 1 {
		t.Fatalf("interrupt fired %d times for repeated press, want 1", count)
	}
}
