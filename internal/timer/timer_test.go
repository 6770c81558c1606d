package timer

import (
	"testing"

	"github.com/kschmitt/gbdmg/internal/irq"
)

func TestTimer_DIVWrapsEvery256Cycles(t *testing.T) {
	tm := New(nil)
	for i := 0; i < 256; i++ {
		tm.Tick()
	}
	if tm.DIV() != 1 {
		t.Fatalf("DIV after 256 cycles = %d, want 1", tm.DIV())
	}
}

func TestTimer_DIVWriteAlwaysResetsToZero(t *testing.T) {
	tm := New(nil)
	for i := 0; i < 300; i++ {
		tm.Tick()
	}
	tm.SetDIV(0xFF)
	if tm.DIV() != 0 {
		t.Fatalf("DIV after write = %d, want 0", tm.DIV())
	}
}

func TestTimer_TIMAIncrementsOnSelectedPeriod(t *testing.T) {
	tm := New(nil)
	tm.SetTAC(0b101) // enable, period 16
	for i := 0; i < 16; i++ {
		tm.Tick()
	}
	if tm.TIMA() != 1 {
		t.Fatalf("TIMA after 16 cycles = %d, want 1", tm.TIMA())
	}
}

func TestTimer_TIMAOverflowReloadsAndRaisesInterrupt(t *testing.T) {
	var raised byte
	tm := New(func(bit byte) { raised |= bit })
	tm.SetTAC(0b101) // enable, period 16
	tm.SetTMA(0x40)
	for i := 0; i < 16*256; i++ {
		tm.Tick()
	}
	if tm.TIMA() != 0x40 {
		t.Fatalf("TIMA after overflow = %#02x, want 0x40", tm.TIMA())
	}
	if raised&irq.Timer == 0 {
		t.Fatalf("TIMER interrupt not raised on overflow")
	}
}

func TestTimer_DisabledTACDoesNotIncrement(t *testing.T) {
	tm := New(nil)
	tm.SetTAC(0b001) // period select set but enable bit clear
	for i := 0; i < 1000; i++ {
		tm.Tick()
	}
	if tm.TIMA() != 0 {
		t.Fatalf("TIMA incremented while disabled: %d", tm.TIMA())
	}
}

func TestTimer_PeriodTableIsHardwareCorrect(t *testing.T) {
	// Real hardware periods, not the commonly miscited {256,4,16,64}.
	want := [4]int{1024, 16, 64, 256}
	if periods != want {
		t.Fatalf("periods = %v, want %v", periods, want)
	}
}
