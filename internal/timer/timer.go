// Package timer implements the DIV/TIMA/TMA/TAC divider and
// programmable timer, expressed at this emulator's
// per-bus-cycle granularity.
package timer

import "github.com/kschmitt/gbdmg/internal/irq"

// TAC period select, bits 1-0, in bus cycles. Real DMG hardware
// increments TIMA every {1024,16,64,256} cycles for select values
// 0-3 respectively; a table ordered {256,4,16,64} is a common but
// incorrect reading of the selector bits.
var periods = [4]int{1024, 16, 64, 256}

// Timer owns DIV/TIMA/TMA/TAC and requests the TIMER interrupt on
// TIMA overflow.
type Timer struct {
	div  byte
	tima byte
	tma  byte
	tac  byte

	clock int // bus-global cycle counter driving DIV/TIMA granularity

	req irq.Requester
}

// New constructs a Timer that raises interrupts through req.
func New(req irq.Requester) *Timer {
	return &Timer{req: req}
}

func (t *Timer) DIV() byte  { return t.div }
func (t *Timer) TIMA() byte { return t.tima }
func (t *Timer) TMA() byte  { return t.tma }
func (t *Timer) TAC() byte  { return t.tac }

// Clock reports the internal cycle counter driving the DIV/TIMA cadence.
func (t *Timer) Clock() int { return t.clock }

// Restore overwrites the timer's full state, including DIV and the
// cycle counter the CPU-facing write path cannot set (any write to DIV
// resets it). Used by the driver's snapshot restore.
func (t *Timer) Restore(div, tima, tma, tac byte, clock int) {
	t.div = div
	t.tima = tima
	t.tma = tma
	t.tac = tac & 0x07
	t.clock = clock
}

// SetDIV resets the divider to 0 regardless of the written value,
// matching hardware: DIV cannot be set to an arbitrary value.
func (t *Timer) SetDIV(byte) { t.div = 0 }

func (t *Timer) SetTIMA(v byte) { t.tima = v }
func (t *Timer) SetTMA(v byte)  { t.tma = v }
func (t *Timer) SetTAC(v byte)  { t.tac = v & 0x07 }

// Tick advances the bus-global cycle counter by one and applies the
// DIV/TIMA update rules for that cycle.
func (t *Timer) Tick() {
	t.clock++

	if t.clock%256 == 0 {
		t.div++
	}

	if t.tac&0x04 == 0 {
		return
	}
	period := periods[t.tac&0x03]
	if t.clock%period != 0 {
		return
	}
	if t.tima == 0xFF {
		t.tima = t.tma
		if t.req != nil {
			t.req(irq.Timer)
		}
	} else {
		t.tima++
	}
}
