// Package joypad implements the P1/JOYP matrix select gate:
// two 4-bit input shadows held outside the memory array, combined
// with the CPU-selected group on read.
package joypad

import "github.com/kschmitt/gbdmg/internal/irq"

// Key identifies a physical button.
type Key int

const (
	Right Key = iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

// Gate holds the two input shadows and the CPU's selector nibble.
type Gate struct {
	directions byte // bit0 Right,1 Left,2 Up,3 Down; 1 = released
	buttons    byte // bit0 A,1 B,2 Select,3 Start; 1 = released

	selectDirections bool // P14 == 0
	selectButtons    bool // P15 == 0

	req irq.Requester
}

// New constructs a Gate with all buttons released and raises
// interrupts through req.
func New(req irq.Requester) *Gate {
	return &Gate{directions: 0x0F, buttons: 0x0F, req: req}
}

// SetSelect applies a write to 0xFF00 bits 4-5 (0 selects the group).
func (g *Gate) SetSelect(value byte) {
	g.selectDirections = value&0x10 == 0
	g.selectButtons = value&0x20 == 0
}

// Read combines the selector bits with whichever input nibble(s) are
// active; the unselected or unpressed lines read as 1.
func (g *Gate) Read() byte {
	sel := byte(0)
	if !g.selectDirections {
		sel |= 0x10
	}
	if !g.selectButtons {
		sel |= 0x20
	}

	lower := byte(0x0F)
	if g.selectDirections {
		lower &= g.directions
	}
	if g.selectButtons {
		lower &= g.buttons
	}
	return 0xC0 | sel | lower
}

// SetPressed updates one key's shadow bit and requests the JOYPAD
// interrupt on any press (falling edge of the active-low bit).
func (g *Gate) SetPressed(k Key, pressed bool) {
	var shadow *byte
	var bit byte
	switch k {
	case Right:
		shadow, bit = &g.directions, 0x01
	case Left:
		shadow, bit = &g.directions, 0x02
	case Up:
		shadow, bit = &g.directions, 0x04
	case Down:
		shadow, bit = &g.directions, 0x08
	case A:
		shadow, bit = &g.buttons, 0x01
	case B:
		shadow, bit = &g.buttons, 0x02
	case Select:
		shadow, bit = &g.buttons, 0x04
	case Start:
		shadow, bit = &g.buttons, 0x08
	default:
		return
	}

	if pressed {
		if *shadow&bit != 0 && g.req != nil {
			g.req(irq.Joypad)
		}
		*shadow &^= bit
	} else {
		*shadow |= bit
	}
}
