// Package irq defines the shared IF/IE bit layout used by the PPU,
// timer, and joypad gate to request interrupts through the bus.
package irq

// Bit positions within the IF (0xFF0F) and IE (0xFFFF) registers.
const (
	VBlank  = 0x01
	LCDStat = 0x02
	Timer   = 0x04
	Serial  = 0x08
	Joypad  = 0x10
)

// Requester is implemented by the bus and handed to subsystems that
// need to raise interrupt flags without owning the IF register
// themselves.
type Requester func(bit byte)
