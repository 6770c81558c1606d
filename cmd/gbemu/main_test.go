package main

import (
	"testing"

	"github.com/kschmitt/gbdmg/internal/emu"
)

func TestFramebufferRGBA_ScrollCrop(t *testing.T) {
	d := emu.New(make([]byte, 0x8000), nil)
	b := d.Bus()
	b.Write(0xFF40, 0x91) // LCD+BG on, unsigned tile addressing
	b.Write(0xFF47, 0xE4) // identity palette
	b.Write(0xFF43, 5)    // SCX
	b.Write(0xFF42, 3)    // SCY
	// Tile 0, row 3 decodes to color 3; every other row stays color 0.
	b.Write(0x8006, 0xFF)
	b.Write(0x8007, 0xFF)

	pix := framebufferRGBA(d)
	fb := d.Framebuffer()

	// Output (0,0) must sample framebuffer[SCY][SCX] = fb[3][5], which is
	// the dark row, not the light fb[0][0] an uncropped read would hit.
	if fb[3][5] == fb[0][0] {
		t.Fatalf("test tile did not produce distinct rows")
	}
	wantR := byte(fb[3][5]>>11&0x1F) << 3
	if pix[0] != wantR {
		t.Fatalf("crop origin red = %#02x, want %#02x (fb[3][5])", pix[0], wantR)
	}

	// Output (159,143) must sample fb[(3+143)%256][(5+159)%256] = fb[146][164].
	i := (143*160 + 159) * 4
	wantR = byte(fb[146][164]>>11&0x1F) << 3
	if pix[i] != wantR {
		t.Fatalf("crop corner red = %#02x, want %#02x (fb[146][164])", pix[i], wantR)
	}
}
