package ppu

import "github.com/kschmitt/gbdmg/internal/tile"

const (
	bgMap0 uint16 = 0x9800
	bgMap1 uint16 = 0x9C00

	tileDataSigned   uint16 = 0x9000 // LCDC bit4 == 0: signed addressing relative to 0x9000
	tileDataUnsigned uint16 = 0x8000 // LCDC bit4 == 1: unsigned addressing from 0x8000
)

// OAM attribute flag bits.
const (
	oamPriority = 1 << 7 // 0: OBJ above BG, 1: OBJ behind BG colors 1-3
	oamYFlip    = 1 << 6
	oamXFlip    = 1 << 5
	oamPalette  = 1 << 4 // 0: OBP0, 1: OBP1
)

// Render composes the full 256x256 background plane from the tile map
// selected by LCDC bit 3, then blits live OAM sprites on top when
// LCDC bit 1 is set. Returns a pointer to the PPU's owned
// framebuffer; callers must not retain it across the next Render.
func (p *PPU) Render() *Framebuffer {
	p.renderBackground()
	if p.lcdc&0x02 != 0 {
		p.renderSprites()
	}
	return &p.fb
}

func (p *PPU) renderBackground() {
	mapBase := bgMap0
	if p.lcdc&0x08 != 0 {
		mapBase = bgMap1
	}
	unsignedAddressing := p.lcdc&0x10 != 0

	for my := 0; my < 32; my++ {
		for mx := 0; mx < 32; mx++ {
			entryAddr := mapBase + uint16(my*32+mx)
			tIdx := p.vram[entryAddr-0x8000]

			var base uint16
			if unsignedAddressing {
				base = tileDataUnsigned + uint16(tIdx)*16
			} else {
				base = uint16(int32(tileDataSigned) + int32(int8(tIdx))*16)
			}

			var bytes [16]byte
			for i := 0; i < 16; i++ {
				bytes[i] = p.vram[base-0x8000+uint16(i)]
			}
			px := tile.Decode(p.bgp, bytes)

			baseY, baseX := my*8, mx*8
			for r := 0; r < 8; r++ {
				for c := 0; c < 8; c++ {
					p.fb[baseY+r][baseX+c] = px[r][c]
				}
			}
		}
	}
}

// renderSprites iterates OAM front-to-back, skipping the all-zero
// sentinel used for uninitialized slots, and blits each live entry
// using its attribute byte to select palette and flip axes.
func (p *PPU) renderSprites() {
	for entry := 0; entry < 40; entry++ {
		off := entry * 4
		yRaw := p.oam[off]
		xRaw := p.oam[off+1]
		tileIdx := p.oam[off+2]
		flags := p.oam[off+3]

		if yRaw == 0 && xRaw == 0 && tileIdx == 0 && flags == 0 {
			continue
		}

		obp := p.obp0
		if flags&oamPalette != 0 {
			obp = p.obp1
		}

		var bytes [16]byte
		base := 0x8000 + uint16(tileIdx)*16
		for i := 0; i < 16; i++ {
			bytes[i] = p.vram[base-0x8000+uint16(i)]
		}
		px := tile.Decode(obp, bytes)

		// On-screen position uses wrapping subtraction on the raw
		// bytes; writes that then land outside the 256x256 plane are
		// clipped, not wrapped.
		screenX := int(xRaw-8) + int(p.scx)
		screenY := int(yRaw-16) + int(p.scy)

		for r := 0; r < 8; r++ {
			srcR := r
			if flags&oamYFlip != 0 {
				srcR = 7 - r
			}
			y := screenY + r
			if y > 255 {
				continue
			}
			for c := 0; c < 8; c++ {
				srcC := c
				if flags&oamXFlip != 0 {
					srcC = 7 - c
				}
				x := screenX + c
				if x > 255 {
					continue
				}
				if flags&oamPriority != 0 && p.fb[y][x] != tile.Color0 {
					// BG-over-OBJ priority: a non-zero background
					// color index wins when bit7 is set.
					continue
				}
				p.fb[y][x] = px[srcR][srcC]
			}
		}
	}
}
