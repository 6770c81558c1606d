package main

import (
	"flag"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"log"
	"os"
	"strings"
	"time"

	"github.com/kschmitt/gbdmg/internal/emu"
	"github.com/kschmitt/gbdmg/internal/ui"
)

type CLIFlags struct {
	ROMPath string
	BootROM string
	Scale   int
	Title   string

	// headless
	Headless bool
	Frames   int
	PNGOut   string
	Expect   string // expected framebuffer CRC32 hex (e.g., "1a2b3c4d")
}

func parseFlags() CLIFlags {
	var f CLIFlags
	flag.StringVar(&f.ROMPath, "rom", "", "path to ROM (.gb)")
	flag.StringVar(&f.BootROM, "bootrom", "", "optional 256-byte DMG boot ROM")
	flag.IntVar(&f.Scale, "scale", 3, "window scale")
	flag.StringVar(&f.Title, "title", "gbemu", "window title")

	flag.BoolVar(&f.Headless, "headless", false, "run without a window")
	flag.IntVar(&f.Frames, "frames", 300, "frames to run in headless mode")
	flag.StringVar(&f.PNGOut, "outpng", "", "write last framebuffer to PNG at path")
	flag.StringVar(&f.Expect, "expect", "", "assert framebuffer CRC32 (hex)")
	flag.Parse()
	return f
}

func runHeadless(d *emu.Driver, frames int, pngPath, expectCRC string) error {
	if frames <= 0 {
		frames = 1
	}

	start := time.Now()
	for i := 0; i < frames; i++ {
		d.RunFrame()
	}
	dur := time.Since(start)

	pix := framebufferRGBA(d)
	crc := crc32.ChecksumIEEE(pix)
	fps := float64(frames) / dur.Seconds()

	log.Printf("headless: frames=%d elapsed=%s fps=%.2f fb_crc32=%08x",
		frames, dur.Truncate(time.Millisecond), fps, crc)

	if pngPath != "" {
		if err := saveFramePNG(pix, 160, 144, pngPath); err != nil {
			return fmt.Errorf("write PNG: %w", err)
		}
		log.Printf("wrote %s", pngPath)
	}

	if expectCRC != "" {
		want := strings.TrimPrefix(strings.ToLower(expectCRC), "0x")
		got := fmt.Sprintf("%08x", crc)
		if got != want {
			return fmt.Errorf("checksum mismatch: got %s, want %s", got, want)
		}
	}
	return nil
}

// framebufferRGBA crops the driver's 256x256 background through
// SCX/SCY into a 160x144 RGBA byte slice, matching the presenter's
// crop rule.
func framebufferRGBA(d *emu.Driver) []byte {
	fb := d.Framebuffer()
	scx, scy := d.Scroll()
	pix := make([]byte, 160*144*4)
	for y := 0; y < 144; y++ {
		srcY := (int(scy) + y) & 0xFF
		for x := 0; x < 160; x++ {
			srcX := (int(scx) + x) & 0xFF
			px := fb[srcY][srcX]
			i := (y*160 + x) * 4
			pix[i+0] = byte((px>>11)&0x1F) << 3
			pix[i+1] = byte((px>>5)&0x3F) << 2
			pix[i+2] = byte(px&0x1F) << 3
			pix[i+3] = 0xFF
		}
	}
	return pix
}

func saveFramePNG(pix []byte, w, h int, path string) error {
	img := &image.RGBA{
		Pix:    make([]byte, len(pix)),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	copy(img.Pix, pix)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	f := parseFlags()
	if f.ROMPath == "" {
		log.Fatalf("missing -rom")
	}
	rom := mustRead(f.ROMPath)

	var boot []byte
	if b := mustRead(f.BootROM); len(b) >= 0x100 {
		boot = b
	}

	d := emu.New(rom, boot)

	if f.Headless {
		if err := runHeadless(d, f.Frames, f.PNGOut, f.Expect); err != nil {
			log.Fatal(err)
		}
		return
	}

	uiCfg := ui.Config{Title: f.Title, Scale: f.Scale}
	app := ui.NewApp(uiCfg, d)
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
