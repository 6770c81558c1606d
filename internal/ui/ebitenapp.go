package ui

import (
	"fmt"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/kschmitt/gbdmg/internal/emu"
	"github.com/kschmitt/gbdmg/internal/joypad"
)

const (
	screenW = 160
	screenH = 144
)

// keyBindings maps ebiten keys to joypad buttons.
var keyBindings = map[ebiten.Key]joypad.Key{
	ebiten.KeyArrowRight: joypad.Right,
	ebiten.KeyArrowLeft:  joypad.Left,
	ebiten.KeyArrowUp:    joypad.Up,
	ebiten.KeyArrowDown:  joypad.Down,
	ebiten.KeyZ:          joypad.A,
	ebiten.KeyX:          joypad.B,
	ebiten.KeyEnter:      joypad.Start,
	ebiten.KeyBackspace:  joypad.Select,
}

// App is a thin ebiten presenter: it crops the driver's 256x256
// background framebuffer to a 160x144 viewport using SCX/SCY, and
// polls keys to forward presses into the driver's joypad gate. It
// owns no emulation state itself.
type App struct {
	cfg Config
	d   *emu.Driver

	tex    *ebiten.Image
	pixels []byte // RGBA scratch buffer, reused every frame

	pressed map[ebiten.Key]bool
}

// NewApp constructs a presenter around an already-loaded Driver.
func NewApp(cfg Config, d *emu.Driver) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	return &App{
		cfg:     cfg,
		d:       d,
		tex:     ebiten.NewImage(screenW, screenH),
		pixels:  make([]byte, screenW*screenH*4),
		pressed: make(map[ebiten.Key]bool, len(keyBindings)),
	}
}

// Update advances one emulated frame and forwards key transitions.
func (a *App) Update() error {
	for k, btn := range keyBindings {
		down := ebiten.IsKeyPressed(k)
		if down != a.pressed[k] {
			a.pressed[k] = down
			a.d.InjectInput(btn, down)
		}
	}
	a.d.RunFrame()
	return nil
}

// Draw crops the driver's background framebuffer through SCX/SCY into
// the 160x144 viewport and blits it to the screen.
func (a *App) Draw(screen *ebiten.Image) {
	fb := a.d.Framebuffer()
	scx, scy := a.d.Scroll()

	for y := 0; y < screenH; y++ {
		srcY := (int(scy) + y) & 0xFF
		for x := 0; x < screenW; x++ {
			srcX := (int(scx) + x) & 0xFF
			r, g, b := unpackRGB565(fb[srcY][srcX])
			i := (y*screenW + x) * 4
			a.pixels[i+0] = r
			a.pixels[i+1] = g
			a.pixels[i+2] = b
			a.pixels[i+3] = 0xFF
		}
	}
	a.tex.WritePixels(a.pixels)
	screen.DrawImage(a.tex, nil)
}

// Layout reports the fixed logical screen size; ebiten scales it up
// to whatever window size the Scale factor picked.
func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenW, screenH
}

// Run starts the ebiten game loop, blocking until the window closes.
func (a *App) Run() error {
	if err := ebiten.RunGame(a); err != nil {
		return fmt.Errorf("ui: run game: %w", err)
	}
	return nil
}

func unpackRGB565(px uint16) (r, g, b byte) {
	r = byte((px>>11)&0x1F) << 3
	g = byte((px>>5)&0x3F) << 2
	b = byte(px&0x1F) << 3
	return
}
