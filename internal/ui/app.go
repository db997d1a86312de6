package ui

import (
	"fmt"
	"image"
	"os"
	"time"

	"github.com/dskellund/gbacore/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"golang.org/x/image/bmp"
)

// App is the ebiten.Game implementation: the windowed front-end the core's
// FrameSink/AudioSink boundary is designed for. ROM path, BIOS path and
// scale are CLI flags rather than an in-app picker, so there's no
// ROM-browser/settings menu here.
type App struct {
	cfg Config
	m   *emu.Machine

	tex       *ebiten.Image
	lastFrame []uint16

	paused bool
	fast   bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	audioStream *silentStream

	framesRun int

	toastMsg   string
	toastUntil time.Time
}

// NewApp wires cfg and m together and applies the window chrome a real
// boot would already have decided (title, size) via
// ebiten.SetWindowTitle/SetWindowSize.
func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(windowTitle(cfg, m))
	ebiten.SetWindowSize(m.Width()*cfg.Scale, m.Height()*cfg.Scale)
	ebiten.SetFullscreen(cfg.Fullscreen)
	a := &App{cfg: cfg, m: m}
	a.audioCtx = audio.NewContext(48000)
	a.audioStream = newSilentStream()
	a.audioStream.muted = cfg.Mute
	m.SetFrameSink(a)
	return a
}

func windowTitle(cfg Config, m *emu.Machine) string {
	if t := m.ROMTitle(); t != "" {
		return cfg.Title + " - " + t
	}
	return cfg.Title
}

// Run hands control to ebiten's game loop.
func (a *App) Run() error { return ebiten.RunGame(a) }

// PushFrame implements emu.FrameSink, letting Machine hand frames to the UI
// from its own stepping call rather than the UI polling Framebuffer()
// directly, even though Draw below also has a copy via a.lastFrame for the
// synchronous single-goroutine case this Game loop actually runs in.
func (a *App) PushFrame(pixels []uint16) { a.lastFrame = pixels }

func (a *App) Update() error {
	if a.audioPlayer == nil {
		if p, err := a.audioCtx.NewPlayer(a.audioStream); err == nil {
			a.audioPlayer = p
			a.audioPlayer.SetBufferSize(40 * time.Millisecond)
			a.audioPlayer.Play()
		}
	}

	a.m.SetKeys(pollButtons())

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	a.audioStream.mu.Lock()
	a.audioStream.muted = a.cfg.Mute || a.paused
	a.audioStream.mu.Unlock()

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		a.m.Reset(false)
		a.toast("Reset")
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.m.SaveStateToFile(a.statePath()); err != nil {
			a.toast("Save failed: " + err.Error())
		} else {
			a.toast("State saved")
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.m.LoadStateFromFile(a.statePath()); err != nil {
			a.toast("Load failed: " + err.Error())
		} else {
			a.toast("State loaded")
		}
	}

	if !a.paused {
		frames := 1
		if a.fast {
			frames = 4
		}
		for i := 0; i < frames; i++ {
			a.lastFrame = a.m.RunUntilFrame()
			a.framesRun++
		}
	}

	if a.cfg.ScreenshotPath != "" && a.framesRun >= 60 {
		path := a.cfg.ScreenshotPath
		a.cfg.ScreenshotPath = ""
		if err := a.saveScreenshot(path); err != nil {
			a.toast("Screenshot failed: " + err.Error())
		} else {
			a.toast("Saved " + path)
		}
	}

	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	w, h := a.m.Width(), a.m.Height()
	if a.tex == nil {
		a.tex = ebiten.NewImage(w, h)
	}
	fb := a.lastFrame
	if fb == nil {
		fb = a.m.Framebuffer()
	}
	a.tex.WritePixels(bgr555ToRGBA(fb, w, h))
	screen.DrawImage(a.tex, nil)

	if a.paused {
		ebitenutil.DebugPrintAt(screen, "PAUSED", 4, 4)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 4, h-14)
	}
}

func (a *App) Layout(outsideWidth, outsideHeight int) (int, int) {
	return a.m.Width(), a.m.Height()
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) statePath() string {
	base := a.m.ROMPath()
	if base == "" {
		base = "gbaemu"
	}
	return base + ".savestate"
}

// saveScreenshot writes the current framebuffer as a BMP, a closer
// hardware-era match for a GBA tool's screenshot format than PNG-only
// (per SPEC_FULL.md's domain-stack wiring for golang.org/x/image/bmp).
func (a *App) saveScreenshot(path string) error {
	w, h := a.m.Width(), a.m.Height()
	img := &image.RGBA{
		Pix:    bgr555ToRGBA(a.m.Framebuffer(), w, h),
		Stride: 4 * w,
		Rect:   image.Rect(0, 0, w, h),
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	defer f.Close()
	if err := bmp.Encode(f, img); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

// bgr555ToRGBA expands the PPU's native BGR555 framebuffer into the RGBA
// bytes ebiten.Image.WritePixels and image.RGBA both want.
func bgr555ToRGBA(fb []uint16, w, h int) []byte {
	out := make([]byte, w*h*4)
	for i, px := range fb {
		r := uint8(px&0x1F) << 3
		g := uint8((px>>5)&0x1F) << 3
		b := uint8((px>>10)&0x1F) << 3
		out[i*4+0] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = 0xFF
	}
	return out
}
