package ui

// Config contains window/input/audio related settings, kept separate
// from internal/emu.Config's emulation-behavior options so a headless
// host can use emu.Config alone.
type Config struct {
	Title          string // window title
	Scale          int    // integer upscaling factor
	Fullscreen     bool
	Mute           bool
	ScreenshotPath string // if set, dump one BMP frame here ~1s after boot
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbaemu"
	}
	if c.Scale <= 0 {
		c.Scale = 3
	}
}
