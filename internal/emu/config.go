package emu

// Config contains settings that affect emulation behavior, separate from
// internal/ui.Config's presentation-layer options (window scale,
// fullscreen, mute).
type Config struct {
	Trace    bool // stored but not consulted: no retired instruction is logged
	Verbose  bool // stored but not consulted: nothing calls warnf, so no warning is logged
	SkipBIOS bool // Reset(hard) jumps straight to the cartridge entry point
	LimitFPS bool // stored but not consulted: Machine never throttles RunUntilFrame
}
