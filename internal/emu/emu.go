// Package emu is the orchestrator: it owns the CPU, Bus, PPU, Cartridge
// and Scheduler, drives the single stepping loop, and is the one place
// that knows how to stand in for a missing BIOS image.
package emu

import (
	"fmt"
	"os"

	"github.com/dskellund/gbacore/internal/bus"
	"github.com/dskellund/gbacore/internal/cart"
	"github.com/dskellund/gbacore/internal/cpu"
	"github.com/dskellund/gbacore/internal/hlebios"
	"github.com/dskellund/gbacore/internal/ppu"
	"github.com/dskellund/gbacore/internal/scheduler"
)

const (
	screenWidth  = 240
	screenHeight = 160

	// biosImageSize is the exact size LoadBIOS accepts; anything else is
	// a LoadError.
	biosImageSize = 16 * 1024
	// maxROMSize is the largest cartridge LoadROM accepts.
	maxROMSize = 32 * 1024 * 1024

	// cartridgeEntry is the fixed address every GBA ROM is executed from;
	// the header's own EntryPoint field is the raw opcode at that address
	// (typically a branch), not a jump target.
	cartridgeEntry = 0x08000000
)

// Buttons mirrors the GBA's 10-key pad; the bit order assigned to each
// matches the real KEYINPUT register layout, which internal/bus already
// expects.
type Buttons struct {
	A, B, Select, Start   bool
	Right, Left, Up, Down bool
	R, L                  bool
}

// mask packs Buttons into the 10-bit pressed-key form internal/bus.SetKeys
// wants: 1 pressed, 0 released (SetKeys itself stores the active-low
// KEYINPUT value).
func (b Buttons) mask() uint16 {
	pressed := func(v bool, bit uint16) uint16 {
		if v {
			return bit
		}
		return 0
	}
	var held uint16
	held |= pressed(b.A, 1<<0)
	held |= pressed(b.B, 1<<1)
	held |= pressed(b.Select, 1<<2)
	held |= pressed(b.Start, 1<<3)
	held |= pressed(b.Right, 1<<4)
	held |= pressed(b.Left, 1<<5)
	held |= pressed(b.Up, 1<<6)
	held |= pressed(b.Down, 1<<7)
	held |= pressed(b.R, 1<<8)
	held |= pressed(b.L, 1<<9)
	return held
}

// Machine is the whole emulated console: a top-level orchestrator owning
// the Bus, PPU, and Scheduler, plus the Core and Cartridge it lends a
// handle to each step.
type Machine struct {
	cfg Config

	core  *cpu.Core
	bus   *bus.Bus
	ppu   *ppu.PPU
	cart  *cart.Cartridge
	sched *scheduler.Scheduler

	hleState hlebios.State

	states stateGroup

	biosImage []byte

	hasROM  bool
	romSize int
	romPath string

	frameSink FrameSink
}

// New constructs a Machine with no ROM loaded yet. Load a cartridge with
// LoadROM before calling Reset or stepping.
func New(cfg Config) *Machine {
	m := &Machine{cfg: cfg}
	m.sched = scheduler.New()
	m.ppu = ppu.New()
	return m
}

// LoadBIOS installs a real BIOS image. Its absence is not an error: the
// machine falls back to internal/hlebios for SWI/IRQ dispatch. Valid
// before or after LoadROM; if a ROM is already loaded, the bus is rebuilt
// and the machine hard-reset so the image takes effect immediately.
func (m *Machine) LoadBIOS(img []byte) error {
	if len(img) != biosImageSize {
		return fmt.Errorf("%w: bios image is %d bytes, want %d", ErrLoadError, len(img), biosImageSize)
	}
	m.biosImage = append([]byte(nil), img...)
	if m.hasROM {
		m.Reset(true)
	}
	return nil
}

// LoadROM parses and installs a cartridge image, replacing any previously
// loaded one. The machine is left reset (hard) and ready to step.
func (m *Machine) LoadROM(rom []byte) error {
	if len(rom) == 0 || len(rom) > maxROMSize {
		return fmt.Errorf("%w: rom is %d bytes, max %d", ErrLoadError, len(rom), maxROMSize)
	}
	c, err := cart.New(rom)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadError, err)
	}

	m.cart = c
	m.romSize = len(rom)
	m.hasROM = true
	m.Reset(true)
	return nil
}

// LoadROMFile reads path and loads it as a cartridge image, additionally
// recording it so ROMPath/ROMTitle and SaveStateToFile's default naming
// have something to report — the in-memory LoadROM has no notion of where
// bytes came from.
func (m *Machine) LoadROMFile(path string) error {
	rom, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadError, err)
	}
	if err := m.LoadROM(rom); err != nil {
		return err
	}
	m.romPath = path
	return nil
}

// ROMPath returns the path LoadROMFile loaded from, or "" if the current
// cartridge was installed via LoadROM directly (e.g. from tests).
func (m *Machine) ROMPath() string { return m.romPath }

// ROMTitle returns the cartridge header's title field, or "" if no ROM is
// loaded.
func (m *Machine) ROMTitle() string {
	if m.cart == nil {
		return ""
	}
	return m.cart.Header().Title
}

// SetKeys applies the host's current button state.
func (m *Machine) SetKeys(b Buttons) {
	if m.bus != nil {
		m.bus.SetKeys(b.mask())
	}
}

// Reset reinitializes CPU, Bus, PPU and Scheduler atomically. hard rebuilds
// the Bus (and with it every mapped RAM region, which a fresh *bus.Bus
// always starts zeroed) and the PPU; soft keeps the existing Bus/PPU/RAM
// contents and only reinitializes the CPU and Scheduler, matching real
// hardware's soft-reset SWI, which never touches WRAM.
func (m *Machine) Reset(hard bool) {
	if !m.hasROM {
		return
	}
	if hard || m.bus == nil {
		m.ppu = ppu.New()
		m.bus = bus.New(m.cart, m.ppu, m.sched)
		if m.biosImage != nil {
			m.bus.LoadBIOS(m.biosImage)
		}
	}
	m.sched.Reset()
	m.hleState = hlebios.State{}

	if m.core == nil {
		m.core = cpu.NewCore(m.bus)
	} else {
		m.core.SetBus(m.bus)
		m.core.Reset()
	}

	if m.cfg.SkipBIOS || !m.bus.HasBIOS() {
		m.enterCartridgeDirectly()
	}
}

// enterCartridgeDirectly synthesizes the CPU state a real BIOS boot would
// have left behind just before jumping to the cartridge, for the case
// where there is no BIOS to run that boot code: System mode (the mode
// games' own crt0 runs in), ARM state, IRQ/FIQ masked exactly as the real
// BIOS leaves them (a game's startup code unmasks IRQs itself), PC at the
// fixed cartridge entry point. The banked stack pointers Core.Reset
// already set (SP_svc/SP_irq/SP_usr) are real BIOS-boot values and are
// left untouched.
func (m *Machine) enterCartridgeDirectly() {
	m.core.SetCPSR(uint32(cpu.ModeSYS) | cpu.FlagI | cpu.FlagF)
	m.core.SetPC(cartridgeEntry)
}

// RunCycles advances the machine by approximately n cycles, stopping at
// the next instruction boundary at or after n.
func (m *Machine) RunCycles(n int) {
	spent := 0
	for spent < n {
		spent += m.step()
	}
}

// RunUntilFrame advances the machine until the PPU has produced one full
// frame, returning the framebuffer for that frame. This is the single
// stepping loop: step the CPU, let the bus/scheduler advance, watch for
// the VBlank edge.
func (m *Machine) RunUntilFrame() []uint16 {
	for {
		m.step()
		if m.bus.ConsumeVBlank() {
			fb := m.Framebuffer()
			if m.frameSink != nil {
				m.frameSink.PushFrame(fb)
			}
			return fb
		}
	}
}

// step executes exactly one CPU instruction (or services one HLE BIOS
// call in its place) and ticks every peripheral by the same number of
// cycles, keeping the bus in lockstep with the CPU. Any DMA transfer
// triggered along the way — by the instruction's own register write, or by
// an HBlank/VBlank event inside Tick — stole the bus from the CPU for its
// own duration, so that stall is folded into the cycle count charged here.
func (m *Machine) step() int {
	cyc := m.core.Step()
	m.interceptHLE()
	m.bus.Tick(cyc)
	cyc += m.bus.ConsumeDMAStall()
	return cyc
}

// interceptHLE recognizes the two vectors Step just vectored the CPU to
// when no real BIOS backs them (SWI and IRQ), runs the equivalent HLE
// routine, and performs the exception return a real handler would have
// ended with — all before the next Step would otherwise fetch the
// (all-zero, nonexistent) "BIOS" bytes at that address.
func (m *Machine) interceptHLE() {
	if m.bus.HasBIOS() {
		return
	}
	switch {
	case m.core.PC() == cpu.VectorSWI && m.core.Mode() == cpu.ModeSVC:
		number := m.core.LastSWI()
		hlebios.Dispatch(m.core, m.bus, &m.hleState, number)
		if number == hlebios.SWISoftReset {
			// softReset already reinitialized the core via Core.Reset; LR/SPSR
			// are stale pre-reset values, so the usual SWI return sequence
			// would clobber the fresh state. Re-enter the same way a hard
			// Reset does instead of returning to the caller.
			m.enterCartridgeDirectly()
			return
		}
		m.core.ReturnFromSWI()
	case m.core.PC() == cpu.VectorIRQ && m.core.Mode() == cpu.ModeIRQ:
		pending := m.bus.PendingIRQs()
		m.bus.AckIRQs(pending)
		// Step already un-halted the core to deliver this IRQ. If it was
		// blocked in IntrWait on a specific mask and this interrupt isn't
		// one of the ones it's waiting for, put it back to sleep exactly
		// as the real BIOS's interrupt handler would by not clearing its
		// wait flag.
		if m.hleState.Waiting() && !m.hleState.Notify(pending) {
			m.core.Halt()
		}
		m.core.ReturnFromIRQ()
	}
}

// Framebuffer returns the most recently completed frame, 240x160 BGR555
// pixels.
func (m *Machine) Framebuffer() []uint16 { return m.bus.Framebuffer() }

// Width and Height are the fixed GBA screen dimensions.
func (m *Machine) Width() int  { return screenWidth }
func (m *Machine) Height() int { return screenHeight }
