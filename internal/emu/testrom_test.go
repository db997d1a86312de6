package emu

import (
	"image/color"
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/dskellund/gbacore/internal/bus"
	"github.com/dskellund/gbacore/internal/cpu"
)

// blankROM returns a minimal, header-valid-enough ROM image: cart.New only
// requires enough bytes to read the fixed header fields, it never rejects
// a missing Nintendo logo or bad checksum (homebrew and test ROMs routinely
// fail both).
func blankROM(size int) []byte {
	if size < 0xC0 {
		size = 0xC0
	}
	return make([]byte, size)
}

// TestHLEBootEntersCartridgeDirectly covers the no-BIOS boot path: with no
// BIOS image loaded, Reset must synthesize the post-boot state a
// real BIOS would have left (System mode, ARM state, IRQ/FIQ masked, PC at
// the cartridge entry point) rather than vectoring through BIOS code that
// doesn't exist.
func TestHLEBootEntersCartridgeDirectly(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(blankROM(0x1000)); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if got := m.core.Mode(); got != cpu.ModeSYS {
		t.Fatalf("mode = %#x, want ModeSYS", got)
	}
	if m.core.Thumb() {
		t.Fatalf("expected ARM state on cartridge entry")
	}
	if !m.core.IRQDisabled() || !m.core.FIQDisabled() {
		t.Fatalf("expected IRQ and FIQ masked on cartridge entry, matching real BIOS handoff")
	}
	if got := m.core.PC(); got != cartridgeEntry {
		t.Fatalf("PC = %#08x, want %#08x", got, cartridgeEntry)
	}
}

// TestRealBIOSBootPath covers the real-BIOS boot path: loading a real
// dumped BIOS image and running a short burst of cycles should leave
// the CPU executing inside the BIOS's own reset path, in SVC mode with
// IRQs masked, instead of being intercepted by the HLE path at all.
// Skipped unless a real (legally obtained) BIOS dump is made available,
// since none can be bundled with this repository.
func TestRealBIOSBootPath(t *testing.T) {
	path := os.Getenv("GBA_BIOS_PATH")
	if path == "" {
		t.Skip("set GBA_BIOS_PATH to a 16 KiB GBA BIOS dump to run this scenario")
	}
	img, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read bios: %v", err)
	}
	m := New(Config{})
	if err := m.LoadROM(blankROM(0x1000)); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	if err := m.LoadBIOS(img); err != nil {
		t.Fatalf("LoadBIOS: %v", err)
	}
	m.RunCycles(0x200)
	if m.core.Mode() != cpu.ModeSVC {
		t.Fatalf("mode = %#x, want ModeSVC", m.core.Mode())
	}
	if !m.core.IRQDisabled() {
		t.Fatalf("expected CPSR.I == 1 early in the BIOS reset path")
	}
	if m.core.PC() >= biosImageSize {
		t.Fatalf("PC = %#08x, expected still executing inside the BIOS image", m.core.PC())
	}
}

// TestARMInstructionTestSuite runs the jsmolka/gba-tests arm.gba test ROM
// to completion and checks its known-good center pixel. Skipped unless
// both the image and its expected pixel value (taken
// from a verified run, recorded as a BGR555 hex value) are supplied, since
// neither can be bundled here.
func TestARMInstructionTestSuite(t *testing.T) {
	romPath := os.Getenv("GBA_ARM_TESTROM")
	expectedHex := os.Getenv("GBA_ARM_EXPECTED_PIXEL")
	if romPath == "" || expectedHex == "" {
		t.Skip("set GBA_ARM_TESTROM and GBA_ARM_EXPECTED_PIXEL to run this scenario")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		t.Fatalf("read rom: %v", err)
	}
	expected, err := strconv.ParseUint(strings.TrimPrefix(expectedHex, "0x"), 16, 16)
	if err != nil {
		t.Fatalf("parse GBA_ARM_EXPECTED_PIXEL: %v", err)
	}

	m := New(Config{SkipBIOS: true})
	if err := m.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	var fb []uint16
	for i := 0; i < 60; i++ {
		fb = m.RunUntilFrame()
	}
	cx, cy := screenWidth/2, screenHeight/2
	got := fb[cy*screenWidth+cx]
	if got != uint16(expected) {
		t.Fatalf("center pixel after 60 frames = %#04x, want %#04x", got, expected)
	}
}

// TestCPUInstrGoldenDump checks a CPU instruction test ROM's final register
// state against a golden dump. GBA_CPU_INSTR_GOLDEN is 15
// comma-separated hex uint32 values: R0..R13, CPSR (R14/R15 excluded since
// their exact post-test-harness values are more a property of the test
// ROM's own call/loop structure than of instruction correctness).
func TestCPUInstrGoldenDump(t *testing.T) {
	romPath := os.Getenv("GBA_CPU_INSTR_TESTROM")
	golden := os.Getenv("GBA_CPU_INSTR_GOLDEN")
	if romPath == "" || golden == "" {
		t.Skip("set GBA_CPU_INSTR_TESTROM and GBA_CPU_INSTR_GOLDEN to run this scenario")
	}
	rom, err := os.ReadFile(romPath)
	if err != nil {
		t.Fatalf("read rom: %v", err)
	}
	want := strings.Split(golden, ",")
	if len(want) != 15 {
		t.Fatalf("GBA_CPU_INSTR_GOLDEN has %d fields, want 15 (R0-R13, CPSR)", len(want))
	}

	m := New(Config{SkipBIOS: true})
	if err := m.LoadROM(rom); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	m.RunCycles(1048576)

	for i := 0; i < 14; i++ {
		wantV, err := strconv.ParseUint(strings.TrimSpace(want[i]), 16, 32)
		if err != nil {
			t.Fatalf("parse golden field %d: %v", i, err)
		}
		if got := m.core.R(i); got != uint32(wantV) {
			t.Fatalf("R%d = %#08x, want %#08x", i, got, wantV)
		}
	}
	wantCPSR, err := strconv.ParseUint(strings.TrimSpace(want[14]), 16, 32)
	if err != nil {
		t.Fatalf("parse golden CPSR: %v", err)
	}
	if got := m.core.CPSR(); got != uint32(wantCPSR) {
		t.Fatalf("CPSR = %#08x, want %#08x", got, wantCPSR)
	}
}

// TestMode4BitmapBlitMatchesPaletteLookup is fully self-contained: it
// drives the bus/PPU directly the way a game's VBlank handler would, with
// no CPU execution involved.
func TestMode4BitmapBlitMatchesPaletteLookup(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(blankROM(0x1000)); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	b := m.bus

	for i := 0; i < 256; i++ {
		c := color.RGBA{R: uint8(i), G: uint8(255 - i), B: uint8(i / 2), A: 0xFF}
		bgr555 := rgbaToBGR555(c)
		b.Write16(0x05000000+uint32(i)*2, bgr555, cpu.NonSeqData)
	}

	for y := 0; y < screenHeight; y++ {
		// The bus duplicates a byte write to VRAM into both bytes of its
		// halfword, so each pair of pixels is written as one halfword.
		for x := 0; x < screenWidth; x += 2 {
			lo := uint16((x + y) & 0xFF)
			hi := uint16((x + 1 + y) & 0xFF)
			b.Write16(0x06000000+uint32(y*screenWidth+x), lo|hi<<8, cpu.NonSeqData)
		}
	}

	b.Write16(0x04000000+0x20, 0x0100, cpu.NonSeqData) // BG2PA identity
	b.Write16(0x04000000+0x26, 0x0100, cpu.NonSeqData) // BG2PD identity
	b.Write16(0x04000000, 0x0404, cpu.NonSeqData)      // mode 4, BG2 enable

	b.Tick(280896) // one full frame (228 lines * 1232 cycles/line)

	fb := b.Framebuffer()
	for y := 0; y < screenHeight; y++ {
		for x := 0; x < screenWidth; x++ {
			idx := (x + y) & 0xFF
			c := color.RGBA{R: uint8(idx), G: uint8(255 - idx), B: uint8(idx / 2), A: 0xFF}
			want := rgbaToBGR555(c)
			got := fb[y*screenWidth+x]
			if got != want {
				t.Fatalf("pixel (%d,%d) = %#04x, want %#04x", x, y, got, want)
			}
		}
	}
}

func rgbaToBGR555(c color.RGBA) uint16 {
	r := uint16(c.R) >> 3
	g := uint16(c.G) >> 3
	bl := uint16(c.B) >> 3
	return r | g<<5 | bl<<10
}

// TestTimerOverflowRaisesIRQ is self-contained: timer 0 at
// prescaler 1024 reloaded from 0xFFFF overflows every 1024 cycles, each
// time reloading the counter back to 0xFFFF rather than leaving it at 0
// (hardware always reloads on overflow; the counter is only ever
// momentarily 0 internally). Running for 1024*2 cycles crosses that
// overflow point twice, so the steady-state value to assert is the
// reload value, not 0.
func TestTimerOverflowRaisesIRQ(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(blankROM(0x1000)); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	b := m.bus

	b.Write16(0x04000100, 0xFFFF, cpu.NonSeqData)            // TM0CNT_L reload
	b.Write16(0x04000102, (1<<7)|(1<<6)|0x3, cpu.NonSeqData) // enable, IRQ, prescaler /1024
	b.Write16(0x04000200, bus.IRQTimer0, cpu.NonSeqData)     // IE
	b.Write16(0x04000208, 1, cpu.NonSeqData)                 // IME

	b.Tick(1024 * 2)

	if pending := b.PendingIRQs(); pending&bus.IRQTimer0 == 0 {
		t.Fatalf("IE&IF = %#04x, want IRQTimer0 set", pending)
	}
	if v, _ := b.Read16(0x04000100, cpu.NonSeqData); v != 0xFFFF {
		t.Fatalf("TM0CNT_L after overflow = %#04x, want reload value 0xFFFF", v)
	}
}

// TestDMA3ImmediateTransferCopiesBytes checks that an immediate-start DMA3
// from EWRAM to VRAM of 256 halfwords delivers byte-identical data. This
// model runs a triggered DMA transfer synchronously inside the register
// write that enables it; Machine.step charges its cost to the triggering
// CPU step via Bus.ConsumeDMAStall, which this test, driving the bus
// directly, does not exercise (see DESIGN.md).
func TestDMA3ImmediateTransferCopiesBytes(t *testing.T) {
	m := New(Config{})
	if err := m.LoadROM(blankROM(0x1000)); err != nil {
		t.Fatalf("LoadROM: %v", err)
	}
	b := m.bus

	const src = 0x02000000 + 0x1000
	const dst = 0x06000000
	for i := 0; i < 256; i++ {
		b.Write16(src+uint32(i)*2, uint16(0xAA00+i), cpu.NonSeqData)
	}

	b.Write16(0x040000D4, uint16(src), cpu.NonSeqData)
	b.Write16(0x040000D6, uint16(src>>16), cpu.NonSeqData)
	b.Write16(0x040000D8, uint16(dst), cpu.NonSeqData)
	b.Write16(0x040000DA, uint16(dst>>16), cpu.NonSeqData)
	b.Write16(0x040000DC, 256, cpu.NonSeqData)
	b.Write16(0x040000DE, 1<<15, cpu.NonSeqData) // enable, immediate timing, word size 0

	for i := 0; i < 256; i++ {
		want := uint16(0xAA00 + i)
		got, _ := b.Read16(dst+uint32(i)*2, cpu.NonSeqData)
		if got != want {
			t.Fatalf("vram[%d] = %#04x, want %#04x", i, got, want)
		}
	}
}
