package ppu

import "testing"

func newTestMemories() (vram, oam, pram []byte) {
	return make([]byte, 96*1024), make([]byte, 1024), make([]byte, 1024)
}

func TestDispcntRegisterRoundTrip(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPCNT, 0x0403)
	if got := p.CPURead16(regDISPCNT); got != 0x0403 {
		t.Fatalf("DISPCNT = %#04x, want 0x0403", got)
	}
}

func TestDispstatStatusBitsAreReadOnly(t *testing.T) {
	p := New()
	p.dispstat = 0x0001 // simulate hardware-set VBlank flag
	p.CPUWrite16(regDISPSTAT, 0xFFF8)
	if p.dispstat&0x0007 != 0x0001 {
		t.Fatalf("status bits 0-2 were overwritten by a CPU write: got %#04x", p.dispstat)
	}
	if p.dispstat&0xFFF8 != 0xFFF8 {
		t.Fatalf("writable bits 3-15 not applied: got %#04x", p.dispstat)
	}
}

func TestVBlankIRQFiresAtLine160WhenEnabled(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPSTAT, 1<<3) // enable VBlank IRQ
	vram, oam, pram := newTestMemories()

	var allIRQs, allDMA []uint16
	for line := 0; line < 160; line++ {
		irqs, dmas := p.Tick(cyclesPerLine, vram, oam, pram)
		allIRQs = append(allIRQs, irqs...)
		allDMA = append(allDMA, dmas...)
	}
	if len(allIRQs) == 0 {
		t.Fatalf("no VBlank IRQ reported after 160 scanlines")
	}
	found := false
	for _, ev := range allIRQs {
		if ev == irqVBlank {
			found = true
		}
	}
	if !found {
		t.Fatalf("VBlank IRQ bit not present in reported events: %v", allIRQs)
	}
	foundDMA := false
	for _, d := range allDMA {
		if d == dmaTimingVBlank {
			foundDMA = true
		}
	}
	if !foundDMA {
		t.Fatalf("VBlank DMA timing not reported: %v", allDMA)
	}
}

func TestHBlankFlagTogglesWithinLine(t *testing.T) {
	p := New()
	vram, oam, pram := newTestMemories()
	p.Tick(hblankStartCyc, vram, oam, pram)
	if p.dispstat&(1<<1) == 0 {
		t.Fatalf("HBlank flag not set after reaching hblankStartCyc")
	}
	p.Tick(cyclesPerLine-hblankStartCyc, vram, oam, pram)
	if p.dispstat&(1<<1) != 0 {
		t.Fatalf("HBlank flag still set after wrapping to next line")
	}
}

func TestVCountMatchRaisesIRQWhenEnabled(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPSTAT, (5<<8)|(1<<5)) // VCount=5, IRQ enabled
	vram, oam, pram := newTestMemories()
	var allIRQs []uint16
	for line := 0; line < 6; line++ {
		irqs, _ := p.Tick(cyclesPerLine, vram, oam, pram)
		allIRQs = append(allIRQs, irqs...)
	}
	found := false
	for _, ev := range allIRQs {
		if ev == irqVCount {
			found = true
		}
	}
	if !found {
		t.Fatalf("VCount IRQ not raised when VCOUNT reached the configured match line")
	}
}

func TestMode3BitmapReadsVRAMDirectly(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPCNT, 0x0403) // mode 3, BG2 enabled
	p.CPUWrite16(regBG2PA, 0x0100)   // identity affine (1.0 in 8.8 fixed point)
	p.CPUWrite16(regBG2PD, 0x0100)
	vram, oam, pram := newTestMemories()
	vram[(5*screenWidth+10)*2] = 0x34
	vram[(5*screenWidth+10)*2+1] = 0x12

	// Drive through Tick so BG2's internal affine Y reference has advanced
	// to line 5 via PD before that scanline renders (the internal
	// reference, not the line index, is what the affine sampler reads).
	for line := 0; line < 6; line++ {
		p.Tick(cyclesPerLine, vram, oam, pram)
	}
	got := p.Framebuffer()[5*screenWidth+10]
	if got != 0x1234 {
		t.Fatalf("mode 3 pixel = %#04x, want 0x1234", got)
	}
}

func TestForcedBlankOutputsWhite(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPCNT, 1<<7)
	vram, oam, pram := newTestMemories()
	p.renderScanline(0, vram, oam, pram)
	for x := 0; x < screenWidth; x++ {
		if got := p.Framebuffer()[x]; got != 0x7FFF {
			t.Fatalf("forced-blank pixel %d = %#04x, want 0x7FFF", x, got)
		}
	}
}

func TestTextBGRendersOpaqueTilePixel(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPCNT, 0x0100) // mode 0, BG0 enabled
	p.CPUWrite16(regBG0CNT, 0x0000)  // char base 0, screen base 0, 4bpp, 32x32

	vram, oam, pram := newTestMemories()
	// Map entry (0,0) -> tile 1.
	vram[0], vram[1] = 1, 0
	// Tile 1 at char base 0 offset 0x20 (32 bytes/tile), pixel (0,0) = palette index 3.
	vram[0x20] = 0x03
	// Palette bank 0, index 3 -> BGR555 0x6318.
	pram[3*2] = 0x18
	pram[3*2+1] = 0x63

	p.renderScanline(0, vram, oam, pram)
	if got := p.Framebuffer()[0]; got != 0x6318 {
		t.Fatalf("BG0 pixel (0,0) = %#04x, want 0x6318", got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	p := New()
	p.CPUWrite16(regDISPCNT, 0x1234)
	p.vcount = 42
	snap := p.Snapshot()
	encoded, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}
	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	p2 := New()
	if err := p2.Restore(decoded); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if p2.dispcnt != 0x1234 || p2.vcount != 42 {
		t.Fatalf("restored state mismatch: dispcnt=%#04x vcount=%d", p2.dispcnt, p2.vcount)
	}
}
