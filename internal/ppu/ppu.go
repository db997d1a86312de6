// Package ppu implements the GBA picture processing unit: the scanline
// state machine, the six background/bitmap video modes, object (sprite)
// rasterization, windowing, and color special effects.
package ppu

import (
	"bytes"
	"encoding/gob"
	"fmt"
)

const (
	screenWidth  = 240
	screenHeight = 160

	cyclesPerDot    = 4
	dotsPerLine     = 308
	cyclesPerLine   = cyclesPerDot * dotsPerLine
	hblankStartDot  = 240
	hblankStartCyc  = hblankStartDot * cyclesPerDot
	linesPerFrame   = 228
	vblankStartLine = 160
)

// PPU owns display-control/status registers, background/object control
// registers, and the 240x160 BGR555 frame buffer. VRAM/OAM/Palette RAM
// themselves are owned by internal/bus (matching the rest of the memory
// map, which the bus decodes directly) and handed to Tick as plain byte
// slices for rendering, keeping this package a pure function of register
// state plus whatever memory image it is given.
type PPU struct {
	dispcnt  uint16
	dispstat uint16
	vcount   uint16

	bgcnt  [4]uint16
	bghofs [4]uint16
	bgvofs [4]uint16

	// BG2/BG3 affine parameters, index 0 = BG2, 1 = BG3.
	bgpa, bgpb, bgpc, bgpd   [2]int16
	bgxRaw, bgyRaw           [2]uint32
	bgxInternal, bgyInternal [2]int32

	win0h, win1h, win0v, win1v uint16
	winin, winout              uint16
	mosaic                     uint16
	bldcnt, bldalpha, bldy     uint16

	lineCycle int

	frame [screenWidth * screenHeight]uint16
}

func New() *PPU {
	return &PPU{}
}

// Framebuffer returns the current finished frame as BGR555 pixels,
// row-major, 240 wide by 160 tall. The caller must treat this as read-only
// until the next VBlank.
func (p *PPU) Framebuffer() []uint16 { return p.frame[:] }

// Tick advances the scanline state machine by n cycles given the current
// VRAM/OAM/Palette RAM images, rendering any scanline whose HBlank point
// is crossed. It returns any IE/IF bits that became due and any DMA
// start-timing codes (HBlank/VBlank) that just occurred, for the bus to
// forward to RaiseIRQ/RunDMATrigger.
func (p *PPU) Tick(n int, vram, oam, pram []byte) (irqs []uint16, dmaTimings []uint16) {
	for n > 0 {
		step := n
		if rem := cyclesPerLine - p.lineCycle; rem < step {
			step = rem
		}
		if p.lineCycle < hblankStartCyc {
			if rem := hblankStartCyc - p.lineCycle; rem < step {
				step = rem
			}
		}
		p.lineCycle += step
		n -= step

		if p.lineCycle == hblankStartCyc {
			if p.vcount < vblankStartLine {
				p.renderScanline(int(p.vcount), vram, oam, pram)
				dmaTimings = append(dmaTimings, dmaTimingHBlank)
			}
			p.dispstat |= 1 << 1
			if p.dispstat&(1<<4) != 0 {
				irqs = append(irqs, irqHBlank)
			}
		}

		if p.lineCycle >= cyclesPerLine {
			p.lineCycle -= cyclesPerLine
			p.dispstat &^= 1 << 1
			p.vcount++

			if p.vcount == vblankStartLine {
				p.dispstat |= 1 << 0
				dmaTimings = append(dmaTimings, dmaTimingVBlank)
				if p.dispstat&(1<<3) != 0 {
					irqs = append(irqs, irqVBlank)
				}
				p.latchAffineRefs()
			} else if p.vcount >= linesPerFrame {
				p.vcount = 0
				p.dispstat &^= 1 << 0
			} else if p.vcount < vblankStartLine {
				p.advanceAffineRefs()
			}

			if p.vcount == uint16(p.dispstat>>8) {
				p.dispstat |= 1 << 2
				if p.dispstat&(1<<5) != 0 {
					irqs = append(irqs, irqVCount)
				}
			} else {
				p.dispstat &^= 1 << 2
			}
		}
	}
	return irqs, dmaTimings
}

// latchAffineRefs reloads BG2/BG3's internal affine reference point from
// the programmer-visible BGxX/Y registers. Hardware does this at VBlank
// start so each frame's affine sweep starts from the register value
// regardless of drift accumulated by advanceAffineRefs during the
// previous frame.
func (p *PPU) latchAffineRefs() {
	for i := 0; i < 2; i++ {
		p.bgxInternal[i] = signExtend28(p.bgxRaw[i])
		p.bgyInternal[i] = signExtend28(p.bgyRaw[i])
	}
}

// advanceAffineRefs applies each affine BG's per-line step (PB for X, PD
// for Y) to its internal reference point at the end of each line.
func (p *PPU) advanceAffineRefs() {
	for i := 0; i < 2; i++ {
		p.bgxInternal[i] += int32(p.bgpb[i])
		p.bgyInternal[i] += int32(p.bgpd[i])
	}
}

func signExtend28(raw uint32) int32 {
	return int32(raw<<4) >> 4
}

// PPUSnapshot is the gob envelope for the PPU's share of a save state: the
// internal latched affine refs plus every register and the in-flight
// scanline position.
type PPUSnapshot struct {
	Version                  int
	Dispcnt, Dispstat        uint16
	Vcount                   uint16
	Bgcnt, Bghofs, Bgvofs    [4]uint16
	Bgpa, Bgpb, Bgpc, Bgpd   [2]int16
	BgxRaw, BgyRaw           [2]uint32
	BgxInternal, BgyInternal [2]int32
	Win0h, Win1h             uint16
	Win0v, Win1v             uint16
	Winin, Winout            uint16
	Mosaic                   uint16
	Bldcnt, Bldalpha, Bldy   uint16
	LineCycle                int
	Frame                    []uint16
}

const ppuSnapshotVersion = 1

func (p *PPU) Snapshot() PPUSnapshot {
	return PPUSnapshot{
		Version: ppuSnapshotVersion,
		Dispcnt: p.dispcnt, Dispstat: p.dispstat, Vcount: p.vcount,
		Bgcnt: p.bgcnt, Bghofs: p.bghofs, Bgvofs: p.bgvofs,
		Bgpa: p.bgpa, Bgpb: p.bgpb, Bgpc: p.bgpc, Bgpd: p.bgpd,
		BgxRaw: p.bgxRaw, BgyRaw: p.bgyRaw,
		BgxInternal: p.bgxInternal, BgyInternal: p.bgyInternal,
		Win0h: p.win0h, Win1h: p.win1h, Win0v: p.win0v, Win1v: p.win1v,
		Winin: p.winin, Winout: p.winout, Mosaic: p.mosaic,
		Bldcnt: p.bldcnt, Bldalpha: p.bldalpha, Bldy: p.bldy,
		LineCycle: p.lineCycle,
		Frame:     append([]uint16(nil), p.frame[:]...),
	}
}

func (p *PPU) Restore(s PPUSnapshot) error {
	if s.Version != ppuSnapshotVersion {
		return fmt.Errorf("ppu: snapshot version mismatch: got %d, want %d", s.Version, ppuSnapshotVersion)
	}
	p.dispcnt, p.dispstat, p.vcount = s.Dispcnt, s.Dispstat, s.Vcount
	p.bgcnt, p.bghofs, p.bgvofs = s.Bgcnt, s.Bghofs, s.Bgvofs
	p.bgpa, p.bgpb, p.bgpc, p.bgpd = s.Bgpa, s.Bgpb, s.Bgpc, s.Bgpd
	p.bgxRaw, p.bgyRaw = s.BgxRaw, s.BgyRaw
	p.bgxInternal, p.bgyInternal = s.BgxInternal, s.BgyInternal
	p.win0h, p.win1h, p.win0v, p.win1v = s.Win0h, s.Win1h, s.Win0v, s.Win1v
	p.winin, p.winout, p.mosaic = s.Winin, s.Winout, s.Mosaic
	p.bldcnt, p.bldalpha, p.bldy = s.Bldcnt, s.Bldalpha, s.Bldy
	p.lineCycle = s.LineCycle
	copy(p.frame[:], s.Frame)
	return nil
}

func EncodeSnapshot(s PPUSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("ppu: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (PPUSnapshot, error) {
	var s PPUSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return PPUSnapshot{}, fmt.Errorf("ppu: decode snapshot: %w", err)
	}
	return s, nil
}
