// Package bus implements the GBA's memory-mapped address space: region
// decode, waitstate-aware cycle costing, the four DMA channels, the four
// cascaded timers, and the IE/IF/IME interrupt pathway the CPU polls every
// fetch boundary. It is the sole owner of WRAM/VRAM/OAM/Palette RAM and of
// the cartridge and PPU collaborators it forwards accesses to.
package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/dskellund/gbacore/internal/cart"
	"github.com/dskellund/gbacore/internal/cpu"
	"github.com/dskellund/gbacore/internal/ppu"
	"github.com/dskellund/gbacore/internal/scheduler"
)

// Region base addresses in the GBA's memory map.
const (
	addrBIOS    = 0x00000000
	addrEWRAM   = 0x02000000
	addrIWRAM   = 0x03000000
	addrIO      = 0x04000000
	addrPalette = 0x05000000
	addrVRAM    = 0x06000000
	addrOAM     = 0x07000000
	addrROM0    = 0x08000000
	addrSRAM    = 0x0E000000

	sizeEWRAM     = 256 * 1024
	sizeIWRAM     = 32 * 1024
	sizePalette   = 1024
	sizeVRAM      = 96 * 1024
	sizeOAM       = 1024
	sizeBIOS      = 16 * 1024
	romWindowSize = 32 * 1024 * 1024
)

// Bus is the CPU's memory and I/O hub.
type Bus struct {
	bios  []byte
	ewram [sizeEWRAM]byte
	iwram [sizeIWRAM]byte
	pram  [sizePalette]byte
	vram  [sizeVRAM]byte
	oam   [sizeOAM]byte

	cart  *cart.Cartridge
	ppu   *ppu.PPU
	sched *scheduler.Scheduler

	ie    uint16
	ifReg uint16
	ime   bool

	waitcnt uint16

	dma         [4]dmaChannel
	dmaLatch    uint32 // destination address after the most recent DMA transfer; no read path returns it (out-of-range reads return lastOpcode)
	dmaStallCyc int    // accumulated CPU-stall cycles from DMA transfers not yet folded into a Step's cycle count

	timers [4]timerChannel

	keyinput uint16 // active-low 10-key state, as read at 0x04000130

	lastOpcode uint32 // openbus fallback

	vblankStarted bool // edge-triggered, cleared by ConsumeVBlank
}

// New constructs a Bus wired to the given cartridge and PPU, with an empty
// (HLE-only) BIOS image until LoadBIOS is called.
func New(c *cart.Cartridge, p *ppu.PPU, sched *scheduler.Scheduler) *Bus {
	return &Bus{cart: c, ppu: p, sched: sched, keyinput: 0x03FF}
}

// LoadBIOS installs a real BIOS image; if never called the orchestrator's
// HLE BIOS substitutes for it.
func (b *Bus) LoadBIOS(img []byte) {
	b.bios = make([]byte, sizeBIOS)
	copy(b.bios, img)
}

// SetKeys updates the active-low 10-key input register from a pressed-key
// bitmask (1 = pressed). Keypad interrupt conditions (KEYCNT) are not
// evaluated.
func (b *Bus) SetKeys(pressedMask uint16) {
	b.keyinput = (^pressedMask) & 0x3FF
}

// Framebuffer returns the PPU's current finished frame.
func (b *Bus) Framebuffer() []uint16 { return b.ppu.Framebuffer() }

// RaiseIRQ sets the IF bit(s) given by mask. Called by the PPU (HBlank,
// VBlank, VCount match) and by the bus's own timer/DMA logic.
func (b *Bus) RaiseIRQ(mask uint16) { b.ifReg |= mask }

// IRQLine implements cpu.Bus: reports (IE & IF) != 0, gated by IME. The
// CPU combines this with CPSR.I itself at the fetch boundary.
func (b *Bus) IRQLine() bool { return b.ime && b.ie&b.ifReg != 0 }

// Tick advances DMA and timers by n cycles, the same cycle count the CPU
// just reported for its last Step, and forwards the same span to the PPU.
// Called by the orchestrator after every cpu.Core.Step.
func (b *Bus) Tick(n int) {
	for ch := 0; ch < 4; ch++ {
		b.tickTimer(ch, n)
	}
	if b.ppu != nil {
		irqs, dmaTimings := b.ppu.Tick(n, b.vram[:], b.oam[:], b.pram[:])
		for _, ev := range irqs {
			b.RaiseIRQ(ev)
		}
		for _, timing := range dmaTimings {
			b.RunDMATrigger(timing)
			if timing == dmaTimingVBlank {
				b.vblankStarted = true
			}
		}
	}
}

// ConsumeVBlank reports whether a VBlank edge has occurred since the last
// call and clears the flag. The orchestrator polls this after every Tick
// to find the frame boundary RunUntilFrame stops at.
func (b *Bus) ConsumeVBlank() bool {
	v := b.vblankStarted
	b.vblankStarted = false
	return v
}

// HasBIOS reports whether a real BIOS image is installed. internal/emu
// uses this to decide whether the SWI/IRQ vectors should run real code or
// be served by internal/hlebios instead.
func (b *Bus) HasBIOS() bool { return b.bios != nil }

// PendingIRQs reports the currently enabled-and-flagged interrupt bits
// (IE & IF), independent of IME.
func (b *Bus) PendingIRQs() uint16 { return b.ie & b.ifReg }

// AckIRQs clears the given IF bits, the same effect a real handler's
// write-1-to-clear to REG_IF has. Used by the HLE IRQ path, which stands
// in for that handler when no real BIOS is loaded.
func (b *Bus) AckIRQs(mask uint16) { b.ifReg &^= mask }

// ConsumeDMAStall returns the CPU-stall cycles any DMA transfer run since
// the last call accumulated, and resets the counter. A DMA channel steals
// the bus from the CPU for the length of its own transfer; the orchestrator
// folds this into the cycle count it charges for the Step that triggered
// (directly, or via an HBlank/VBlank event) the transfer.
func (b *Bus) ConsumeDMAStall() int {
	v := b.dmaStallCyc
	b.dmaStallCyc = 0
	return v
}

// region classifies a physical address for decode and cycle costing.
type region int

const (
	regionBIOS region = iota
	regionEWRAM
	regionIWRAM
	regionIO
	regionPalette
	regionVRAM
	regionOAM
	regionROM
	regionSRAM
	regionOpenBus
)

func decode(addr uint32) (region, uint32) {
	switch {
	case addr < addrEWRAM:
		return regionBIOS, addr
	case addr < addrIWRAM:
		return regionEWRAM, (addr - addrEWRAM) % sizeEWRAM
	case addr < addrIO:
		return regionIWRAM, (addr - addrIWRAM) % sizeIWRAM
	case addr < addrPalette:
		return regionIO, addr - addrIO
	case addr < addrVRAM:
		return regionPalette, (addr - addrPalette) % sizePalette
	case addr < addrOAM:
		off := (addr - addrVRAM) % 0x20000
		if off >= sizeVRAM {
			off -= 0x8000
		}
		return regionVRAM, off
	case addr < addrROM0:
		return regionOAM, (addr - addrOAM) % sizeOAM
	case addr < addrSRAM:
		return regionROM, (addr - addrROM0) % romWindowSize
	case addr < addrSRAM+0x10000:
		return regionSRAM, addr - addrSRAM
	default:
		return regionOpenBus, addr
	}
}

// waitStates returns the cycle cost of one access to region at the given
// width, honoring WAITCNT's per-region non-sequential/sequential split.
func (b *Bus) waitStates(r region, acc cpu.Access, width int) int {
	switch r {
	case regionBIOS, regionIWRAM, regionOAM, regionIO:
		return 1
	case regionEWRAM:
		return 3
	case regionPalette, regionVRAM:
		if width == 32 {
			return 2
		}
		return 1
	case regionROM:
		return b.romWait(acc, width)
	case regionSRAM:
		return waitN[b.waitcnt&0x3] + 1
	default:
		return 1
	}
}

var waitN = [4]int{4, 3, 2, 8}  // WAITCNT non-sequential wait codes 0..3
var waitS0 = [2]int{2, 1}       // WS0 sequential wait, selected by WAITCNT bit 4
var waitS1 = [2]int{4, 1}       // WS1 sequential wait, bit 7
var waitS2 = [2]int{8, 1}       // WS2 sequential wait, bit 10

func (b *Bus) romWait(acc cpu.Access, width int) int {
	n := int((b.waitcnt >> 2) & 0x3)
	s := int((b.waitcnt >> 4) & 0x1)
	cost := waitN[n]
	if acc.Seq {
		cost = waitS0[s]
	}
	if width == 32 {
		cost += waitS0[s]
	}
	return cost + 1
}

// Read8 implements cpu.Bus.
func (b *Bus) Read8(addr uint32, acc cpu.Access) (byte, int) {
	r, off := decode(addr)
	cost := b.waitStates(r, acc, 8)
	switch r {
	case regionBIOS:
		return readByte(b.bios, off), cost
	case regionEWRAM:
		return b.ewram[off], cost
	case regionIWRAM:
		return b.iwram[off], cost
	case regionPalette:
		return b.pram[off], cost
	case regionVRAM:
		return b.vram[off], cost
	case regionOAM:
		return b.oam[off], cost
	case regionIO:
		return byte(b.readIO16(off &^ 1) >> ((off & 1) * 8)), cost
	case regionROM:
		lo := b.cart.Read16(off &^ 1)
		return byte(lo >> ((off & 1) * 8)), cost
	case regionSRAM:
		return b.cart.ReadSRAM(off), cost
	default:
		return byte(b.lastOpcode), cost
	}
}

func readByte(buf []byte, off uint32) byte {
	if int(off) >= len(buf) {
		return 0
	}
	return buf[off]
}

// Read16 implements cpu.Bus.
func (b *Bus) Read16(addr uint32, acc cpu.Access) (uint16, int) {
	addr &^= 1
	r, off := decode(addr)
	cost := b.waitStates(r, acc, 16)
	switch r {
	case regionBIOS:
		return le16(b.bios, off), cost
	case regionEWRAM:
		return le16(b.ewram[:], off), cost
	case regionIWRAM:
		return le16(b.iwram[:], off), cost
	case regionPalette:
		return le16(b.pram[:], off), cost
	case regionVRAM:
		return le16(b.vram[:], off), cost
	case regionOAM:
		return le16(b.oam[:], off), cost
	case regionIO:
		return b.readIO16(off), cost
	case regionROM:
		return b.cart.Read16(off), cost
	case regionSRAM:
		v := uint16(b.cart.ReadSRAM(off))
		return v | v<<8, cost
	default:
		return uint16(b.lastOpcode), cost
	}
}

// Read32 implements cpu.Bus.
func (b *Bus) Read32(addr uint32, acc cpu.Access) (uint32, int) {
	addr &^= 3
	r, off := decode(addr)
	cost := b.waitStates(r, acc, 32)
	switch r {
	case regionBIOS:
		return le32(b.bios, off), cost
	case regionEWRAM:
		return le32(b.ewram[:], off), cost
	case regionIWRAM:
		return le32(b.iwram[:], off), cost
	case regionPalette:
		return le32(b.pram[:], off), cost
	case regionVRAM:
		return le32(b.vram[:], off), cost
	case regionOAM:
		return le32(b.oam[:], off), cost
	case regionIO:
		lo := uint32(b.readIO16(off))
		hi := uint32(b.readIO16(off + 2))
		return lo | hi<<16, cost
	case regionROM:
		return b.cart.Read32(off), cost
	case regionSRAM:
		v := uint32(b.cart.ReadSRAM(off))
		return v | v<<8 | v<<16 | v<<24, cost
	default:
		return b.lastOpcode, cost
	}
}

func le16(buf []byte, off uint32) uint16 {
	if int(off)+1 >= len(buf) {
		return 0
	}
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

func le32(buf []byte, off uint32) uint32 {
	if int(off)+3 >= len(buf) {
		return 0
	}
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}

// Write8 implements cpu.Bus. OAM drops byte writes and VRAM duplicates the
// byte into both halves of its containing halfword, matching hardware.
func (b *Bus) Write8(addr uint32, v byte, acc cpu.Access) int {
	r, off := decode(addr)
	cost := b.waitStates(r, acc, 8)
	switch r {
	case regionEWRAM:
		b.ewram[off] = v
	case regionIWRAM:
		b.iwram[off] = v
	case regionPalette:
		writeByteDup16(b.pram[:], off, v)
	case regionVRAM:
		writeByteDup16(b.vram[:], off, v)
	case regionOAM:
		// dropped: OAM only accepts 16/32-bit writes on real hardware
	case regionIO:
		cur := b.readIO16(off &^ 1)
		if off&1 == 0 {
			cur = (cur &^ 0xFF) | uint16(v)
		} else {
			cur = (cur &^ 0xFF00) | uint16(v)<<8
		}
		b.writeIO16(off&^1, cur)
	case regionSRAM:
		b.cart.WriteSRAM(off, v)
	}
	return cost
}

func writeByteDup16(buf []byte, off uint32, v byte) {
	base := off &^ 1
	if int(base)+1 >= len(buf) {
		return
	}
	buf[base] = v
	buf[base+1] = v
}

// Write16 implements cpu.Bus.
func (b *Bus) Write16(addr uint32, v uint16, acc cpu.Access) int {
	addr &^= 1
	r, off := decode(addr)
	cost := b.waitStates(r, acc, 16)
	switch r {
	case regionEWRAM:
		putLE16(b.ewram[:], off, v)
	case regionIWRAM:
		putLE16(b.iwram[:], off, v)
	case regionPalette:
		putLE16(b.pram[:], off, v)
	case regionVRAM:
		putLE16(b.vram[:], off, v)
	case regionOAM:
		putLE16(b.oam[:], off, v)
	case regionIO:
		b.writeIO16(off, v)
	case regionSRAM:
		b.cart.WriteSRAM(off, byte(v))
	}
	return cost
}

// Write32 implements cpu.Bus.
func (b *Bus) Write32(addr uint32, v uint32, acc cpu.Access) int {
	addr &^= 3
	r, off := decode(addr)
	cost := b.waitStates(r, acc, 32)
	switch r {
	case regionEWRAM:
		putLE32(b.ewram[:], off, v)
	case regionIWRAM:
		putLE32(b.iwram[:], off, v)
	case regionPalette:
		putLE32(b.pram[:], off, v)
	case regionVRAM:
		putLE32(b.vram[:], off, v)
	case regionOAM:
		putLE32(b.oam[:], off, v)
	case regionIO:
		b.writeIO16(off, uint16(v))
		b.writeIO16(off+2, uint16(v>>16))
	case regionSRAM:
		b.cart.WriteSRAM(off, byte(v))
	}
	return cost
}

func putLE16(buf []byte, off uint32, v uint16) {
	if int(off)+1 >= len(buf) {
		return
	}
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

func putLE32(buf []byte, off uint32, v uint32) {
	if int(off)+3 >= len(buf) {
		return
	}
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

// BusSnapshot is the gob-serializable form of Bus used by save states.
type BusSnapshot struct {
	EWRAM, IWRAM, PRAM, VRAM, OAM []byte
	IE, IF                        uint16
	IME                           bool
	WAITCNT                       uint16
	DMA                           [4]dmaChannel
	Timers                        [4]timerChannel
	Keyinput                      uint16
}

func (b *Bus) Snapshot() BusSnapshot {
	return BusSnapshot{
		EWRAM: append([]byte(nil), b.ewram[:]...), IWRAM: append([]byte(nil), b.iwram[:]...),
		PRAM: append([]byte(nil), b.pram[:]...), VRAM: append([]byte(nil), b.vram[:]...),
		OAM: append([]byte(nil), b.oam[:]...),
		IE:  b.ie, IF: b.ifReg, IME: b.ime, WAITCNT: b.waitcnt,
		DMA: b.dma, Timers: b.timers, Keyinput: b.keyinput,
	}
}

func (b *Bus) Restore(s BusSnapshot) {
	copy(b.ewram[:], s.EWRAM)
	copy(b.iwram[:], s.IWRAM)
	copy(b.pram[:], s.PRAM)
	copy(b.vram[:], s.VRAM)
	copy(b.oam[:], s.OAM)
	b.ie, b.ifReg, b.ime, b.waitcnt = s.IE, s.IF, s.IME, s.WAITCNT
	b.dma, b.timers, b.keyinput = s.DMA, s.Timers, s.Keyinput
}

// EncodeSnapshot gob-encodes the bus state, used by the emu package's
// versioned save-state envelope.
func (b *Bus) EncodeSnapshot() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b.Snapshot()); err != nil {
		return nil, fmt.Errorf("bus: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func (b *Bus) DecodeSnapshot(data []byte) error {
	var s BusSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return fmt.Errorf("bus: decode snapshot: %w", err)
	}
	b.Restore(s)
	return nil
}
