package hlebios

import (
	"testing"

	"github.com/dskellund/gbacore/internal/cpu"
)

// fakeBus is a flat RAM used to exercise the BIOS routines in isolation,
// mirroring internal/cpu's own fakeBus test harness.
type fakeBus struct {
	mem []byte
	irq bool
}

func newFakeBus() *fakeBus { return &fakeBus{mem: make([]byte, 1<<20)} }

func (b *fakeBus) Read8(addr uint32, acc cpu.Access) (byte, int) { return b.mem[addr], 1 }
func (b *fakeBus) Read16(addr uint32, acc cpu.Access) (uint16, int) {
	a := addr &^ 1
	return uint16(b.mem[a]) | uint16(b.mem[a+1])<<8, 1
}
func (b *fakeBus) Read32(addr uint32, acc cpu.Access) (uint32, int) {
	a := addr &^ 3
	return uint32(b.mem[a]) | uint32(b.mem[a+1])<<8 | uint32(b.mem[a+2])<<16 | uint32(b.mem[a+3])<<24, 1
}
func (b *fakeBus) Write8(addr uint32, v byte, acc cpu.Access) int {
	b.mem[addr] = v
	return 1
}
func (b *fakeBus) Write16(addr uint32, v uint16, acc cpu.Access) int {
	a := addr &^ 1
	b.mem[a], b.mem[a+1] = byte(v), byte(v>>8)
	return 1
}
func (b *fakeBus) Write32(addr uint32, v uint32, acc cpu.Access) int {
	a := addr &^ 3
	b.mem[a], b.mem[a+1], b.mem[a+2], b.mem[a+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	return 1
}
func (b *fakeBus) IRQLine() bool { return b.irq }

func TestDivideTruncatesTowardZero(t *testing.T) {
	result, mod, abs := divide(-7, 2)
	if result != -3 || mod != -1 || abs != 3 {
		t.Fatalf("divide(-7,2) = (%d,%d,%d), want (-3,-1,3)", result, mod, abs)
	}
}

func TestDivideByZeroDoesNotPanic(t *testing.T) {
	result, mod, abs := divide(10, 0)
	if result != 0 || mod != 0 || abs != 0 {
		t.Fatalf("divide by zero = (%d,%d,%d), want zeros", result, mod, abs)
	}
}

func TestIsqrt(t *testing.T) {
	cases := map[uint32]uint16{0: 0, 1: 1, 4: 2, 16: 4, 1000000: 1000}
	for in, want := range cases {
		if got := isqrt(in); got != want {
			t.Fatalf("isqrt(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestCpuSetHalfwordCopy(t *testing.T) {
	b := newFakeBus()
	for i := 0; i < 4; i++ {
		write16(b, uint32(0x1000+i*2), uint16(0x1111*(i+1)))
	}
	cpuSet(b, 0x1000, 0x2000, 4) // 4 halfwords, copy mode
	for i := 0; i < 4; i++ {
		if got := read16(b, uint32(0x2000+i*2)); got != uint16(0x1111*(i+1)) {
			t.Fatalf("halfword %d = %#04x, want %#04x", i, got, 0x1111*(i+1))
		}
	}
}

func TestCpuSetFixedSourceFill(t *testing.T) {
	b := newFakeBus()
	write32(b, 0x1000, 0xDEADBEEF)
	cpuSet(b, 0x1000, 0x2000, 4|cpuSetFixedSrc|cpuSetWord32)
	for i := 0; i < 4; i++ {
		if got := read32(b, uint32(0x2000+i*4)); got != 0xDEADBEEF {
			t.Fatalf("fill word %d = %#08x, want 0xDEADBEEF", i, got)
		}
	}
}

func TestLZ77DecompressAllLiteral(t *testing.T) {
	b := newFakeBus()
	src := uint32(0x1000)
	b.Write8(src, 0x10, cpu.NonSeqData)
	b.Write8(src+1, 8, cpu.NonSeqData) // low byte of 24-bit size
	b.Write8(src+3, 0, cpu.NonSeqData)
	b.Write8(src+4, 0x00, cpu.NonSeqData) // flags: all 8 bits literal
	for i := 0; i < 8; i++ {
		b.Write8(src+5+uint32(i), 'A'+byte(i), cpu.NonSeqData)
	}

	dst := uint32(0x2000)
	lz77Decompress(b, src, dst, wramWriter(b))
	for i := 0; i < 8; i++ {
		if got, _ := b.Read8(dst+uint32(i), cpu.NonSeqData); got != 'A'+byte(i) {
			t.Fatalf("byte %d = %q, want %q", i, got, 'A'+byte(i))
		}
	}
}

func TestLZ77DecompressBackReference(t *testing.T) {
	b := newFakeBus()
	src := uint32(0x1000)
	b.Write8(src, 0x10, cpu.NonSeqData)
	b.Write8(src+1, 8, cpu.NonSeqData)
	b.Write8(src+3, 0, cpu.NonSeqData)
	// flags: bit7=0 (literal 'A'), bit6=1 (back-reference)
	b.Write8(src+4, 0x40, cpu.NonSeqData)
	b.Write8(src+5, 'A', cpu.NonSeqData)
	// back-reference: length 7, disp 0 -> repeats the single preceding byte
	b.Write8(src+6, byte((7-3)<<4|0), cpu.NonSeqData)
	b.Write8(src+7, 0x00, cpu.NonSeqData)

	dst := uint32(0x2000)
	lz77Decompress(b, src, dst, wramWriter(b))
	for i := 0; i < 8; i++ {
		if got, _ := b.Read8(dst+uint32(i), cpu.NonSeqData); got != 'A' {
			t.Fatalf("byte %d = %q, want 'A'", i, got)
		}
	}
}

func TestRLDecompressUncompressedRun(t *testing.T) {
	b := newFakeBus()
	src := uint32(0x1000)
	b.Write8(src, 0x30, cpu.NonSeqData)
	b.Write8(src+1, 4, cpu.NonSeqData)
	b.Write8(src+3, 0, cpu.NonSeqData)
	b.Write8(src+4, 3, cpu.NonSeqData) // flag: uncompressed, length=4
	for i := 0; i < 4; i++ {
		b.Write8(src+5+uint32(i), byte(i+1), cpu.NonSeqData)
	}

	dst := uint32(0x2000)
	rlDecompress(b, src, dst, wramWriter(b))
	for i := 0; i < 4; i++ {
		if got, _ := b.Read8(dst+uint32(i), cpu.NonSeqData); got != byte(i+1) {
			t.Fatalf("byte %d = %d, want %d", i, got, i+1)
		}
	}
}

func TestRLDecompressCompressedRun(t *testing.T) {
	b := newFakeBus()
	src := uint32(0x1000)
	b.Write8(src, 0x30, cpu.NonSeqData)
	b.Write8(src+1, 5, cpu.NonSeqData)
	b.Write8(src+3, 0, cpu.NonSeqData)
	b.Write8(src+4, 0x80|2, cpu.NonSeqData) // compressed: length = 2+3 = 5
	b.Write8(src+5, 0x7F, cpu.NonSeqData)

	dst := uint32(0x2000)
	rlDecompress(b, src, dst, wramWriter(b))
	for i := 0; i < 5; i++ {
		if got, _ := b.Read8(dst+uint32(i), cpu.NonSeqData); got != 0x7F {
			t.Fatalf("byte %d = %#02x, want 0x7F", i, got)
		}
	}
}

func TestDiff8BitUnFilter(t *testing.T) {
	b := newFakeBus()
	src := uint32(0x1000)
	b.Write8(src, 0x80, cpu.NonSeqData)
	b.Write8(src+1, 4, cpu.NonSeqData)
	b.Write8(src+3, 0, cpu.NonSeqData)
	deltas := []byte{10, 5, 5, 5}
	for i, d := range deltas {
		b.Write8(src+4+uint32(i), d, cpu.NonSeqData)
	}

	dst := uint32(0x2000)
	diff8BitUnFilter(b, src, dst)
	want := []byte{10, 15, 20, 25}
	for i, w := range want {
		if got, _ := b.Read8(dst+uint32(i), cpu.NonSeqData); got != w {
			t.Fatalf("byte %d = %d, want %d", i, got, w)
		}
	}
}

func TestDiff16BitUnFilter(t *testing.T) {
	b := newFakeBus()
	src := uint32(0x1000)
	b.Write8(src, 0x81, cpu.NonSeqData)
	b.Write8(src+1, 4, cpu.NonSeqData) // 4 bytes = 2 halfwords
	b.Write8(src+3, 0, cpu.NonSeqData)
	write16(b, src+4, 100)
	write16(b, src+6, 50)

	dst := uint32(0x2000)
	diff16BitUnFilter(b, src, dst)
	if got := read16(b, dst); got != 100 {
		t.Fatalf("halfword 0 = %d, want 100", got)
	}
	if got := read16(b, dst+2); got != 150 {
		t.Fatalf("halfword 1 = %d, want 150", got)
	}
}

func TestIntrWaitHaltsCoreUntilMatchingIRQ(t *testing.T) {
	b := newFakeBus()
	c := cpu.NewCore(b)
	var st State

	intrWait(c, &st, true, 1)
	if !c.Halted() {
		t.Fatalf("IntrWait did not halt the core")
	}
	if !st.Waiting() {
		t.Fatalf("State not marked waiting")
	}
	if st.Notify(1<<1) {
		t.Fatalf("Notify woke on a non-matching IRQ bit")
	}
	if !st.Notify(1 << 0) {
		t.Fatalf("Notify did not wake on the matching IRQ bit")
	}
	if st.Waiting() {
		t.Fatalf("State still marked waiting after a successful Notify")
	}
}

func TestDispatchHaltSetsHaltedFlag(t *testing.T) {
	b := newFakeBus()
	c := cpu.NewCore(b)
	var st State
	Dispatch(c, b, &st, SWIHalt)
	if !c.Halted() {
		t.Fatalf("SWI Halt did not set the core's halted flag")
	}
}

func TestDispatchDivWritesResultRemainderAbs(t *testing.T) {
	b := newFakeBus()
	c := cpu.NewCore(b)
	var st State
	dividend := int32(-10)
	c.SetR(0, uint32(dividend))
	c.SetR(1, 3)
	Dispatch(c, b, &st, SWIDiv)
	if int32(c.R(0)) != -3 {
		t.Fatalf("r0 = %d, want -3", int32(c.R(0)))
	}
	if int32(c.R(1)) != -1 {
		t.Fatalf("r1 = %d, want -1", int32(c.R(1)))
	}
	if c.R(3) != 3 {
		t.Fatalf("r3 = %d, want 3", c.R(3))
	}
}
