package hlebios

import "github.com/dskellund/gbacore/internal/cpu"

// cpuSet control word bits (shared by CpuSet/CpuFastSet): bits0-20 count,
// bit24 fixed-source (fill) mode, bit26 32-bit transfer width.
const (
	cpuSetCountMask = 0x1FFFFF
	cpuSetFixedSrc  = 1 << 24
	cpuSetWord32    = 1 << 26
)

// cpuSet implements SWI CpuSet: word or halfword copy/fill between src and
// dst, count and mode encoded in control. Every access goes through the
// Bus like any other memory access; there's no privileged backdoor.
func cpuSet(b cpu.Bus, src, dst, control uint32) {
	count := control & cpuSetCountMask
	fixed := control&cpuSetFixedSrc != 0
	word := control&cpuSetWord32 != 0

	if word {
		for i := uint32(0); i < count; i++ {
			v := read32(b, src)
			write32(b, dst, v)
			if !fixed {
				src += 4
			}
			dst += 4
		}
		return
	}
	for i := uint32(0); i < count; i++ {
		v := read16(b, src)
		write16(b, dst, v)
		if !fixed {
			src += 2
		}
		dst += 2
	}
}

// cpuFastSet implements SWI CpuFastSet: always 32-bit, count rounded up to
// a multiple of 8 words. Real hardware transfers in 8-word bursts for
// speed; the visible memory effect is identical to cpuSet's word path, so
// that's all this models — the timing advantage itself is out of scope.
func cpuFastSet(b cpu.Bus, src, dst, control uint32) {
	count := control & cpuSetCountMask
	fixed := control&cpuSetFixedSrc != 0
	if rem := count % 8; rem != 0 {
		count += 8 - rem
	}
	for i := uint32(0); i < count; i++ {
		v := read32(b, src)
		write32(b, dst, v)
		if !fixed {
			src += 4
		}
		dst += 4
	}
}
