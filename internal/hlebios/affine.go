package hlebios

import (
	"math"

	"github.com/dskellund/gbacore/internal/cpu"
)

// read8/write8 wrap the plain Bus 8-bit accessors so the rest of this file
// reads like ordinary memory access instead of threading cpu.Access
// everywhere.
func read8(b cpu.Bus, addr uint32) byte {
	v, _ := b.Read8(addr, cpu.NonSeqData)
	return v
}

func read16(b cpu.Bus, addr uint32) uint16 {
	v, _ := b.Read16(addr, cpu.NonSeqData)
	return v
}

func read32(b cpu.Bus, addr uint32) uint32 {
	v, _ := b.Read32(addr, cpu.NonSeqData)
	return v
}

func write16(b cpu.Bus, addr uint32, v uint16) {
	b.Write16(addr, v, cpu.NonSeqData)
}

func write32(b cpu.Bus, addr uint32, v uint32) {
	b.Write32(addr, v, cpu.NonSeqData)
}

// bgAffineSet computes the BGxPA-PD/BGxX-Y register values that realize a
// rotation+scale centered on a texture origin, for each of count 20-byte
// source entries, writing 16-byte destination entries consumed by the
// PPU's affine background sampling.
func bgAffineSet(b cpu.Bus, srcAddr, dstAddr, count uint32) {
	for i := uint32(0); i < count; i++ {
		src := srcAddr + i*20
		dst := dstAddr + i*16

		origX := fixed8ToFloat(int32(read32(b, src+0)))
		origY := fixed8ToFloat(int32(read32(b, src+4)))
		dispX := float64(int16(read16(b, src+8)))
		dispY := float64(int16(read16(b, src+10)))
		scaleX := fixed8ToFloat(int32(int16(read16(b, src+12))))
		scaleY := fixed8ToFloat(int32(int16(read16(b, src+14))))
		angle := angleUnitsToRadians(read16(b, src + 16))

		pa, pb, pc, pd := rotateScaleMatrix(scaleX, scaleY, angle)

		write16(b, dst+0, floatToFixed16(pa))
		write16(b, dst+2, floatToFixed16(pb))
		write16(b, dst+4, floatToFixed16(pc))
		write16(b, dst+6, floatToFixed16(pd))

		startX := origX - (pa*dispX + pb*dispY)
		startY := origY - (pc*dispX + pd*dispY)
		write32(b, dst+8, uint32(floatToFixed32(startX)))
		write32(b, dst+12, uint32(floatToFixed32(startY)))
	}
}

// objAffineSet computes an OAM affine parameter group (PA,PB,PC,PD) from
// an 8-byte scale+angle source entry, writing each halfword stride bytes
// apart at dst, so consecutive groups start 4*stride bytes apart (callers
// writing straight into OAM pass stride=8, the byte spacing of an affine
// group's parameters there).
func objAffineSet(b cpu.Bus, srcAddr, dstAddr, count, stride uint32) {
	for i := uint32(0); i < count; i++ {
		src := srcAddr + i*8
		dst := dstAddr + i*4*stride

		scaleX := fixed8ToFloat(int32(int16(read16(b, src+0))))
		scaleY := fixed8ToFloat(int32(int16(read16(b, src+2))))
		angle := angleUnitsToRadians(read16(b, src + 4))

		pa, pb, pc, pd := rotateScaleMatrix(scaleX, scaleY, angle)

		write16(b, dst, floatToFixed16(pa))
		write16(b, dst+stride, floatToFixed16(pb))
		write16(b, dst+2*stride, floatToFixed16(pc))
		write16(b, dst+3*stride, floatToFixed16(pd))
	}
}

// rotateScaleMatrix builds the inverse rotation+scale matrix the PPU's
// affine sampler expects: PA/PD scale then rotate the texture-space step
// per screen pixel, PB/PC the per-scanline step.
func rotateScaleMatrix(scaleX, scaleY, angle float64) (pa, pb, pc, pd float64) {
	sin, cos := math.Sincos(angle)
	pa = cos * scaleX
	pb = -sin * scaleY
	pc = sin * scaleX
	pd = cos * scaleY
	return
}

func fixed8ToFloat(v int32) float64 { return float64(v) / 256.0 }

func floatToFixed16(v float64) uint16 { return uint16(int16(math.Round(v * 256.0))) }

func floatToFixed32(v float64) int32 { return int32(math.Round(v * 256.0)) }

func angleUnitsToRadians(units uint16) float64 {
	return float64(units) / 65536.0 * 2 * math.Pi
}
