package hlebios

import "github.com/dskellund/gbacore/internal/cpu"

// byteWriter commits one decompressed byte to a destination address.
// WRAM targets write directly; VRAM targets must latch byte pairs into a
// single halfword write (real hardware has no 8-bit VRAM write path).
type byteWriter func(addr uint32, value byte)

func wramWriter(b cpu.Bus) byteWriter {
	return func(addr uint32, v byte) {
		b.Write8(addr, v, cpu.NonSeqData)
	}
}

func vramWriter(b cpu.Bus) byteWriter {
	var latch byte
	haveLow := false
	var lowAddr uint32
	return func(addr uint32, v byte) {
		if !haveLow {
			latch = v
			lowAddr = addr
			haveLow = true
			return
		}
		write16(b, lowAddr&^1, uint16(latch)|uint16(v)<<8)
		haveLow = false
	}
}

// decompHeader reads the common 4-byte compression header: byte0
// identifies the scheme (unused here, the caller already knows it), and
// bytes 1-3 give the decompressed size.
func decompHeader(b cpu.Bus, src uint32) (size uint32) {
	h := read32(b, src)
	return h >> 8
}

// lz77Decompress implements the type-0x10 GBA LZ77 variant used by
// LZ77UnCompWram/Vram: a flag byte's 8 bits (MSB first) each select a
// literal byte or a (length,disp) back-reference into the already
// decompressed output.
func lz77Decompress(b cpu.Bus, src, dst uint32, write byteWriter) {
	size := decompHeader(b, src)
	srcPos := src + 4
	out := make([]byte, 0, size)

	for uint32(len(out)) < size {
		flags := read8(b, srcPos)
		srcPos++
		for bit := 7; bit >= 0 && uint32(len(out)) < size; bit-- {
			if flags&(1<<uint(bit)) == 0 {
				out = append(out, read8(b, srcPos))
				srcPos++
				continue
			}
			b1 := read8(b, srcPos)
			b2 := read8(b, srcPos+1)
			srcPos += 2
			length := int(b1>>4) + 3
			disp := (int(b1&0x0F) << 8) | int(b2)
			for i := 0; i < length && uint32(len(out)) < size; i++ {
				refIdx := len(out) - disp - 1
				if refIdx < 0 {
					out = append(out, 0)
					continue
				}
				out = append(out, out[refIdx])
			}
		}
	}
	for i, v := range out {
		write(dst+uint32(i), v)
	}
}

// rlDecompress implements the type-0x30 GBA run-length variant used by
// RLUnCompWram/Vram: each flag byte is either an uncompressed run length
// (bit7 clear) followed by that many raw bytes, or a compressed run
// (bit7 set) followed by a single byte repeated length times.
func rlDecompress(b cpu.Bus, src, dst uint32, write byteWriter) {
	size := decompHeader(b, src)
	srcPos := src + 4
	out := make([]byte, 0, size)

	for uint32(len(out)) < size {
		flag := read8(b, srcPos)
		srcPos++
		if flag&0x80 == 0 {
			length := int(flag) + 1
			for i := 0; i < length; i++ {
				out = append(out, read8(b, srcPos))
				srcPos++
			}
			continue
		}
		length := int(flag&0x7F) + 3
		v := read8(b, srcPos)
		srcPos++
		for i := 0; i < length; i++ {
			out = append(out, v)
		}
	}
	for i, v := range out {
		if uint32(i) >= size {
			break
		}
		write(dst+uint32(i), v)
	}
}

// diff8BitUnFilter implements SWI Diff8bitUnFilterWram: a running 8-bit
// cumulative sum (each output byte = previous output byte + input byte).
func diff8BitUnFilter(b cpu.Bus, src, dst uint32) {
	size := decompHeader(b, src)
	srcPos := src + 4
	var prev byte
	for i := uint32(0); i < size; i++ {
		prev += read8(b, srcPos)
		srcPos++
		b.Write8(dst+i, prev, cpu.NonSeqData)
	}
}

// diff16BitUnFilter implements SWI Diff16bitUnFilter: the same running
// cumulative sum, but over 16-bit units.
func diff16BitUnFilter(b cpu.Bus, src, dst uint32) {
	size := decompHeader(b, src) // byte count; halfword count = size/2
	srcPos := src + 4
	var prev uint16
	for i := uint32(0); i+1 < size; i += 2 {
		prev += read16(b, srcPos)
		srcPos += 2
		write16(b, dst+i, prev)
	}
}

// huffUnComp implements SWI HuffUnComp: a canonical-tree Huffman decoder
// over a 4-bit or 8-bit symbol alphabet (GBATEK "Huffman Tree Table"
// node format: bits0-5 child offset, bit7/bit6 end-of-branch flags for
// the 0/1 child respectively).
func huffUnComp(b cpu.Bus, src, dst uint32) {
	header := read32(b, src)
	size := header >> 8
	dataBits := int(header & 0x0F) // 4 or 8, byte0's low nibble (the high nibble is the type)
	if dataBits != 4 && dataBits != 8 {
		dataBits = 8
	}

	treeSizeByte := read8(b, src+4)
	treeTableStart := src + 4
	bitstreamStart := treeTableStart + uint32(treeSizeByte+1)*2

	rootAddr := treeTableStart + 1

	var out []byte
	var nibbleLatch byte
	haveNibble := false

	emit := func(symbol byte) {
		if dataBits == 8 {
			out = append(out, symbol)
			return
		}
		if !haveNibble {
			nibbleLatch = symbol & 0xF
			haveNibble = true
			return
		}
		out = append(out, nibbleLatch|(symbol&0xF)<<4)
		haveNibble = false
	}

	node := rootAddr
	bitPos := 0
	word := read32(b, bitstreamStart)
	wordAddr := bitstreamStart

	nextBit := func() int {
		if bitPos == 32 {
			wordAddr += 4
			word = read32(b, wordAddr)
			bitPos = 0
		}
		bit := int((word >> uint(31-bitPos)) & 1)
		bitPos++
		return bit
	}

	for uint32(len(out)) < size {
		val := read8(b, node)
		bit := nextBit()

		childOffset := uint32(val & 0x3F)
		childBase := (node &^ 1) + childOffset*2 + 2
		var child uint32
		var isEnd bool
		if bit == 0 {
			child = childBase
			isEnd = val&0x80 != 0
		} else {
			child = childBase + 1
			isEnd = val&0x40 != 0
		}

		if isEnd {
			emit(read8(b, child))
			node = rootAddr
		} else {
			node = child
		}
	}

	for i, v := range out {
		b.Write8(dst+uint32(i), v, cpu.NonSeqData)
	}
}
