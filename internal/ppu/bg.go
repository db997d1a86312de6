package ppu

// bgPixel is one sampled background pixel, before window/priority/blend
// compositing. opaque=false means "show whatever is behind this layer".
type bgPixel struct {
	color  uint16
	opaque bool
}

func le16At(mem []byte, off uint32) uint16 {
	if int(off)+1 >= len(mem) {
		return 0
	}
	return uint16(mem[off]) | uint16(mem[off+1])<<8
}

func paletteColor(pram []byte, index uint16) uint16 {
	return le16At(pram, uint32(index)*2)
}

// textScreenEntryAddr maps a tile coordinate to its 2-byte map entry
// address within VRAM for a regular (non-affine) background, honoring the
// four screen-size layouts' multi-screenblock arrangement.
func textScreenEntryAddr(screenBase uint32, size uint16, tileX, tileY int) uint32 {
	sb := 0
	switch size {
	case 1:
		if tileX >= 32 {
			sb = 1
			tileX -= 32
		}
	case 2:
		if tileY >= 32 {
			sb = 1
			tileY -= 32
		}
	case 3:
		if tileX >= 32 {
			sb++
			tileX -= 32
		}
		if tileY >= 32 {
			sb += 2
			tileY -= 32
		}
	}
	base := screenBase*0x800 + uint32(sb)*0x800
	return base + uint32(tileY*32+tileX)*2
}

var textMapTiles = [4][2]int{{32, 32}, {64, 32}, {32, 64}, {64, 64}}

// renderTextBGLine fills out with one scanline of a regular tiled
// background (mode 0 BG0-3, mode 1 BG0-1), applying horizontal/vertical
// scroll and, if enabled, mosaic block replication.
func (p *PPU) renderTextBGLine(idx int, line int, vram, pram []byte, out *[screenWidth]bgPixel) {
	cnt := p.bgcnt[idx]
	charBase := uint32((cnt >> 2) & 0x3)
	screenBase := uint32((cnt >> 8) & 0x1F)
	is8bpp := cnt&(1<<7) != 0
	size := (cnt >> 14) & 0x3
	mapW, mapH := textMapTiles[size][0]*8, textMapTiles[size][1]*8

	y := line
	if cnt&(1<<6) != 0 {
		y = mosaicSnap(y, int(p.mosaic>>4)&0xF+1)
	}
	texY := (y + int(p.bgvofs[idx])) % mapH
	if texY < 0 {
		texY += mapH
	}

	for sx := 0; sx < screenWidth; sx++ {
		x := sx
		if cnt&(1<<6) != 0 {
			x = mosaicSnap(x, int(p.mosaic&0xF)+1)
		}
		texX := (x + int(p.bghofs[idx])) % mapW
		if texX < 0 {
			texX += mapW
		}
		tileX, tileY := texX/8, texY/8
		entryAddr := textScreenEntryAddr(screenBase, size, tileX, tileY)
		entry := le16At(vram, entryAddr)
		tileNum := entry & 0x3FF
		hflip := entry&0x400 != 0
		vflip := entry&0x800 != 0
		palBank := entry >> 12

		px, py := texX%8, texY%8
		if hflip {
			px = 7 - px
		}
		if vflip {
			py = 7 - py
		}

		if is8bpp {
			tileAddr := charBase*0x4000 + uint32(tileNum)*64
			idxv := vram[clampVRAM(tileAddr+uint32(py*8+px), vram)]
			if idxv == 0 {
				continue
			}
			out[sx] = bgPixel{color: paletteColor(pram, uint16(idxv)), opaque: true}
		} else {
			tileAddr := charBase*0x4000 + uint32(tileNum)*32
			b := vram[clampVRAM(tileAddr+uint32(py*4+px/2), vram)]
			var nibble byte
			if px%2 == 0 {
				nibble = b & 0xF
			} else {
				nibble = b >> 4
			}
			if nibble == 0 {
				continue
			}
			out[sx] = bgPixel{color: paletteColor(pram, palBank*16+uint16(nibble)), opaque: true}
		}
	}
}

func clampVRAM(off uint32, vram []byte) uint32 {
	if int(off) >= len(vram) {
		return uint32(len(vram) - 1)
	}
	return off
}

func mosaicSnap(v, block int) int {
	if block <= 1 {
		return v
	}
	return (v / block) * block
}

// renderAffineBGLine fills out with one scanline of an affine background
// (mode 1 BG2, mode 2 BG2/BG3), sampling through the BG's rotation/
// scaling matrix. Screen maps for affine BGs use a single byte per tile
// (no flip bits, always treated as 8bpp per GBATEK).
func (p *PPU) renderAffineBGLine(idx int, line int, vram, pram []byte, out *[screenWidth]bgPixel) {
	cnt := p.bgcnt[idx]
	charBase := uint32((cnt >> 2) & 0x3)
	screenBase := uint32((cnt >> 8) & 0x1F)
	size := (cnt >> 14) & 0x3
	mapTiles := 16 << size
	mapPx := mapTiles * 8
	wrap := cnt&(1<<13) != 0

	refX, refY := p.bgxInternal[idx], p.bgyInternal[idx]
	pa, pc := int32(p.bgpa[idx]), int32(p.bgpc[idx])

	for sx := 0; sx < screenWidth; sx++ {
		tx := int((refX + int32(sx)*pa) >> 8)
		ty := int((refY + int32(sx)*pc) >> 8)
		if wrap {
			tx = ((tx % mapPx) + mapPx) % mapPx
			ty = ((ty % mapPx) + mapPx) % mapPx
		} else if tx < 0 || tx >= mapPx || ty < 0 || ty >= mapPx {
			continue
		}
		tileX, tileY := tx/8, ty/8
		entryAddr := screenBase*0x800 + uint32(tileY*mapTiles+tileX)
		tileNum := vram[clampVRAM(entryAddr, vram)]
		px, py := tx%8, ty%8
		tileAddr := charBase*0x4000 + uint32(tileNum)*64
		idxv := vram[clampVRAM(tileAddr+uint32(py*8+px), vram)]
		if idxv == 0 {
			continue
		}
		out[sx] = bgPixel{color: paletteColor(pram, uint16(idxv)), opaque: true}
	}
}

// renderBitmapLine fills out with one scanline of a mode 3/4/5 bitmap,
// sampled through BG2's affine matrix the same way a rotation/scaling
// tiled background is (real hardware reuses the BG2 affine unit for the
// bitmap modes, which is why they're programmed through the same
// BG2PA-D/BG2X/Y registers).
func (p *PPU) renderBitmapLine(mode int, line int, vram, pram []byte, out *[screenWidth]bgPixel) {
	refX, refY := p.bgxInternal[0], p.bgyInternal[0]
	pa, pc := int32(p.bgpa[0]), int32(p.bgpc[0])

	var w, h int
	switch mode {
	case 3, 4:
		w, h = screenWidth, screenHeight
	case 5:
		w, h = 160, 128
	}

	frameOffset := uint32(0)
	if mode != 3 && p.dispcnt&(1<<4) != 0 {
		frameOffset = 0xA000
	}

	for sx := 0; sx < screenWidth; sx++ {
		tx := int((refX + int32(sx)*pa) >> 8)
		ty := int((refY + int32(sx)*pc) >> 8)
		if tx < 0 || tx >= w || ty < 0 || ty >= h {
			continue
		}
		switch mode {
		case 3:
			c := le16At(vram, uint32(ty*w+tx)*2)
			out[sx] = bgPixel{color: c, opaque: true}
		case 4:
			idxv := vram[clampVRAM(frameOffset+uint32(ty*w+tx), vram)]
			if idxv == 0 {
				continue
			}
			out[sx] = bgPixel{color: paletteColor(pram, uint16(idxv)), opaque: true}
		case 5:
			c := le16At(vram, frameOffset+uint32(ty*w+tx)*2)
			out[sx] = bgPixel{color: c, opaque: true}
		}
	}
}
