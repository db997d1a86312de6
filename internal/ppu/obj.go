package ppu

// objPixel is one composited sprite pixel, already resolved to the
// topmost opaque OBJ at this x (hardware never shows more than one OBJ
// per pixel).
type objPixel struct {
	color           uint16
	priority        int
	opaque          bool
	semiTransparent bool
}

var objSizeTable = [4][4][2]int{
	0: {{8, 8}, {16, 16}, {32, 32}, {64, 64}},
	1: {{16, 8}, {32, 8}, {32, 16}, {64, 32}},
	2: {{8, 16}, {8, 32}, {16, 32}, {32, 64}},
}

// renderObjectsLine rasterizes every enabled OAM entry that covers
// scanline `line`, returning the per-pixel sprite result and a separate
// OBJ-window mask (objMode==2 entries contribute only to the mask, never
// to visible color).
func (p *PPU) renderObjectsLine(line int, vram, oam, pram []byte) (objs [screenWidth]objPixel, objWindow [screenWidth]bool) {
	objCharBase := uint32(0x10000)
	mapping1D := p.dispcnt&(1<<6) != 0
	mosaicH := int(p.mosaic>>8)&0xF + 1
	mosaicV := int(p.mosaic>>12)&0xF + 1

	for i := 0; i < 128; i++ {
		base := uint32(i * 8)
		attr0 := le16At(oam, base)
		attr1 := le16At(oam, base+2)
		attr2 := le16At(oam, base+4)

		affine := attr0&(1<<8) != 0
		if !affine && attr0&(1<<9) != 0 {
			continue // OBJ-disable
		}
		objMode := (attr0 >> 10) & 0x3
		if objMode == 3 {
			continue // prohibited
		}
		shape := (attr0 >> 14) & 0x3
		size := (attr1 >> 14) & 0x3
		if shape == 3 {
			continue
		}
		w, h := objSizeTable[shape][size][0], objSizeTable[shape][size][1]

		doubleSize := affine && attr0&(1<<9) != 0
		boxW, boxH := w, h
		if doubleSize {
			boxW, boxH = w*2, h*2
		}

		objY := int(attr0 & 0xFF)
		if objY >= 160 {
			objY -= 256
		}
		if line < objY || line >= objY+boxH {
			continue
		}

		objX := int(attr1 & 0x1FF)
		if objX >= 240 {
			objX -= 512
		}

		mosaicOn := attr0&(1<<12) != 0
		lineInBox := line - objY
		if mosaicOn {
			lineInBox = mosaicSnap(lineInBox, mosaicV)
		}

		var pa, pb, pc, pd int32 = 256, 0, 0, 256
		if affine {
			group := (attr1 >> 9) & 0x1F
			gbase := uint32(group) * 32
			pa = int32(int16(le16At(oam, gbase+6)))
			pb = int32(int16(le16At(oam, gbase+14)))
			pc = int32(int16(le16At(oam, gbase+22)))
			pd = int32(int16(le16At(oam, gbase+30)))
		}
		hflip := !affine && attr1&(1<<12) != 0
		vflip := !affine && attr1&(1<<13) != 0

		is8bpp := attr0&(1<<13) != 0
		priority := int((attr2 >> 10) & 0x3)
		tileNumber := uint32(attr2 & 0x3FF)
		palBank := attr2 >> 12

		halfBoxW, halfBoxH := boxW/2, boxH/2
		halfW, halfH := w/2, h/2

		for bx := 0; bx < boxW; bx++ {
			sx := objX + bx
			if sx < 0 || sx >= screenWidth {
				continue
			}
			var tx, ty int
			if affine {
				dx, dy := int32(bx-halfBoxW), int32(lineInBox-halfBoxH)
				tx = halfW + int((pa*dx+pb*dy)>>8)
				ty = halfH + int((pc*dx+pd*dy)>>8)
				if tx < 0 || tx >= w || ty < 0 || ty >= h {
					continue
				}
			} else {
				tx, ty = bx, lineInBox
				if mosaicOn {
					tx = mosaicSnap(tx, mosaicH)
				}
				if hflip {
					tx = w - 1 - tx
				}
				if vflip {
					ty = h - 1 - ty
				}
			}

			tileCol, tileRow := tx/8, ty/8
			px, py := tx%8, ty%8

			var tileSlot uint32
			if is8bpp {
				if mapping1D {
					tileSlot = tileNumber + uint32(tileRow*(w/8)+tileCol)*2
				} else {
					tileSlot = tileNumber + uint32(tileRow*32+tileCol)*2
				}
			} else {
				if mapping1D {
					tileSlot = tileNumber + uint32(tileRow*(w/8)+tileCol)
				} else {
					tileSlot = tileNumber + uint32(tileRow*32+tileCol)
				}
			}
			tileAddr := objCharBase + tileSlot*32

			var colorIndex uint16
			if is8bpp {
				v := vram[clampVRAM(tileAddr+uint32(py*8+px), vram)]
				if v == 0 {
					continue
				}
				colorIndex = uint16(v)
			} else {
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
				colorIndex = palBank*16 + uint16(nibble)
			}
			color := paletteColor(pram, 256+colorIndex)

			if objMode == 2 {
				objWindow[sx] = true
				continue
			}
			cur := objs[sx]
			if !cur.opaque || priority < cur.priority {
				objs[sx] = objPixel{color: color, priority: priority, opaque: true, semiTransparent: objMode == 1}
			}
		}
	}
	return objs, objWindow
}
