package ppu

// renderScanline implements the full per-line rendering algorithm: fetch
// each enabled background's line, rasterize objects, then compose with
// window filtering and color special effects into the frame buffer.
func (p *PPU) renderScanline(line int, vram, oam, pram []byte) {
	rowStart := line * screenWidth

	if p.dispcnt&(1<<7) != 0 { // forced blank: output white, PPU timing still advances
		white := uint16(0x7FFF)
		for x := 0; x < screenWidth; x++ {
			p.frame[rowStart+x] = white
		}
		return
	}

	mode := p.dispcnt & 0x7
	var bgLines [4][screenWidth]bgPixel
	var bgActive [4]bool

	switch mode {
	case 0:
		for i := 0; i < 4; i++ {
			if p.dispcnt&(1<<uint(8+i)) != 0 {
				p.renderTextBGLine(i, line, vram, pram, &bgLines[i])
				bgActive[i] = true
			}
		}
	case 1:
		for i := 0; i < 2; i++ {
			if p.dispcnt&(1<<uint(8+i)) != 0 {
				p.renderTextBGLine(i, line, vram, pram, &bgLines[i])
				bgActive[i] = true
			}
		}
		if p.dispcnt&(1<<10) != 0 {
			p.renderAffineBGLine(0, line, vram, pram, &bgLines[2])
			bgActive[2] = true
		}
	case 2:
		if p.dispcnt&(1<<10) != 0 {
			p.renderAffineBGLine(0, line, vram, pram, &bgLines[2])
			bgActive[2] = true
		}
		if p.dispcnt&(1<<11) != 0 {
			p.renderAffineBGLine(1, line, vram, pram, &bgLines[3])
			bgActive[3] = true
		}
	case 3, 4, 5:
		if p.dispcnt&(1<<10) != 0 {
			p.renderBitmapLine(int(mode), line, vram, pram, &bgLines[2])
			bgActive[2] = true
		}
	}

	var objs [screenWidth]objPixel
	var objWindow [screenWidth]bool
	if p.dispcnt&(1<<12) != 0 {
		objs, objWindow = p.renderObjectsLine(line, vram, oam, pram)
	}

	bgPriorityFor := func(i int) int { return int(p.bgcnt[i] & 0x3) }
	backdrop := paletteColor(pram, 0)

	var cands []candidate
	for x := 0; x < screenWidth; x++ {
		bgEnable, objEnable, effectEnable := p.windowMaskAt(x, line, objWindow[x])

		cands = cands[:0]
		for i := 0; i < 4; i++ {
			if bgActive[i] && bgEnable[i] && bgLines[i][x].opaque {
				cands = append(cands, candidate{kind: layerKind(i), color: bgLines[i][x].color, prio: bgPriorityFor(i)})
			}
		}
		if objEnable && objs[x].opaque {
			cands = append(cands, candidate{kind: layerOBJ, color: objs[x].color, prio: objs[x].priority, semiTransparent: objs[x].semiTransparent})
		}
		cands = append(cands, candidate{kind: layerBackdrop, color: backdrop, prio: 4})

		p.frame[rowStart+x] = p.composePixel(cands, effectEnable)
	}
}
