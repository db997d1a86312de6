package cpu

import "math/bits"

// thumbOp executes one decoded THUMB instruction and returns the cycles it
// cost beyond its own opcode fetch.
type thumbOp func(c *Core, instr uint16) int

// thumbTable is indexed by bits 15..6 of the instruction, built once at
// init time the same way armTable is: a classify pass over every index
// rather than hand-written per-opcode cases.
var thumbTable [1024]thumbOp

func init() {
	for i := 0; i < 1024; i++ {
		thumbTable[i] = classifyThumb(uint16(i))
	}
}

// classifyThumb inspects the top 10 bits of a THUMB instruction (bits
// 15..6; the index into thumbTable) and picks the format handler. Bit
// positions quoted in comments are full-instruction bit numbers.
func classifyThumb(hi10 uint16) thumbOp {
	top4 := hi10 >> 6 // instr[15:12]

	switch {
	case hi10>>7 == 0x0 && (hi10>>5)&0x3 != 0x3: // instr[15:13]=000, [12:11]!=11
		return thumbMoveShifted
	case hi10>>5 == 0x3: // instr[15:11]=00011
		return thumbAddSubtract
	case hi10>>7 == 0x1: // instr[15:13]=001
		return thumbImmediateOp
	case hi10>>4 == 0x10: // instr[15:10]=010000
		return thumbALU
	case hi10>>4 == 0x11: // instr[15:10]=010001
		return thumbHiRegBX
	case hi10>>5 == 0x9: // instr[15:11]=01001
		return thumbPCRelativeLoad
	case hi10>>4 >= 0x14 && hi10>>4 <= 0x17: // instr[15:12]=0101
		if (hi10>>3)&0x1 == 0 { // instr[9]=0
			return thumbLoadStoreRegOffset
		}
		return thumbLoadStoreSignExtended // instr[9]=1
	case hi10>>7 == 0x3: // instr[15:13]=011
		return thumbLoadStoreImmOffset
	case top4 == 0x8: // instr[15:12]=1000
		return thumbLoadStoreHalfword
	case top4 == 0x9: // instr[15:12]=1001
		return thumbSPRelativeLoadStore
	case top4 == 0xA: // instr[15:12]=1010
		return thumbLoadAddress
	case top4 == 0xB && (hi10>>2)&0xF == 0x0: // instr[15:8]=10110000
		return thumbAddOffsetToSP
	case top4 == 0xB && (hi10>>3)&0x3 == 0x2: // instr[15:12]=1011,[10:9]=10
		return thumbPushPop
	case top4 == 0xC: // instr[15:12]=1100
		return thumbMultipleLoadStore
	case top4 == 0xD && (hi10>>2)&0xF == 0xF: // instr[15:8]=11011111
		return thumbSWI
	case top4 == 0xD: // instr[15:12]=1101, cond != 1111
		return thumbConditionalBranch
	case hi10>>5 == 0x1C: // instr[15:11]=11100
		return thumbUnconditionalBranch
	case top4 == 0xF && (hi10>>5)&0x1 == 0: // instr[15:12]=1111, H=0
		return thumbBranchLinkHigh
	case top4 == 0xF && (hi10>>5)&0x1 == 1: // instr[15:12]=1111, H=1
		return thumbBranchLinkLow
	default: // instr[15:12]=1110 (BLX suffix) and any other gap: undefined on ARM7TDMI
		return thumbUndefined
	}
}

func thumbUndefined(c *Core, instr uint16) int { return c.RaiseUndefined() }

// --- Format 1: move shifted register -------------------------------------

func thumbMoveShifted(c *Core, instr uint16) int {
	st := ShiftType((instr >> 11) & 0x3)
	amount := uint8((instr >> 6) & 0x1F)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	result, carryOut := ShiftImmediate(c.R(rs), st, amount, c.C())
	c.SetR(rd, result)
	c.SetNZCV(result&0x80000000 != 0, result == 0, carryOut, c.V())
	return 0
}

// --- Format 2: add/subtract ------------------------------------------------

func thumbAddSubtract(c *Core, instr uint16) int {
	immForm := instr&(1<<10) != 0
	subtract := instr&(1<<9) != 0
	rnOrImm := uint32((instr >> 6) & 0x7)
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	var operand uint32
	if immForm {
		operand = rnOrImm
	} else {
		operand = c.R(int(rnOrImm))
	}

	var result uint32
	var carry, overflow bool
	if subtract {
		result, carry, overflow = addWithCarry(c.R(rs), ^operand, true)
	} else {
		result, carry, overflow = addWithCarry(c.R(rs), operand, false)
	}
	c.SetR(rd, result)
	c.SetNZCV(result&0x80000000 != 0, result == 0, carry, overflow)
	return 0
}

// --- Format 3: move/compare/add/subtract immediate ------------------------

func thumbImmediateOp(c *Core, instr uint16) int {
	op := (instr >> 11) & 0x3
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr & 0xFF)

	switch op {
	case 0x0: // MOV
		c.SetR(rd, imm)
		c.SetNZCV(false, imm == 0, c.C(), c.V())
	case 0x1: // CMP
		result, carry, overflow := addWithCarry(c.R(rd), ^imm, true)
		c.SetNZCV(result&0x80000000 != 0, result == 0, carry, overflow)
	case 0x2: // ADD
		result, carry, overflow := addWithCarry(c.R(rd), imm, false)
		c.SetR(rd, result)
		c.SetNZCV(result&0x80000000 != 0, result == 0, carry, overflow)
	case 0x3: // SUB
		result, carry, overflow := addWithCarry(c.R(rd), ^imm, true)
		c.SetR(rd, result)
		c.SetNZCV(result&0x80000000 != 0, result == 0, carry, overflow)
	}
	return 0
}

// --- Format 4: ALU operations ----------------------------------------------

func thumbALU(c *Core, instr uint16) int {
	op := (instr >> 6) & 0xF
	rs := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	rdVal := c.R(rd)
	rsVal := c.R(rs)
	extra := 0

	var result uint32
	haveResult := true
	var carry, overflow bool
	haveCarry, haveOverflow := false, false

	switch op {
	case 0x0: // AND
		result = rdVal & rsVal
	case 0x1: // EOR
		result = rdVal ^ rsVal
	case 0x2: // LSL
		result, carry = ShiftRegister(rdVal, ShiftLSL, uint8(rsVal), c.C())
		haveCarry = true
		extra++
	case 0x3: // LSR
		result, carry = ShiftRegister(rdVal, ShiftLSR, uint8(rsVal), c.C())
		haveCarry = true
		extra++
	case 0x4: // ASR
		result, carry = ShiftRegister(rdVal, ShiftASR, uint8(rsVal), c.C())
		haveCarry = true
		extra++
	case 0x5: // ADC
		result, carry, overflow = addWithCarry(rdVal, rsVal, c.C())
		haveCarry, haveOverflow = true, true
	case 0x6: // SBC
		result, carry, overflow = addWithCarry(rdVal, ^rsVal, c.C())
		haveCarry, haveOverflow = true, true
	case 0x7: // ROR
		result, carry = ShiftRegister(rdVal, ShiftROR, uint8(rsVal), c.C())
		haveCarry = true
		extra++
	case 0x8: // TST
		result = rdVal & rsVal
		haveResult = false
	case 0x9: // NEG
		result, carry, overflow = addWithCarry(0, ^rsVal, true)
		haveCarry, haveOverflow = true, true
	case 0xA: // CMP
		result, carry, overflow = addWithCarry(rdVal, ^rsVal, true)
		haveCarry, haveOverflow = true, true
		haveResult = false
	case 0xB: // CMN
		result, carry, overflow = addWithCarry(rdVal, rsVal, false)
		haveCarry, haveOverflow = true, true
		haveResult = false
	case 0xC: // ORR
		result = rdVal | rsVal
	case 0xD: // MUL
		result = rdVal * rsVal
		extra += mulInternalCycles(rsVal)
	case 0xE: // BIC
		result = rdVal &^ rsVal
	case 0xF: // MVN
		result = ^rsVal
	}

	if haveResult {
		c.SetR(rd, result)
	}
	n := result&0x80000000 != 0
	z := result == 0
	cFlag, vFlag := c.C(), c.V()
	if haveCarry {
		cFlag = carry
	}
	if haveOverflow {
		vFlag = overflow
	}
	c.SetNZCV(n, z, cFlag, vFlag)
	return extra
}

// --- Format 5: Hi register operations / branch exchange --------------------

func thumbHiRegBX(c *Core, instr uint16) int {
	op := (instr >> 8) & 0x3
	h1 := instr&(1<<7) != 0
	h2 := instr&(1<<6) != 0
	rs := int((instr >> 3) & 0x7)
	if h2 {
		rs += 8
	}
	rd := int(instr & 0x7)
	if h1 {
		rd += 8
	}

	switch op {
	case 0x0: // ADD
		result := c.R(rd) + c.R(rs)
		c.SetR(rd, result)
		if rd == 15 {
			c.flushPipeline()
			return 2
		}
	case 0x1: // CMP
		result, carry, overflow := addWithCarry(c.R(rd), ^c.R(rs), true)
		c.SetNZCV(result&0x80000000 != 0, result == 0, carry, overflow)
	case 0x2: // MOV
		c.SetR(rd, c.R(rs))
		if rd == 15 {
			c.flushPipeline()
			return 2
		}
	case 0x3: // BX
		target := c.R(rs)
		c.SetThumb(target&1 != 0)
		c.SetPC(target &^ 1)
		c.flushPipeline()
		return 2
	}
	return 0
}

// --- Format 6: PC-relative load ---------------------------------------------

func thumbPCRelativeLoad(c *Core, instr uint16) int {
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	base := (c.PC() + 2) &^ 3 // PC read-ahead (+2 for THUMB) then word-align
	v, cyc := c.bus.Read32(base+imm, NonSeqData)
	c.SetR(rd, v)
	return cyc + 1
}

// --- Format 7: load/store with register offset ------------------------------

func thumbLoadStoreRegOffset(c *Core, instr uint16) int {
	lBit := instr&(1<<11) != 0
	bBit := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.R(rb) + c.R(ro)

	extra := 0
	if lBit {
		if bBit {
			v, cyc := c.bus.Read8(addr, NonSeqData)
			extra += cyc
			c.SetR(rd, uint32(v))
		} else {
			v, cyc := c.bus.Read32(addr, NonSeqData)
			extra += cyc
			c.SetR(rd, rotateMisaligned(v, addr))
		}
		extra++
	} else {
		if bBit {
			extra += c.bus.Write8(addr, byte(c.R(rd)), NonSeqData)
		} else {
			extra += c.bus.Write32(addr, c.R(rd), NonSeqData)
		}
	}
	return extra
}

// --- Format 8: load/store sign-extended byte/halfword -----------------------

func thumbLoadStoreSignExtended(c *Core, instr uint16) int {
	hBit := instr&(1<<11) != 0
	sBit := instr&(1<<10) != 0
	ro := int((instr >> 6) & 0x7)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.R(rb) + c.R(ro)

	extra := 0
	switch {
	case !sBit && !hBit: // STRH
		extra += c.bus.Write16(addr, uint16(c.R(rd)), NonSeqData)
	case !sBit && hBit: // LDRH
		v, cyc := c.bus.Read16(addr, NonSeqData)
		extra += cyc + 1
		c.SetR(rd, uint32(rotr32(uint32(v), uint(addr&1)*8)))
	case sBit && !hBit: // LDSB
		v, cyc := c.bus.Read8(addr, NonSeqData)
		extra += cyc + 1
		c.SetR(rd, uint32(int32(int8(v))))
	case sBit && hBit: // LDSH
		v, cyc := c.bus.Read16(addr, NonSeqData)
		extra += cyc + 1
		if addr&1 != 0 {
			c.SetR(rd, uint32(int32(int8(byte(v>>8)))))
		} else {
			c.SetR(rd, uint32(int32(int16(v))))
		}
	}
	return extra
}

// --- Format 9: load/store with immediate offset ------------------------------

func thumbLoadStoreImmOffset(c *Core, instr uint16) int {
	bBit := instr&(1<<12) != 0
	lBit := instr&(1<<11) != 0
	imm := uint32((instr >> 6) & 0x1F)
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)

	var addr uint32
	if bBit {
		addr = c.R(rb) + imm
	} else {
		addr = c.R(rb) + imm*4
	}

	extra := 0
	if lBit {
		if bBit {
			v, cyc := c.bus.Read8(addr, NonSeqData)
			extra += cyc
			c.SetR(rd, uint32(v))
		} else {
			v, cyc := c.bus.Read32(addr, NonSeqData)
			extra += cyc
			c.SetR(rd, rotateMisaligned(v, addr))
		}
		extra++
	} else {
		if bBit {
			extra += c.bus.Write8(addr, byte(c.R(rd)), NonSeqData)
		} else {
			extra += c.bus.Write32(addr, c.R(rd), NonSeqData)
		}
	}
	return extra
}

// --- Format 10: load/store halfword -------------------------------------------

func thumbLoadStoreHalfword(c *Core, instr uint16) int {
	lBit := instr&(1<<11) != 0
	imm := uint32((instr>>6)&0x1F) << 1
	rb := int((instr >> 3) & 0x7)
	rd := int(instr & 0x7)
	addr := c.R(rb) + imm

	extra := 0
	if lBit {
		v, cyc := c.bus.Read16(addr, NonSeqData)
		extra += cyc + 1
		c.SetR(rd, uint32(rotr32(uint32(v), uint(addr&1)*8)))
	} else {
		extra += c.bus.Write16(addr, uint16(c.R(rd)), NonSeqData)
	}
	return extra
}

// --- Format 11: SP-relative load/store -----------------------------------------

func thumbSPRelativeLoadStore(c *Core, instr uint16) int {
	lBit := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	addr := c.R(13) + imm

	extra := 0
	if lBit {
		v, cyc := c.bus.Read32(addr, NonSeqData)
		extra += cyc + 1
		c.SetR(rd, rotateMisaligned(v, addr))
	} else {
		extra += c.bus.Write32(addr, c.R(rd), NonSeqData)
	}
	return extra
}

// --- Format 12: load address ------------------------------------------------

func thumbLoadAddress(c *Core, instr uint16) int {
	spSource := instr&(1<<11) != 0
	rd := int((instr >> 8) & 0x7)
	imm := uint32(instr&0xFF) << 2
	if spSource {
		c.SetR(rd, c.R(13)+imm)
	} else {
		c.SetR(rd, ((c.PC()+2)&^3)+imm)
	}
	return 0
}

// --- Format 13: add offset to SP --------------------------------------------

func thumbAddOffsetToSP(c *Core, instr uint16) int {
	negative := instr&(1<<7) != 0
	imm := uint32(instr&0x7F) << 2
	if negative {
		c.SetR(13, c.R(13)-imm)
	} else {
		c.SetR(13, c.R(13)+imm)
	}
	return 0
}

// --- Format 14: push/pop registers -------------------------------------------

func thumbPushPop(c *Core, instr uint16) int {
	pop := instr&(1<<11) != 0
	rBit := instr&(1<<8) != 0
	list := uint32(instr & 0xFF)

	order := make([]int, 0, 9)
	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) != 0 {
			order = append(order, i)
		}
	}
	extra := 0
	first := true
	if pop {
		if rBit {
			order = append(order, 15)
		}
		addr := c.R(13)
		for _, reg := range order {
			access := SeqData
			if first {
				access = NonSeqData
				first = false
			}
			v, cyc := c.bus.Read32(addr, access)
			extra += cyc
			addr += 4
			if reg == 15 {
				c.SetPC(v &^ 1)
				c.flushPipeline()
				extra += 2
			} else {
				c.SetR(reg, v)
			}
		}
		c.SetR(13, addr)
		extra++
	} else {
		if rBit {
			order = append(order, 14)
		}
		count := len(order)
		addr := c.R(13) - uint32(count)*4
		c.SetR(13, addr)
		for _, reg := range order {
			access := SeqData
			if first {
				access = NonSeqData
				first = false
			}
			extra += c.bus.Write32(addr, c.R(reg), access)
			addr += 4
		}
	}
	return extra
}

// --- Format 15: multiple load/store ------------------------------------------

func thumbMultipleLoadStore(c *Core, instr uint16) int {
	lBit := instr&(1<<11) != 0
	rb := int((instr >> 8) & 0x7)
	list := uint32(instr & 0xFF)
	count := bits.OnesCount32(list)

	addr := c.R(rb)
	extra := 0
	first := true
	writeBase := addr + uint32(count)*4

	if list == 0 {
		// Degenerate empty list: real hardware transfers R15 and moves the
		// base by 0x40; THUMB software essentially never encodes this.
		v, cyc := c.bus.Read32(addr, NonSeqData)
		extra += cyc
		if lBit {
			c.SetPC(v &^ 1)
			c.flushPipeline()
		}
		c.SetR(rb, addr+0x40)
		return extra
	}

	for i := 0; i < 8; i++ {
		if list&(1<<uint(i)) == 0 {
			continue
		}
		access := SeqData
		if first {
			access = NonSeqData
			first = false
		}
		if lBit {
			v, cyc := c.bus.Read32(addr, access)
			extra += cyc
			c.SetR(i, v)
		} else {
			extra += c.bus.Write32(addr, c.R(i), access)
		}
		addr += 4
	}

	if lBit {
		if list&(1<<uint(rb)) == 0 {
			c.SetR(rb, writeBase)
		}
	} else {
		c.SetR(rb, writeBase)
	}
	return extra
}

// --- Format 16: conditional branch -------------------------------------------

func thumbConditionalBranch(c *Core, instr uint16) int {
	cond := uint32((instr >> 8) & 0xF)
	if !checkCondition(cond, c.CPSR()) {
		return 0
	}
	offset := int32(int8(instr&0xFF)) * 2
	c.SetPC(uint32(int32(c.PC()+2) + offset)) // target relative to PC+4
	c.flushPipeline()
	return 2
}

// --- Format 17: software interrupt --------------------------------------------

func thumbSWI(c *Core, instr uint16) int { return c.RaiseSWIWithNumber(uint8(instr)) }

// --- Format 18: unconditional branch -------------------------------------------

func thumbUnconditionalBranch(c *Core, instr uint16) int {
	offset := int32(instr&0x7FF) << 21 >> 20 // sign-extend 11-bit, then *2
	c.SetPC(uint32(int32(c.PC()+2) + offset)) // target relative to PC+4
	c.flushPipeline()
	return 2
}

// --- Format 19: long branch with link -----------------------------------------

func thumbBranchLinkHigh(c *Core, instr uint16) int {
	offset := int32(instr&0x7FF) << 21 >> 9 // sign-extend 11-bit, shift left 12
	// LR is computed from this instruction's PC+4, matching the THUMB
	// read-ahead convention (stepThumb has only advanced PC by 2 so far).
	c.SetR(14, uint32(int32(c.PC()+2)+offset))
	return 0
}

func thumbBranchLinkLow(c *Core, instr uint16) int {
	offset := uint32(instr&0x7FF) << 1
	returnAddr := c.PC() // already advanced past this half by stepThumb's fetch
	target := c.R(14) + offset
	c.SetR(14, returnAddr|1) // THUMB bit set, per LR-return convention
	c.SetPC(target)
	c.flushPipeline()
	return 2
}
