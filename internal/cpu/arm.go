package cpu

import "math/bits"

// armOp executes one decoded ARM instruction (condition already checked)
// and returns the cycles it cost beyond its own opcode fetch.
type armOp func(c *Core, instr uint32) int

// armTable is indexed by (bits27..20 << 4) | bits7..4: a 4096-entry table
// built once at init time by classifying every possible combination of
// those twelve bits, rather than as a hand-written switch per literal
// opcode. Each table entry dispatches to
// a handler that re-examines the full 32-bit instruction for the fields
// table classification doesn't need (operand2 form, condition codes on
// data transfers, etc).
var armTable [4096]armOp

func init() {
	for i := 0; i < 4096; i++ {
		hi8 := uint32(i>>4) & 0xFF // instruction bits 27..20
		lo4 := uint32(i) & 0xF     // instruction bits 7..4
		armTable[i] = classifyARM(hi8, lo4)
	}
}

func classifyARM(hi8, lo4 uint32) armOp {
	switch {
	case hi8 == 0x12 && lo4 == 0x1:
		return armBranchExchange
	case hi8&0xFC == 0x00 && lo4 == 0x9:
		return armMultiply
	case hi8&0xF8 == 0x08 && lo4 == 0x9:
		return armMultiplyLong
	case hi8&0xFB == 0x10 && lo4 == 0x9:
		return armSwap
	case hi8&0xE0 == 0x00 && (lo4 == 0xB || lo4 == 0xD || lo4 == 0xF):
		return armHalfwordTransfer
	case hi8&0xC0 == 0x00:
		return armDataProcessing
	case hi8&0xC0 == 0x40:
		return armSingleDataTransfer
	case hi8&0xE0 == 0x80:
		return armBlockDataTransfer
	case hi8&0xE0 == 0xA0:
		return armBranch
	case hi8&0xF0 == 0xF0:
		return armSWI
	default: // coprocessor data transfer / data op / register transfer: unimplemented on GBA
		return armUndefinedOp
	}
}

func armUndefinedOp(c *Core, instr uint32) int { return c.RaiseUndefined() }
func armSWI(c *Core, instr uint32) int { return c.RaiseSWIWithNumber(uint8(instr >> 16)) }

func armBranchExchange(c *Core, instr uint32) int {
	rm := instr & 0xF
	target := c.readOperand(int(rm), false)
	c.SetThumb(target&1 != 0)
	c.SetPC(target &^ 1)
	c.flushPipeline()
	return 3 // 2S + 1N worth of pipeline refill beyond the opcode's own fetch
}

func armBranch(c *Core, instr uint32) int {
	link := instr&(1<<24) != 0
	offset := int32(instr&0x00FFFFFF) << 8 >> 6 // sign-extend 24-bit, then *4
	if link {
		c.SetR(14, c.PC()) // already the address of the next sequential instruction
	}
	c.SetPC(uint32(int32(c.PC()+4) + offset)) // target relative to PC+8
	c.flushPipeline()
	return 3
}

// --- Data processing -------------------------------------------------

const (
	dpAND = 0x0
	dpEOR = 0x1
	dpSUB = 0x2
	dpRSB = 0x3
	dpADD = 0x4
	dpADC = 0x5
	dpSBC = 0x6
	dpRSC = 0x7
	dpTST = 0x8
	dpTEQ = 0x9
	dpCMP = 0xA
	dpCMN = 0xB
	dpORR = 0xC
	dpMOV = 0xD
	dpBIC = 0xE
	dpMVN = 0xF
)

func addWithCarry(a, b uint32, carryIn bool) (result uint32, carryOut, overflow bool) {
	cin := uint64(0)
	if carryIn {
		cin = 1
	}
	sum := uint64(a) + uint64(b) + cin
	result = uint32(sum)
	carryOut = sum > 0xFFFFFFFF
	overflow = (a^result)&(b^result)&0x80000000 != 0
	return
}

func armDataProcessing(c *Core, instr uint32) int {
	iBit := instr&(1<<25) != 0
	opcode := (instr >> 21) & 0xF
	sBit := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	isPSRTransfer := !sBit && opcode >= dpTST && opcode <= dpCMN
	if isPSRTransfer {
		return armPSRTransfer(c, instr)
	}

	extra := 0
	carryIn := c.C()
	var op2 uint32
	var shiftCarry bool
	if iBit {
		imm := instr & 0xFF
		rotate := (instr >> 8) & 0xF
		op2 = rotr32(imm, uint(rotate*2))
		shiftCarry = carryIn
		if rotate != 0 {
			shiftCarry = op2&0x80000000 != 0
		}
	} else {
		rm := int(instr & 0xF)
		st := ShiftType((instr >> 5) & 0x3)
		regShift := instr&(1<<4) != 0
		if regShift {
			rs := int((instr >> 8) & 0xF)
			amount := uint8(c.readOperand(rs, false))
			val := c.readOperand(rm, true)
			op2, shiftCarry = ShiftRegister(val, st, amount, carryIn)
			extra++
		} else {
			amount := uint8((instr >> 7) & 0x1F)
			val := c.readOperand(rm, false)
			op2, shiftCarry = ShiftImmediate(val, st, amount, carryIn)
		}
	}

	rnVal := c.readOperand(rn, !iBit && instr&(1<<4) != 0)
	var result uint32
	var carryOut, overflow bool
	haveCarry, haveOverflow := true, true
	haveResult := true

	switch opcode {
	case dpAND:
		result = rnVal & op2
		carryOut = shiftCarry
		haveOverflow = false
	case dpEOR:
		result = rnVal ^ op2
		carryOut = shiftCarry
		haveOverflow = false
	case dpSUB:
		result, carryOut, overflow = addWithCarry(rnVal, ^op2, true)
	case dpRSB:
		result, carryOut, overflow = addWithCarry(op2, ^rnVal, true)
	case dpADD:
		result, carryOut, overflow = addWithCarry(rnVal, op2, false)
	case dpADC:
		result, carryOut, overflow = addWithCarry(rnVal, op2, carryIn)
	case dpSBC:
		result, carryOut, overflow = addWithCarry(rnVal, ^op2, carryIn)
	case dpRSC:
		result, carryOut, overflow = addWithCarry(op2, ^rnVal, carryIn)
	case dpTST:
		result = rnVal & op2
		carryOut = shiftCarry
		haveOverflow = false
		haveResult = false
	case dpTEQ:
		result = rnVal ^ op2
		carryOut = shiftCarry
		haveOverflow = false
		haveResult = false
	case dpCMP:
		result, carryOut, overflow = addWithCarry(rnVal, ^op2, true)
		haveResult = false
	case dpCMN:
		result, carryOut, overflow = addWithCarry(rnVal, op2, false)
		haveResult = false
	case dpORR:
		result = rnVal | op2
		carryOut = shiftCarry
		haveOverflow = false
	case dpMOV:
		result = op2
		carryOut = shiftCarry
		haveOverflow = false
	case dpBIC:
		result = rnVal &^ op2
		carryOut = shiftCarry
		haveOverflow = false
	case dpMVN:
		result = ^op2
		carryOut = shiftCarry
		haveOverflow = false
	}

	if rd != 15 {
		if haveResult {
			c.SetR(rd, result)
		}
	} else {
		c.SetPC(result)
		c.flushPipeline()
		extra += 1
		if sBit {
			// PC-writing S-set data processing restores CPSR from SPSR,
			// the mechanism BIOS/exception handlers use to return
			// (e.g. "MOVS PC,LR").
			c.SetCPSR(c.SPSR())
			return extra
		}
	}

	if sBit && rd != 15 {
		z := result == 0
		n := result&0x80000000 != 0
		cFlag, vFlag := c.C(), c.V()
		if haveCarry {
			cFlag = carryOut
		}
		if haveOverflow {
			vFlag = overflow
		}
		c.SetNZCV(n, z, cFlag, vFlag)
	}
	return extra
}

func armPSRTransfer(c *Core, instr uint32) int {
	useSPSR := instr&(1<<22) != 0
	isMSR := instr&(1<<21) != 0
	if !isMSR {
		rd := int((instr >> 12) & 0xF)
		if useSPSR {
			c.SetR(rd, c.SPSR())
		} else {
			c.SetR(rd, c.CPSR())
		}
		return 0
	}

	var operand uint32
	if instr&(1<<25) != 0 {
		imm := instr & 0xFF
		rotate := (instr >> 8) & 0xF
		operand = rotr32(imm, uint(rotate*2))
	} else {
		rm := int(instr & 0xF)
		operand = c.readOperand(rm, false)
	}

	var mask uint32
	if instr&(1<<19) != 0 {
		mask |= 0xFF000000 // flags field
	}
	if instr&(1<<16) != 0 {
		mask |= 0x000000FF // control field (mode/T/I/F) — only valid in privileged modes
	}

	if useSPSR {
		c.SetSPSR((c.SPSR() &^ mask) | (operand & mask))
	} else {
		c.SetCPSR((c.CPSR() &^ mask) | (operand & mask))
	}
	return 0
}

// --- Multiply ----------------------------------------------------------

func armMultiply(c *Core, instr uint32) int {
	accumulate := instr&(1<<21) != 0
	sBit := instr&(1<<20) != 0
	rd := int((instr >> 16) & 0xF)
	rn := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	result := c.R(rm) * c.R(rs)
	if accumulate {
		result += c.R(rn)
	}
	c.SetR(rd, result)
	if sBit {
		c.SetNZCV(result&0x80000000 != 0, result == 0, c.C(), c.V())
	}
	return mulInternalCycles(c.R(rs))
}

func armMultiplyLong(c *Core, instr uint32) int {
	signed := instr&(1<<22) != 0
	accumulate := instr&(1<<21) != 0
	sBit := instr&(1<<20) != 0
	rdHi := int((instr >> 16) & 0xF)
	rdLo := int((instr >> 12) & 0xF)
	rs := int((instr >> 8) & 0xF)
	rm := int(instr & 0xF)

	var hi, lo uint32
	if signed {
		product := int64(int32(c.R(rm))) * int64(int32(c.R(rs)))
		if accumulate {
			product += int64(uint64(c.R(rdHi))<<32 | uint64(c.R(rdLo)))
		}
		hi, lo = uint32(uint64(product)>>32), uint32(uint64(product))
	} else {
		product := uint64(c.R(rm)) * uint64(c.R(rs))
		if accumulate {
			product += uint64(c.R(rdHi))<<32 | uint64(c.R(rdLo))
		}
		hi, lo = uint32(product>>32), uint32(product)
	}
	c.SetR(rdHi, hi)
	c.SetR(rdLo, lo)
	if sBit {
		z := hi == 0 && lo == 0
		n := hi&0x80000000 != 0
		c.SetNZCV(n, z, c.C(), c.V())
	}
	extra := mulInternalCycles(c.R(rs)) + 1
	if accumulate {
		extra++
	}
	return extra
}

// mulInternalCycles approximates the ARM7TDMI's early-termination
// multiplier: the internal cycle count depends on how many of the top
// bytes of the Rs operand are all-0 or all-1.
func mulInternalCycles(rs uint32) int {
	if rs == 0 || rs == 0xFFFFFFFF {
		return 1
	}
	lead := bits.LeadingZeros32(rs)
	if rs&0x80000000 != 0 {
		lead = bits.LeadingZeros32(^rs)
	}
	switch {
	case lead >= 24:
		return 1
	case lead >= 16:
		return 2
	case lead >= 8:
		return 3
	default:
		return 4
	}
}

// --- Single data swap ----------------------------------------------------

func armSwap(c *Core, instr uint32) int {
	byteSwap := instr&(1<<22) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	rm := int(instr & 0xF)
	addr := c.R(rn)

	extra := 0
	if byteSwap {
		old, cyc := c.bus.Read8(addr, NonSeqData)
		extra += cyc
		extra += c.bus.Write8(addr, byte(c.R(rm)), SeqData)
		c.SetR(rd, uint32(old))
	} else {
		old, cyc := c.bus.Read32(addr, NonSeqData)
		extra += cyc
		extra += c.bus.Write32(addr, c.R(rm), SeqData)
		c.SetR(rd, rotateMisaligned(old, addr))
	}
	return extra + 1
}

// rotateMisaligned applies the ARM unaligned-word-read rotate: reading
// a word from an address not aligned to 4 rotates the fetched
// word right by 8 * (addr & 3).
func rotateMisaligned(v, addr uint32) uint32 {
	return rotr32(v, uint(addr&3)*8)
}

// --- Single data transfer (LDR/STR) -------------------------------------

func armSingleDataTransfer(c *Core, instr uint32) int {
	iBit := instr&(1<<25) != 0
	pBit := instr&(1<<24) != 0
	uBit := instr&(1<<23) != 0
	bBit := instr&(1<<22) != 0
	wBit := instr&(1<<21) != 0
	lBit := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)

	if iBit && instr&(1<<4) != 0 {
		return c.RaiseUndefined()
	}

	var offset uint32
	if iBit {
		rm := int(instr & 0xF)
		st := ShiftType((instr >> 5) & 0x3)
		amount := uint8((instr >> 7) & 0x1F)
		offset, _ = ShiftImmediate(c.R(rm), st, amount, c.C())
	} else {
		offset = instr & 0xFFF
	}

	base := c.R(rn)
	var addr uint32
	if uBit {
		addr = base + offset
	} else {
		addr = base - offset
	}

	effective := base
	if pBit {
		effective = addr
	}

	extra := 0
	if lBit {
		if bBit {
			v, cyc := c.bus.Read8(effective, NonSeqData)
			extra += cyc
			c.SetR(rd, uint32(v))
		} else {
			v, cyc := c.bus.Read32(effective, NonSeqData)
			extra += cyc
			c.SetR(rd, rotateMisaligned(v, effective))
		}
		extra++ // internal cycle to move the loaded value into the register
		if rd == 15 {
			c.flushPipeline()
			extra += 2
		}
	} else {
		storeVal := c.R(rd)
		if rd == 15 {
			storeVal = c.readOperand(15, false) + 4 // STR PC stores PC+12 from the instruction's own PC+8 read-ahead
		}
		if bBit {
			extra += c.bus.Write8(effective, byte(storeVal), NonSeqData)
		} else {
			extra += c.bus.Write32(effective, storeVal, NonSeqData)
		}
	}

	if !pBit {
		c.SetR(rn, addr)
	} else if wBit {
		c.SetR(rn, addr)
	}
	return extra
}

// --- Halfword / signed transfer -----------------------------------------

func armHalfwordTransfer(c *Core, instr uint32) int {
	pBit := instr&(1<<24) != 0
	uBit := instr&(1<<23) != 0
	immForm := instr&(1<<22) != 0
	wBit := instr&(1<<21) != 0
	lBit := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	rd := int((instr >> 12) & 0xF)
	sBit := instr&(1<<6) != 0
	hBit := instr&(1<<5) != 0

	var offset uint32
	if immForm {
		offset = ((instr >> 4) & 0xF0) | (instr & 0xF)
	} else {
		rm := int(instr & 0xF)
		offset = c.R(rm)
	}

	base := c.R(rn)
	var addr uint32
	if uBit {
		addr = base + offset
	} else {
		addr = base - offset
	}
	effective := base
	if pBit {
		effective = addr
	}

	extra := 0
	if lBit {
		switch {
		case !sBit && hBit: // LDRH
			v, cyc := c.bus.Read16(effective, NonSeqData)
			extra += cyc
			c.SetR(rd, uint32(rotr32(uint32(v), uint(effective&1)*8)))
		case sBit && !hBit: // LDRSB
			v, cyc := c.bus.Read8(effective, NonSeqData)
			extra += cyc
			c.SetR(rd, uint32(int32(int8(v))))
		case sBit && hBit: // LDRSH
			v, cyc := c.bus.Read16(effective, NonSeqData)
			extra += cyc
			if effective&1 != 0 {
				c.SetR(rd, uint32(int32(int8(byte(v>>8)))))
			} else {
				c.SetR(rd, uint32(int32(int16(v))))
			}
		}
		extra++
	} else { // STRH
		extra += c.bus.Write16(effective, uint16(c.R(rd)), NonSeqData)
	}

	if !pBit || wBit {
		c.SetR(rn, addr)
	}
	return extra
}

// --- Block data transfer (LDM/STM) --------------------------------------

func armBlockDataTransfer(c *Core, instr uint32) int {
	pBit := instr&(1<<24) != 0
	uBit := instr&(1<<23) != 0
	sBit := instr&(1<<22) != 0
	wBit := instr&(1<<21) != 0
	lBit := instr&(1<<20) != 0
	rn := int((instr >> 16) & 0xF)
	list := instr & 0xFFFF

	base := c.R(rn)
	count := bits.OnesCount32(list)
	writebackCount := count

	// Hardware quirk: an empty register list still transfers R15 but
	// the base is incremented/decremented by 0x40, as if all 16 had been
	// listed, even though only one word is actually moved.
	if list == 0 {
		list = 1 << 15
		count = 1
		writebackCount = 16
	}

	userBankTransfer := sBit && (!lBit || list&(1<<15) == 0)

	// Registers always transfer in ascending-number order regardless of U;
	// for a descending transfer the lowest register still lands at the
	// lowest address, so the walk starts base-4*count bytes down.
	addr := base
	if !uBit {
		addr = base - uint32(count)*4
	}

	order := make([]int, 0, 16)
	for i := 0; i < 16; i++ {
		if list&(1<<uint(i)) != 0 {
			order = append(order, i)
		}
	}

	extra := 0
	cur := addr
	first := true
	for _, reg := range order {
		var transferAddr uint32
		if pBit == uBit { // pre-indexed relative to the transfer direction
			transferAddr = cur + 4
		} else {
			transferAddr = cur
		}
		cur += 4

		access := SeqData
		if first {
			access = NonSeqData
			first = false
		}
		if lBit {
			v, cyc := c.bus.Read32(transferAddr, access)
			extra += cyc
			if reg == 15 {
				c.SetPC(v &^ 3)
				c.flushPipeline()
				extra += 2
				if sBit {
					c.SetCPSR(c.SPSR())
				}
			} else if userBankTransfer {
				c.SetRUser(reg, v)
			} else {
				c.SetR(reg, v)
			}
		} else {
			var v uint32
			if userBankTransfer && reg != 15 {
				v = c.RUser(reg)
			} else {
				v = c.R(reg)
			}
			if reg == 15 {
				v += 4
			}
			extra += c.bus.Write32(transferAddr, v, access)
		}
	}

	if wBit {
		if uBit {
			c.SetR(rn, base+uint32(writebackCount)*4)
		} else {
			c.SetR(rn, base-uint32(writebackCount)*4)
		}
	}
	return extra
}
