package cpu

// ShiftType is the 2-bit barrel shifter operation selector shared by ARM
// data-processing operand2 and the THUMB move-shifted-register format.
type ShiftType uint8

const (
	ShiftLSL ShiftType = 0
	ShiftLSR ShiftType = 1
	ShiftASR ShiftType = 2
	ShiftROR ShiftType = 3
)

func rotr32(v uint32, n uint) uint32 {
	n &= 31
	if n == 0 {
		return v
	}
	return (v >> n) | (v << (32 - n))
}

// ShiftImmediate implements the barrel shifter for an immediate shift
// amount (ARM operand2 with an immediate count, and THUMB format 1).
// amount is the raw 5-bit encoded field: the architecture gives amount==0
// special meaning for LSR/ASR/ROR (encoding shift-by-32 and RRX
// respectively) but not for LSL, whose #0 simply means "no shift, carry
// unchanged".
func ShiftImmediate(value uint32, st ShiftType, amount uint8, carryIn bool) (result uint32, carryOut bool) {
	switch st {
	case ShiftLSL:
		if amount == 0 {
			return value, carryIn
		}
		carryOut = (value>>(32-uint(amount)))&1 != 0
		return value << amount, carryOut
	case ShiftLSR:
		if amount == 0 { // LSR #0 means LSR #32
			return 0, value&0x80000000 != 0
		}
		carryOut = (value>>(uint(amount)-1))&1 != 0
		return value >> amount, carryOut
	case ShiftASR:
		if amount == 0 { // ASR #0 means ASR #32
			if value&0x80000000 != 0 {
				return 0xFFFFFFFF, true
			}
			return 0, false
		}
		carryOut = (value>>(uint(amount)-1))&1 != 0
		return uint32(int32(value) >> amount), carryOut
	case ShiftROR:
		if amount == 0 { // ROR #0 means RRX: rotate right through carry by one bit
			carryOut = value&1 != 0
			cin := uint32(0)
			if carryIn {
				cin = 1
			}
			return (cin << 31) | (value >> 1), carryOut
		}
		carryOut = (value>>(uint(amount)-1))&1 != 0
		return rotr32(value, uint(amount)), carryOut
	}
	return value, carryIn
}

// ShiftRegister implements the barrel shifter for a register-specified
// shift amount (the low byte of Rs). A zero amount always leaves both the
// value and the carry flag untouched, regardless of shift type; amounts at
// or beyond the register width saturate per the ARM ARM's operand2 table.
func ShiftRegister(value uint32, st ShiftType, amount uint8, carryIn bool) (result uint32, carryOut bool) {
	if amount == 0 {
		return value, carryIn
	}
	switch st {
	case ShiftLSL:
		switch {
		case amount < 32:
			carryOut = (value>>(32-uint(amount)))&1 != 0
			return value << amount, carryOut
		case amount == 32:
			return 0, value&1 != 0
		default:
			return 0, false
		}
	case ShiftLSR:
		switch {
		case amount < 32:
			carryOut = (value>>(uint(amount)-1))&1 != 0
			return value >> amount, carryOut
		case amount == 32:
			return 0, value&0x80000000 != 0
		default:
			return 0, false
		}
	case ShiftASR:
		if amount < 32 {
			carryOut = (value>>(uint(amount)-1))&1 != 0
			return uint32(int32(value) >> amount), carryOut
		}
		if value&0x80000000 != 0 {
			return 0xFFFFFFFF, true
		}
		return 0, false
	case ShiftROR:
		n := amount & 31
		if n == 0 {
			return value, value&0x80000000 != 0
		}
		carryOut = (value>>(uint(n)-1))&1 != 0
		return rotr32(value, uint(n)), carryOut
	}
	return value, carryIn
}
