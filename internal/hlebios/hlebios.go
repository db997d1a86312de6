// Package hlebios provides high-level emulation of the GBA's BIOS SWI
// calls, used in place of a dumped BIOS image. Each function mutates CPU
// registers and bus-mapped memory through the same Bus interface the CPU
// itself drives; nothing here reaches behind the bus.
package hlebios

import "github.com/dskellund/gbacore/internal/cpu"

// SWI numbers, matching the comment field the real BIOS dispatches on.
const (
	SWISoftReset            = 0x00
	SWIRegisterRamReset     = 0x01
	SWIHalt                 = 0x02
	SWIStop                 = 0x03
	SWIIntrWait             = 0x04
	SWIVBlankIntrWait       = 0x05
	SWIDiv                  = 0x06
	SWIDivArm               = 0x07
	SWISqrt                 = 0x08
	SWIArcTan               = 0x09
	SWIArcTan2              = 0x0A
	SWICpuSet               = 0x0B
	SWICpuFastSet           = 0x0C
	SWIBgAffineSet          = 0x0E
	SWIObjAffineSet         = 0x0F
	SWILZ77UnCompWram       = 0x11
	SWILZ77UnCompVram       = 0x12
	SWIHuffUnComp           = 0x13
	SWIRLUnCompWram         = 0x14
	SWIRLUnCompVram         = 0x15
	SWIDiff8bitUnFilterWram = 0x16
	SWIDiff16bitUnFilter    = 0x18
)

// State carries the one piece of BIOS state that outlives a single SWI
// call: the interrupt mask IntrWait/VBlankIntrWait is blocked on. The
// orchestrator (internal/emu) owns the actual halting and wakes the core
// once Notify reports the wait condition satisfied — the real BIOS does
// the same thing by spinning on a RAM flag the interrupt handler updates.
type State struct {
	waiting   bool
	waitFlags uint16
}

// Waiting reports whether a SWI call left the core blocked on an interrupt.
func (s *State) Waiting() bool { return s.waiting }

// Notify is called by the orchestrator with the IF bits that just fired.
// It reports whether the wait condition is now satisfied, clearing the
// wait state if so.
func (s *State) Notify(firedIRQs uint16) bool {
	if !s.waiting {
		return false
	}
	if firedIRQs&s.waitFlags != 0 {
		s.waiting = false
		s.waitFlags = 0
		return true
	}
	return false
}

// Dispatch executes the BIOS routine identified by number, reading
// arguments from r0-r3 per the real BIOS's calling convention and writing
// results back the same way. c.Halt()/c.Stop() model the Halt/Stop calls;
// the orchestrator is responsible for actually idling the scheduler while
// the core is halted and for waking it on a matching interrupt.
func Dispatch(c *cpu.Core, b cpu.Bus, st *State, number uint8) {
	switch number {
	case SWISoftReset:
		softReset(c, b)
	case SWIRegisterRamReset:
		registerRamReset(b, c.R(0))
	case SWIHalt:
		c.Halt()
	case SWIStop:
		c.Stop()
	case SWIIntrWait:
		intrWait(c, st, c.R(0) != 0, uint16(c.R(1)))
	case SWIVBlankIntrWait:
		intrWait(c, st, true, 1) // bit0 = VBlank
	case SWIDiv:
		result, mod, absResult := divide(int32(c.R(0)), int32(c.R(1)))
		c.SetR(0, uint32(result))
		c.SetR(1, uint32(mod))
		c.SetR(3, uint32(absResult))
	case SWIDivArm:
		result, mod, absResult := divide(int32(c.R(1)), int32(c.R(0)))
		c.SetR(0, uint32(result))
		c.SetR(1, uint32(mod))
		c.SetR(3, uint32(absResult))
	case SWISqrt:
		c.SetR(0, uint32(isqrt(c.R(0))))
	case SWIArcTan:
		c.SetR(0, uint32(uint16(arcTan(int16(c.R(0))))))
	case SWIArcTan2:
		c.SetR(0, uint32(uint16(arcTan2(int16(c.R(0)), int16(c.R(1))))))
	case SWICpuSet:
		cpuSet(b, c.R(0), c.R(1), c.R(2))
	case SWICpuFastSet:
		cpuFastSet(b, c.R(0), c.R(1), c.R(2))
	case SWIBgAffineSet:
		bgAffineSet(b, c.R(0), c.R(1), c.R(2))
	case SWIObjAffineSet:
		objAffineSet(b, c.R(0), c.R(1), c.R(2), c.R(3))
	case SWILZ77UnCompWram:
		lz77Decompress(b, c.R(0), c.R(1), wramWriter(b))
	case SWILZ77UnCompVram:
		lz77Decompress(b, c.R(0), c.R(1), vramWriter(b))
	case SWIHuffUnComp:
		huffUnComp(b, c.R(0), c.R(1))
	case SWIRLUnCompWram:
		rlDecompress(b, c.R(0), c.R(1), wramWriter(b))
	case SWIRLUnCompVram:
		rlDecompress(b, c.R(0), c.R(1), vramWriter(b))
	case SWIDiff8bitUnFilterWram:
		diff8BitUnFilter(b, c.R(0), c.R(1))
	case SWIDiff16bitUnFilter:
		diff16BitUnFilter(b, c.R(0), c.R(1))
	}
}

// softReset models SoftReset's documented effect for our purposes: it
// clears the top of IWRAM's work area and resets the core to its initial
// SVC state. Real hardware also re-enters the BIOS's own startup code;
// with no BIOS image present there's nothing further to replay.
func softReset(c *cpu.Core, b cpu.Bus) {
	for addr := uint32(0x03007E00); addr < 0x03008000; addr++ {
		b.Write8(addr, 0, cpu.NonSeqData)
	}
	c.Reset()
}

// registerRamReset clears the RAM areas selected by the bitmask in r0
// (bit0=EWRAM, bit1=IWRAM minus the top 0x200, bit2=palette, bit3=VRAM,
// bit4=OAM, bit5=SIO, bit6=sound, bit7=IO). Only the areas a Bus exposes
// through ordinary writes are touched; flags with no addressable region
// here are accepted and ignored rather than rejected.
func registerRamReset(b cpu.Bus, flags uint32) {
	clear := func(base uint32, size int) {
		for i := 0; i < size; i++ {
			b.Write8(base+uint32(i), 0, cpu.NonSeqData)
		}
	}
	if flags&(1<<0) != 0 {
		clear(0x02000000, 256*1024)
	}
	if flags&(1<<1) != 0 {
		clear(0x03000000, 32*1024-0x200)
	}
	if flags&(1<<2) != 0 {
		clear(0x05000000, 1024)
	}
	if flags&(1<<3) != 0 {
		clear(0x06000000, 96*1024)
	}
	if flags&(1<<4) != 0 {
		clear(0x07000000, 1024)
	}
}

func intrWait(c *cpu.Core, st *State, clearFirst bool, flags uint16) {
	_ = clearFirst // real BIOS optionally waits even if the flag is already set; the orchestrator always re-checks on the next IRQ
	st.waiting = true
	st.waitFlags = flags
	c.Halt()
}

// divide implements the BIOS Div/DivArm contract: truncating (toward
// zero) signed division, with the remainder and abs(result) also
// reported. Division by zero mirrors the real BIOS's degenerate (and
// undefined on real hardware) behavior by returning zero rather than
// panicking.
func divide(numerator, denominator int32) (result, mod, absResult int32) {
	if denominator == 0 {
		return 0, 0, 0
	}
	result = numerator / denominator
	mod = numerator % denominator
	absResult = result
	if absResult < 0 {
		absResult = -absResult
	}
	return result, mod, absResult
}

// isqrt computes the integer square root used by SWI Sqrt.
func isqrt(v uint32) uint16 {
	if v == 0 {
		return 0
	}
	var x uint32 = v
	var res uint32
	bit := uint32(1) << 30
	for bit > x {
		bit >>= 2
	}
	for bit != 0 {
		if x >= res+bit {
			x -= res + bit
			res = (res >> 1) + bit
		} else {
			res >>= 1
		}
		bit >>= 2
	}
	return uint16(res)
}
