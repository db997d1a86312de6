// Package cpu implements the ARM7TDMI core: ARM and THUMB decode/execute,
// the barrel shifter, register banking, and exception entry. It consumes
// a Bus (see bus.go) for every memory access and reports the cycles each
// instruction cost so the scheduler can advance the rest of the machine
// in lockstep.
package cpu

//go:generate go run -tags memviz ../../cmd/decodedump -out decodetables.dot

// Exception vectors, in address order.
const (
	vectorReset         = 0x00000000
	vectorUndefined     = 0x00000004
	vectorSWI           = 0x00000008
	vectorPrefetchAbort = 0x0000000C
	vectorDataAbort     = 0x00000010
	vectorIRQ           = 0x00000018
	vectorFIQ           = 0x0000001C
)

// VectorSWI exposes the SWI exception vector so the orchestrator can tell
// HLE BIOS dispatch apart from ordinary code: when no real BIOS image is
// loaded, the region bus serves at this address is never actually
// executed (see internal/hlebios and internal/emu).
const VectorSWI = vectorSWI

// VectorIRQ exposes the IRQ exception vector for the same reason as
// VectorSWI: Step already vectors here automatically whenever the bus
// raises its IRQ line, real BIOS or not, so the orchestrator needs a way
// to recognize the no-BIOS case and take over before the next Step fetches
// the (nonexistent) handler bytes.
const VectorIRQ = vectorIRQ

// Core is the ARM7TDMI. It owns its register file and banked shadows; the
// bus it talks to is lent to it by the orchestrator rather than held
// across Step calls in spirit (in practice the interface value is cheap
// and stable for a process's lifetime, but Core never assumes anything
// about Bus's internal state between calls).
type Core struct {
	Registers

	bus Bus

	halted  bool
	stopped bool

	// codeSeq is true when the next instruction fetch is sequential to the
	// last one. Any write to R15 (branch, data-processing into PC, PC-
	// loading LDM/LDR, exception entry) clears it to model the pipeline
	// flush.
	codeSeq bool

	// openBus is the last successfully fetched opcode, returned by reads
	// from unmapped regions.
	openBus uint32

	lastSWI uint8
}

// NewCore constructs a Core wired to bus, reset to the SVC post-reset state.
func NewCore(bus Bus) *Core {
	c := &Core{bus: bus}
	c.Reset()
	return c
}

// Bus exposes the underlying bus for tooling (save states, tests).
func (c *Core) Bus() Bus { return c.bus }

// SetBus rewires the bus the core talks to (used by the orchestrator after
// deserializing a save state, and by tests).
func (c *Core) SetBus(b Bus) { c.bus = b }

// Reset reinitializes registers to the hardware reset shape. Reset has top
// priority among exceptions and is handled by zeroing state directly rather
// than by vectoring through Step, since nothing meaningful is executing
// yet.
func (c *Core) Reset() {
	c.Registers.Reset()
	c.halted = false
	c.stopped = false
	c.codeSeq = false
	c.openBus = 0
}

// Halted reports whether the core is in the low-power HALT state.
func (c *Core) Halted() bool { return c.halted }

// Halt puts the core to sleep until the bus raises its IRQ line
// ((IE & IF) != 0 with IME set), per the HALTCNT I/O write the BIOS's
// Halt() SWI performs. With IME clear the core stays halted even when
// IE & IF is nonzero.
func (c *Core) Halt() { c.halted = true }

// Stopped reports whether the core is in the deeper STOP state (used by
// the Stop() SWI). Step wakes it on any raised IRQ line, the same as Halt;
// the keypad/cartridge-only wake condition of real hardware is not
// modelled.
func (c *Core) Stopped() bool { return c.stopped }

func (c *Core) Stop()   { c.stopped = true }
func (c *Core) WakeUp() { c.stopped = false; c.halted = false }

// flushPipeline marks the next instruction fetch as non-sequential. Call
// this whenever R15 is written by anything other than the normal
// fall-through increment performed at the top of Step.
func (c *Core) flushPipeline() { c.codeSeq = false }

// readOperand returns the value of register i as an instruction operand,
// applying the PC-read-ahead convention: ARM instructions observe R15 as
// PC+8, THUMB as PC+4. extraForRegShift adds the additional +4 that
// applies only when Rm/Rn is read as an operand of an ARM data-processing
// instruction with a register-specified shift, which costs one extra
// internal cycle and therefore one extra pipeline stage of read-ahead.
func (c *Core) readOperand(i int, extraForRegShift bool) uint32 {
	if i != 15 {
		return c.R(i)
	}
	v := c.R(15)
	if c.Thumb() {
		v += 2
	} else {
		v += 4
	}
	if extraForRegShift {
		v += 4
	}
	return v
}

// Step executes exactly one instruction (or services a pending exception,
// or idles one tick while halted) and returns the number of cycles it
// cost, already including every waitstate the Bus charged along the way.
func (c *Core) Step() int {
	if c.stopped {
		if c.bus.IRQLine() {
			c.stopped = false
		} else {
			return 1
		}
	}
	if c.halted {
		if c.bus.IRQLine() {
			c.halted = false
		} else {
			return 1
		}
	}

	if c.bus.IRQLine() && !c.IRQDisabled() {
		return c.enterException(ModeIRQ, vectorIRQ, 4, false)
	}

	if c.Thumb() {
		return c.stepThumb()
	}
	return c.stepARM()
}

func (c *Core) stepARM() int {
	pc := c.PC()
	acc := NonSeqCode
	if c.codeSeq {
		acc = SeqCode
	}
	instr, cyc := c.bus.Read32(pc, acc)
	c.openBus = instr
	c.SetPC(pc + 4)
	c.codeSeq = true

	if !checkCondition(instr>>28, c.CPSR()) {
		return cyc
	}
	op := armTable[((instr>>16)&0xFF0)|((instr>>4)&0xF)]
	return cyc + op(c, instr)
}

func (c *Core) stepThumb() int {
	pc := c.PC()
	acc := NonSeqCode
	if c.codeSeq {
		acc = SeqCode
	}
	instr, cyc := c.bus.Read16(pc, acc)
	c.openBus = uint32(instr) | uint32(instr)<<16
	c.SetPC(pc + 2)
	c.codeSeq = true

	op := thumbTable[instr>>6]
	return cyc + op(c, instr)
}

// checkCondition evaluates the top 4 bits of an ARM instruction against
// the current flags.
func checkCondition(cond uint32, cpsr uint32) bool {
	n := cpsr&FlagN != 0
	z := cpsr&FlagZ != 0
	cf := cpsr&FlagC != 0
	v := cpsr&FlagV != 0
	switch cond {
	case 0x0: // EQ
		return z
	case 0x1: // NE
		return !z
	case 0x2: // CS/HS
		return cf
	case 0x3: // CC/LO
		return !cf
	case 0x4: // MI
		return n
	case 0x5: // PL
		return !n
	case 0x6: // VS
		return v
	case 0x7: // VC
		return !v
	case 0x8: // HI
		return cf && !z
	case 0x9: // LS
		return !cf || z
	case 0xA: // GE
		return n == v
	case 0xB: // LT
		return n != v
	case 0xC: // GT
		return !z && n == v
	case 0xD: // LE
		return z || n != v
	case 0xE: // AL
		return true
	default: // 0xF reserved on ARM7TDMI
		return false
	}
}

// enterException performs the common exception-entry sequence:
// bank LR to the return address, copy CPSR to the new mode's SPSR, set
// mode, mask I (and F for reset/FIQ), clear T, and branch to the vector.
// lrOffset is added to the current PC per exception kind's documented
// return offset (e.g. PC+4 for IRQ so the handler's BIOS stub returns
// correctly past the interrupted instruction via SUBS PC,LR,#4). maskF
// additionally disables FIQ, as only Reset and FIQ entry do.
func (c *Core) enterException(mode Mode, vector uint32, lrOffset uint32, maskF bool) int {
	oldCPSR := c.CPSR()
	retAddr := c.PC() + lrOffset

	c.SetCPSR((oldCPSR &^ 0x1F) | uint32(mode))
	c.SetSPSR(oldCPSR)
	c.SetR(14, retAddr)

	newCPSR := c.CPSR() | FlagI
	if maskF {
		newCPSR |= FlagF
	}
	newCPSR &^= FlagT
	c.SetCPSR(newCPSR)

	c.SetPC(vector)
	c.flushPipeline()
	return 3 // internal cycles for exception entry; the vector fetch itself is charged by the next Step
}

// RaiseUndefined is called by the decode tables when an ARM or THUMB
// opcode doesn't correspond to any defined instruction: dispatched to the
// guest as the Undefined exception rather than treated as a host error.
// PC already points past the undefined opcode, which is the address LR_und
// must hold, so no further offset is added.
func (c *Core) RaiseUndefined() int {
	return c.enterException(ModeUND, vectorUndefined, 0, false)
}

// RaiseSWIWithNumber is called by the SWI (ARM) and SWI (THUMB) decode
// entries with the dispatch number already extracted from the
// instruction's comment field (bits23-16 in ARM state, bits7-0 in THUMB
// state, per the devkitARM SWI(n) convention). PC has already advanced
// past the SWI by its width (4 for ARM, 2 for THUMB), so no further offset
// is added and LR ends up pointing at the actual next instruction. The
// number is latched
// for the orchestrator's HLE BIOS dispatch (internal/hlebios) to read via
// LastSWI when no real BIOS image backs this vector.
func (c *Core) RaiseSWIWithNumber(number uint8) int {
	c.lastSWI = number
	return c.enterException(ModeSVC, vectorSWI, 0, false)
}

// LastSWI returns the number passed to the most recent RaiseSWIWithNumber
// call.
func (c *Core) LastSWI() uint8 { return c.lastSWI }

// ReturnFromSWI performs the "MOVS PC, LR" a real BIOS handler ends with:
// restore CPSR from the banked SPSR (switching back out of SVC mode,
// whatever instruction set the caller was using) and branch to the
// banked LR. internal/emu calls this once an HLE BIOS call
// (internal/hlebios) has finished, since no real handler code ever runs
// to do it.
func (c *Core) ReturnFromSWI() {
	retAddr := c.R(14)
	c.SetCPSR(c.SPSR())
	c.SetPC(retAddr)
	c.flushPipeline()
}

// ReturnFromIRQ performs the real handler's "SUBS PC, LR, #4": same CPSR
// restore as ReturnFromSWI but the banked LR_irq was set to
// address-of-interrupted-instruction+4 regardless of Thumb/ARM width (see
// enterException), so the return address needs that 4 subtracted back off.
// internal/emu calls this once the HLE IRQ path (internal/hlebios) has
// acknowledged the pending bits, since no real handler runs to do it.
func (c *Core) ReturnFromIRQ() {
	retAddr := c.R(14) - 4
	c.SetCPSR(c.SPSR())
	c.SetPC(retAddr)
	c.flushPipeline()
}

// CoreSnapshot is the gob-serializable form of Core used by save states.
type CoreSnapshot struct {
	Regs    RegistersSnapshot
	Halted  bool
	Stopped bool
	CodeSeq bool
	OpenBus uint32
}

func (c *Core) Snapshot() CoreSnapshot {
	return CoreSnapshot{
		Regs: c.Registers.Snapshot(), Halted: c.halted, Stopped: c.stopped,
		CodeSeq: c.codeSeq, OpenBus: c.openBus,
	}
}

func (c *Core) Restore(s CoreSnapshot) {
	c.Registers.Restore(s.Regs)
	c.halted = s.Halted
	c.stopped = s.Stopped
	c.codeSeq = s.CodeSeq
	c.openBus = s.OpenBus
}
