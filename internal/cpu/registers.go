package cpu

// Mode is the 5-bit CPSR mode field.
type Mode uint32

const (
	ModeUSR Mode = 0x10
	ModeFIQ Mode = 0x11
	ModeIRQ Mode = 0x12
	ModeSVC Mode = 0x13
	ModeABT Mode = 0x17
	ModeUND Mode = 0x1B
	ModeSYS Mode = 0x1F
)

// ValidMode reports whether m is one of the seven legal CPSR mode values.
func ValidMode(m Mode) bool {
	switch m {
	case ModeUSR, ModeFIQ, ModeIRQ, ModeSVC, ModeABT, ModeUND, ModeSYS:
		return true
	}
	return false
}

func (m Mode) String() string {
	switch m {
	case ModeUSR:
		return "USR"
	case ModeFIQ:
		return "FIQ"
	case ModeIRQ:
		return "IRQ"
	case ModeSVC:
		return "SVC"
	case ModeABT:
		return "ABT"
	case ModeUND:
		return "UND"
	case ModeSYS:
		return "SYS"
	default:
		return "???"
	}
}

// CPSR bit positions.
const (
	FlagN uint32 = 1 << 31
	FlagZ uint32 = 1 << 30
	FlagC uint32 = 1 << 29
	FlagV uint32 = 1 << 28
	FlagI uint32 = 1 << 7
	FlagF uint32 = 1 << 6
	FlagT uint32 = 1 << 5
)

// bank indexes the six register banks that own a private r13/r14 (and,
// except for usr/sys, a private SPSR): usr/sys share one bank since SYS
// mode is architecturally "USR with privileges" and never gets its own SPSR.
type bank int

const (
	bankUSR bank = iota
	bankFIQ
	bankIRQ
	bankSVC
	bankABT
	bankUND
	numBanks
)

func bankOf(m Mode) bank {
	switch m {
	case ModeFIQ:
		return bankFIQ
	case ModeIRQ:
		return bankIRQ
	case ModeSVC:
		return bankSVC
	case ModeABT:
		return bankABT
	case ModeUND:
		return bankUND
	default: // USR, SYS
		return bankUSR
	}
}

// Registers holds the ARM7TDMI's visible register file plus every banked
// shadow copy needed to switch modes without losing state.
type Registers struct {
	r [16]uint32 // currently visible R0..R15

	fiqR8_12 [5]uint32 // FIQ's private R8..R12
	usrR8_12 [5]uint32 // R8..R12 shared by every mode except FIQ

	r13Bank [numBanks]uint32
	r14Bank [numBanks]uint32
	spsrBank [numBanks]uint32 // spsrBank[bankUSR] is unused (no SPSR_usr)

	cpsr uint32
}

// Reset puts the register file into the post-BIOS-reset shape: SVC mode,
// IRQ and FIQ disabled, ARM state, PC at the reset vector.
func (g *Registers) Reset() {
	*g = Registers{}
	g.cpsr = uint32(ModeSVC) | FlagI | FlagF
	g.r[13] = 0x03007FE0
	g.r13Bank[bankSVC] = 0x03007FE0
	g.r13Bank[bankIRQ] = 0x03007FA0
	g.r13Bank[bankUSR] = 0x03007F00
	g.r[15] = 0x00000000
}

// CPSR returns the current program status register.
func (g *Registers) CPSR() uint32 { return g.cpsr }

// SetCPSR overwrites the CPSR wholesale, re-banking registers if the mode
// field changed. Used by MSR and by exception entry/return.
func (g *Registers) SetCPSR(v uint32) {
	newMode := Mode(v & 0x1F)
	if !ValidMode(newMode) {
		newMode = Mode(g.cpsr & 0x1F)
		v = (v &^ 0x1F) | uint32(newMode)
	}
	g.switchBank(newMode)
	g.cpsr = v
}

// Mode returns the current CPSR mode field.
func (g *Registers) Mode() Mode { return Mode(g.cpsr & 0x1F) }

// Thumb reports whether the T bit is set.
func (g *Registers) Thumb() bool { return g.cpsr&FlagT != 0 }

// SetThumb updates the T bit without touching any other CPSR field.
func (g *Registers) SetThumb(t bool) {
	if t {
		g.cpsr |= FlagT
	} else {
		g.cpsr &^= FlagT
	}
}

func (g *Registers) flag(mask uint32) bool { return g.cpsr&mask != 0 }
func (g *Registers) setFlag(mask uint32, v bool) {
	if v {
		g.cpsr |= mask
	} else {
		g.cpsr &^= mask
	}
}

func (g *Registers) N() bool         { return g.flag(FlagN) }
func (g *Registers) Z() bool         { return g.flag(FlagZ) }
func (g *Registers) C() bool         { return g.flag(FlagC) }
func (g *Registers) V() bool         { return g.flag(FlagV) }
func (g *Registers) IRQDisabled() bool { return g.flag(FlagI) }
func (g *Registers) FIQDisabled() bool { return g.flag(FlagF) }

func (g *Registers) SetNZCV(n, z, c, v bool) {
	g.setFlag(FlagN, n)
	g.setFlag(FlagZ, z)
	g.setFlag(FlagC, c)
	g.setFlag(FlagV, v)
}

// R reads general register i (0..15) as currently banked.
func (g *Registers) R(i int) uint32 { return g.r[i] }

// SetR writes general register i. Writing R15 does not by itself flush the
// pipeline; callers that write PC through here must flush separately
// (Core.flushPipeline) since plain data-processing writes to r15 and
// branch instructions have different fetch-alignment rules.
func (g *Registers) SetR(i int, v uint32) { g.r[i] = v }

// PC returns the raw program counter value (the address of the
// next-to-fetch instruction, i.e. without the ARM/THUMB pipeline offset
// callers must add for operand-2 "PC read" semantics).
func (g *Registers) PC() uint32 { return g.r[15] }

// SetPC writes R15 directly (no alignment masking; callers are expected to
// align per instruction set before calling, mirroring hardware which
// ignores the low bits of branch targets rather than faulting on them).
func (g *Registers) SetPC(v uint32) { g.r[15] = v }

// SPSR returns the saved PSR for the current mode. USR/SYS have no SPSR
// bank (reads there are architecturally undefined); in those modes this
// returns the CPSR's own value.
func (g *Registers) SPSR() uint32 {
	b := bankOf(g.Mode())
	if b == bankUSR {
		return g.cpsr
	}
	return g.spsrBank[b]
}

// SetSPSR writes the saved PSR for the current mode. A no-op in USR/SYS.
func (g *Registers) SetSPSR(v uint32) {
	b := bankOf(g.Mode())
	if b == bankUSR {
		return
	}
	g.spsrBank[b] = v
}

// RUser reads register i as it appears in the USR/SYS bank regardless of
// the currently selected mode, for LDM/STM's user-bank-register form
// (the S bit set on a transfer that isn't also restoring CPSR from SPSR).
// R0-R7 and R15 aren't banked at all, so those are just the live value.
func (g *Registers) RUser(i int) uint32 {
	switch {
	case i < 8 || i == 15:
		return g.r[i]
	case i <= 12:
		if g.Mode() == ModeFIQ {
			return g.usrR8_12[i-8]
		}
		return g.r[i]
	case i == 13:
		if bankOf(g.Mode()) == bankUSR {
			return g.r[13]
		}
		return g.r13Bank[bankUSR]
	default: // i == 14
		if bankOf(g.Mode()) == bankUSR {
			return g.r[14]
		}
		return g.r14Bank[bankUSR]
	}
}

// SetRUser writes register i in the USR/SYS bank regardless of the
// currently selected mode. See RUser.
func (g *Registers) SetRUser(i int, v uint32) {
	switch {
	case i < 8 || i == 15:
		g.r[i] = v
	case i <= 12:
		if g.Mode() == ModeFIQ {
			g.usrR8_12[i-8] = v
		} else {
			g.r[i] = v
		}
	case i == 13:
		if bankOf(g.Mode()) == bankUSR {
			g.r[13] = v
		} else {
			g.r13Bank[bankUSR] = v
		}
	default: // i == 14
		if bankOf(g.Mode()) == bankUSR {
			g.r[14] = v
		} else {
			g.r14Bank[bankUSR] = v
		}
	}
}

// switchBank moves the live r8-r14 window into the outgoing mode's bank
// storage and loads the incoming mode's window into g.r. Called whenever
// CPSR's mode bits change, whether via SetCPSR, MSR, or exception entry.
func (g *Registers) switchBank(newMode Mode) {
	oldMode := g.Mode()
	if oldMode == newMode {
		return
	}
	oldBank := bankOf(oldMode)
	newBank := bankOf(newMode)

	if oldMode == ModeFIQ {
		copy(g.fiqR8_12[:], g.r[8:13])
	} else {
		copy(g.usrR8_12[:], g.r[8:13])
	}
	g.r13Bank[oldBank] = g.r[13]
	g.r14Bank[oldBank] = g.r[14]

	if newMode == ModeFIQ {
		copy(g.r[8:13], g.fiqR8_12[:])
	} else {
		copy(g.r[8:13], g.usrR8_12[:])
	}
	g.r[13] = g.r13Bank[newBank]
	g.r[14] = g.r14Bank[newBank]
}

// RegistersSnapshot is the gob-serializable form used by save states.
type RegistersSnapshot struct {
	R        [16]uint32
	FiqR8_12 [5]uint32
	UsrR8_12 [5]uint32
	R13Bank  [numBanks]uint32
	R14Bank  [numBanks]uint32
	SpsrBank [numBanks]uint32
	CPSR     uint32
}

func (g *Registers) Snapshot() RegistersSnapshot {
	return RegistersSnapshot{
		R: g.r, FiqR8_12: g.fiqR8_12, UsrR8_12: g.usrR8_12,
		R13Bank: g.r13Bank, R14Bank: g.r14Bank, SpsrBank: g.spsrBank,
		CPSR: g.cpsr,
	}
}

func (g *Registers) Restore(s RegistersSnapshot) {
	g.r = s.R
	g.fiqR8_12 = s.FiqR8_12
	g.usrR8_12 = s.UsrR8_12
	g.r13Bank = s.R13Bank
	g.r14Bank = s.R14Bank
	g.spsrBank = s.SpsrBank
	g.cpsr = s.CPSR
}
