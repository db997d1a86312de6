package cpu

// Access describes the nature of a single bus transaction: sequential vs
// non-sequential addressing, and whether the access is an instruction
// fetch (code) as opposed to a data access. The bus uses this to charge
// the correct waitstate and to decide whether a cartridge prefetch buffer
// hit applies.
type Access struct {
	Seq  bool
	Code bool
}

// NonSeqData, SeqData, NonSeqCode and SeqCode are the four access
// combinations the CPU ever issues.
var (
	NonSeqData = Access{Seq: false, Code: false}
	SeqData    = Access{Seq: true, Code: false}
	NonSeqCode = Access{Seq: false, Code: true}
	SeqCode    = Access{Seq: true, Code: true}
)

// Bus is the memory-mapped interface the CPU drives. Implementations
// decode the address, apply side effects, and report the cycle cost of
// the access so the CPU can fold it into its own instruction timing. The
// CPU holds no other reference to bus-owned state.
type Bus interface {
	Read8(addr uint32, acc Access) (value byte, cycles int)
	Read16(addr uint32, acc Access) (value uint16, cycles int)
	Read32(addr uint32, acc Access) (value uint32, cycles int)
	Write8(addr uint32, value byte, acc Access) (cycles int)
	Write16(addr uint32, value uint16, acc Access) (cycles int)
	Write32(addr uint32, value uint32, acc Access) (cycles int)

	// IRQLine reports the hardware nIRQ pin: (IE & IF) != 0 gated by IME,
	// the interrupt controller's own master enable. CPSR.I is a separate,
	// CPU-internal mask the core applies on top of this at the fetch
	// boundary; IRQLine never sees it.
	IRQLine() bool
}
