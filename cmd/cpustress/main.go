// Command cpustress runs the ARM7TDMI core against a raw code blob and
// dumps registers: a small standalone driver for golden-register
// regression testing, without pulling in the PPU/cartridge/orchestrator
// machinery internal/emu owns.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dskellund/gbacore/internal/cpu"
)

// flatBus maps a code blob at 0x08000000 (matching a real cartridge's
// entry address) and gives the core a flat work RAM region elsewhere, with
// no PPU/DMA/timers/IRQ — just enough Bus to execute ARM/THUMB code and
// inspect the result.
type flatBus struct {
	rom [0x02000000]byte // mapped at 0x08000000..0x09FFFFFF
	ram [0x00040000]byte // mapped at 0x02000000..0x0203FFFF (EWRAM-sized)
}

func (b *flatBus) decode(addr uint32) (region []byte, off uint32, ok bool) {
	switch {
	case addr >= 0x08000000 && addr < 0x0A000000:
		return b.rom[:], addr - 0x08000000, true
	case addr >= 0x02000000 && addr < 0x02040000:
		return b.ram[:], addr - 0x02000000, true
	default:
		return nil, 0, false
	}
}

func (b *flatBus) Read8(addr uint32, _ cpu.Access) (uint8, int) {
	r, off, ok := b.decode(addr)
	if !ok {
		return 0, 1
	}
	return r[off], 1
}

func (b *flatBus) Read16(addr uint32, _ cpu.Access) (uint16, int) {
	r, off, ok := b.decode(addr & ^uint32(1))
	if !ok {
		return 0, 1
	}
	return uint16(r[off]) | uint16(r[off+1])<<8, 1
}

func (b *flatBus) Read32(addr uint32, _ cpu.Access) (uint32, int) {
	r, off, ok := b.decode(addr & ^uint32(3))
	if !ok {
		return 0, 1
	}
	return uint32(r[off]) | uint32(r[off+1])<<8 | uint32(r[off+2])<<16 | uint32(r[off+3])<<24, 1
}

func (b *flatBus) Write8(addr uint32, v uint8, _ cpu.Access) int {
	r, off, ok := b.decode(addr)
	if !ok {
		return 1
	}
	r[off] = v
	return 1
}

func (b *flatBus) Write16(addr uint32, v uint16, _ cpu.Access) int {
	r, off, ok := b.decode(addr & ^uint32(1))
	if !ok {
		return 1
	}
	r[off], r[off+1] = byte(v), byte(v>>8)
	return 1
}

func (b *flatBus) Write32(addr uint32, v uint32, _ cpu.Access) int {
	r, off, ok := b.decode(addr & ^uint32(3))
	if !ok {
		return 1
	}
	r[off], r[off+1], r[off+2], r[off+3] = byte(v), byte(v>>8), byte(v>>16), byte(v>>24)
	return 1
}

func (b *flatBus) IRQLine() bool { return false }

func main() {
	codePath := flag.String("code", "", "path to a raw ARM/THUMB code blob, loaded at 0x08000000")
	steps := flag.Int("steps", 5_000_000, "max instructions to execute")
	thumb := flag.Bool("thumb", false, "start execution in THUMB state")
	trace := flag.Bool("trace", false, "print PC/cycles for every retired instruction")
	timeout := flag.Duration("timeout", 0, "optional wall-clock timeout; 0 disables")
	flag.Parse()

	if *codePath == "" {
		log.Fatal("-code is required")
	}
	code, err := os.ReadFile(*codePath)
	if err != nil {
		log.Fatalf("read code: %v", err)
	}

	b := &flatBus{}
	copy(b.rom[:], code)

	c := cpu.NewCore(b)
	c.SetPC(0x08000000)
	c.SetThumb(*thumb)

	start := time.Now()
	var deadline time.Time
	if *timeout > 0 {
		deadline = start.Add(*timeout)
	}

	var cycles int
	for i := 0; i < *steps; i++ {
		pc := c.PC()
		cyc := c.Step()
		cycles += cyc
		if *trace {
			fmt.Printf("PC=%08X cyc=%d\n", pc, cyc)
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			fmt.Printf("timeout after %s\n", time.Since(start).Truncate(time.Millisecond))
			break
		}
	}

	fmt.Printf("Done: steps=%d cycles=%d elapsed=%s\n", *steps, cycles, time.Since(start).Truncate(time.Millisecond))
	for i := 0; i < 16; i++ {
		fmt.Printf("R%-2d=%08X ", i, c.R(i))
		if i%4 == 3 {
			fmt.Println()
		}
	}
	fmt.Printf("CPSR=%08X\n", c.CPSR())
}
