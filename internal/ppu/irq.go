package ppu

// IRQ bit positions, mirroring internal/bus's IE/IF layout (GBATEK
// "Interrupt and Status Overview"). Duplicated here rather than imported
// to avoid a bus<->ppu import cycle (bus already imports ppu); both sides
// are pinned to the same hardware-fixed bit numbers, not to each other.
const (
	irqVBlank = 1 << 0
	irqHBlank = 1 << 1
	irqVCount = 1 << 2
)

// DMA start-timing codes, mirroring internal/bus/dma.go's dmaTiming*
// constants for the same reason.
const (
	dmaTimingVBlank = 1
	dmaTimingHBlank = 2
)
