package bus

// IRQ bit positions within IE/IF (GBATEK "Interrupt and Status Overview").
const (
	IRQVBlank = 1 << 0
	IRQHBlank = 1 << 1
	IRQVCount = 1 << 2
	IRQTimer0 = 1 << 3
	IRQTimer1 = 1 << 4
	IRQTimer2 = 1 << 5
	IRQTimer3 = 1 << 6
	IRQSerial = 1 << 7
	IRQDMA0   = 1 << 8
	IRQDMA1   = 1 << 9
	IRQDMA2   = 1 << 10
	IRQDMA3   = 1 << 11
	IRQKeypad = 1 << 12
	IRQGamepak = 1 << 13
)
