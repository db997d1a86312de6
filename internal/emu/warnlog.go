package emu

import "log"

// warnf writes a "[warn]"-prefixed log line for suspicious-but-survivable
// guest activity (writing reserved I/O bits, DMA sourced from the BIOS
// region, and the like). It never aborts anything. Nothing in the
// repository calls it, so no such warning is currently logged.
func warnf(format string, args ...any) {
	log.Printf("[warn] "+format, args...)
}
