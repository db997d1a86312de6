// Package cart owns the read-only ROM image and the backup (save) device
// behind it. The GBA has no bank-switching MBC the way the Game Boy does:
// the whole ROM (up to 32 MiB) is linearly addressable through three
// waitstate-distinct mirror views the bus maps in, and "cartridge RAM" is
// an opaque byte-addressed backup region the core never interprets.
package cart

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
)

// MaxROMSize is the largest ROM image the bus's three 32 MiB mirror views
// can address.
const MaxROMSize = 32 * 1024 * 1024

// defaultBackupSize is the size of the flat-SRAM backup every Cartridge
// starts with; large enough for the biggest plain-SRAM carts (up to 64 KiB).
const defaultBackupSize = 64 * 1024

// BackupDevice is the opaque save-memory collaborator the core talks to
// through the bus. Detecting whether a real cartridge carries SRAM, Flash,
// or EEPROM is explicitly out of scope; Cartridge's default backup always
// behaves like flat byte-addressable SRAM, and a host wanting Flash/EEPROM
// semantics substitutes its own BackupDevice.
type BackupDevice interface {
	ReadByte(off uint32) byte
	WriteByte(off uint32, v byte)
	Snapshot() []byte
	Restore(data []byte) error
}

// Cartridge is what internal/bus needs to serve CPU-facing ROM and SRAM
// accesses: 16/32-bit ROM reads (ROM never sees sub-halfword CPU accesses
// on real hardware — byte reads are synthesized by the bus from a 16-bit
// fetch) and byte-granular backup reads/writes (SRAM is wired 8 bits wide).
type Cartridge struct {
	rom    []byte
	header *Header
	backup BackupDevice
}

// New parses rom's header and wraps it with a default flat-SRAM backup
// device. The ROM slice is retained, not copied; callers must not mutate
// it afterward — cartridge contents are read-only once loaded.
func New(rom []byte) (*Cartridge, error) {
	if len(rom) == 0 {
		return nil, errors.New("cart: empty ROM")
	}
	if len(rom) > MaxROMSize {
		return nil, fmt.Errorf("cart: ROM too large (%d bytes, max %d)", len(rom), MaxROMSize)
	}
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	return &Cartridge{
		rom:    rom,
		header: h,
		backup: NewSRAM(defaultBackupSize),
	}, nil
}

// Header returns the parsed cartridge header, mainly for startup logging
// (ROM title/maker banner) and golden-ROM test assertions.
func (c *Cartridge) Header() *Header { return c.header }

// SetBackup swaps in a host-supplied BackupDevice (Flash/EEPROM emulation,
// or a no-op device for headless regression runs). Passing nil restores
// the default flat-SRAM device.
func (c *Cartridge) SetBackup(b BackupDevice) {
	if b == nil {
		b = NewSRAM(defaultBackupSize)
	}
	c.backup = b
}

// Read16 reads a little-endian halfword from the ROM, zero past end of
// image (open-bus behavior for fully unmapped addresses is the bus's job;
// this just reports zero for unmapped tail bytes within the window).
func (c *Cartridge) Read16(off uint32) uint16 {
	lo := c.romByte(off)
	hi := c.romByte(off + 1)
	return uint16(lo) | uint16(hi)<<8
}

// Read32 reads a little-endian word from the ROM.
func (c *Cartridge) Read32(off uint32) uint32 {
	return uint32(c.Read16(off)) | uint32(c.Read16(off+2))<<16
}

func (c *Cartridge) romByte(off uint32) byte {
	if int(off) < len(c.rom) {
		return c.rom[off]
	}
	return 0
}

// ReadSRAM and WriteSRAM forward to the backup collaborator; the bus never
// interprets backup contents.
func (c *Cartridge) ReadSRAM(off uint32) byte     { return c.backup.ReadByte(off) }
func (c *Cartridge) WriteSRAM(off uint32, v byte) { c.backup.WriteByte(off, v) }

// CartridgeSnapshot is the gob envelope persisted as the cartridge's slot
// of a save state. The ROM image itself is never part of the save state:
// it is reloaded from the same file by the orchestrator before Restore runs.
type CartridgeSnapshot struct {
	Version int
	Backup  []byte
}

const cartridgeSnapshotVersion = 1

func (c *Cartridge) Snapshot() CartridgeSnapshot {
	return CartridgeSnapshot{Version: cartridgeSnapshotVersion, Backup: c.backup.Snapshot()}
}

func (c *Cartridge) Restore(s CartridgeSnapshot) error {
	if s.Version != cartridgeSnapshotVersion {
		return fmt.Errorf("cart: snapshot version mismatch: got %d, want %d", s.Version, cartridgeSnapshotVersion)
	}
	return c.backup.Restore(s.Backup)
}

// EncodeSnapshot/DecodeSnapshot gob-encode the envelope, matching the
// teacher's bus.go save-state idiom.
func EncodeSnapshot(s CartridgeSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(s); err != nil {
		return nil, fmt.Errorf("cart: encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeSnapshot(data []byte) (CartridgeSnapshot, error) {
	var s CartridgeSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return CartridgeSnapshot{}, fmt.Errorf("cart: decode snapshot: %w", err)
	}
	return s, nil
}
