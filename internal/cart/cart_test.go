package cart

import "testing"

func TestNewRejectsOversizedROM(t *testing.T) {
	if _, err := New(make([]byte, MaxROMSize+1)); err == nil {
		t.Fatalf("New on oversized ROM: want error, got nil")
	}
}

func TestNewRejectsEmptyROM(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Fatalf("New on empty ROM: want error, got nil")
	}
}

func TestReadROMLittleEndian(t *testing.T) {
	rom := testROM(0x100)
	rom[0x50] = 0x11
	rom[0x51] = 0x22
	rom[0x52] = 0x33
	rom[0x53] = 0x44
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Read16(0x50); got != 0x2211 {
		t.Fatalf("Read16(0x50) = %#04x, want 0x2211", got)
	}
	if got := c.Read32(0x50); got != 0x44332211 {
		t.Fatalf("Read32(0x50) = %#08x, want 0x44332211", got)
	}
}

func TestReadPastROMImageReturnsZero(t *testing.T) {
	rom := testROM(0x100)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Read32(0x1000); got != 0 {
		t.Fatalf("Read32 past image = %#08x, want 0", got)
	}
}

func TestSRAMReadWriteRoundTrip(t *testing.T) {
	rom := testROM(0x100)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.WriteSRAM(0x10, 0xAB)
	if got := c.ReadSRAM(0x10); got != 0xAB {
		t.Fatalf("ReadSRAM(0x10) = %#02x, want 0xAB", got)
	}
	if got := c.ReadSRAM(0x11); got != 0 {
		t.Fatalf("ReadSRAM(0x11) = %#02x, want 0 (untouched)", got)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	rom := testROM(0x100)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.WriteSRAM(0x20, 0x7E)

	snap := c.Snapshot()
	encoded, err := EncodeSnapshot(snap)
	if err != nil {
		t.Fatalf("EncodeSnapshot: %v", err)
	}

	c2, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	decoded, err := DecodeSnapshot(encoded)
	if err != nil {
		t.Fatalf("DecodeSnapshot: %v", err)
	}
	if err := c2.Restore(decoded); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if got := c2.ReadSRAM(0x20); got != 0x7E {
		t.Fatalf("ReadSRAM(0x20) after restore = %#02x, want 0x7E", got)
	}
}

func TestRestoreRejectsVersionMismatch(t *testing.T) {
	rom := testROM(0x100)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bad := CartridgeSnapshot{Version: cartridgeSnapshotVersion + 1, Backup: c.backup.Snapshot()}
	if err := c.Restore(bad); err == nil {
		t.Fatalf("Restore with mismatched version: want error, got nil")
	}
}

func TestCustomBackupDeviceIsUsedOverDefault(t *testing.T) {
	rom := testROM(0x100)
	c, err := New(rom)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	fake := NewSRAM(4)
	c.SetBackup(fake)
	c.WriteSRAM(1, 0x55)
	if got := fake.ReadByte(1); got != 0x55 {
		t.Fatalf("custom backup ReadByte(1) = %#02x, want 0x55", got)
	}
}
