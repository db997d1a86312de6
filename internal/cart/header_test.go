package cart

import "testing"

func testROM(size int) []byte {
	rom := make([]byte, size)
	copy(rom[0x04:], nintendoLogo[:])
	copy(rom[0xA0:0xAC], []byte("TESTGAME"))
	copy(rom[0xAC:0xB0], []byte("TEST"))
	copy(rom[0xB0:0xB2], []byte("01"))
	rom[0xB3] = 0x96
	rom[0xBD] = computeHeaderChecksum(rom)
	return rom
}

func TestParseHeaderTitleAndLogo(t *testing.T) {
	rom := testROM(0x200)
	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.Title != "TESTGAME" {
		t.Fatalf("Title = %q, want TESTGAME", h.Title)
	}
	if !h.LogoValid {
		t.Fatalf("LogoValid = false, want true")
	}
	if !h.ChecksumValid {
		t.Fatalf("ChecksumValid = false, want true")
	}
}

func TestParseHeaderRejectsUndersizedROM(t *testing.T) {
	if _, err := ParseHeader(make([]byte, 0x10)); err == nil {
		t.Fatalf("ParseHeader on undersized ROM: want error, got nil")
	}
}

func TestParseHeaderFlagsBadChecksumWithoutFailing(t *testing.T) {
	rom := testROM(0x200)
	rom[0xBD] ^= 0xFF
	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.ChecksumValid {
		t.Fatalf("ChecksumValid = true, want false after corrupting checksum byte")
	}
}

func TestParseHeaderFlagsMissingLogoWithoutFailing(t *testing.T) {
	rom := testROM(0x200)
	rom[0x04] ^= 0xFF
	h, err := ParseHeader(rom)
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if h.LogoValid {
		t.Fatalf("LogoValid = true, want false after corrupting logo byte")
	}
}
