package cart

import (
	"encoding/binary"
	"errors"
	"strings"
)

const (
	headerStart = 0x000000
	headerEnd   = 0x0000BF
)

var nintendoLogo = [156]byte{
	0x24, 0xFF, 0xAE, 0x51, 0x69, 0x9A, 0xA2, 0x21, 0x3D, 0x84, 0x82, 0x0A,
	0x84, 0xE4, 0x09, 0xAD, 0x11, 0x24, 0x8B, 0x98, 0xC0, 0x81, 0x7F, 0x21,
	0xA3, 0x52, 0xBE, 0x19, 0x93, 0x09, 0xCE, 0x20, 0x10, 0x46, 0x4A, 0x4A,
	0xF8, 0x27, 0x31, 0xEC, 0x58, 0xC7, 0xE8, 0x33, 0x82, 0xE3, 0xCE, 0xBF,
	0x85, 0xF4, 0xDF, 0x94, 0xCE, 0x4B, 0x09, 0xC1, 0x94, 0x56, 0x8A, 0xC0,
	0x13, 0x72, 0xA7, 0xFC, 0x9F, 0x84, 0x4D, 0x73, 0xA3, 0xCA, 0x9A, 0x61,
	0x58, 0x97, 0xA3, 0x27, 0xFC, 0x03, 0x98, 0x76, 0x23, 0x1D, 0xC7, 0x61,
	0x03, 0x04, 0xAE, 0x56, 0xBF, 0x38, 0x84, 0x00, 0x40, 0xA7, 0x0E, 0xFD,
	0xFF, 0x52, 0xFE, 0x03, 0x6F, 0x95, 0x30, 0xF1, 0x97, 0xFB, 0xC0, 0x85,
	0x60, 0xD6, 0x80, 0x25, 0xA9, 0x63, 0xBE, 0x03, 0x01, 0x4E, 0x38, 0xE2,
	0xF9, 0xA2, 0x34, 0xFF, 0xBB, 0x3E, 0x03, 0x44, 0x78, 0x00, 0x90, 0xCB,
	0x88, 0x11, 0x3A, 0x94, 0x65, 0xC0, 0x7C, 0x63, 0x87, 0xF0, 0x3C, 0xAF,
	0xD6, 0x25, 0xE4, 0x8B, 0x38, 0x0A, 0xAC, 0x72, 0x21, 0xD4, 0xF8, 0x07,
}

// Header is the 192-byte GBA cartridge header (GBATEK "Cartridge Header"),
// mapped at ROM offset 0x000000.
type Header struct {
	EntryPoint   uint32
	Title        string // 0x0A0-0x0AB, trimmed ASCII
	GameCode     string // 0x0AC-0x0AF
	MakerCode    string // 0x0B0-0x0B1
	FixedValue   byte   // 0x0B3, must be 0x96
	MainUnitCode byte   // 0x0B4
	DeviceType   byte   // 0x0B5
	Version      byte   // 0x0BC
	Checksum     byte   // 0x0BD

	LogoValid     bool
	ChecksumValid bool
}

// ParseHeader decodes the fixed-layout cartridge header. It never returns an
// error for a logo or checksum mismatch (homebrew and test ROMs routinely
// fail both); callers consult LogoValid/ChecksumValid instead.
func ParseHeader(rom []byte) (*Header, error) {
	if len(rom) < headerEnd+1 {
		return nil, errors.New("cart: ROM too small to contain header")
	}

	h := &Header{
		EntryPoint:   binary.LittleEndian.Uint32(rom[0x00:0x04]),
		Title:        strings.TrimRight(string(rom[0xA0:0xAC]), "\x00"),
		GameCode:     string(rom[0xAC:0xB0]),
		MakerCode:    string(rom[0xB0:0xB2]),
		FixedValue:   rom[0xB3],
		MainUnitCode: rom[0xB4],
		DeviceType:   rom[0xB5],
		Version:      rom[0xBC],
		Checksum:     rom[0xBD],
	}

	h.LogoValid = logoMatches(rom)
	h.ChecksumValid = h.Checksum == computeHeaderChecksum(rom)
	return h, nil
}

func logoMatches(rom []byte) bool {
	if len(rom) < 0x04+len(nintendoLogo) {
		return false
	}
	for i, b := range nintendoLogo {
		if rom[0x04+i] != b {
			return false
		}
	}
	return true
}

// computeHeaderChecksum reproduces the BIOS's own header checksum, a
// complemented byte sum over 0x0A0-0x0BC.
func computeHeaderChecksum(rom []byte) byte {
	var sum byte
	for addr := 0xA0; addr <= 0xBC; addr++ {
		sum -= rom[addr]
	}
	return sum - 0x19
}
