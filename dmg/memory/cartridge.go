package memory

import (
	"fmt"

	"github.com/valerio/go-dmg/dmg/gberr"
)

const titleLength = 16

const (
	titleAddress         = 0x134
	cgbFlagAddress       = 0x143
	cartridgeTypeAddress = 0x147
	romSizeAddress       = 0x148
	ramSizeAddress       = 0x149
)

// MBCType identifies which memory bank controller a cartridge uses.
type MBCType uint8

const (
	NoMBCType MBCType = iota
	MBC1Type
	MBC3Type
)

var ramSizeCodeToBytes = map[uint8]int{
	0x00: 0,
	0x01: 0, // officially unused, listed for documentation
	0x02: 8 * 1024,
	0x03: 32 * 1024,
	0x04: 128 * 1024,
	0x05: 64 * 1024,
}

// Cartridge holds the raw ROM image plus the header-derived metadata needed
// to pick and construct an MBC.
type Cartridge struct {
	data []byte

	Title        string
	MBCType      MBCType
	HasBattery   bool
	HasRTC       bool
	ROMBankCount int
	RAMBankCount int
	ColorFlag    byte
}

// NewCartridge creates an empty cartridge, useful only for debugging purposes.
func NewCartridge() *Cartridge {
	return &Cartridge{
		data:         make([]byte, 0x8000),
		MBCType:      NoMBCType,
		ROMBankCount: 2,
	}
}

// NewCartridgeWithData parses header metadata and returns a Cartridge
// wrapping the given ROM bytes. The ROM length must be a multiple of 16KiB
// with at least 2 banks; byte 0x147 selects the MBC variant.
func NewCartridgeWithData(data []byte) (*Cartridge, error) {
	if len(data) < 0x8000 || len(data)%0x4000 != 0 {
		return nil, fmt.Errorf("rom length 0x%X is not a valid multiple of 16KiB banks: %w", len(data), gberr.InvalidROMSize)
	}

	cart := &Cartridge{
		data:      make([]byte, len(data)),
		Title:     cleanGameboyTitle(data[titleAddress : titleAddress+titleLength]),
		ColorFlag: data[cgbFlagAddress],
	}
	copy(cart.data, data)

	romSizeCode := data[romSizeAddress]
	switch {
	case romSizeCode <= 0x06:
		cart.ROMBankCount = 2 << romSizeCode
	case romSizeCode == 0x52:
		cart.ROMBankCount = 72
	case romSizeCode == 0x53:
		cart.ROMBankCount = 80
	case romSizeCode == 0x54:
		cart.ROMBankCount = 96
	default:
		return nil, fmt.Errorf("rom size code 0x%02X: %w", romSizeCode, gberr.InvalidROMSize)
	}
	if cart.ROMBankCount*0x4000 != len(data) {
		return nil, fmt.Errorf("rom size code 0x%02X implies %d banks but image has %d: %w",
			romSizeCode, cart.ROMBankCount, len(data)/0x4000, gberr.InvalidROMSize)
	}

	ramBytes, ok := ramSizeCodeToBytes[data[ramSizeAddress]]
	if !ok {
		return nil, fmt.Errorf("ram size code 0x%02X: %w", data[ramSizeAddress], gberr.InvalidROMSize)
	}
	cart.RAMBankCount = ramBytes / 0x2000
	if cart.RAMBankCount == 0 && ramBytes > 0 {
		cart.RAMBankCount = 1
	}

	switch cartType := data[cartridgeTypeAddress]; cartType {
	case 0x00:
		cart.MBCType = NoMBCType
	case 0x08, 0x09:
		cart.MBCType = NoMBCType
		if cart.RAMBankCount == 0 {
			cart.RAMBankCount = 1
		}
	case 0x01, 0x02, 0x03:
		cart.MBCType = MBC1Type
		cart.HasBattery = cartType == 0x03
	case 0x0F, 0x10, 0x11, 0x12, 0x13:
		cart.MBCType = MBC3Type
		cart.HasRTC = cartType == 0x0F || cartType == 0x10
		cart.HasBattery = cartType == 0x0F || cartType == 0x10 || cartType == 0x13
	default:
		return nil, fmt.Errorf("cartridge type byte 0x%02X: %w", cartType, gberr.UnrecognizedMBC)
	}

	return cart, nil
}

// ReadByte reads a byte at the specified address from the raw ROM image.
// Callers are responsible for bounds and bank-offset arithmetic.
func (c *Cartridge) ReadByte(addr uint32) uint8 {
	return c.data[addr]
}

// RawData returns the full, unbanked ROM image (used to hand bytes to an MBC
// constructor).
func (c *Cartridge) RawData() []byte { return c.data }

// Size returns the length of the raw ROM image in bytes.
func (c *Cartridge) Size() int { return len(c.data) }
