package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg/gberr"
)

func makeROM(banks int, cartType, romCode, ramCode byte, title string) []byte {
	rom := make([]byte, banks*0x4000)
	copy(rom[titleAddress:], title)
	rom[cartridgeTypeAddress] = cartType
	rom[romSizeAddress] = romCode
	rom[ramSizeAddress] = ramCode
	return rom
}

func TestCartridge_headerParsing(t *testing.T) {
	rom := makeROM(2, 0x00, 0x00, 0x00, "TESTTITLE")
	cart, err := NewCartridgeWithData(rom)
	require.NoError(t, err)

	assert.Equal(t, "TESTTITLE", cart.Title)
	assert.Equal(t, NoMBCType, cart.MBCType)
	assert.Equal(t, 2, cart.ROMBankCount)
	assert.Equal(t, 0, cart.RAMBankCount)
}

func TestCartridge_mbcSelection(t *testing.T) {
	testCases := []struct {
		desc       string
		cartType   byte
		want       MBCType
		hasBattery bool
		hasRTC     bool
	}{
		{desc: "ROM only", cartType: 0x00, want: NoMBCType},
		{desc: "MBC1", cartType: 0x01, want: MBC1Type},
		{desc: "MBC1+RAM+BATTERY", cartType: 0x03, want: MBC1Type, hasBattery: true},
		{desc: "MBC3+TIMER+RAM+BATTERY", cartType: 0x10, want: MBC3Type, hasBattery: true, hasRTC: true},
		{desc: "MBC3+RAM+BATTERY", cartType: 0x13, want: MBC3Type, hasBattery: true},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cart, err := NewCartridgeWithData(makeROM(2, tC.cartType, 0x00, 0x00, "X"))
			require.NoError(t, err)
			assert.Equal(t, tC.want, cart.MBCType)
			assert.Equal(t, tC.hasBattery, cart.HasBattery)
			assert.Equal(t, tC.hasRTC, cart.HasRTC)
		})
	}
}

func TestCartridge_unknownMBCIsFatalAtLoad(t *testing.T) {
	_, err := NewCartridgeWithData(makeROM(2, 0x42, 0x00, 0x00, "X"))
	require.Error(t, err)
	assert.ErrorIs(t, err, gberr.UnrecognizedMBC)
}

func TestCartridge_romSizeValidation(t *testing.T) {
	t.Run("too short", func(t *testing.T) {
		_, err := NewCartridgeWithData(make([]byte, 0x4000))
		assert.ErrorIs(t, err, gberr.InvalidROMSize)
	})

	t.Run("not a bank multiple", func(t *testing.T) {
		_, err := NewCartridgeWithData(make([]byte, 0x8001))
		assert.ErrorIs(t, err, gberr.InvalidROMSize)
	})

	t.Run("size code mismatch", func(t *testing.T) {
		// header claims 4 banks, image has 2
		_, err := NewCartridgeWithData(makeROM(2, 0x00, 0x01, 0x00, "X"))
		assert.ErrorIs(t, err, gberr.InvalidROMSize)
	})

	t.Run("bad size code", func(t *testing.T) {
		_, err := NewCartridgeWithData(makeROM(2, 0x00, 0x09, 0x00, "X"))
		assert.ErrorIs(t, err, gberr.InvalidROMSize)
	})

	t.Run("exotic size codes", func(t *testing.T) {
		cart, err := NewCartridgeWithData(makeROM(72, 0x01, 0x52, 0x00, "X"))
		require.NoError(t, err)
		assert.Equal(t, 72, cart.ROMBankCount)
	})
}

func TestCartridge_ramSizeCodes(t *testing.T) {
	testCases := []struct {
		code  byte
		banks int
	}{
		{0x00, 0},
		{0x02, 1},
		{0x03, 4},
	}
	for _, tC := range testCases {
		cart, err := NewCartridgeWithData(makeROM(2, 0x03, 0x00, tC.code, "X"))
		require.NoError(t, err)
		assert.Equalf(t, tC.banks, cart.RAMBankCount, "code 0x%02X", tC.code)
	}
}

func TestCleanGameboyTitle(t *testing.T) {
	assert.Equal(t, "HELLO", cleanGameboyTitle([]byte("HELLO\x00\x00\x00")))
	assert.Equal(t, "(Untitled)", cleanGameboyTitle(make([]byte, 16)))
}
