package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// bankedROM returns a ROM where every byte holds its bank number.
func bankedROM(banks int) []uint8 {
	rom := make([]uint8, banks*0x4000)
	for i := range rom {
		rom[i] = uint8(i / 0x4000)
	}
	return rom
}

func TestMBC1(t *testing.T) {
	t.Run("ROM Bank 0 (Fixed)", func(t *testing.T) {
		rom := make([]uint8, 0x8000)
		for i := range rom {
			rom[i] = uint8(i & 0xFF)
		}
		mbc := NewMBC1(rom, false, 0)

		for addr := uint16(0x0000); addr < 0x4000; addr += 0x101 {
			assert.Equal(t, uint8(addr&0xFF), mbc.Read(addr))
		}
	})

	t.Run("ROM Bank Switching", func(t *testing.T) {
		mbc := NewMBC1(bankedROM(4), false, 0)

		tests := []struct {
			name     string
			bankNum  uint8
			wantByte uint8
		}{
			{"Default Bank (1)", 1, 1},
			{"Switch to Bank 2", 2, 2},
			{"Switch to Bank 3", 3, 3},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if tt.bankNum > 1 {
					mbc.Write(0x2000, tt.bankNum)
				}
				assert.Equal(t, tt.wantByte, mbc.Read(0x4000))
			})
		}
	})

	t.Run("Bank zero quirk", func(t *testing.T) {
		// writes whose low 5 bits are zero select the next bank up
		mbc := NewMBC1(bankedROM(128), false, 0)

		tests := []struct {
			written uint8
			want    uint8
		}{
			{0x00, 0x01},
			{0x20, 0x21},
			{0x40, 0x41},
			{0x60, 0x61},
			{0x1F, 0x1F},
		}
		for _, tt := range tests {
			mbc.Write(0x2000, tt.written)
			assert.Equalf(t, tt.want, mbc.Read(0x4000), "write 0x%02X", tt.written)
		}
	})

	t.Run("Bank quirk wraps modulo total banks", func(t *testing.T) {
		mbc := NewMBC1(bankedROM(8), false, 0)

		mbc.Write(0x2000, 0x20) // 0x21 % 8 = 1
		assert.Equal(t, uint8(0x01), mbc.Read(0x4000))

		mbc.Write(0x2000, 0x0D) // 13 % 8 = 5
		assert.Equal(t, uint8(0x05), mbc.Read(0x4000))
	})

	t.Run("RAM Banking", func(t *testing.T) {
		mbc := NewMBC1(make([]uint8, 0x8000), false, 4)

		t.Run("RAM Disabled by Default", func(t *testing.T) {
			assert.Equal(t, uint8(0xFF), mbc.Read(0xA000))
		})

		t.Run("RAM Enable/Disable", func(t *testing.T) {
			mbc.Write(0x0000, 0x0A)
			mbc.Write(0xA000, 0x42)
			assert.Equal(t, uint8(0x42), mbc.Read(0xA000))

			mbc.Write(0x0000, 0x00)
			assert.Equal(t, uint8(0xFF), mbc.Read(0xA000))
		})

		t.Run("Multiple RAM Banks", func(t *testing.T) {
			mbc.Write(0x0000, 0x0A)

			for bank := uint8(0); bank < 4; bank++ {
				mbc.Write(0x4000, bank)
				mbc.Write(0xA000, 0x42+bank)
			}
			for bank := uint8(0); bank < 4; bank++ {
				mbc.Write(0x4000, bank)
				assert.Equal(t, 0x42+bank, mbc.Read(0xA000))
			}
		})
	})

	t.Run("writes to disabled RAM are dropped", func(t *testing.T) {
		mbc := NewMBC1(make([]uint8, 0x8000), false, 1)
		mbc.Write(0xA000, 0x42)
		mbc.Write(0x0000, 0x0A)
		assert.Equal(t, uint8(0x00), mbc.Read(0xA000))
	})
}

func TestNoMBC(t *testing.T) {
	rom := make([]uint8, 0x8000)
	rom[0x1234] = 0xAB
	mbc := NewNoMBC(rom, 0x2000)

	assert.Equal(t, uint8(0xAB), mbc.Read(0x1234))

	// ROM writes are silently ignored
	mbc.Write(0x1234, 0x00)
	assert.Equal(t, uint8(0xAB), mbc.Read(0x1234))

	// RAM works without an enable latch
	mbc.Write(0xA000, 0x42)
	assert.Equal(t, uint8(0x42), mbc.Read(0xA000))
}

func TestMBC3(t *testing.T) {
	t.Run("bank 0 selects the fixed bank image", func(t *testing.T) {
		mbc := NewMBC3(bankedROM(8), 0, false, nil)

		mbc.Write(0x2000, 0x00)
		assert.Equal(t, uint8(0x00), mbc.Read(0x4000), "bank 0 maps the same bytes as 0x0000")

		mbc.Write(0x2000, 0x05)
		assert.Equal(t, uint8(0x05), mbc.Read(0x4000))
	})

	t.Run("RAM banking", func(t *testing.T) {
		mbc := NewMBC3(bankedROM(2), 4, false, nil)
		mbc.Write(0x0000, 0x0A)

		mbc.Write(0x4000, 0x02)
		mbc.Write(0xA000, 0x99)
		mbc.Write(0x4000, 0x00)
		assert.NotEqual(t, uint8(0x99), mbc.Read(0xA000))
		mbc.Write(0x4000, 0x02)
		assert.Equal(t, uint8(0x99), mbc.Read(0xA000))
	})

	t.Run("RTC latch computes elapsed fields", func(t *testing.T) {
		current := time.Unix(1_000_000, 0)
		now := func() time.Time { return current }
		mbc := NewMBC3(bankedROM(2), 0, true, now)
		mbc.Write(0x0000, 0x0A)

		// advance 2 days, 3 hours, 4 minutes, 5 seconds
		current = current.Add(51*time.Hour + 4*time.Minute + 5*time.Second)

		// latch: 0x00 then 0x01
		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01)

		readRTC := func(reg uint8) uint8 {
			mbc.Write(0x4000, reg)
			return mbc.Read(0xA000)
		}

		assert.Equal(t, uint8(5), readRTC(0x08), "seconds")
		assert.Equal(t, uint8(4), readRTC(0x09), "minutes")
		assert.Equal(t, uint8(3), readRTC(0x0A), "hours")
		assert.Equal(t, uint8(2), readRTC(0x0B), "days low")
		assert.Equal(t, uint8(0), readRTC(0x0C)&0x01, "days high bit")
	})

	t.Run("RTC registers freeze between latches", func(t *testing.T) {
		current := time.Unix(0, 0)
		now := func() time.Time { return current }
		mbc := NewMBC3(bankedROM(2), 0, true, now)
		mbc.Write(0x0000, 0x0A)

		current = current.Add(10 * time.Second)
		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01)

		mbc.Write(0x4000, 0x08)
		assert.Equal(t, uint8(10), mbc.Read(0xA000))

		// time moves on, the latched value does not
		current = current.Add(20 * time.Second)
		assert.Equal(t, uint8(10), mbc.Read(0xA000))

		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01)
		assert.Equal(t, uint8(30), mbc.Read(0xA000))
	})

	t.Run("RTC writes latch into the base on the next latch edge", func(t *testing.T) {
		current := time.Unix(500_000, 0)
		now := func() time.Time { return current }
		mbc := NewMBC3(bankedROM(2), 0, true, now)
		mbc.Write(0x0000, 0x0A)

		// write 42 seconds into the seconds register
		mbc.Write(0x4000, 0x08)
		mbc.Write(0xA000, 42)

		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01)

		assert.Equal(t, uint8(42), mbc.Read(0xA000))
	})

	t.Run("day overflow bit sticks", func(t *testing.T) {
		current := time.Unix(0, 0)
		now := func() time.Time { return current }
		mbc := NewMBC3(bankedROM(2), 0, true, now)
		mbc.Write(0x0000, 0x0A)

		current = current.Add(513 * 24 * time.Hour)
		mbc.Write(0x6000, 0x00)
		mbc.Write(0x6000, 0x01)

		mbc.Write(0x4000, 0x0C)
		assert.Equal(t, uint8(0x80), mbc.Read(0xA000)&0x80, "overflow set after 512 days")
	})

	t.Run("RTC base round trips", func(t *testing.T) {
		mbc := NewMBC3(bankedROM(2), 0, true, nil)
		base := mbc.RTCBase()

		other := NewMBC3(bankedROM(2), 0, true, nil)
		other.SetRTCBase(base)
		assert.Equal(t, base, other.RTCBase())
	})
}
