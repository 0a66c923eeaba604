package memory

import "time"

// MBC represents a Memory Bank Controller interface that all MBC types must implement
type MBC interface {
	// Read reads a byte from the specified address
	Read(addr uint16) uint8
	// Write writes a byte to the specified address, returns the written value
	Write(addr uint16, value uint8) uint8
	// RAM exposes the battery-backed external RAM for save persistence.
	RAM() []uint8
}

// NoMBC represents cartridges with no memory banking capabilities.
// These are typically smaller games (32KB or less) that fit entirely in the
// base memory region. The cartridge ROM is directly mapped to 0x0000-0x7FFF
// and cannot be banked/switched. The ROM+RAM variants carry up to 8KiB of
// external RAM at 0xA000-0xBFFF, with no enable latch.
type NoMBC struct {
	rom []uint8
	ram []uint8
}

// NewNoMBC creates a new NoMBC controller. ramBytes is 0 for pure ROM-only
// carts, or up to 0x2000 for the ROM+RAM variants.
func NewNoMBC(romData []uint8, ramBytes int) *NoMBC {
	return &NoMBC{
		rom: romData,
		ram: make([]uint8, ramBytes),
	}
}

func (m *NoMBC) RAM() []uint8 { return m.ram }

func (m *NoMBC) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x7FFF:
		return m.rom[addr]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if len(m.ram) == 0 {
			return 0xFF
		}
		return m.ram[(addr-0xA000)%uint16(len(m.ram))]
	default:
		return 0xFF
	}
}

func (m *NoMBC) Write(addr uint16, value uint8) uint8 {
	if addr >= 0xA000 && addr <= 0xBFFF && len(m.ram) > 0 {
		m.ram[(addr-0xA000)%uint16(len(m.ram))] = value
	}
	return value
}

// MBC1 is the first and most common MBC chip. Features include:
// - Supports up to 2MB ROM (128 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Bank 0 always mapped to 0x0000-0x3FFF
// - Switchable ROM bank at 0x4000-0x7FFF
// - Optional RAM banking at 0xA000-0xBFFF
// - Optional battery backup for RAM persistence
//
// Bank-select writes of 0x00, 0x20, 0x40 and 0x60 are silently bumped to
// the next bank up: the chip compares only the low 5 bits against zero, so
// those four banks are unreachable through this register. The banking-mode
// register at 0x6000 is simplified to RAM-only banking.
type MBC1 struct {
	rom        []uint8
	ram        []uint8
	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	hasBattery bool
	bankCount  int
}

// NewMBC1 creates a new MBC1 controller
func NewMBC1(romData []uint8, hasBattery bool, ramBankCount uint8) *MBC1 {
	ramSize := uint32(ramBankCount) * 0x2000 // 8KB per RAM bank
	return &MBC1{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		hasBattery: hasBattery,
		bankCount:  len(romData) / 0x4000,
	}
}

func (m *MBC1) RAM() []uint8 { return m.ram }

func (m *MBC1) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		// ROM Bank 0
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		// Switchable ROM Bank
		offset := uint32(m.romBank) * 0x4000
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		// RAM Bank
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000 % uint32(len(m.ram))
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		// RAM Enable
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		// ROM bank number. The chip checks only the low 5 bits against
		// zero, so 0x00/0x20/0x40/0x60 select the bank one up instead.
		bank := value & 0x7F
		if bank&0x1F == 0 {
			bank++
		}
		m.romBank = bank % uint8(m.bankCount)
	case addr >= 0x4000 && addr <= 0x5FFF:
		// RAM bank number (RAM-only banking)
		m.ramBank = value & 0x03
	case addr >= 0x6000 && addr <= 0x7FFF:
		// banking mode select, simplified away (RAM banking only)
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled || len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000 % uint32(len(m.ram))
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

// rtcRegister identifies one of the five RTC sub-registers selectable via a
// 0x4000-0x5FFF write in the 0x08..0x0C range.
type rtcRegister int

const (
	rtcSeconds rtcRegister = iota
	rtcMinutes
	rtcHours
	rtcDaysLow
	rtcDaysHigh
)

// MBC3 is an advanced MBC chip with RTC support. Features include:
// - Supports up to 2MB ROM (128 16KB banks)
// - Up to 32KB RAM (4 8KB banks)
// - Real-Time Clock (RTC) functionality: 5 registers (seconds, minutes,
//   hours, days-low, days-high/flags) derived from an elapsed-seconds base.
// - Bank-0 selection writes 0 rather than MBC1's +1 quirk.
// - RAM and RTC can be battery backed.
type MBC3 struct {
	rom []uint8
	ram []uint8

	romBank    uint8
	ramBank    uint8
	ramEnabled bool
	hasRTC     bool

	// rtcSelected distinguishes a plain RAM-bank selection (0-3) from an
	// RTC register selection via the 0x08..0x0C write range.
	rtcSelected bool
	selectedReg rtcRegister

	// rtcBase is the moment (in seconds since the Unix epoch) the RTC reads
	// as zero elapsed from; reading a register computes now-rtcBase.
	rtcBase int64

	// shadow holds writes into RTC registers since the last latch; folded
	// into rtcBase on the next 0->1 write to the latch gate.
	shadow      [5]uint8
	shadowDirty bool

	// latched holds the values captured by the last 0->1 latch transition;
	// these (not a live now-rtcBase computation) are what reads return,
	// matching real MBC3 semantics where only a latch updates the visible
	// registers.
	latched    [5]uint8
	latchState uint8 // last byte written to 0x6000-0x7FFF, for edge detection

	now func() time.Time
}

// NewMBC3 creates a new MBC3 controller.
func NewMBC3(romData []uint8, ramBankCount uint8, hasRTC bool, now func() time.Time) *MBC3 {
	if now == nil {
		now = time.Now
	}
	ramSize := uint32(ramBankCount) * 0x2000
	m := &MBC3{
		rom:        romData,
		ram:        make([]uint8, ramSize),
		romBank:    1,
		ramEnabled: false,
		hasRTC:     hasRTC,
		now:        now,
	}
	m.rtcBase = now().Unix()
	return m
}

func (m *MBC3) RAM() []uint8 { return m.ram }

func (m *MBC3) Read(addr uint16) uint8 {
	switch {
	case addr <= 0x3FFF:
		return m.rom[addr]
	case addr >= 0x4000 && addr <= 0x7FFF:
		offset := uint32(m.romBank) * 0x4000
		if offset >= uint32(len(m.rom)) {
			offset = offset % uint32(len(m.rom))
		}
		return m.rom[offset+uint32(addr-0x4000)]
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.rtcSelected && m.hasRTC {
			return m.latched[m.selectedReg]
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset = offset % uint32(len(m.ram))
		}
		return m.ram[offset+uint32(addr-0xA000)]
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value uint8) uint8 {
	switch {
	case addr <= 0x1FFF:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr >= 0x2000 && addr <= 0x3FFF:
		// unlike MBC1, a written 0 stays 0: bank 0 maps identically to the
		// fixed bank at 0x0000-0x3FFF, no +1 rewrite.
		m.romBank = value & 0x7F
	case addr >= 0x4000 && addr <= 0x5FFF:
		switch {
		case value <= 0x03:
			m.rtcSelected = false
			m.ramBank = value
		case value >= 0x08 && value <= 0x0C:
			m.rtcSelected = true
			m.selectedReg = rtcRegister(value - 0x08)
		}
	case addr >= 0x6000 && addr <= 0x7FFF:
		if m.latchState == 0x00 && value == 0x01 {
			m.latchRTC()
		}
		m.latchState = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.rtcSelected && m.hasRTC {
			m.shadow[m.selectedReg] = value
			m.shadowDirty = true
			return value
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		offset := uint32(m.ramBank) * 0x2000
		if offset >= uint32(len(m.ram)) {
			offset = offset % uint32(len(m.ram))
		}
		m.ram[offset+uint32(addr-0xA000)] = value
	}
	return value
}

// latchRTC captures the live (or shadow-overridden) RTC state into the
// visible latched registers. If a register had been written to since the
// last latch, that shadow write is folded back into rtcBase so subsequent
// latches reflect the software-adjusted time, then the shadow is cleared.
func (m *MBC3) latchRTC() {
	if m.shadowDirty {
		m.rtcBase = m.now().Unix() - secondsFromRTCFields(m.shadow)
		m.shadowDirty = false
	}
	elapsed := m.now().Unix() - m.rtcBase
	if elapsed < 0 {
		elapsed = 0
	}
	days := elapsed / 86400
	secs := elapsed % 86400

	overflow := m.latched[rtcDaysHigh] & 0x80
	halt := m.latched[rtcDaysHigh] & 0x40

	m.latched[rtcSeconds] = uint8(secs % 60)
	m.latched[rtcMinutes] = uint8((secs / 60) % 60)
	m.latched[rtcHours] = uint8(secs / 3600)
	m.latched[rtcDaysLow] = uint8(days & 0xFF)
	dayHigh := uint8((days >> 8) & 0x01)
	if days > 0x1FF {
		overflow = 0x80 // sticky once set
	}
	m.latched[rtcDaysHigh] = dayHigh | halt | overflow
}

// secondsFromRTCFields decodes a shadow RTC register set back into an
// elapsed-seconds count, used when software writes the RTC directly.
func secondsFromRTCFields(f [5]uint8) int64 {
	days := int64(f[rtcDaysLow]) | int64(f[rtcDaysHigh]&0x01)<<8
	return days*86400 + int64(f[rtcHours])*3600 + int64(f[rtcMinutes])*60 + int64(f[rtcSeconds])
}

// RTCBase returns the 8-byte little-endian elapsed-seconds base used by the
// RTC, handed to the frontend for save-file persistence.
func (m *MBC3) RTCBase() [8]byte {
	var out [8]byte
	v := uint64(m.rtcBase)
	for i := range out {
		out[i] = byte(v >> (8 * i))
	}
	return out
}

// SetRTCBase restores a previously persisted RTC base (e.g. on ROM reload).
func (m *MBC3) SetRTCBase(b [8]byte) {
	var v uint64
	for i := range b {
		v |= uint64(b[i]) << (8 * i)
	}
	m.rtcBase = int64(v)
}
