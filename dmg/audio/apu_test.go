package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-dmg/dmg/addr"
)

func poweredAPU() *APU {
	apu := New()
	apu.WriteRegister(addr.NR52, 0x80)
	return apu
}

func TestAPU_powerControl(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR10, 0x12)
	apu.WriteRegister(addr.NR11, 0x34)
	// NR10 bit7 reads as 1; NR11 lower 6 read as 1s
	assert.Equal(t, uint8((0x12&0x7F)|0x80), apu.ReadRegister(addr.NR10))
	assert.Equal(t, uint8((0x34&0xC0)|0x3F), apu.ReadRegister(addr.NR11))

	apu.WriteRegister(addr.NR52, 0x00)

	// When powered off, reads still apply masks to cleared storage
	assert.Equal(t, uint8(0x80), apu.ReadRegister(addr.NR10))
	assert.Equal(t, uint8(0x3F), apu.ReadRegister(addr.NR11))
	assert.Equal(t, uint8(0x70), apu.ReadRegister(addr.NR52))
}

func TestAPU_masterOffDropsWrites(t *testing.T) {
	apu := poweredAPU()
	apu.WriteRegister(addr.NR52, 0x00)

	apu.WriteRegister(addr.NR12, 0xF3)
	apu.WriteRegister(addr.NR50, 0x77)
	assert.Equal(t, uint8(0x00), apu.ReadRegister(addr.NR12))
	assert.Equal(t, uint8(0x00), apu.ReadRegister(addr.NR50))

	// wave RAM stays writable regardless of power
	apu.WriteRegister(addr.WaveRAMStart, 0xAB)
	assert.Equal(t, uint8(0xAB), apu.ReadRegister(addr.WaveRAMStart))

	// length loads survive power-off writes (low 6 bits for the squares)
	apu.WriteRegister(addr.NR11, 0xFF)
	assert.Equal(t, uint8(0x3F), apu.ReadRegister(addr.NR11))
	assert.Equal(t, uint16(64-0x3F), apu.ch[0].length)
}

func TestAPU_masterOffClearsChannels(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR14, 0x80)
	on, _, _, _ := apu.ChannelsOn()
	require.True(t, on)

	apu.WriteRegister(addr.NR52, 0x00)
	ch1, ch2, ch3, ch4 := apu.ChannelsOn()
	assert.False(t, ch1)
	assert.False(t, ch2)
	assert.False(t, ch3)
	assert.False(t, ch4)

	snap := apu.Snapshot()
	assert.False(t, snap.Ch1.PlayingLeft)
	assert.False(t, snap.Ch1.PlayingRight)
}

func TestAPU_frameSequencerTiming(t *testing.T) {
	apu := poweredAPU()

	initialStep := apu.step

	apu.Tick(8191)
	assert.Equal(t, initialStep, apu.step, "sequencer must not advance before 8192 cycles")

	apu.Tick(1)
	assert.Equal(t, (initialStep+1)&7, apu.step, "sequencer advances after 8192 cycles")

	for i := 0; i < 7; i++ {
		apu.Tick(8192)
	}
	assert.Equal(t, initialStep, apu.step, "sequencer wraps after 8 steps")
}

func TestAPU_sequencerPausedWhileOff(t *testing.T) {
	apu := New()
	apu.Tick(8192 * 4)
	assert.Equal(t, 0, apu.step)
}

func TestAPU_triggerTurnsChannelOn(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR12, 0xF0) // volume 15, DAC on
	apu.WriteRegister(addr.NR14, 0x80) // trigger

	on, _, _, _ := apu.ChannelsOn()
	assert.True(t, on)
	assert.Equal(t, uint8(0x01), apu.ReadRegister(addr.NR52)&0x0F)
}

func TestAPU_dacOffForcesChannelOff(t *testing.T) {
	apu := poweredAPU()

	// volume 0, direction down: DAC off, trigger cannot start the channel
	apu.WriteRegister(addr.NR12, 0x00)
	apu.WriteRegister(addr.NR14, 0x80)
	on, _, _, _ := apu.ChannelsOn()
	assert.False(t, on)

	// killing the DAC of a running channel stops it immediately
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR14, 0x80)
	on, _, _, _ = apu.ChannelsOn()
	require.True(t, on)
	apu.WriteRegister(addr.NR12, 0x00)
	on, _, _, _ = apu.ChannelsOn()
	assert.False(t, on)
}

func TestAPU_lengthCounterExpires(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR11, 62)   // length counter = 2
	apu.WriteRegister(addr.NR14, 0xC0) // trigger + length enable

	on, _, _, _ := apu.ChannelsOn()
	require.True(t, on)

	// length clocks on steps 0/2/4/6: two full sequencer steps at most
	apu.Tick(8192 * 4)
	on, _, _, _ = apu.ChannelsOn()
	assert.False(t, on, "channel must stop when the length counter hits zero")
}

func TestAPU_envelopeDecreasesVolume(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR12, 0xF1) // volume 15, down, pace 1
	apu.WriteRegister(addr.NR14, 0x80)

	require.Equal(t, uint8(15), apu.Snapshot().Ch1.Volume)

	// step 7 clocks the envelope once per sequencer loop
	apu.Tick(8192 * 8)
	assert.Equal(t, uint8(14), apu.Snapshot().Ch1.Volume)

	apu.Tick(8192 * 8)
	assert.Equal(t, uint8(13), apu.Snapshot().Ch1.Volume)
}

func TestAPU_sweepOverflowOnTrigger(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR10, 0x11) // period 1, up, shift 1
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR13, 0xFF) // freq low
	apu.WriteRegister(addr.NR14, 0x87) // trigger, freq high = 7 -> freq 2047

	on, _, _, _ := apu.ChannelsOn()
	assert.False(t, on, "sweep overflow at trigger must kill the channel")
}

func TestAPU_sweepOverflowWithinPeriodTicks(t *testing.T) {
	apu := poweredAPU()

	// trigger with shift 0 so the immediate check passes
	apu.WriteRegister(addr.NR10, 0x10) // period 1, up, shift 0
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR13, 0xFF)
	apu.WriteRegister(addr.NR14, 0x87)
	on, _, _, _ := apu.ChannelsOn()
	require.True(t, on)

	// now raise the shift; the next sweep clock overflows 2047 + 1023
	apu.WriteRegister(addr.NR10, 0x11)

	// sweep clocks on sequencer steps 2 and 6
	apu.Tick(8192 * 3)
	on, _, _, _ = apu.ChannelsOn()
	assert.False(t, on, "sweep overflow within one period tick")
}

func TestAPU_sweepNegateModeQuirk(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR10, 0x19) // period 1, down, shift 1
	apu.WriteRegister(addr.NR12, 0xF0)
	apu.WriteRegister(addr.NR13, 0x00)
	apu.WriteRegister(addr.NR14, 0x84) // trigger, freq 0x400

	on, _, _, _ := apu.ChannelsOn()
	require.True(t, on)

	// clearing the direction bit after a subtract-mode calculation kills CH1
	apu.WriteRegister(addr.NR10, 0x11)
	on, _, _, _ = apu.ChannelsOn()
	assert.False(t, on)
}

func TestAPU_snapshotViews(t *testing.T) {
	apu := poweredAPU()

	// CH2: duty 2, volume 10, freq 1750 -> 131072/(2048-1750) Hz, both sides
	apu.WriteRegister(addr.NR21, 0x80)
	apu.WriteRegister(addr.NR22, 0xA0)
	apu.WriteRegister(addr.NR23, 0xD6) // 1750 = 0x6D6
	apu.WriteRegister(addr.NR51, 0x22) // CH2 left + right
	apu.WriteRegister(addr.NR24, 0x86) // trigger, high bits 0x6

	snap := apu.Snapshot()
	assert.True(t, snap.Ch2.PlayingLeft)
	assert.True(t, snap.Ch2.PlayingRight)
	assert.Equal(t, uint8(2), snap.Ch2.WaveDuty)
	assert.Equal(t, uint8(10), snap.Ch2.Volume)
	assert.InDelta(t, 131072.0/298.0, snap.Ch2.Frequency, 0.01)

	// CH4: divider 2, shift 3, 7-bit LFSR
	apu.WriteRegister(addr.NR42, 0xF0)
	apu.WriteRegister(addr.NR43, 0x3A) // shift 3, width 7-bit, divider 2
	apu.WriteRegister(addr.NR44, 0x80)
	snap = apu.Snapshot()
	assert.True(t, snap.Ch4.SevenBitLFSR)
	assert.InDelta(t, 524288.0/2.0/16.0, snap.Ch4.Frequency, 0.01)

	// CH3 wave pattern round-trips through wave RAM
	for i := uint16(0); i < 16; i++ {
		apu.WriteRegister(addr.WaveRAMStart+i, uint8(i)<<4|uint8(i))
	}
	snap = apu.Snapshot()
	assert.Equal(t, uint8(0x55), snap.Ch3.WavePattern[5])
}

func TestAPU_ch3OutputLevels(t *testing.T) {
	apu := poweredAPU()

	apu.WriteRegister(addr.NR30, 0x80) // DAC on
	apu.WriteRegister(addr.NR32, 0x40) // level 2 (half)
	apu.WriteRegister(addr.NR51, 0x44) // CH3 both sides
	apu.WriteRegister(addr.NR34, 0x80) // trigger

	snap := apu.Snapshot()
	assert.Equal(t, OutputHalf, snap.Ch3.Level)
	assert.True(t, snap.Ch3.PlayingLeft)
}

func TestAPU_powerOnResetsSequencer(t *testing.T) {
	apu := poweredAPU()

	apu.Tick(8192 * 3)
	require.Equal(t, 3, apu.step)

	apu.WriteRegister(addr.NR52, 0x00)
	apu.WriteRegister(addr.NR52, 0x80)
	assert.Equal(t, 0, apu.step)
}
