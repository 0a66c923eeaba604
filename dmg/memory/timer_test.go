package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-dmg/dmg/addr"
)

func TestTimer_divIncrements(t *testing.T) {
	var timer Timer

	timer.Tick(255)
	assert.Equal(t, uint8(0), timer.Read(addr.DIV))

	timer.Tick(1)
	assert.Equal(t, uint8(1), timer.Read(addr.DIV))

	timer.Tick(256 * 10)
	assert.Equal(t, uint8(11), timer.Read(addr.DIV))
}

func TestTimer_divWriteResets(t *testing.T) {
	var timer Timer

	timer.Tick(1000)
	assert.NotEqual(t, uint8(0), timer.Read(addr.DIV))

	timer.Write(addr.DIV, 0xAB)
	assert.Equal(t, uint8(0), timer.Read(addr.DIV))
}

func TestTimer_timaRates(t *testing.T) {
	testCases := []struct {
		desc   string
		tac    byte
		cycles int
	}{
		{desc: "4096 Hz", tac: 0x04, cycles: 1024},
		{desc: "262144 Hz", tac: 0x05, cycles: 16},
		{desc: "65536 Hz", tac: 0x06, cycles: 64},
		{desc: "16384 Hz", tac: 0x07, cycles: 256},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			var timer Timer
			timer.Write(addr.TAC, tC.tac)

			timer.Tick(tC.cycles * 5)
			assert.Equal(t, uint8(5), timer.Read(addr.TIMA))
		})
	}
}

func TestTimer_disabledDoesNotCount(t *testing.T) {
	var timer Timer
	timer.Write(addr.TAC, 0x00) // enable bit clear

	timer.Tick(1024 * 8)
	assert.Equal(t, uint8(0), timer.Read(addr.TIMA))
}

func TestTimer_overflowReloadsAndInterrupts(t *testing.T) {
	var timer Timer
	fired := 0
	timer.TimerInterruptHandler = func() { fired++ }

	timer.Write(addr.TMA, 0x80)
	timer.Write(addr.TIMA, 0xFF)
	timer.Write(addr.TAC, 0x05) // enabled, 16-cycle rate

	// one increment overflows; the reload and IRQ land a few cycles later
	timer.Tick(16)
	assert.Equal(t, uint8(0x00), timer.Read(addr.TIMA))

	timer.Tick(8)
	assert.Equal(t, uint8(0x80), timer.Read(addr.TIMA))

	timer.Tick(4)
	assert.Equal(t, 1, fired)
}
