package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDMA_transfersOneBytePerMachineCycle(t *testing.T) {
	dma := NewDMA()
	source := make([]byte, 0x10000)
	for i := 0; i < 160; i++ {
		source[0xC000+i] = byte(i + 1)
	}
	dma.Read = func(address uint16) byte { return source[address] }

	dma.Start(0xC0)
	assert.True(t, dma.Running())

	// spin-up cycle copies nothing
	dma.Tick()
	assert.Equal(t, byte(0), dma.ReadOAM(0))

	dma.Tick()
	assert.Equal(t, byte(1), dma.ReadOAM(0))

	for i := 0; i < 159; i++ {
		dma.Tick()
	}
	assert.Equal(t, byte(160), dma.ReadOAM(159))
	assert.True(t, dma.Running(), "still running during the trailing cycle")

	dma.Tick()
	assert.False(t, dma.Running())
}

func TestDMA_oamGatingOnBus(t *testing.T) {
	bus := New()

	// seed a source page in WRAM
	for i := uint16(0); i < 160; i++ {
		bus.Write(0xC000+i, byte(0xA0+i%16))
	}

	bus.Write(0xFE00, 0x55)
	assert.Equal(t, uint8(0x55), bus.Read(0xFE00))

	bus.Write(0xFF46, 0xC0)
	assert.True(t, bus.dma.Running())

	// while the transfer runs, CPU reads see open bus and writes are dropped
	assert.Equal(t, uint8(0xFF), bus.Read(0xFE00))
	bus.Write(0xFE05, 0x12)

	// each bus access charged 4 cycles = 1 DMA step; run the rest down
	for bus.dma.Running() {
		bus.Tick(4)
	}

	assert.Equal(t, uint8(0xA0), bus.Read(0xFE00))
	assert.NotEqual(t, uint8(0x12), bus.Read(0xFE05))
}

func TestDMA_registerReadsBack(t *testing.T) {
	bus := New()
	bus.Write(0xFF46, 0xC0)
	assert.Equal(t, uint8(0xC0), bus.Read(0xFF46))
}
