package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFetch(t *testing.T) {
	tests := []struct {
		name           string
		memorySetup    map[uint16]uint8
		pc             uint16
		expectedOpcode uint16
		expectedPC     uint16
	}{
		{
			name: "NOP",
			memorySetup: map[uint16]uint8{
				0xC000: 0x00,
			},
			pc:             0xC000,
			expectedOpcode: 0x00,
			expectedPC:     0xC001,
		},
		{
			name: "INC B",
			memorySetup: map[uint16]uint8{
				0xC000: 0x04,
			},
			pc:             0xC000,
			expectedOpcode: 0x04,
			expectedPC:     0xC001,
		},
		{
			name: "CB BIT 0,B",
			memorySetup: map[uint16]uint8{
				0xC000: 0xCB,
				0xC001: 0x40,
			},
			pc:             0xC000,
			expectedOpcode: 0xCB40,
			expectedPC:     0xC002,
		},
		{
			name: "CB SET 7,A",
			memorySetup: map[uint16]uint8{
				0xC000: 0xCB,
				0xC001: 0xFF,
			},
			pc:             0xC000,
			expectedOpcode: 0xCBFF,
			expectedPC:     0xC002,
		},
		{
			name: "LD B,0xCB (not CB prefix)",
			memorySetup: map[uint16]uint8{
				0xC000: 0x06, // LD B,n
				0xC001: 0xCB, // immediate value
			},
			pc:             0xC000,
			expectedOpcode: 0x06,
			expectedPC:     0xC001,
		},
		{
			name: "HALT",
			memorySetup: map[uint16]uint8{
				0xC000: 0x76,
			},
			pc:             0xC000,
			expectedOpcode: 0x76,
			expectedPC:     0xC001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cpu, bus := newTestCPU()
			for address, value := range tt.memorySetup {
				bus.Write(address, value)
			}
			cpu.pc = tt.pc

			opcode := cpu.fetch()

			assert.Equal(t, tt.expectedOpcode, opcode)
			assert.Equal(t, tt.expectedPC, cpu.pc)
			assert.NotNil(t, decode(opcode))
		})
	}
}

func TestDecode_tablesAreComplete(t *testing.T) {
	for op := 0; op <= 0xFF; op++ {
		assert.NotNilf(t, decode(uint16(op)), "missing handler for opcode 0x%02X", op)
		assert.NotNilf(t, decode(0xCB00|uint16(op)), "missing handler for opcode 0xCB%02X", op)
	}
}

func TestMnemonics(t *testing.T) {
	assert.Equal(t, "NOP", Mnemonic(0x00))
	assert.Equal(t, "HALT", Mnemonic(0x76))
	assert.Equal(t, "JR r8", Mnemonic(0x18))
	assert.Equal(t, "BIT 0,B", Mnemonic(0xCB40))
	assert.Equal(t, "SET 7,A", Mnemonic(0xCBFF))
	for op := 0; op <= 0xFF; op++ {
		assert.NotEmptyf(t, Mnemonic(uint16(op)), "missing mnemonic for 0x%02X", op)
		assert.NotEmptyf(t, Mnemonic(0xCB00|uint16(op)), "missing mnemonic for 0xCB%02X", op)
	}
}
