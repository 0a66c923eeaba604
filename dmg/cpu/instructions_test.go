package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/go-dmg/dmg/memory"
)

func newTestCPU() (*CPU, *memory.Bus) {
	bus := memory.New()
	c := New(bus, bus.Interrupts())
	// park the LCD so PPU interrupts cannot leak into CPU tests
	bus.Write(0xFF40, 0x00)
	bus.Interrupts().WriteIF(0x00)
	return c, bus
}

func TestCPU_stack(t *testing.T) {
	cpu, bus := newTestCPU()

	cpu.sp = 0xFFFF
	cpu.pushStack(0x0102)

	assert.Equal(t, uint16(0xFFFD), cpu.sp)
	// low byte at the lower address, high byte above it
	assert.Equal(t, uint8(0x02), bus.Read(0xFFFD))
	assert.Equal(t, uint8(0x01), bus.Read(0xFFFE))

	popped := cpu.popStack()

	assert.Equal(t, uint16(0x0102), popped)
	assert.Equal(t, uint16(0xFFFF), cpu.sp)
}

func TestCPU_inc(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc  string
		reg   *uint8
		arg   uint8
		want  uint8
		flags Flag
	}{
		{desc: "increases", reg: &cpu.a, arg: 0x0A, want: 0x0B},
		{desc: "sets zero flag", reg: &cpu.a, arg: 0xFF, want: 0, flags: zeroFlag | halfCarryFlag},
		{desc: "sets half carry flag", reg: &cpu.a, arg: 0x0F, want: 0x10, flags: halfCarryFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			*tC.reg = tC.arg
			cpu.inc(tC.reg)
			assert.Equal(t, tC.want, *tC.reg)
			assert.Equal(t, uint8(tC.flags), cpu.f)
		})
	}
}

func TestCPU_dec(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc  string
		reg   *uint8
		arg   uint8
		want  uint8
		flags Flag
	}{
		{desc: "decreases", reg: &cpu.a, arg: 0x0A, want: 0x09, flags: subFlag},
		{desc: "sets half carry flags", reg: &cpu.a, arg: 0, want: 0xFF, flags: subFlag | halfCarryFlag},
		{desc: "sets zero flag", reg: &cpu.a, arg: 0x01, want: 0, flags: subFlag | zeroFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			*tC.reg = tC.arg
			cpu.dec(tC.reg)
			assert.Equal(t, tC.want, *tC.reg)
			assert.Equal(t, uint8(tC.flags), cpu.f)
		})
	}
}

func TestCPU_rlc(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc  string
		reg   *uint8
		arg   uint8
		want  uint8
		flags Flag
	}{
		{desc: "rotates left", reg: &cpu.a, arg: 0x01, want: 0x02},
		{desc: "sets carry flag", reg: &cpu.a, arg: 0x80, want: 0x01, flags: carryFlag},
		{desc: "sets zero flag", reg: &cpu.b, arg: 0, want: 0, flags: zeroFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			*tC.reg = tC.arg
			cpu.rlc(tC.reg)
			assert.Equal(t, tC.want, *tC.reg)
			assert.Equalf(t, uint8(tC.flags), cpu.f, "flags don't match")
		})
	}
}

func TestCPU_rl(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc    string
		reg     *uint8
		arg     uint8
		carryIn bool
		want    uint8
		flags   Flag
	}{
		{desc: "rotates left", reg: &cpu.a, arg: 0x01, want: 0x02},
		{desc: "rotates carry in", reg: &cpu.a, arg: 0x00, carryIn: true, want: 0x01},
		{desc: "sets carry flag", reg: &cpu.a, arg: 0x80, want: 0x00, flags: carryFlag | zeroFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			if tC.carryIn {
				cpu.setFlag(carryFlag)
			}
			*tC.reg = tC.arg
			cpu.rl(tC.reg)
			assert.Equal(t, tC.want, *tC.reg)
			assert.Equalf(t, uint8(tC.flags), cpu.f, "flags don't match")
		})
	}
}

func TestCPU_rrc(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc  string
		reg   *uint8
		arg   uint8
		want  uint8
		flags Flag
	}{
		{desc: "rotates right", reg: &cpu.a, arg: 0x02, want: 0x01},
		{desc: "sets carry flag from bit 0", reg: &cpu.a, arg: 0x01, want: 0x80, flags: carryFlag},
		{desc: "sets zero flag", reg: &cpu.b, arg: 0, want: 0, flags: zeroFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			*tC.reg = tC.arg
			cpu.rrc(tC.reg)
			assert.Equal(t, tC.want, *tC.reg)
			assert.Equalf(t, uint8(tC.flags), cpu.f, "flags don't match")
		})
	}
}

func TestCPU_rr(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc    string
		reg     *uint8
		arg     uint8
		carryIn bool
		want    uint8
		flags   Flag
	}{
		{desc: "rotates right", reg: &cpu.a, arg: 0x02, want: 0x01},
		{desc: "rotates carry in", reg: &cpu.a, arg: 0x00, carryIn: true, want: 0x80},
		{desc: "sets carry flag from bit 0", reg: &cpu.a, arg: 0x01, want: 0x00, flags: carryFlag | zeroFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			if tC.carryIn {
				cpu.setFlag(carryFlag)
			}
			*tC.reg = tC.arg
			cpu.rr(tC.reg)
			assert.Equal(t, tC.want, *tC.reg)
			assert.Equalf(t, uint8(tC.flags), cpu.f, "flags don't match")
		})
	}
}

func TestCPU_addToA(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc  string
		a     uint8
		value uint8
		want  uint8
		flags Flag
	}{
		{desc: "adds", a: 0x01, value: 0x02, want: 0x03},
		{desc: "sets zero and carry", a: 0xFF, value: 0x01, want: 0x00, flags: zeroFlag | carryFlag | halfCarryFlag},
		{desc: "sets half carry", a: 0x0F, value: 0x01, want: 0x10, flags: halfCarryFlag},
		{desc: "sets carry", a: 0xF0, value: 0x20, want: 0x10, flags: carryFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			cpu.a = tC.a
			cpu.addToA(tC.value)
			assert.Equal(t, tC.want, cpu.a)
			assert.Equal(t, uint8(tC.flags), cpu.f)
		})
	}
}

func TestCPU_adc(t *testing.T) {
	cpu, _ := newTestCPU()

	t.Run("adds the carry", func(t *testing.T) {
		cpu.f = uint8(carryFlag)
		cpu.a = 0x01
		cpu.adc(0x01)
		assert.Equal(t, uint8(0x03), cpu.a)
	})

	t.Run("carry chains through 0xFF", func(t *testing.T) {
		cpu.f = uint8(carryFlag)
		cpu.a = 0xFF
		cpu.adc(0x00)
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.True(t, cpu.isSetFlag(carryFlag))
		assert.True(t, cpu.isSetFlag(zeroFlag))
	})
}

func TestCPU_sub(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc  string
		a     uint8
		value uint8
		want  uint8
		flags Flag
	}{
		{desc: "subtracts", a: 0x03, value: 0x02, want: 0x01, flags: subFlag},
		{desc: "sets zero", a: 0x02, value: 0x02, want: 0x00, flags: subFlag | zeroFlag},
		{desc: "borrows", a: 0x00, value: 0x01, want: 0xFF, flags: subFlag | carryFlag | halfCarryFlag},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			cpu.f = 0
			cpu.a = tC.a
			cpu.sub(tC.value)
			assert.Equal(t, tC.want, cpu.a)
			assert.Equal(t, uint8(tC.flags), cpu.f)
		})
	}
}

func TestCPU_sbc(t *testing.T) {
	cpu, _ := newTestCPU()

	t.Run("subtracts the carry", func(t *testing.T) {
		cpu.f = uint8(carryFlag)
		cpu.a = 0x03
		cpu.sbc(0x01)
		assert.Equal(t, uint8(0x01), cpu.a)
	})

	t.Run("zero flag reflects the 8-bit result", func(t *testing.T) {
		cpu.f = uint8(carryFlag)
		cpu.a = 0x00
		cpu.sbc(0xFF)
		// 0x00 - 0xFF - 1 truncates to 0x00
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.True(t, cpu.isSetFlag(zeroFlag))
		assert.True(t, cpu.isSetFlag(carryFlag))
	})
}

func TestCPU_cp(t *testing.T) {
	cpu, _ := newTestCPU()

	cpu.a = 0x42
	cpu.cp(0x42)
	assert.Equal(t, uint8(0x42), cpu.a, "A must be untouched")
	assert.True(t, cpu.isSetFlag(zeroFlag))
	assert.True(t, cpu.isSetFlag(subFlag))

	cpu.cp(0x50)
	assert.True(t, cpu.isSetFlag(carryFlag))
	assert.False(t, cpu.isSetFlag(zeroFlag))
}

func TestCPU_logicalOps(t *testing.T) {
	cpu, _ := newTestCPU()

	t.Run("and", func(t *testing.T) {
		cpu.f = 0
		cpu.a = 0xF0
		cpu.and(0x0F)
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.Equal(t, uint8(zeroFlag|halfCarryFlag), cpu.f)
	})

	t.Run("or", func(t *testing.T) {
		cpu.f = 0xF0
		cpu.a = 0xF0
		cpu.or(0x0F)
		assert.Equal(t, uint8(0xFF), cpu.a)
		assert.Equal(t, uint8(0), cpu.f)
	})

	t.Run("xor", func(t *testing.T) {
		cpu.f = 0
		cpu.a = 0xFF
		cpu.xor(0xFF)
		assert.Equal(t, uint8(0x00), cpu.a)
		assert.Equal(t, uint8(zeroFlag), cpu.f)
	})
}

func TestCPU_addToHL(t *testing.T) {
	cpu, _ := newTestCPU()

	cpu.f = uint8(zeroFlag) // Z must be preserved
	cpu.setHL(0x0FFF)
	cpu.addToHL(0x0001)
	assert.Equal(t, uint16(0x1000), cpu.getHL())
	assert.True(t, cpu.isSetFlag(zeroFlag))
	assert.True(t, cpu.isSetFlag(halfCarryFlag))
	assert.False(t, cpu.isSetFlag(carryFlag))

	cpu.setHL(0xFFFF)
	cpu.addToHL(0x0001)
	assert.Equal(t, uint16(0x0000), cpu.getHL())
	assert.True(t, cpu.isSetFlag(carryFlag))
}

func TestCPU_shifts(t *testing.T) {
	cpu, _ := newTestCPU()

	t.Run("sla", func(t *testing.T) {
		cpu.f = 0
		cpu.a = 0x81
		cpu.sla(&cpu.a)
		assert.Equal(t, uint8(0x02), cpu.a)
		assert.True(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("sra keeps sign bit", func(t *testing.T) {
		cpu.f = 0
		cpu.a = 0x81
		cpu.sra(&cpu.a)
		assert.Equal(t, uint8(0xC0), cpu.a)
		assert.True(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("srl clears sign bit", func(t *testing.T) {
		cpu.f = 0
		cpu.a = 0x81
		cpu.srl(&cpu.a)
		assert.Equal(t, uint8(0x40), cpu.a)
		assert.True(t, cpu.isSetFlag(carryFlag))
	})

	t.Run("swap", func(t *testing.T) {
		cpu.f = 0xF0
		cpu.a = 0xAB
		cpu.swap(&cpu.a)
		assert.Equal(t, uint8(0xBA), cpu.a)
		assert.Equal(t, uint8(0), cpu.f)
	})
}

func TestCPU_bitOps(t *testing.T) {
	cpu, _ := newTestCPU()

	t.Run("bit preserves carry", func(t *testing.T) {
		cpu.f = uint8(carryFlag)
		cpu.bit(7, 0x80)
		assert.False(t, cpu.isSetFlag(zeroFlag))
		assert.True(t, cpu.isSetFlag(halfCarryFlag))
		assert.True(t, cpu.isSetFlag(carryFlag))

		cpu.bit(6, 0x80)
		assert.True(t, cpu.isSetFlag(zeroFlag))
	})

	t.Run("res and set leave flags alone", func(t *testing.T) {
		cpu.f = 0xF0
		value := uint8(0xFF)
		cpu.res(3, &value)
		assert.Equal(t, uint8(0xF7), value)
		cpu.set(3, &value)
		assert.Equal(t, uint8(0xFF), value)
		assert.Equal(t, uint8(0xF0), cpu.f)
	})
}

func TestCPU_daa(t *testing.T) {
	cpu, _ := newTestCPU()

	testCases := []struct {
		desc string
		x, y uint8
	}{
		{desc: "no adjust", x: 0x12, y: 0x34},
		{desc: "low nibble adjust", x: 0x19, y: 0x19},
		{desc: "high nibble adjust", x: 0x90, y: 0x20},
		{desc: "full wrap", x: 0x99, y: 0x99},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			decX := int(tC.x>>4)*10 + int(tC.x&0xF)
			decY := int(tC.y>>4)*10 + int(tC.y&0xF)
			sum := decX + decY

			cpu.f = 0
			cpu.a = tC.x
			cpu.addToA(tC.y)
			cpu.daa()

			wantBCD := uint8(sum%10 + (sum/10%10)<<4)
			assert.Equal(t, wantBCD, cpu.a)
			assert.Equal(t, sum >= 100, cpu.isSetFlag(carryFlag))
		})
	}
}
