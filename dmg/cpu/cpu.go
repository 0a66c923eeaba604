package cpu

import (
	"github.com/valerio/go-dmg/dmg/gberr"
	"github.com/valerio/go-dmg/dmg/interrupt"
)

// Flag is one of the 4 possible flags used in the flag register (high nibble of F)
type Flag uint8

const (
	zeroFlag      Flag = 0x80
	subFlag       Flag = 0x40
	halfCarryFlag Flag = 0x20
	carryFlag     Flag = 0x10
)

// State tracks whether the CPU is executing instructions or parked by
// HALT/STOP waiting for an interrupt.
type State uint8

const (
	Running State = iota
	Halted
	Stopped
)

// Bus is what the CPU needs from the memory fabric. Every Read/Write charges
// 4 cycles and advances the peripherals before returning, so the cycle
// counter moves as a side effect of ordinary memory traffic. Tick charges
// internal (non-memory) cycles the same way.
type Bus interface {
	Read(address uint16) byte
	Write(address uint16, value byte)
	Tick(cycles int)
	Cycles() uint64
}

// CPU holds the SM83 register file and drives instruction dispatch. It is
// the clock source of the whole machine: peripherals only advance when the
// CPU touches the bus.
type CPU struct {
	bus Bus
	irq *interrupt.Controller

	a, f    uint8
	b, c    uint8
	d, e    uint8
	h, l    uint8
	sp, pc  uint16
	state   State
	haltBug bool

	currentOpcode uint16
}

// Registers is a copy of the visible register file, used by frontends and
// tests that need to inspect CPU state without poking at internals.
type Registers struct {
	A, F, B, C, D, E, H, L uint8
	SP, PC                 uint16
}

// New returns a CPU in the documented post-boot-ROM state, wired to the
// given bus and interrupt controller.
func New(bus Bus, irq *interrupt.Controller) *CPU {
	cpu := &CPU{bus: bus, irq: irq}
	cpu.Reset()
	return cpu
}

// Reset restores the post-boot register values (the state the boot ROM
// leaves the machine in just before jumping to cartridge code at 0x0100).
func (c *CPU) Reset() {
	c.a, c.f = 0x01, 0xB0
	c.b, c.c = 0x00, 0x13
	c.d, c.e = 0x00, 0xD8
	c.h, c.l = 0x01, 0x4D
	c.sp = 0xFFFE
	c.pc = 0x0100
	c.state = Running
	c.haltBug = false
}

// Snapshot returns a copy of the register file.
func (c *CPU) Snapshot() Registers {
	return Registers{
		A: c.a, F: c.f, B: c.b, C: c.c,
		D: c.d, E: c.e, H: c.h, L: c.l,
		SP: c.sp, PC: c.pc,
	}
}

// PC returns the current program counter.
func (c *CPU) PC() uint16 { return c.pc }

// State returns the current run state.
func (c *CPU) State() State { return c.state }

// Tick dispatches a single instruction (or one interrupt service, or one
// idle machine cycle when halted) and returns the cycles it consumed. All
// returned cycles have already been charged to the bus by the time Tick
// returns, so peripheral state is exactly in sync.
func (c *CPU) Tick() int {
	start := c.bus.Cycles()

	// A pending interrupt wakes the CPU regardless of IME.
	if c.state != Running && c.irq.HasAnyPending() {
		c.state = Running
	}

	if c.irq.IME() == interrupt.Enabled {
		if src, ok := c.irq.NextServiced(); ok {
			c.serviceInterrupt(src)
			return int(c.bus.Cycles() - start)
		}
	}

	// EI enables interrupts only after the *next* instruction has run.
	// Capture the transitional state before executing: the instruction that
	// set it (EI itself) must not count as that next instruction.
	promote := c.irq.IME() == interrupt.Enabling

	if c.state != Running {
		c.bus.Tick(4)
		return int(c.bus.Cycles() - start)
	}

	opcode := c.fetch()
	c.currentOpcode = opcode
	cycles := decode(opcode)(c)

	// Bus accesses made during fetch+execute have already charged their
	// cycles; top up to the instruction's documented total so internal
	// machine cycles (taken branches, 16-bit adds) are accounted for.
	if consumed := int(c.bus.Cycles() - start); cycles > consumed {
		c.bus.Tick(cycles - consumed)
	}

	if promote {
		c.irq.Promote()
	}
	c.checkPC()

	return int(c.bus.Cycles() - start)
}

// fetch reads the next opcode byte (and the second byte for 0xCB-prefixed
// instructions). The halt bug suppresses exactly one PC increment, so the
// byte after HALT gets fetched twice.
func (c *CPU) fetch() uint16 {
	opcode := uint16(c.bus.Read(c.pc))
	if c.haltBug {
		c.haltBug = false
	} else {
		c.pc++
	}

	if opcode == 0xCB {
		opcode = 0xCB00 | uint16(c.bus.Read(c.pc))
		c.pc++
	}
	return opcode
}

// serviceInterrupt performs the 5-machine-cycle interrupt dispatch: two
// internal cycles, push PC (high then low), then the jump to the vector.
func (c *CPU) serviceInterrupt(src interrupt.Source) {
	c.irq.Disable()
	c.state = Running
	c.bus.Tick(8)
	c.pushStack(c.pc)
	c.pc = src.Vector()
	c.bus.Tick(4)
}

// checkPC aborts if the program counter landed in a region no legitimate
// code path can reach. Games never run from VRAM/OAM/IO space; ending up
// there means the emulator itself has corrupted control flow.
func (c *CPU) checkPC() {
	if (c.pc >= 0x8001 && c.pc <= 0xBFFF) || (c.pc >= 0xE001 && c.pc <= 0xFF7F) {
		gberr.Fatal(nil, gberr.ForbiddenPCRange, c.pc, c.sp, c.bus.Cycles(), c.pc)
	}
}

// halt implements the HALT instruction, including the documented halt bug:
// executed with IME disabled while an interrupt is already pending, the CPU
// fails to halt and instead re-fetches the following byte.
func (c *CPU) halt() {
	if c.irq.IME() != interrupt.Enabled && c.irq.HasAnyPending() {
		c.haltBug = true
		return
	}
	c.state = Halted
}
