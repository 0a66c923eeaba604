// Package dmg is the emulator facade: it wires the CPU, bus, PPU, APU,
// timer, DMA, joypad and cartridge together and exposes the external
// interface a frontend drives: step, keys, screen, audio snapshot and the
// persistence surfaces. Everything is strictly single-threaded: peripherals
// advance only as a side effect of the CPU touching the bus.
package dmg

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/cpu"
	"github.com/valerio/go-dmg/dmg/gberr"
	"github.com/valerio/go-dmg/dmg/interrupt"
	"github.com/valerio/go-dmg/dmg/memory"
	"github.com/valerio/go-dmg/dmg/serial"
	"github.com/valerio/go-dmg/dmg/video"
)

// Key is a physical button on the console.
type Key = memory.JoypadKey

// Button constants re-exported for frontends.
const (
	KeyRight  = memory.JoypadRight
	KeyLeft   = memory.JoypadLeft
	KeyUp     = memory.JoypadUp
	KeyDown   = memory.JoypadDown
	KeyA      = memory.JoypadA
	KeyB      = memory.JoypadB
	KeySelect = memory.JoypadSelect
	KeyStart  = memory.JoypadStart
)

const divSeed = 0xABCC // internal divider value hardware reaches at handover

// Option configures an Emulator at construction time.
type Option func(*Emulator)

// WithLogger overrides the facade's logger (default slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emulator) { e.logger = logger }
}

// WithClock overrides the RTC clock source for MBC3 cartridges.
func WithClock(now func() time.Time) Option {
	return func(e *Emulator) { e.now = now }
}

// WithSerialTap registers a callback receiving every byte a ROM writes to
// the serial port; used by test harnesses comparing against golden output.
func WithSerialTap(tap func(byte)) Option {
	return func(e *Emulator) { e.serialTap = tap }
}

// Emulator is the root aggregate and the unit of save/restore.
type Emulator struct {
	cpu *cpu.CPU
	bus *memory.Bus

	rom       []byte
	logger    *slog.Logger
	now       func() time.Time
	serialTap func(byte)

	frameReady       bool
	instructionCount uint64
	frameCount       uint64
}

// New creates an emulator with no cartridge inserted, equivalent to turning
// the console on with an empty slot.
func New(opts ...Option) *Emulator {
	e := &Emulator{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	e.init(memory.New())
	return e
}

// NewWithROM creates an emulator with the given cartridge image loaded. The
// only recoverable errors are a malformed header or ROM size; everything
// after a successful load is either fine or an emulator bug.
func NewWithROM(rom []byte, opts ...Option) (*Emulator, error) {
	e := &Emulator{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	cart, err := memory.NewCartridgeWithData(rom)
	if err != nil {
		return nil, fmt.Errorf("loading cartridge: %w", err)
	}

	e.rom = rom
	e.init(memory.NewWithCartridge(cart, e.now))
	e.logger.Info("loaded cartridge",
		"title", cart.Title,
		"mbc", cart.MBCType,
		"rom_banks", cart.ROMBankCount,
		"ram_banks", cart.RAMBankCount,
	)
	return e, nil
}

func (e *Emulator) init(bus *memory.Bus) {
	e.bus = bus
	e.cpu = cpu.New(bus, bus.Interrupts())
	e.bus.SetTimerSeed(divSeed)
	e.bus.FatalContext = func() (uint16, uint16) {
		s := e.cpu.Snapshot()
		return s.PC, s.SP
	}
	if e.serialTap != nil {
		e.bus.SetSerial(serial.NewLogSink(
			func() { e.bus.Interrupts().Request(interrupt.Serial) },
			serial.WithTap(e.serialTap),
		))
	}
}

// Reset returns the machine to its post-boot state, keeping the loaded
// cartridge including its RAM contents and RTC base.
func (e *Emulator) Reset() {
	var ram []byte
	if mbcRAM := e.bus.MBC().RAM(); len(mbcRAM) > 0 {
		ram = append([]byte(nil), mbcRAM...)
	}
	rtc, hasRTC := e.RTCBase()

	if e.rom != nil {
		// the header already parsed once, it cannot fail now
		cart, _ := memory.NewCartridgeWithData(e.rom)
		e.init(memory.NewWithCartridge(cart, e.now))
	} else {
		e.init(memory.New())
	}

	e.SetPersistentRAM(ram)
	if hasRTC {
		e.SetRTCBase(rtc)
	}
	e.frameReady = false
	e.instructionCount = 0
	e.frameCount = 0
}

// StepInstruction dispatches one CPU instruction (or interrupt service, or
// an idle halt cycle) and advances every peripheral by exactly the cycles
// the dispatch charged. Programmer-fatal conditions surface as an error
// here instead of crashing the host process.
func (e *Emulator) StepInstruction() (err error) {
	defer gberr.Recover(&err)

	e.cpu.Tick()
	e.instructionCount++
	if e.bus.PPU.FrameReady() {
		e.frameReady = true
		e.frameCount++
	}
	return nil
}

// RunUntilFrame steps until the PPU completes a frame.
func (e *Emulator) RunUntilFrame() error {
	for {
		if err := e.StepInstruction(); err != nil {
			return err
		}
		if e.frameReady {
			return nil
		}
	}
}

// FrameReady reports and consumes the once-per-frame pulse.
func (e *Emulator) FrameReady() bool {
	r := e.frameReady
	e.frameReady = false
	return r
}

// Screen returns the 160x144 2-bit shade buffer, row-major from the top
// left. The buffer is owned by the PPU and mutated in place each frame.
func (e *Emulator) Screen() []byte {
	return e.bus.PPU.Screen()
}

// AudioSnapshot publishes the APU channel views for an external mixer.
func (e *Emulator) AudioSnapshot() audio.Snapshot {
	return e.bus.APU.Snapshot()
}

// KeyDown marks a key as held in the joypad matrix. The core does not latch
// a Joypad interrupt on its own; frontends that want key presses to wake a
// halted CPU call RaiseJoypadInterrupt as well.
func (e *Emulator) KeyDown(key Key) {
	e.bus.Joypad().Press(key)
}

// KeyUp releases a key in the joypad matrix.
func (e *Emulator) KeyUp(key Key) {
	e.bus.Joypad().Release(key)
}

// RaiseJoypadInterrupt requests the Joypad interrupt, waking Halt/Stop.
func (e *Emulator) RaiseJoypadInterrupt() {
	e.bus.Interrupts().Request(interrupt.Joypad)
}

// PersistentRAM returns the cartridge's battery-backed RAM for the frontend
// to persist. The slice aliases live memory; copy it before the next step
// if a stable snapshot is needed.
func (e *Emulator) PersistentRAM() []byte {
	return e.bus.MBC().RAM()
}

// SetPersistentRAM restores previously saved cartridge RAM (call before
// stepping, right after load).
func (e *Emulator) SetPersistentRAM(data []byte) {
	copy(e.bus.MBC().RAM(), data)
}

// RTCBase returns the MBC3 real-time-clock base as 8 little-endian bytes of
// seconds, and whether the cartridge has an RTC at all.
func (e *Emulator) RTCBase() ([8]byte, bool) {
	if mbc3, ok := e.bus.MBC().(*memory.MBC3); ok {
		return mbc3.RTCBase(), true
	}
	return [8]byte{}, false
}

// SetRTCBase restores a persisted RTC base on an MBC3 cartridge.
func (e *Emulator) SetRTCBase(base [8]byte) {
	if mbc3, ok := e.bus.MBC().(*memory.MBC3); ok {
		mbc3.SetRTCBase(base)
	}
}

// CPU exposes the processor for debuggers and tests.
func (e *Emulator) CPU() *cpu.CPU { return e.cpu }

// Bus exposes the memory fabric for debuggers and tests.
func (e *Emulator) Bus() *memory.Bus { return e.bus }

// Cycles returns total elapsed emulation cycles.
func (e *Emulator) Cycles() uint64 { return e.bus.Cycles() }

// InstructionCount returns the number of dispatched instructions.
func (e *Emulator) InstructionCount() uint64 { return e.instructionCount }

// FrameCount returns the number of completed frames.
func (e *Emulator) FrameCount() uint64 { return e.frameCount }

// ScreenWidth and ScreenHeight are the visible LCD dimensions.
const (
	ScreenWidth  = video.FramebufferWidth
	ScreenHeight = video.FramebufferHeight
)
