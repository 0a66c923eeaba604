package memory

import (
	"time"

	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/gberr"
	"github.com/valerio/go-dmg/dmg/interrupt"
	"github.com/valerio/go-dmg/dmg/serial"
	"github.com/valerio/go-dmg/dmg/video"
)

type memRegion uint8

const (
	regionROM memRegion = iota
	regionVRAM
	regionExtRAM
	regionWRAM
	regionEcho
	regionOAM
	regionIO
)

// SerialPort is the minimal interface for a serial device connected to SB/SC.
// Implementations MUST only accept reads/writes to addr.SB and addr.SC.
type SerialPort interface {
	Write(address uint16, value byte)
	Read(address uint16) byte
	Tick(cycles int)
	Reset()
}

// Bus is the memory fabric: it partitions the 16-bit address space across
// the cartridge MBC, PPU, APU, timer, DMA, joypad, serial and interrupt
// components, and charges 4 cycles for every access. Charged cycles advance
// the peripherals in a fixed order (PPU, APU, timer, DMA) in 2-cycle pairs,
// so a read observes peripheral state as of the cycle of the read itself.
type Bus struct {
	cart *Cartridge
	mbc  MBC

	wram [0x2000]byte
	hram [0x7F]byte
	io   [0x80]byte // registers not owned by any component (e.g. 0xFF03, 0xFF4C..0xFF7F)

	PPU    *video.PPU
	APU    *audio.APU
	timer  Timer
	dma    *DMA
	joypad *Joypad
	serial SerialPort
	irq    *interrupt.Controller

	cycles   uint64
	dmaPhase bool // DMA steps once per machine cycle (two 2-cycle pairs)
	dmaReg   byte

	regionMap [256]memRegion

	// FatalContext, when set, supplies PC/SP for fatal diagnostics raised at
	// the bus level (the bus itself has no view of the register file).
	FatalContext func() (pc, sp uint16)
}

// New creates a bus with no cartridge loaded, equivalent to powering on the
// console with the slot empty.
func New() *Bus {
	b := &Bus{
		irq:    interrupt.New(),
		PPU:    video.NewPPU(),
		APU:    audio.New(),
		dma:    NewDMA(),
		joypad: NewJoypad(),
	}
	b.cart = NewCartridge()
	b.mbc = NewNoMBC(b.cart.RawData(), 0)
	b.serial = serial.NewLogSink(func() { b.irq.Request(interrupt.Serial) })
	b.timer.TimerInterruptHandler = func() { b.irq.Request(interrupt.Timer) }
	b.PPU.ReadOAM = b.dma.ReadOAM
	b.PPU.RequestInterrupt = b.irq.Request
	b.dma.Read = b.read
	initRegionMap(b)
	return b
}

// NewWithCartridge creates a bus with the given cartridge inserted, picking
// the MBC from the parsed header. now overrides the RTC clock source for
// MBC3 carts (nil means time.Now).
func NewWithCartridge(cart *Cartridge, now func() time.Time) *Bus {
	b := New()
	b.cart = cart

	switch cart.MBCType {
	case NoMBCType:
		b.mbc = NewNoMBC(cart.RawData(), cart.RAMBankCount*0x2000)
	case MBC1Type:
		b.mbc = NewMBC1(cart.RawData(), cart.HasBattery, uint8(cart.RAMBankCount))
	case MBC3Type:
		b.mbc = NewMBC3(cart.RawData(), uint8(cart.RAMBankCount), cart.HasRTC, now)
	}

	return b
}

func initRegionMap(b *Bus) {
	// ROM: 0x0000-0x7FFF
	for i := 0x00; i <= 0x7F; i++ {
		b.regionMap[i] = regionROM
	}
	// VRAM: 0x8000-0x9FFF
	for i := 0x80; i <= 0x9F; i++ {
		b.regionMap[i] = regionVRAM
	}
	// External RAM: 0xA000-0xBFFF
	for i := 0xA0; i <= 0xBF; i++ {
		b.regionMap[i] = regionExtRAM
	}
	// Work RAM: 0xC000-0xDFFF
	for i := 0xC0; i <= 0xDF; i++ {
		b.regionMap[i] = regionWRAM
	}
	// Echo RAM: 0xE000-0xFDFF
	for i := 0xE0; i <= 0xFD; i++ {
		b.regionMap[i] = regionEcho
	}
	// OAM + unusable area: 0xFE00-0xFEFF
	b.regionMap[0xFE] = regionOAM
	// IO + HRAM + IE: 0xFF00-0xFFFF
	b.regionMap[0xFF] = regionIO
}

// Interrupts exposes the interrupt controller shared with the CPU.
func (b *Bus) Interrupts() *interrupt.Controller { return b.irq }

// Cartridge returns the inserted cartridge.
func (b *Bus) Cartridge() *Cartridge { return b.cart }

// MBC returns the active memory bank controller.
func (b *Bus) MBC() MBC { return b.mbc }

// Joypad returns the key matrix register.
func (b *Bus) Joypad() *Joypad { return b.joypad }

// SetSerial swaps the serial device; used by frontends that want to capture
// test-ROM output instead of logging it.
func (b *Bus) SetSerial(port SerialPort) { b.serial = port }

// Cycles returns the total cycles charged to the bus since power-on.
func (b *Bus) Cycles() uint64 { return b.cycles }

// SetTimerSeed initializes the internal timer divider, matching the value
// hardware reaches by the time the boot ROM hands over control.
func (b *Bus) SetTimerSeed(seed uint16) {
	b.timer.SetSeed(seed)
}

// Tick charges cycles to the bus and advances every peripheral. This is the
// only way peripheral state moves forward; the CPU calls it directly for
// internal cycles and implicitly through Read/Write.
func (b *Bus) Tick(cycles int) {
	for cycles > 0 {
		step := 2
		if cycles < 2 {
			step = cycles
		}
		b.cycles += uint64(step)
		cycles -= step

		b.PPU.Tick(step)
		b.APU.Tick(step)
		b.timer.Tick(step)
		if b.dmaPhase {
			b.dma.Tick()
		}
		b.dmaPhase = !b.dmaPhase
		b.serial.Tick(step)
	}
}

// Read performs a CPU read: charges 4 cycles, then dispatches by region.
func (b *Bus) Read(address uint16) byte {
	b.Tick(4)
	return b.read(address)
}

// Write performs a CPU write: charges 4 cycles, then dispatches by region.
func (b *Bus) Write(address uint16, value byte) {
	b.Tick(4)
	b.write(address, value)
}

// read dispatches without charging cycles. The DMA engine reads through
// this path: its transfer is already paced by its own per-cycle stepping.
func (b *Bus) read(address uint16) byte {
	switch b.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		return b.mbc.Read(address)
	case regionVRAM:
		return b.PPU.Read(address)
	case regionWRAM:
		return b.wram[address-0xC000]
	case regionEcho:
		b.fatal(gberr.UnmappedAddress, address)
		return 0xFF
	case regionOAM:
		if address > addr.OAMEnd {
			// unusable area 0xFEA0-0xFEFF
			return 0xFF
		}
		if b.dma.Running() {
			return 0xFF
		}
		return b.dma.ReadOAM(int(address - addr.OAMStart))
	default:
		return b.readIO(address)
	}
}

func (b *Bus) write(address uint16, value byte) {
	switch b.regionMap[address>>8] {
	case regionROM, regionExtRAM:
		b.mbc.Write(address, value)
	case regionVRAM:
		b.PPU.Write(address, value)
	case regionWRAM:
		b.wram[address-0xC000] = value
	case regionEcho:
		b.fatal(gberr.UnmappedAddress, address)
	case regionOAM:
		if address > addr.OAMEnd || b.dma.Running() {
			return
		}
		b.dma.WriteOAM(int(address-addr.OAMStart), value)
	default:
		b.writeIO(address, value)
	}
}

func (b *Bus) readIO(address uint16) byte {
	switch {
	case address == addr.P1:
		return b.joypad.Read()
	case address == addr.SB || address == addr.SC:
		return b.serial.Read(address)
	case address >= addr.DIV && address <= addr.TAC:
		return b.timer.Read(address)
	case address == addr.IF:
		return b.irq.ReadIF()
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		return b.APU.ReadRegister(address)
	case address == addr.DMA:
		return b.dmaReg
	case address >= addr.LCDC && address <= addr.WX:
		return b.PPU.Read(address)
	case address >= 0xFF80 && address <= 0xFFFE:
		return b.hram[address-0xFF80]
	case address == addr.IE:
		return b.irq.ReadIE()
	default:
		return b.io[address-0xFF00]
	}
}

func (b *Bus) writeIO(address uint16, value byte) {
	switch {
	case address == addr.P1:
		b.joypad.Write(value)
	case address == addr.SB || address == addr.SC:
		b.serial.Write(address, value)
	case address >= addr.DIV && address <= addr.TAC:
		b.timer.Write(address, value)
	case address == addr.IF:
		b.irq.WriteIF(value)
	case address >= addr.AudioStart && address <= addr.AudioEnd:
		b.APU.WriteRegister(address, value)
	case address == addr.DMA:
		if value >= 0xE0 {
			b.fatal(gberr.DMAOutOfRange, uint16(value)<<8)
			return
		}
		b.dmaReg = value
		b.dma.Start(value)
	case address >= addr.LCDC && address <= addr.WX:
		b.PPU.Write(address, value)
	case address >= 0xFF80 && address <= 0xFFFE:
		b.hram[address-0xFF80] = value
	case address == addr.IE:
		b.irq.WriteIE(value)
	default:
		b.io[address-0xFF00] = value
	}
}

func (b *Bus) fatal(kind error, address uint16) {
	var pc, sp uint16
	if b.FatalContext != nil {
		pc, sp = b.FatalContext()
	}
	gberr.Fatal(nil, kind, pc, sp, b.cycles, address)
}
