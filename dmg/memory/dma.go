package memory

// DMA implements the cycle-paced OAM DMA engine. A write to 0xFF46 starts a
// 160-byte transfer from (value<<8) into OAM, one byte per machine cycle,
// with a one-cycle spin-up before the first byte and a trailing cycle that
// clears the running flag. The engine owns the OAM backing store outright:
// the CPU and PPU both reach OAM through it, which is what makes the
// "CPU reads 0xFF while a transfer runs" gating a local decision.
type DMA struct {
	running bool
	base    uint16
	step    int // 0 = spin-up, 1..160 = copy, 161 = done
	oam     [160]byte

	// Read reads a byte from the bus at the DMA's current source, bypassing
	// OAM gating (the DMA engine is itself the thing that gates OAM access
	// while running).
	Read func(address uint16) byte
}

// NewDMA returns an idle DMA engine. Read must be assigned by the owning
// bus before the first Tick, since transfers source from anywhere in the
// address space.
func NewDMA() *DMA {
	return &DMA{}
}

// Start begins a transfer from source (value<<8). The bus validates the
// source page before calling; values >= 0xE0 never reach here.
func (d *DMA) Start(value uint8) {
	d.base = uint16(value) << 8
	d.running = true
	d.step = 0
}

// Running reports whether a transfer is in progress (OAM is unreachable by
// the CPU while true).
func (d *DMA) Running() bool { return d.running }

// Tick advances the DMA state machine by one machine cycle.
func (d *DMA) Tick() {
	if !d.running {
		return
	}

	switch {
	case d.step == 0:
		// one-cycle spin-up, no copy yet
	case d.step >= 1 && d.step <= 160:
		from := d.base + uint16(d.step-1)
		d.oam[d.step-1] = d.Read(from)
	case d.step == 161:
		d.running = false
	}
	d.step++
}

// ReadOAM reads a byte of the OAM buffer owned by the DMA engine.
func (d *DMA) ReadOAM(offset int) byte { return d.oam[offset] }

// WriteOAM writes a byte of the OAM buffer directly (CPU writes while no
// transfer is running).
func (d *DMA) WriteOAM(offset int, value byte) { d.oam[offset] = value }
