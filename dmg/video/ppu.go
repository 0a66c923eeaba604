package video

import (
	"github.com/valerio/go-dmg/dmg/addr"
	"github.com/valerio/go-dmg/dmg/bit"
	"github.com/valerio/go-dmg/dmg/interrupt"
)

// Mode is the PPU's current rendering stage, matching STAT bits 1-0.
type Mode uint8

const (
	HBlank Mode = iota
	VBlankMode
	SearchingOAM
	LCDTransfer
)

const (
	oamCycles      = 84
	transferCycles = 172
	scanlineCycles = oamCycles + transferCycles + 200 // 456
	visibleLines   = 144
	totalLines     = 154
)

type statFlag uint8

const (
	statLycIrq    statFlag = 6
	statOamIrq    statFlag = 5
	statVblankIrq statFlag = 4
	statHblankIrq statFlag = 3
	statLycMatch  statFlag = 2
)

type lcdcFlag uint8

const (
	lcdDisplayEnable       lcdcFlag = 7
	windowTileMapSelect    lcdcFlag = 6
	windowDisplayEnable    lcdcFlag = 5
	bgWindowTileDataSelect lcdcFlag = 4
	bgTileMapDisplaySelect lcdcFlag = 3
	spriteSize             lcdcFlag = 2
	spriteDisplayEnable    lcdcFlag = 1
	bgDisplay              lcdcFlag = 0
)

// PPU implements the DMG picture-processing unit: the mode state machine,
// STAT/LYC edge-triggered interrupts and the scanline renderer. It owns
// VRAM directly; OAM belongs to the DMA engine and is reached through the
// ReadOAM callback, so mid-transfer OAM contents stay visible to sprite
// search the way they are on real hardware. Newly raised interrupts go out
// through RequestInterrupt rather than back into the bus.
type PPU struct {
	vram [0x2000]byte

	ReadOAM          func(offset int) byte
	RequestInterrupt func(interrupt.Source)

	framebuffer [FramebufferSize]byte
	bgScratch   [FramebufferWidth]byte
	priority    SpritePriorityBuffer

	mode             Mode
	line             int
	lineCycle        int
	windowLine       int
	frameReady       bool
	lycLatch         bool
	scanlineRendered bool

	lcdc, stat, scy, scx, ly, lyc, wy, wx byte
	bgp, obp0, obp1                       byte
}

// NewPPU returns a PPU in the post-boot-ROM state: LCD on, mid-VBlank at
// line 144.
func NewPPU() *PPU {
	return &PPU{
		mode: VBlankMode,
		line: 144,
		ly:   144,
		lcdc: 0x91,
		bgp:  0xFC,
	}
}

func (p *PPU) statBit(f statFlag) bool { return bit.IsSet(uint8(f), p.stat) }
func (p *PPU) lcdcBit(f lcdcFlag) bool { return bit.IsSet(uint8(f), p.lcdc) }

func (p *PPU) requestIRQ(s interrupt.Source) {
	if p.RequestInterrupt != nil {
		p.RequestInterrupt(s)
	}
}

// Mode returns the current PPU mode (VRAM reads are gated on it inside Read).
func (p *PPU) Mode() Mode { return p.mode }

// FrameReady reports and clears the once-per-frame pulse.
func (p *PPU) FrameReady() bool {
	r := p.frameReady
	p.frameReady = false
	return r
}

// Screen returns the raw 160x144 2-bit shade buffer, row-major top-left origin.
func (p *PPU) Screen() []byte { return p.framebuffer[:] }

func (p *PPU) Read(address uint16) byte {
	switch {
	case address >= 0x8000 && address <= 0x9FFF:
		if p.mode == LCDTransfer {
			return 0xFF
		}
		return p.vram[address-0x8000]
	case address == addr.LCDC:
		return p.lcdc
	case address == addr.STAT:
		return 0x80 | p.stat
	case address == addr.SCY:
		return p.scy
	case address == addr.SCX:
		return p.scx
	case address == addr.LY:
		return p.ly
	case address == addr.LYC:
		return p.lyc
	case address == addr.BGP:
		return p.bgp
	case address == addr.OBP0:
		return p.obp0
	case address == addr.OBP1:
		return p.obp1
	case address == addr.WY:
		return p.wy
	case address == addr.WX:
		return p.wx
	default:
		return 0xFF
	}
}

func (p *PPU) Write(address uint16, value byte) {
	switch {
	case address >= 0x8000 && address <= 0x9FFF:
		// Writes during LCDTransfer are accepted rather than dropped.
		p.vram[address-0x8000] = value
	case address == addr.LCDC:
		wasOn := p.lcdcBit(lcdDisplayEnable)
		p.lcdc = value
		if wasOn && !bit.IsSet(uint8(lcdDisplayEnable), value) {
			p.disable()
		}
	case address == addr.STAT:
		// Mode bits (1-0) and coincidence bit (2) are read-only.
		p.stat = (p.stat & 0x07) | (value & 0x78)
	case address == addr.SCY:
		p.scy = value
	case address == addr.SCX:
		p.scx = value
	case address == addr.LY:
		// read-only
	case address == addr.LYC:
		p.lyc = value
		p.checkLYC()
	case address == addr.BGP:
		p.bgp = value
	case address == addr.OBP0:
		p.obp0 = value
	case address == addr.OBP1:
		p.obp1 = value
	case address == addr.WY:
		p.wy = value
	case address == addr.WX:
		p.wx = value
	}
}

// disable resets the PPU to the LCD-off state: Mode HBlank, LY 0, no
// interrupts fire again until LCDC is re-enabled.
func (p *PPU) disable() {
	p.mode = HBlank
	p.stat = p.stat & 0xFC
	p.line = 0
	p.ly = 0
	p.lineCycle = 0
	p.windowLine = 0
	p.lycLatch = false
}

// Tick advances the PPU by the given number of cycles.
func (p *PPU) Tick(cycles int) {
	if !p.lcdcBit(lcdDisplayEnable) {
		return
	}

	p.lineCycle += cycles
	for p.lineCycle >= scanlineCycles {
		p.lineCycle -= scanlineCycles
		p.advanceLine()
	}
	p.updateModeForLineCycle()
}

func (p *PPU) advanceLine() {
	p.line++
	if p.line >= totalLines {
		p.line = 0
	}
	p.ly = byte(p.line)
	p.scanlineRendered = false
	p.checkLYC()

	switch {
	case p.line == visibleLines:
		p.frameReady = true
		p.windowLine = 0
		p.setMode(VBlankMode)
		p.requestIRQ(interrupt.VBlank)
		if p.statBit(statVblankIrq) {
			p.requestIRQ(interrupt.Stat)
		}
	case p.line < visibleLines:
		p.setMode(SearchingOAM)
		if p.statBit(statOamIrq) {
			p.requestIRQ(interrupt.Stat)
		}
	}
}

func (p *PPU) updateModeForLineCycle() {
	if p.line >= visibleLines {
		return
	}

	switch {
	case p.lineCycle < oamCycles:
		if p.mode != SearchingOAM {
			p.setMode(SearchingOAM)
		}
	case p.lineCycle < oamCycles+transferCycles:
		if p.mode != LCDTransfer {
			p.setMode(LCDTransfer)
			if !p.scanlineRendered {
				p.renderScanline()
				p.scanlineRendered = true
			}
		}
	default:
		if p.mode != HBlank {
			p.setMode(HBlank)
			if p.statBit(statHblankIrq) {
				p.requestIRQ(interrupt.Stat)
			}
		}
	}
}

func (p *PPU) setMode(m Mode) {
	p.mode = m
	p.stat = p.stat&0xFC | byte(m)
}

func (p *PPU) checkLYC() {
	match := p.ly == p.lyc
	if match {
		p.stat = bit.Set(uint8(statLycMatch), p.stat)
		if !p.lycLatch && p.statBit(statLycIrq) {
			p.requestIRQ(interrupt.Stat)
		}
	} else {
		p.stat = bit.Reset(uint8(statLycMatch), p.stat)
	}
	p.lycLatch = match
}

func (p *PPU) renderScanline() {
	p.drawBackground()
	p.drawWindow()
	p.drawSprites()
}

func (p *PPU) drawBackground() {
	lineWidth := p.line * FramebufferWidth

	if !p.lcdcBit(bgDisplay) {
		for i := 0; i < FramebufferWidth; i++ {
			p.framebuffer[lineWidth+i] = 0
			p.bgScratch[i] = 0
		}
		return
	}

	useSignedTileSet := !p.lcdcBit(bgWindowTileDataSelect)
	useTileMapZero := !p.lcdcBit(bgTileMapDisplaySelect)

	tilesAddr := addr.TileData0
	if useSignedTileSet {
		tilesAddr = addr.TileData2
	}
	tileMapAddr := addr.TileMap1
	if useTileMapZero {
		tileMapAddr = addr.TileMap0
	}

	lineScrolled := (p.line + int(p.scy)) & 0xFF
	lineScrolled32 := (lineScrolled / 8) * 32
	tilePixelY2 := (lineScrolled % 8) * 2

	for x := 0; x < FramebufferWidth; x++ {
		mapPixelX := (x + int(p.scx)) & 0xFF
		mapTileX := mapPixelX / 8
		mapTileXOffset := mapPixelX % 8
		mapTileValue := p.vram[tileMapAddr+uint16(lineScrolled32+mapTileX)-0x8000]

		tileAddr := p.tileAddress(tilesAddr, useSignedTileSet, mapTileValue, tilePixelY2)
		low := p.vram[tileAddr-0x8000]
		high := p.vram[tileAddr+1-0x8000]

		pixelIndex := uint8(7 - mapTileXOffset)
		pixel := colorIndex(pixelIndex, low, high)

		p.framebuffer[lineWidth+x] = (p.bgp >> (pixel * 2)) & 0x03
		p.bgScratch[x] = pixel
	}
}

func (p *PPU) drawWindow() {
	// the window needs both its own enable and the BG/window master enable;
	// with bit 0 clear the whole line stays blank, window included.
	if p.windowLine > 143 || !p.lcdcBit(windowDisplayEnable) || !p.lcdcBit(bgDisplay) {
		return
	}

	wx := int(p.wx) - 7
	wy := p.wy

	if wx > 159 || int(wy) > p.line {
		return
	}

	useSignedTileSet := !p.lcdcBit(bgWindowTileDataSelect)
	useTileMapZero := !p.lcdcBit(windowTileMapSelect)

	tilesAddr := addr.TileData0
	if useSignedTileSet {
		tilesAddr = addr.TileData2
	}
	tileMapAddr := addr.TileMap1
	if useTileMapZero {
		tileMapAddr = addr.TileMap0
	}

	y32 := (p.windowLine / 8) * 32
	pixelY2 := (p.windowLine % 8) * 2
	lineWidth := p.line * FramebufferWidth

	for tileX := 0; tileX < 32; tileX++ {
		tileValue := p.vram[tileMapAddr+uint16(y32+tileX)-0x8000]
		tileAddr := p.tileAddress(tilesAddr, useSignedTileSet, tileValue, pixelY2)
		low := p.vram[tileAddr-0x8000]
		high := p.vram[tileAddr+1-0x8000]

		for px := 0; px < 8; px++ {
			bufferX := tileX*8 + px + wx
			if bufferX < wx || bufferX >= FramebufferWidth || bufferX < 0 {
				continue
			}
			pixel := colorIndex(uint8(7-px), low, high)
			position := lineWidth + bufferX
			p.framebuffer[position] = (p.bgp >> (pixel * 2)) & 0x03
			p.bgScratch[bufferX] = pixel
		}
	}
	p.windowLine++
}

func (p *PPU) tileAddress(base uint16, signed bool, tileValue byte, pixelY2 int) uint16 {
	if signed {
		return uint16(int(base) + int(int8(tileValue))*16 + pixelY2)
	}
	return base + uint16(int(tileValue)*16) + uint16(pixelY2)
}

func colorIndex(bitIndex uint8, low, high byte) byte {
	pixel := byte(0)
	if bit.IsSet(bitIndex, low) {
		pixel |= 1
	}
	if bit.IsSet(bitIndex, high) {
		pixel |= 2
	}
	return pixel
}

func (p *PPU) oamByte(spriteIndex, offset int) byte {
	if p.ReadOAM == nil {
		return 0xFF
	}
	return p.ReadOAM(spriteIndex*4 + offset)
}

func (p *PPU) drawSprites() {
	if !p.lcdcBit(spriteDisplayEnable) {
		return
	}

	spriteHeight := 8
	if p.lcdcBit(spriteSize) {
		spriteHeight = 16
	}

	lineWidth := p.line * FramebufferWidth
	var sprites []int

	for sprite := 0; sprite < 40; sprite++ {
		spriteY := int(p.oamByte(sprite, 0)) - 16
		if spriteY > p.line || (spriteY+spriteHeight) <= p.line {
			continue
		}
		sprites = append(sprites, sprite)
		if len(sprites) >= 10 {
			break
		}
	}

	p.priority.Clear()
	for _, sprite := range sprites {
		spriteX := int(p.oamByte(sprite, 1)) - 8
		for off := 0; off < 8; off++ {
			p.priority.TryClaimPixel(spriteX+off, sprite, spriteX)
		}
	}

	for _, sprite := range sprites {
		spriteY := int(p.oamByte(sprite, 0)) - 16
		spriteX := int(p.oamByte(sprite, 1)) - 8
		spriteTile := p.oamByte(sprite, 2)
		spriteFlags := p.oamByte(sprite, 3)

		hasPixels := false
		for x := 0; x < 8; x++ {
			if p.priority.GetOwner(spriteX+x) == sprite {
				hasPixels = true
				break
			}
		}
		if !hasPixels {
			continue
		}

		spriteMask := 0xFF
		if spriteHeight == 16 {
			spriteMask = 0xFE
		}
		spriteTile16 := (int(spriteTile) & spriteMask) * 16

		objPalette := p.obp0
		if bit.IsSet(4, spriteFlags) {
			objPalette = p.obp1
		}
		flipX := bit.IsSet(5, spriteFlags)
		flipY := bit.IsSet(6, spriteFlags)
		aboveBG := !bit.IsSet(7, spriteFlags)

		pixelY := p.line - spriteY
		if flipY {
			pixelY = spriteHeight - 1 - pixelY
		}

		var pixelY2, offset int
		if spriteHeight == 16 && pixelY >= 8 {
			pixelY2 = (pixelY - 8) * 2
			offset = 16
		} else {
			pixelY2 = pixelY * 2
		}

		tileAddr := addr.TileData0 + uint16(spriteTile16+pixelY2+offset)
		low := p.vram[tileAddr-0x8000]
		high := p.vram[tileAddr+1-0x8000]

		for px := 0; px < 8; px++ {
			bufferX := spriteX + px
			if p.priority.GetOwner(bufferX) != sprite {
				continue
			}

			pixelIdx := 7 - px
			if flipX {
				pixelIdx = px
			}
			pixel := colorIndex(uint8(pixelIdx), low, high)
			if pixel == 0 {
				continue
			}

			position := lineWidth + bufferX
			if position < 0 || position >= len(p.framebuffer) {
				continue
			}
			if !aboveBG && p.bgScratch[bufferX] != 0 {
				continue
			}
			p.framebuffer[position] = (objPalette >> (pixel * 2)) & 0x03
		}
	}
}
