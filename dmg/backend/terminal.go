package backend

import (
	"log/slog"

	"github.com/gdamore/tcell/v2"

	dmg "github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/timing"
)

// Characters for the four shades, darkest pixel value last.
var shadeChars = [4]rune{' ', '░', '▒', '█'}

// terminal cells are taller than wide; doubling the width keeps the aspect
// ratio roughly square
const terminalScaleX = 2

// Terminal renders the screen as tcell cells and maps the keyboard onto the
// joypad matrix. Key releases are synthesised with a short debounce, since
// terminals only deliver key-down events.
type Terminal struct {
	Config Config

	screen  tcell.Screen
	limiter timing.Limiter
	running bool

	// frames remaining until a pressed key is released again
	keyTimers map[dmg.Key]int
}

// NewTerminal creates the tcell backend.
func NewTerminal(config Config) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	return &Terminal{
		Config:    config,
		screen:    screen,
		limiter:   timing.NewAdaptiveLimiter(),
		keyTimers: make(map[dmg.Key]int),
	}, nil
}

var terminalKeymap = map[tcell.Key]dmg.Key{
	tcell.KeyUp:    dmg.KeyUp,
	tcell.KeyDown:  dmg.KeyDown,
	tcell.KeyLeft:  dmg.KeyLeft,
	tcell.KeyRight: dmg.KeyRight,
	tcell.KeyEnter: dmg.KeyStart,
	tcell.KeyTab:   dmg.KeySelect,
}

var terminalRuneKeymap = map[rune]dmg.Key{
	'z': dmg.KeyA,
	'x': dmg.KeyB,
}

// holdFrames is how long a key stays pressed after its key-down event.
const holdFrames = 6

func (t *Terminal) Run(emu *dmg.Emulator) error {
	defer t.screen.Fini()

	t.screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite))
	t.screen.Clear()

	events := make(chan tcell.Event, 16)
	t.running = true
	go func() {
		for t.running {
			events <- t.screen.PollEvent()
		}
	}()

	for t.running {
		if err := emu.RunUntilFrame(); err != nil {
			return err
		}
		emu.FrameReady()

	drain:
		for {
			select {
			case ev := <-events:
				if !t.handleEvent(ev, emu) {
					t.running = false
				}
			default:
				break drain
			}
		}

		t.releaseExpiredKeys(emu)
		t.render(emu.Screen())
		t.screen.Show()

		if t.Config.MaxFrames > 0 && emu.FrameCount() >= t.Config.MaxFrames {
			break
		}
		t.limiter.WaitForNextFrame()
	}

	slog.Info("terminal frontend exiting", "frames", emu.FrameCount())
	return nil
}

func (t *Terminal) handleEvent(ev tcell.Event, emu *dmg.Emulator) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if key, ok := terminalKeymap[ev.Key()]; ok {
			t.press(key, emu)
		} else if key, ok := terminalRuneKeymap[ev.Rune()]; ok {
			t.press(key, emu)
		}
	case *tcell.EventResize:
		t.screen.Sync()
	}
	return true
}

func (t *Terminal) press(key dmg.Key, emu *dmg.Emulator) {
	if t.keyTimers[key] == 0 {
		emu.KeyDown(key)
		emu.RaiseJoypadInterrupt()
	}
	t.keyTimers[key] = holdFrames
}

func (t *Terminal) releaseExpiredKeys(emu *dmg.Emulator) {
	for key, frames := range t.keyTimers {
		if frames == 0 {
			continue
		}
		t.keyTimers[key] = frames - 1
		if t.keyTimers[key] == 0 {
			emu.KeyUp(key)
		}
	}
}

func (t *Terminal) render(frame []byte) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	for y := 0; y < dmg.ScreenHeight; y++ {
		for x := 0; x < dmg.ScreenWidth; x++ {
			shade := frame[y*dmg.ScreenWidth+x] & 0x03
			char := shadeChars[shade]
			for sx := 0; sx < terminalScaleX; sx++ {
				t.screen.SetContent(x*terminalScaleX+sx, y, char, nil, style)
			}
		}
	}
}
