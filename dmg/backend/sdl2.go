//go:build sdl2

package backend

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/veandco/go-sdl2/sdl"

	dmg "github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/audio"
	"github.com/valerio/go-dmg/dmg/timing"
)

// SDL2 renders the screen into a scaled window and synthesises audio from
// the APU's per-frame channel snapshots. The synthesiser here is the
// "external mixer" the core defers to: it reconstructs square/wave/noise
// output from the published channel views.
type SDL2 struct {
	Config Config

	window   *sdl.Window
	renderer *sdl.Renderer
	texture  *sdl.Texture
	audioDev sdl.AudioDeviceID
	limiter  timing.Limiter

	pixels []uint32
	synth  synth
}

// DMG greyscale palette, shade 0 (lightest) first, packed as ABGR.
var sdlPalette = [4]uint32{0xFFD0F8E0, 0xFF70C088, 0xFF566834, 0xFF201808}

// NewSDL2 creates a window backend at the configured scale.
func NewSDL2(config Config) (*SDL2, error) {
	if config.Scale <= 0 {
		config.Scale = 3
	}
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_AUDIO); err != nil {
		return nil, fmt.Errorf("initializing SDL: %w", err)
	}

	window, err := sdl.CreateWindow(config.Title,
		sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(dmg.ScreenWidth*config.Scale), int32(dmg.ScreenHeight*config.Scale),
		sdl.WINDOW_SHOWN)
	if err != nil {
		return nil, fmt.Errorf("creating window: %w", err)
	}

	renderer, err := sdl.CreateRenderer(window, -1, sdl.RENDERER_ACCELERATED|sdl.RENDERER_PRESENTVSYNC)
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	texture, err := renderer.CreateTexture(sdl.PIXELFORMAT_ABGR8888,
		sdl.TEXTUREACCESS_STREAMING, int32(dmg.ScreenWidth), int32(dmg.ScreenHeight))
	if err != nil {
		return nil, fmt.Errorf("creating texture: %w", err)
	}

	spec := sdl.AudioSpec{
		Freq:     sampleRate,
		Format:   sdl.AUDIO_S16SYS,
		Channels: 2,
		Samples:  1024,
	}
	audioDev, err := sdl.OpenAudioDevice("", false, &spec, nil, 0)
	if err != nil {
		slog.Warn("audio device unavailable, continuing silent", "error", err)
	} else {
		sdl.PauseAudioDevice(audioDev, false)
	}

	return &SDL2{
		Config:   config,
		window:   window,
		renderer: renderer,
		texture:  texture,
		audioDev: audioDev,
		limiter:  timing.NewAdaptiveLimiter(),
		pixels:   make([]uint32, dmg.ScreenWidth*dmg.ScreenHeight),
	}, nil
}

var sdlKeymap = map[sdl.Keycode]dmg.Key{
	sdl.K_UP:        dmg.KeyUp,
	sdl.K_DOWN:      dmg.KeyDown,
	sdl.K_LEFT:      dmg.KeyLeft,
	sdl.K_RIGHT:     dmg.KeyRight,
	sdl.K_z:         dmg.KeyA,
	sdl.K_x:         dmg.KeyB,
	sdl.K_RETURN:    dmg.KeyStart,
	sdl.K_BACKSPACE: dmg.KeySelect,
}

func (s *SDL2) Run(emu *dmg.Emulator) error {
	defer s.cleanup()

	for {
		if err := emu.RunUntilFrame(); err != nil {
			return err
		}
		emu.FrameReady()

		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch ev := event.(type) {
			case *sdl.QuitEvent:
				return nil
			case *sdl.KeyboardEvent:
				if ev.Keysym.Sym == sdl.K_ESCAPE {
					return nil
				}
				key, ok := sdlKeymap[ev.Keysym.Sym]
				if !ok {
					break
				}
				if ev.Type == sdl.KEYDOWN {
					emu.KeyDown(key)
					emu.RaiseJoypadInterrupt()
				} else if ev.Type == sdl.KEYUP {
					emu.KeyUp(key)
				}
			}
		}

		s.renderFrame(emu.Screen())
		if s.audioDev != 0 {
			s.queueAudio(emu.AudioSnapshot())
		}

		if s.Config.MaxFrames > 0 && emu.FrameCount() >= s.Config.MaxFrames {
			return nil
		}
		s.limiter.WaitForNextFrame()
	}
}

func (s *SDL2) renderFrame(frame []byte) {
	for i, shade := range frame {
		s.pixels[i] = sdlPalette[shade&0x03]
	}
	s.texture.Update(nil, unsafe.Pointer(&s.pixels[0]), dmg.ScreenWidth*4)
	s.renderer.Clear()
	s.renderer.Copy(s.texture, nil, nil)
	s.renderer.Present()
}

func (s *SDL2) queueAudio(snapshot audio.Snapshot) {
	samples := s.synth.renderFrame(snapshot)
	if len(samples) == 0 {
		return
	}
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&samples[0])), len(samples)*2)
	if err := sdl.QueueAudio(s.audioDev, buf); err != nil {
		slog.Debug("audio queue failed", "error", err)
	}
}

func (s *SDL2) cleanup() {
	if s.audioDev != 0 {
		sdl.CloseAudioDevice(s.audioDev)
	}
	s.texture.Destroy()
	s.renderer.Destroy()
	s.window.Destroy()
	sdl.Quit()
}
