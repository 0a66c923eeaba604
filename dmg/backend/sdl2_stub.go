//go:build !sdl2

package backend

import (
	"fmt"

	dmg "github.com/valerio/go-dmg/dmg"
)

// SDL2 is unavailable without the sdl2 build tag.
type SDL2 struct {
	Config Config
}

// NewSDL2 always fails in this build; rebuild with -tags sdl2.
func NewSDL2(config Config) (*SDL2, error) {
	return nil, fmt.Errorf("SDL2 backend not compiled in, rebuild with -tags sdl2")
}

func (s *SDL2) Run(emu *dmg.Emulator) error {
	return fmt.Errorf("SDL2 backend not compiled in, rebuild with -tags sdl2")
}
