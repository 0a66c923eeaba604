// Package backend contains the host-platform frontends that drive the
// emulator core: a headless runner for test ROMs, a tcell terminal
// renderer, and an optional SDL2 window (build tag "sdl2"). Backends are
// external collaborators of the core: they own pacing, input capture,
// display and audio output, and persistence of save files.
package backend

import (
	dmg "github.com/valerio/go-dmg/dmg"
)

// Backend drives an emulator against a host platform until the user quits,
// a cycle budget runs out, or the core reports a fatal condition.
type Backend interface {
	Run(emu *dmg.Emulator) error
}

// Config holds the settings shared by all backends.
type Config struct {
	Title     string
	Scale     int    // display scale factor (window backends)
	MaxCycles uint64 // stop after this many cycles; 0 means run forever
	MaxFrames uint64 // stop after this many frames; 0 means run forever
}
