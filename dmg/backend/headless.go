package backend

import (
	"log/slog"

	dmg "github.com/valerio/go-dmg/dmg"
)

// Headless runs the emulator with no display as fast as the host allows.
// Test ROMs report through the serial port, so a run bounded by MaxCycles
// plus a serial tap is enough to drive the acceptance suites.
type Headless struct {
	Config Config

	// PerFrame, when set, is invoked after every completed frame; used by
	// harnesses that want to inspect the screen or audio snapshot.
	PerFrame func(emu *dmg.Emulator) error
}

// NewHeadless creates a headless backend with the given cycle budget.
func NewHeadless(config Config) *Headless {
	return &Headless{Config: config}
}

func (h *Headless) Run(emu *dmg.Emulator) error {
	for {
		if err := emu.StepInstruction(); err != nil {
			return err
		}

		if emu.FrameReady() {
			if h.PerFrame != nil {
				if err := h.PerFrame(emu); err != nil {
					return err
				}
			}
			if h.Config.MaxFrames > 0 && emu.FrameCount() >= h.Config.MaxFrames {
				slog.Debug("frame budget reached", "frames", emu.FrameCount())
				return nil
			}
		}

		if h.Config.MaxCycles > 0 && emu.Cycles() >= h.Config.MaxCycles {
			slog.Debug("cycle budget reached", "cycles", emu.Cycles())
			return nil
		}
	}
}
