package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli"

	dmg "github.com/valerio/go-dmg/dmg"
	"github.com/valerio/go-dmg/dmg/backend"
)

func main() {
	app := cli.NewApp()
	app.Name = "dmg"
	app.Description = "A cycle-stepped emulator for the original monochrome handheld"
	app.Usage = "dmg [options] <ROM file>"
	app.Version = "1.0.0"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "rom",
			Usage: "Path to the ROM file",
		},
		cli.StringFlag{
			Name:  "backend",
			Usage: "Frontend to use: terminal, sdl2 or headless",
			Value: "terminal",
		},
		cli.Uint64Flag{
			Name:  "max-cycles",
			Usage: "Stop after this many emulated cycles (headless)",
		},
		cli.Uint64Flag{
			Name:  "frames",
			Usage: "Stop after this many frames (0 = run until quit)",
		},
		cli.IntFlag{
			Name:  "scale",
			Usage: "Window scale factor (sdl2)",
			Value: 3,
		},
		cli.BoolFlag{
			Name:  "save",
			Usage: "Load/store battery RAM in a sidecar .sav file",
		},
	}
	app.Action = runEmulator

	if err := app.Run(os.Args); err != nil {
		slog.Error("Error running emulator", "error", err)
		os.Exit(1)
	}
}

func runEmulator(c *cli.Context) error {
	romPath := c.String("rom")
	if romPath == "" {
		if c.NArg() > 0 {
			romPath = c.Args().Get(0)
		} else {
			cli.ShowAppHelp(c)
			return errors.New("no ROM path provided")
		}
	}

	rom, err := os.ReadFile(romPath)
	if err != nil {
		return err
	}

	var opts []dmg.Option
	if c.String("backend") == "headless" {
		// headless runs are for test ROMs; mirror their serial output on stdout
		opts = append(opts, dmg.WithSerialTap(func(b byte) {
			fmt.Print(string(rune(b)))
		}))
	}

	emu, err := dmg.NewWithROM(rom, opts...)
	if err != nil {
		return err
	}

	savePath := romPath + ".sav"
	rtcPath := romPath + ".rtc"
	if c.Bool("save") {
		loadSaveFiles(emu, savePath, rtcPath)
		defer writeSaveFiles(emu, savePath, rtcPath)
	}

	config := backend.Config{
		Title:     "dmg",
		Scale:     c.Int("scale"),
		MaxCycles: c.Uint64("max-cycles"),
		MaxFrames: c.Uint64("frames"),
	}

	var be backend.Backend
	switch name := c.String("backend"); name {
	case "headless":
		be = backend.NewHeadless(config)
	case "terminal":
		be, err = backend.NewTerminal(config)
		if err != nil {
			return err
		}
	case "sdl2":
		be, err = backend.NewSDL2(config)
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown backend %q", name)
	}

	return be.Run(emu)
}

func loadSaveFiles(emu *dmg.Emulator, savePath, rtcPath string) {
	if data, err := os.ReadFile(savePath); err == nil {
		emu.SetPersistentRAM(data)
		slog.Info("loaded save RAM", "path", savePath, "bytes", len(data))
	}
	if data, err := os.ReadFile(rtcPath); err == nil && len(data) == 8 {
		var base [8]byte
		copy(base[:], data)
		emu.SetRTCBase(base)
		slog.Info("loaded RTC base", "path", rtcPath)
	}
}

func writeSaveFiles(emu *dmg.Emulator, savePath, rtcPath string) {
	if ram := emu.PersistentRAM(); len(ram) > 0 {
		if err := os.WriteFile(savePath, ram, 0o644); err != nil {
			slog.Error("writing save RAM", "error", err)
		}
	}
	if base, ok := emu.RTCBase(); ok {
		if err := os.WriteFile(rtcPath, base[:], 0o644); err != nil {
			slog.Error("writing RTC base", "error", err)
		}
	}
}
