// Package gberr defines the typed, fatal error conditions the core can
// reach and the logging/panic machinery used to surface them.
package gberr

import (
	"errors"
	"fmt"
	"log/slog"
)

// Sentinel kinds. Load-time errors (UnrecognizedMBC, InvalidROMSize) are
// returned as plain errors from Load. The remainder are programmer-fatal:
// they are passed to Fatal, which logs and panics with a *FatalError.
var (
	UnrecognizedMBC        = errors.New("unrecognized cartridge MBC type")
	InvalidROMSize         = errors.New("invalid cartridge ROM size")
	ForbiddenPCRange       = errors.New("PC entered a forbidden address range")
	UnmappedAddress        = errors.New("access to unmapped address")
	DMAOutOfRange          = errors.New("DMA source address out of range")
	RAMAccessWhileDisabled = errors.New("cartridge RAM access while disabled")
)

// FatalError wraps one of the sentinel kinds above with the machine state
// at the point of failure, so a caller that recovers it can print a useful
// diagnostic.
type FatalError struct {
	Kind    error
	PC      uint16
	SP      uint16
	Cycle   uint64
	Address uint16
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%v (pc=0x%04X sp=0x%04X cycle=%d address=0x%04X)",
		e.Kind, e.PC, e.SP, e.Cycle, e.Address)
}

func (e *FatalError) Unwrap() error { return e.Kind }

// Fatal logs a programmer-fatal condition and panics with a *FatalError.
// Callers at a recovery boundary (the facade's StepInstruction) convert the
// panic back into a plain error.
func Fatal(logger *slog.Logger, kind error, pc, sp uint16, cycle uint64, address uint16) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("fatal emulator condition",
		"kind", kind,
		"pc", fmt.Sprintf("0x%04X", pc),
		"sp", fmt.Sprintf("0x%04X", sp),
		"cycle", cycle,
		"address", fmt.Sprintf("0x%04X", address),
	)
	panic(&FatalError{Kind: kind, PC: pc, SP: sp, Cycle: cycle, Address: address})
}

// Recover converts a panic raised via Fatal into a plain error, leaving any
// other panic value to propagate. Intended to be deferred at the single
// recovery boundary in the facade.
func Recover(errp *error) {
	if r := recover(); r != nil {
		if fe, ok := r.(*FatalError); ok {
			*errp = fe
			return
		}
		panic(r)
	}
}
