package codegen

import (
	"bytes"

	"github.com/toyc-lang/toycc/pkg/config"
	"github.com/toyc-lang/toycc/pkg/ir"
)

// Backend is the interface every code generation target implements.
type Backend interface {
	// Generate takes an IR program and a configuration and produces the
	// target's assembly text as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}

// SelectBackend returns the Backend named by cfg.Backend.
func SelectBackend(b config.Backend) Backend {
	switch b {
	case config.BackendQBE:
		return NewQBEBackend()
	default:
		return NewRiscvBackend()
	}
}
