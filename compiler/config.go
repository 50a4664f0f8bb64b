package compiler

import (
	"context"

	"github.com/wippyai/wasm-compiler/target"
)

// Config is the configuration of one compiler backend.
//
// A Config is mutable and not safe for concurrent use. Compiler snapshots
// the current state into an independent value, so mutating the Config
// afterwards never affects compilers already handed out.
type Config interface {
	// Features returns the enabled WebAssembly features.
	Features() target.Features
	// MutFeatures returns the feature set for in-place mutation.
	MutFeatures() *target.Features
	// Target returns the compilation target.
	Target() target.Target
	// SetTarget replaces the compilation target.
	SetTarget(target.Target)
	// Compiler returns a new compiler for the current configuration.
	Compiler() Compiler
}

// Compiler compiles modules for a fixed target and feature set.
// Implementations are safe for concurrent use.
type Compiler interface {
	Name() string
	Target() target.Target
	Features() target.Features
	Compile(ctx context.Context, m *Module) (*Artifact, error)
}
