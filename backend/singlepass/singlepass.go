// Package singlepass is the fast backend: function bodies are lowered by
// wazero's interpreter in one pass and trampolines carry no call-site
// annotations.
package singlepass

import (
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Name is the backend name.
const Name = "singlepass"

// Config configures the single-pass backend.
type Config struct {
	compiler.BaseConfig
}

// New returns a configuration for t. Optimization is off.
func New(t target.Target) *Config {
	c := &Config{BaseConfig: compiler.NewBaseConfig(t)}
	c.MutSettings().OptLevel = machine.OptNone
	return c
}

// Compiler returns a compiler for the current configuration.
func (c *Config) Compiler() compiler.Compiler {
	return &Compiler{compiler.NewPipeline(Name, c.Target(), c.Features(), c.Settings(), nil, backend{})}
}

// Compiler is the single-pass compiler.
type Compiler struct {
	*compiler.Pipeline
}

type backend struct{}

func (backend) RuntimeConfig() wazero.RuntimeConfig {
	return wazero.NewRuntimeConfigInterpreter()
}

func (backend) LoweredParams(_ wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Param {
	return abi.LoweredParams(sig, shape.Return)
}

func (backend) Attributes(wasm.SigIndex, wasm.FuncType, trampoline.Shape) []abi.Attribute {
	return nil
}
