package optimizing

import (
	"fmt"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Name is the backend name.
const Name = "optimizing"

// Purpose names what a lowered parameter is for.
type Purpose uint8

const (
	PurposeStructReturn Purpose = iota + 1
	PurposeVMContext
)

func (p Purpose) String() string {
	switch p {
	case PurposeStructReturn:
		return "struct_return"
	case PurposeVMContext:
		return "vmctx"
	}
	return fmt.Sprintf("purpose(%d)", uint8(p))
}

// ArgumentPurpose marks a special parameter of a lowered function.
type ArgumentPurpose struct {
	Purpose Purpose
	Index   int
}

func (a ArgumentPurpose) Location() abi.AttributeLoc { return abi.ParamLoc(a.Index) }

func (a ArgumentPurpose) String() string {
	return fmt.Sprintf("%s(param%d)", a.Purpose, a.Index)
}

// Config configures the optimizing backend.
type Config struct {
	compiler.BaseConfig
}

// New returns a configuration for t at the default optimization level.
func New(t target.Target) *Config {
	return &Config{BaseConfig: compiler.NewBaseConfig(t)}
}

// Compiler returns a compiler for the current configuration.
func (c *Config) Compiler() compiler.Compiler {
	return &Compiler{compiler.NewPipeline(Name, c.Target(), c.Features(), c.Settings(), nil, backend{opt: c.Settings().OptLevel})}
}

// Compiler is the optimizing compiler.
type Compiler struct {
	*compiler.Pipeline
}

type backend struct {
	opt machine.OptLevel
}

// RuntimeConfig picks wazero's optimizing compiler where the host supports
// it, and its interpreter otherwise or when optimization is off.
func (b backend) RuntimeConfig() wazero.RuntimeConfig {
	if b.opt == machine.OptNone {
		return wazero.NewRuntimeConfigInterpreter()
	}
	return wazero.NewRuntimeConfig()
}

func (backend) LoweredParams(_ wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Param {
	return abi.LoweredParams(sig, shape.Return)
}

// Attributes marks the struct-return and context parameters.
func (backend) Attributes(_ wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Attribute {
	var attrs []abi.Attribute
	for i, p := range abi.LoweredParams(sig, shape.Return) {
		switch p.Kind {
		case abi.ParamSRet:
			attrs = append(attrs, ArgumentPurpose{Purpose: PurposeStructReturn, Index: i})
		case abi.ParamVMContext:
			attrs = append(attrs, ArgumentPurpose{Purpose: PurposeVMContext, Index: i})
		}
	}
	return attrs
}
