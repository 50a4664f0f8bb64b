package compiler

import (
	"bytes"
	"context"

	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

// FunctionInfo describes one entry of the module's function index space.
type FunctionInfo struct {
	// Export is the first export name, empty if unexported.
	Export string
	// ImportModule and ImportName are set for imported functions.
	ImportModule string
	ImportName   string
	Type         wasm.FuncType
	Index        uint32
	Sig          wasm.SigIndex
	Locals       int
	CodeSize     int
	Imported     bool
}

// Artifact is the result of a compilation. It is immutable and safe for
// concurrent use; Close releases the lowered code.
type Artifact struct {
	target      target.Target
	machine     *machine.Machine
	sigs        *wasm.SignatureTable
	trampolines *trampoline.Table
	cache       wazero.CompilationCache
	runtimeCfg  wazero.RuntimeConfig
	backend     string
	name        string
	binary      []byte
	functions   []FunctionInfo
	exports     map[string]uint32
	settings    Settings
	features    target.Features
}

// Backend returns the name of the compiler that produced the artifact.
func (a *Artifact) Backend() string { return a.backend }

// Name returns the module name.
func (a *Artifact) Name() string { return a.name }

// Target returns the compilation target.
func (a *Artifact) Target() target.Target { return a.target }

// Features returns the WebAssembly features the module was compiled with.
func (a *Artifact) Features() target.Features { return a.features }

// Settings returns the compilation settings.
func (a *Artifact) Settings() Settings { return a.settings }

// Machine returns the target machine used for trampolines.
func (a *Artifact) Machine() *machine.Machine { return a.machine }

// Signatures returns a copy of the signature table.
func (a *Artifact) Signatures() *wasm.SignatureTable { return a.sigs.Clone() }

// Trampolines returns the trampoline table.
func (a *Artifact) Trampolines() *trampoline.Table { return a.trampolines }

// Binary returns a copy of the module binary.
func (a *Artifact) Binary() []byte { return bytes.Clone(a.binary) }

// Functions returns the function index space, imports first.
func (a *Artifact) Functions() []FunctionInfo {
	return append([]FunctionInfo(nil), a.functions...)
}

// Export returns the exported function named name.
func (a *Artifact) Export(name string) (FunctionInfo, bool) {
	idx, ok := a.exports[name]
	if !ok {
		return FunctionInfo{}, false
	}
	return a.functions[idx], true
}

// Trampoline returns the trampoline for the function at funcIdx.
func (a *Artifact) Trampoline(funcIdx uint32) (*trampoline.Trampoline, bool) {
	if int(funcIdx) >= len(a.functions) {
		return nil, false
	}
	return a.trampolines.Lookup(a.functions[funcIdx].Sig)
}

// TrampolineFor returns the trampoline for a signature, which must be one
// of the module's types or a declared extra.
func (a *Artifact) TrampolineFor(ft wasm.FuncType) (*trampoline.Trampoline, bool) {
	idx, ok := a.sigs.Lookup(ft)
	if !ok {
		return nil, false
	}
	return a.trampolines.Lookup(idx)
}

// RuntimeConfig returns a wazero configuration that reuses the lowered
// code of this artifact.
func (a *Artifact) RuntimeConfig() wazero.RuntimeConfig { return a.runtimeCfg }

// Close releases the lowered code.
func (a *Artifact) Close(ctx context.Context) error {
	return a.cache.Close(ctx)
}
