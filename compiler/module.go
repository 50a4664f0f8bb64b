package compiler

import (
	"bytes"
	"fmt"

	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Module is the input to a compilation: a validated WebAssembly module and
// any extra signatures the embedder needs trampolines for (host functions
// called by reference, WIT-declared exports).
type Module struct {
	name   string
	binary []byte
	wasm   *wasm.Module
	extra  []wasm.FuncType
}

// ParseModule decodes and validates a binary module.
func ParseModule(name string, binary []byte) (*Module, error) {
	m, err := wasm.ParseModuleValidate(binary)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseParse, errors.KindInvalidData, err, fmt.Sprintf("module %q", name))
	}
	return &Module{name: name, binary: bytes.Clone(binary), wasm: m}, nil
}

// NewModule validates m and encodes it.
func NewModule(name string, m *wasm.Module) (*Module, error) {
	if err := m.Validate(); err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidData, err, fmt.Sprintf("module %q", name))
	}
	return &Module{name: name, binary: m.Encode(), wasm: m}, nil
}

// Name returns the module name.
func (m *Module) Name() string { return m.name }

// Binary returns the encoded module. The slice must not be modified.
func (m *Module) Binary() []byte { return m.binary }

// Wasm returns the decoded module. It must not be modified.
func (m *Module) Wasm() *wasm.Module { return m.wasm }

// DeclareSignature requests a trampoline for ft in addition to the
// module's own types.
func (m *Module) DeclareSignature(ft wasm.FuncType) {
	m.extra = append(m.extra, ft.Clone())
}

// Signatures builds the module's signature table: its own types first,
// then the declared extras.
func (m *Module) Signatures() *wasm.SignatureTable {
	sigs := wasm.NewSignatureTable(m.wasm)
	for _, ft := range m.extra {
		sigs.Declare(ft)
	}
	return sigs
}
