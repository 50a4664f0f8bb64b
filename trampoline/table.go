package trampoline

import (
	"bytes"

	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Table maps signature indices to trampolines. It is read-only after
// Generate returns and may be shared freely.
type Table struct {
	entries []*Trampoline
	code    []byte
	symbols []machine.Symbol
	arch    string
}

// Lookup returns the trampoline for idx.
func (t *Table) Lookup(idx wasm.SigIndex) (*Trampoline, bool) {
	if int(idx) >= len(t.entries) {
		return nil, false
	}
	tr := t.entries[idx]
	return tr, tr != nil
}

// Len returns the number of trampolines.
func (t *Table) Len() int {
	return len(t.entries)
}

// All returns the trampolines ordered by signature index.
func (t *Table) All() []*Trampoline {
	return append([]*Trampoline(nil), t.entries...)
}

// Code returns a copy of the encoded trampolines.
func (t *Table) Code() []byte {
	return bytes.Clone(t.code)
}

// Symbols returns the code ranges of all trampolines.
func (t *Table) Symbols() []machine.Symbol {
	return append([]machine.Symbol(nil), t.symbols...)
}

// Arch returns the architecture the trampolines were built for.
func (t *Table) Arch() string {
	return t.arch
}

// Disassemble renders every trampoline.
func (t *Table) Disassemble() (string, error) {
	return machine.Disassemble(t.code, t.symbols)
}
