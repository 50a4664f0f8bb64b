// Package wasmtest builds small WebAssembly modules for tests.
package wasmtest

import (
	"encoding/binary"
	"math"

	"github.com/wippyai/wasm-compiler/wasm"
)

// Opcodes used by test bodies.
const (
	OpUnreachable byte = 0x00
	OpDrop        byte = 0x1A
	OpEnd         byte = wasm.OpEnd
	OpI32Add      byte = 0x6A
	OpI32Sub      byte = 0x6B
	OpI32Mul      byte = 0x6C
	OpI64Add      byte = 0x7C
	OpF32Add      byte = 0x92
	OpF64Add      byte = 0xA0
	OpF64Div      byte = 0xA3
)

// LocalGet encodes local.get idx.
func LocalGet(idx uint32) []byte { return append([]byte{0x20}, wasm.AppendLEB128u64(nil, uint64(idx))...) }

// Call encodes call idx.
func Call(idx uint32) []byte { return append([]byte{0x10}, wasm.AppendLEB128u64(nil, uint64(idx))...) }

// I32Const encodes i32.const v.
func I32Const(v int32) []byte { return append([]byte{0x41}, wasm.AppendLEB128s64(nil, int64(v))...) }

// I64Const encodes i64.const v.
func I64Const(v int64) []byte { return append([]byte{0x42}, wasm.AppendLEB128s64(nil, v)...) }

// F32Const encodes f32.const v.
func F32Const(v float32) []byte {
	return binary.LittleEndian.AppendUint32([]byte{0x43}, math.Float32bits(v))
}

// F64Const encodes f64.const v.
func F64Const(v float64) []byte {
	return binary.LittleEndian.AppendUint64([]byte{0x44}, math.Float64bits(v))
}

// Body concatenates instruction fragments and appends end.
func Body(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return append(out, OpEnd)
}

// Op wraps single-byte opcodes for Body.
func Op(ops ...byte) []byte { return ops }

// Builder assembles a module. Imports must be added before functions so
// that function indices stay stable.
type Builder struct {
	m     wasm.Module
	types map[string]uint32
}

// New returns an empty builder.
func New() *Builder {
	return &Builder{types: make(map[string]uint32)}
}

// Sig is shorthand for a function type.
func Sig(params []wasm.ValType, results ...wasm.ValType) wasm.FuncType {
	return wasm.FuncType{Params: params, Results: results}
}

// Params is shorthand for a parameter list.
func Params(ts ...wasm.ValType) []wasm.ValType { return ts }

func (b *Builder) typeIndex(ft wasm.FuncType) uint32 {
	key := ft.Key()
	if idx, ok := b.types[key]; ok {
		return idx
	}
	idx := uint32(len(b.m.Types))
	b.m.Types = append(b.m.Types, ft.Clone())
	b.types[key] = idx
	return idx
}

// Type adds ft to the type section without a function using it.
func (b *Builder) Type(ft wasm.FuncType) uint32 {
	return b.typeIndex(ft)
}

// ImportFunc adds a function import and returns its function index.
func (b *Builder) ImportFunc(module, name string, ft wasm.FuncType) uint32 {
	if len(b.m.Funcs) > 0 {
		panic("wasmtest: imports must precede functions")
	}
	b.m.Imports = append(b.m.Imports, wasm.Import{
		Module: module,
		Name:   name,
		Desc:   wasm.ImportDesc{Kind: wasm.KindFunc, TypeIdx: b.typeIndex(ft)},
	})
	return uint32(b.m.NumImportedFuncs() - 1)
}

// Func adds a function with the given body, exported as export unless
// export is empty, and returns its function index.
func (b *Builder) Func(export string, ft wasm.FuncType, locals []wasm.LocalEntry, body []byte) uint32 {
	b.m.Funcs = append(b.m.Funcs, b.typeIndex(ft))
	b.m.Code = append(b.m.Code, wasm.FuncBody{Locals: locals, Code: body})
	idx := uint32(b.m.NumFuncs() - 1)
	if export != "" {
		b.m.Exports = append(b.m.Exports, wasm.Export{Name: export, Kind: wasm.KindFunc, Idx: idx})
	}
	return idx
}

// Memory adds a memory of min pages.
func (b *Builder) Memory(min uint64) {
	b.m.Memories = append(b.m.Memories, wasm.MemoryType{Limits: wasm.Limits{Min: min}})
}

// Module returns the assembled module.
func (b *Builder) Module() *wasm.Module {
	m := b.m
	return &m
}

// Binary returns the encoded module.
func (b *Builder) Binary() []byte {
	return b.m.Encode()
}
