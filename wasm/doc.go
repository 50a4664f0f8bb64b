// Package wasm provides the WebAssembly module representation consumed by
// the compiler: value and function types, binary decoding and encoding,
// structural validation and the per-module signature table.
//
// Only the sections the compiler interprets are decoded (types, imports,
// functions, tables, memories, exports, start and code). Globals, elements,
// data and tags are carried as raw payloads and re-emitted verbatim by
// Encode.
//
// # Parsing
//
//	module, err := wasm.ParseModuleValidate(data)
//
// # Encoding
//
// Tests build modules in Go and encode them:
//
//	m := &wasm.Module{
//	    Types:   []wasm.FuncType{{Results: []wasm.ValType{wasm.ValI32}}},
//	    Funcs:   []uint32{0},
//	    Exports: []wasm.Export{{Name: "f", Kind: wasm.KindFunc, Idx: 0}},
//	    Code:    []wasm.FuncBody{{Code: []byte{0x41, 0x2a, wasm.OpEnd}}},
//	}
//	bin := m.Encode()
//
// # Signatures
//
// NewSignatureTable deduplicates the module's types structurally and assigns
// each distinct signature a dense SigIndex. The trampoline table is keyed
// by SigIndex.
package wasm
