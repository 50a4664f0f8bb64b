package wasm

import "strings"

// Module represents a parsed WebAssembly module.
//
// Sections the compiler does not interpret (globals, elements, data, tags)
// are carried as raw payloads so that Encode reproduces them.
type Module struct {
	Types    []FuncType
	Imports  []Import
	Funcs    []uint32 // Type indices for declared functions
	Tables   []TableType
	Memories []MemoryType
	Exports  []Export
	Start    *uint32
	Code     []FuncBody

	// Raw holds uninterpreted sections keyed by section ID.
	Raw []RawSection

	CustomSections []CustomSection
}

// FuncType represents a WebAssembly function signature with parameter and result types.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// ValType represents a WebAssembly value type.
// See constants.go for ValI32, ValI64, ValF32, ValF64, ValV128.
type ValType byte

func (v ValType) String() string {
	switch v {
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	case ValV128:
		return "v128"
	case ValFuncRef:
		return "funcref"
	case ValExtern:
		return "externref"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether v is one of the five value kinds the
// compiler marshals through trampolines: i32, i64, f32, f64 or v128.
func (v ValType) IsNumeric() bool {
	switch v {
	case ValI32, ValI64, ValF32, ValF64, ValV128:
		return true
	}
	return false
}

// IsRef reports whether v is a reference type.
func (v ValType) IsRef() bool {
	return v == ValFuncRef || v == ValExtern
}

// ParseValType parses the text name of a value type.
func ParseValType(s string) (ValType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i32":
		return ValI32, true
	case "i64":
		return ValI64, true
	case "f32":
		return ValF32, true
	case "f64":
		return ValF64, true
	case "v128":
		return ValV128, true
	case "funcref":
		return ValFuncRef, true
	case "externref":
		return ValExtern, true
	}
	return 0, false
}

// Import represents an imported function, table, memory, global, or tag.
type Import struct {
	Desc   ImportDesc
	Module string
	Name   string
}

// ImportDesc describes an imported item.
// Kind uses KindFunc, KindTable, KindMemory, KindGlobal, or KindTag constants.
type ImportDesc struct {
	Table   *TableType
	Memory  *MemoryType
	Global  *GlobalType
	TypeIdx uint32 // function or tag type
	Kind    byte
}

// TableType describes a table
type TableType struct {
	Limits   Limits
	ElemType ValType
}

// MemoryType describes a linear memory
type MemoryType struct {
	Limits Limits
}

// Limits holds min/max for tables and memories
type Limits struct {
	Max    *uint64
	Min    uint64
	Shared bool
}

// GlobalType describes a global's value type and mutability
type GlobalType struct {
	ValType ValType
	Mutable bool
}

// Export represents an exported item
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// FuncBody holds a function's locals and raw instruction bytes
type FuncBody struct {
	Locals []LocalEntry
	Code   []byte // instruction bytes including the final end opcode
}

// LocalEntry is a run of locals sharing a type
type LocalEntry struct {
	Count   uint32
	ValType ValType
}

// RawSection is a section carried through without interpretation
type RawSection struct {
	Data []byte
	ID   byte
}

// CustomSection is a named custom section
type CustomSection struct {
	Name string
	Data []byte
}

// Equal reports whether two function types have identical parameter and result sequences.
func (f FuncType) Equal(other FuncType) bool {
	if len(f.Params) != len(other.Params) || len(f.Results) != len(other.Results) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != other.Params[i] {
			return false
		}
	}
	for i := range f.Results {
		if f.Results[i] != other.Results[i] {
			return false
		}
	}
	return true
}

// Key returns a string that is identical for structurally equal function types.
func (f FuncType) Key() string {
	b := make([]byte, 0, len(f.Params)+len(f.Results)+1)
	for _, p := range f.Params {
		b = append(b, byte(p))
	}
	b = append(b, FuncTypeByte)
	for _, r := range f.Results {
		b = append(b, byte(r))
	}
	return string(b)
}

// String renders the type as "(i32, i64) -> (f64)".
func (f FuncType) String() string {
	var b strings.Builder
	writeList := func(types []ValType) {
		b.WriteByte('(')
		for i, t := range types {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(t.String())
		}
		b.WriteByte(')')
	}
	writeList(f.Params)
	b.WriteString(" -> ")
	writeList(f.Results)
	return b.String()
}

// Clone returns a deep copy of the function type.
func (f FuncType) Clone() FuncType {
	return FuncType{
		Params:  append([]ValType(nil), f.Params...),
		Results: append([]ValType(nil), f.Results...),
	}
}

// NumImportedFuncs returns the number of imported functions.
func (m *Module) NumImportedFuncs() int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == KindFunc {
			n++
		}
	}
	return n
}

// NumImportedTables returns the number of imported tables.
func (m *Module) NumImportedTables() int {
	return m.countImports(KindTable)
}

// NumImportedMemories returns the number of imported memories.
func (m *Module) NumImportedMemories() int {
	return m.countImports(KindMemory)
}

func (m *Module) countImports(kind byte) int {
	n := 0
	for _, imp := range m.Imports {
		if imp.Desc.Kind == kind {
			n++
		}
	}
	return n
}

// NumFuncs returns the size of the function index space.
func (m *Module) NumFuncs() int {
	return m.NumImportedFuncs() + len(m.Funcs)
}

// FuncTypeIndex returns the type index of the function at funcIdx in the
// function index space (imports first).
func (m *Module) FuncTypeIndex(funcIdx uint32) (uint32, bool) {
	var n uint32
	for _, imp := range m.Imports {
		if imp.Desc.Kind != KindFunc {
			continue
		}
		if n == funcIdx {
			return imp.Desc.TypeIdx, true
		}
		n++
	}
	local := funcIdx - n
	if funcIdx < n || int(local) >= len(m.Funcs) {
		return 0, false
	}
	return m.Funcs[local], true
}

// FuncType returns the signature of the function at funcIdx.
func (m *Module) FuncType(funcIdx uint32) (FuncType, bool) {
	typeIdx, ok := m.FuncTypeIndex(funcIdx)
	if !ok || int(typeIdx) >= len(m.Types) {
		return FuncType{}, false
	}
	return m.Types[typeIdx], true
}

// ExportedFunc returns the function index exported under name.
func (m *Module) ExportedFunc(name string) (uint32, bool) {
	for _, exp := range m.Exports {
		if exp.Kind == KindFunc && exp.Name == name {
			return exp.Idx, true
		}
	}
	return 0, false
}

// UsesV128 reports whether any function type mentions v128.
func (m *Module) UsesV128() bool {
	for _, ft := range m.Types {
		for _, t := range ft.Params {
			if t == ValV128 {
				return true
			}
		}
		for _, t := range ft.Results {
			if t == ValV128 {
				return true
			}
		}
	}
	return false
}

// UsesMultiValue reports whether any function type returns more than one value.
func (m *Module) UsesMultiValue() bool {
	for _, ft := range m.Types {
		if len(ft.Results) > 1 {
			return true
		}
	}
	return false
}

// UsesSharedMemory reports whether any declared or imported memory is shared.
func (m *Module) UsesSharedMemory() bool {
	for _, mem := range m.Memories {
		if mem.Limits.Shared {
			return true
		}
	}
	for _, imp := range m.Imports {
		if imp.Desc.Memory != nil && imp.Desc.Memory.Limits.Shared {
			return true
		}
	}
	return false
}

// RawSection returns the raw payload of an uninterpreted section.
func (m *Module) RawSection(id byte) ([]byte, bool) {
	for _, s := range m.Raw {
		if s.ID == id {
			return s.Data, true
		}
	}
	return nil, false
}
