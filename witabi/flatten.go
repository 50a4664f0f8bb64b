package witabi

import (
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-compiler/wasm"
)

// Canonical ABI flattening limits.
const (
	MaxFlatParams  = 16
	MaxFlatResults = 1
)

// Flatten returns the core value types a WIT value of type t occupies
// when passed in registers.
func Flatten(t wit.Type) []wasm.ValType {
	if t == nil {
		return nil
	}
	switch v := t.(type) {
	case wit.Bool, wit.U8, wit.U16, wit.U32, wit.S8, wit.S16, wit.S32, wit.Char:
		return []wasm.ValType{wasm.ValI32}
	case wit.U64, wit.S64:
		return []wasm.ValType{wasm.ValI64}
	case wit.F32:
		return []wasm.ValType{wasm.ValF32}
	case wit.F64:
		return []wasm.ValType{wasm.ValF64}
	case wit.String:
		return pointerPair()
	case *wit.TypeDef:
		return flattenTypeDef(v)
	}
	return []wasm.ValType{wasm.ValI32}
}

// FlattenAll flattens types in order.
func FlattenAll(types []wit.Type) []wasm.ValType {
	var flat []wasm.ValType
	for _, t := range types {
		flat = append(flat, Flatten(t)...)
	}
	return flat
}

func pointerPair() []wasm.ValType {
	return []wasm.ValType{wasm.ValI32, wasm.ValI32}
}

func flattenTypeDef(td *wit.TypeDef) []wasm.ValType {
	if td == nil || td.Kind == nil {
		return []wasm.ValType{wasm.ValI32}
	}
	switch kind := td.Kind.(type) {
	case *wit.Record:
		var flat []wasm.ValType
		for _, f := range kind.Fields {
			flat = append(flat, Flatten(f.Type)...)
		}
		return flat
	case *wit.Tuple:
		return FlattenAll(kind.Types)
	case *wit.List:
		return pointerPair()
	case *wit.Variant:
		var cases []wit.Type
		for _, c := range kind.Cases {
			cases = append(cases, c.Type)
		}
		return append([]wasm.ValType{wasm.ValI32}, joinCases(cases...)...)
	case *wit.Enum:
		return []wasm.ValType{wasm.ValI32}
	case *wit.Option:
		return append([]wasm.ValType{wasm.ValI32}, Flatten(kind.Type)...)
	case *wit.Result:
		return append([]wasm.ValType{wasm.ValI32}, joinCases(kind.OK, kind.Err)...)
	case *wit.Flags:
		return make32s((len(kind.Flags) + 31) / 32)
	case *wit.Own, *wit.Borrow:
		return []wasm.ValType{wasm.ValI32}
	case wit.Type:
		// alias of another type
		return Flatten(kind)
	}
	return []wasm.ValType{wasm.ValI32}
}

func make32s(n int) []wasm.ValType {
	out := make([]wasm.ValType, n)
	for i := range out {
		out[i] = wasm.ValI32
	}
	return out
}

// joinCases overlays the flattened payloads of variant cases.
func joinCases(cases ...wit.Type) []wasm.ValType {
	var payload []wasm.ValType
	for _, c := range cases {
		for i, t := range Flatten(c) {
			if i < len(payload) {
				payload[i] = join(payload[i], t)
			} else {
				payload = append(payload, t)
			}
		}
	}
	return payload
}

// join returns the smallest core type that can hold both a and b.
func join(a, b wasm.ValType) wasm.ValType {
	if a == b {
		return a
	}
	if (a == wasm.ValI32 && b == wasm.ValF32) || (a == wasm.ValF32 && b == wasm.ValI32) {
		return wasm.ValI32
	}
	return wasm.ValI64
}
