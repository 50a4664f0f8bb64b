package witabi

import (
	"fmt"
	"strings"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-compiler/wasm"
)

// Direction says which side of a component boundary a core function is on.
type Direction uint8

const (
	// Lift is a core export called by the host: oversized results are
	// returned through a pointer the callee allocates.
	Lift Direction = iota
	// Lower is a core import implemented by the host: oversized results
	// are written through a pointer the caller passes.
	Lower
)

func (d Direction) String() string {
	if d == Lower {
		return "lower"
	}
	return "lift"
}

// Param is a named WIT parameter.
type Param struct {
	Name string
	Type wit.Type
}

// Func is a WIT function type.
type Func struct {
	Name   string
	Params []Param
	Result wit.Type
}

// CoreSignature returns the core function type of f in direction d.
//
// More than MaxFlatParams flat parameters collapse into a single pointer.
// More than MaxFlatResults flat results become a returned pointer when
// lifting and a trailing pointer parameter when lowering.
func CoreSignature(f Func, d Direction) wasm.FuncType {
	var params []wasm.ValType
	for _, p := range f.Params {
		params = append(params, Flatten(p.Type)...)
	}
	results := Flatten(f.Result)

	if len(params) > MaxFlatParams {
		params = []wasm.ValType{wasm.ValI32}
	}
	if len(results) > MaxFlatResults {
		switch d {
		case Lift:
			results = []wasm.ValType{wasm.ValI32}
		case Lower:
			params = append(params, wasm.ValI32)
			results = nil
		}
	}
	return wasm.FuncType{Params: params, Results: results}
}

// Declarer accepts extra signatures to generate trampolines for.
type Declarer interface {
	DeclareSignature(wasm.FuncType)
}

// Declare adds the core signature of every function to m and returns them
// in order.
func Declare(m Declarer, d Direction, funcs ...Func) []wasm.FuncType {
	out := make([]wasm.FuncType, len(funcs))
	for i, f := range funcs {
		out[i] = CoreSignature(f, d)
		m.DeclareSignature(out[i])
	}
	return out
}

func (f Func) String() string {
	var b strings.Builder
	b.WriteString(f.Name)
	b.WriteString(": func(")
	for i, p := range f.Params {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", p.Name, typeName(p.Type))
	}
	b.WriteString(")")
	if f.Result != nil {
		b.WriteString(" -> ")
		b.WriteString(typeName(f.Result))
	}
	return b.String()
}

func typeName(t wit.Type) string {
	var td *wit.TypeDef
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.U16:
		return "u16"
	case wit.U32:
		return "u32"
	case wit.U64:
		return "u64"
	case wit.S8:
		return "s8"
	case wit.S16:
		return "s16"
	case wit.S32:
		return "s32"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		td = v
	default:
		return fmt.Sprintf("%T", t)
	}
	if td.Name != nil {
		return *td.Name
	}
	switch k := td.Kind.(type) {
	case *wit.List:
		return "list<" + typeName(k.Type) + ">"
	case *wit.Option:
		return "option<" + typeName(k.Type) + ">"
	case *wit.Result:
		return "result<" + optName(k.OK) + ", " + optName(k.Err) + ">"
	case *wit.Tuple:
		parts := make([]string, len(k.Types))
		for i, e := range k.Types {
			parts[i] = typeName(e)
		}
		return "tuple<" + strings.Join(parts, ", ") + ">"
	case *wit.Record:
		return "record"
	case *wit.Variant:
		return "variant"
	case *wit.Enum:
		return "enum"
	case *wit.Flags:
		return "flags"
	}
	return "type"
}

func optName(t wit.Type) string {
	if t == nil {
		return "_"
	}
	return typeName(t)
}
