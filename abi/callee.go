package abi

import (
	"context"
	"fmt"

	"github.com/wippyai/wasm-compiler/wasm"
)

// AttrLocKind is the attachment point of an attribute.
type AttrLocKind uint8

const (
	AttrFunction AttrLocKind = iota
	AttrReturn
	AttrParam
)

// AttributeLoc is where an attribute attaches. Index is the lowered
// parameter index for AttrParam and zero otherwise.
type AttributeLoc struct {
	Kind  AttrLocKind
	Index int
}

func FunctionLoc() AttributeLoc   { return AttributeLoc{Kind: AttrFunction} }
func ReturnLoc() AttributeLoc     { return AttributeLoc{Kind: AttrReturn} }
func ParamLoc(i int) AttributeLoc { return AttributeLoc{Kind: AttrParam, Index: i} }

func (l AttributeLoc) String() string {
	switch l.Kind {
	case AttrReturn:
		return "ret"
	case AttrParam:
		return fmt.Sprintf("param%d", l.Index)
	}
	return "fn"
}

// Attribute is backend specific calling-convention metadata recorded by a
// compiler for a signature and re-attached to every call site of its
// trampoline. The core never inspects attributes beyond their location.
type Attribute interface {
	Location() AttributeLoc
	String() string
}

// ParamKind classifies a lowered callee parameter.
type ParamKind uint8

const (
	ParamSRet ParamKind = iota
	ParamVMContext
	ParamValue
)

func (k ParamKind) String() string {
	switch k {
	case ParamSRet:
		return "sret"
	case ParamVMContext:
		return "vmctx"
	}
	return "value"
}

// Param is one parameter of a lowered callee. Type is set for ParamValue.
type Param struct {
	Kind ParamKind
	Type wasm.ValType
}

func (p Param) String() string {
	if p.Kind == ParamValue {
		return p.Type.String()
	}
	return p.Kind.String()
}

// LoweredParams returns the parameter list a compiler gives a callee of
// sig: the optional struct-return pointer, the context pointer and then
// one entry per declared parameter.
func LoweredParams(sig wasm.FuncType, kind ReturnKind) []Param {
	out := make([]Param, 0, len(sig.Params)+2)
	if kind == ReturnIndirect {
		out = append(out, Param{Kind: ParamSRet})
	}
	out = append(out, Param{Kind: ParamVMContext})
	for _, t := range sig.Params {
		out = append(out, Param{Kind: ParamValue, Type: t})
	}
	return out
}

// CallSite is what a trampoline hands a callee.
type CallSite struct {
	// SRet is non-nil for indirect returns; the callee writes every
	// result into it and returns no values.
	SRet      *Aggregate
	VMContext any
	Args      []Value
	Attrs     []Attribute
}

// Callee is compiled code reachable through a trampoline.
type Callee interface {
	Invoke(ctx context.Context, site *CallSite) ([]Value, error)
}

// CalleeFunc adapts a function to Callee.
type CalleeFunc func(ctx context.Context, site *CallSite) ([]Value, error)

func (f CalleeFunc) Invoke(ctx context.Context, site *CallSite) ([]Value, error) {
	return f(ctx, site)
}
