package aggressive

import (
	"fmt"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

// vmctx is always 16-byte aligned.
const vmctxAlign = 16

// AttrKind is a call-site attribute kind.
type AttrKind uint8

const (
	AttrStructRet AttrKind = iota + 1
	AttrNoAlias
	AttrNoCapture
	AttrNonNull
	AttrAlign
	AttrDereferenceable
)

var attrNames = map[AttrKind]string{
	AttrStructRet:       "sret",
	AttrNoAlias:         "noalias",
	AttrNoCapture:       "nocapture",
	AttrNonNull:         "nonnull",
	AttrAlign:           "align",
	AttrDereferenceable: "dereferenceable",
}

func (k AttrKind) String() string {
	if n, ok := attrNames[k]; ok {
		return n
	}
	return fmt.Sprintf("attr(%d)", uint8(k))
}

// Attribute is a parameter attribute. Value is the operand of align and
// dereferenceable.
type Attribute struct {
	Kind  AttrKind
	Loc   abi.AttributeLoc
	Value int
}

func (a Attribute) Location() abi.AttributeLoc { return a.Loc }

func (a Attribute) String() string {
	switch a.Kind {
	case AttrAlign:
		return fmt.Sprintf("align %d@%s", a.Value, a.Loc)
	case AttrDereferenceable:
		return fmt.Sprintf("dereferenceable(%d)@%s", a.Value, a.Loc)
	}
	return a.Kind.String() + "@" + a.Loc.String()
}

func (backend) LoweredParams(_ wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Param {
	return abi.LoweredParams(sig, shape.Return)
}

// Attributes describes the struct-return pointer as a private, writable
// block of the aggregate's size and the context as a non-null pointer.
func (backend) Attributes(_ wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Attribute {
	var attrs []abi.Attribute
	for i, p := range abi.LoweredParams(sig, shape.Return) {
		loc := abi.ParamLoc(i)
		switch p.Kind {
		case abi.ParamSRet:
			attrs = append(attrs,
				Attribute{Kind: AttrStructRet, Loc: loc},
				Attribute{Kind: AttrNoAlias, Loc: loc},
				Attribute{Kind: AttrNoCapture, Loc: loc},
				Attribute{Kind: AttrAlign, Loc: loc, Value: shape.SRet.Align},
				Attribute{Kind: AttrDereferenceable, Loc: loc, Value: shape.SRet.Size},
			)
		case abi.ParamVMContext:
			attrs = append(attrs,
				Attribute{Kind: AttrNonNull, Loc: loc},
				Attribute{Kind: AttrAlign, Loc: loc, Value: vmctxAlign},
			)
		}
	}
	return attrs
}
