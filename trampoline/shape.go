package trampoline

import (
	"fmt"
	"slices"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Shape is everything about a trampoline that follows from its signature:
// slot layout, return classification and struct-return layout. It is a
// pure function of the parameter and result types.
type Shape struct {
	Params        []wasm.ValType
	Results       []wasm.ValType
	ParamOffsets  []int
	ResultOffsets []int
	ResultWidths  []int
	// SRet is the struct-return aggregate; zero for direct returns.
	SRet        abi.Layout
	ParamSlots  int
	ResultSlots int
	Return      abi.ReturnKind
}

// ShapeOf computes the shape of sig under a return policy.
func ShapeOf(sig wasm.FuncType, policy abi.ReturnPolicy) Shape {
	s := Shape{
		Params:       slices.Clone(sig.Params),
		Results:      slices.Clone(sig.Results),
		ResultWidths: abi.BitWidths(sig.Results),
	}
	s.ParamOffsets, s.ParamSlots = abi.SlotOffsets(sig.Params)
	s.ResultOffsets, s.ResultSlots = abi.SlotOffsets(sig.Results)
	s.Return = policy.Classify(s.ResultWidths)
	if s.Return == abi.ReturnIndirect {
		s.SRet = abi.LayoutOf(sig.Results)
	}
	return s
}

// Equal reports whether two shapes are identical.
func (s Shape) Equal(o Shape) bool {
	return slices.Equal(s.Params, o.Params) &&
		slices.Equal(s.Results, o.Results) &&
		slices.Equal(s.ParamOffsets, o.ParamOffsets) &&
		slices.Equal(s.ResultOffsets, o.ResultOffsets) &&
		slices.Equal(s.ResultWidths, o.ResultWidths) &&
		s.ParamSlots == o.ParamSlots &&
		s.ResultSlots == o.ResultSlots &&
		s.Return == o.Return &&
		s.SRet.Size == o.SRet.Size &&
		s.SRet.Align == o.SRet.Align &&
		slices.Equal(s.SRet.Fields, o.SRet.Fields)
}

func (s Shape) String() string {
	str := fmt.Sprintf("params=%v@%v results=%v@%v %s", s.Params, s.ParamOffsets, s.ResultWidths, s.ResultOffsets, s.Return)
	if s.Return == abi.ReturnIndirect {
		str += " sret=" + s.SRet.String()
	}
	return str
}
