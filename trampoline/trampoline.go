package trampoline

import (
	"context"
	"fmt"
	"math"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Canonical NaN bit patterns.
const (
	CanonicalNaN32 uint64 = 0x7FC00000
	CanonicalNaN64 uint64 = 0x7FF8000000000000
)

// Trampoline adapts the generic entry shape
//
//	trampoline(ctx, callee, args, returns)
//
// to the native calling convention of one signature. It is immutable and
// safe for concurrent calls.
type Trampoline struct {
	name   string
	sig    wasm.FuncType
	shape  Shape
	ops    []machine.Op
	params []abi.Param
	attrs  []abi.Attribute
	symbol machine.Symbol
	index  wasm.SigIndex
}

// Name returns the symbol name, "trmp<index>".
func (t *Trampoline) Name() string { return t.name }

// Index returns the signature index the trampoline serves.
func (t *Trampoline) Index() wasm.SigIndex { return t.index }

// Signature returns the function type.
func (t *Trampoline) Signature() wasm.FuncType { return t.sig.Clone() }

// Shape returns the slot layout and return classification.
func (t *Trampoline) Shape() Shape { return t.shape }

// Ops returns a copy of the op program.
func (t *Trampoline) Ops() []machine.Op { return append([]machine.Op(nil), t.ops...) }

// LoweredParams returns the callee parameter list the trampoline was built for.
func (t *Trampoline) LoweredParams() []abi.Param { return append([]abi.Param(nil), t.params...) }

// Attributes returns the attributes attached at the call site.
func (t *Trampoline) Attributes() []abi.Attribute { return append([]abi.Attribute(nil), t.attrs...) }

// Symbol returns the trampoline's range in the artifact's code.
func (t *Trampoline) Symbol() machine.Symbol { return t.symbol }

type frame struct {
	site    abi.CallSite
	results []abi.Value
}

// Call runs the trampoline: it loads arguments from args, invokes callee
// with vmctx and the recorded attributes, and stores results into returns.
// A panic in the callee is reported as a Trap error.
func (t *Trampoline) Call(ctx context.Context, vmctx any, callee abi.Callee, args, returns *abi.Buffer) (err error) {
	if err := ctx.Err(); err != nil {
		return errors.Canceled(errors.PhaseRuntime, err)
	}
	if args == nil {
		args = abi.NewBuffer(0)
	}
	if returns == nil {
		returns = abi.NewBuffer(0)
	}
	if args.Slots() < t.shape.ParamSlots {
		return errors.OutOfBounds(errors.PhaseRuntime, []string{t.name, "args"}, t.shape.ParamSlots, args.Slots())
	}
	if returns.Slots() < t.shape.ResultSlots {
		return errors.OutOfBounds(errors.PhaseRuntime, []string{t.name, "returns"}, t.shape.ResultSlots, returns.Slots())
	}

	defer func() {
		if r := recover(); r != nil {
			cause, _ := r.(error)
			err = errors.Trap(fmt.Sprintf("%s: %v", t.name, r), cause)
		}
	}()

	var f frame
	for _, op := range t.ops {
		switch op.Code {
		case machine.OpAllocSRet:
			f.site.SRet = abi.NewAggregate(t.shape.SRet)
		case machine.OpPassSRet:
			// the aggregate travels in CallSite.SRet
		case machine.OpPassContext:
			f.site.VMContext = vmctx
		case machine.OpLoadArg:
			v, err := args.Load(op.Slot, op.Type)
			if err != nil {
				return err
			}
			f.site.Args = append(f.site.Args, v)
		case machine.OpCall:
			f.site.Attrs = t.attrs
			if err := t.invoke(ctx, callee, &f); err != nil {
				return err
			}
		case machine.OpCanonNaN:
			if err := canonicalize(&f, op); err != nil {
				return err
			}
		case machine.OpStoreResult:
			if err := returns.Store(op.Slot, f.results[op.Index]); err != nil {
				return err
			}
		case machine.OpLoadSRetField:
			v, err := f.site.SRet.Load(op.Index)
			if err != nil {
				return err
			}
			if err := returns.Store(op.Slot, v); err != nil {
				return err
			}
		case machine.OpReturn:
			return nil
		default:
			return errors.InvalidData(errors.PhaseRuntime, []string{t.name}, fmt.Sprintf("unknown op %s", op.Code))
		}
	}
	return nil
}

func (t *Trampoline) invoke(ctx context.Context, callee abi.Callee, f *frame) error {
	results, err := callee.Invoke(ctx, &f.site)
	if err != nil {
		return fmt.Errorf("%s: %w", t.name, err)
	}
	if t.shape.Return == abi.ReturnIndirect {
		if len(results) != 0 {
			return errors.InvalidData(errors.PhaseRuntime, []string{t.name},
				fmt.Sprintf("indirect return produced %d register values", len(results)))
		}
		return nil
	}
	if len(results) != len(t.shape.Results) {
		return errors.InvalidData(errors.PhaseRuntime, []string{t.name},
			fmt.Sprintf("callee returned %d values, signature has %d", len(results), len(t.shape.Results)))
	}
	for i, v := range results {
		if v.Type != t.shape.Results[i] {
			return errors.TypeMismatch(errors.PhaseRuntime, []string{t.name, fmt.Sprintf("result[%d]", i)},
				v.Type.String(), t.shape.Results[i].String())
		}
	}
	f.results = results
	return nil
}

func canonicalize(f *frame, op machine.Op) error {
	if f.site.SRet != nil {
		v, err := f.site.SRet.Load(op.Index)
		if err != nil {
			return err
		}
		return f.site.SRet.Store(op.Index, CanonicalizeNaN(v))
	}
	f.results[op.Index] = CanonicalizeNaN(f.results[op.Index])
	return nil
}

// CanonicalizeNaN replaces any f32 or f64 NaN with the canonical quiet
// NaN. Other values are returned unchanged.
func CanonicalizeNaN(v abi.Value) abi.Value {
	switch v.Type {
	case wasm.ValF32:
		if math.IsNaN(float64(v.F32())) {
			return abi.FromBits(wasm.ValF32, CanonicalNaN32)
		}
	case wasm.ValF64:
		if math.IsNaN(v.F64()) {
			return abi.FromBits(wasm.ValF64, CanonicalNaN64)
		}
	}
	return v
}

// Invoke is a convenience wrapper that encodes args, calls the trampoline
// and decodes the results.
func (t *Trampoline) Invoke(ctx context.Context, vmctx any, callee abi.Callee, args ...abi.Value) ([]abi.Value, error) {
	in, err := abi.EncodeValues(t.shape.Params, args)
	if err != nil {
		return nil, err
	}
	out := abi.NewBuffer(t.shape.ResultSlots)
	if err := t.Call(ctx, vmctx, callee, in, out); err != nil {
		return nil, err
	}
	return abi.DecodeValues(out, t.shape.Results)
}
