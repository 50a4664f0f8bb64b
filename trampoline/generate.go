package trampoline

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Lowering is what the generator needs from a compiler: the parameter
// list its lowered functions take for a signature and the backend
// attributes recorded for it.
type Lowering interface {
	LoweredParams(idx wasm.SigIndex, sig wasm.FuncType, shape Shape) []abi.Param
	Attributes(idx wasm.SigIndex, sig wasm.FuncType, shape Shape) []abi.Attribute
}

// Options control generation.
type Options struct {
	// Parallelism bounds the number of worker goroutines. Zero means GOMAXPROCS.
	Parallelism int
}

// Name returns the symbol name of the trampoline for idx.
func Name(idx wasm.SigIndex) string {
	return fmt.Sprintf("trmp%d", uint32(idx))
}

// Generate builds one trampoline per signature in sigs.
//
// Signatures are independent, so they are built by a pool of workers;
// emission into the machine's code buffer is serialized. The first error
// stops the remaining workers and no table is returned: a module either
// gets every trampoline or none.
func Generate(ctx context.Context, m *machine.Machine, sigs *wasm.SignatureTable, lowering Lowering, opts Options) (*Table, error) {
	n := sigs.Len()
	workers := opts.Parallelism
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	code := m.NewCodeBuffer()
	entries := make([]*Trampoline, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		idx := wasm.SigIndex(i)
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sig, _ := sigs.Signature(idx)
			tr, err := build(m, idx, sig, lowering)
			if err != nil {
				return err
			}
			if m.Options().Verify {
				if err := Verify(tr); err != nil {
					return errors.TrampolineGeneration(uint32(idx), "verifier: %v", err)
				}
			}
			tr.symbol = code.Append(tr.name, tr.ops)
			entries[idx] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, errors.Canceled(errors.PhaseTrampoline, ctx.Err())
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(errors.PhaseTrampoline, err)
	}

	table := &Table{entries: entries, code: code.Bytes(), symbols: code.Symbols(), arch: m.Arch().String()}
	Logger().Debug("trampolines generated",
		zap.Int("count", n),
		zap.Int("bytes", len(table.code)),
		zap.Int("workers", workers),
		zap.String("arch", table.arch))
	return table, nil
}

func build(m *machine.Machine, idx wasm.SigIndex, sig wasm.FuncType, lowering Lowering) (*Trampoline, error) {
	for i, t := range sig.Params {
		if !t.IsNumeric() {
			return nil, errors.TrampolineGeneration(uint32(idx), "param %d has unsupported type %s", i, t)
		}
	}
	for i, t := range sig.Results {
		if !t.IsNumeric() {
			return nil, errors.TrampolineGeneration(uint32(idx), "result %d has unsupported type %s", i, t)
		}
	}

	shape := ShapeOf(sig, m.ReturnPolicy())
	params := lowering.LoweredParams(idx, sig, shape)
	if err := checkParams(idx, params, abi.LoweredParams(sig, shape.Return)); err != nil {
		return nil, err
	}
	attrs := lowering.Attributes(idx, sig, shape)
	for _, a := range attrs {
		if loc := a.Location(); loc.Kind == abi.AttrParam && (loc.Index < 0 || loc.Index >= len(params)) {
			return nil, errors.TrampolineGeneration(uint32(idx), "attribute %s targets missing param %d", a, loc.Index)
		}
	}

	cc := m.CallingConvention()
	locs := cc.Assign(params)
	e := machine.NewEmitter()

	next := 0
	if shape.Return == abi.ReturnIndirect {
		e.AllocSRet(len(shape.Results), shape.SRet.Size)
		e.PassSRet(locs[next])
		next++
	}
	e.PassContext(locs[next])
	next++
	for i, t := range shape.Params {
		e.LoadArg(i, shape.ParamOffsets[i], t, locs[next+i])
	}
	e.Call(len(attrs))

	if m.Options().CanonicalizeNaN {
		for i, t := range shape.Results {
			if t == wasm.ValF32 || t == wasm.ValF64 {
				e.CanonNaN(i, t)
			}
		}
	}

	if shape.Return == abi.ReturnDirect {
		resultLocs, ok := cc.AssignResults(shape.Results)
		if !ok {
			return nil, errors.TrampolineGeneration(uint32(idx),
				"results %v classified direct but do not fit %s result registers", shape.ResultWidths, cc.Name)
		}
		for i, t := range shape.Results {
			e.StoreResult(i, shape.ResultOffsets[i], t, resultLocs[i])
		}
	} else {
		for i, f := range shape.SRet.Fields {
			e.LoadSRetField(i, shape.ResultOffsets[i], f.Offset, f.Type)
		}
	}
	e.Return()

	return &Trampoline{
		name:   Name(idx),
		index:  idx,
		sig:    sig.Clone(),
		shape:  shape,
		ops:    e.Ops(),
		params: params,
		attrs:  attrs,
	}, nil
}

// checkParams compares the parameters the compiler lowered with the ones
// the trampoline will pass.
func checkParams(idx wasm.SigIndex, got, want []abi.Param) error {
	if len(got) != len(want) {
		return errors.TrampolineGeneration(uint32(idx),
			"lowered callee takes %d params, trampoline passes %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return errors.TrampolineGeneration(uint32(idx),
				"lowered param %d is %s, trampoline passes %s", i, got[i], want[i])
		}
	}
	return nil
}
