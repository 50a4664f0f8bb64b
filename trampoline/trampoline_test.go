package trampoline_test

import (
	"context"
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/wippyai/wasm-compiler/abi"
	werrors "github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

const (
	i32  = wasm.ValI32
	i64  = wasm.ValI64
	f32  = wasm.ValF32
	f64  = wasm.ValF64
	v128 = wasm.ValV128
)

func sig(params []wasm.ValType, results ...wasm.ValType) wasm.FuncType {
	return wasm.FuncType{Params: params, Results: results}
}

type stdLowering struct{}

func (stdLowering) LoweredParams(_ wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Param {
	return abi.LoweredParams(sig, shape.Return)
}

func (stdLowering) Attributes(wasm.SigIndex, wasm.FuncType, trampoline.Shape) []abi.Attribute {
	return nil
}

type noalias struct{ loc abi.AttributeLoc }

func (a noalias) Location() abi.AttributeLoc { return a.loc }
func (a noalias) String() string             { return "noalias@" + a.loc.String() }

// attrLowering tags the sret pointer of indirect signatures.
type attrLowering struct{ stdLowering }

func (attrLowering) Attributes(_ wasm.SigIndex, _ wasm.FuncType, shape trampoline.Shape) []abi.Attribute {
	if shape.Return == abi.ReturnIndirect {
		return []abi.Attribute{noalias{abi.ParamLoc(0)}}
	}
	return nil
}

// brokenLowering forgets the vmctx parameter for one signature.
type brokenLowering struct {
	stdLowering
	bad wasm.SigIndex
}

func (l brokenLowering) LoweredParams(idx wasm.SigIndex, sig wasm.FuncType, shape trampoline.Shape) []abi.Param {
	params := abi.LoweredParams(sig, shape.Return)
	if idx == l.bad {
		return params[:len(params)-1]
	}
	return params
}

func newMachine(t *testing.T, triple string, opts machine.Options) *machine.Machine {
	t.Helper()
	tgt := target.New(target.MustParseTriple(triple), target.NewCPUFeatureSet())
	m, err := machine.Build(tgt, opts, nil)
	if err != nil {
		t.Fatalf("Build(%s): %v", triple, err)
	}
	return m
}

func generate(t *testing.T, m *machine.Machine, sigs ...wasm.FuncType) *trampoline.Table {
	t.Helper()
	table := wasm.NewSignatureTable(nil)
	for _, s := range sigs {
		table.Declare(s)
	}
	tt, err := trampoline.Generate(context.Background(), m, table, stdLowering{}, trampoline.Options{Parallelism: 4})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return tt
}

func TestShapeScenarios(t *testing.T) {
	policy := abi.SystemVReturns
	tests := []struct {
		name          string
		sig           wasm.FuncType
		paramOffsets  []int
		resultOffsets []int
		sretFields    int
		kind          abi.ReturnKind
	}{
		{"pair", sig(nil, i32, i32), []int{}, []int{0, 1}, 0, abi.ReturnDirect},
		{"five", sig(nil, i32, i32, i32, i32, i32), []int{}, []int{0, 1, 2, 3, 4}, 5, abi.ReturnIndirect},
		{"v128 param", sig([]wasm.ValType{v128, i32}, f64), []int{0, 2}, []int{0}, 0, abi.ReturnDirect},
		{"empty", sig(nil), []int{}, []int{}, 0, abi.ReturnDirect},
		{"single v128", sig(nil, v128), []int{}, []int{0}, 0, abi.ReturnDirect},
		{"f32 f64", sig(nil, f32, f64), []int{}, []int{0, 1}, 0, abi.ReturnDirect},
		{"f32 f64 f64", sig(nil, f32, f64, f64), []int{}, []int{0, 1, 2}, 3, abi.ReturnIndirect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := trampoline.ShapeOf(tt.sig, policy)
			if s.Return != tt.kind {
				t.Errorf("Return = %s, want %s", s.Return, tt.kind)
			}
			if !slices.Equal(s.ParamOffsets, tt.paramOffsets) {
				t.Errorf("ParamOffsets = %v, want %v", s.ParamOffsets, tt.paramOffsets)
			}
			if !slices.Equal(s.ResultOffsets, tt.resultOffsets) {
				t.Errorf("ResultOffsets = %v, want %v", s.ResultOffsets, tt.resultOffsets)
			}
			if len(s.SRet.Fields) != tt.sretFields {
				t.Errorf("sret fields = %d, want %d", len(s.SRet.Fields), tt.sretFields)
			}
		})
	}
}

func TestShapeIsPure(t *testing.T) {
	a := sig([]wasm.ValType{i64, v128}, i32, i64, f32)
	b := a.Clone()
	sa := trampoline.ShapeOf(a, abi.SystemVReturns)
	sb := trampoline.ShapeOf(b, abi.SystemVReturns)
	if !sa.Equal(sb) {
		t.Errorf("shapes differ for equal signatures:\n%s\n%s", sa, sb)
	}
	a.Params[0] = f64
	if trampoline.ShapeOf(b, abi.SystemVReturns).Params[0] != i64 {
		t.Error("shape aliases the signature's param slice")
	}
}

func TestGenerateDirectPair(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	table := generate(t, m, sig(nil, i32, i32))

	tr, ok := table.Lookup(0)
	if !ok {
		t.Fatal("Lookup(0) failed")
	}
	if tr.Name() != "trmp0" {
		t.Errorf("Name() = %q, want trmp0", tr.Name())
	}
	for _, p := range tr.LoweredParams() {
		if p.Kind == abi.ParamSRet {
			t.Error("direct return has an sret param")
		}
	}
	var stores int
	for _, op := range tr.Ops() {
		if op.Code == machine.OpStoreResult {
			stores++
		}
		if op.Code == machine.OpAllocSRet {
			t.Error("direct trampoline allocates an aggregate")
		}
	}
	if stores != 2 {
		t.Errorf("store ops = %d, want 2", stores)
	}

	callee := abi.CalleeFunc(func(_ context.Context, site *abi.CallSite) ([]abi.Value, error) {
		if site.SRet != nil {
			t.Error("callee received sret for direct return")
		}
		return []abi.Value{abi.ValueI32(7), abi.ValueI32(-9)}, nil
	})
	got, err := tr.Invoke(context.Background(), nil, callee)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(got) != 2 || got[0].I32() != 7 || got[1].I32() != -9 {
		t.Errorf("results = %v, want [7 -9]", got)
	}
}

func TestGenerateIndirectFive(t *testing.T) {
	for _, triple := range []string{"x86_64-unknown-linux-gnu", "aarch64-unknown-linux-gnu"} {
		t.Run(triple, func(t *testing.T) {
			m := newMachine(t, triple, machine.DefaultOptions())
			table := generate(t, m, sig(nil, i32, i32, i32, i32, i32))
			tr, _ := table.Lookup(0)

			params := tr.LoweredParams()
			if len(params) != 2 || params[0].Kind != abi.ParamSRet || params[1].Kind != abi.ParamVMContext {
				t.Fatalf("lowered params = %v, want [sret vmctx]", params)
			}
			ops := tr.Ops()
			if ops[0].Code != machine.OpAllocSRet || ops[0].Index != 5 || ops[0].Imm != 20 {
				t.Errorf("first op = %s, want alloc.sret fields=5 size=20", ops[0])
			}
			if ops[1].Code != machine.OpPassSRet || ops[1].Loc.Reg != m.CallingConvention().SRetReg {
				t.Errorf("second op = %s, want pass.sret -> %s", ops[1], m.CallingConvention().SRetReg)
			}

			vmctx := &struct{ id int }{id: 3}
			callee := abi.CalleeFunc(func(_ context.Context, site *abi.CallSite) ([]abi.Value, error) {
				if site.VMContext != vmctx {
					t.Error("vmctx not passed through")
				}
				if site.SRet == nil || site.SRet.Len() != 5 {
					t.Fatal("callee did not receive a five-field aggregate")
				}
				for i := 0; i < 5; i++ {
					if err := site.SRet.Store(i, abi.ValueI32(int32(i*10))); err != nil {
						return nil, err
					}
				}
				return nil, nil
			})
			got, err := tr.Invoke(context.Background(), vmctx, callee)
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			for i, v := range got {
				if v.I32() != int32(i*10) {
					t.Errorf("result %d = %d, want %d", i, v.I32(), i*10)
				}
			}
		})
	}
}

func TestGenerateV128Param(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	table := generate(t, m, sig([]wasm.ValType{v128, i32}, f64))
	tr, _ := table.Lookup(0)

	shape := tr.Shape()
	if shape.ParamSlots != 3 || shape.ResultSlots != 1 {
		t.Errorf("slots = %d/%d, want 3/1", shape.ParamSlots, shape.ResultSlots)
	}

	callee := abi.CalleeFunc(func(_ context.Context, site *abi.CallSite) ([]abi.Value, error) {
		lo, hi := site.Args[0].V128()
		return []abi.Value{abi.ValueF64(float64(lo+hi) + float64(site.Args[1].I32()))}, nil
	})
	args := abi.NewBuffer(3)
	_ = args.Store(0, abi.ValueV128(1, 2))
	_ = args.Store(2, abi.ValueI32(4))
	out := abi.NewBuffer(1)
	if err := tr.Call(context.Background(), nil, callee, args, out); err != nil {
		t.Fatalf("Call: %v", err)
	}
	v, _ := out.Load(0, f64)
	if v.F64() != 7 {
		t.Errorf("result = %v, want 7", v.F64())
	}
}

func TestGenerateDeduplicatedAndOrdered(t *testing.T) {
	m := newMachine(t, "aarch64-apple-darwin", machine.DefaultOptions())
	mod := &wasm.Module{Types: []wasm.FuncType{
		sig([]wasm.ValType{i32}, i32),
		sig(nil, i64, i64, i64),
		sig([]wasm.ValType{i32}, i32),
		sig([]wasm.ValType{f32, f64}),
	}}
	sigs := wasm.NewSignatureTable(mod)
	table, err := trampoline.Generate(context.Background(), m, sigs, stdLowering{}, trampoline.Options{Parallelism: 2})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	for i, tr := range table.All() {
		if tr.Index() != wasm.SigIndex(i) {
			t.Errorf("entry %d has index %d", i, tr.Index())
		}
		want, _ := sigs.Signature(wasm.SigIndex(i))
		if !tr.Signature().Equal(want) {
			t.Errorf("entry %d signature %s, want %s", i, tr.Signature(), want)
		}
	}
	text, err := table.Disassemble()
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	for i := 0; i < 3; i++ {
		if !strings.Contains(text, trampoline.Name(wasm.SigIndex(i))) {
			t.Errorf("disassembly missing %s", trampoline.Name(wasm.SigIndex(i)))
		}
	}
	if len(table.Symbols()) != 3 || len(table.Code()) == 0 {
		t.Errorf("symbols=%d code=%d", len(table.Symbols()), len(table.Code()))
	}
}

func TestGenerateArityMismatchFailsWholeTable(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	sigs := wasm.NewSignatureTable(nil)
	for i := 0; i < 32; i++ {
		params := make([]wasm.ValType, i%5)
		for j := range params {
			params[j] = i64
		}
		sigs.Declare(sig(params, i32-wasm.ValType(i%2)))
	}

	table, err := trampoline.Generate(context.Background(), m, sigs,
		brokenLowering{bad: 3}, trampoline.Options{Parallelism: 4})
	if table != nil {
		t.Error("partial table returned on error")
	}
	if !errors.Is(err, werrors.ErrTrampolineGeneration) {
		t.Fatalf("err = %v, want TrampolineGeneration", err)
	}
	var werr *werrors.Error
	if errors.As(err, &werr) && werr.Value != uint32(3) {
		t.Errorf("error names signature %v, want 3", werr.Value)
	}
}

func TestGenerateRejectsReferenceTypes(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	sigs := wasm.NewSignatureTable(nil)
	sigs.Declare(sig([]wasm.ValType{wasm.ValExtern}, i32))
	_, err := trampoline.Generate(context.Background(), m, sigs, stdLowering{}, trampoline.Options{})
	if !errors.Is(err, werrors.ErrTrampolineGeneration) {
		t.Errorf("err = %v, want TrampolineGeneration", err)
	}
}

func TestGenerateCanceled(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	sigs := wasm.NewSignatureTable(nil)
	sigs.Declare(sig(nil))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := trampoline.Generate(ctx, m, sigs, stdLowering{}, trampoline.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestAttributesReachCallSite(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	sigs := wasm.NewSignatureTable(nil)
	sigs.Declare(sig(nil, i64, i64, i64))
	table, err := trampoline.Generate(context.Background(), m, sigs, attrLowering{}, trampoline.Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	tr, _ := table.Lookup(0)
	var seen []abi.Attribute
	callee := abi.CalleeFunc(func(_ context.Context, site *abi.CallSite) ([]abi.Value, error) {
		seen = site.Attrs
		return nil, site.SRet.StoreAll([]abi.Value{abi.ValueI64(1), abi.ValueI64(2), abi.ValueI64(3)})
	})
	if _, err := tr.Invoke(context.Background(), nil, callee); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(seen) != 1 || seen[0].Location() != abi.ParamLoc(0) {
		t.Errorf("attrs at call site = %v, want [noalias@param0]", seen)
	}
}

func TestCallTrapAndErrors(t *testing.T) {
	m := newMachine(t, "x86_64-unknown-linux-gnu", machine.DefaultOptions())
	table := generate(t, m, sig([]wasm.ValType{i32}, i32))
	tr, _ := table.Lookup(0)

	panicking := abi.CalleeFunc(func(context.Context, *abi.CallSite) ([]abi.Value, error) {
		panic("unreachable")
	})
	if _, err := tr.Invoke(context.Background(), nil, panicking, abi.ValueI32(1)); !errors.Is(err, werrors.ErrTrap) {
		t.Errorf("panic: err = %v, want Trap", err)
	}

	wrongType := abi.CalleeFunc(func(context.Context, *abi.CallSite) ([]abi.Value, error) {
		return []abi.Value{abi.ValueI64(1)}, nil
	})
	if _, err := tr.Invoke(context.Background(), nil, wrongType, abi.ValueI32(1)); err == nil {
		t.Error("mistyped result accepted")
	}

	short := abi.NewBuffer(0)
	err := tr.Call(context.Background(), nil, wrongType, short, abi.NewBuffer(1))
	var werr *werrors.Error
	if !errors.As(err, &werr) || werr.Kind != werrors.KindOutOfBounds {
		t.Errorf("short args: err = %v, want out_of_bounds", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := tr.Invoke(ctx, nil, wrongType, abi.ValueI32(1)); !errors.Is(err, context.Canceled) {
		t.Errorf("canceled: err = %v", err)
	}
}

func TestNaNCanonicalization(t *testing.T) {
	opts := machine.DefaultOptions()
	opts.CanonicalizeNaN = true
	m := newMachine(t, "x86_64-unknown-linux-gnu", opts)
	table := generate(t, m, sig(nil, f32, f64), sig(nil, f32, f64, f64))

	noisy32 := abi.FromBits(f32, 0x7FA00001)
	noisy64 := abi.FromBits(f64, 0xFFF0000000000123)

	direct, _ := table.Lookup(0)
	got, err := direct.Invoke(context.Background(), nil, abi.CalleeFunc(func(context.Context, *abi.CallSite) ([]abi.Value, error) {
		return []abi.Value{noisy32, noisy64}, nil
	}))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got[0].Lo != trampoline.CanonicalNaN32 || got[1].Lo != trampoline.CanonicalNaN64 {
		t.Errorf("direct results = %#x %#x, want canonical NaNs", got[0].Lo, got[1].Lo)
	}

	indirect, _ := table.Lookup(1)
	got, err = indirect.Invoke(context.Background(), nil, abi.CalleeFunc(func(_ context.Context, site *abi.CallSite) ([]abi.Value, error) {
		return nil, site.SRet.StoreAll([]abi.Value{noisy32, noisy64, abi.ValueF64(2.5)})
	}))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if got[0].Lo != trampoline.CanonicalNaN32 || got[1].Lo != trampoline.CanonicalNaN64 || got[2].F64() != 2.5 {
		t.Errorf("indirect results = %v, want canonical NaNs and 2.5", got)
	}
}

func TestCanonicalizeNaNLeavesNumbers(t *testing.T) {
	for _, v := range []abi.Value{abi.ValueF32(1.5), abi.ValueF64(-0.0), abi.ValueF64(math.Inf(1)), abi.ValueI32(-1), abi.ValueV128(0x7FC00001, 0)} {
		if got := trampoline.CanonicalizeNaN(v); got != v {
			t.Errorf("CanonicalizeNaN(%s) = %s", v, got)
		}
	}
}
