package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/backend/singlepass"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/engine"
	werrors "github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/wasm"
	"github.com/wippyai/wasm-compiler/wasm/wasmtest"
)

var (
	i32  = wasm.ValI32
	i64  = wasm.ValI64
	v128 = wasm.ValV128
)

func build(t *testing.T, b *wasmtest.Builder) *compiler.Artifact {
	t.Helper()
	mod, err := compiler.NewModule("test", b.Module())
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	c := singlepass.New(target.New(target.MustParseTriple("x86_64-unknown-linux-gnu"), 0)).Compiler()
	a, err := c.Compile(context.Background(), mod)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func newEngine(t *testing.T, a *compiler.Artifact) *engine.Engine {
	t.Helper()
	e, err := engine.New(context.Background(), a)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func fiveI32() wasm.FuncType {
	return wasmtest.Sig(nil, i32, i32, i32, i32, i32)
}

func TestCallExports(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.New()
	b.Func("add", wasmtest.Sig(wasmtest.Params(i32, i32), i32), nil,
		wasmtest.Body(wasmtest.LocalGet(0), wasmtest.LocalGet(1), wasmtest.Op(wasmtest.OpI32Add)))
	b.Func("pair", wasmtest.Sig(wasmtest.Params(i64), i64, i32), nil,
		wasmtest.Body(wasmtest.LocalGet(0), wasmtest.I32Const(7)))
	b.Func("five", fiveI32(), nil,
		wasmtest.Body(wasmtest.I32Const(1), wasmtest.I32Const(2), wasmtest.I32Const(3), wasmtest.I32Const(4), wasmtest.I32Const(5)))

	inst, err := newEngine(t, build(t, b)).Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	tests := []struct {
		name string
		args []abi.Value
		want []abi.Value
	}{
		{"add", []abi.Value{abi.ValueI32(40), abi.ValueI32(2)}, []abi.Value{abi.ValueI32(42)}},
		{"add", []abi.Value{abi.ValueI32(-1), abi.ValueI32(1)}, []abi.Value{abi.ValueI32(0)}},
		{"pair", []abi.Value{abi.ValueI64(1 << 40)}, []abi.Value{abi.ValueI64(1 << 40), abi.ValueI32(7)}},
		{"five", nil, []abi.Value{abi.ValueI32(1), abi.ValueI32(2), abi.ValueI32(3), abi.ValueI32(4), abi.ValueI32(5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inst.Call(ctx, tt.name, tt.args...)
			if err != nil {
				t.Fatalf("Call: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d results, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("result[%d] = %s, want %s", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestCallErrors(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.New()
	b.Func("add", wasmtest.Sig(wasmtest.Params(i32, i32), i32), nil,
		wasmtest.Body(wasmtest.LocalGet(0), wasmtest.LocalGet(1), wasmtest.Op(wasmtest.OpI32Add)))
	b.Func("boom", wasmtest.Sig(nil), nil, wasmtest.Body(wasmtest.Op(wasmtest.OpUnreachable)))
	b.Func("vec", wasmtest.Sig(wasmtest.Params(v128), i32), nil, wasmtest.Body(wasmtest.I32Const(0)))

	inst, err := newEngine(t, build(t, b)).Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "missing"); !werrors.IsKind(err, werrors.KindNotFound) {
		t.Errorf("missing export: got %v, want not found", err)
	}
	if _, err := inst.Call(ctx, "add", abi.ValueI32(1)); err == nil {
		t.Error("short argument list accepted")
	}
	if _, err := inst.Call(ctx, "boom"); !errors.Is(err, werrors.ErrTrap) {
		t.Errorf("unreachable: got %v, want trap", err)
	}
	if _, err := inst.Call(ctx, "vec", abi.ValueV128(1, 2)); !werrors.IsKind(err, werrors.KindUnsupported) {
		t.Errorf("v128 export: got %v, want unsupported", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := inst.Call(canceled, "add", abi.ValueI32(1), abi.ValueI32(2)); !werrors.IsKind(err, werrors.KindCanceled) {
		t.Errorf("canceled: got %v, want canceled", err)
	}
}

func TestHostImports(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.New()
	logIdx := b.ImportFunc("env", "log", wasmtest.Sig(wasmtest.Params(i64)))
	fiveIdx := b.ImportFunc("env", "five", fiveI32())
	b.Func("run", wasmtest.Sig(wasmtest.Params(i64)), nil,
		wasmtest.Body(wasmtest.LocalGet(0), wasmtest.Call(logIdx)))
	b.Func("relay", fiveI32(), nil, wasmtest.Body(wasmtest.Call(fiveIdx)))

	e := newEngine(t, build(t, b))

	var (
		mu     sync.Mutex
		logged []int64
	)
	if err := e.Bind("env", "log", func(_ context.Context, args []abi.Value) ([]abi.Value, error) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, args[0].I64())
		return nil, nil
	}); err != nil {
		t.Fatalf("Bind log: %v", err)
	}
	if err := e.Bind("env", "five", func(context.Context, []abi.Value) ([]abi.Value, error) {
		return []abi.Value{abi.ValueI32(10), abi.ValueI32(20), abi.ValueI32(30), abi.ValueI32(40), abi.ValueI32(50)}, nil
	}); err != nil {
		t.Fatalf("Bind five: %v", err)
	}

	inst, err := e.Instantiate(ctx)
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "run", abi.ValueI64(-9)); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(logged) != 1 || logged[0] != -9 {
		t.Errorf("logged = %v, want [-9]", logged)
	}

	got, err := inst.Call(ctx, "relay")
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	for i, v := range got {
		if want := int32(10 * (i + 1)); v.I32() != want {
			t.Errorf("relay[%d] = %d, want %d", i, v.I32(), want)
		}
	}

	// host modules are linked once; a second instance shares them
	second, err := e.Instantiate(ctx)
	if err != nil {
		t.Fatalf("second Instantiate: %v", err)
	}
	defer second.Close(ctx)
	if second.ID() != inst.ID()+1 {
		t.Errorf("ID = %d, want %d", second.ID(), inst.ID()+1)
	}

	if err := e.Bind("env", "log", nil); !werrors.IsKind(err, werrors.KindInvalidInput) {
		t.Errorf("Bind after Instantiate: got %v, want invalid input", err)
	}
}

func TestHostErrorTraps(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.New()
	idx := b.ImportFunc("env", "fail", wasmtest.Sig(nil, i32))
	b.Func("run", wasmtest.Sig(nil, i32), nil, wasmtest.Body(wasmtest.Call(idx)))

	e := newEngine(t, build(t, b))
	hostErr := errors.New("host failure")
	if err := e.Bind("env", "fail", func(context.Context, []abi.Value) ([]abi.Value, error) {
		return nil, hostErr
	}); err != nil {
		t.Fatal(err)
	}
	inst, err := e.Instantiate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer inst.Close(ctx)

	if _, err := inst.Call(ctx, "run"); !errors.Is(err, werrors.ErrTrap) {
		t.Errorf("got %v, want trap", err)
	}
}

func TestLinkingErrors(t *testing.T) {
	ctx := context.Background()
	b := wasmtest.New()
	b.ImportFunc("env", "log", wasmtest.Sig(wasmtest.Params(i64)))
	b.Func("noop", wasmtest.Sig(nil), nil, wasmtest.Body())
	e := newEngine(t, build(t, b))

	if err := e.Bind("env", "nope", nil); !werrors.IsKind(err, werrors.KindNotFound) {
		t.Errorf("Bind unknown: got %v, want not found", err)
	}
	_, err := e.Instantiate(ctx)
	var we *werrors.Error
	if !errors.As(err, &we) || we.Kind != werrors.KindNotFound || we.Phase != werrors.PhaseLinking {
		t.Errorf("unbound import: got %v, want linking not found", err)
	}
}

func TestV128ImportRejected(t *testing.T) {
	b := wasmtest.New()
	b.ImportFunc("env", "vec", wasmtest.Sig(wasmtest.Params(v128)))
	b.Func("noop", wasmtest.Sig(nil), nil, wasmtest.Body())
	e := newEngine(t, build(t, b))

	if err := e.Bind("env", "vec", func(context.Context, []abi.Value) ([]abi.Value, error) { return nil, nil }); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Instantiate(context.Background()); !werrors.IsKind(err, werrors.KindUnsupported) {
		t.Errorf("got %v, want unsupported", err)
	}
}
