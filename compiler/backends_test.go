package compiler_test

import (
	"testing"

	"github.com/wippyai/wasm-compiler/backend/aggressive"
	"github.com/wippyai/wasm-compiler/backend/optimizing"
	"github.com/wippyai/wasm-compiler/backend/singlepass"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/wasm/wasmtest"
)

// Backends differ in lowering and annotations, never in trampoline shape.
func TestBackendsAgreeOnShapes(t *testing.T) {
	tgt := target.New(target.MustParseTriple("x86_64-unknown-linux-gnu"),
		target.NewCPUFeatureSet(target.CPUSSE2, target.CPUAVX2))
	configs := []compiler.Config{
		singlepass.New(tgt),
		optimizing.New(tgt),
		aggressive.New(tgt),
	}

	b := wasmtest.New()
	b.Func("pair", wasmtest.Sig(nil, i32, i32), nil, wasmtest.Body(wasmtest.I32Const(1), wasmtest.I32Const(2)))
	b.Func("five", wasmtest.Sig(nil, i32, i32, i32, i32, i32), nil,
		wasmtest.Body(wasmtest.I32Const(1), wasmtest.I32Const(2), wasmtest.I32Const(3), wasmtest.I32Const(4), wasmtest.I32Const(5)))
	b.Func("wide", wasmtest.Sig(wasmtest.Params(v128, i32), f64), nil, wasmtest.Body(wasmtest.F64Const(0)))

	var first *compiler.Artifact
	for _, cfg := range configs {
		m, err := compiler.NewModule("shapes", b.Module())
		if err != nil {
			t.Fatal(err)
		}
		a := compile(t, cfg.Compiler(), m)
		if first == nil {
			first = a
			continue
		}
		for _, tr := range a.Trampolines().All() {
			ref, ok := first.Trampolines().Lookup(tr.Index())
			if !ok || !ref.Shape().Equal(tr.Shape()) {
				t.Errorf("%s %s: shape %s differs from %s", a.Backend(), tr.Name(), tr.Shape(), ref.Shape())
			}
			if len(ref.LoweredParams()) != len(tr.LoweredParams()) {
				t.Errorf("%s %s: lowered params differ", a.Backend(), tr.Name())
			}
		}
	}
	if first == nil {
		t.Fatal("nothing compiled")
	}
}
