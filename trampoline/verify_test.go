package trampoline_test

import (
	"context"
	"testing"

	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

func TestVerifyAcceptsGeneratedPrograms(t *testing.T) {
	opts := machine.DefaultOptions()
	opts.Verify = true
	opts.CanonicalizeNaN = true
	for _, triple := range []string{"x86_64-unknown-linux-gnu", "aarch64-unknown-linux-gnu"} {
		m := newMachine(t, triple, opts)
		sigs := wasm.NewSignatureTable(nil)
		for _, s := range []wasm.FuncType{
			sig(nil),
			sig([]wasm.ValType{i32, i64, f32, f64, v128}, v128),
			sig([]wasm.ValType{f64}, f32, f64, i32),
			sig(nil, i64, i64, i64, i64, i64, i64, i64, i64),
			sig([]wasm.ValType{i32, i32, i32, i32, i32, i32, i32, i32, i32}, i32, i32, i32, i32),
		} {
			sigs.Declare(s)
		}
		table, err := trampoline.Generate(context.Background(), m, sigs, stdLowering{}, trampoline.Options{})
		if err != nil {
			t.Fatalf("%s: Generate with verifier: %v", triple, err)
		}
		for _, tr := range table.All() {
			if err := trampoline.Verify(tr); err != nil {
				t.Errorf("%s %s: %v", triple, tr.Name(), err)
			}
		}
	}
}
