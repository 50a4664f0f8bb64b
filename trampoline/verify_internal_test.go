package trampoline

import (
	"testing"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/wasm"
)

type plainLowering struct{}

func (plainLowering) LoweredParams(_ wasm.SigIndex, sig wasm.FuncType, shape Shape) []abi.Param {
	return abi.LoweredParams(sig, shape.Return)
}

func (plainLowering) Attributes(wasm.SigIndex, wasm.FuncType, Shape) []abi.Attribute { return nil }

func TestVerifyReportsEveryProblem(t *testing.T) {
	m, err := machine.Build(target.New(target.MustParseTriple("x86_64-unknown-linux-gnu"), target.NewCPUFeatureSet()), machine.DefaultOptions(), nil)
	if err != nil {
		t.Fatal(err)
	}
	sig := wasm.FuncType{Params: []wasm.ValType{wasm.ValI32, wasm.ValV128}, Results: []wasm.ValType{wasm.ValI64}}
	tr, err := build(m, 0, sig, plainLowering{})
	if err != nil {
		t.Fatal(err)
	}
	if err := Verify(tr); err != nil {
		t.Fatalf("clean program rejected: %v", err)
	}

	// wrong slot on the second argument, and the return dropped
	bad := *tr
	bad.ops = append([]machine.Op(nil), tr.ops[:len(tr.ops)-1]...)
	for i := range bad.ops {
		if bad.ops[i].Code == machine.OpLoadArg && bad.ops[i].Index == 1 {
			bad.ops[i].Slot = 7
		}
	}
	err = Verify(&bad)
	if got := len(multierr.Errors(err)); got != 2 {
		t.Errorf("Verify reported %d problems, want 2: %v", got, err)
	}
}
