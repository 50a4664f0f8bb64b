package machine_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/wasm"
)

func sampleOps() []machine.Op {
	e := machine.NewEmitter()
	e.AllocSRet(5, 20)
	e.PassSRet(machine.Location{Reg: "rdi"})
	e.PassContext(machine.Location{Reg: "rsi"})
	e.LoadArg(0, 0, wasm.ValV128, machine.Location{Reg: "xmm0"})
	e.LoadArg(1, 2, wasm.ValI32, machine.Location{Stack: 16})
	e.Call(2)
	e.CanonNaN(0, wasm.ValF64)
	e.LoadSRetField(0, 0, 0, wasm.ValI32)
	e.StoreResult(1, 1, wasm.ValF32, machine.Location{Reg: "xmm0", Offset: 4})
	e.Return()
	return e.Ops()
}

func TestEncodeDecodeOps(t *testing.T) {
	ops := sampleOps()
	enc := machine.EncodeOps(0x86, ops)

	tag, got, n, err := machine.DecodeOps(enc)
	if err != nil {
		t.Fatalf("DecodeOps: %v", err)
	}
	if tag != 0x86 || n != len(enc) {
		t.Errorf("tag = %#x, n = %d", tag, n)
	}
	if len(got) != len(ops) {
		t.Fatalf("got %d ops, want %d", len(got), len(ops))
	}
	for i := range ops {
		if got[i] != ops[i] {
			t.Errorf("op %d = %+v, want %+v", i, got[i], ops[i])
		}
	}

	if _, _, _, err := machine.DecodeOps(enc[:len(enc)-3]); err == nil {
		t.Error("expected error for truncated input")
	}
}

func TestCodeBufferConcurrentAppend(t *testing.T) {
	m, err := machine.Build(tgt("x86_64-unknown-linux-gnu"), machine.DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	buf := m.NewCodeBuffer()
	ops := sampleOps()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			buf.Append(fmt.Sprintf("trmp%d", i), ops)
		}(i)
	}
	wg.Wait()

	syms := buf.Symbols()
	if len(syms) != 16 {
		t.Fatalf("symbols = %d", len(syms))
	}
	code := buf.Bytes()
	end := 0
	for _, s := range syms {
		if s.Offset != end {
			t.Errorf("%s at %d, want %d", s.Name, s.Offset, end)
		}
		end = s.Offset + s.Size
	}
	if end != len(code) || buf.Len() != len(code) {
		t.Errorf("symbols cover %d bytes, code has %d", end, len(code))
	}

	text, err := machine.Disassemble(code, syms)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	for _, want := range []string{"trmp0:", "arch=x86_64", "alloc.sret", "load.arg", "v128 args[0] -> xmm0", "returns[1]", "ret"} {
		if !strings.Contains(text, want) {
			t.Errorf("disassembly missing %q", want)
		}
	}
}

func TestDisassembleRejectsBadSymbol(t *testing.T) {
	_, err := machine.Disassemble([]byte{1, 2}, []machine.Symbol{{Name: "x", Offset: 1, Size: 4}})
	if err == nil {
		t.Error("expected error")
	}
}
