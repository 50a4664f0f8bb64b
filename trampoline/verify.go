package trampoline

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/wasm"
)

// program order: prologue, arguments, call, epilogue
const (
	stagePrologue = iota
	stageArgs
	stageCall
	stageEpilogue
	stageDone
)

// Verify checks a trampoline's op program against its shape. All problems
// found are reported, combined into one error.
func Verify(t *Trampoline) error {
	var errs error
	fail := func(i int, op machine.Op, format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf("%s op %d (%s): %s", t.name, i, op.Code, fmt.Sprintf(format, args...)))
	}

	indirect := t.shape.Return == abi.ReturnIndirect
	stage := stagePrologue
	var calls, contexts, loads, stores, srets int

	for i, op := range t.ops {
		if stage == stageDone {
			fail(i, op, "after return")
			continue
		}
		switch op.Code {
		case machine.OpAllocSRet, machine.OpPassSRet:
			if !indirect {
				fail(i, op, "struct return in direct trampoline")
			}
			if stage != stagePrologue || contexts > 0 {
				fail(i, op, "struct return must precede the context")
			}
			srets++
		case machine.OpPassContext:
			if stage != stagePrologue {
				fail(i, op, "context after arguments")
			}
			contexts++
			stage = stageArgs
		case machine.OpLoadArg:
			if stage != stageArgs {
				fail(i, op, "argument load outside argument sequence")
			}
			checkSlot(t.shape.Params, t.shape.ParamOffsets, op, fail, i)
			loads++
		case machine.OpCall:
			if stage != stageArgs {
				fail(i, op, "call without context")
			}
			if op.Imm != len(t.attrs) {
				fail(i, op, "call carries %d attributes, trampoline has %d", op.Imm, len(t.attrs))
			}
			calls++
			stage = stageCall
		case machine.OpCanonNaN:
			if stage != stageCall {
				fail(i, op, "canonicalization must directly follow the call")
			}
			if op.Type != wasm.ValF32 && op.Type != wasm.ValF64 {
				fail(i, op, "canonicalizing non-float %s", op.Type)
			}
			if op.Index < 0 || op.Index >= len(t.shape.Results) || t.shape.Results[op.Index] != op.Type {
				fail(i, op, "no %s result at index %d", op.Type, op.Index)
			}
		case machine.OpStoreResult:
			if indirect {
				fail(i, op, "register result in indirect trampoline")
			}
			if stage < stageCall {
				fail(i, op, "result before call")
			}
			stage = stageEpilogue
			checkSlot(t.shape.Results, t.shape.ResultOffsets, op, fail, i)
			stores++
		case machine.OpLoadSRetField:
			if !indirect {
				fail(i, op, "struct field in direct trampoline")
			}
			if stage < stageCall {
				fail(i, op, "struct field before call")
			}
			stage = stageEpilogue
			checkSlot(t.shape.Results, t.shape.ResultOffsets, op, fail, i)
			if op.Index >= 0 && op.Index < len(t.shape.SRet.Fields) && t.shape.SRet.Fields[op.Index].Offset != op.Imm {
				fail(i, op, "field offset %d, layout has %d", op.Imm, t.shape.SRet.Fields[op.Index].Offset)
			}
			stores++
		case machine.OpReturn:
			if stage < stageCall {
				fail(i, op, "return before call")
			}
			stage = stageDone
		default:
			fail(i, op, "unknown op")
		}
	}

	if stage != stageDone {
		errs = multierr.Append(errs, fmt.Errorf("%s: program does not end in return", t.name))
	}
	if calls != 1 {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d calls, want 1", t.name, calls))
	}
	if contexts != 1 {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d context passes, want 1", t.name, contexts))
	}
	if loads != len(t.shape.Params) {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d argument loads for %d params", t.name, loads, len(t.shape.Params)))
	}
	if stores != len(t.shape.Results) {
		errs = multierr.Append(errs, fmt.Errorf("%s: %d result stores for %d results", t.name, stores, len(t.shape.Results)))
	}
	if indirect && srets != 2 {
		errs = multierr.Append(errs, fmt.Errorf("%s: struct return not allocated and passed", t.name))
	}
	return errs
}

func checkSlot(types []wasm.ValType, offsets []int, op machine.Op, fail func(int, machine.Op, string, ...any), i int) {
	if op.Index < 0 || op.Index >= len(types) {
		fail(i, op, "index %d out of range [0,%d)", op.Index, len(types))
		return
	}
	if types[op.Index] != op.Type {
		fail(i, op, "type %s, signature has %s", op.Type, types[op.Index])
	}
	if offsets[op.Index] != op.Slot {
		fail(i, op, "slot %d, layout has %d", op.Slot, offsets[op.Index])
	}
}
