package machine

import (
	"fmt"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Location is where a value lives at the native call boundary: a register
// (with a byte offset when several results share one register) or a
// stack offset from the outgoing argument area.
type Location struct {
	Reg    string
	Stack  int
	Offset int
}

// InReg reports whether the location is a register.
func (l Location) InReg() bool {
	return l.Reg != ""
}

func (l Location) String() string {
	if !l.InReg() {
		return fmt.Sprintf("[sp+%d]", l.Stack)
	}
	if l.Offset > 0 {
		return fmt.Sprintf("%s+%d", l.Reg, l.Offset)
	}
	return l.Reg
}

type resultRule uint8

const (
	resultsSysV resultRule = iota
	resultsAAPCS64
)

// CallingConvention describes register assignment for one native ABI.
type CallingConvention struct {
	Name string
	// IntArgs and FloatArgs are the argument registers in order.
	IntArgs   []string
	FloatArgs []string
	// SRetReg is the struct-return pointer register. When SRetConsumesArg
	// is set it is also the first integer argument register.
	SRetReg         string
	SRetConsumesArg bool
	IntResults      []string
	FloatResults    []string
	StackAlign      int
	results         resultRule
}

// SystemV is the System V AMD64 calling convention.
var SystemV = &CallingConvention{
	Name:            "sysv",
	IntArgs:         []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"},
	FloatArgs:       []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"},
	SRetReg:         "rdi",
	SRetConsumesArg: true,
	IntResults:      []string{"rax", "rdx"},
	FloatResults:    []string{"xmm0", "xmm1"},
	StackAlign:      16,
	results:         resultsSysV,
}

// AAPCS64 is the ARM 64-bit procedure call standard.
var AAPCS64 = &CallingConvention{
	Name:         "aapcs64",
	IntArgs:      []string{"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7"},
	FloatArgs:    []string{"v0", "v1", "v2", "v3", "v4", "v5", "v6", "v7"},
	SRetReg:      "x8",
	IntResults:   []string{"x0", "x1"},
	FloatResults: []string{"v0", "v1", "v2", "v3"},
	StackAlign:   16,
	results:      resultsAAPCS64,
}

func isFloatClass(t wasm.ValType) bool {
	return t == wasm.ValF32 || t == wasm.ValF64 || t == wasm.ValV128
}

func stackSize(t wasm.ValType) int {
	if t == wasm.ValV128 {
		return 16
	}
	return 8
}

// Assign maps lowered callee parameters to native locations.
func (cc *CallingConvention) Assign(params []abi.Param) []Location {
	locs := make([]Location, len(params))
	nextInt, nextFloat, stack := 0, 0, 0
	spill := func(size int) Location {
		stack = (stack + size - 1) &^ (size - 1)
		l := Location{Stack: stack}
		stack += size
		return l
	}
	for i, p := range params {
		switch {
		case p.Kind == abi.ParamSRet:
			locs[i] = Location{Reg: cc.SRetReg}
			if cc.SRetConsumesArg {
				nextInt++
			}
		case p.Kind == abi.ParamVMContext || !isFloatClass(p.Type):
			if nextInt < len(cc.IntArgs) {
				locs[i] = Location{Reg: cc.IntArgs[nextInt]}
				nextInt++
			} else {
				locs[i] = spill(8)
			}
		default:
			if nextFloat < len(cc.FloatArgs) {
				locs[i] = Location{Reg: cc.FloatArgs[nextFloat]}
				nextFloat++
			} else {
				locs[i] = spill(stackSize(p.Type))
			}
		}
	}
	return locs
}

// AssignResults maps directly returned results to registers, treating a
// multi-value return as the aggregate LLVM lowers it to. It returns false
// when the aggregate does not fit the result registers.
func (cc *CallingConvention) AssignResults(results []wasm.ValType) ([]Location, bool) {
	if len(results) == 0 {
		return nil, true
	}
	if len(results) == 1 {
		if isFloatClass(results[0]) {
			return []Location{{Reg: cc.FloatResults[0]}}, true
		}
		return []Location{{Reg: cc.IntResults[0]}}, true
	}
	if cc.results == resultsAAPCS64 {
		if locs, ok := cc.homogeneousFloat(results); ok {
			return locs, true
		}
	}
	return cc.eightbytes(results)
}

// homogeneousFloat handles AArch64 HFA/HVA returns: up to four members of
// one floating point or vector type, one per register.
func (cc *CallingConvention) homogeneousFloat(results []wasm.ValType) ([]Location, bool) {
	if len(results) > len(cc.FloatResults) || !isFloatClass(results[0]) {
		return nil, false
	}
	locs := make([]Location, len(results))
	for i, t := range results {
		if t != results[0] {
			return nil, false
		}
		locs[i] = Location{Reg: cc.FloatResults[i]}
	}
	return locs, true
}

// eightbytes splits the aggregate into 8-byte chunks. On System V a chunk
// holding only floats goes to an SSE register; every other chunk, and every
// chunk on AArch64, goes to the next integer register.
func (cc *CallingConvention) eightbytes(results []wasm.ValType) ([]Location, bool) {
	layout := abi.LayoutOf(results)
	if layout.Size > 16 {
		return nil, false
	}
	chunks := (layout.Size + 7) / 8
	regs := make([]string, chunks)
	nextInt, nextFloat := 0, 0
	for c := 0; c < chunks; c++ {
		allFloat := true
		for _, f := range layout.Fields {
			if f.Offset/8 == c && !isFloatClass(f.Type) {
				allFloat = false
			}
		}
		if allFloat && cc.results == resultsSysV {
			if nextFloat >= len(cc.FloatResults) {
				return nil, false
			}
			regs[c] = cc.FloatResults[nextFloat]
			nextFloat++
			continue
		}
		if nextInt >= len(cc.IntResults) {
			return nil, false
		}
		regs[c] = cc.IntResults[nextInt]
		nextInt++
	}
	locs := make([]Location, len(results))
	for i, f := range layout.Fields {
		locs[i] = Location{Reg: regs[f.Offset/8], Offset: f.Offset % 8}
	}
	return locs, true
}
