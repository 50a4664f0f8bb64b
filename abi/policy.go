package abi

import (
	"fmt"
	"strings"
)

// ReturnKind says how a callee hands results back.
type ReturnKind uint8

const (
	// ReturnDirect returns results in registers.
	ReturnDirect ReturnKind = iota
	// ReturnIndirect writes results through a hidden aggregate pointer
	// passed as the first argument.
	ReturnIndirect
)

func (k ReturnKind) String() string {
	if k == ReturnIndirect {
		return "indirect"
	}
	return "direct"
}

// ReturnPolicy is a native ABI's rule for which result bit-width
// sequences come back in registers. Anything not listed is indirect.
type ReturnPolicy struct {
	direct map[string]struct{}
	name   string
	// AnySingle makes every one-value sequence direct regardless of width.
	AnySingle bool
}

// NewReturnPolicy builds a policy from its allow-list. The empty sequence
// is always direct.
func NewReturnPolicy(name string, anySingle bool, direct ...[]int) ReturnPolicy {
	p := ReturnPolicy{
		name:      name,
		AnySingle: anySingle,
		direct:    map[string]struct{}{"": {}},
	}
	for _, seq := range direct {
		p.direct[widthKey(seq)] = struct{}{}
	}
	return p
}

func widthKey(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = fmt.Sprint(w)
	}
	return strings.Join(parts, ",")
}

// Name identifies the ABI the table was derived from.
func (p ReturnPolicy) Name() string {
	return p.name
}

// Classify returns the return kind for a bit-width sequence.
func (p ReturnPolicy) Classify(widths []int) ReturnKind {
	if len(widths) == 1 && p.AnySingle {
		return ReturnDirect
	}
	if _, ok := p.direct[widthKey(widths)]; ok {
		return ReturnDirect
	}
	return ReturnIndirect
}

// DirectSequences returns the allow-list, excluding the implicit empty sequence.
func (p ReturnPolicy) DirectSequences() []string {
	out := make([]string, 0, len(p.direct))
	for k := range p.direct {
		if k != "" {
			out = append(out, "["+k+"]")
		}
	}
	return out
}

// SystemVReturns is the direct-return table for the System V x86-64 ABI as
// seen through LLVM's multi-value lowering.
var SystemVReturns = NewReturnPolicy("sysv-x86_64", true,
	[]int{32, 64},
	[]int{64, 32},
	[]int{64, 64},
	[]int{32, 32},
	[]int{32, 32, 32},
	[]int{32, 32, 64},
	[]int{64, 32, 32},
	[]int{32, 32, 32, 32},
)

// AAPCS64Returns is the AArch64 table. The aggressive backend lowers
// multi-value returns through the same LLVM struct path on both
// architectures, so the sequences match SystemVReturns.
var AAPCS64Returns = NewReturnPolicy("aapcs64", true,
	[]int{32, 64},
	[]int{64, 32},
	[]int{64, 64},
	[]int{32, 32},
	[]int{32, 32, 32},
	[]int{32, 32, 64},
	[]int{64, 32, 32},
	[]int{32, 32, 32, 32},
)
