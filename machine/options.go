package machine

import (
	"fmt"
	"strings"
)

// OptLevel is the emitter optimization level.
type OptLevel uint8

const (
	OptNone OptLevel = iota
	OptLess
	OptDefault
	OptAggressive
)

var optLevelNames = [...]string{
	OptNone:       "none",
	OptLess:       "less",
	OptDefault:    "default",
	OptAggressive: "aggressive",
}

func (o OptLevel) String() string {
	if int(o) < len(optLevelNames) {
		return optLevelNames[o]
	}
	return fmt.Sprintf("OptLevel(%d)", uint8(o))
}

// ParseOptLevel accepts the names printed by String and the -O spellings 0-3.
func ParseOptLevel(s string) (OptLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "0", "o0":
		return OptNone, nil
	case "less", "1", "o1":
		return OptLess, nil
	case "default", "2", "o2":
		return OptDefault, nil
	case "aggressive", "3", "o3":
		return OptAggressive, nil
	}
	return 0, fmt.Errorf("unknown optimization level %q", s)
}

// RelocMode selects how generated code references addresses.
type RelocMode uint8

const (
	RelocStatic RelocMode = iota
	RelocPIC
	RelocDynamicNoPIC
)

func (r RelocMode) String() string {
	switch r {
	case RelocPIC:
		return "pic"
	case RelocDynamicNoPIC:
		return "dynamic-no-pic"
	}
	return "static"
}

// CodeModel bounds the reach of generated address references.
type CodeModel uint8

const (
	CodeModelSmall CodeModel = iota
	CodeModelKernel
	CodeModelMedium
	CodeModelLarge
)

func (c CodeModel) String() string {
	switch c {
	case CodeModelKernel:
		return "kernel"
	case CodeModelMedium:
		return "medium"
	case CodeModelLarge:
		return "large"
	}
	return "small"
}

// Options parameterize the emitter. RelocMode and CodeModel are fixed
// policy: Build always sets them to RelocStatic and CodeModelLarge.
type Options struct {
	OptLevel        OptLevel
	RelocMode       RelocMode
	CodeModel       CodeModel
	CanonicalizeNaN bool
	Verify          bool
}

// DefaultOptions returns aggressive optimization with the fixed policy.
func DefaultOptions() Options {
	return Options{
		OptLevel:  OptAggressive,
		RelocMode: RelocStatic,
		CodeModel: CodeModelLarge,
	}
}

func (o Options) String() string {
	return fmt.Sprintf("opt=%s reloc=%s model=%s nan-canon=%t verify=%t",
		o.OptLevel, o.RelocMode, o.CodeModel, o.CanonicalizeNaN, o.Verify)
}
