package machine

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/target"
)

// Subsystem is the code generation support for one architecture.
type Subsystem struct {
	// Vocabulary maps the CPU features this backend understands to their
	// native feature-string spelling. Features not listed are omitted.
	Vocabulary map[target.CPUFeature]string
	Convention *CallingConvention
	Returns    abi.ReturnPolicy
	Arch       target.Architecture
	// Tag prefixes encoded trampolines so that code for one architecture
	// is never decoded as another.
	Tag byte
}

// FeatureString translates the present CPU features into the subsystem's
// native spelling: filter to known features, sort, join with ','.
func (s *Subsystem) FeatureString(cpu target.CPUFeatureSet) string {
	var parts []string
	for _, f := range cpu.All() {
		if name, ok := s.Vocabulary[f]; ok {
			parts = append(parts, name)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

var (
	subsystemsMu sync.RWMutex
	subsystems   = make(map[target.Architecture]*Subsystem)
	initOnce     sync.Once
)

// RegisterSubsystem makes an architecture available to Build. It panics
// when the same architecture is registered twice.
func RegisterSubsystem(s *Subsystem) {
	if s == nil {
		panic("machine: subsystem must be non-nil")
	}
	if s.Arch == target.ArchUnknown {
		panic("machine: cannot register subsystem for unknown architecture")
	}

	subsystemsMu.Lock()
	defer subsystemsMu.Unlock()

	if _, exists := subsystems[s.Arch]; exists {
		panic(fmt.Sprintf("machine: subsystem for %s already registered", s.Arch))
	}
	subsystems[s.Arch] = s
}

// Initialize registers the built-in x86-64 and AArch64 subsystems. It is
// safe to call any number of times from any goroutine; only the first call
// does work. Build calls it.
func Initialize() {
	initOnce.Do(func() {
		RegisterSubsystem(x86_64Subsystem())
		RegisterSubsystem(aarch64Subsystem())
	})
}

// Lookup returns the subsystem registered for arch.
func Lookup(arch target.Architecture) (*Subsystem, bool) {
	subsystemsMu.RLock()
	defer subsystemsMu.RUnlock()
	s, ok := subsystems[arch]
	return s, ok
}

// Architectures lists the registered architectures.
func Architectures() []target.Architecture {
	subsystemsMu.RLock()
	defer subsystemsMu.RUnlock()
	out := make([]target.Architecture, 0, len(subsystems))
	for a := range subsystems {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

const (
	tagX86_64  byte = 0x86
	tagAArch64 byte = 0xA8
)

func x86_64Subsystem() *Subsystem {
	return &Subsystem{
		Arch: target.ArchX86_64,
		Tag:  tagX86_64,
		Vocabulary: map[target.CPUFeature]string{
			target.CPUSSE2:     "+sse2",
			target.CPUSSE3:     "+sse3",
			target.CPUSSSE3:    "+ssse3",
			target.CPUSSE41:    "+sse4.1",
			target.CPUSSE42:    "+sse4.2",
			target.CPUPOPCNT:   "+popcnt",
			target.CPUAVX:      "+avx",
			target.CPUBMI1:     "+bmi",
			target.CPUBMI2:     "+bmi2",
			target.CPUAVX2:     "+avx2",
			target.CPUFMA:      "+fma",
			target.CPULZCNT:    "+lzcnt",
			target.CPUAVX512F:  "+avx512f",
			target.CPUAVX512DQ: "+avx512dq",
			target.CPUAVX512VL: "+avx512vl",
		},
		Convention: SystemV,
		Returns:    abi.SystemVReturns,
	}
}

func aarch64Subsystem() *Subsystem {
	return &Subsystem{
		Arch: target.ArchAArch64,
		Tag:  tagAArch64,
		Vocabulary: map[target.CPUFeature]string{
			target.CPUNEON: "+neon",
			target.CPULSE:  "+lse",
			target.CPUCRC:  "+crc",
			target.CPUAES:  "+aes",
			target.CPUSHA2: "+sha2",
			target.CPUFP16: "+fullfp16",
		},
		Convention: AAPCS64,
		Returns:    abi.AAPCS64Returns,
	}
}
