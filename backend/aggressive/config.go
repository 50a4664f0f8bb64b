package aggressive

import (
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
)

// Name is the backend name.
const Name = "aggressive"

// Requirements lists the CPU features this backend cannot generate code
// without.
var Requirements = machine.Requirements{
	target.ArchX86_64:  {target.CPUSSE2, target.CPUAVX2},
	target.ArchAArch64: {target.CPUNEON},
}

// Config configures the aggressive backend.
type Config struct {
	compiler.BaseConfig
}

// New returns a configuration for t with aggressive optimization and NaN
// canonicalization on.
func New(t target.Target) *Config {
	c := &Config{BaseConfig: compiler.NewBaseConfig(t)}
	s := c.MutSettings()
	s.OptLevel = machine.OptAggressive
	s.CanonicalizeNaN = true
	return c
}

// CanonicalizeNaN toggles rewriting of NaN results to the canonical NaN.
func (c *Config) CanonicalizeNaN(enable bool) *Config {
	c.MutSettings().CanonicalizeNaN = enable
	return c
}

// EnableVerifier turns on verification of generated code.
func (c *Config) EnableVerifier() *Config {
	c.MutSettings().Verify = true
	return c
}

// OptLevel sets the optimization level.
func (c *Config) OptLevel(level machine.OptLevel) *Config {
	c.MutSettings().OptLevel = level
	return c
}

// TargetMachine builds the target machine for the current configuration.
// It fails with UnsupportedTarget or MissingRequiredFeature.
func (c *Config) TargetMachine() (*machine.Machine, error) {
	return machine.Build(c.Target(), c.Settings().Options(), Requirements)
}

// Compiler returns a compiler for the current configuration.
func (c *Config) Compiler() compiler.Compiler {
	return &Compiler{compiler.NewPipeline(Name, c.Target(), c.Features(), c.Settings(), Requirements, backend{})}
}

// Compiler is the aggressive compiler.
type Compiler struct {
	*compiler.Pipeline
}

type backend struct{}

func (backend) RuntimeConfig() wazero.RuntimeConfig {
	return wazero.NewRuntimeConfig()
}
