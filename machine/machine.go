package machine

import (
	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/target"
)

// Requirements lists the CPU features a backend cannot generate code
// without, per architecture.
type Requirements map[target.Architecture][]target.CPUFeature

// Mandatory returns the required features for arch.
func (r Requirements) Mandatory(arch target.Architecture) []target.CPUFeature {
	return r[arch]
}

// Machine is a read-only handle to a configured code generator for one
// target. It is safe for concurrent use.
type Machine struct {
	sub           *Subsystem
	target        target.Target
	featureString string
	opts          Options
}

// Build validates t and returns a machine for it.
//
// The architecture is checked first: without a subsystem the result is
// UnsupportedTarget and no feature is looked at. Then every mandatory
// feature must be present, otherwise MissingRequiredFeature names the first
// one missing. RelocMode and CodeModel in opts are overridden with the
// fixed static/large policy.
func Build(t target.Target, opts Options, req Requirements) (*Machine, error) {
	Initialize()

	sub, ok := Lookup(t.Arch())
	if !ok {
		return nil, errors.UnsupportedTarget(t.ArchName())
	}

	cpu := t.CPUFeatures()
	for _, f := range req.Mandatory(sub.Arch) {
		if !cpu.Contains(f) {
			return nil, errors.MissingRequiredFeature(sub.Arch.String(), f.String())
		}
	}

	opts.RelocMode = RelocStatic
	opts.CodeModel = CodeModelLarge

	return &Machine{
		sub:           sub,
		target:        t,
		featureString: sub.FeatureString(cpu),
		opts:          opts,
	}, nil
}

// Arch returns the machine's architecture.
func (m *Machine) Arch() target.Architecture { return m.sub.Arch }

// Target returns the target the machine was built for.
func (m *Machine) Target() target.Target { return m.target }

// CPU returns the CPU features the machine may use.
func (m *Machine) CPU() target.CPUFeatureSet { return m.target.CPUFeatures() }

// FeatureString returns the native feature string, e.g. "+avx2,+sse4.1".
func (m *Machine) FeatureString() string { return m.featureString }

// Options returns the emitter options.
func (m *Machine) Options() Options { return m.opts }

// CallingConvention returns the native calling convention.
func (m *Machine) CallingConvention() *CallingConvention { return m.sub.Convention }

// ReturnPolicy returns the direct-return table of the native ABI.
func (m *Machine) ReturnPolicy() abi.ReturnPolicy { return m.sub.Returns }

// NewCodeBuffer returns an empty code buffer tagged for this machine.
func (m *Machine) NewCodeBuffer() *CodeBuffer {
	return newCodeBuffer(m.sub.Tag)
}

// Describe renders a one-line summary.
func (m *Machine) Describe() string {
	fs := m.featureString
	if fs == "" {
		fs = "-"
	}
	return m.target.Triple().String() + " features=" + fs + " " + m.opts.String()
}
