package compiler

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
	"github.com/wippyai/wasm-compiler/trampoline"
	"github.com/wippyai/wasm-compiler/wasm"
)

// Backend is the part of a compiler that differs between implementations:
// how function bodies are lowered and what the lowered callees look like
// to a trampoline.
type Backend interface {
	trampoline.Lowering
	// RuntimeConfig returns the wazero configuration that lowers function
	// bodies. Core features are applied by the pipeline.
	RuntimeConfig() wazero.RuntimeConfig
}

// Pipeline is the compilation sequence shared by all backends:
//
//	target machine -> feature check -> signature table -> lowering -> trampolines
//
// A Pipeline is an immutable snapshot and implements Compiler.
type Pipeline struct {
	backend  Backend
	reqs     machine.Requirements
	name     string
	target   target.Target
	settings Settings
	features target.Features
}

// NewPipeline snapshots a backend configuration.
func NewPipeline(name string, t target.Target, features target.Features, settings Settings, reqs machine.Requirements, backend Backend) *Pipeline {
	return &Pipeline{
		name:     name,
		target:   t,
		features: features,
		settings: settings,
		reqs:     reqs,
		backend:  backend,
	}
}

// Name returns the backend name.
func (p *Pipeline) Name() string { return p.name }

// Target returns the compilation target.
func (p *Pipeline) Target() target.Target { return p.target }

// Features returns the enabled WebAssembly features.
func (p *Pipeline) Features() target.Features { return p.features }

// Settings returns the compilation settings.
func (p *Pipeline) Settings() Settings { return p.settings }

// Machine builds the target machine for this pipeline.
func (p *Pipeline) Machine() (*machine.Machine, error) {
	return machine.Build(p.target, p.settings.Options(), p.reqs)
}

// Compile compiles m. On any error no artifact is returned.
func (p *Pipeline) Compile(ctx context.Context, m *Module) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Canceled(errors.PhaseCompile, err)
	}
	start := time.Now()
	log := Logger().With(zap.String("backend", p.name), zap.String("module", m.Name()))

	mach, err := p.Machine()
	if err != nil {
		return nil, err
	}
	log.Debug("target machine ready", zap.String("machine", mach.Describe()))

	if err := p.checkFeatures(m.Wasm()); err != nil {
		return nil, err
	}
	sigs := m.Signatures()
	if err := checkSignatures(sigs); err != nil {
		return nil, err
	}

	cache, runtimeCfg, err := p.lower(ctx, m)
	if err != nil {
		return nil, err
	}

	table, err := trampoline.Generate(ctx, mach, sigs, p.backend, trampoline.Options{Parallelism: p.settings.Parallelism})
	if err != nil {
		if cerr := cache.Close(context.Background()); cerr != nil {
			log.Warn("release lowered code", zap.Error(cerr))
		}
		return nil, err
	}

	a := &Artifact{
		target:      p.target,
		machine:     mach,
		sigs:        sigs,
		trampolines: table,
		cache:       cache,
		runtimeCfg:  runtimeCfg,
		backend:     p.name,
		name:        m.Name(),
		binary:      m.Binary(),
		settings:    p.settings,
		features:    p.features,
	}
	a.functions, a.exports = functionInfo(m.Wasm(), sigs)

	log.Debug("module compiled",
		zap.Int("functions", len(a.functions)),
		zap.Int("signatures", sigs.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return a, nil
}

// checkFeatures rejects modules that use disabled WebAssembly features.
func (p *Pipeline) checkFeatures(m *wasm.Module) error {
	checks := []struct {
		used    bool
		feature target.Feature
		what    string
	}{
		{m.UsesV128(), target.FeatureSIMD, "v128 values"},
		{m.UsesMultiValue(), target.FeatureMultiValue, "multiple results"},
		{m.UsesSharedMemory(), target.FeatureThreads, "shared memory"},
	}
	for _, c := range checks {
		if c.used && !p.features.Contains(c.feature) {
			return errors.New(errors.PhaseCompile, errors.KindUnsupported).
				Feature(c.feature.String()).
				Detail("module uses %s but %s is disabled", c.what, c.feature).
				Build()
		}
	}
	return nil
}

// checkSignatures rejects signatures with reference types; trampolines
// only marshal numeric values.
func checkSignatures(sigs *wasm.SignatureTable) error {
	for i, ft := range sigs.Signatures() {
		for _, t := range append(append([]wasm.ValType(nil), ft.Params...), ft.Results...) {
			if !t.IsNumeric() {
				return errors.New(errors.PhaseCompile, errors.KindUnsupported).
					Path(wasm.SigIndex(i).String()).
					Detail("signature %s uses %s", ft, t).
					Build()
			}
		}
	}
	return nil
}

// lower compiles function bodies with wazero into a compilation cache
// that outlives the lowering runtime.
func (p *Pipeline) lower(ctx context.Context, m *Module) (wazero.CompilationCache, wazero.RuntimeConfig, error) {
	cache := wazero.NewCompilationCache()
	cfg := p.backend.RuntimeConfig().
		WithCoreFeatures(p.features.CoreFeatures()).
		WithCompilationCache(cache)

	rt := wazero.NewRuntimeWithConfig(ctx, cfg)
	defer func() {
		if err := rt.Close(ctx); err != nil {
			Logger().Warn("close lowering runtime", zap.Error(err))
		}
	}()

	if _, err := rt.CompileModule(ctx, m.Binary()); err != nil {
		if cerr := cache.Close(ctx); cerr != nil {
			Logger().Warn("release lowered code", zap.Error(cerr))
		}
		if ctx.Err() != nil {
			return nil, nil, errors.Canceled(errors.PhaseLower, ctx.Err())
		}
		return nil, nil, errors.Lowering(p.name, err)
	}
	return cache, cfg, nil
}

func functionInfo(m *wasm.Module, sigs *wasm.SignatureTable) ([]FunctionInfo, map[string]uint32) {
	infos := make([]FunctionInfo, 0, m.NumFuncs())
	for _, imp := range m.Imports {
		if imp.Desc.Kind != wasm.KindFunc {
			continue
		}
		sig, _ := sigs.ForType(imp.Desc.TypeIdx)
		infos = append(infos, FunctionInfo{
			Index:        uint32(len(infos)),
			ImportModule: imp.Module,
			ImportName:   imp.Name,
			Imported:     true,
			Type:         m.Types[imp.Desc.TypeIdx].Clone(),
			Sig:          sig,
		})
	}
	for i, typeIdx := range m.Funcs {
		sig, _ := sigs.ForType(typeIdx)
		info := FunctionInfo{
			Index: uint32(len(infos)),
			Type:  m.Types[typeIdx].Clone(),
			Sig:   sig,
		}
		if i < len(m.Code) {
			for _, l := range m.Code[i].Locals {
				info.Locals += int(l.Count)
			}
			info.CodeSize = len(m.Code[i].Code)
		}
		infos = append(infos, info)
	}

	exports := make(map[string]uint32)
	for _, exp := range m.Exports {
		if exp.Kind != wasm.KindFunc || int(exp.Idx) >= len(infos) {
			continue
		}
		if infos[exp.Idx].Export == "" {
			infos[exp.Idx].Export = exp.Name
		}
		exports[exp.Name] = exp.Idx
	}
	return infos, exports
}

func (p *Pipeline) String() string {
	return fmt.Sprintf("%s(%s, %s)", p.name, p.target, p.settings)
}
