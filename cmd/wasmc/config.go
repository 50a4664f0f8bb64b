package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	wasmcompiler "github.com/wippyai/wasm-compiler"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/target"
)

// fileConfig is the YAML config file. Command line flags win over it.
//
//	backend: aggressive
//	target: x86_64-unknown-linux-gnu
//	cpu: [sse2, avx2]
//	features:
//	  disable: [simd]
//	settings:
//	  WASMC_VERIFIER: "on"
type fileConfig struct {
	Backend  string   `yaml:"backend"`
	Target   string   `yaml:"target"`
	CPU      []string `yaml:"cpu"`
	Features struct {
		Enable  []string `yaml:"enable"`
		Disable []string `yaml:"disable"`
	} `yaml:"features"`
	Settings map[string]string `yaml:"settings"`
}

func readConfig(fs afero.Fs, path string) (fileConfig, error) {
	var conf fileConfig
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return conf, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return conf, fmt.Errorf("parse config %s: %w", path, err)
	}
	return conf, nil
}

// loadConfig returns the file config, or an empty one when no file was
// named.
func loadConfig(gs *globalState) (fileConfig, error) {
	path := gs.flags.configPath
	if path == "" {
		if v, ok := gs.getenv(envConfig); ok {
			path = v
		}
	}
	if path == "" {
		return fileConfig{}, nil
	}
	return readConfig(gs.fs, path)
}

func resolveTarget(triple string, cpuNames []string) (target.Target, error) {
	if triple == "" {
		t := target.Host()
		if len(cpuNames) == 0 {
			return t, nil
		}
		triple = t.Triple().String()
	}
	tr, err := target.ParseTriple(triple)
	if err != nil {
		return target.Target{}, err
	}
	cpu, unknown := target.ParseCPUFeatureSet(strings.Join(cpuNames, ","))
	if len(unknown) > 0 {
		return target.Target{}, fmt.Errorf("unknown CPU features: %s", strings.Join(unknown, ", "))
	}
	return target.New(tr, cpu), nil
}

func applyFeatures(fs *target.Features, enable, disable []string) error {
	for _, list := range []struct {
		names []string
		apply func(target.Feature)
	}{
		{enable, fs.Insert},
		{disable, fs.Remove},
	} {
		for _, name := range list.names {
			f, ok := target.ParseFeature(name)
			if !ok {
				return fmt.Errorf("unknown feature %q", name)
			}
			list.apply(f)
		}
	}
	return nil
}

// newCompiler resolves defaults, then the config file, then the
// environment, then flags, and returns a compiler for the result.
func newCompiler(gs *globalState) (compiler.Compiler, error) {
	conf, err := loadConfig(gs)
	if err != nil {
		return nil, err
	}

	backend := firstNonEmpty(gs.flags.backend, conf.Backend)
	triple := firstNonEmpty(gs.flags.target, conf.Target)
	cpuNames := conf.CPU
	if gs.flags.cpu != "" {
		cpuNames = strings.Split(gs.flags.cpu, ",")
	}

	t, err := resolveTarget(triple, cpuNames)
	if err != nil {
		return nil, err
	}
	cfg, err := wasmcompiler.NewConfig(backend, t)
	if err != nil {
		return nil, err
	}

	settings, err := compiler.SettingsFromMap(cfg.Settings(), conf.Settings)
	if err != nil {
		return nil, fmt.Errorf("config settings: %w", err)
	}
	if settings, err = compiler.SettingsFromEnv(settings); err != nil {
		return nil, err
	}
	cfg.SetSettings(settings)

	if err := applyFeatures(cfg.MutFeatures(), conf.Features.Enable, conf.Features.Disable); err != nil {
		return nil, err
	}
	if err := applyFeatures(cfg.MutFeatures(), gs.flags.enable, gs.flags.disable); err != nil {
		return nil, err
	}

	c := cfg.Compiler()
	gs.logger.Debug("compiler ready",
		zap.String("backend", c.Name()),
		zap.Stringer("target", t),
		zap.Stringer("settings", settings))
	return c, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// loadModule reads and decodes a module file.
func loadModule(gs *globalState, path string) (*compiler.Module, error) {
	data, err := afero.ReadFile(gs.fs, path)
	if err != nil {
		return nil, fmt.Errorf("read module: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return compiler.ParseModule(name, data)
}

// compileFile loads and compiles path. The caller closes the artifact.
func compileFile(gs *globalState, path string) (*compiler.Artifact, error) {
	c, err := newCompiler(gs)
	if err != nil {
		return nil, err
	}
	m, err := loadModule(gs, path)
	if err != nil {
		return nil, err
	}
	return c.Compile(gs.ctx, m)
}
