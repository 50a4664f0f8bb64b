package main

import (
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/machine"
	"github.com/wippyai/wasm-compiler/target"
)

func TestReadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	data := `
backend: aggressive
target: aarch64-unknown-linux-gnu
cpu: [neon]
features:
  enable: [threads]
  disable: [simd]
settings:
  WASMC_VERIFIER: "on"
  WASMC_OPT_LEVEL: default
`
	if err := afero.WriteFile(fs, "wasmc.yaml", []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	conf, err := readConfig(fs, "wasmc.yaml")
	if err != nil {
		t.Fatalf("readConfig: %v", err)
	}
	if conf.Backend != "aggressive" || conf.Target != "aarch64-unknown-linux-gnu" {
		t.Errorf("got backend=%q target=%q", conf.Backend, conf.Target)
	}
	if len(conf.CPU) != 1 || conf.CPU[0] != "neon" {
		t.Errorf("CPU = %v, want [neon]", conf.CPU)
	}
	if len(conf.Features.Enable) != 1 || len(conf.Features.Disable) != 1 {
		t.Errorf("Features = %+v", conf.Features)
	}
	if conf.Settings["WASMC_VERIFIER"] != "on" {
		t.Errorf("Settings = %v", conf.Settings)
	}
}

func TestNewCompilerFromConfig(t *testing.T) {
	ts := newTestState(t)
	data := "backend: aggressive\ntarget: aarch64-unknown-linux-gnu\ncpu: [neon]\nfeatures:\n  disable: [simd]\nsettings:\n  WASMC_OPT_LEVEL: default\n"
	if err := afero.WriteFile(ts.fs, "wasmc.yaml", []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	ts.env[envConfig] = "wasmc.yaml"

	c, err := newCompiler(ts.globalState)
	if err != nil {
		t.Fatalf("newCompiler: %v", err)
	}
	if c.Name() != "aggressive" {
		t.Errorf("Name = %q, want aggressive", c.Name())
	}
	if c.Target().Arch() != target.ArchAArch64 {
		t.Errorf("Arch = %s, want aarch64", c.Target().Arch())
	}
	if c.Features().Contains(target.FeatureSIMD) {
		t.Error("simd still enabled")
	}

	a, err := c.Compile(ts.ctx, mustModule(t, ts))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer a.Close(ts.ctx)
	if a.Settings().OptLevel != machine.OptDefault {
		t.Errorf("OptLevel = %s, want default", a.Settings().OptLevel)
	}
	if !a.Settings().CanonicalizeNaN {
		t.Error("aggressive default for NaN canonicalization lost")
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	ts := newTestState(t)
	if err := afero.WriteFile(ts.fs, "wasmc.yaml", []byte("backend: aggressive\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ts.flags.configPath = "wasmc.yaml"
	ts.flags.backend = "optimizing"
	ts.flags.target = testTarget

	c, err := newCompiler(ts.globalState)
	if err != nil {
		t.Fatalf("newCompiler: %v", err)
	}
	if c.Name() != "optimizing" {
		t.Errorf("Name = %q, want optimizing", c.Name())
	}
}

func TestNewCompilerErrors(t *testing.T) {
	tests := []struct {
		name   string
		config string
		flags  globalFlags
		want   string
	}{
		{name: "backend", flags: globalFlags{backend: "llvm"}, want: "unknown backend"},
		{name: "feature", flags: globalFlags{target: testTarget, enable: []string{"gc"}}, want: "unknown feature"},
		{name: "cpu", flags: globalFlags{target: testTarget, cpu: "sse2,warp"}, want: "unknown CPU features"},
		{name: "setting", config: "settings:\n  WASMC_PARALLELISM: lots\n", want: "WASMC_PARALLELISM"},
		{name: "yaml", config: "backend: [\n", want: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestState(t)
			ts.flags = tt.flags
			if tt.config != "" {
				if err := afero.WriteFile(ts.fs, "c.yaml", []byte(tt.config), 0o644); err != nil {
					t.Fatal(err)
				}
				ts.flags.configPath = "c.yaml"
			}
			_, err := newCompiler(ts.globalState)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func mustModule(t *testing.T, ts *testState) *compiler.Module {
	t.Helper()
	m, err := loadModule(ts.globalState, "add.wasm")
	if err != nil {
		t.Fatalf("loadModule: %v", err)
	}
	return m
}
