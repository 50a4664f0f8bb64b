package compiler

import (
	"fmt"
	"strconv"

	"github.com/xyproto/env/v2"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/machine"
)

// Environment variables read by SettingsFromEnv.
const (
	EnvOptLevel        = "WASMC_OPT_LEVEL"
	EnvParallelism     = "WASMC_PARALLELISM"
	EnvCanonicalizeNaN = "WASMC_NAN_CANONICALIZATION"
	EnvVerifier        = "WASMC_VERIFIER"
)

// Settings are the backend independent knobs of a compilation.
type Settings struct {
	OptLevel machine.OptLevel
	// Parallelism bounds the trampoline generation workers. Zero means GOMAXPROCS.
	Parallelism     int
	CanonicalizeNaN bool
	Verify          bool
}

// DefaultSettings returns settings for the default optimization level with
// NaN canonicalization and the verifier off.
func DefaultSettings() Settings {
	return Settings{OptLevel: machine.OptDefault}
}

// Options returns the machine options for these settings.
func (s Settings) Options() machine.Options {
	opts := machine.DefaultOptions()
	opts.OptLevel = s.OptLevel
	opts.CanonicalizeNaN = s.CanonicalizeNaN
	opts.Verify = s.Verify
	return opts
}

func (s Settings) String() string {
	return fmt.Sprintf("opt=%s parallelism=%d nan-canon=%t verify=%t", s.OptLevel, s.Parallelism, s.CanonicalizeNaN, s.Verify)
}

// lookup reads one variable.
type lookup func(name string) (string, bool)

func processEnv(name string) (string, bool) {
	if !env.Has(name) {
		return "", false
	}
	return env.Str(name), true
}

// SettingsFromEnv applies WASMC_* overrides to base. Unset variables keep
// the base value; malformed ones are an error.
func SettingsFromEnv(base Settings) (Settings, error) {
	return applyEnv(base, processEnv)
}

// MustSettingsFromEnv is like SettingsFromEnv but ignores malformed
// variables, logging them instead.
func MustSettingsFromEnv(base Settings) Settings {
	s, err := SettingsFromEnv(base)
	if err != nil {
		Logger().Warn("ignoring environment overrides", zap.Error(err))
		return base
	}
	return s
}

func applyEnv(s Settings, get lookup) (Settings, error) {
	if v, ok := get(EnvOptLevel); ok {
		lvl, err := machine.ParseOptLevel(v)
		if err != nil {
			return s, fmt.Errorf("%s: %w", EnvOptLevel, err)
		}
		s.OptLevel = lvl
	}
	if v, ok := get(EnvParallelism); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return s, fmt.Errorf("%s: invalid worker count %q", EnvParallelism, v)
		}
		s.Parallelism = n
	}
	var err error
	if s.CanonicalizeNaN, err = envBool(get, EnvCanonicalizeNaN, s.CanonicalizeNaN); err != nil {
		return s, err
	}
	if s.Verify, err = envBool(get, EnvVerifier, s.Verify); err != nil {
		return s, err
	}
	return s, nil
}

func envBool(get lookup, name string, def bool) (bool, error) {
	v, ok := get(name)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch v {
		case "on", "yes", "enabled":
			return true, nil
		case "off", "no", "disabled":
			return false, nil
		}
		return def, fmt.Errorf("%s: invalid boolean %q", name, v)
	}
	return b, nil
}

// mapEnv is a fixed environment, used by tests and the CLI config file.
func mapEnv(m map[string]string) lookup {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// SettingsFromMap applies overrides held in m, keyed like the WASMC_*
// environment variables.
func SettingsFromMap(base Settings, m map[string]string) (Settings, error) {
	return applyEnv(base, mapEnv(m))
}
