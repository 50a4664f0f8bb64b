package wasmcompiler

import (
	"fmt"
	"strings"

	"github.com/wippyai/wasm-compiler/backend/aggressive"
	"github.com/wippyai/wasm-compiler/backend/optimizing"
	"github.com/wippyai/wasm-compiler/backend/singlepass"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/target"
)

// Version is the module version.
const Version = "0.3.0"

// Config is the configuration surface shared by all backends.
type Config interface {
	compiler.Config
	Settings() compiler.Settings
	SetSettings(compiler.Settings)
}

// DefaultBackend is used when no backend is named.
const DefaultBackend = singlepass.Name

// Backends returns the backend names in increasing optimization order.
func Backends() []string {
	return []string{singlepass.Name, optimizing.Name, aggressive.Name}
}

// NewConfig returns the default configuration of the named backend for t.
// An empty name selects DefaultBackend.
func NewConfig(backend string, t target.Target) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", singlepass.Name:
		return singlepass.New(t), nil
	case optimizing.Name:
		return optimizing.New(t), nil
	case aggressive.Name:
		return aggressive.New(t), nil
	}
	return nil, fmt.Errorf("unknown backend %q (have %s)", backend, strings.Join(Backends(), ", "))
}
