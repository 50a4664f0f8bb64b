package compiler

import "github.com/wippyai/wasm-compiler/target"

// BaseConfig holds the state every backend configuration shares. Backends
// embed it and add their own Compiler method.
type BaseConfig struct {
	target   target.Target
	features target.Features
	settings Settings
}

// NewBaseConfig returns a configuration for t with the default WebAssembly
// features and settings.
func NewBaseConfig(t target.Target) BaseConfig {
	return BaseConfig{
		target:   t,
		features: target.DefaultFeatures(),
		settings: DefaultSettings(),
	}
}

func (c *BaseConfig) Features() target.Features     { return c.features }
func (c *BaseConfig) MutFeatures() *target.Features { return &c.features }
func (c *BaseConfig) Target() target.Target         { return c.target }
func (c *BaseConfig) SetTarget(t target.Target)     { c.target = t }
func (c *BaseConfig) Settings() Settings            { return c.settings }
func (c *BaseConfig) MutSettings() *Settings        { return &c.settings }
func (c *BaseConfig) SetSettings(s Settings)        { c.settings = s }
