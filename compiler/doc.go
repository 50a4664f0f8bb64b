// Package compiler defines the contract between embedders and compiler
// backends, and the compilation pipeline the backends share.
//
// A backend is selected through its Config, which is mutated freely and
// then asked for a Compiler. The Compiler is a snapshot: it never observes
// later changes to the Config.
//
//	cfg := aggressive.New(target.Host())
//	cfg.MutFeatures().Insert(target.FeatureThreads)
//	c := cfg.Compiler()
//	art, err := c.Compile(ctx, mod)
//
// Compile builds the target machine, checks the module against the enabled
// features, lowers function bodies and generates one trampoline per
// distinct signature. It returns either a complete Artifact or an error.
//
// Settings that do not belong to any backend in particular (optimization
// level, worker count, NaN canonicalization, verifier) can be overridden
// through WASMC_* environment variables; see SettingsFromEnv.
package compiler
