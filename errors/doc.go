// Package errors provides structured error types for the wasm-compiler library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the offending target and feature names, a path to the
// offending item and a cause chain.
//
// The compiler error taxonomy maps onto Kinds:
//
//	UnsupportedTarget         KindUnsupportedTarget  architecture has no backend
//	MissingRequiredFeature    KindMissingFeature     mandatory CPU feature absent
//	TrampolineGenerationError KindTrampoline         signature/arity contract violation
//	LoweringError             KindLowering           propagated from a backend
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseTarget, errors.KindMissingFeature).
//		Target("x86_64").
//		Feature("avx2").
//		Detail("required by the aggressive backend").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnsupportedTarget("riscv64")
//	err := errors.TrampolineGeneration(idx, "expected %d params, got %d", 4, n)
//
// All errors implement the standard error interface and support errors.Is/As.
// The sentinels (ErrUnsupportedTarget, ErrMissingRequiredFeature, ...) match on
// kind alone, so callers can test categories without caring about the phase.
package errors
