// Package machine builds target machines: configured code generators for
// one architecture and CPU feature set.
//
// Architectures are provided by subsystems. Initialize registers the
// built-in x86-64 and AArch64 subsystems exactly once per process and is
// called by Build, so explicit calls are optional but harmless.
//
// Build checks, in order:
//
//  1. a subsystem exists for the architecture (else UnsupportedTarget);
//  2. every mandatory feature is present (else MissingRequiredFeature).
//
// It then renders the native feature string and fixes the relocation mode
// to static and the code model to large.
//
// Trampolines are emitted as op programs. An Emitter collects the ops of
// one trampoline; the CodeBuffer shared by a compilation serializes them
// and is the only state touched by more than one goroutine.
package machine
