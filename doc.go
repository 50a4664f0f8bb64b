// Package wasmcompiler is a WebAssembly compiler-backend abstraction with
// a native-ABI trampoline generator.
//
// # Architecture Overview
//
//	wasmcompiler/        Root package: backend registry and version
//	├── target/          Triples, architectures, CPU and wasm feature sets
//	├── machine/         Target machine builder, calling conventions, op encoding
//	├── abi/             Slot buffers, return policies, struct-return aggregates
//	├── trampoline/      Shapes, parallel generation, verifier, runtime calls
//	├── compiler/        Config and Compiler interfaces, pipeline, artifacts
//	├── backend/         singlepass, optimizing and aggressive backends
//	├── engine/          wazero instantiation through trampolines
//	├── witabi/          WIT function types to core signatures
//	├── wasm/            Core wasm binary decoding, encoding and validation
//	├── errors/          Structured error types
//	└── cmd/wasmc/       CLI
//
// # Quick Start
//
//	cfg, err := wasmcompiler.NewConfig("aggressive", target.Host())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	mod, err := compiler.ParseModule("add", wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	art, err := cfg.Compiler().Compile(ctx, mod)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer art.Close(ctx)
//
//	e, _ := engine.New(ctx, art)
//	inst, _ := e.Instantiate(ctx)
//	res, err := inst.Call(ctx, "add", abi.ValueI32(40), abi.ValueI32(2))
//
// # Trampolines
//
// Every distinct function signature of a module gets one trampoline named
// trmp<N>, where N is the signature's dense index. A trampoline moves
// arguments from 8-byte slots into the native calling convention, passes
// the VM context, calls the function and stores the results back. Result
// sequences the native ABI cannot return in registers come back through a
// caller-allocated struct-return aggregate.
//
// # Thread Safety
//
// Config values are mutable and single-goroutine. Compilers, artifacts,
// trampoline tables and engines are safe for concurrent use.
package wasmcompiler
