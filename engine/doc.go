// Package engine runs compiled artifacts.
//
// Every call that crosses between Go and guest code goes through the
// artifact's trampolines: export calls via Instance.Call and imported host
// functions registered with Engine.Bind. Indirect returns therefore reach
// Go as struct-return aggregates and are flattened back into result slots
// before the guest sees them.
//
//	e, err := engine.New(ctx, artifact)
//	_ = e.Bind("env", "log", logFn)
//	inst, err := e.Instantiate(ctx)
//	results, err := inst.Call(ctx, "add", abi.ValueI32(1), abi.ValueI32(2))
//
// v128 values cannot cross the host boundary; such exports and imports
// fail with an unsupported error.
package engine
