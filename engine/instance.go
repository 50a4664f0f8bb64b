package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/errors"
)

// Instance is one instantiation of an artifact. Calls into it go through
// the trampoline of the callee's signature.
type Instance struct {
	engine *Engine
	module api.Module
	id     uint64
}

// ID is a per-engine sequence number, starting at 1.
func (i *Instance) ID() uint64 { return i.id }

// Memory returns the instance's default memory, or nil.
func (i *Instance) Memory() api.Memory { return i.module.Memory() }

// Call invokes the exported function name with args and returns its
// results. Argument types must match the export's signature.
func (i *Instance) Call(ctx context.Context, name string, args ...abi.Value) ([]abi.Value, error) {
	info, ok := i.engine.artifact.Export(name)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	tr, ok := i.engine.artifact.Trampoline(info.Index)
	if !ok {
		return nil, errors.NotFound(errors.PhaseRuntime, "trampoline", info.Sig.String())
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}
	if _, _, err := apiTypes(info.Type); err != nil {
		return nil, err
	}

	shape := tr.Shape()
	callee := abi.CalleeFunc(func(ctx context.Context, site *abi.CallSite) ([]abi.Value, error) {
		size := max(len(shape.Params), len(shape.Results))
		stack := make([]uint64, size)
		for j, v := range site.Args {
			stack[j] = v.Lo
		}
		if err := fn.CallWithStack(ctx, stack); err != nil {
			return nil, errors.Trap(fmt.Sprintf("%s: %v", name, err), err)
		}
		results := make([]abi.Value, len(shape.Results))
		for j, t := range shape.Results {
			results[j] = abi.FromBits(t, stack[j])
		}
		if site.SRet != nil {
			return nil, site.SRet.StoreAll(results)
		}
		return results, nil
	})

	results, err := tr.Invoke(ctx, i, callee, args...)
	if err != nil {
		Logger().Debug("call failed",
			zap.String("export", name),
			zap.Uint64("instance", i.id),
			zap.Error(err))
		return nil, err
	}
	return results, nil
}

// Close releases the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}
