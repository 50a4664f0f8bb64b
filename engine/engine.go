package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/errors"
	"github.com/wippyai/wasm-compiler/wasm"
)

// HostFunc implements an imported function. It receives the arguments as
// typed values and returns one value per declared result.
type HostFunc func(ctx context.Context, args []abi.Value) ([]abi.Value, error)

// Engine instantiates one compiled artifact. Host functions are bound
// first, then any number of instances may be created. Engine is safe for
// concurrent use.
type Engine struct {
	artifact  *compiler.Artifact
	runtime   wazero.Runtime
	compiled  wazero.CompiledModule
	hosts     map[string]map[string]HostFunc
	hostsMu   sync.Mutex
	linkMu    sync.Mutex
	linked    atomic.Bool
	instances atomic.Uint64
}

// New prepares an engine for a. The artifact's lowered code is reused, so
// this does not compile function bodies again.
func New(ctx context.Context, a *compiler.Artifact) (*Engine, error) {
	rt := wazero.NewRuntimeWithConfig(ctx, a.RuntimeConfig())
	compiled, err := rt.CompileModule(ctx, a.Binary())
	if err != nil {
		_ = rt.Close(ctx)
		return nil, errors.Lowering(a.Backend(), err)
	}
	return &Engine{
		artifact: a,
		runtime:  rt,
		compiled: compiled,
		hosts:    make(map[string]map[string]HostFunc),
	}, nil
}

// Artifact returns the artifact the engine runs.
func (e *Engine) Artifact() *compiler.Artifact { return e.artifact }

// Bind implements the import module.name with fn. All imports must be
// bound before the first Instantiate.
func (e *Engine) Bind(module, name string, fn HostFunc) error {
	if e.linked.Load() {
		return errors.New(errors.PhaseLinking, errors.KindInvalidInput).
			Path(module, name).
			Detail("host functions must be bound before instantiation").
			Build()
	}
	if !e.hasImport(module, name) {
		return errors.NotFound(errors.PhaseLinking, "import", module+"."+name)
	}

	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()
	if e.hosts[module] == nil {
		e.hosts[module] = make(map[string]HostFunc)
	}
	e.hosts[module][name] = fn
	return nil
}

func (e *Engine) hasImport(module, name string) bool {
	for _, fn := range e.artifact.Functions() {
		if fn.Imported && fn.ImportModule == module && fn.ImportName == name {
			return true
		}
	}
	return false
}

// link instantiates one host module per import namespace. It runs once.
func (e *Engine) link(ctx context.Context) error {
	if e.linked.Load() {
		return nil
	}
	e.linkMu.Lock()
	defer e.linkMu.Unlock()
	if e.linked.Load() {
		return nil
	}

	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	builders := make(map[string]wazero.HostModuleBuilder)
	var order []string
	for _, fn := range e.artifact.Functions() {
		if !fn.Imported {
			continue
		}
		host, ok := e.hosts[fn.ImportModule][fn.ImportName]
		if !ok {
			return errors.New(errors.PhaseLinking, errors.KindNotFound).
				Path(fn.ImportModule, fn.ImportName).
				Detail("import %s.%s is not bound", fn.ImportModule, fn.ImportName).
				Build()
		}
		gofn, err := e.hostFunction(fn, host)
		if err != nil {
			return err
		}
		b, ok := builders[fn.ImportModule]
		if !ok {
			b = e.runtime.NewHostModuleBuilder(fn.ImportModule)
			builders[fn.ImportModule] = b
			order = append(order, fn.ImportModule)
		}
		params, results, err := apiTypes(fn.Type)
		if err != nil {
			return err
		}
		b.NewFunctionBuilder().
			WithGoModuleFunction(gofn, params, results).
			WithName(fn.ImportName).
			Export(fn.ImportName)
	}

	for _, name := range order {
		if _, err := builders[name].Instantiate(ctx); err != nil {
			return errors.Instantiation(fmt.Errorf("host module %s: %w", name, err))
		}
		debugf("host module %s linked", name)
	}
	e.linked.Store(true)
	return nil
}

// hostFunction routes a guest call to host through the trampoline of the
// import's signature.
func (e *Engine) hostFunction(fn compiler.FunctionInfo, host HostFunc) (api.GoModuleFunc, error) {
	tr, ok := e.artifact.Trampoline(fn.Index)
	if !ok {
		return nil, errors.NotFound(errors.PhaseLinking, "trampoline", fn.Sig.String())
	}
	shape := tr.Shape()
	callee := abi.CalleeFunc(func(ctx context.Context, site *abi.CallSite) ([]abi.Value, error) {
		results, err := host(ctx, site.Args)
		if err != nil {
			return nil, err
		}
		if site.SRet != nil {
			return nil, site.SRet.StoreAll(results)
		}
		return results, nil
	})
	qualified := fn.ImportModule + "." + fn.ImportName

	return func(ctx context.Context, mod api.Module, stack []uint64) {
		args := abi.GetBuffer(shape.ParamSlots)
		returns := abi.GetBuffer(shape.ResultSlots)
		defer abi.PutBuffer(args)
		defer abi.PutBuffer(returns)
		for i := 0; i < shape.ParamSlots; i++ {
			_ = args.SetUint64(i, stack[i])
		}
		if err := tr.Call(ctx, mod, callee, args, returns); err != nil {
			Logger().Debug("host function failed", zap.String("import", qualified), zap.Error(err))
			panic(err)
		}
		for i := 0; i < shape.ResultSlots; i++ {
			stack[i], _ = returns.Uint64(i)
		}
	}, nil
}

// apiTypes converts a signature for wazero. v128 cannot cross the host
// boundary.
func apiTypes(ft wasm.FuncType) (params, results []api.ValueType, err error) {
	conv := func(ts []wasm.ValType) ([]api.ValueType, error) {
		out := make([]api.ValueType, len(ts))
		for i, t := range ts {
			switch t {
			case wasm.ValI32:
				out[i] = api.ValueTypeI32
			case wasm.ValI64:
				out[i] = api.ValueTypeI64
			case wasm.ValF32:
				out[i] = api.ValueTypeF32
			case wasm.ValF64:
				out[i] = api.ValueTypeF64
			default:
				return nil, errors.Unsupported(errors.PhaseLinking, fmt.Sprintf("%s at the host boundary", t))
			}
		}
		return out, nil
	}
	if params, err = conv(ft.Params); err != nil {
		return nil, nil, err
	}
	if results, err = conv(ft.Results); err != nil {
		return nil, nil, err
	}
	return params, results, nil
}

// Instantiate links the bound host functions and creates an instance.
func (e *Engine) Instantiate(ctx context.Context) (*Instance, error) {
	if err := e.link(ctx); err != nil {
		return nil, err
	}
	n := e.instances.Add(1)
	cfg := wazero.NewModuleConfig().WithName("").WithStartFunctions()
	mod, err := e.runtime.InstantiateModule(ctx, e.compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	Logger().Debug("instance created", zap.String("module", e.artifact.Name()), zap.Uint64("instance", n))
	return &Instance{engine: e, module: mod, id: n}, nil
}

// Close releases the engine and all its instances. The artifact stays
// usable.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
