package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/engine"
	"github.com/wippyai/wasm-compiler/wasm"
)

func getCallCmd(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "call file.wasm export [args...]",
		Short: "Call an exported function through its trampoline",
		Long: `Call an exported function through its trampoline.

  Arguments are parsed according to the export's parameter types. Imported
  functions are bound to stubs that log the call and return zero values.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := compileFile(gs, args[0])
			if err != nil {
				return err
			}
			defer a.Close(gs.ctx)

			fn, ok := a.Export(args[1])
			if !ok {
				return fmt.Errorf("no exported function %q", args[1])
			}
			vals, err := parseArgs(fn.Type, args[2:])
			if err != nil {
				return err
			}

			inst, closeFn, err := instantiate(gs, a)
			if err != nil {
				return err
			}
			defer closeFn()

			results, err := inst.Call(gs.ctx, fn.Export, vals...)
			if err != nil {
				return err
			}
			st := styler{tty: gs.stdoutTTY}
			for _, v := range results {
				fmt.Fprintln(gs.stdout, st.render(resultStyle, v.String()))
			}
			return nil
		},
	}
}

func parseArgs(ft wasm.FuncType, args []string) ([]abi.Value, error) {
	if len(args) != len(ft.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", ft, len(ft.Params), len(args))
	}
	vals := make([]abi.Value, len(args))
	for i, s := range args {
		v, err := abi.ParseValue(ft.Params[i], s)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// instantiate creates an engine with every import bound to a stub.
func instantiate(gs *globalState, a *compiler.Artifact) (*engine.Instance, func(), error) {
	e, err := engine.New(gs.ctx, a)
	if err != nil {
		return nil, nil, err
	}
	for _, fn := range a.Functions() {
		if !fn.Imported {
			continue
		}
		if err := e.Bind(fn.ImportModule, fn.ImportName, stubImport(gs, fn)); err != nil {
			_ = e.Close(gs.ctx)
			return nil, nil, err
		}
	}
	inst, err := e.Instantiate(gs.ctx)
	if err != nil {
		_ = e.Close(gs.ctx)
		return nil, nil, err
	}
	return inst, func() {
		if err := e.Close(gs.ctx); err != nil {
			gs.logger.Warn("close engine", zap.Error(err))
		}
	}, nil
}

func stubImport(gs *globalState, fn compiler.FunctionInfo) engine.HostFunc {
	results := make([]abi.Value, len(fn.Type.Results))
	for i, t := range fn.Type.Results {
		results[i] = abi.FromBits(t, 0)
	}
	name := fn.ImportModule + "." + fn.ImportName
	return func(_ context.Context, args []abi.Value) ([]abi.Value, error) {
		fmt.Fprintf(gs.stderr, "%s(%s)\n", name, joinValues(args))
		return append([]abi.Value(nil), results...), nil
	}
}
