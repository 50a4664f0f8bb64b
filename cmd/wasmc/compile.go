package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-compiler/abi"
	"github.com/wippyai/wasm-compiler/compiler"
)

func getCompileCmd(gs *globalState) *cobra.Command {
	return &cobra.Command{
		Use:   "compile file.wasm",
		Short: "Compile a module and print a summary",
		Long: `Compile a module and print a summary of the target machine, the
functions and the generated trampolines.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := compileFile(gs, args[0])
			if err != nil {
				return err
			}
			defer a.Close(gs.ctx)
			printSummary(gs.stdout, styler{tty: gs.stdoutTTY}, a)
			return nil
		},
	}
}

func printSummary(w io.Writer, st styler, a *compiler.Artifact) {
	row := func(label, value string) {
		fmt.Fprintf(w, "%s %s\n", st.render(labelStyle, fmt.Sprintf("%-14s", label+":")), value)
	}

	fmt.Fprintln(w, st.render(titleStyle, "module "+a.Name()))
	row("backend", a.Backend())
	row("target", a.Target().String())
	row("machine", a.Machine().Describe())
	row("features", a.Features().String())
	row("settings", a.Settings().String())

	tr := a.Trampolines()
	row("trampolines", fmt.Sprintf("%d (%d bytes)", tr.Len(), len(tr.Code())))
	fmt.Fprintln(w)

	for _, fn := range a.Functions() {
		t, _ := a.Trampoline(fn.Index)
		kind := abi.ReturnDirect
		if t != nil {
			kind = t.Shape().Return
		}
		fmt.Fprintf(w, "  %3d %-24s %s %s %s\n",
			fn.Index,
			st.render(funcStyle, functionLabel(fn)),
			st.render(typeStyle, fn.Type.String()),
			fn.Sig,
			kind)
	}
}

func functionLabel(fn compiler.FunctionInfo) string {
	switch {
	case fn.Imported:
		return "import " + fn.ImportModule + "." + fn.ImportName
	case fn.Export != "":
		return fn.Export
	}
	return "-"
}

// exports lists the exported functions in index order.
func exports(a *compiler.Artifact) []compiler.FunctionInfo {
	var out []compiler.FunctionInfo
	for _, fn := range a.Functions() {
		if fn.Export != "" && !fn.Imported {
			out = append(out, fn)
		}
	}
	return out
}

func joinValues(vals []abi.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = v.String()
	}
	return strings.Join(parts, " ")
}
