package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-compiler/trampoline"
)

func getInspectCmd(gs *globalState) *cobra.Command {
	var funcName string

	cmd := &cobra.Command{
		Use:   "inspect file.wasm",
		Short: "Disassemble the generated trampolines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := compileFile(gs, args[0])
			if err != nil {
				return err
			}
			defer a.Close(gs.ctx)

			if funcName == "" {
				text, err := a.Trampolines().Disassemble()
				if err != nil {
					return err
				}
				_, err = io.WriteString(gs.stdout, text)
				return err
			}

			fn, ok := a.Export(funcName)
			if !ok {
				return fmt.Errorf("no exported function %q", funcName)
			}
			t, ok := a.Trampoline(fn.Index)
			if !ok {
				return fmt.Errorf("no trampoline for %s", fn.Sig)
			}
			describeTrampoline(gs.stdout, styler{tty: gs.stdoutTTY}, t)
			return nil
		},
	}
	cmd.Flags().StringVarP(&funcName, "func", "f", "", "show only the trampoline of this export")
	return cmd
}

func describeTrampoline(w io.Writer, st styler, t *trampoline.Trampoline) {
	fmt.Fprintln(w, st.render(titleStyle, t.Name()))
	fmt.Fprintf(w, "signature  %s\n", st.render(typeStyle, t.Signature().String()))
	fmt.Fprintf(w, "shape      %s\n", t.Shape())
	fmt.Fprintf(w, "lowered    %v\n", t.LoweredParams())
	if attrs := t.Attributes(); len(attrs) > 0 {
		fmt.Fprintf(w, "attributes %v\n", attrs)
	}
	fmt.Fprintln(w)
	for _, op := range t.Ops() {
		fmt.Fprintf(w, "  %s\n", op)
	}
}
