package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	wasmcompiler "github.com/wippyai/wasm-compiler"
	"github.com/wippyai/wasm-compiler/compiler"
	"github.com/wippyai/wasm-compiler/engine"
	"github.com/wippyai/wasm-compiler/trampoline"
)

// envConfig names the config file when --config is not given.
const envConfig = "WASMC_CONFIG"

func newRootCommand(gs *globalState) *cobra.Command {
	var interactive bool

	root := &cobra.Command{
		Use:           "wasmc [-i] [file.wasm]",
		Short:         "WebAssembly compiler and trampoline inspector",
		Version:       wasmcompiler.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.MaximumNArgs(1),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogger(gs)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !interactive {
				return cmd.Help()
			}
			if len(args) != 1 {
				return fmt.Errorf("interactive mode needs a module file")
			}
			if !gs.stdoutTTY || !gs.stdinTTY {
				return fmt.Errorf("interactive mode needs a terminal")
			}
			return runInteractive(gs, args[0])
		},
	}
	root.Flags().BoolVarP(&interactive, "interactive", "i", false, "browse exports and trampolines in a TUI")
	root.PersistentFlags().AddFlagSet(rootFlagSet(&gs.flags))

	root.AddCommand(
		getCompileCmd(gs),
		getInspectCmd(gs),
		getCallCmd(gs),
	)
	return root
}

func rootFlagSet(f *globalFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet("", pflag.ContinueOnError)
	flags.StringVarP(&f.backend, "backend", "b", "", "compiler backend: "+strings.Join(wasmcompiler.Backends(), ", "))
	flags.StringVarP(&f.target, "target", "t", "", "target triple (default: host)")
	flags.StringVar(&f.cpu, "cpu", "", "comma separated CPU features (default: host features for the host target)")
	flags.StringSliceVar(&f.enable, "enable", nil, "WebAssembly features to enable")
	flags.StringSliceVar(&f.disable, "disable", nil, "WebAssembly features to disable")
	flags.StringVarP(&f.configPath, "config", "c", "", "YAML config file (env "+envConfig+")")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")
	return flags
}

// setupLogger installs a development logger into every package when
// --verbose is set.
func setupLogger(gs *globalState) error {
	if !gs.flags.verbose {
		return nil
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	gs.logger = l
	compiler.SetLogger(l.Named("compiler"))
	trampoline.SetLogger(l.Named("trampoline"))
	engine.SetLogger(l.Named("engine"))
	return nil
}
