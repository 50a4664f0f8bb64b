package main

import (
	"context"
	"io"
	"os"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// globalState carries what every command needs; tests swap in an in-memory
// filesystem and buffers.
type globalState struct {
	ctx       context.Context
	fs        afero.Fs
	stdout    io.Writer
	stderr    io.Writer
	getenv    func(string) (string, bool)
	logger    *zap.Logger
	flags     globalFlags
	stdoutTTY bool
	stdinTTY  bool
}

type globalFlags struct {
	backend    string
	target     string
	cpu        string
	configPath string
	enable     []string
	disable    []string
	verbose    bool
}

func newGlobalState(ctx context.Context) *globalState {
	return &globalState{
		ctx:       ctx,
		fs:        afero.NewOsFs(),
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		getenv:    os.LookupEnv,
		logger:    zap.NewNop(),
		stdoutTTY: term.IsTerminal(int(os.Stdout.Fd())),
		stdinTTY:  term.IsTerminal(int(os.Stdin.Fd())),
	}
}
