// Command wasmc compiles WebAssembly modules with one of the backends and
// inspects or runs the result.
//
//	wasmc compile add.wasm
//	wasmc inspect --backend aggressive --target aarch64-unknown-linux-gnu add.wasm
//	wasmc call add.wasm add 40 2
//	wasmc -i add.wasm
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gs := newGlobalState(ctx)
	if err := newRootCommand(gs).Execute(); err != nil {
		fmt.Fprintf(gs.stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1) //nolint:gocritic
	}
}
