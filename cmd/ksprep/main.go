// Command ksprep is an operator tool for running stored invocation events through the
// preprocessor locally, and for building or inspecting KPL aggregated payloads.
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
