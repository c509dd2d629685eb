// Command vectra is the CLI entry point for the document vector store.
package main

import (
	"fmt"
	"os"

	"github.com/custodia-labs/vectra/internal/adapters/driving/cli"
)

// version is overridden at build time via
// -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
