// Command sagacheck runs API conformance suites against the Moto Saga
// backend.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/sagacheck/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "sagacheck:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
