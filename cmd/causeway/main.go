// Command causeway orders committed operations into causal delivery batches.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/causeway/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
