// Command taxii operates a TAXII 1.x content store.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/taxii/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
