// The equitylens binary is the command-line client for the EquityLens API.
package main

import (
	"fmt"
	"os"

	"github.com/turtacn/EquityLens/internal/interfaces/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "equitylens: %v\n", err)
		os.Exit(1)
	}
}
