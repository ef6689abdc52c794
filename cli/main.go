// ABOUTME: Entry point for the fabric CLI
// ABOUTME: Command-line tool for compiling, validating and importing fabric specs

package main

import (
	"fmt"
	"os"

	"github.com/markalston/fabric-planner/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
