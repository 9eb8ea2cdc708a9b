// Command dfsctl is the operator CLI for the DFS coordination services.
package main

import (
	"fmt"
	"os"

	"github.com/marmos91/dfs/cmd/dfsctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
