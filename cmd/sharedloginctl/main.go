// Command sharedloginctl is the operator CLI for the shared login database.
// It opens the same SQLite file as the server and runs the distribution
// engine locally.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
