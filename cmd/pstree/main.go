// Package main provides the entry point for the pstree CLI tool.
package main

import (
	"fmt"
	"os"
)

// Set by the linker.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func main() {
	rootCmd := newRootCommand(os.Stdout, os.Stderr)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
