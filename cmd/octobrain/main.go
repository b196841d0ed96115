// Package main provides the entry point for the octobrain CLI.
package main

import (
	"os"

	"github.com/octobrain/octobrain/cmd/octobrain/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
