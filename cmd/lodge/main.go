package main

import (
	"fmt"
	"os"

	"github.com/dyluth/lodge/cmd/lodge/commands"
	"github.com/dyluth/lodge/internal/printer"
)

// Version information - set during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Set version information on root command
	commands.SetVersionInfo(version, commit, date)

	// Execute root command. Errors from the printer package are already
	// on stderr in full.
	if err := commands.Execute(); err != nil {
		if !printer.Printed(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
