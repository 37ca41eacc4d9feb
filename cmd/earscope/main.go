// Package main implements the earscope CLI.
// It analyzes Java EE enterprise archives without deploying them and reports
// their modules, components and inferred component calls.
package main

import (
	"errors"
	"os"

	"github.com/l3aro/earscope/cmd/earscope/commands"
	"github.com/l3aro/earscope/pkg/archive"
)

var (
	version   = "dev"
	buildTime = ""
)

// exitCorrupt is returned when the input archive itself cannot be read.
const exitCorrupt = 2

func main() {
	commands.RootCmd.Flags().BoolP("version", "v", false, "Print version information")
	commands.RootCmd.SetVersionTemplate(`earscope version {{.Version}}
`)
	commands.RootCmd.Version = version
	if buildTime != "" {
		commands.RootCmd.Version = version + " (" + buildTime + ")"
	}

	if err := commands.Execute(); err != nil {
		if errors.Is(err, archive.ErrCorruptArchive) {
			os.Exit(exitCorrupt)
		}
		os.Exit(1)
	}
}
