// Command apmas is the supervisor control plane daemon (spec §1): it loads
// configuration and a declarative project file, drives the Supervisor Loop,
// and exposes the JSON-RPC tool/resource surface to spawned agent processes.
//
// Cobra replaces the teacher's bare flag-based subcommand dispatch
// (-status/-stop/-force-stop in cmd/cliaimonitor/main.go) with an explicit
// command tree, matching the pack's Cobra CLI idiom.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "apmas",
		Short: "Multi-agent orchestration supervisor control plane",
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newResumeCommand())
	root.AddCommand(newMigrateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
