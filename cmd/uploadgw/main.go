// Command uploadgw runs the resumable chunked-upload gateway: a thin main
// that delegates to a cobra command tree (start/init/version).
package main

import (
	"fmt"
	"os"

	"github.com/pilotfs/uploadgateway/cmd/uploadgw/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
