// Package commands implements uploadgw's cobra command tree (start,
// init, version).
package commands

import (
	"github.com/spf13/cobra"
)

// configFile is bound to the persistent --config flag every subcommand
// reads through GetConfigFile.
var configFile string

// Root is uploadgw's top-level command.
var Root = &cobra.Command{
	Use:   "uploadgw",
	Short: "Resumable chunked upload gateway",
	Long: `uploadgw fronts an S3-compatible object store with a resumable,
chunked file-and-folder upload API: a pre-upload reservation, repeated
chunk uploads, and a final combine request that triggers background
finalization (combine, catalog registration, activity-log publication).`,
}

func init() {
	Root.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/uploadgw/config.yaml)")
	Root.AddCommand(startCmd)
	Root.AddCommand(initCmd)
	Root.AddCommand(versionCmd)
}

// GetConfigFile returns the --config flag's current value.
func GetConfigFile() string {
	return configFile
}
