package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pilotfs/uploadgateway/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		var path string
		var err error
		if configFile := GetConfigFile(); configFile != "" {
			path = configFile
			err = config.InitConfigToPath(path, initForce)
		} else {
			path, err = config.InitConfig(initForce)
		}
		if err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "configuration file created at: %s\n", path)
		fmt.Fprintln(cmd.OutOrStdout(), "edit it to point at your object store, Redis, and collaborating services, then run: uploadgw start")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}
