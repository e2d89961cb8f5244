package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Init returns the command that interactively writes a configuration file.
//
// Optional flags:
//
//	--config, -c: Where to write the configuration (default: azureform.yaml)
func Init() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Long: `Create an azureform configuration file.

The wizard asks for the credentials file, the ledger database, and the
public port range, then writes the result as YAML.

Examples:
  # Write azureform.yaml in the current directory
  azureform init

  # Write a named configuration
  azureform init -c production.yaml`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Init(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")

	return cmd
}
