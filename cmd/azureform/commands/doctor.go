package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Doctor returns the command that checks every configured credential
// against the control plane.
func Doctor() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and credential reachability",
		Long: `Validate the configuration and probe the control plane.

Loads the configuration and the credentials file, then pings the control
plane with each credential. Fails when any credential can not reach it.

Examples:
  azureform doctor
  azureform doctor -c production.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")

	return cmd
}
