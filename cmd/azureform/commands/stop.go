package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Stop returns the command for stopping an experiment's machines.
//
// Optional flags:
//
//	--deallocate: Release the compute allocation instead of a soft stop
func Stop() *cobra.Command {
	var (
		configPath   string
		credentialID string
		experimentID int64
		unitName     string
		deallocate   bool
	)

	cmd := &cobra.Command{
		Use:   "stop TEMPLATE",
		Short: "Stop the template's virtual machines",
		Long: `Stop every running virtual machine of an experiment.

A soft stop keeps the compute allocation so the machine restarts quickly
and keeps billing; --deallocate releases it. A machine that is already
deallocated can not be soft-stopped.

Examples:
  azureform stop course.yaml -k subscription-a -e 42
  azureform stop course.yaml -k subscription-a -e 42 --deallocate`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Stop(cmd.Context(), configPath, credentialID, experimentID, args[0], unitName, deallocate)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: azureform.yaml)")
	cmd.Flags().StringVarP(&credentialID, "credential", "k", "", "Credential id from the credentials file")
	cmd.Flags().Int64VarP(&experimentID, "experiment", "e", 0, "Experiment the machines belong to")
	cmd.Flags().StringVarP(&unitName, "unit", "u", "", "Only the unit with this machine name")
	cmd.Flags().BoolVar(&deallocate, "deallocate", false, "Release the compute allocation instead of a soft stop")
	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagRequired("experiment")

	return cmd
}
