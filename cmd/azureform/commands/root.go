// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument
// parsing, flag binding, and validation. Command execution is delegated to
// handler functions in the handlers package.
package commands

import "github.com/spf13/cobra"

// Root returns the root command for the azureform CLI.
func Root() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "azureform",
		Short: "Provision virtual environments on the Azure service management plane",
	}

	// Lifecycle commands
	cmd.AddCommand(Init())
	cmd.AddCommand(Provision())
	cmd.AddCommand(Start())
	cmd.AddCommand(Stop())
	cmd.AddCommand(Resume())

	// Inspection and utility commands
	cmd.AddCommand(Status())
	cmd.AddCommand(Doctor())
	cmd.AddCommand(Keygen())
	cmd.AddCommand(Version())

	return cmd
}
