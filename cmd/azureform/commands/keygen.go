package commands

import (
	"github.com/spf13/cobra"

	"github.com/expcloud/azureform/cmd/azureform/handlers"
)

// Keygen returns the command that generates an SSH login keypair for
// OS-image machines.
func Keygen() *cobra.Command {
	var (
		dir  string
		name string
		bits int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate an SSH keypair for OS-image machines",
		Long: `Generate an RSA keypair for logging into provisioned machines.

The public half is printed in authorized_keys format, ready to paste into
a template's ssh_public_key field; both halves are written to disk.

Examples:
  azureform keygen
  azureform keygen --dir ~/.ssh --name azureform_rsa --bits 4096`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return handlers.Keygen(dir, name, bits)
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "Directory to write the keypair into")
	cmd.Flags().StringVar(&name, "name", "id_rsa", "Base name of the key files")
	cmd.Flags().IntVar(&bits, "bits", 2048, "RSA key size in bits")

	return cmd
}
