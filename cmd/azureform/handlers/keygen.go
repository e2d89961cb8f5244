package handlers

import (
	"fmt"

	"github.com/expcloud/azureform/internal/keygen"
)

// Keygen generates an RSA login keypair, writes it under dir, and prints
// the authorized_keys line for the template.
func Keygen(dir, name string, bits int) error {
	pair, err := keygen.GenerateRSAKeyPair(bits)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	privatePath, publicPath, err := pair.WriteFiles(dir, name)
	if err != nil {
		return err
	}

	fmt.Printf("Private key: %s\n", privatePath)
	fmt.Printf("Public key:  %s\n", publicPath)
	fmt.Println()
	fmt.Println("Paste into the template's system_config.ssh_public_key:")
	fmt.Println()
	fmt.Printf("  %s\n", pair.AuthorizedKey())
	return nil
}
