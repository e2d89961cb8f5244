// Package main is the entry point for the azureform CLI.
//
// azureform provisions virtual environments (storage account, cloud
// service, deployment, virtual machine, public endpoints) from a YAML
// template, tracking everything in a local SQLite ledger so interrupted
// runs can be resumed.
//
// Commands: init, provision, start, stop, resume, status, doctor, keygen.
//
// For detailed usage information, run:
//
//	azureform --help
package main

import (
	"fmt"
	"os"

	"github.com/expcloud/azureform/cmd/azureform/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
