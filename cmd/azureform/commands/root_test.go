package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoot(t *testing.T) {
	cmd := Root()

	require.NotNil(t, cmd)
	assert.Equal(t, "azureform", cmd.Use)
}

func TestRoot_HasSubcommands(t *testing.T) {
	cmd := Root()

	expectedSubcommands := []string{
		"init",
		"provision",
		"start",
		"stop",
		"resume",
		"status",
		"doctor",
		"keygen",
		"version",
	}

	subcommands := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		subcommands[sub.Name()] = true
	}

	for _, expected := range expectedSubcommands {
		assert.True(t, subcommands[expected], "Expected subcommand %s not found", expected)
	}
}

func TestProvision_RequiredFlags(t *testing.T) {
	cmd := Provision()

	cmd.SetArgs([]string{"course.yaml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credential")
}

func TestStop_HasDeallocateFlag(t *testing.T) {
	cmd := Stop()
	assert.NotNil(t, cmd.Flags().Lookup("deallocate"))
}
