package handlers

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expcloud/azureform/internal/ledger"
)

func TestPrintStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.AppendLog(ctx, ledger.LogEntry{
		ExperimentID: 42,
		Operation:    ledger.OpCreateStorageAccount,
		Phase:        ledger.PhaseStart,
	}))
	require.NoError(t, store.AppendLog(ctx, ledger.LogEntry{
		ExperimentID: 42,
		Operation:    ledger.OpCreateStorageAccount,
		Phase:        ledger.PhaseEnd,
		Message:      "created",
	}))
	_, err = store.SavePending(ctx, ledger.PendingOperation{
		ExperimentID: 42,
		CredentialID: "sub-a",
		Stage:        "deployment",
		Unit:         "{}",
	})
	require.NoError(t, err)

	// Another experiment's rows stay invisible.
	require.NoError(t, store.AppendLog(ctx, ledger.LogEntry{
		ExperimentID: 99,
		Operation:    ledger.OpStartMachine,
		Phase:        ledger.PhaseFail,
		Message:      "other experiment",
	}))

	var out bytes.Buffer
	require.NoError(t, printStatus(ctx, &out, store, 42))

	text := out.String()
	assert.Contains(t, text, "Experiment 42")
	assert.Contains(t, text, string(ledger.OpCreateStorageAccount))
	assert.Contains(t, text, "created")
	assert.Contains(t, text, "Pending chains (1)")
	assert.Contains(t, text, "deployment")
	assert.NotContains(t, text, "other experiment")
}

func TestPrintStatusEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store, err := ledger.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	var out bytes.Buffer
	require.NoError(t, printStatus(ctx, &out, store, 7))

	assert.Contains(t, out.String(), "(empty)")
	assert.Contains(t, out.String(), "(none)")
	assert.NotContains(t, out.String(), "Pending chains")
}
