package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestLogRoundTrip(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendLog(ctx, LogEntry{
		ExperimentID: 7, Operation: OpCreateStorageAccount, Phase: PhaseStart,
	}))
	require.NoError(t, store.AppendLog(ctx, LogEntry{
		ExperimentID: 7, Operation: OpCreateStorageAccount, Phase: PhaseEnd,
		Message: "exist but created by this tool before", Subcode: SubcodeReusedManaged,
	}))
	require.NoError(t, store.AppendLog(ctx, LogEntry{
		ExperimentID: 8, Operation: OpCreateCloudService, Phase: PhaseFail,
		Message: "quota exceeded", Subcode: SubcodeQuotaExceeded,
	}))

	entries, err := store.Logs(ctx, 7)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, PhaseStart, entries[0].Phase)
	assert.Equal(t, PhaseEnd, entries[1].Phase)
	assert.Equal(t, SubcodeReusedManaged, entries[1].Subcode)
	assert.False(t, entries[1].CreatedAt.IsZero())
}

func TestStorageAccountUpsert(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	id1, err := store.UpsertStorageAccount(ctx, StorageAccount{
		CredentialID: "lab", Name: "acct1", Label: "first", Location: "eastus",
	})
	require.NoError(t, err)

	id2, err := store.UpsertStorageAccount(ctx, StorageAccount{
		CredentialID: "lab", Name: "acct1", Label: "second", Location: "eastus",
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	acct, ok, err := store.GetStorageAccount(ctx, "acct1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", acct.Label)

	_, ok, err = store.GetStorageAccount(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.DeleteStorageAccount(ctx, "acct1"))
	_, ok, err = store.GetStorageAccount(ctx, "acct1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func buildHierarchy(t *testing.T, store *SQLiteStore) (serviceID, deploymentID, machineID int64) {
	t.Helper()
	ctx := context.Background()

	serviceID, err := store.UpsertCloudService(ctx, CloudService{
		CredentialID: "lab", Name: "svc1", Location: "eastus",
	})
	require.NoError(t, err)

	deploymentID, err = store.UpsertDeployment(ctx, Deployment{
		CloudServiceID: serviceID, Name: "production-dep1", Slot: "production", Status: "Running",
	})
	require.NoError(t, err)

	machineID, err = store.UpsertMachine(ctx, Machine{
		ExperimentID: 7, DeploymentID: deploymentID, Name: "vm-7", Status: "ReadyRole", Size: "Medium",
	})
	require.NoError(t, err)

	require.NoError(t, store.ReplaceEndpoints(ctx, machineID, []Endpoint{
		{Name: "ssh", Protocol: "tcp", PublicPort: 10022, PrivatePort: 22},
		{Name: "http", Protocol: "tcp", PublicPort: 10080, PrivatePort: 80},
	}))
	return serviceID, deploymentID, machineID
}

func TestDeleteCloudServiceCascades(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	_, _, machineID := buildHierarchy(t, store)

	require.NoError(t, store.DeleteCloudService(ctx, "svc1"))

	_, ok, err := store.GetDeployment(ctx, "svc1", "production")
	require.NoError(t, err)
	assert.False(t, ok)

	endpoints, err := store.Endpoints(ctx, machineID)
	require.NoError(t, err)
	assert.Empty(t, endpoints)
}

func TestDeleteDeploymentCascades(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	_, deploymentID, machineID := buildHierarchy(t, store)

	require.NoError(t, store.DeleteDeployment(ctx, "svc1", "production"))

	_, ok, err := store.GetMachine(ctx, deploymentID, "vm-7")
	require.NoError(t, err)
	assert.False(t, ok)

	endpoints, err := store.Endpoints(ctx, machineID)
	require.NoError(t, err)
	assert.Empty(t, endpoints)

	// The service itself survives.
	_, ok, err = store.GetCloudService(ctx, "svc1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReplaceEndpointsIsAtomicSwap(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	_, _, machineID := buildHierarchy(t, store)

	require.NoError(t, store.ReplaceEndpoints(ctx, machineID, []Endpoint{
		{Name: "rdp", Protocol: "tcp", PublicPort: 13389, PrivatePort: 3389},
	}))

	endpoints, err := store.Endpoints(ctx, machineID)
	require.NoError(t, err)
	require.Len(t, endpoints, 1)
	assert.Equal(t, "rdp", endpoints[0].Name)
	assert.Equal(t, 13389, endpoints[0].PublicPort)
}

func TestMachineStatusAndEnvironment(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	_, deploymentID, machineID := buildHierarchy(t, store)

	require.NoError(t, store.UpdateMachineStatus(ctx, machineID, "StoppedDeallocated"))
	m, ok, err := store.GetMachine(ctx, deploymentID, "vm-7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "StoppedDeallocated", m.Status)

	envID, err := store.UpsertEnvironment(ctx, Environment{
		ExperimentID: 7, MachineID: machineID, Name: "env-7", Status: EnvironmentInit,
		RemoteKind: "guacamole", RemoteParams: `{"protocol":"ssh","port":10022}`,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdateEnvironmentStatus(ctx, envID, EnvironmentRunning))
	envs, err := store.Environments(ctx, 7)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, EnvironmentRunning, envs[0].Status)
	assert.Contains(t, envs[0].RemoteParams, "10022")
}

func TestPendingOperations(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	id, err := store.SavePending(ctx, PendingOperation{
		ExperimentID: 7, CredentialID: "lab", Stage: "poll-operation",
		Unit: `{"machine_name":"vm-7"}`, Handle: `{"id":"h1"}`,
	})
	require.NoError(t, err)

	require.NoError(t, store.UpdatePending(ctx, PendingOperation{
		ID: id, ExperimentID: 7, CredentialID: "lab", Stage: "poll-operation",
		Unit: `{"machine_name":"vm-7"}`, Handle: `{"id":"h1"}`, Attempt: 3,
	}))

	ops, err := store.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 3, ops[0].Attempt)
	assert.Equal(t, "poll-operation", ops[0].Stage)

	require.NoError(t, store.DeletePending(ctx, id))
	ops, err = store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, ops)
}
