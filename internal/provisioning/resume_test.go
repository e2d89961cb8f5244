package provisioning

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
)

func TestResumePicksUpPendingOperation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exists := func(ctx context.Context, credentialID, name string) (bool, error) { return true, nil }
	mock := &azure.MockClient{
		// The account create finished while the process was down.
		StorageAccountExistsFunc: exists,
		ServiceExistsFunc:        exists,
	}
	o, _, store := newTestOrchestrator(t, mock, fastOptions())

	unit := testUnit()
	unitJSON, err := json.Marshal(unit)
	require.NoError(t, err)
	handleJSON, err := json.Marshal(azure.OperationHandle{
		ID: "op-1", CredentialID: "cred-1", Kind: azure.OpCreateStorageAccount, Account: "storea",
	})
	require.NoError(t, err)
	_, err = store.SavePending(ctx, ledger.PendingOperation{
		ExperimentID: 7,
		CredentialID: "cred-1",
		Stage:        "operation:create-storage-account",
		Unit:         string(unitJSON),
		Handle:       string(handleJSON),
		Attempt:      2,
	})
	require.NoError(t, err)

	resumed, err := o.Resume(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, resumed)
	o.Wait()

	logs, err := store.Logs(ctx, 7)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, logIndex(logs, ledger.OpCreateStorageAccount, ledger.PhaseEnd, ledger.SubcodeCreated), 0)
	assert.GreaterOrEqual(t, logIndex(logs, ledger.OpCreateMachine, ledger.PhaseEnd, ledger.SubcodeCreated), 0)

	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestResumeDropsMalformedRow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	o, observer, store := newTestOrchestrator(t, &azure.MockClient{}, fastOptions())

	unitJSON, err := json.Marshal(testUnit())
	require.NoError(t, err)
	_, err = store.SavePending(ctx, ledger.PendingOperation{
		ExperimentID: 7,
		CredentialID: "cred-1",
		Stage:        "no-such-stage",
		Unit:         string(unitJSON),
	})
	require.NoError(t, err)

	resumed, err := o.Resume(ctx)
	require.NoError(t, err)
	assert.Zero(t, resumed)

	assert.True(t, hasEvent(observer.Events(), EventStepDropped))
	pending, err := store.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRebuildStepStages(t *testing.T) {
	t.Parallel()

	o, _, _ := newTestOrchestrator(t, &azure.MockClient{}, fastOptions())
	unitJSON, err := json.Marshal(testUnit())
	require.NoError(t, err)
	stopHandle, err := json.Marshal(azure.OperationHandle{
		ID: "op-2", CredentialID: "cred-1", Kind: azure.OpStopMachine,
	})
	require.NoError(t, err)
	deallocateHandle, err := json.Marshal(azure.OperationHandle{
		ID: "op-3", CredentialID: "cred-1", Kind: azure.OpDeallocateMachine,
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		row    ledger.PendingOperation
		verify func(t *testing.T, step Step)
	}{
		{
			name: "deployment stage",
			row:  ledger.PendingOperation{ID: 1, Stage: "deployment", Unit: string(unitJSON), Attempt: 3},
			verify: func(t *testing.T, step Step) {
				s, ok := step.(PollDeploymentStep)
				require.True(t, ok)
				assert.Equal(t, 3, s.Attempt)
				assert.EqualValues(t, 1, s.PendingID)
			},
		},
		{
			name: "machine stop stage keeps target",
			row: ledger.PendingOperation{
				ID: 2, Stage: "machine:StoppedDeallocated:stop", Unit: string(unitJSON),
			},
			verify: func(t *testing.T, step Step) {
				s, ok := step.(PollMachineStep)
				require.True(t, ok)
				assert.Equal(t, azure.InstanceStoppedDeallocated, s.Target)
			},
		},
		{
			name: "stop operation stage keeps deallocate",
			row: ledger.PendingOperation{
				ID: 3, Stage: "operation:stop-machine:StoppedDeallocated",
				Unit: string(unitJSON), Handle: string(stopHandle),
			},
			verify: func(t *testing.T, step Step) {
				s, ok := step.(PollOperationStep)
				require.True(t, ok)
				next, ok := s.OnSuccess.(PollMachineStep)
				require.True(t, ok)
				assert.Equal(t, azure.InstanceStoppedDeallocated, next.Target)
			},
		},
		{
			name: "deallocate operation stage keeps kind and target",
			row: ledger.PendingOperation{
				ID: 5, Stage: "operation:deallocate-machine:StoppedDeallocated",
				Unit: string(unitJSON), Handle: string(deallocateHandle),
			},
			verify: func(t *testing.T, step Step) {
				s, ok := step.(PollOperationStep)
				require.True(t, ok)
				assert.Equal(t, azure.OpDeallocateMachine, s.Handle.Kind)
				next, ok := s.OnSuccess.(PollMachineStep)
				require.True(t, ok)
				assert.Equal(t, azure.InstanceStoppedDeallocated, next.Target)
			},
		},
		{
			name: "network-configured machine stage",
			row: ledger.PendingOperation{
				ID: 4, Stage: "machine:ReadyRole:network", Unit: string(unitJSON),
			},
			verify: func(t *testing.T, step Step) {
				s, ok := step.(PollMachineStep)
				require.True(t, ok)
				next, ok := s.OnSuccess.(MachineReadyStep)
				require.True(t, ok)
				assert.True(t, next.NetworkConfigured)
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			step, err := o.rebuildStep(tt.row)
			require.NoError(t, err)
			tt.verify(t, step)
		})
	}
}
