package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
	"github.com/expcloud/azureform/internal/template"
)

// Resume rebuilds every poll chain interrupted by a process stop and
// schedules it. It returns the number of chains picked up. Rows that cannot
// be rebuilt are dropped with an event; re-running the provisioning entry is
// the recovery for those.
func (o *Orchestrator) Resume(ctx context.Context) (int, error) {
	pending, err := o.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, row := range pending {
		step, err := o.rebuildStep(row)
		if err != nil {
			o.observer.Event(Event{
				Type:    EventStepDropped,
				Message: fmt.Sprintf("pending row %d: %v", row.ID, err),
			})
			_ = o.store.DeletePending(ctx, row.ID)
			continue
		}
		o.scheduler.Schedule(step, 0)
		resumed++
	}
	return resumed, nil
}

func (o *Orchestrator) rebuildStep(row ledger.PendingOperation) (Step, error) {
	var unit template.Unit
	if err := json.Unmarshal([]byte(row.Unit), &unit); err != nil {
		return nil, fmt.Errorf("unit payload: %w", err)
	}
	scope := Scope{
		CredentialID: row.CredentialID,
		ExperimentID: row.ExperimentID,
		Unit:         unit,
	}

	parts := strings.Split(row.Stage, ":")
	switch parts[0] {
	case "operation":
		var handle azure.OperationHandle
		if err := json.Unmarshal([]byte(row.Handle), &handle); err != nil {
			return nil, fmt.Errorf("handle payload: %w", err)
		}
		switch handle.Kind {
		case azure.OpCreateStorageAccount:
			return o.storageOperationPoll(scope, handle, row.Attempt, row.ID), nil
		case azure.OpCreateDeployment:
			return o.machineDeploymentPoll(scope, handle, row.Attempt, row.ID), nil
		case azure.OpAddMachine, azure.OpUpdateNetworkConfig:
			return o.machineOperationPoll(scope, handle, row.Attempt, row.ID), nil
		case azure.OpStartMachine:
			return o.startOperationPoll(scope, handle, row.Attempt, row.ID), nil
		case azure.OpStopMachine:
			deallocate := len(parts) > 2 && parts[2] == string(azure.InstanceStoppedDeallocated)
			return o.stopOperationPoll(scope, handle, deallocate, row.Attempt, row.ID), nil
		case azure.OpDeallocateMachine:
			return o.stopOperationPoll(scope, handle, true, row.Attempt, row.ID), nil
		}
		return nil, fmt.Errorf("unknown operation kind %q", handle.Kind)

	case "deployment":
		return o.deploymentStatusPoll(scope, row.Attempt, row.ID), nil

	case "machine":
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed machine stage %q", row.Stage)
		}
		target := azure.InstanceStatus(parts[1])
		switch parts[2] {
		case "create":
			return o.machineReadyPoll(scope, "", false, row.Attempt, row.ID), nil
		case "network":
			return o.machineReadyPoll(scope, "", true, row.Attempt, row.ID), nil
		case "start":
			return o.startReadyPoll(scope, "", row.Attempt, row.ID), nil
		case "stop":
			return o.stopTargetPoll(scope, "", target == azure.InstanceStoppedDeallocated, row.Attempt, row.ID), nil
		}
		return nil, fmt.Errorf("unknown machine stage %q", row.Stage)
	}
	return nil, fmt.Errorf("unknown stage %q", row.Stage)
}
