package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
)

// dispatch runs a step inline on the current goroutine. Handlers use it for
// chain continuations that need no delay; delayed re-entries go through the
// scheduler instead.
func (o *Orchestrator) dispatch(ctx context.Context, step Step) {
	o.dispatcher.Dispatch(ctx, step)
}

// stageFor encodes a poll step's position in its chain, so a restarted
// process can rebuild the step from a pending row.
func stageFor(step Step) string {
	switch s := step.(type) {
	case PollOperationStep:
		stage := "operation:" + string(s.Handle.Kind)
		if s.Handle.Kind == azure.OpStopMachine || s.Handle.Kind == azure.OpDeallocateMachine {
			if pm, ok := s.OnSuccess.(PollMachineStep); ok {
				stage += ":" + string(pm.Target)
			}
		}
		return stage
	case PollDeploymentStep:
		return "deployment"
	case PollMachineStep:
		stage := "machine:" + string(s.Target)
		switch next := s.OnSuccess.(type) {
		case MachineReadyStep:
			if next.NetworkConfigured {
				stage += ":network"
			} else {
				stage += ":create"
			}
		case FinalizeStartStep:
			stage += ":start"
		case FinalizeStopStep:
			stage += ":stop"
		}
		return stage
	}
	return string(step.Kind())
}

// savePending records an in-flight poll in the ledger. Persistence is best
// effort: a failed write costs restart resumability, not correctness, so the
// chain carries on without a pending row.
func (o *Orchestrator) savePending(ctx context.Context, scope Scope, stage string, handle azure.OperationHandle, attempt int) int64 {
	unitJSON, err := json.Marshal(scope.Unit)
	if err != nil {
		return 0
	}
	var handleJSON string
	if handle.Kind != "" {
		if b, merr := json.Marshal(handle); merr == nil {
			handleJSON = string(b)
		}
	}
	id, err := o.store.SavePending(ctx, ledger.PendingOperation{
		ExperimentID: scope.ExperimentID,
		CredentialID: scope.CredentialID,
		Stage:        stage,
		Unit:         string(unitJSON),
		Handle:       handleJSON,
		Attempt:      attempt,
	})
	if err != nil {
		return 0
	}
	return id
}

func (o *Orchestrator) bumpPending(ctx context.Context, id int64, scope Scope, stage string, handle azure.OperationHandle, attempt int) {
	if id == 0 {
		return
	}
	unitJSON, err := json.Marshal(scope.Unit)
	if err != nil {
		return
	}
	var handleJSON string
	if handle.Kind != "" {
		if b, merr := json.Marshal(handle); merr == nil {
			handleJSON = string(b)
		}
	}
	_ = o.store.UpdatePending(ctx, ledger.PendingOperation{
		ID:           id,
		ExperimentID: scope.ExperimentID,
		CredentialID: scope.CredentialID,
		Stage:        stage,
		Unit:         string(unitJSON),
		Handle:       handleJSON,
		Attempt:      attempt,
	})
}

func (o *Orchestrator) clearPending(ctx context.Context, id int64) {
	if id != 0 {
		_ = o.store.DeletePending(ctx, id)
	}
}

// failTimeout terminates a poll chain whose budget ran out.
func (o *Orchestrator) failTimeout(ctx context.Context, failure FailureStep) {
	failure.Timeout = true
	o.dispatch(ctx, failure)
}

// pollOperation checks a pending remote operation exactly once per
// invocation. A non-terminal status re-schedules the step after its
// interval; terminal statuses continue the chain inline.
func (o *Orchestrator) pollOperation(ctx context.Context, step PollOperationStep) error {
	if step.PendingID == 0 {
		step.PendingID = o.savePending(ctx, step.Scope, stageFor(step), step.Handle, step.Attempt)
	}
	pollAttempts.WithLabelValues(string(step.Operation)).Inc()

	res, err := o.adapter.OperationStatus(ctx, step.Handle)
	if err != nil {
		// A failed status check spends an attempt; the operation itself
		// may still be running.
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, step.Handle, step.OnFailure, err.Error())
	}

	switch res.Status {
	case azure.OperationSucceeded:
		o.clearPending(ctx, step.PendingID)
		o.dispatch(ctx, step.OnSuccess)
		return nil
	case azure.OperationFailed:
		o.clearPending(ctx, step.PendingID)
		failure := step.OnFailure
		if res.Message != "" {
			for i := range failure.Failures {
				failure.Failures[i].Message += ": " + res.Message
			}
		}
		o.dispatch(ctx, failure)
		return fmt.Errorf("operation %s failed: %s %s", step.Handle.ID, res.Code, res.Message)
	default:
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, step.Handle, step.OnFailure, "operation in progress")
	}
}

// retryOrTimeout re-schedules a poll step with a spent attempt, or fails the
// chain with the timeout marker when the budget is gone.
func (o *Orchestrator) retryOrTimeout(ctx context.Context, scope Scope, step Step, attempt, maxAttempts int, interval time.Duration, handle azure.OperationHandle, onFailure FailureStep, reason string) error {
	next, pendingID := nextPollAttempt(step, attempt+1)
	if attempt+1 >= maxAttempts {
		o.clearPending(ctx, pendingID)
		o.failTimeout(ctx, onFailure)
		return fmt.Errorf("poll budget exhausted after %d attempts: %s", maxAttempts, reason)
	}
	o.bumpPending(ctx, pendingID, scope, stageFor(step), handle, attempt+1)
	o.scopeObserver(scope).Event(Event{
		Type:    EventPollPending,
		Step:    step.Kind(),
		Message: reason,
		Fields:  map[string]string{"attempt": fmt.Sprintf("%d/%d", attempt+1, maxAttempts)},
	})
	o.scheduler.Schedule(next, interval)
	return nil
}

// nextPollAttempt returns a copy of the poll step with the attempt counter
// advanced, plus the step's pending row id.
func nextPollAttempt(step Step, attempt int) (Step, int64) {
	switch s := step.(type) {
	case PollOperationStep:
		s.Attempt = attempt
		return s, s.PendingID
	case PollDeploymentStep:
		s.Attempt = attempt
		return s, s.PendingID
	case PollMachineStep:
		s.Attempt = attempt
		return s, s.PendingID
	}
	return step, 0
}

// pollDeployment waits for a deployment to reach the running state.
func (o *Orchestrator) pollDeployment(ctx context.Context, step PollDeploymentStep) error {
	if step.PendingID == 0 {
		step.PendingID = o.savePending(ctx, step.Scope, stageFor(step), azure.OperationHandle{}, step.Attempt)
	}
	pollAttempts.WithLabelValues(string(step.Operation)).Inc()

	deployment, err := o.resolveDeployment(ctx, step.Scope, step.Deployment)
	if err != nil {
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, azure.OperationHandle{}, step.OnFailure, err.Error())
	}
	step.Deployment = deployment

	status, err := o.adapter.DeploymentStatus(ctx, step.Scope.CredentialID,
		step.Scope.Unit.CloudService.Name, deployment)
	if err != nil {
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, azure.OperationHandle{}, step.OnFailure, err.Error())
	}
	if status != azure.DeploymentRunning {
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, azure.OperationHandle{}, step.OnFailure,
			fmt.Sprintf("deployment %s is %s", step.Deployment, status))
	}

	o.clearPending(ctx, step.PendingID)
	o.dispatch(ctx, step.OnSuccess)
	return nil
}

// pollMachine waits for a machine instance to reach the step's target
// status.
func (o *Orchestrator) pollMachine(ctx context.Context, step PollMachineStep) error {
	if step.PendingID == 0 {
		step.PendingID = o.savePending(ctx, step.Scope, stageFor(step), azure.OperationHandle{}, step.Attempt)
	}
	pollAttempts.WithLabelValues(string(step.Operation)).Inc()

	deployment, err := o.resolveDeployment(ctx, step.Scope, step.Deployment)
	if err != nil {
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, azure.OperationHandle{}, step.OnFailure, err.Error())
	}
	step.Deployment = deployment

	status, err := o.adapter.InstanceStatus(ctx, step.Scope.CredentialID,
		step.Scope.Unit.CloudService.Name, deployment, step.Scope.MachineName())
	if err != nil {
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, azure.OperationHandle{}, step.OnFailure, err.Error())
	}
	if status != step.Target {
		return o.retryOrTimeout(ctx, step.Scope, step, step.Attempt, step.MaxAttempts,
			step.Interval, azure.OperationHandle{}, step.OnFailure,
			fmt.Sprintf("machine %s is %s, waiting for %s", step.Scope.MachineName(), status, step.Target))
	}

	o.clearPending(ctx, step.PendingID)
	o.dispatch(ctx, step.OnSuccess)
	return nil
}
