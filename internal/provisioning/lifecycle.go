package provisioning

import (
	"context"
	"fmt"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
)

// startMachine transitions the unit's machine towards ready. A machine that
// is already ready reconciles the ledger instead of issuing a mutation.
func (o *Orchestrator) startMachine(ctx context.Context, step StartMachineStep) error {
	scope := step.Scope
	vmName := scope.MachineName()
	op := ledger.OpStartMachine

	o.logStart(ctx, scope, op, failMsg(azure.ResourceMachine, vmName, "start"))

	depName, err := o.resolveDeployment(ctx, scope, "")
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	status, err := o.adapter.InstanceStatus(ctx, scope.CredentialID,
		scope.Unit.CloudService.Name, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}

	if status == azure.InstanceReadyRole {
		matches, err := o.machineStatusMatches(ctx, scope, string(azure.InstanceReadyRole))
		if err != nil {
			return err
		}
		if matches {
			o.logEnd(ctx, scope, op, ledger.SubcodeReusedHere,
				failMsg(azure.ResourceMachine, vmName, "already started"))
			return nil
		}
		if err := o.refreshStarted(ctx, scope, depName); err != nil {
			o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
			return err
		}
		o.logEnd(ctx, scope, op, ledger.SubcodeReusedManaged,
			failMsg(azure.ResourceMachine, vmName, "already started, records refreshed"))
		return nil
	}

	handle, err := o.adapter.StartMachine(ctx, scope.CredentialID,
		scope.Unit.CloudService.Name, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	remoteMutations.WithLabelValues(string(op)).Inc()

	o.dispatch(ctx, o.startOperationPoll(scope, handle, 0, 0))
	return nil
}

func (o *Orchestrator) startOperationPoll(scope Scope, handle azure.OperationHandle, attempt int, pendingID int64) PollOperationStep {
	msg := failMsg(azure.ResourceMachine, scope.MachineName(), "wait for start failed")
	return PollOperationStep{
		Scope:       scope,
		Handle:      handle,
		Operation:   ledger.OpStartMachine,
		Interval:    o.opts.Timeouts.OperationInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.OperationAttempts,
		OnSuccess:   o.startReadyPoll(scope, handle.Deployment, 0, 0),
		OnFailure: FailureStep{Scope: scope, Failures: []FailureEntry{{
			Operation: ledger.OpStartMachine, Message: msg, Subcode: ledger.SubcodeAsyncFailed,
		}}},
		PendingID: pendingID,
	}
}

func (o *Orchestrator) startReadyPoll(scope Scope, deployment string, attempt int, pendingID int64) PollMachineStep {
	msg := failMsg(azure.ResourceMachine, scope.MachineName(), "wait for ready failed")
	return PollMachineStep{
		Scope:       scope,
		Deployment:  deployment,
		Target:      azure.InstanceReadyRole,
		Operation:   ledger.OpStartMachine,
		Interval:    o.opts.Timeouts.MachineInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.MachineAttempts,
		OnSuccess:   FinalizeStartStep{Scope: scope, Deployment: deployment},
		OnFailure: FailureStep{Scope: scope, Failures: []FailureEntry{{
			Operation: ledger.OpStartMachine, Message: msg, Subcode: ledger.SubcodeAsyncFailed,
		}}},
		PendingID: pendingID,
	}
}

// finalizeStart refreshes the ledger once the machine reports ready.
func (o *Orchestrator) finalizeStart(ctx context.Context, step FinalizeStartStep) error {
	scope := step.Scope
	vmName := scope.MachineName()
	op := ledger.OpStartMachine

	depName, err := o.resolveDeployment(ctx, scope, step.Deployment)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	if err := o.refreshStarted(ctx, scope, depName); err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	o.logEnd(ctx, scope, op, ledger.SubcodeCreated, failMsg(azure.ResourceMachine, vmName, "started"))
	o.scopeObserver(scope).Event(Event{
		Type:     EventChainCompleted,
		Step:     step.Kind(),
		Resource: vmName,
	})
	return nil
}

// refreshStarted re-reads a running machine's addresses and brings the
// machine and environment records back in line. Addresses can change across
// a deallocation, so the remote params are rebuilt as well.
func (o *Orchestrator) refreshStarted(ctx context.Context, scope Scope, deployment string) error {
	unit := scope.Unit
	service := unit.CloudService.Name
	vmName := scope.MachineName()

	depRec, err := o.deploymentRecord(ctx, scope, deployment)
	if err != nil {
		return err
	}
	publicIP, err := o.adapter.PublicAddress(ctx, scope.CredentialID, service, deployment, vmName)
	if err != nil {
		return err
	}
	privateIP, err := o.adapter.PrivateAddress(ctx, scope.CredentialID, service, deployment, vmName)
	if err != nil {
		return err
	}
	dns, _ := o.adapter.DeploymentDNS(ctx, scope.CredentialID, service, unit.Deployment.Slot)
	if dns == "" {
		dns = publicIP
	}

	machineID, err := o.store.UpsertMachine(ctx, ledger.Machine{
		ExperimentID: scope.ExperimentID,
		DeploymentID: depRec.ID,
		Name:         vmName,
		Label:        unit.MachineLabel,
		Status:       string(azure.InstanceReadyRole),
		DNS:          dns,
		PublicIP:     publicIP,
		PrivateIP:    privateIP,
		Size:         unit.MachineSize,
	})
	if err != nil {
		return err
	}

	remoteParams := ""
	if unit.Remote.EndpointName != "" {
		port, err := o.adapter.PublicPort(ctx, scope.CredentialID, service, deployment, vmName, unit.Remote.EndpointName)
		if err != nil {
			return err
		}
		remoteParams, err = unit.RemoteParams(vmName, dns, port)
		if err != nil {
			return err
		}
	}
	_, err = o.store.UpsertEnvironment(ctx, ledger.Environment{
		ExperimentID: scope.ExperimentID,
		MachineID:    machineID,
		Name:         vmName,
		Status:       ledger.EnvironmentRunning,
		RemoteKind:   unit.Remote.Provider,
		RemoteParams: remoteParams,
	})
	return err
}

// stopMachine transitions the unit's machine towards the requested stopped
// state. A soft stop of an already deallocated machine is rejected: there is
// no allocation left to keep.
func (o *Orchestrator) stopMachine(ctx context.Context, step StopMachineStep) error {
	scope := step.Scope
	vmName := scope.MachineName()
	op := ledger.OpStopMachine

	target := azure.InstanceStoppedVM
	if step.Deallocate {
		target = azure.InstanceStoppedDeallocated
	}

	o.logStart(ctx, scope, op, failMsg(azure.ResourceMachine, vmName, "start"))

	depName, err := o.resolveDeployment(ctx, scope, "")
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	status, err := o.adapter.InstanceStatus(ctx, scope.CredentialID,
		scope.Unit.CloudService.Name, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}

	if !step.Deallocate && status == azure.InstanceStoppedDeallocated {
		o.logFail(ctx, scope, op, ledger.SubcodeBadTransition,
			failMsg(azure.ResourceMachine, vmName, "can not be soft-stopped while deallocated"))
		return fmt.Errorf("%w: %q is deallocated", ErrInvalidTransition, vmName)
	}

	if status == target {
		matches, err := o.machineStatusMatches(ctx, scope, string(target))
		if err != nil {
			return err
		}
		if matches {
			o.logEnd(ctx, scope, op, ledger.SubcodeReusedHere,
				failMsg(azure.ResourceMachine, vmName, "already stopped"))
			return nil
		}
		if err := o.markStopped(ctx, scope, depName, target); err != nil {
			return err
		}
		o.logEnd(ctx, scope, op, ledger.SubcodeReusedManaged,
			failMsg(azure.ResourceMachine, vmName, "already stopped, records refreshed"))
		return nil
	}

	handle, err := o.adapter.StopMachine(ctx, scope.CredentialID,
		scope.Unit.CloudService.Name, depName, vmName, step.Deallocate)
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	remoteMutations.WithLabelValues(string(op)).Inc()

	o.dispatch(ctx, o.stopOperationPoll(scope, handle, step.Deallocate, 0, 0))
	return nil
}

func (o *Orchestrator) stopOperationPoll(scope Scope, handle azure.OperationHandle, deallocate bool, attempt int, pendingID int64) PollOperationStep {
	msg := failMsg(azure.ResourceMachine, scope.MachineName(), "wait for stop failed")
	return PollOperationStep{
		Scope:       scope,
		Handle:      handle,
		Operation:   ledger.OpStopMachine,
		Interval:    o.opts.Timeouts.OperationInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.OperationAttempts,
		OnSuccess:   o.stopTargetPoll(scope, handle.Deployment, deallocate, 0, 0),
		OnFailure: FailureStep{Scope: scope, Failures: []FailureEntry{{
			Operation: ledger.OpStopMachine, Message: msg, Subcode: ledger.SubcodeAsyncFailed,
		}}},
		PendingID: pendingID,
	}
}

func (o *Orchestrator) stopTargetPoll(scope Scope, deployment string, deallocate bool, attempt int, pendingID int64) PollMachineStep {
	target := azure.InstanceStoppedVM
	if deallocate {
		target = azure.InstanceStoppedDeallocated
	}
	msg := failMsg(azure.ResourceMachine, scope.MachineName(), "wait for stopped failed")
	return PollMachineStep{
		Scope:       scope,
		Deployment:  deployment,
		Target:      target,
		Operation:   ledger.OpStopMachine,
		Interval:    o.opts.Timeouts.MachineInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.MachineAttempts,
		OnSuccess:   FinalizeStopStep{Scope: scope, Deallocate: deallocate},
		OnFailure: FailureStep{Scope: scope, Failures: []FailureEntry{{
			Operation: ledger.OpStopMachine, Message: msg, Subcode: ledger.SubcodeAsyncFailed,
		}}},
		PendingID: pendingID,
	}
}

// finalizeStop records the reached stopped state.
func (o *Orchestrator) finalizeStop(ctx context.Context, step FinalizeStopStep) error {
	scope := step.Scope
	vmName := scope.MachineName()
	op := ledger.OpStopMachine

	target := azure.InstanceStoppedVM
	if step.Deallocate {
		target = azure.InstanceStoppedDeallocated
	}
	depName, err := o.resolveDeployment(ctx, scope, "")
	if err != nil {
		o.logFail(ctx, scope, op, ledger.SubcodeRemoteError, failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	if err := o.markStopped(ctx, scope, depName, target); err != nil {
		return err
	}
	o.logEnd(ctx, scope, op, ledger.SubcodeCreated, failMsg(azure.ResourceMachine, vmName, "stopped"))
	o.scopeObserver(scope).Event(Event{
		Type:     EventChainCompleted,
		Step:     step.Kind(),
		Resource: vmName,
	})
	return nil
}

// machineStatusMatches reports whether the machine's ledger record exists
// and already carries the given status.
func (o *Orchestrator) machineStatusMatches(ctx context.Context, scope Scope, status string) (bool, error) {
	rec, found, err := o.store.GetDeployment(ctx, scope.Unit.CloudService.Name, scope.Unit.Deployment.Slot)
	if err != nil || !found {
		return false, err
	}
	machine, found, err := o.store.GetMachine(ctx, rec.ID, scope.MachineName())
	if err != nil || !found {
		return false, err
	}
	return machine.Status == status, nil
}

// markStopped writes the stopped status through to the machine and its
// environment.
func (o *Orchestrator) markStopped(ctx context.Context, scope Scope, deployment string, target azure.InstanceStatus) error {
	depRec, err := o.deploymentRecord(ctx, scope, deployment)
	if err != nil {
		return err
	}
	machine, found, err := o.store.GetMachine(ctx, depRec.ID, scope.MachineName())
	if err != nil {
		return err
	}
	if found {
		if err := o.store.UpdateMachineStatus(ctx, machine.ID, string(target)); err != nil {
			return err
		}
		if err := o.updateEnvironmentStatus(ctx, scope.ExperimentID, machine.ID, ledger.EnvironmentStopped); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) updateEnvironmentStatus(ctx context.Context, experimentID, machineID int64, status string) error {
	envs, err := o.store.Environments(ctx, experimentID)
	if err != nil {
		return err
	}
	for _, env := range envs {
		if env.MachineID == machineID {
			return o.store.UpdateEnvironmentStatus(ctx, env.ID, status)
		}
	}
	return nil
}
