package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
	"github.com/expcloud/azureform/internal/template"
)

// bothMachineOps attributes a failure to the deployment and the machine
// operation at once, for the create path where one remote call covers both.
func bothMachineOps(scope Scope, message string, subcode int) FailureStep {
	return FailureStep{Scope: scope, Failures: []FailureEntry{
		{Operation: ledger.OpCreateDeployment, Message: message, Subcode: subcode},
		{Operation: ledger.OpCreateMachine, Message: message, Subcode: subcode},
	}}
}

func machineFailure(scope Scope, message string, subcode int) FailureStep {
	return FailureStep{Scope: scope, Failures: []FailureEntry{
		{Operation: ledger.OpCreateMachine, Message: message, Subcode: subcode},
	}}
}

// resolveDeployment returns name unchanged when set, otherwise looks up the
// deployment occupying the unit's slot.
func (o *Orchestrator) resolveDeployment(ctx context.Context, scope Scope, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	return o.adapter.DeploymentName(ctx, scope.CredentialID,
		scope.Unit.CloudService.Name, scope.Unit.Deployment.Slot)
}

// serviceRecordID returns the ledger id of the unit's cloud service,
// creating the mirror record if a restart lost it.
func (o *Orchestrator) serviceRecordID(ctx context.Context, scope Scope) (int64, error) {
	spec := scope.Unit.ServiceSpec()
	rec, found, err := o.store.GetCloudService(ctx, spec.Name)
	if err != nil {
		return 0, err
	}
	if found {
		return rec.ID, nil
	}
	return o.store.UpsertCloudService(ctx, ledger.CloudService{
		CredentialID: scope.CredentialID,
		Name:         spec.Name,
		Label:        spec.Label,
		Location:     spec.Location,
	})
}

// deploymentRecord returns the ledger record of the unit's deployment slot,
// creating it from live state when missing.
func (o *Orchestrator) deploymentRecord(ctx context.Context, scope Scope, deployment string) (ledger.Deployment, error) {
	service := scope.Unit.CloudService.Name
	slot := scope.Unit.Deployment.Slot
	rec, found, err := o.store.GetDeployment(ctx, service, slot)
	if err != nil {
		return ledger.Deployment{}, err
	}
	if found {
		return rec, nil
	}

	serviceID, err := o.serviceRecordID(ctx, scope)
	if err != nil {
		return ledger.Deployment{}, err
	}
	name, err := o.resolveDeployment(ctx, scope, deployment)
	if err != nil {
		return ledger.Deployment{}, err
	}
	dns, _ := o.adapter.DeploymentDNS(ctx, scope.CredentialID, service, slot)
	rec = ledger.Deployment{
		CloudServiceID: serviceID,
		Name:           name,
		Slot:           slot,
		Status:         string(azure.DeploymentRunning),
		DNS:            dns,
	}
	rec.ID, err = o.store.UpsertDeployment(ctx, rec)
	return rec, err
}

// machineSpec assembles the create request for the unit's machine. With
// networkAtCreate the unit's endpoints get public ports assigned up front;
// machines from pre-built images have their network applied afterwards.
func (o *Orchestrator) machineSpec(ctx context.Context, scope Scope, deployment string, networkAtCreate bool) (azure.MachineSpec, error) {
	unit := scope.Unit
	spec := azure.MachineSpec{
		Service:        unit.CloudService.Name,
		DeploymentName: deployment,
		DeploymentSlot: unit.Deployment.Slot,
		Name:           scope.MachineName(),
		Label:          unit.MachineLabel,
		Size:           unit.MachineSize,
		System:         unit.System(),
	}
	if unit.IsVMImage() {
		spec.VMImage = unit.Image.Name
	} else {
		spec.OSImage = unit.Image.Name
		spec.MediaLink = unit.MediaLink(time.Now(), uuid.NewString()[:8])
	}
	if networkAtCreate {
		cfg, err := o.buildNetworkConfig(ctx, scope)
		if err != nil {
			return azure.MachineSpec{}, err
		}
		spec.Network = &cfg
	}
	return spec, nil
}

// provisionMachine ensures the unit's deployment and machine exist. The
// decision table: no deployment in the slot means machine and deployment are
// created in one remote call; an existing deployment gets the machine added,
// unless it is already there, which is either a reuse (managed here) or a
// conflict (managed elsewhere).
func (o *Orchestrator) provisionMachine(ctx context.Context, step ProvisionMachineStep) error {
	scope := step.Scope
	unit := scope.Unit
	service := unit.CloudService.Name
	slot := unit.Deployment.Slot
	vmName := scope.MachineName()

	o.logStart(ctx, scope, ledger.OpCreateDeployment, failMsg(azure.ResourceDeployment, slot, "start"))
	o.logStart(ctx, scope, ledger.OpCreateMachine, failMsg(azure.ResourceMachine, vmName, "start"))

	cores, err := template.CoreCount(unit.MachineSize)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	free, err := o.quota.AvailableCores(ctx, scope.CredentialID)
	if err != nil || free < cores {
		msg := failMsg(azure.ResourceMachine, vmName, "subscription not enough")
		o.logFail(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeQuotaExceeded, msg)
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeQuotaExceeded, msg)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: %d cores needed, %d free", ErrQuotaExceeded, cores, free)
	}

	depExists, err := o.adapter.DeploymentExists(ctx, scope.CredentialID, service, slot)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceDeployment, slot, err.Error()))
		return err
	}

	if !depExists {
		return o.createMachineWithDeployment(ctx, scope)
	}

	// Deployment already occupies the slot; reconcile its record first.
	depName, err := o.resolveDeployment(ctx, scope, "")
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceDeployment, slot, err.Error()))
		return err
	}
	_, known, err := o.store.GetDeployment(ctx, service, slot)
	if err != nil {
		return err
	}
	depRec, err := o.deploymentRecord(ctx, scope, depName)
	if err != nil {
		return err
	}
	if known {
		o.logEnd(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeReusedHere,
			failMsg(azure.ResourceDeployment, depName, "exist"))
	} else {
		o.logEnd(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeReusedManaged,
			failMsg(azure.ResourceDeployment, depName, "exist but was not managed before"))
	}

	vmExists, err := o.adapter.MachineExists(ctx, scope.CredentialID, service, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	if vmExists {
		_, managed, err := o.store.GetMachine(ctx, depRec.ID, vmName)
		if err != nil {
			return err
		}
		if managed {
			o.logEnd(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeReusedHere,
				failMsg(azure.ResourceMachine, vmName, "exist"))
			o.scopeObserver(scope).Event(Event{
				Type:     EventResourceReused,
				Step:     step.Kind(),
				Resource: vmName,
			})
			return nil
		}
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeCreatedAbsent,
			failMsg(azure.ResourceMachine, vmName, "already exist"))
		return fmt.Errorf("%w: %q in deployment %q", ErrMachineConflict, vmName, depName)
	}

	// A stale machine record means the remote machine vanished; drop it and
	// its endpoints before adding.
	if err := o.store.DeleteMachine(ctx, depRec.ID, vmName); err != nil {
		return err
	}

	spec, err := o.machineSpec(ctx, scope, depName, !unit.IsVMImage())
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	handle, err := o.adapter.AddMachine(ctx, scope.CredentialID, spec)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	remoteMutations.WithLabelValues(string(ledger.OpCreateMachine)).Inc()
	o.scopeObserver(scope).Event(Event{
		Type:     EventResourceCreating,
		Step:     step.Kind(),
		Resource: vmName,
	})

	o.dispatch(ctx, o.machineOperationPoll(scope, handle, 0, 0))
	return nil
}

func (o *Orchestrator) createMachineWithDeployment(ctx context.Context, scope Scope) error {
	unit := scope.Unit
	vmName := scope.MachineName()

	// The slot is empty remotely; whatever the ledger still holds for it is
	// stale.
	if err := o.store.DeleteDeployment(ctx, unit.CloudService.Name, unit.Deployment.Slot); err != nil {
		return err
	}

	spec, err := o.machineSpec(ctx, scope, unit.Deployment.Name, !unit.IsVMImage())
	if err != nil {
		msg := failMsg(azure.ResourceMachine, vmName, err.Error())
		o.logFail(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeRemoteError, msg)
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError, msg)
		return err
	}
	handle, err := o.adapter.CreateMachineDeployment(ctx, scope.CredentialID, spec)
	if err != nil {
		msg := failMsg(azure.ResourceMachine, vmName, err.Error())
		o.logFail(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeRemoteError, msg)
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError, msg)
		return err
	}
	remoteMutations.WithLabelValues(string(ledger.OpCreateDeployment)).Inc()
	remoteMutations.WithLabelValues(string(ledger.OpCreateMachine)).Inc()
	o.scopeObserver(scope).Event(Event{
		Type:     EventResourceCreating,
		Resource: vmName,
		Message:  "creating machine with deployment",
	})

	o.dispatch(ctx, o.machineDeploymentPoll(scope, handle, 0, 0))
	return nil
}

// machineDeploymentPoll waits for the combined deployment-and-machine create
// operation.
func (o *Orchestrator) machineDeploymentPoll(scope Scope, handle azure.OperationHandle, attempt int, pendingID int64) PollOperationStep {
	msg := failMsg(azure.ResourceMachine, scope.MachineName(), "wait for create failed")
	return PollOperationStep{
		Scope:       scope,
		Handle:      handle,
		Operation:   ledger.OpCreateDeployment,
		Interval:    o.opts.Timeouts.OperationInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.OperationAttempts,
		OnSuccess:   o.deploymentStatusPoll(scope, 0, 0),
		OnFailure:   bothMachineOps(scope, msg, ledger.SubcodeAsyncFailed),
		PendingID:   pendingID,
	}
}

// deploymentStatusPoll waits for the fresh deployment to report running.
func (o *Orchestrator) deploymentStatusPoll(scope Scope, attempt int, pendingID int64) PollDeploymentStep {
	msg := failMsg(azure.ResourceDeployment, scope.Unit.Deployment.Slot, "wait for running failed")
	return PollDeploymentStep{
		Scope:       scope,
		Operation:   ledger.OpCreateDeployment,
		Interval:    o.opts.Timeouts.DeploymentInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.DeploymentAttempts,
		OnSuccess:   DeploymentCreatedStep{Scope: scope},
		OnFailure:   bothMachineOps(scope, msg, ledger.SubcodeAsyncFailed),
		PendingID:   pendingID,
	}
}

// machineOperationPoll waits for an add-machine or network-update operation
// issued against an existing deployment.
func (o *Orchestrator) machineOperationPoll(scope Scope, handle azure.OperationHandle, attempt int, pendingID int64) PollOperationStep {
	networkConfigured := handle.Kind == azure.OpUpdateNetworkConfig
	detail := "wait for create failed"
	if networkConfigured {
		detail = "wait for network config update failed"
	}
	return PollOperationStep{
		Scope:       scope,
		Handle:      handle,
		Operation:   ledger.OpCreateMachine,
		Interval:    o.opts.Timeouts.OperationInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.OperationAttempts,
		OnSuccess:   o.machineReadyPoll(scope, handle.Deployment, networkConfigured, 0, 0),
		OnFailure: machineFailure(scope,
			failMsg(azure.ResourceMachine, scope.MachineName(), detail), ledger.SubcodeAsyncFailed),
		PendingID: pendingID,
	}
}

// machineReadyPoll waits for the machine instance to report ready after a
// create or a network config update.
func (o *Orchestrator) machineReadyPoll(scope Scope, deployment string, networkConfigured bool, attempt int, pendingID int64) PollMachineStep {
	return PollMachineStep{
		Scope:       scope,
		Deployment:  deployment,
		Target:      azure.InstanceReadyRole,
		Operation:   ledger.OpCreateMachine,
		Interval:    o.opts.Timeouts.MachineInterval,
		Attempt:     attempt,
		MaxAttempts: o.opts.Timeouts.MachineAttempts,
		OnSuccess:   MachineReadyStep{Scope: scope, Deployment: deployment, NetworkConfigured: networkConfigured},
		OnFailure: machineFailure(scope,
			failMsg(azure.ResourceMachine, scope.MachineName(), "wait for ready failed"), ledger.SubcodeAsyncFailed),
		PendingID: pendingID,
	}
}

// deploymentCreated commits the fresh deployment's record and waits for the
// machine instance.
func (o *Orchestrator) deploymentCreated(ctx context.Context, step DeploymentCreatedStep) error {
	scope := step.Scope
	slot := scope.Unit.Deployment.Slot

	depName, err := o.resolveDeployment(ctx, scope, "")
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceDeployment, slot, err.Error()))
		return err
	}
	if _, err := o.deploymentRecord(ctx, scope, depName); err != nil {
		return err
	}
	o.logEnd(ctx, scope, ledger.OpCreateDeployment, ledger.SubcodeCreated,
		failMsg(azure.ResourceDeployment, depName, "created"))
	o.scopeObserver(scope).Event(Event{
		Type:     EventResourceCreated,
		Step:     step.Kind(),
		Resource: depName,
	})

	o.dispatch(ctx, o.machineReadyPoll(scope, depName, false, 0, 0))
	return nil
}

// machineReady routes a ready machine to network configuration or
// finalization. Machines from pre-built images cannot take network config at
// create time, so it is applied here once.
func (o *Orchestrator) machineReady(ctx context.Context, step MachineReadyStep) error {
	if step.Scope.Unit.IsVMImage() && !step.NetworkConfigured {
		o.dispatch(ctx, ConfigureNetworkStep{Scope: step.Scope, Deployment: step.Deployment})
		return nil
	}
	o.dispatch(ctx, FinalizeMachineStep{Scope: step.Scope, Deployment: step.Deployment})
	return nil
}

// configureNetwork applies the unit's endpoint mapping to a machine created
// from a pre-built image, then waits for the machine to settle again.
func (o *Orchestrator) configureNetwork(ctx context.Context, step ConfigureNetworkStep) error {
	scope := step.Scope
	vmName := scope.MachineName()

	depName, err := o.resolveDeployment(ctx, scope, step.Deployment)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	cfg, err := o.buildNetworkConfig(ctx, scope)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	handle, err := o.adapter.UpdateNetworkConfig(ctx, scope.CredentialID,
		scope.Unit.CloudService.Name, depName, vmName, cfg)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	remoteMutations.WithLabelValues(string(ledger.OpCreateMachine)).Inc()

	o.dispatch(ctx, o.machineOperationPoll(scope, handle, 0, 0))
	return nil
}

// finalizeMachine reads back the ready machine's addresses and endpoint
// mapping, writes the machine, endpoint, and environment records, and closes
// the chain.
func (o *Orchestrator) finalizeMachine(ctx context.Context, step FinalizeMachineStep) error {
	scope := step.Scope
	unit := scope.Unit
	service := unit.CloudService.Name
	vmName := scope.MachineName()

	depName, err := o.resolveDeployment(ctx, scope, step.Deployment)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	depRec, err := o.deploymentRecord(ctx, scope, depName)
	if err != nil {
		return err
	}

	publicIP, err := o.adapter.PublicAddress(ctx, scope.CredentialID, service, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	privateIP, err := o.adapter.PrivateAddress(ctx, scope.CredentialID, service, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
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

	cfg, err := o.adapter.NetworkConfig(ctx, scope.CredentialID, service, depName, vmName)
	if err != nil {
		o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
			failMsg(azure.ResourceMachine, vmName, err.Error()))
		return err
	}
	var endpoints []ledger.Endpoint
	if cfg != nil {
		for _, ep := range cfg.Endpoints {
			endpoints = append(endpoints, ledger.Endpoint{
				MachineID:   machineID,
				Name:        ep.Name,
				Protocol:    ep.Protocol,
				PublicPort:  ep.PublicPort,
				PrivatePort: ep.PrivatePort,
			})
		}
	}
	if err := o.store.ReplaceEndpoints(ctx, machineID, endpoints); err != nil {
		return err
	}

	remoteParams := ""
	if unit.Remote.EndpointName != "" {
		port, err := o.adapter.PublicPort(ctx, scope.CredentialID, service, depName, vmName, unit.Remote.EndpointName)
		if err != nil {
			o.logFail(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeRemoteError,
				failMsg(azure.ResourceMachine, vmName, err.Error()))
			return err
		}
		remoteParams, err = unit.RemoteParams(vmName, dns, port)
		if err != nil {
			return err
		}
	}

	if _, err := o.store.UpsertEnvironment(ctx, ledger.Environment{
		ExperimentID: scope.ExperimentID,
		MachineID:    machineID,
		Name:         vmName,
		Status:       ledger.EnvironmentRunning,
		RemoteKind:   unit.Remote.Provider,
		RemoteParams: remoteParams,
	}); err != nil {
		return err
	}

	o.logEnd(ctx, scope, ledger.OpCreateMachine, ledger.SubcodeCreated,
		failMsg(azure.ResourceMachine, vmName, "created"))
	o.scopeObserver(scope).Event(Event{
		Type:     EventChainCompleted,
		Step:     step.Kind(),
		Resource: vmName,
	})
	return nil
}
