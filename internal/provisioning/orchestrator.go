package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/expcloud/azureform/internal/azure"
	"github.com/expcloud/azureform/internal/ledger"
	"github.com/expcloud/azureform/internal/template"
)

// Timeouts bounds the three poll loops a chain can enter. An Interval is the
// delay between status checks, Attempts the total number of checks before
// the chain fails with a timeout.
type Timeouts struct {
	OperationInterval  time.Duration `yaml:"operation_interval" mapstructure:"operation_interval"`
	OperationAttempts  int           `yaml:"operation_attempts" mapstructure:"operation_attempts"`
	DeploymentInterval time.Duration `yaml:"deployment_interval" mapstructure:"deployment_interval"`
	DeploymentAttempts int           `yaml:"deployment_attempts" mapstructure:"deployment_attempts"`
	MachineInterval    time.Duration `yaml:"machine_interval" mapstructure:"machine_interval"`
	MachineAttempts    int           `yaml:"machine_attempts" mapstructure:"machine_attempts"`
}

// DefaultTimeouts returns the stock poll budgets: three-second ticks,
// machines get a longer budget than plain operations.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		OperationInterval:  3 * time.Second,
		OperationAttempts:  100,
		DeploymentInterval: 3 * time.Second,
		DeploymentAttempts: 100,
		MachineInterval:    3 * time.Second,
		MachineAttempts:    200,
	}
}

// Options configures an Orchestrator.
type Options struct {
	Timeouts Timeouts

	// PortBase and PortLimit bound the candidate range for public port
	// assignment; PortLimit is exclusive.
	PortBase  int
	PortLimit int
}

// DefaultOptions returns the stock configuration.
func DefaultOptions() Options {
	return Options{
		Timeouts:  DefaultTimeouts(),
		PortBase:  10000,
		PortLimit: 40000,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Timeouts.OperationInterval <= 0 {
		o.Timeouts.OperationInterval = def.Timeouts.OperationInterval
	}
	if o.Timeouts.OperationAttempts <= 0 {
		o.Timeouts.OperationAttempts = def.Timeouts.OperationAttempts
	}
	if o.Timeouts.DeploymentInterval <= 0 {
		o.Timeouts.DeploymentInterval = def.Timeouts.DeploymentInterval
	}
	if o.Timeouts.DeploymentAttempts <= 0 {
		o.Timeouts.DeploymentAttempts = def.Timeouts.DeploymentAttempts
	}
	if o.Timeouts.MachineInterval <= 0 {
		o.Timeouts.MachineInterval = def.Timeouts.MachineInterval
	}
	if o.Timeouts.MachineAttempts <= 0 {
		o.Timeouts.MachineAttempts = def.Timeouts.MachineAttempts
	}
	if o.PortBase <= 0 {
		o.PortBase = def.PortBase
	}
	if o.PortLimit <= o.PortBase {
		o.PortLimit = def.PortLimit
	}
	return o
}

// Orchestrator drives provisioning chains: storage account, cloud service,
// deployment, virtual machine, endpoints. Entry methods run the first step
// inline so client errors surface synchronously; everything asynchronous is
// scheduled and runs on timer goroutines until the chain terminates.
type Orchestrator struct {
	adapter  azure.Adapter
	store    ledger.Store
	quota    *QuotaChecker
	observer Observer

	dispatcher *Dispatcher
	scheduler  *TimerScheduler

	opts Options
}

// New wires an Orchestrator over the control-plane adapter and the ledger.
func New(adapter azure.Adapter, store ledger.Store, observer Observer, opts Options) *Orchestrator {
	o := &Orchestrator{
		adapter:  adapter,
		store:    store,
		quota:    NewQuotaChecker(adapter),
		observer: observer,
		opts:     opts.withDefaults(),
	}
	o.dispatcher = NewDispatcher(observer)
	o.scheduler = NewTimerScheduler(o.dispatcher.Dispatch)
	o.registerHandlers()
	return o
}

// logged adapts an error-returning step method to a Handler. The method has
// already written the failure to the provisioning log and the observer by
// the time it returns, so the error itself is dropped here.
func logged[S Step](fn func(context.Context, S) error) Handler {
	return func(ctx context.Context, step Step) {
		_ = fn(ctx, step.(S))
	}
}

func (o *Orchestrator) registerHandlers() {
	d := o.dispatcher
	d.Register(KindProvisionStorage, logged(o.provisionStorage))
	d.Register(KindStorageCreated, logged(o.storageCreated))
	d.Register(KindProvisionService, logged(o.provisionService))
	d.Register(KindProvisionMachine, logged(o.provisionMachine))
	d.Register(KindDeploymentCreated, logged(o.deploymentCreated))
	d.Register(KindMachineReady, logged(o.machineReady))
	d.Register(KindConfigureNetwork, logged(o.configureNetwork))
	d.Register(KindFinalizeMachine, logged(o.finalizeMachine))
	d.Register(KindStartMachine, logged(o.startMachine))
	d.Register(KindFinalizeStart, logged(o.finalizeStart))
	d.Register(KindStopMachine, logged(o.stopMachine))
	d.Register(KindFinalizeStop, logged(o.finalizeStop))
	d.Register(KindPollOperation, logged(o.pollOperation))
	d.Register(KindPollDeployment, logged(o.pollDeployment))
	d.Register(KindPollMachine, logged(o.pollMachine))
	d.Register(KindChainFailed, logged(o.chainFailed))
}

// Provision starts the provisioning chain for one unit. It returns once the
// chain is underway: a nil error means every remote mutation issued so far
// was accepted, not that the chain has completed. Client errors (bad names,
// quota, conflicts) are returned synchronously.
func (o *Orchestrator) Provision(ctx context.Context, credentialID string, experimentID int64, unit template.Unit) error {
	return o.provisionStorage(ctx, ProvisionStorageStep{
		Scope: Scope{CredentialID: credentialID, ExperimentID: experimentID, Unit: unit},
	})
}

// Start starts the unit's machine. Like Provision it returns once the
// transition is underway.
func (o *Orchestrator) Start(ctx context.Context, credentialID string, experimentID int64, unit template.Unit) error {
	return o.startMachine(ctx, StartMachineStep{
		Scope: Scope{CredentialID: credentialID, ExperimentID: experimentID, Unit: unit},
	})
}

// Stop stops the unit's machine, releasing its compute allocation when
// deallocate is set. A soft stop of an already deallocated machine is an
// invalid transition and fails synchronously.
func (o *Orchestrator) Stop(ctx context.Context, credentialID string, experimentID int64, unit template.Unit, deallocate bool) error {
	return o.stopMachine(ctx, StopMachineStep{
		Scope:      Scope{CredentialID: credentialID, ExperimentID: experimentID, Unit: unit},
		Deallocate: deallocate,
	})
}

// Wait blocks until every in-flight chain has terminated.
func (o *Orchestrator) Wait() { o.scheduler.Wait() }

// Close stops accepting new scheduled steps. Chains already in flight keep
// running; Wait drains them.
func (o *Orchestrator) Close() { o.scheduler.Close() }

func (o *Orchestrator) scopeObserver(scope Scope) Observer {
	return o.observer.WithFields(map[string]string{
		"credential": scope.CredentialID,
		"experiment": fmt.Sprintf("%d", scope.ExperimentID),
	})
}

func (o *Orchestrator) logStart(ctx context.Context, scope Scope, op ledger.Operation, message string) {
	_ = o.store.AppendLog(ctx, ledger.LogEntry{
		ExperimentID: scope.ExperimentID,
		Operation:    op,
		Phase:        ledger.PhaseStart,
		Message:      message,
	})
}

func (o *Orchestrator) logEnd(ctx context.Context, scope Scope, op ledger.Operation, subcode int, message string) {
	_ = o.store.AppendLog(ctx, ledger.LogEntry{
		ExperimentID: scope.ExperimentID,
		Operation:    op,
		Phase:        ledger.PhaseEnd,
		Message:      message,
		Subcode:      subcode,
	})
}

// logFail records a failed operation in the provisioning log and surfaces it
// through metrics and the observer.
func (o *Orchestrator) logFail(ctx context.Context, scope Scope, op ledger.Operation, subcode int, message string) {
	_ = o.store.AppendLog(ctx, ledger.LogEntry{
		ExperimentID: scope.ExperimentID,
		Operation:    op,
		Phase:        ledger.PhaseFail,
		Message:      message,
		Subcode:      subcode,
	})
	chainFailures.WithLabelValues(string(op)).Inc()
	o.scopeObserver(scope).Event(Event{
		Type:    EventChainFailed,
		Message: message,
		Fields:  map[string]string{"operation": string(op), "subcode": fmt.Sprintf("%d", subcode)},
	})
}

// chainFailed terminates a chain by writing one FAIL entry per affected
// operation.
func (o *Orchestrator) chainFailed(ctx context.Context, step FailureStep) error {
	for _, f := range step.Failures {
		msg := f.Message
		if step.Timeout {
			msg += " (timed out)"
		}
		o.logFail(ctx, step.Scope, f.Operation, f.Subcode, msg)
	}
	return nil
}
