package provisioning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/expcloud/azureform/internal/azure"
)

// FindUnassignedPorts picks count public ports from the candidate range
// [base, limit) by first fit, skipping everything in assigned.
func FindUnassignedPorts(assigned []int, count, base, limit int) ([]int, error) {
	taken := make(map[int]struct{}, len(assigned))
	for _, p := range assigned {
		taken[p] = struct{}{}
	}
	ports := make([]int, 0, count)
	for candidate := base; candidate < limit && len(ports) < count; candidate++ {
		if _, used := taken[candidate]; used {
			continue
		}
		ports = append(ports, candidate)
	}
	if len(ports) < count {
		return nil, fmt.Errorf("no %d free public ports in [%d, %d)", count, base, limit)
	}
	return ports, nil
}

// buildNetworkConfig maps the unit's endpoints onto free public ports of the
// owning cloud service.
func (o *Orchestrator) buildNetworkConfig(ctx context.Context, scope Scope) (azure.NetworkConfig, error) {
	unit := scope.Unit
	assigned, err := o.adapter.AssignedPublicPorts(ctx, scope.CredentialID, unit.CloudService.Name)
	if err != nil {
		return azure.NetworkConfig{}, err
	}
	ports, err := FindUnassignedPorts(assigned, len(unit.NetworkConfig.Endpoints), o.opts.PortBase, o.opts.PortLimit)
	if err != nil {
		return azure.NetworkConfig{}, err
	}

	var cfg azure.NetworkConfig
	for i, ep := range unit.NetworkConfig.Endpoints {
		cfg.Endpoints = append(cfg.Endpoints, azure.Endpoint{
			Name:        ep.Name,
			Protocol:    ep.Protocol,
			PublicPort:  ports[i],
			PrivatePort: ep.PrivatePort,
		})
	}
	return cfg, nil
}

// AssignPublicEndpoints maps the given private ports of a machine onto free
// public ports of its cloud service. Unlike the provisioning chain this is a
// synchronous utility: it waits for the network update and the machine to
// settle, bounded by the configured poll budgets, and returns the assigned
// public ports in private-port order.
func (o *Orchestrator) AssignPublicEndpoints(ctx context.Context, credentialID, service, slot, machine string, privatePorts []int) ([]int, error) {
	deployment, err := o.adapter.DeploymentName(ctx, credentialID, service, slot)
	if err != nil {
		return nil, err
	}
	current, err := o.adapter.NetworkConfig(ctx, credentialID, service, deployment, machine)
	if err != nil {
		return nil, err
	}
	assigned, err := o.adapter.AssignedPublicPorts(ctx, credentialID, service)
	if err != nil {
		return nil, err
	}
	ports, err := FindUnassignedPorts(assigned, len(privatePorts), o.opts.PortBase, o.opts.PortLimit)
	if err != nil {
		return nil, err
	}

	cfg := azure.NetworkConfig{}
	if current != nil {
		cfg.Endpoints = append(cfg.Endpoints, current.Endpoints...)
	}
	for i, private := range privatePorts {
		cfg.Endpoints = append(cfg.Endpoints, azure.Endpoint{
			Name:        fmt.Sprintf("auto-%d", ports[i]),
			Protocol:    "tcp",
			PublicPort:  ports[i],
			PrivatePort: private,
		})
	}

	if err := o.applyNetworkConfig(ctx, credentialID, service, deployment, machine, cfg); err != nil {
		return nil, err
	}
	return ports, nil
}

// ReleasePublicEndpoints removes the endpoints mapping the given private
// ports. Unknown private ports are ignored.
func (o *Orchestrator) ReleasePublicEndpoints(ctx context.Context, credentialID, service, slot, machine string, privatePorts []int) error {
	deployment, err := o.adapter.DeploymentName(ctx, credentialID, service, slot)
	if err != nil {
		return err
	}
	current, err := o.adapter.NetworkConfig(ctx, credentialID, service, deployment, machine)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	drop := make(map[int]struct{}, len(privatePorts))
	for _, p := range privatePorts {
		drop[p] = struct{}{}
	}
	var cfg azure.NetworkConfig
	for _, ep := range current.Endpoints {
		if _, gone := drop[ep.PrivatePort]; gone {
			continue
		}
		cfg.Endpoints = append(cfg.Endpoints, ep)
	}
	if len(cfg.Endpoints) == len(current.Endpoints) {
		return nil
	}
	sort.Slice(cfg.Endpoints, func(i, j int) bool { return cfg.Endpoints[i].PublicPort < cfg.Endpoints[j].PublicPort })

	return o.applyNetworkConfig(ctx, credentialID, service, deployment, machine, cfg)
}

// applyNetworkConfig issues the update and waits for the operation and the
// machine, bounded by the configured budgets.
func (o *Orchestrator) applyNetworkConfig(ctx context.Context, credentialID, service, deployment, machine string, cfg azure.NetworkConfig) error {
	handle, err := o.adapter.UpdateNetworkConfig(ctx, credentialID, service, deployment, machine, cfg)
	if err != nil {
		return err
	}
	remoteMutations.WithLabelValues("update_network_config").Inc()

	if err := o.waitOperation(ctx, handle); err != nil {
		return err
	}
	return o.waitInstance(ctx, credentialID, service, deployment, machine, azure.InstanceReadyRole)
}

func (o *Orchestrator) waitOperation(ctx context.Context, handle azure.OperationHandle) error {
	t := o.opts.Timeouts
	for attempt := 0; attempt < t.OperationAttempts; attempt++ {
		res, err := o.adapter.OperationStatus(ctx, handle)
		if err != nil {
			return err
		}
		switch res.Status {
		case azure.OperationSucceeded:
			return nil
		case azure.OperationFailed:
			return fmt.Errorf("operation %s failed: %s %s", handle.ID, res.Code, res.Message)
		}
		if err := sleepCtx(ctx, t.OperationInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("operation %s still pending after %d checks", handle.ID, t.OperationAttempts)
}

func (o *Orchestrator) waitInstance(ctx context.Context, credentialID, service, deployment, machine string, target azure.InstanceStatus) error {
	t := o.opts.Timeouts
	for attempt := 0; attempt < t.MachineAttempts; attempt++ {
		status, err := o.adapter.InstanceStatus(ctx, credentialID, service, deployment, machine)
		if err != nil {
			return err
		}
		if status == target {
			return nil
		}
		if err := sleepCtx(ctx, t.MachineInterval); err != nil {
			return err
		}
	}
	return fmt.Errorf("machine %s did not reach %s after %d checks", machine, target, t.MachineAttempts)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
