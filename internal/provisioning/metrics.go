package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azureform",
		Name:      "steps_dispatched_total",
		Help:      "Steps dispatched to handlers, by step kind.",
	}, []string{"kind"})

	remoteMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azureform",
		Name:      "remote_mutations_total",
		Help:      "Mutating calls issued to the control plane, by operation.",
	}, []string{"operation"})

	pollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azureform",
		Name:      "poll_attempts_total",
		Help:      "Status checks performed by the poller, by operation.",
	}, []string{"operation"})

	chainFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "azureform",
		Name:      "chain_failures_total",
		Help:      "Provisioning chains terminated in failure, by operation.",
	}, []string{"operation"})
)
