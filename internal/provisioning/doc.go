// Package provisioning implements the orchestrator: the create-or-reuse
// state machines that take an experiment from a storage account through a
// cloud service, deployment, and virtual machine to live network endpoints.
//
// Work advances as a chain of typed steps. Every step is a plain struct; a
// Dispatcher maps step kinds to handlers and a Scheduler re-enters the chain
// after a delay instead of blocking a worker. Asynchronous remote mutations
// therefore suspend at "schedule the next step" points and resume when the
// poller observes a terminal status.
//
// Within one chain steps run strictly sequentially. Chains of different
// experiments run concurrently and share only the adapter's session cache
// and the ledger; deterministic resource naming keeps them from colliding.
package provisioning
