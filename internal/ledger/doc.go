// Package ledger persists everything the orchestrator must remember across
// process restarts: the append-only provisioning log, the mirror records of
// remote resources (storage accounts, cloud services, deployments, machines,
// endpoints, virtual environments), and the pending asynchronous operations
// that a restarted process resumes polling.
//
// Resource records cascade: deleting a cloud service removes its deployments,
// their machines, and the machines' endpoints, which is what keeps the mirror
// consistent when a stale resource is torn down before re-creation.
package ledger
