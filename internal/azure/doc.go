// Package azure wraps the remote IaaS control plane behind a small set of
// capability interfaces. It is the only boundary to the provider: callers
// check existence and name availability, issue create/start/stop mutations,
// and look up operation, deployment, and instance statuses.
//
// Asynchronous mutations return an OperationHandle that callers poll through
// OperationStatus. A not-found condition is a distinguished non-error return
// so callers can branch directly; every other provider failure surfaces as a
// *RemoteServiceError.
package azure
