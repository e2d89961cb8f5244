package provisioning

import "errors"

// Client errors raised before any remote mutation is attempted. They carry
// no retry value; the caller must fix the request.
var (
	// ErrNameUnavailable means the requested resource name is taken
	// outside this subscription.
	ErrNameUnavailable = errors.New("resource name unavailable")

	// ErrQuotaExceeded means the subscription cannot fit the resource.
	ErrQuotaExceeded = errors.New("subscription quota exceeded")

	// ErrInvalidTransition means the requested lifecycle transition is not
	// legal from the machine's current state.
	ErrInvalidTransition = errors.New("invalid machine state transition")

	// ErrQuotaUnknown means the quota snapshot could not be read, so no
	// availability claim can be made.
	ErrQuotaUnknown = errors.New("subscription quota unknown")

	// ErrMachineConflict means a machine with the requested name exists
	// remotely but is not managed by this orchestrator.
	ErrMachineConflict = errors.New("virtual machine already exists")
)
