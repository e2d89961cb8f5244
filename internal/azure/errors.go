package azure

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// RemoteServiceError wraps any transport or provider failure raised while
// talking to the control plane. The provider's own message is preserved so
// it can be written to the provisioning log verbatim.
type RemoteServiceError struct {
	Op       string // adapter method that failed
	Resource string // resource name, if any
	Err      error
}

// Error implements error.
func (e *RemoteServiceError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.Resource, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes the provider error for errors.As chains.
func (e *RemoteServiceError) Unwrap() error { return e.Err }

// remoteErr wraps err as a *RemoteServiceError unless it is nil.
func remoteErr(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &RemoteServiceError{Op: op, Resource: resource, Err: err}
}

// IsNotFound reports whether err represents a missing remote resource.
// Not-found is a branching condition for the orchestrator, never an error.
func IsNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return false
}

// IsConflict reports whether err is a name-collision style rejection.
func IsConflict(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusConflict
	}
	return false
}
