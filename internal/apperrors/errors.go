package apperrors

import "fmt"

// ValidationError reports a malformed request or intent.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Msg
}

// NewValidation builds a ValidationError with a formatted message.
func NewValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an unknown entity (team, task, subtask index).
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// NewNotFound builds a NotFoundError.
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidStateError reports an illegal state-machine transition, such as
// finishing a task while one of its subtasks is still pending.
type InvalidStateError struct {
	Msg string
}

func (e *InvalidStateError) Error() string {
	return "invalid state: " + e.Msg
}

// NewInvalidState builds an InvalidStateError with a formatted message.
func NewInvalidState(format string, args ...interface{}) *InvalidStateError {
	return &InvalidStateError{Msg: fmt.Sprintf(format, args...)}
}

// AdapterError wraps a failure from one external system. It carries the
// integration name so aggregate results can say which system broke.
type AdapterError struct {
	Integration string
	Err         error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %v", e.Integration, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// NewAdapter wraps err as an AdapterError for the named integration.
func NewAdapter(integration string, err error) *AdapterError {
	return &AdapterError{Integration: integration, Err: err}
}

// PartialFailure is the aggregate error when at least one mandatory
// integration failed while others succeeded. The successful partial
// results are kept by the caller; this error only summarizes the damage.
type PartialFailure struct {
	Errors   []string
	Warnings []string
}

func (e *PartialFailure) Error() string {
	return fmt.Sprintf("provisioning partially failed: %d error(s), %d warning(s)", len(e.Errors), len(e.Warnings))
}
