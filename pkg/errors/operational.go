package errors

import (
	"fmt"
	"time"
)

// OperationalError carries the context of a failed modification operation.
//
// It records which operation failed, against which process instance and,
// when relevant, which flow node. It unwraps to the underlying cause so
// callers can still match sentinel errors with errors.Is.
type OperationalError struct {
	Operation  string         // What operation was being performed
	InstanceID string         // Which process instance
	FlowNodeID string         // Which flow node (if applicable)
	Timestamp  time.Time      // When error occurred
	Attributes map[string]any // Additional context (optional)
	Cause      error          // Underlying error
}

// NewOperationalError creates an OperationalError wrapping an error.
//
// Returns nil if cause is nil.
//
// Example:
//
//	if err != nil {
//	    return NewOperationalError("building request", instanceID, flowNodeID, err)
//	}
func NewOperationalError(operation, instanceID, flowNodeID string, cause error) *OperationalError {
	if cause == nil {
		return nil
	}

	return &OperationalError{
		Operation:  operation,
		InstanceID: instanceID,
		FlowNodeID: flowNodeID,
		Timestamp:  time.Now(),
		Cause:      cause,
	}
}

// NewOperationalErrorWithAttrs creates an OperationalError with additional attributes.
//
// Returns nil if cause is nil.
func NewOperationalErrorWithAttrs(operation, instanceID, flowNodeID string, cause error, attrs map[string]any) *OperationalError {
	err := NewOperationalError(operation, instanceID, flowNodeID, cause)
	if err == nil {
		return nil
	}
	err.Attributes = attrs
	return err
}

// Error implements the error interface.
//
// Format: "operation: instance={id} flowNode={id}: {cause}"
// The flow node part is omitted when empty.
func (e *OperationalError) Error() string {
	if e == nil {
		return "<nil OperationalError>"
	}

	if e.FlowNodeID != "" {
		return fmt.Sprintf("%s: instance=%s flowNode=%s: %v",
			e.Operation,
			e.InstanceID,
			e.FlowNodeID,
			e.Cause)
	}

	return fmt.Sprintf("%s: instance=%s: %v",
		e.Operation,
		e.InstanceID,
		e.Cause)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationalError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}
