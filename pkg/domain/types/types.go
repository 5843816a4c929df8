// Package types defines core domain identifiers for flowmod.
package types

import "github.com/google/uuid"

// FlowNodeID identifies a flow node within a process diagram.
type FlowNodeID string

// ScopeID identifies an execution scope (element instance key) within a process instance.
type ScopeID string

// VariableID identifies a variable within a scope.
type VariableID string

// InstanceID identifies the process instance being modified.
type InstanceID string

// SubmissionID is a unique identifier for a submitted modification request.
type SubmissionID string

// String returns the string representation of a FlowNodeID.
func (id FlowNodeID) String() string {
	return string(id)
}

// IsZero returns true if the FlowNodeID is the zero value.
func (id FlowNodeID) IsZero() bool {
	return id == ""
}

// String returns the string representation of an InstanceID.
func (id InstanceID) String() string {
	return string(id)
}

// NewSubmissionID generates a new unique submission ID.
func NewSubmissionID() SubmissionID {
	return SubmissionID(uuid.NewString())
}

// String returns the string representation of a SubmissionID.
func (id SubmissionID) String() string {
	return string(id)
}

// IsZero returns true if the SubmissionID is the zero value.
func (id SubmissionID) IsZero() bool {
	return id == ""
}
