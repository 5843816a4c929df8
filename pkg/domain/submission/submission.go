// Package submission records modification requests that left an editing session.
package submission

import (
	"errors"
	"time"

	"github.com/dshills/flowmod/pkg/domain/types"
)

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// Submission is a modification request as it was handed to the engine.
type Submission struct {
	// ID is the unique identifier of this record.
	ID types.SubmissionID
	// RequestID is the id carried inside the request payload.
	RequestID string
	// InstanceID is the process instance the request targets.
	InstanceID types.InstanceID
	// ProcessID is the process definition of the instance, if known.
	ProcessID string
	// SubmittedAt is when the session submitted the request.
	SubmittedAt time.Time
	// InstructionCount is the number of instructions in the request.
	InstructionCount int
	// Summary counts instructions per operation name.
	Summary map[string]int
	// Payload is the JSON request body.
	Payload []byte
}

// New creates a submission record for a request payload.
func New(instanceID types.InstanceID, processID, requestID string, summary map[string]int, payload []byte) (*Submission, error) {
	if instanceID == "" {
		return nil, errors.New("instance ID cannot be empty")
	}
	if len(payload) == 0 {
		return nil, errors.New("payload cannot be empty")
	}

	count := 0
	for _, n := range summary {
		count += n
	}

	return &Submission{
		ID:               types.NewSubmissionID(),
		RequestID:        requestID,
		InstanceID:       instanceID,
		ProcessID:        processID,
		SubmittedAt:      time.Now().UTC(),
		InstructionCount: count,
		Summary:          summary,
		Payload:          payload,
	}, nil
}

// Repository persists submitted requests.
type Repository interface {
	// Save persists a submission. Saving an existing ID replaces it.
	Save(s *Submission) error

	// Load retrieves a submission by ID. Returns ErrNotFound if absent.
	Load(id types.SubmissionID) (*Submission, error)

	// ListByInstance returns the submissions for one instance, most recent first.
	ListByInstance(instanceID types.InstanceID) ([]*Submission, error)

	// List returns up to limit submissions, most recent first. limit <= 0 means all.
	List(limit int) ([]*Submission, error)

	// Delete removes a submission. Returns ErrNotFound if absent.
	Delete(id types.SubmissionID) error
}
