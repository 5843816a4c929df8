// Package session ties a modification log to one process instance for the
// duration of an editing session, from entering modification mode until the
// staged edits are submitted or discarded.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dshills/flowmod/pkg/domain/submission"
	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/dshills/flowmod/pkg/modification"
	"github.com/dshills/flowmod/pkg/request"
)

var (
	// ErrNothingToSubmit is returned by Submit when no modifications are staged.
	ErrNothingToSubmit = errors.New("nothing to submit")
	// ErrNotEditing is returned by Submit when modification mode is off.
	ErrNotEditing = errors.New("modification mode is not enabled")
)

// Recorder stores submitted requests.
type Recorder interface {
	Save(s *submission.Submission) error
}

// Config configures a Session.
type Config struct {
	// InstanceID is the process instance being modified. Required.
	InstanceID types.InstanceID
	// ProcessID is the process definition of the instance, recorded with submissions.
	ProcessID string
	// Diagram resolves flow node names and multi-instance flags. Optional.
	Diagram modification.DiagramMetadata
	// Recorder receives every successful submission. Optional.
	Recorder Recorder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// MoveTokenCount overrides the affected token count of moves when positive.
	MoveTokenCount int
	// StrictScopeKeys requires variable scopes to be element instance keys.
	StrictScopeKeys bool
}

// Session is a single editing session against one process instance.
type Session struct {
	instanceID types.InstanceID
	processID  string
	diagram    modification.DiagramMetadata
	log        *modification.Log
	recorder   Recorder
	logger     *slog.Logger
	strict     bool
}

// New creates a session with an empty, disabled log.
func New(cfg Config) (*Session, error) {
	if cfg.InstanceID == "" {
		return nil, errors.New("instance ID cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := []modification.Option{modification.WithMoveTokenCount(cfg.MoveTokenCount)}
	if cfg.Diagram != nil {
		opts = append(opts, modification.WithDiagram(cfg.Diagram))
	}

	return &Session{
		instanceID: cfg.InstanceID,
		processID:  cfg.ProcessID,
		diagram:    cfg.Diagram,
		log:        modification.NewLog(opts...),
		recorder:   cfg.Recorder,
		logger:     logger.With("instance", cfg.InstanceID),
		strict:     cfg.StrictScopeKeys,
	}, nil
}

// InstanceID returns the instance being modified.
func (s *Session) InstanceID() types.InstanceID {
	return s.instanceID
}

// Log returns the session's modification log.
func (s *Session) Log() *modification.Log {
	return s.log
}

// FlowNodeRef resolves id to a reference carrying its display name.
func (s *Session) FlowNodeRef(id types.FlowNodeID) modification.FlowNodeRef {
	name := string(id)
	if s.diagram != nil {
		name = s.diagram.FlowNodeName(id)
	}
	return modification.FlowNodeRef{ID: id, Name: name}
}

// Enter switches the log into modification mode.
func (s *Session) Enter() {
	s.log.EnableModificationMode()
	s.logger.Debug("modification mode entered")
}

// Cancel discards all staged modifications and leaves modification mode.
func (s *Session) Cancel() {
	discarded := s.log.Len()
	s.log.Reset()
	s.logger.Info("modifications discarded", "count", discarded)
}

// Exit leaves modification mode, discarding staged modifications.
func (s *Session) Exit() {
	s.log.Reset()
	s.logger.Debug("modification mode exited")
}

// Preview builds and validates the request the staged modifications would
// produce, without submitting it.
func (s *Session) Preview() (*request.Request, error) {
	if s.log.Len() == 0 {
		return nil, ErrNothingToSubmit
	}

	opts := []request.Option{}
	if s.diagram != nil {
		opts = append(opts, request.WithDiagram(s.diagram))
	}
	if s.strict {
		opts = append(opts, request.WithStrictScopeKeys())
	}

	req, err := request.FromLog(s.instanceID, s.log, opts...)
	if err != nil {
		return nil, err
	}
	if err := request.Validate(req); err != nil {
		return nil, fmt.Errorf("invalid modification request: %w", err)
	}
	return req, nil
}

// Submit builds the request, records it and resets the log. On error the
// staged modifications are kept so the user can fix them and retry.
func (s *Session) Submit() (*submission.Submission, error) {
	if !s.log.IsModificationModeEnabled() {
		return nil, ErrNotEditing
	}

	req, err := s.Preview()
	if err != nil {
		return nil, err
	}

	payload, err := req.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	summary := make(map[string]int)
	for op, n := range req.Summary() {
		summary[string(op)] = n
	}

	sub, err := submission.New(s.instanceID, s.processID, req.ID, summary, payload)
	if err != nil {
		return nil, err
	}

	if s.recorder != nil {
		if err := s.recorder.Save(sub); err != nil {
			s.logger.Error("failed to record submission", "error", err)
			return nil, fmt.Errorf("failed to record submission: %w", err)
		}
	}

	s.log.Reset()
	s.logger.Info("modifications submitted", "submission", sub.ID, "instructions", sub.InstructionCount)
	return sub, nil
}
