// Package modification tracks the edits a user stages against a running
// process instance before submitting them as a single modification request.
//
// The Log is an append-ordered list of Modification entries. Per flow node
// token counts, latest-wins variable edits and cancellation flags are derived
// from it on every read and never stored separately.
package modification

import (
	"errors"
	"fmt"

	"github.com/dshills/flowmod/pkg/domain/types"
)

// Operation names the kind of edit a modification stages.
type Operation string

const (
	// OperationAddToken adds tokens to a flow node within a scope.
	OperationAddToken Operation = "ADD_TOKEN"
	// OperationCancelToken cancels the tokens active on a flow node.
	OperationCancelToken Operation = "CANCEL_TOKEN"
	// OperationMoveToken cancels tokens on a source node and activates the target node.
	OperationMoveToken Operation = "MOVE_TOKEN"
	// OperationAddVariable creates a new variable in a scope.
	OperationAddVariable Operation = "ADD_VARIABLE"
	// OperationEditVariable changes the value of an existing variable.
	OperationEditVariable Operation = "EDIT_VARIABLE"
)

// IsFlowNodeOperation reports whether op applies to flow node tokens.
func (op Operation) IsFlowNodeOperation() bool {
	switch op {
	case OperationAddToken, OperationCancelToken, OperationMoveToken:
		return true
	}
	return false
}

// IsVariableOperation reports whether op applies to variables.
func (op Operation) IsVariableOperation() bool {
	return op == OperationAddVariable || op == OperationEditVariable
}

// ParseOperation converts a string into an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if op.IsFlowNodeOperation() || op.IsVariableOperation() {
		return op, nil
	}
	return "", fmt.Errorf("unknown operation %q", s)
}

// Kind discriminates the two Modification variants.
type Kind string

const (
	KindToken    Kind = "token"
	KindVariable Kind = "variable"
)

// Modification is a single staged edit. It is implemented only by
// FlowNodeModification and VariableModification.
type Modification interface {
	Kind() Kind
	Op() Operation
	Validate() error
	isModification()
}

// FlowNodeRef identifies a flow node together with its display name.
type FlowNodeRef struct {
	ID   types.FlowNodeID `json:"id" yaml:"id"`
	Name string           `json:"name" yaml:"name"`
}

// FlowNodeModification stages a token edit on a flow node.
type FlowNodeModification struct {
	Operation          Operation     `json:"operation"`
	FlowNode           FlowNodeRef   `json:"flowNode"`
	AffectedTokenCount int           `json:"affectedTokenCount"`
	ScopeID            types.ScopeID `json:"scopeId,omitempty"`
	TargetFlowNode     *FlowNodeRef  `json:"targetFlowNode,omitempty"`
}

// Kind returns KindToken.
func (m FlowNodeModification) Kind() Kind { return KindToken }

// Op returns the staged operation.
func (m FlowNodeModification) Op() Operation { return m.Operation }

func (m FlowNodeModification) isModification() {}

// Validate checks the operation specific required fields.
func (m FlowNodeModification) Validate() error {
	if !m.Operation.IsFlowNodeOperation() {
		return fmt.Errorf("flow node modification: invalid operation %q", m.Operation)
	}
	if m.FlowNode.ID.IsZero() {
		return errors.New("flow node modification: empty flow node ID")
	}
	if m.AffectedTokenCount <= 0 {
		return fmt.Errorf("flow node modification: affected token count must be positive, got %d", m.AffectedTokenCount)
	}

	switch m.Operation {
	case OperationAddToken:
		if m.ScopeID == "" {
			return errors.New("ADD_TOKEN modification: empty scope ID")
		}
	case OperationMoveToken:
		if m.TargetFlowNode == nil || m.TargetFlowNode.ID.IsZero() {
			return errors.New("MOVE_TOKEN modification: missing target flow node")
		}
	}

	return nil
}

// clone returns a copy that shares no memory with m.
func (m FlowNodeModification) clone() FlowNodeModification {
	if m.TargetFlowNode != nil {
		target := *m.TargetFlowNode
		m.TargetFlowNode = &target
	}
	return m
}

// VariableModification stages the creation or change of a variable.
type VariableModification struct {
	Operation    Operation        `json:"operation"`
	ID           types.VariableID `json:"id"`
	ScopeID      types.ScopeID    `json:"scopeId"`
	FlowNodeName string           `json:"flowNodeName"`
	Name         string           `json:"name"`
	NewValue     string           `json:"newValue"`
	OldValue     *string          `json:"oldValue,omitempty"`
}

// Kind returns KindVariable.
func (m VariableModification) Kind() Kind { return KindVariable }

// Op returns the staged operation.
func (m VariableModification) Op() Operation { return m.Operation }

func (m VariableModification) isModification() {}

// Validate checks the required variable fields.
func (m VariableModification) Validate() error {
	if !m.Operation.IsVariableOperation() {
		return fmt.Errorf("variable modification: invalid operation %q", m.Operation)
	}
	if m.ID == "" {
		return errors.New("variable modification: empty variable ID")
	}
	if m.ScopeID == "" {
		return errors.New("variable modification: empty scope ID")
	}
	if m.Name == "" {
		return errors.New("variable modification: empty variable name")
	}
	return nil
}

func (m VariableModification) clone() VariableModification {
	if m.OldValue != nil {
		old := *m.OldValue
		m.OldValue = &old
	}
	return m
}

// NewAddToken stages count new tokens on flowNode inside scopeID.
func NewAddToken(flowNode FlowNodeRef, scopeID types.ScopeID, count int) (FlowNodeModification, error) {
	m := FlowNodeModification{
		Operation:          OperationAddToken,
		FlowNode:           flowNode,
		AffectedTokenCount: count,
		ScopeID:            scopeID,
	}
	return m, m.Validate()
}

// NewCancelToken stages the cancellation of count tokens on flowNode.
func NewCancelToken(flowNode FlowNodeRef, count int) (FlowNodeModification, error) {
	m := FlowNodeModification{
		Operation:          OperationCancelToken,
		FlowNode:           flowNode,
		AffectedTokenCount: count,
	}
	return m, m.Validate()
}

// NewMoveToken stages moving count tokens from source to target.
func NewMoveToken(source, target FlowNodeRef, count int) (FlowNodeModification, error) {
	m := FlowNodeModification{
		Operation:          OperationMoveToken,
		FlowNode:           source,
		AffectedTokenCount: count,
		TargetFlowNode:     &target,
	}
	return m, m.Validate()
}

// NewAddVariable stages a new variable in scopeID.
func NewAddVariable(scopeID types.ScopeID, id types.VariableID, flowNodeName, name, newValue string) (VariableModification, error) {
	m := VariableModification{
		Operation:    OperationAddVariable,
		ID:           id,
		ScopeID:      scopeID,
		FlowNodeName: flowNodeName,
		Name:         name,
		NewValue:     newValue,
	}
	return m, m.Validate()
}

// NewEditVariable stages a new value for an existing variable.
func NewEditVariable(scopeID types.ScopeID, id types.VariableID, flowNodeName, name, oldValue, newValue string) (VariableModification, error) {
	m := VariableModification{
		Operation:    OperationEditVariable,
		ID:           id,
		ScopeID:      scopeID,
		FlowNodeName: flowNodeName,
		Name:         name,
		NewValue:     newValue,
		OldValue:     &oldValue,
	}
	return m, m.Validate()
}

// cloneModification copies m, normalising pointer variants to values.
// It returns nil for nil input, including typed nil pointers.
func cloneModification(m Modification) Modification {
	switch v := m.(type) {
	case FlowNodeModification:
		return v.clone()
	case *FlowNodeModification:
		if v == nil {
			return nil
		}
		return v.clone()
	case VariableModification:
		return v.clone()
	case *VariableModification:
		if v == nil {
			return nil
		}
		return v.clone()
	default:
		return m
	}
}
