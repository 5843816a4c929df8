// Package request turns the modifications staged in a log into the
// modification request accepted by the process engine.
package request

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/flowmod/pkg/domain/types"
	flowerrors "github.com/dshills/flowmod/pkg/errors"
	"github.com/dshills/flowmod/pkg/modification"
	"github.com/dshills/flowmod/pkg/validation"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// ErrEmptyRequest is returned when there is nothing to submit.
var ErrEmptyRequest = errors.New("no modifications to submit")

// Instruction is one engine modification instruction.
type Instruction struct {
	Modification   modification.Operation     `json:"modification"`
	FromFlowNodeID types.FlowNodeID           `json:"fromFlowNodeId,omitempty"`
	ToFlowNodeID   types.FlowNodeID           `json:"toFlowNodeId,omitempty"`
	NewTokensCount int                        `json:"newTokensCount,omitempty"`
	ScopeKey       types.ScopeID              `json:"scopeKey,omitempty"`
	Variables      map[string]json.RawMessage `json:"variables,omitempty"`
}

// Request is a batch of instructions for one process instance.
type Request struct {
	ID                 string           `json:"requestId"`
	ProcessInstanceKey types.InstanceID `json:"processInstanceKey"`
	CreatedAt          time.Time        `json:"createdAt"`
	Modifications      []Instruction    `json:"modifications"`
}

// Summary counts the instructions per operation.
func (r *Request) Summary() map[modification.Operation]int {
	counts := make(map[modification.Operation]int)
	for _, in := range r.Modifications {
		counts[in.Modification]++
	}
	return counts
}

// Marshal encodes the request as JSON.
func (r *Request) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// Option configures Build.
type Option func(*builder)

// WithDiagram resolves multi-instance sources so a move out of such a node
// requests a single new token, matching the log's projection.
func WithDiagram(d modification.DiagramMetadata) Option {
	return func(b *builder) {
		b.diagram = d
	}
}

// WithStrictScopeKeys requires variable scopes to be engine element instance keys.
func WithStrictScopeKeys() Option {
	return func(b *builder) {
		b.strict = true
	}
}

type builder struct {
	diagram modification.DiagramMetadata
	strict  bool
}

// Build creates a request from the token modifications (in log order)
// followed by the variable modifications.
func Build(instanceID types.InstanceID, flowNodeMods []modification.FlowNodeModification, variableMods []modification.VariableModification, opts ...Option) (*Request, error) {
	if instanceID == "" {
		return nil, errors.New("process instance key cannot be empty")
	}
	if len(flowNodeMods) == 0 && len(variableMods) == 0 {
		return nil, flowerrors.NewOperationalError("building request", instanceID.String(), "", ErrEmptyRequest)
	}

	b := &builder{}
	for _, opt := range opts {
		opt(b)
	}

	req := &Request{
		ID:                 uuid.NewString(),
		ProcessInstanceKey: instanceID,
		CreatedAt:          time.Now().UTC(),
		Modifications:      make([]Instruction, 0, len(flowNodeMods)+len(variableMods)),
	}

	for _, m := range flowNodeMods {
		in, err := b.flowNodeInstruction(m)
		if err != nil {
			return nil, flowerrors.NewOperationalError("building request", instanceID.String(), m.FlowNode.ID.String(), err)
		}
		req.Modifications = append(req.Modifications, in)
	}

	for _, m := range variableMods {
		in, err := b.variableInstruction(m)
		if err != nil {
			return nil, flowerrors.NewOperationalErrorWithAttrs("building request", instanceID.String(), "", err,
				map[string]any{"scopeId": m.ScopeID, "variable": m.Name})
		}
		req.Modifications = append(req.Modifications, in)
	}

	return req, nil
}

func (b *builder) flowNodeInstruction(m modification.FlowNodeModification) (Instruction, error) {
	if err := m.Validate(); err != nil {
		return Instruction{}, err
	}

	switch m.Operation {
	case modification.OperationAddToken:
		return Instruction{
			Modification:   m.Operation,
			ToFlowNodeID:   m.FlowNode.ID,
			NewTokensCount: m.AffectedTokenCount,
		}, nil
	case modification.OperationCancelToken:
		return Instruction{
			Modification:   m.Operation,
			FromFlowNodeID: m.FlowNode.ID,
		}, nil
	case modification.OperationMoveToken:
		count := m.AffectedTokenCount
		if b.diagram != nil && b.diagram.IsMultiInstance(m.FlowNode.ID) {
			count = 1
		}
		return Instruction{
			Modification:   m.Operation,
			FromFlowNodeID: m.FlowNode.ID,
			ToFlowNodeID:   m.TargetFlowNode.ID,
			NewTokensCount: count,
		}, nil
	}
	return Instruction{}, fmt.Errorf("unsupported flow node operation %q", m.Operation)
}

func (b *builder) variableInstruction(m modification.VariableModification) (Instruction, error) {
	if err := m.Validate(); err != nil {
		return Instruction{}, err
	}
	if b.strict && !validation.IsValidScopeKey(string(m.ScopeID)) {
		return Instruction{}, fmt.Errorf("scope %q is not an element instance key", m.ScopeID)
	}
	if !gjson.Valid(m.NewValue) {
		return Instruction{}, fmt.Errorf("value of variable %q is not valid JSON", m.Name)
	}

	return Instruction{
		Modification: m.Operation,
		ScopeKey:     m.ScopeID,
		Variables: map[string]json.RawMessage{
			m.Name: json.RawMessage(m.NewValue),
		},
	}, nil
}

// FromLog builds a request from the current views of log.
func FromLog(instanceID types.InstanceID, log *modification.Log, opts ...Option) (*Request, error) {
	return Build(instanceID, log.FlowNodeModifications(), log.VariableModifications(), opts...)
}
