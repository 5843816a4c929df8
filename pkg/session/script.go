package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/dshills/flowmod/pkg/modification"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// ActionType names a user gesture in a script.
type ActionType string

const (
	ActionEnable         ActionType = "enable"
	ActionDisable        ActionType = "disable"
	ActionAddToken       ActionType = "add_token"
	ActionCancelToken    ActionType = "cancel_token"
	ActionStartMove      ActionType = "start_move"
	ActionFinishMove     ActionType = "finish_move"
	ActionAddVariable    ActionType = "add_variable"
	ActionEditVariable   ActionType = "edit_variable"
	ActionUndo           ActionType = "undo"
	ActionRemoveToken    ActionType = "remove_token"
	ActionRemoveVariable ActionType = "remove_variable"
	ActionReset          ActionType = "reset"
)

// Action is one recorded gesture. Only the fields relevant to Type are used.
type Action struct {
	Type      ActionType `yaml:"action"`
	FlowNode  string     `yaml:"flow_node,omitempty"`
	Target    string     `yaml:"target,omitempty"`
	Scope     string     `yaml:"scope,omitempty"`
	Count     int        `yaml:"count,omitempty"`
	ID        string     `yaml:"id,omitempty"`
	Name      string     `yaml:"name,omitempty"`
	Value     string     `yaml:"value,omitempty"`
	OldValue  string     `yaml:"old_value,omitempty"`
	Operation string     `yaml:"operation,omitempty"`
}

// Script is a recorded sequence of gestures against one instance.
type Script struct {
	Instance string   `yaml:"instance,omitempty"`
	Process  string   `yaml:"process,omitempty"`
	Actions  []Action `yaml:"actions"`
}

// ParseScript parses a script from YAML bytes.
//
//	instance: "2251799813685249"
//	actions:
//	  - action: enable
//	  - action: cancel_token
//	    flow_node: approve
//	    count: 1
//	  - action: start_move
//	    flow_node: ship
//	  - action: finish_move
//	    target: notify
func ParseScript(data []byte) (*Script, error) {
	if len(data) == 0 {
		return nil, errors.New("empty script")
	}

	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse script: %w", err)
	}
	return &s, nil
}

// LoadScript reads and parses a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ParseScript(data)
}

// required lists the fields each action needs.
var required = map[ActionType][]string{
	ActionEnable:         nil,
	ActionDisable:        nil,
	ActionReset:          nil,
	ActionUndo:           nil,
	ActionFinishMove:     nil,
	ActionStartMove:      {"flow_node"},
	ActionAddToken:       {"flow_node", "scope"},
	ActionCancelToken:    {"flow_node"},
	ActionAddVariable:    {"scope", "id", "name"},
	ActionEditVariable:   {"scope", "id", "name"},
	ActionRemoveToken:    {"flow_node", "operation"},
	ActionRemoveVariable: {"scope", "id", "operation"},
}

func (a Action) field(name string) string {
	switch name {
	case "flow_node":
		return a.FlowNode
	case "scope":
		return a.Scope
	case "id":
		return a.ID
	case "name":
		return a.Name
	case "operation":
		return a.Operation
	}
	return ""
}

// Validate checks every action without applying it. All problems are
// reported, each tagged with its action index.
func (s *Script) Validate() error {
	var errs []error
	for i, a := range s.Actions {
		fields, ok := required[a.Type]
		if !ok {
			errs = append(errs, &ActionError{Index: i, Action: a.Type, Err: fmt.Errorf("unknown action %q", a.Type)})
			continue
		}
		for _, f := range fields {
			if a.field(f) == "" {
				errs = append(errs, &ActionError{Index: i, Action: a.Type, Err: fmt.Errorf("%s is required", f)})
			}
		}
		if a.Count < 0 {
			errs = append(errs, &ActionError{Index: i, Action: a.Type, Err: errors.New("count cannot be negative")})
		}
		if (a.Type == ActionAddVariable || a.Type == ActionEditVariable) && !gjson.Valid(a.Value) {
			errs = append(errs, &ActionError{Index: i, Action: a.Type, Err: fmt.Errorf("value %q is not valid JSON", a.Value)})
		}
	}
	return errors.Join(errs...)
}

// ActionError reports the script action that could not be applied.
type ActionError struct {
	Index  int
	Action ActionType
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %d (%s): %v", e.Index, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// Replay applies every action of script to the session in order. It stops
// at the first action that cannot be applied; earlier actions stay applied.
func (s *Session) Replay(script *Script) error {
	if script == nil {
		return errors.New("cannot replay nil script")
	}

	for i, a := range script.Actions {
		if err := s.apply(a); err != nil {
			return &ActionError{Index: i, Action: a.Type, Err: err}
		}
		s.logger.Debug("action applied", "index", i, "action", a.Type)
	}
	return nil
}

func (s *Session) apply(a Action) error {
	log := s.log

	switch a.Type {
	case ActionEnable:
		s.Enter()
	case ActionDisable:
		log.DisableModificationMode()
	case ActionReset:
		s.Exit()
	case ActionUndo:
		log.RemoveLastModification()
	case ActionStartMove:
		if a.FlowNode == "" {
			return errors.New("flow_node is required")
		}
		log.StartMovingToken(types.FlowNodeID(a.FlowNode))
	case ActionFinishMove:
		log.FinishMovingToken(types.FlowNodeID(a.Target))
	case ActionAddToken:
		m, err := modification.NewAddToken(s.FlowNodeRef(types.FlowNodeID(a.FlowNode)), types.ScopeID(a.Scope), countOrOne(a.Count))
		if err != nil {
			return err
		}
		log.AddModification(m)
	case ActionCancelToken:
		m, err := modification.NewCancelToken(s.FlowNodeRef(types.FlowNodeID(a.FlowNode)), countOrOne(a.Count))
		if err != nil {
			return err
		}
		log.AddModification(m)
	case ActionAddVariable:
		m, err := modification.NewAddVariable(types.ScopeID(a.Scope), types.VariableID(a.ID), s.flowNodeName(a.FlowNode), a.Name, a.Value)
		if err != nil {
			return err
		}
		log.AddModification(m)
	case ActionEditVariable:
		m, err := modification.NewEditVariable(types.ScopeID(a.Scope), types.VariableID(a.ID), s.flowNodeName(a.FlowNode), a.Name, a.OldValue, a.Value)
		if err != nil {
			return err
		}
		log.AddModification(m)
	case ActionRemoveToken:
		op, err := modification.ParseOperation(a.Operation)
		if err != nil {
			return err
		}
		if !op.IsFlowNodeOperation() {
			return fmt.Errorf("%s is not a token operation", op)
		}
		log.RemoveFlowNodeModification(modification.FlowNodeModification{
			Operation: op,
			FlowNode:  modification.FlowNodeRef{ID: types.FlowNodeID(a.FlowNode)},
			ScopeID:   types.ScopeID(a.Scope),
		})
	case ActionRemoveVariable:
		op, err := modification.ParseOperation(a.Operation)
		if err != nil {
			return err
		}
		if !op.IsVariableOperation() {
			return fmt.Errorf("%s is not a variable operation", op)
		}
		log.RemoveVariableModification(types.ScopeID(a.Scope), types.VariableID(a.ID), op)
	default:
		return fmt.Errorf("unknown action %q", a.Type)
	}
	return nil
}

func (s *Session) flowNodeName(id string) string {
	if id == "" {
		return ""
	}
	return s.FlowNodeRef(types.FlowNodeID(id)).Name
}

func countOrOne(n int) int {
	if n == 0 {
		return 1
	}
	return n
}
