package modification

import (
	"sync"

	"github.com/dshills/flowmod/pkg/domain/types"
)

// Status is the editing mode of a Log.
type Status string

const (
	// StatusDisabled means the user is not editing the instance.
	StatusDisabled Status = "disabled"
	// StatusEnabled accepts edits.
	StatusEnabled Status = "enabled"
	// StatusMovingToken means a move gesture is in progress and a source node is picked.
	StatusMovingToken Status = "moving-token"
)

// DefaultMoveTokenCount is the affected token count recorded for a move.
// Instance counts are not known when the move is staged, so the count is a
// fixed approximation until the engine reports real numbers.
const DefaultMoveTokenCount = 2

// DiagramMetadata resolves flow node details from the process diagram.
type DiagramMetadata interface {
	// FlowNodeName returns the display name of a flow node.
	FlowNodeName(id types.FlowNodeID) string
	// IsMultiInstance reports whether a flow node is a multi-instance construct.
	IsMultiInstance(id types.FlowNodeID) bool
}

// noDiagram is used when a Log has no diagram: names fall back to ids.
type noDiagram struct{}

func (noDiagram) FlowNodeName(id types.FlowNodeID) string { return string(id) }
func (noDiagram) IsMultiInstance(types.FlowNodeID) bool   { return false }

// State is a point-in-time copy of a Log.
type State struct {
	Status                           Status
	Modifications                    []Modification
	SourceFlowNodeIDForMoveOperation types.FlowNodeID
}

// FlowNodeCounts aggregates the token changes staged for one flow node.
type FlowNodeCounts struct {
	NewTokens       int `json:"newTokens"`
	CancelledTokens int `json:"cancelledTokens"`
}

// Option configures a Log.
type Option func(*Log)

// WithDiagram sets the diagram used to resolve names and multi-instance flags.
func WithDiagram(d DiagramMetadata) Option {
	return func(l *Log) {
		if d != nil {
			l.diagram = d
		}
	}
}

// WithMoveTokenCount overrides DefaultMoveTokenCount. Non-positive values are ignored.
func WithMoveTokenCount(n int) Option {
	return func(l *Log) {
		if n > 0 {
			l.moveTokenCount = n
		}
	}
}

// Log is the ordered list of modifications staged during one editing session.
//
// All methods are safe for concurrent use. Each mutation completes before
// any reader can observe the log, and change events are emitted after the
// mutation is visible.
type Log struct {
	mu             sync.RWMutex
	state          State
	diagram        DiagramMetadata
	moveTokenCount int
	events         broadcaster
}

// NewLog creates an empty, disabled log.
func NewLog(opts ...Option) *Log {
	l := &Log{
		state:          initialState(),
		diagram:        noDiagram{},
		moveTokenCount: DefaultMoveTokenCount,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func initialState() State {
	return State{Status: StatusDisabled}
}

// State returns a copy of the current state.
func (l *Log) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	mods := make([]Modification, len(l.state.Modifications))
	for i, m := range l.state.Modifications {
		mods[i] = cloneModification(m)
	}
	return State{
		Status:                           l.state.Status,
		Modifications:                    mods,
		SourceFlowNodeIDForMoveOperation: l.state.SourceFlowNodeIDForMoveOperation,
	}
}

// Status returns the current editing mode.
func (l *Log) Status() Status {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Status
}

// Len returns the number of staged modifications.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state.Modifications)
}

// SourceFlowNodeIDForMoveOperation returns the source picked for the move in
// progress, or "" when no move is in progress.
func (l *Log) SourceFlowNodeIDForMoveOperation() types.FlowNodeID {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.SourceFlowNodeIDForMoveOperation
}

// event builds a change event from the current state. Caller holds l.mu.
func (l *Log) event(t ChangeEventType, m Modification, removed int) ChangeEvent {
	return ChangeEvent{
		Type:         t,
		Status:       l.state.Status,
		Count:        len(l.state.Modifications),
		Modification: m,
		Removed:      removed,
	}
}

// EnableModificationMode switches the log to enabled. Staged entries are kept.
func (l *Log) EnableModificationMode() {
	l.mu.Lock()
	l.state.Status = StatusEnabled
	l.state.SourceFlowNodeIDForMoveOperation = ""
	ev := l.event(EventModeEnabled, nil, 0)
	l.mu.Unlock()

	l.events.emit(ev)
}

// DisableModificationMode switches the log to disabled from any state.
func (l *Log) DisableModificationMode() {
	l.mu.Lock()
	l.state.Status = StatusDisabled
	l.state.SourceFlowNodeIDForMoveOperation = ""
	ev := l.event(EventModeDisabled, nil, 0)
	l.mu.Unlock()

	l.events.emit(ev)
}

// StartMovingToken picks sourceID as the source of a move gesture.
// An empty sourceID, or a disabled log, is ignored.
func (l *Log) StartMovingToken(sourceID types.FlowNodeID) {
	if sourceID.IsZero() {
		return
	}

	l.mu.Lock()
	if l.state.Status == StatusDisabled {
		l.mu.Unlock()
		return
	}
	l.state.Status = StatusMovingToken
	l.state.SourceFlowNodeIDForMoveOperation = sourceID
	ev := l.event(EventMoveStarted, nil, 0)
	l.mu.Unlock()

	l.events.emit(ev)
}

// FinishMovingToken ends the move gesture in progress.
//
// When targetID is non-empty and a source was picked, a MOVE_TOKEN entry is
// appended with both node names resolved from the diagram. An empty target
// cancels the gesture. Either way the source is cleared and the log returns
// to enabled. Without a move in progress the call changes nothing.
func (l *Log) FinishMovingToken(targetID types.FlowNodeID) {
	l.mu.Lock()
	if l.state.Status != StatusMovingToken {
		l.mu.Unlock()
		return
	}

	var added Modification
	source := l.state.SourceFlowNodeIDForMoveOperation
	if !targetID.IsZero() && !source.IsZero() {
		m := FlowNodeModification{
			Operation: OperationMoveToken,
			FlowNode: FlowNodeRef{
				ID:   source,
				Name: l.diagram.FlowNodeName(source),
			},
			TargetFlowNode: &FlowNodeRef{
				ID:   targetID,
				Name: l.diagram.FlowNodeName(targetID),
			},
			AffectedTokenCount: l.moveTokenCount,
		}
		l.state.Modifications = append(l.state.Modifications, m)
		added = m.clone()
	}

	l.state.SourceFlowNodeIDForMoveOperation = ""
	l.state.Status = StatusEnabled
	var pending []ChangeEvent
	if added != nil {
		pending = append(pending, l.event(EventModificationAdded, added, 0))
	}
	pending = append(pending, l.event(EventMoveFinished, added, 0))
	l.mu.Unlock()

	for _, ev := range pending {
		l.events.emit(ev)
	}
}

// AddModification appends m to the log. Duplicates are kept; they are
// merged only by the derived views. A nil modification is ignored.
func (l *Log) AddModification(m Modification) {
	m = cloneModification(m)
	if m == nil {
		return
	}

	l.mu.Lock()
	l.state.Modifications = append(l.state.Modifications, m)
	ev := l.event(EventModificationAdded, cloneModification(m), 0)
	l.mu.Unlock()

	l.events.emit(ev)
}

// RemoveLastModification drops the most recent entry. It does nothing on an empty log.
func (l *Log) RemoveLastModification() {
	l.mu.Lock()
	n := len(l.state.Modifications)
	if n == 0 {
		l.mu.Unlock()
		return
	}
	removed := l.state.Modifications[n-1]
	l.state.Modifications[n-1] = nil
	l.state.Modifications = l.state.Modifications[:n-1]
	ev := l.event(EventModificationRemoved, removed, 1)
	l.mu.Unlock()

	l.events.emit(ev)
}

// RemoveFlowNodeModification removes every token entry with the same flow
// node and operation as target. ADD_TOKEN entries must also match the scope,
// since each scope holds its own additions for a node.
func (l *Log) RemoveFlowNodeModification(target FlowNodeModification) {
	l.removeWhere(func(m Modification) bool {
		fm, ok := m.(FlowNodeModification)
		if !ok {
			return false
		}
		if fm.FlowNode.ID != target.FlowNode.ID || fm.Operation != target.Operation {
			return false
		}
		if target.Operation == OperationAddToken {
			return fm.ScopeID == target.ScopeID
		}
		return true
	})
}

// RemoveVariableModification removes every variable entry matching scopeID, id and operation.
func (l *Log) RemoveVariableModification(scopeID types.ScopeID, id types.VariableID, operation Operation) {
	l.removeWhere(func(m Modification) bool {
		vm, ok := m.(VariableModification)
		return ok && vm.ScopeID == scopeID && vm.ID == id && vm.Operation == operation
	})
}

func (l *Log) removeWhere(match func(Modification) bool) {
	l.mu.Lock()
	kept := make([]Modification, 0, len(l.state.Modifications))
	var last Modification
	for _, m := range l.state.Modifications {
		if match(m) {
			last = m
			continue
		}
		kept = append(kept, m)
	}
	removed := len(l.state.Modifications) - len(kept)
	if removed == 0 {
		l.mu.Unlock()
		return
	}
	l.state.Modifications = kept
	if removed > 1 {
		last = nil
	}
	ev := l.event(EventModificationRemoved, last, removed)
	l.mu.Unlock()

	l.events.emit(ev)
}

// Reset restores the initial empty, disabled state.
func (l *Log) Reset() {
	l.mu.Lock()
	l.state = initialState()
	ev := l.event(EventLogReset, nil, 0)
	l.mu.Unlock()

	l.events.emit(ev)
}

// IsModificationModeEnabled reports whether the log is enabled or in a move gesture.
func (l *Log) IsModificationModeEnabled() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Status != StatusDisabled
}

// LastModification returns the most recent entry, or false when the log is empty.
func (l *Log) LastModification() (Modification, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.state.Modifications)
	if n == 0 {
		return nil, false
	}
	return cloneModification(l.state.Modifications[n-1]), true
}

// ModificationsByFlowNode folds the token entries into per node counts.
//
// Additions accumulate. Cancellations overwrite. A move overwrites the
// source's cancelled count and the target's new count; a move out of a
// multi-instance node yields a single new token on the target.
func (l *Log) ModificationsByFlowNode() map[types.FlowNodeID]FlowNodeCounts {
	l.mu.RLock()
	defer l.mu.RUnlock()

	counts := make(map[types.FlowNodeID]*FlowNodeCounts)
	entry := func(id types.FlowNodeID) *FlowNodeCounts {
		c, ok := counts[id]
		if !ok {
			c = &FlowNodeCounts{}
			counts[id] = c
		}
		return c
	}

	for _, m := range l.state.Modifications {
		fm, ok := m.(FlowNodeModification)
		if !ok {
			continue
		}

		switch fm.Operation {
		case OperationMoveToken:
			if fm.TargetFlowNode == nil {
				continue
			}
			source := entry(fm.FlowNode.ID)
			target := entry(fm.TargetFlowNode.ID)
			source.CancelledTokens = fm.AffectedTokenCount
			if l.diagram.IsMultiInstance(fm.FlowNode.ID) {
				target.NewTokens = 1
			} else {
				target.NewTokens = fm.AffectedTokenCount
			}
		case OperationCancelToken:
			entry(fm.FlowNode.ID).CancelledTokens = fm.AffectedTokenCount
		case OperationAddToken:
			entry(fm.FlowNode.ID).NewTokens += fm.AffectedTokenCount
		}
	}

	result := make(map[types.FlowNodeID]FlowNodeCounts, len(counts))
	for id, c := range counts {
		result[id] = *c
	}
	return result
}

// IsCancelModificationAppliedOnFlowNode reports whether any tokens on id are staged for cancellation.
func (l *Log) IsCancelModificationAppliedOnFlowNode(id types.FlowNodeID) bool {
	return l.ModificationsByFlowNode()[id].CancelledTokens > 0
}

type variableKey struct {
	scope types.ScopeID
	id    types.VariableID
}

// VariableModifications returns the variable entries with later entries for
// the same scope and variable replacing earlier ones. Entries are ordered by
// the first appearance of their key.
func (l *Log) VariableModifications() []VariableModification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	latest := make(map[variableKey]VariableModification)
	var order []variableKey
	for _, m := range l.state.Modifications {
		vm, ok := m.(VariableModification)
		if !ok {
			continue
		}
		key := variableKey{scope: vm.ScopeID, id: vm.ID}
		if _, seen := latest[key]; !seen {
			order = append(order, key)
		}
		latest[key] = vm
	}

	result := make([]VariableModification, 0, len(order))
	for _, key := range order {
		result = append(result, latest[key].clone())
	}
	return result
}

// FlowNodeModifications returns the token entries in log order.
func (l *Log) FlowNodeModifications() []FlowNodeModification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []FlowNodeModification
	for _, m := range l.state.Modifications {
		if fm, ok := m.(FlowNodeModification); ok {
			result = append(result, fm.clone())
		}
	}
	return result
}

// Subscribe returns a channel receiving every change event.
func (l *Log) Subscribe() <-chan ChangeEvent {
	return l.events.subscribe(nil)
}

// SubscribeBuffered returns a channel receiving every change event, with
// room for size undelivered events. Events beyond that are dropped, so a
// caller that knows how many mutations it will make can size it to lose none.
func (l *Log) SubscribeBuffered(size int) <-chan ChangeEvent {
	return l.events.subscribeSized(nil, size)
}

// SubscribeFiltered returns a channel receiving the change events accepted by filter.
func (l *Log) SubscribeFiltered(filter EventFilter) <-chan ChangeEvent {
	return l.events.subscribe(&filter)
}

// Unsubscribe closes and removes a subscription.
func (l *Log) Unsubscribe(ch <-chan ChangeEvent) {
	l.events.unsubscribe(ch)
}

// Close closes all subscriber channels. The log stays usable; later events are discarded.
func (l *Log) Close() {
	l.events.close()
}
