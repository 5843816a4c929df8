package session

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/flowmod/pkg/diagram"
	"github.com/dshills/flowmod/pkg/domain/submission"
	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/dshills/flowmod/pkg/modification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRecorder struct {
	saved []*submission.Submission
	err   error
}

func (r *memoryRecorder) Save(s *submission.Submission) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, s)
	return nil
}

func orderDiagram(t *testing.T) *diagram.Diagram {
	t.Helper()
	d := diagram.New("order-process", "Order")
	require.NoError(t, d.AddFlowNode(diagram.FlowNode{ID: "approve", Name: "Approve order"}))
	require.NoError(t, d.AddFlowNode(diagram.FlowNode{ID: "ship", Name: "Ship parcel"}))
	require.NoError(t, d.AddFlowNode(diagram.FlowNode{ID: "notify", Name: "Notify customer"}))
	require.NoError(t, d.AddFlowNode(diagram.FlowNode{ID: "items", Name: "Pack items", MultiInstance: true}))
	return d
}

func newTestSession(t *testing.T, rec Recorder) *Session {
	t.Helper()
	s, err := New(Config{
		InstanceID: "2251799813685249",
		ProcessID:  "order-process",
		Diagram:    orderDiagram(t),
		Recorder:   rec,
	})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresInstance(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSession_FlowNodeRef(t *testing.T) {
	s := newTestSession(t, nil)

	assert.Equal(t, modification.FlowNodeRef{ID: "ship", Name: "Ship parcel"}, s.FlowNodeRef("ship"))
	assert.Equal(t, modification.FlowNodeRef{ID: "unknown", Name: "unknown"}, s.FlowNodeRef("unknown"))
}

func TestSession_EnterAndCancel(t *testing.T) {
	s := newTestSession(t, nil)

	s.Enter()
	assert.Equal(t, modification.StatusEnabled, s.Log().Status())

	m, err := modification.NewCancelToken(s.FlowNodeRef("approve"), 1)
	require.NoError(t, err)
	s.Log().AddModification(m)

	s.Cancel()
	assert.Equal(t, modification.StatusDisabled, s.Log().Status())
	assert.Zero(t, s.Log().Len())
}

func TestSession_Submit(t *testing.T) {
	rec := &memoryRecorder{}
	s := newTestSession(t, rec)
	s.Enter()

	s.Log().StartMovingToken("ship")
	s.Log().FinishMovingToken("notify")
	v, err := modification.NewEditVariable("2251799813685251", "v1", "Approve order", "approved", "false", "true")
	require.NoError(t, err)
	s.Log().AddModification(v)

	sub, err := s.Submit()
	require.NoError(t, err)

	require.Len(t, rec.saved, 1)
	assert.Equal(t, sub, rec.saved[0])
	assert.Equal(t, types.InstanceID("2251799813685249"), sub.InstanceID)
	assert.Equal(t, "order-process", sub.ProcessID)
	assert.Equal(t, 2, sub.InstructionCount)
	assert.Equal(t, map[string]int{"MOVE_TOKEN": 1, "EDIT_VARIABLE": 1}, sub.Summary)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(sub.Payload, &payload))
	assert.Equal(t, "2251799813685249", payload["processInstanceKey"])

	assert.Equal(t, modification.StatusDisabled, s.Log().Status())
	assert.Zero(t, s.Log().Len())
}

func TestSession_SubmitNothing(t *testing.T) {
	s := newTestSession(t, nil)
	s.Enter()

	_, err := s.Submit()
	assert.ErrorIs(t, err, ErrNothingToSubmit)
	assert.Equal(t, modification.StatusEnabled, s.Log().Status())
}

func TestSession_SubmitNotEditing(t *testing.T) {
	s := newTestSession(t, nil)

	_, err := s.Submit()
	assert.ErrorIs(t, err, ErrNotEditing)
}

func TestSession_SubmitKeepsLogOnRecorderError(t *testing.T) {
	rec := &memoryRecorder{err: errors.New("disk full")}
	s := newTestSession(t, rec)
	s.Enter()

	m, err := modification.NewCancelToken(s.FlowNodeRef("approve"), 1)
	require.NoError(t, err)
	s.Log().AddModification(m)

	_, err = s.Submit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, 1, s.Log().Len())
	assert.Equal(t, modification.StatusEnabled, s.Log().Status())
}

func TestSession_SubmitKeepsLogOnInvalidValue(t *testing.T) {
	s := newTestSession(t, nil)
	s.Enter()

	v, err := modification.NewAddVariable("2251799813685251", "v1", "Approve order", "note", "not json")
	require.NoError(t, err)
	s.Log().AddModification(v)

	_, err = s.Submit()
	require.Error(t, err)
	assert.Equal(t, 1, s.Log().Len())
}

func TestSession_PreviewMultiInstanceMove(t *testing.T) {
	s := newTestSession(t, nil)
	s.Enter()
	s.Log().StartMovingToken("items")
	s.Log().FinishMovingToken("ship")

	req, err := s.Preview()
	require.NoError(t, err)
	require.Len(t, req.Modifications, 1)
	assert.Equal(t, 1, req.Modifications[0].NewTokensCount)
	assert.Equal(t, 1, s.Log().Len(), "preview must not consume the log")
}
