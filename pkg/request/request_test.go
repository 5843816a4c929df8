package request

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dshills/flowmod/pkg/domain/types"
	flowerrors "github.com/dshills/flowmod/pkg/errors"
	"github.com/dshills/flowmod/pkg/modification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type multiInstanceDiagram map[types.FlowNodeID]bool

func (d multiInstanceDiagram) FlowNodeName(id types.FlowNodeID) string  { return string(id) }
func (d multiInstanceDiagram) IsMultiInstance(id types.FlowNodeID) bool { return d[id] }

func ref(id string) modification.FlowNodeRef {
	return modification.FlowNodeRef{ID: types.FlowNodeID(id), Name: id}
}

func stagedLog(t *testing.T) *modification.Log {
	t.Helper()
	log := modification.NewLog()
	log.EnableModificationMode()

	add, err := modification.NewAddToken(ref("review"), "2251799813685251", 1)
	require.NoError(t, err)
	cancel, err := modification.NewCancelToken(ref("approve"), 3)
	require.NoError(t, err)
	move, err := modification.NewMoveToken(ref("ship"), ref("notify"), 2)
	require.NoError(t, err)
	first, err := modification.NewEditVariable("2251799813685249", "v1", "Process", "amount", "10", "20")
	require.NoError(t, err)
	latest, err := modification.NewEditVariable("2251799813685249", "v1", "Process", "amount", "10", "30")
	require.NoError(t, err)
	added, err := modification.NewAddVariable("2251799813685249", "v2", "Process", "customer", `{"name":"Ada"}`)
	require.NoError(t, err)

	for _, m := range []modification.Modification{first, add, cancel, latest, move, added} {
		log.AddModification(m)
	}
	return log
}

func TestFromLog(t *testing.T) {
	req, err := FromLog("2251799813685249", stagedLog(t))
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, types.InstanceID("2251799813685249"), req.ProcessInstanceKey)
	require.Len(t, req.Modifications, 5)

	assert.Equal(t, Instruction{
		Modification:   modification.OperationAddToken,
		ToFlowNodeID:   "review",
		NewTokensCount: 1,
	}, req.Modifications[0])
	assert.Equal(t, Instruction{
		Modification:   modification.OperationCancelToken,
		FromFlowNodeID: "approve",
	}, req.Modifications[1])
	assert.Equal(t, Instruction{
		Modification:   modification.OperationMoveToken,
		FromFlowNodeID: "ship",
		ToFlowNodeID:   "notify",
		NewTokensCount: 2,
	}, req.Modifications[2])

	assert.Equal(t, modification.OperationEditVariable, req.Modifications[3].Modification)
	assert.JSONEq(t, "30", string(req.Modifications[3].Variables["amount"]), "latest edit wins")
	assert.JSONEq(t, `{"name":"Ada"}`, string(req.Modifications[4].Variables["customer"]))

	assert.Equal(t, map[modification.Operation]int{
		modification.OperationAddToken:     1,
		modification.OperationCancelToken:  1,
		modification.OperationMoveToken:    1,
		modification.OperationEditVariable: 1,
		modification.OperationAddVariable:  1,
	}, req.Summary())

	assert.NoError(t, Validate(req))
}

func TestBuild_MultiInstanceMove(t *testing.T) {
	move, err := modification.NewMoveToken(ref("ship"), ref("notify"), 4)
	require.NoError(t, err)

	req, err := Build("1", []modification.FlowNodeModification{move}, nil,
		WithDiagram(multiInstanceDiagram{"ship": true}))
	require.NoError(t, err)
	assert.Equal(t, 1, req.Modifications[0].NewTokensCount)
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build("1", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyRequest))

	var opErr *flowerrors.OperationalError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "1", opErr.InstanceID)
}

func TestBuild_MissingInstance(t *testing.T) {
	cancel, err := modification.NewCancelToken(ref("approve"), 1)
	require.NoError(t, err)

	_, err = Build("", []modification.FlowNodeModification{cancel}, nil)
	assert.Error(t, err)
}

func TestBuild_InvalidVariableValue(t *testing.T) {
	edit, err := modification.NewEditVariable("1", "v1", "Process", "amount", "10", "not json")
	require.NoError(t, err)

	_, err = Build("1", nil, []modification.VariableModification{edit})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not valid JSON")
}

func TestBuild_InvalidFlowNodeModification(t *testing.T) {
	broken := modification.FlowNodeModification{
		Operation:          modification.OperationMoveToken,
		FlowNode:           ref("ship"),
		AffectedTokenCount: 2,
	}

	_, err := Build("1", []modification.FlowNodeModification{broken}, nil)
	require.Error(t, err)

	var opErr *flowerrors.OperationalError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "ship", opErr.FlowNodeID)
}

func TestBuild_StrictScopeKeys(t *testing.T) {
	edit, err := modification.NewEditVariable("scope-1", "v1", "Process", "amount", "10", "20")
	require.NoError(t, err)
	vars := []modification.VariableModification{edit}

	_, err = Build("1", nil, vars)
	assert.NoError(t, err)

	_, err = Build("1", nil, vars, WithStrictScopeKeys())
	assert.Error(t, err)
}

func TestRequest_MarshalOmitsUnusedFields(t *testing.T) {
	cancel, err := modification.NewCancelToken(ref("approve"), 1)
	require.NoError(t, err)
	req, err := Build("1", []modification.FlowNodeModification{cancel}, nil)
	require.NoError(t, err)

	data, err := req.Marshal()
	require.NoError(t, err)

	var decoded struct {
		Modifications []map[string]any `json:"modifications"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Modifications, 1)
	assert.Equal(t, map[string]any{
		"modification":   "CANCEL_TOKEN",
		"fromFlowNodeId": "approve",
	}, decoded.Modifications[0])
}
