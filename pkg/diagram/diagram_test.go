package diagram

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/flowmod/pkg/modification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const orderProcessYAML = `version: "1.0"
process_id: order-process
name: Order process
flow_nodes:
  - id: start
    type: startEvent
  - id: checkPayment
    name: Check payment
    type: serviceTask
  - id: shipItems
    name: Ship items
    type: subProcess
    multi_instance: true
`

const orderProcessJSON = `{
  "processId": "order-process",
  "name": "Order process",
  "flowNodes": [
    {"id": "start", "type": "startEvent"},
    {"id": "checkPayment", "name": "Check payment", "type": "serviceTask"},
    {"id": "shipItems", "name": "Ship items", "type": {"elementType": "subProcess", "isMultiInstance": true}},
    {"id": "notify", "name": "Notify", "type": "sendTask", "isMultiInstance": true}
  ]
}`

var _ modification.DiagramMetadata = (*Diagram)(nil)

func TestParse(t *testing.T) {
	d, err := Parse([]byte(orderProcessYAML))
	require.NoError(t, err)

	assert.Equal(t, "order-process", d.ProcessID)
	assert.Equal(t, "Order process", d.Name)
	assert.Equal(t, 3, d.Len())

	assert.Equal(t, "Check payment", d.FlowNodeName("checkPayment"))
	assert.Equal(t, "start", d.FlowNodeName("start"), "unnamed node resolves to its id")
	assert.Equal(t, "missing", d.FlowNodeName("missing"))

	assert.True(t, d.IsMultiInstance("shipItems"))
	assert.False(t, d.IsMultiInstance("checkPayment"))
	assert.False(t, d.IsMultiInstance("missing"))

	nodes := d.FlowNodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, "start", string(nodes[0].ID))
	assert.Equal(t, "serviceTask", nodes[1].Type)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "", "empty YAML input"},
		{"bad yaml", "version: [", "failed to parse YAML"},
		{"no version", "process_id: p\nflow_nodes:\n  - id: a\n", "version"},
		{"no process", "version: \"1.0\"\nflow_nodes:\n  - id: a\n", "process_id"},
		{"no nodes", "version: \"1.0\"\nprocess_id: p\n", "no flow nodes"},
		{"duplicate", "version: \"1.0\"\nprocess_id: p\nflow_nodes:\n  - id: a\n  - id: a\n", "duplicate flow node id"},
		{"invalid id", "version: \"1.0\"\nprocess_id: p\nflow_nodes:\n  - id: \"9a\"\n", "must start with"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseNodeMetadata(t *testing.T) {
	d, err := ParseNodeMetadata([]byte(orderProcessJSON))
	require.NoError(t, err)

	assert.Equal(t, "order-process", d.ProcessID)
	assert.Equal(t, 4, d.Len())
	assert.True(t, d.IsMultiInstance("shipItems"))
	assert.True(t, d.IsMultiInstance("notify"))
	assert.False(t, d.IsMultiInstance("checkPayment"))

	ship, ok := d.FlowNode("shipItems")
	require.True(t, ok)
	assert.Equal(t, "subProcess", ship.Type)
	assert.Equal(t, "Ship items", ship.Name)
}

func TestParseNodeMetadata_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"invalid", "{"},
		{"no process id", `{"flowNodes":[{"id":"a"}]}`},
		{"no flow nodes", `{"processId":"p"}`},
		{"empty node id", `{"processId":"p","flowNodes":[{"name":"x"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNodeMetadata([]byte(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestParseNodeMetadata_BpmnProcessIDFallback(t *testing.T) {
	d, err := ParseNodeMetadata([]byte(`{"bpmnProcessId":"p","flowNodes":[{"id":"a"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "p", d.ProcessID)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "order.yaml")
	jsonPath := filepath.Join(dir, "order.JSON")
	require.NoError(t, os.WriteFile(yamlPath, []byte(orderProcessYAML), 0644))
	require.NoError(t, os.WriteFile(jsonPath, []byte(orderProcessJSON), 0644))

	fromYAML, err := LoadFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, 3, fromYAML.Len())

	fromJSON, err := LoadFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 4, fromJSON.Len())

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMarshal_RoundTrip(t *testing.T) {
	d, err := ParseNodeMetadata([]byte(orderProcessJSON))
	require.NoError(t, err)

	data, err := Marshal(d)
	require.NoError(t, err)

	again, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, d.FlowNodes(), again.FlowNodes())

	_, err = Marshal(nil)
	assert.Error(t, err)
}

func TestAddFlowNode(t *testing.T) {
	d := New("p", "")

	require.NoError(t, d.AddFlowNode(FlowNode{ID: "a"}))
	assert.Error(t, d.AddFlowNode(FlowNode{ID: "a"}))
	assert.Error(t, d.AddFlowNode(FlowNode{}))
	assert.NoError(t, d.Validate())
}
