package diagram

import (
	"errors"
	"fmt"

	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/tidwall/gjson"
)

// ParseNodeMetadata reads the flow node metadata document served by the
// process engine:
//
//	{
//	  "processId": "order-process",
//	  "name": "Order process",
//	  "flowNodes": [
//	    {"id": "checkPayment", "name": "Check payment", "type": "serviceTask"},
//	    {"id": "shipItems", "type": {"elementType": "subProcess", "isMultiInstance": true}}
//	  ]
//	}
//
// The node type is either a plain string with a sibling isMultiInstance
// flag, or an object carrying both.
func ParseNodeMetadata(jsonBytes []byte) (*Diagram, error) {
	if len(jsonBytes) == 0 {
		return nil, errors.New("empty JSON input")
	}
	if !gjson.ValidBytes(jsonBytes) {
		return nil, errors.New("invalid JSON input")
	}

	doc := gjson.ParseBytes(jsonBytes)
	processID := doc.Get("processId").String()
	if processID == "" {
		processID = doc.Get("bpmnProcessId").String()
	}
	if processID == "" {
		return nil, errors.New("missing required field: processId")
	}

	nodes := doc.Get("flowNodes")
	if !nodes.IsArray() {
		return nil, errors.New("missing required field: flowNodes")
	}

	d := New(processID, doc.Get("name").String())
	for i, value := range nodes.Array() {
		if err := d.AddFlowNode(flowNodeFromJSON(value)); err != nil {
			return nil, fmt.Errorf("flow node %d: %w", i, err)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func flowNodeFromJSON(value gjson.Result) FlowNode {
	n := FlowNode{
		ID:   types.FlowNodeID(value.Get("id").String()),
		Name: value.Get("name").String(),
	}

	typ := value.Get("type")
	if typ.IsObject() {
		n.Type = typ.Get("elementType").String()
		n.MultiInstance = typ.Get("isMultiInstance").Bool()
	} else {
		n.Type = typ.String()
		n.MultiInstance = value.Get("isMultiInstance").Bool()
	}
	return n
}
