// Package diagram holds the process diagram metadata a modification log
// needs: the display name of each flow node and whether it is a
// multi-instance construct.
package diagram

import (
	"errors"
	"fmt"

	"github.com/dshills/flowmod/pkg/domain/types"
	"github.com/dshills/flowmod/pkg/validation"
)

// FlowNode describes one flow node of a process diagram.
type FlowNode struct {
	ID            types.FlowNodeID `json:"id" yaml:"id"`
	Name          string           `json:"name,omitempty" yaml:"name,omitempty"`
	Type          string           `json:"type,omitempty" yaml:"type,omitempty"`
	MultiInstance bool             `json:"isMultiInstance,omitempty" yaml:"multi_instance,omitempty"`
}

// Diagram is the flow node metadata of one process definition.
type Diagram struct {
	ProcessID string
	Name      string
	nodes     map[types.FlowNodeID]FlowNode
	order     []types.FlowNodeID
}

// New creates an empty diagram.
func New(processID, name string) *Diagram {
	return &Diagram{
		ProcessID: processID,
		Name:      name,
		nodes:     make(map[types.FlowNodeID]FlowNode),
	}
}

// AddFlowNode registers a flow node. Duplicate ids are rejected.
func (d *Diagram) AddFlowNode(n FlowNode) error {
	if n.ID.IsZero() {
		return errors.New("cannot add flow node with empty id")
	}
	if _, exists := d.nodes[n.ID]; exists {
		return fmt.Errorf("duplicate flow node id: %s", n.ID)
	}
	d.nodes[n.ID] = n
	d.order = append(d.order, n.ID)
	return nil
}

// FlowNode returns the flow node with the given id.
func (d *Diagram) FlowNode(id types.FlowNodeID) (FlowNode, bool) {
	n, ok := d.nodes[id]
	return n, ok
}

// FlowNodes returns all flow nodes in declaration order.
func (d *Diagram) FlowNodes() []FlowNode {
	result := make([]FlowNode, 0, len(d.order))
	for _, id := range d.order {
		result = append(result, d.nodes[id])
	}
	return result
}

// Len returns the number of flow nodes.
func (d *Diagram) Len() int {
	return len(d.order)
}

// FlowNodeName returns the display name of id. Unknown or unnamed nodes
// resolve to their id.
func (d *Diagram) FlowNodeName(id types.FlowNodeID) string {
	if n, ok := d.nodes[id]; ok && n.Name != "" {
		return n.Name
	}
	return string(id)
}

// IsMultiInstance reports whether id is a multi-instance node. Unknown nodes are not.
func (d *Diagram) IsMultiInstance(id types.FlowNodeID) bool {
	return d.nodes[id].MultiInstance
}

// Validate checks the process id and every flow node id.
func (d *Diagram) Validate() error {
	var errs []error
	if d.ProcessID == "" {
		errs = append(errs, errors.New("diagram: empty process id"))
	}
	if len(d.order) == 0 {
		errs = append(errs, errors.New("diagram: no flow nodes"))
	}
	for _, id := range d.order {
		if err := validation.ValidateFlowNodeID(string(id)); err != nil {
			errs = append(errs, fmt.Errorf("diagram: %w", err))
		}
	}
	return errors.Join(errs...)
}
