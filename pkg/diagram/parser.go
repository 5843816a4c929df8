package diagram

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlDiagram is the on-disk YAML layout of a diagram.
type yamlDiagram struct {
	Version   string     `yaml:"version"`
	ProcessID string     `yaml:"process_id"`
	Name      string     `yaml:"name,omitempty"`
	FlowNodes []FlowNode `yaml:"flow_nodes"`
}

// Parse parses a diagram from YAML bytes.
//
//	version: "1.0"
//	process_id: order-process
//	name: Order process
//	flow_nodes:
//	  - id: checkPayment
//	    name: Check payment
//	    type: serviceTask
//	  - id: shipItems
//	    type: subProcess
//	    multi_instance: true
func Parse(yamlBytes []byte) (*Diagram, error) {
	if len(yamlBytes) == 0 {
		return nil, errors.New("empty YAML input")
	}

	var yd yamlDiagram
	if err := yaml.Unmarshal(yamlBytes, &yd); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if yd.Version == "" {
		return nil, errors.New("missing required field: version")
	}
	if yd.ProcessID == "" {
		return nil, errors.New("missing required field: process_id")
	}

	d := New(yd.ProcessID, yd.Name)
	for i, n := range yd.FlowNodes {
		if err := d.AddFlowNode(n); err != nil {
			return nil, fmt.Errorf("flow node %d: %w", i, err)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadFile reads and parses a diagram file. Files ending in .json are read
// as engine node metadata, anything else as YAML.
func LoadFile(path string) (*Diagram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read diagram file: %w", err)
	}

	if isJSONPath(path) {
		return ParseNodeMetadata(data)
	}
	return Parse(data)
}

func isJSONPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// Marshal encodes d in the YAML layout accepted by Parse.
func Marshal(d *Diagram) ([]byte, error) {
	if d == nil {
		return nil, errors.New("cannot marshal nil diagram")
	}
	return yaml.Marshal(yamlDiagram{
		Version:   "1.0",
		ProcessID: d.ProcessID,
		Name:      d.Name,
		FlowNodes: d.FlowNodes(),
	})
}
