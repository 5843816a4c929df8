package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/flowmod/pkg/modification"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrUnsafeFilter is returned for filter expressions that reach outside the
// modification fields.
var ErrUnsafeFilter = errors.New("filter expression contains unsafe operations")

// unsafeFilterPatterns are rejected before compilation.
var unsafeFilterPatterns = []string{
	"os.",
	"exec.",
	"http.",
	"net.",
	"syscall.",
	"unsafe.",
	"__proto__",
	"readfile",
	"writefile",
}

func checkFilterExpression(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return errors.New("filter expression cannot be empty")
	}
	lower := strings.ToLower(expression)
	for _, pattern := range unsafeFilterPatterns {
		if strings.Contains(lower, pattern) {
			return ErrUnsafeFilter
		}
	}
	return nil
}

// filterEnv is the set of names a filter expression can reference.
func filterEnv(m modification.FlowNodeModification) map[string]any {
	target := ""
	if m.TargetFlowNode != nil {
		target = string(m.TargetFlowNode.ID)
	}
	return map[string]any{
		"operation":    string(m.Operation),
		"flowNode":     string(m.FlowNode.ID),
		"flowNodeName": m.FlowNode.Name,
		"target":       target,
		"scope":        string(m.ScopeID),
		"count":        m.AffectedTokenCount,
	}
}

// Filter returns the staged token modifications for which expression is true.
//
// The expression can reference operation, flowNode, flowNodeName, target,
// scope and count, for example:
//
//	operation == "MOVE_TOKEN" && count > 1
func Filter(log *modification.Log, expression string) ([]modification.FlowNodeModification, error) {
	if err := checkFilterExpression(expression); err != nil {
		return nil, err
	}

	program, err := expr.Compile(expression,
		expr.Env(filterEnv(modification.FlowNodeModification{})),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid filter expression: %w", err)
	}

	var matched []modification.FlowNodeModification
	for _, m := range log.FlowNodeModifications() {
		out, err := vm.Run(program, filterEnv(m))
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate filter: %w", err)
		}
		if ok, _ := out.(bool); ok {
			matched = append(matched, m)
		}
	}
	return matched, nil
}
