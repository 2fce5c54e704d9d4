package filter

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/affinity/core"
)

// Wire names for leaf operators, used by the CLI and seed files.
var operatorNames = map[string]Operator{
	"eq":          OpEquals,
	"neq":         OpNotEquals,
	"contains":    OpContains,
	"notContains": OpNotContains,
	"gt":          OpGreaterThan,
	"lt":          OpLessThan,
	"gte":         OpGreaterOrEqual,
	"lte":         OpLessOrEqual,
	"inRange":     OpInRange,
	"isTrue":      OpIsTrue,
	"isFalse":     OpIsFalse,
	"exists":      OpExists,
	"notExists":   OpNotExists,
}

type nodeJSON struct {
	Logical string            `json:"logical,omitempty"`
	Nodes   []json.RawMessage `json:"nodes,omitempty"`
	Field   string            `json:"field,omitempty"`
	Op      string            `json:"op,omitempty"`
	Value   *core.AttrValue   `json:"value,omitempty"`
	Min     *float64          `json:"min,omitempty"`
	Max     *float64          `json:"max,omitempty"`
}

// ParseJSON decodes a filter tree from its wire form.
//
// A group is {"logical": "and"|"or", "nodes": [...]}; a leaf is
// {"field": "...", "op": "...", "value": ..., "min": ..., "max": ...}.
// The decoded tree is validated before being returned.
func ParseJSON(data []byte) (Node, error) {
	node, err := parseNode(data)
	if err != nil {
		return nil, err
	}
	if err := Validate(node); err != nil {
		return nil, err
	}
	return node, nil
}

func parseNode(data []byte) (Node, error) {
	var raw nodeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidInput, err)
	}

	if raw.Logical != "" {
		var op LogicalOperator
		switch raw.Logical {
		case "and":
			op = LogicalAnd
		case "or":
			op = LogicalOr
		default:
			return nil, fmt.Errorf("%w: unknown logical operator %q", core.ErrInvalidInput, raw.Logical)
		}

		group := &Group{Op: op, Nodes: make([]Node, 0, len(raw.Nodes))}
		for _, childRaw := range raw.Nodes {
			child, err := parseNode(childRaw)
			if err != nil {
				return nil, err
			}
			group.Nodes = append(group.Nodes, child)
		}
		return group, nil
	}

	op, ok := operatorNames[raw.Op]
	if !ok {
		return nil, fmt.Errorf("%w: unknown filter operator %q", core.ErrInvalidInput, raw.Op)
	}

	leaf := &Leaf{Field: raw.Field, Op: op}
	if raw.Value != nil {
		leaf.Value = *raw.Value
	}
	if raw.Min != nil {
		leaf.Min = *raw.Min
	}
	if raw.Max != nil {
		leaf.Max = *raw.Max
	}
	return leaf, nil
}
