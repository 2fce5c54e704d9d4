// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package filter

import (
	"fmt"

	"github.com/poiesic/affinity/core"
)

// Operator is a leaf comparison operator.
type Operator int

const (
	// OpEquals matches when the resolved value equals the comparison value.
	OpEquals Operator = iota + 1
	// OpNotEquals matches when a present value differs from the comparison value.
	OpNotEquals
	// OpContains matches substrings of string values and members of list values.
	OpContains
	// OpNotContains matches present values that do not contain the comparison value.
	OpNotContains
	// OpGreaterThan matches numerically coercible values above the comparison value.
	OpGreaterThan
	// OpLessThan matches numerically coercible values below the comparison value.
	OpLessThan
	// OpGreaterOrEqual matches values at or above the comparison value.
	OpGreaterOrEqual
	// OpLessOrEqual matches values at or below the comparison value.
	OpLessOrEqual
	// OpInRange matches values within [Min, Max], inclusive on both bounds.
	OpInRange
	// OpIsTrue matches boolean true values.
	OpIsTrue
	// OpIsFalse matches boolean false values.
	OpIsFalse
	// OpExists matches non-absent, non-empty values.
	OpExists
	// OpNotExists matches absent or empty values.
	OpNotExists
)

// LogicalOperator combines the children of a group.
type LogicalOperator int

const (
	// LogicalAnd requires every child to match.
	LogicalAnd LogicalOperator = iota + 1
	// LogicalOr requires at least one child to match.
	LogicalOr
)

// Node is one node of a filter tree: either a *Leaf or a *Group.
// A nil Node matches everything.
type Node interface {
	isNode()
}

// Leaf is a single attribute comparison against a dot-path into an
// entity's attributes or one of its well-known properties.
type Leaf struct {
	Field string
	Op    Operator
	Value core.AttrValue
	Min   float64 // InRange lower bound, inclusive
	Max   float64 // InRange upper bound, inclusive
}

func (*Leaf) isNode() {}

// Group combines leaves and nested groups with a logical operator.
// Nesting is unbounded. An empty group matches everything.
type Group struct {
	Op    LogicalOperator
	Nodes []Node
}

func (*Group) isNode() {}

// And builds an AND group.
func And(nodes ...Node) *Group {
	return &Group{Op: LogicalAnd, Nodes: nodes}
}

// Or builds an OR group.
func Or(nodes ...Node) *Group {
	return &Group{Op: LogicalOr, Nodes: nodes}
}

// Where builds a comparison leaf.
func Where(field string, op Operator, value core.AttrValue) *Leaf {
	return &Leaf{Field: field, Op: op, Value: value}
}

// InRange builds an inclusive range leaf.
func InRange(field string, min, max float64) *Leaf {
	return &Leaf{Field: field, Op: OpInRange, Min: min, Max: max}
}

// Validate checks that a filter tree is well formed: known operators,
// non-empty field paths, and ordered InRange bounds. A nil node is valid.
// Malformed trees fail with core.ErrInvalidInput.
func Validate(node Node) error {
	switch n := node.(type) {
	case nil:
		return nil
	case *Leaf:
		if n.Field == "" {
			return fmt.Errorf("%w: filter leaf has empty field path", core.ErrInvalidInput)
		}
		if n.Op < OpEquals || n.Op > OpNotExists {
			return fmt.Errorf("%w: unknown filter operator %d", core.ErrInvalidInput, n.Op)
		}
		if n.Op == OpInRange && n.Min > n.Max {
			return fmt.Errorf("%w: InRange bounds out of order: %v > %v", core.ErrInvalidInput, n.Min, n.Max)
		}
		return nil
	case *Group:
		if n.Op != LogicalAnd && n.Op != LogicalOr {
			return fmt.Errorf("%w: unknown logical operator %d", core.ErrInvalidInput, n.Op)
		}
		for _, child := range n.Nodes {
			if child == nil {
				return fmt.Errorf("%w: nil node inside filter group", core.ErrInvalidInput)
			}
			if err := Validate(child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown filter node type %T", core.ErrInvalidInput, node)
	}
}
