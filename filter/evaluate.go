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
	"strings"

	"github.com/poiesic/affinity/core"
)

// Matches evaluates a filter tree against one entity's fields.
//
// AND groups short-circuit on the first mismatch, OR groups on the first
// match. A nil node or an empty group matches everything.
//
// Privacy gate: with enforcePrivacy set, a leaf on a field the requesting
// user is not authorized to see evaluates to not-matched, always,
// including NotExists, so gated filters never leak information through
// their pass/fail outcome. A group consisting solely of gated leaves
// therefore evaluates to false, never true.
func Matches(entity *core.Entity, node Node, requestingUserId core.ID, enforcePrivacy bool) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *Leaf:
		return evalLeaf(entity, n, requestingUserId, enforcePrivacy)
	case *Group:
		return evalGroup(entity, n, requestingUserId, enforcePrivacy)
	default:
		return false
	}
}

// ExtractMatchedAttributes returns, for every leaf in the tree that
// matched and passed the privacy gate, the field path and its resolved
// value. Callers use it to show why a result matched without ever
// exposing privacy-gated fields. Every leaf is visited; short-circuiting
// does not apply here.
func ExtractMatchedAttributes(entity *core.Entity, node Node, requestingUserId core.ID, enforcePrivacy bool) map[string]core.AttrValue {
	matched := make(map[string]core.AttrValue)
	collectMatched(entity, node, requestingUserId, enforcePrivacy, matched)
	return matched
}

// CountMatchingLeaves returns how many leaves in the tree matched and
// passed the privacy gate. Attribute-only searches rank candidates by
// this count. Every leaf is visited; short-circuiting does not apply.
func CountMatchingLeaves(entity *core.Entity, node Node, requestingUserId core.ID, enforcePrivacy bool) int {
	switch n := node.(type) {
	case *Leaf:
		if evalLeaf(entity, n, requestingUserId, enforcePrivacy) {
			return 1
		}
		return 0
	case *Group:
		count := 0
		for _, child := range n.Nodes {
			count += CountMatchingLeaves(entity, child, requestingUserId, enforcePrivacy)
		}
		return count
	default:
		return 0
	}
}

func collectMatched(entity *core.Entity, node Node, requestingUserId core.ID, enforcePrivacy bool, out map[string]core.AttrValue) {
	switch n := node.(type) {
	case *Leaf:
		if evalLeaf(entity, n, requestingUserId, enforcePrivacy) {
			out[n.Field] = entity.ResolveAttribute(n.Field)
		}
	case *Group:
		for _, child := range n.Nodes {
			collectMatched(entity, child, requestingUserId, enforcePrivacy, out)
		}
	}
}

func evalGroup(entity *core.Entity, group *Group, requestingUserId core.ID, enforcePrivacy bool) bool {
	if len(group.Nodes) == 0 {
		return true
	}

	switch group.Op {
	case LogicalOr:
		for _, child := range group.Nodes {
			if Matches(entity, child, requestingUserId, enforcePrivacy) {
				return true
			}
		}
		return false
	default:
		for _, child := range group.Nodes {
			if !Matches(entity, child, requestingUserId, enforcePrivacy) {
				return false
			}
		}
		return true
	}
}

func evalLeaf(entity *core.Entity, leaf *Leaf, requestingUserId core.ID, enforcePrivacy bool) bool {
	// Fail-closed: a gated field never matches, whatever the operator.
	if enforcePrivacy && !entity.FieldVisibleTo(leaf.Field, requestingUserId) {
		return false
	}

	value := entity.ResolveAttribute(leaf.Field)

	switch leaf.Op {
	case OpExists:
		return !value.IsEmpty()
	case OpNotExists:
		return value.IsEmpty()
	}

	// Every remaining operator needs a present value to compare against.
	if value.IsAbsent() {
		return false
	}

	switch leaf.Op {
	case OpEquals:
		return value.Equal(leaf.Value)
	case OpNotEquals:
		return !value.Equal(leaf.Value)
	case OpIsTrue:
		return value.Kind == core.AttrBool && value.Bool
	case OpIsFalse:
		return value.Kind == core.AttrBool && !value.Bool
	case OpContains:
		return contains(value, leaf.Value)
	case OpNotContains:
		return !contains(value, leaf.Value)
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return compareNumeric(value, leaf)
	case OpInRange:
		n, ok := value.AsNumber()
		return ok && n >= leaf.Min && n <= leaf.Max
	default:
		return false
	}
}

// contains applies Contains semantics: substring on strings, membership
// on lists. Other value kinds never contain anything.
func contains(value, needle core.AttrValue) bool {
	switch value.Kind {
	case core.AttrString:
		return needle.Kind == core.AttrString && strings.Contains(value.Str, needle.Str)
	case core.AttrList:
		for _, item := range value.List {
			if item.Equal(needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// compareNumeric coerces both sides to numbers. Impossible coercion
// fails the leaf, not the whole query.
func compareNumeric(value core.AttrValue, leaf *Leaf) bool {
	got, ok := value.AsNumber()
	if !ok {
		return false
	}
	want, ok := leaf.Value.AsNumber()
	if !ok {
		return false
	}

	switch leaf.Op {
	case OpGreaterThan:
		return got > want
	case OpLessThan:
		return got < want
	case OpGreaterOrEqual:
		return got >= want
	case OpLessOrEqual:
		return got <= want
	default:
		return false
	}
}
