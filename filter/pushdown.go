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

import "github.com/poiesic/affinity/core"

// pushDownableOps are cheap enough to express as a backing-store query
// predicate: equality, boolean tests, and simple comparisons.
// Contains, InRange, and the Exists family require in-process evaluation.
var pushDownableOps = map[Operator]bool{
	OpEquals:         true,
	OpNotEquals:      true,
	OpIsTrue:         true,
	OpIsFalse:        true,
	OpGreaterThan:    true,
	OpLessThan:       true,
	OpGreaterOrEqual: true,
	OpLessOrEqual:    true,
}

// IsPushDownable classifies whether the whole tree consists only of
// operators and fields cheap enough to be expressed as a backing-store
// query predicate. Filters on computed fields (reputation aggregates)
// are never push-downable. Pure static analysis, no side effects; the
// search engine uses it to decide between store-side filtering and
// in-process evaluation.
func IsPushDownable(node Node) bool {
	switch n := node.(type) {
	case nil:
		return true
	case *Leaf:
		return pushDownableOps[n.Op] && !core.ComputedFields[n.Field]
	case *Group:
		for _, child := range n.Nodes {
			if !IsPushDownable(child) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
