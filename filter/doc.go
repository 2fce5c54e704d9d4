// Package filter evaluates recursive boolean filter trees against entity
// fields, honoring field-level visibility.
//
// A filter tree is a sealed union of Leaf comparisons and Group nodes
// with AND/OR semantics and unbounded nesting. Evaluation is fail-closed
// under privacy enforcement: a leaf on a field the caller cannot see
// never matches, whatever its operator, so the outcome of a gated filter
// cannot leak the field's value.
//
// IsPushDownable classifies trees that can be delegated to the backing
// store's scan predicate instead of being evaluated post-scoring.
package filter
