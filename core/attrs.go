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


package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// AttrKind discriminates the variants of AttrValue.
type AttrKind int

const (
	// AttrAbsent is the typed "not found" variant. Resolving a path that
	// does not exist yields an Absent value, never a nil pointer, so every
	// caller must handle absence explicitly.
	AttrAbsent AttrKind = iota
	// AttrString holds a string value.
	AttrString
	// AttrNumber holds a float64 value.
	AttrNumber
	// AttrBool holds a boolean value.
	AttrBool
	// AttrList holds an ordered list of values.
	AttrList
	// AttrMap holds a nested string-keyed mapping.
	AttrMap
)

// AttrValue is a tagged value in an entity's open attribute mapping.
// Attributes nest to arbitrary depth via the List and Map variants.
type AttrValue struct {
	Kind AttrKind
	Str  string
	Num  float64
	Bool bool
	List []AttrValue
	Map  map[string]AttrValue
}

// Absent returns the typed not-found value.
func Absent() AttrValue { return AttrValue{} }

// StringValue wraps a string.
func StringValue(s string) AttrValue { return AttrValue{Kind: AttrString, Str: s} }

// NumberValue wraps a number.
func NumberValue(n float64) AttrValue { return AttrValue{Kind: AttrNumber, Num: n} }

// BoolValue wraps a boolean.
func BoolValue(b bool) AttrValue { return AttrValue{Kind: AttrBool, Bool: b} }

// ListValue wraps a list of values.
func ListValue(items ...AttrValue) AttrValue { return AttrValue{Kind: AttrList, List: items} }

// MapValue wraps a nested mapping.
func MapValue(m map[string]AttrValue) AttrValue { return AttrValue{Kind: AttrMap, Map: m} }

// IsAbsent reports whether the value is the not-found variant.
func (v AttrValue) IsAbsent() bool { return v.Kind == AttrAbsent }

// IsEmpty reports whether the value is absent or an empty string, list, or map.
func (v AttrValue) IsEmpty() bool {
	switch v.Kind {
	case AttrAbsent:
		return true
	case AttrString:
		return v.Str == ""
	case AttrList:
		return len(v.List) == 0
	case AttrMap:
		return len(v.Map) == 0
	default:
		return false
	}
}

// AsNumber coerces the value to a float64 for numeric comparison.
// Numbers convert directly; numeric strings are parsed. Booleans, lists,
// maps, and non-numeric strings do not coerce.
func (v AttrValue) AsNumber() (float64, bool) {
	switch v.Kind {
	case AttrNumber:
		return v.Num, true
	case AttrString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Equal reports deep equality of two values.
func (v AttrValue) Equal(other AttrValue) bool {
	if v.Kind != other.Kind {
		// A number and a numeric string holding the same value compare equal.
		a, aok := v.AsNumber()
		b, bok := other.AsNumber()
		return aok && bok && a == b
	}
	switch v.Kind {
	case AttrAbsent:
		return true
	case AttrString:
		return v.Str == other.Str
	case AttrNumber:
		return v.Num == other.Num
	case AttrBool:
		return v.Bool == other.Bool
	case AttrList:
		if len(v.List) != len(other.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(other.List[i]) {
				return false
			}
		}
		return true
	case AttrMap:
		if len(v.Map) != len(other.Map) {
			return false
		}
		for k, val := range v.Map {
			o, ok := other.Map[k]
			if !ok || !val.Equal(o) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the value as its natural JSON form.
// Absent encodes as null.
func (v AttrValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case AttrAbsent:
		return []byte("null"), nil
	case AttrString:
		return json.Marshal(v.Str)
	case AttrNumber:
		return json.Marshal(v.Num)
	case AttrBool:
		return json.Marshal(v.Bool)
	case AttrList:
		return json.Marshal(v.List)
	case AttrMap:
		return json.Marshal(v.Map)
	}
	return nil, fmt.Errorf("%w: unknown attribute kind %d", ErrInvalidInput, v.Kind)
}

// UnmarshalJSON decodes any JSON value into the matching variant.
func (v *AttrValue) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*v = Absent()
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '[':
		var list []AttrValue
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*v = AttrValue{Kind: AttrList, List: list}
	case '{':
		var m map[string]AttrValue
		if err := json.Unmarshal(data, &m); err != nil {
			return err
		}
		*v = AttrValue{Kind: AttrMap, Map: m}
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	}
	return nil
}

// Well-known property names resolvable on every entity, ahead of the
// open attribute mapping.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldEntityType  = "entityType"
	FieldReputation  = "reputation"
	FieldRatingCount = "ratingCount"
)

// ComputedFields are resolved from aggregates rather than stored
// attribute values. Filters on these cannot be pushed down to the
// backing store.
var ComputedFields = map[string]bool{
	FieldReputation:  true,
	FieldRatingCount: true,
}

// ResolveAttribute walks a dot-path through the entity's well-known
// properties and then its open attribute mapping. Returns an Absent
// value when the path does not resolve.
func (e *Entity) ResolveAttribute(path string) AttrValue {
	switch path {
	case FieldName:
		return StringValue(e.Name)
	case FieldDescription:
		return StringValue(e.Description)
	case FieldEntityType:
		return StringValue(e.Type.String())
	case FieldReputation:
		return NumberValue(e.Reputation)
	case FieldRatingCount:
		return NumberValue(float64(e.RatingCount))
	}

	segments := strings.Split(path, ".")
	current, ok := e.Attributes[segments[0]]
	if !ok {
		return Absent()
	}
	for _, segment := range segments[1:] {
		if current.Kind != AttrMap {
			return Absent()
		}
		current, ok = current.Map[segment]
		if !ok {
			return Absent()
		}
	}
	return current
}
