package filter

import (
	"testing"

	"github.com/poiesic/affinity/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	raw := `{
		"logical": "and",
		"nodes": [
			{"field": "hasPets", "op": "isTrue"},
			{"field": "age", "op": "inRange", "min": 21, "max": 65},
			{"logical": "or", "nodes": [
				{"field": "location.city", "op": "eq", "value": "portland"},
				{"field": "languages", "op": "contains", "value": "go"}
			]}
		]
	}`

	node, err := ParseJSON([]byte(raw))
	require.NoError(t, err)

	group, ok := node.(*Group)
	require.True(t, ok)
	assert.Equal(t, LogicalAnd, group.Op)
	require.Len(t, group.Nodes, 3)

	pets, ok := group.Nodes[0].(*Leaf)
	require.True(t, ok)
	assert.Equal(t, OpIsTrue, pets.Op)
	assert.Equal(t, "hasPets", pets.Field)

	rng, ok := group.Nodes[1].(*Leaf)
	require.True(t, ok)
	assert.Equal(t, OpInRange, rng.Op)
	assert.Equal(t, 21.0, rng.Min)
	assert.Equal(t, 65.0, rng.Max)

	inner, ok := group.Nodes[2].(*Group)
	require.True(t, ok)
	assert.Equal(t, LogicalOr, inner.Op)
	city := inner.Nodes[0].(*Leaf)
	assert.True(t, city.Value.Equal(core.StringValue("portland")))
}

func TestParseJSON_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "unknown operator", raw: `{"field": "a", "op": "almostEquals"}`},
		{name: "unknown logical", raw: `{"logical": "xor", "nodes": []}`},
		{name: "missing field", raw: `{"op": "eq", "value": 1}`},
		{name: "bad range", raw: `{"field": "a", "op": "inRange", "min": 9, "max": 1}`},
		{name: "not json", raw: `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.raw))
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}
