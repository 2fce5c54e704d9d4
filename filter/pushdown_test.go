package filter

import (
	"testing"

	"github.com/poiesic/affinity/core"
	"github.com/stretchr/testify/assert"
)

func TestIsPushDownable(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want bool
	}{
		{name: "nil", node: nil, want: true},
		{name: "empty group", node: And(), want: true},
		{name: "equality leaf", node: Where("city", OpEquals, core.StringValue("portland")), want: true},
		{name: "boolean leaf", node: Where("hasPets", OpIsTrue, core.Absent()), want: true},
		{name: "simple comparison", node: Where("age", OpGreaterThan, core.NumberValue(30)), want: true},
		{name: "contains is not pushdownable", node: Where("bio", OpContains, core.StringValue("x")), want: false},
		{name: "in range is not pushdownable", node: InRange("age", 1, 2), want: false},
		{name: "exists is not pushdownable", node: Where("bio", OpExists, core.Absent()), want: false},
		{name: "computed field is not pushdownable", node: Where("reputation", OpGreaterThan, core.NumberValue(4)), want: false},
		{name: "computed rating count is not pushdownable", node: Where("ratingCount", OpGreaterOrEqual, core.NumberValue(5)), want: false},
		{
			name: "all cheap children",
			node: And(
				Where("city", OpEquals, core.StringValue("portland")),
				Or(Where("hasPets", OpIsTrue, core.Absent()), Where("age", OpLessOrEqual, core.NumberValue(65))),
			),
			want: true,
		},
		{
			name: "one expensive child poisons the tree",
			node: And(
				Where("city", OpEquals, core.StringValue("portland")),
				Or(Where("bio", OpContains, core.StringValue("dogs"))),
			),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsPushDownable(tt.node))
		})
	}
}
