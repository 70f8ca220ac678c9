package criteria_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mapper/criteria"
)

func TestLeaf(t *testing.T) {
	t.Parallel()

	c := criteria.Eq("Surname", "Lee")
	assert.True(t, c.IsLeaf())
	assert.Equal(t, "Surname", c.Property())
	assert.Equal(t, criteria.EQ, c.Op())
	assert.Equal(t, "Lee", c.Value())

	in := criteria.Compare("ID", criteria.In, []int64{1, 2})
	assert.Equal(t, []any{int64(1), int64(2)}, in.Values())
	assert.True(t, criteria.In.Multi())
	assert.False(t, criteria.Like.Multi())

	scalar := criteria.Compare("ID", criteria.NotIn, 5)
	assert.Equal(t, []any{5}, scalar.Values())
}

func TestMultiValueKinds(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	tests := []struct {
		name string
		v    any
		want []any
	}{
		{"Int32", []int32{1, 2, 3}, []any{int32(1), int32(2), int32(3)}},
		{"Float64", []float64{1.5, 2.5}, []any{1.5, 2.5}},
		{"UUID", []uuid.UUID{id}, []any{id}},
		{"Array", [2]string{"a", "b"}, []any{"a", "b"}},
		{"Bytes", []byte("ab"), []any{[]byte("ab")}},
		{"Empty", []int16{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := criteria.Compare("ID", criteria.In, tt.v)
			assert.Equal(t, tt.want, c.Values())
		})
	}
}

func TestTypedNil(t *testing.T) {
	t.Parallel()
	var dept *int64
	assert.Nil(t, criteria.Eq("DepartmentID", dept).Value())
	assert.Equal(t, "DepartmentID IS NULL", criteria.Eq("DepartmentID", dept).String())

	n := int64(4)
	assert.Equal(t, &n, criteria.Eq("DepartmentID", &n).Value())
}

func TestImmutable(t *testing.T) {
	t.Parallel()

	vs := []any{"a", "b"}
	c := criteria.InValues("Type", vs...)
	vs[0] = "changed"
	assert.Equal(t, []any{"a", "b"}, c.Values())

	got := c.Values()
	got[1] = "changed"
	assert.Equal(t, []any{"a", "b"}, c.Values())

	left := criteria.Eq("A", 1)
	both := criteria.And(left, criteria.Eq("B", 2))
	assert.Same(t, left, both.Left())
	assert.True(t, left.IsLeaf(), "combining never rewrites children")
}

func TestAndOrNot(t *testing.T) {
	t.Parallel()

	assert.Nil(t, criteria.And())
	assert.Nil(t, criteria.And(nil, nil))
	assert.Nil(t, criteria.Not(nil))

	single := criteria.Eq("A", 1)
	assert.Same(t, single, criteria.And(nil, single))

	c := criteria.Or(criteria.Eq("A", 1), criteria.Eq("B", 2), criteria.Eq("C", 3))
	require.False(t, c.IsLeaf())
	assert.Equal(t, criteria.OR, c.Logic())
	assert.Equal(t, "((A = 1) OR (B = 2)) OR (C = 3)", c.String())

	n := criteria.Not(criteria.Eq("A", 1))
	assert.Equal(t, criteria.NOT, n.Logic())
	assert.Nil(t, n.Left())
	assert.Equal(t, "NOT (A = 1)", n.String())
}

func TestString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		c    *criteria.Criteria
		want string
	}{
		{nil, "<none>"},
		{criteria.Eq("DepartmentID", nil), "DepartmentID IS NULL"},
		{criteria.Ne("DepartmentID", nil), "DepartmentID IS NOT NULL"},
		{criteria.Contains("Surname", "M%"), "Surname LIKE M%"},
		{criteria.NotInValues("Type", "A", "B"), "Type NOT IN (A, B)"},
		{criteria.And(criteria.Ge("ID", 3), criteria.Lt("ID", 9)), "(ID >= 3) AND (ID < 9)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.c.String())
	}
}

func TestProperties(t *testing.T) {
	t.Parallel()

	c := criteria.And(
		criteria.Eq("Surname", "Lee"),
		criteria.Not(criteria.Eq("Department.Name", "Ops")),
		criteria.Gt("Surname", "A"),
	)
	assert.Equal(t, []string{"Surname", "Department.Name"}, c.Properties())

	var leaves int
	c.Walk(func(*criteria.Criteria) { leaves++ })
	assert.Equal(t, 3, leaves)
}
