package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mapper/query"
)

func TestSource(t *testing.T) {
	t.Parallel()
	root := query.NewSource("Car", "cars")
	vehicle := root.InheritanceJoin("Vehicle", "vehicles", query.FieldPair{From: "id", To: "id"})
	owner := root.Join(query.LeftJoin, "Owner", "people", query.FieldPair{From: "owner_id", To: "id"})
	dept := owner.Join(query.LeftJoin, "Department", "departments")

	assert.Equal(t, "Car", root.Path())
	assert.Equal(t, "Car.Vehicle", vehicle.Path())
	assert.Equal(t, "Car.Owner.Department", dept.Path())
	assert.Same(t, root, vehicle.Parent())
	assert.Nil(t, root.Parent())

	assert.Same(t, owner, root.Join(query.LeftJoin, "Owner", "people"), "joins merge by name")
	assert.Len(t, root.Joins, 1)

	found, ok := root.Find("Car.Owner.Department")
	require.True(t, ok)
	assert.Same(t, dept, found)
	_, ok = root.Find("Car.Missing")
	assert.False(t, ok)
	_, ok = root.Find("Truck")
	assert.False(t, ok)

	var paths []string
	root.Walk(func(s *query.Source) { paths = append(paths, s.Path()) })
	assert.Equal(t, []string{"Car", "Car.Vehicle", "Car.Owner", "Car.Owner.Department"}, paths)
}

func TestAliases(t *testing.T) {
	t.Parallel()
	root := query.NewSource("Person", "people")
	dept := root.Join(query.LeftJoin, "Department", "departments")

	a := query.NewAliases()
	a.Assign(root)
	alias, ok := a.Of(root)
	require.True(t, ok)
	assert.Equal(t, "a1", alias)
	alias, ok = a.Of(dept)
	require.True(t, ok)
	assert.Equal(t, "a2", alias)

	before := a.Map()
	a.Assign(root)
	a.Assign(dept)
	assert.Equal(t, before, a.Map(), "assignment is idempotent")

	boss := root.Join(query.LeftJoin, "Boss", "people")
	a.Assign(root)
	alias, ok = a.Alias("Person.Boss")
	require.True(t, ok)
	assert.Equal(t, "a3", alias, "new sources take the next alias")
	assert.Equal(t, 3, a.Len())
	alias, _ = a.Of(boss)
	assert.Equal(t, "a3", alias)

	_, ok = a.Alias("Person.Nobody")
	assert.False(t, ok)
}
