package loader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/internal/testmodel"
	"github.com/syssam/mapper/loader"
	"github.com/syssam/mapper/query"
)

func TestCollectionRefresh(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	dept := ld.Registry().MustClass("Department")
	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (1, 'A'), (2, 'B')`)

	var added, removed []string
	c := loader.NewCollection[*testmodel.Department](ld, dept, criteria.Ne("Name", "hidden"), query.OrderBy(query.Asc("ID")))
	c.OnAdded = func(d *testmodel.Department) { added = append(added, d.Name) }
	c.OnRemoved = func(d *testmodel.Department) { removed = append(removed, d.Name) }

	require.NoError(t, c.Refresh(ctx))
	require.True(t, c.Loaded())
	require.Equal(t, 2, c.Len())
	assert.Empty(t, added, "the first load sends no notifications")
	first := c.Items()

	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (3, 'C')`)
	testmodel.Exec(t, db, `UPDATE departments SET name = 'hidden' WHERE id = 1`)
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, []string{"C"}, added)
	assert.Equal(t, []string{"A"}, removed, "dropped members are not reloaded")
	items := c.Items()
	require.Len(t, items, 2)
	assert.Same(t, first[1], items[0], "members keep their identity")
	assert.Equal(t, int64(3), items[1].ID)
}

func TestCollectionKeepsLocalChanges(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	dept := ld.Registry().MustClass("Department")
	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (1, 'A'), (2, 'B')`)

	c := loader.NewCollection[*testmodel.Department](ld, dept, nil, query.OrderBy(query.Asc("ID")))
	require.NoError(t, c.Refresh(ctx))
	items := c.Items()

	draft := &testmodel.Department{ID: 10, Name: "draft"}
	c.Add(draft)
	c.Remove(items[0])
	require.NoError(t, c.Refresh(ctx))
	got := c.Items()
	require.Len(t, got, 2)
	assert.Same(t, items[1], got[0])
	assert.Same(t, draft, got[1], "unsaved additions survive the reload")

	entity.MarkPersisted(dept, draft)
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 1, c.Len(), "a persisted addition must come from the store")

	entity.MarkDeleted(items[0])
	require.NoError(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.Len(), "removal tracking ends once the instance is deleted")
}

func TestCollectionPolymorphic(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type) VALUES (1, 'P', 'Person'), (2, 'E', 'Employee')`)

	c := loader.NewCollection[entity.Stater](ld, ld.Registry().MustClass("Person"), nil, query.OrderBy(query.Asc("ID")))
	require.NoError(t, c.Refresh(context.Background()))
	items := c.Items()
	require.Len(t, items, 2)
	assert.IsType(t, &testmodel.Person{}, items[0])
	assert.IsType(t, &testmodel.Employee{}, items[1])

	strict := loader.NewCollection[*testmodel.Person](ld, ld.Registry().MustClass("Person"), nil)
	assert.Error(t, strict.Refresh(context.Background()))
}
