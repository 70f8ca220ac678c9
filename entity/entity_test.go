package entity_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/internal/testmodel"
)

func TestStateLifecycle(t *testing.T) {
	t.Parallel()
	def := testmodel.Registry().MustClass("Employee")

	e := &testmodel.Employee{}
	s := entity.StateOf(e)
	require.NotNil(t, s)
	assert.True(t, s.IsNew())
	assert.Equal(t, "new", s.Status().String())
	assert.True(t, entity.IsDirty(def, e))
	assert.Len(t, entity.Dirty(def, e), 5, "every property of a new instance is dirty")

	e.ID, e.Surname = 1, "Lee"
	entity.MarkPersisted(def, e)
	assert.Equal(t, entity.Persisted, s.Status())
	assert.False(t, entity.IsDirty(def, e))
	v, ok := s.Persisted("Surname")
	require.True(t, ok)
	assert.Equal(t, "Lee", v)

	e.Surname = "Li"
	assert.Equal(t, []string{"Surname"}, entity.Dirty(def, e))

	s.MarkForDelete()
	assert.True(t, s.MarkedForDelete())
	entity.MarkDeleted(e)
	assert.True(t, s.IsDeleted())
	assert.False(t, s.MarkedForDelete())

	assert.Nil(t, entity.StateOf(struct{}{}))
}

func TestEdit(t *testing.T) {
	t.Parallel()
	def := testmodel.Registry().MustClass("Person")

	p := &testmodel.Person{ID: 1, Surname: "Lee"}
	entity.MarkPersisted(def, p)

	entity.BeginEdit(def, p)
	assert.True(t, entity.StateOf(p).IsEditing())
	p.Surname = "Li"
	entity.BeginEdit(def, p)
	p.Surname = "Lo"
	require.NoError(t, entity.CancelEdit(def, p))
	assert.Equal(t, "Lee", p.Surname, "cancel restores the values of the first BeginEdit")
	assert.False(t, entity.StateOf(p).IsEditing())

	entity.BeginEdit(def, p)
	p.Surname = "Li"
	entity.EndEdit(p)
	assert.False(t, entity.StateOf(p).IsEditing())
	assert.Equal(t, "Li", p.Surname)
	assert.True(t, entity.IsDirty(def, p))
}

func TestTransactionID(t *testing.T) {
	t.Parallel()

	p := &testmodel.Person{}
	id := entity.StateOf(p).TransactionID()
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id, entity.StateOf(p).TransactionID())
	assert.NotEqual(t, id, entity.StateOf(&testmodel.Person{}).TransactionID())
}

func TestMemento(t *testing.T) {
	t.Parallel()
	def := testmodel.Registry().MustClass("Person")

	p := &testmodel.Person{ID: 4, Surname: "Lee"}
	m := entity.Save(def, p)

	p.Surname = "Changed"
	entity.MarkPersisted(def, p)
	require.NoError(t, m.Restore())

	assert.Equal(t, "Lee", p.Surname)
	assert.True(t, entity.StateOf(p).IsNew())
	assert.True(t, entity.StateOf(p).RolledBack())
}

func TestPersistedKey(t *testing.T) {
	t.Parallel()
	def := testmodel.Registry().MustClass("Department")
	d := &testmodel.Department{ID: 3, Name: "Ops"}

	_, ok := entity.PersistedKey(def, d)
	assert.False(t, ok, "a new instance has no persisted key")

	entity.MarkPersisted(def, d)
	d.ID = 30
	key, ok := entity.PersistedKey(def, d)
	require.True(t, ok)
	assert.Equal(t, []any{int64(3)}, key)

	_, ok = entity.PersistedKey(def, struct{}{})
	assert.False(t, ok)
}
