package session_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/internal/testmodel"
	"github.com/syssam/mapper/query"
	"github.com/syssam/mapper/session"
	"github.com/syssam/mapper/uow"
)

func newSession(t *testing.T, opts ...session.Option) *session.Session {
	t.Helper()
	return session.New(testmodel.Registry(), testmodel.Open(t), opts...)
}

func TestPersonBecomesEmployee(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testmodel.Open(t)
	s := session.New(testmodel.Registry(), db)
	person := s.Registry().MustClass("Person")
	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type) VALUES (1, 'Ada', 'Person')`)

	stale, err := s.LoadOne(ctx, person, criteria.Eq("ID", 1))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Person{}, stale)

	testmodel.Exec(t, db, `UPDATE people SET type = 'Employee', salary = '5' WHERE id = 1`)
	got, err := s.LoadOne(ctx, person, criteria.Eq("ID", 1))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Employee{}, got)
	assert.NotSame(t, stale, got)
	assert.Equal(t, "Ada", got.(*testmodel.Employee).Surname)

	found, ok := s.Identity().Find(person, int64(1))
	require.True(t, ok)
	assert.Same(t, got, found, "the stale instance is evicted")
}

func TestEmployeeInsertedAfterDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testmodel.Open(t)
	s := session.New(testmodel.Registry(), db)
	person, employee := s.Registry().MustClass("Person"), s.Registry().MustClass("Employee")

	stale := &testmodel.Employee{Person: testmodel.Person{ID: 9, Surname: "Old"}, Salary: decimal.NewFromInt(1)}
	ok, err := s.Commit(ctx, uow.Save(employee, stale))
	require.NoError(t, err)
	require.True(t, ok)
	stale.EntityState().MarkForDelete()
	ok, err = s.Commit(ctx, uow.Save(employee, stale))
	require.NoError(t, err)
	require.True(t, ok)

	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type, salary) VALUES (9, 'Grace', 'Employee', '7')`)
	got, err := s.LoadOne(ctx, person, criteria.Eq("ID", 9))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Employee{}, got)
	e := got.(*testmodel.Employee)
	assert.Equal(t, "Grace", e.Surname)
	assert.True(t, decimal.NewFromInt(7).Equal(e.Salary))
	assert.NotSame(t, stale, e)
}

func TestGenericLoads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSession(t)
	dept := s.Registry().MustClass("Department")
	ok, err := s.Commit(ctx,
		uow.Save(dept, &testmodel.Department{ID: 1, Name: "Sales"}),
		uow.Save(dept, &testmodel.Department{ID: 2, Name: "Support"}),
		uow.Save(dept, &testmodel.Department{ID: 3, Name: "R&D"}),
	)
	require.NoError(t, err)
	require.True(t, ok)

	d, err := session.One[*testmodel.Department](ctx, s, criteria.Eq("Name", "Support"))
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(2), d.ID)

	missing, err := session.One[*testmodel.Department](ctx, s, criteria.Eq("Name", "Legal"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := session.Many[*testmodel.Department](ctx, s, criteria.Contains("Name", "S%"), query.OrderBy(query.Desc("Name")))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Support", all[0].Name)
	assert.Same(t, d, all[0])

	n, err := s.Count(ctx, dept, criteria.Ne("ID", 3))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = session.One[*testmodel.Department](ctx, s, nil)
	assert.True(t, mapper.IsAmbiguousResult(err))

	_, err = session.Many[string](ctx, s, nil)
	assert.True(t, mapper.IsConfigurationError(err))
}

func TestGenericSubclassMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSession(t)
	employee := s.Registry().MustClass("Employee")
	ok, err := s.Commit(ctx, uow.Save(employee, &testmodel.Employee{Person: testmodel.Person{ID: 1, Surname: "Ada"}}))
	require.NoError(t, err)
	require.True(t, ok)

	_, err = session.One[*testmodel.Person](ctx, s, criteria.Eq("ID", 1))
	assert.True(t, mapper.IsConfigurationError(err))
	e, err := session.One[*testmodel.Employee](ctx, s, criteria.Eq("ID", 1))
	require.NoError(t, err)
	assert.Equal(t, "Ada", e.Surname)
}

func TestRefreshAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSession(t)
	project := s.Registry().MustClass("Project")
	a := &testmodel.Project{ID: 1, Code: "A"}
	ok, err := s.Commit(ctx, uow.Save(project, a))
	require.NoError(t, err)
	require.True(t, ok)

	c := session.Collection[*testmodel.Project](s, project, nil, query.OrderBy(query.Asc("Code")))
	var added []string
	c.OnAdded = func(p *testmodel.Project) { added = append(added, p.Code) }
	require.NoError(t, s.Refresh(ctx, c))
	assert.Equal(t, []*testmodel.Project{a}, c.Items())

	ok, err = s.Commit(ctx, uow.Save(project, &testmodel.Project{ID: 2, Code: "B"}))
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Refresh(ctx, c))
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"B"}, added)

	a.Code = "edited"
	require.NoError(t, s.Reload(ctx, a))
	assert.Equal(t, "A", a.Code)
	assert.False(t, entity.IsDirty(project, a))
}

func TestDeleteConcurrency(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := testmodel.Open(t)
	s := session.New(testmodel.Registry(), db)
	project := s.Registry().MustClass("Project")
	p := &testmodel.Project{ID: 1, Code: "A"}
	ok, err := s.Commit(ctx, uow.Save(project, p))
	require.NoError(t, err)
	require.True(t, ok)

	testmodel.Exec(t, db, `DELETE FROM projects WHERE id = 1`)
	err = s.Reload(ctx, p)
	assert.True(t, mapper.IsDeleteConcurrency(err))
	_, found := s.Identity().Find(project, int64(1))
	assert.False(t, found)
}

func TestSessionLogger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var buf bytes.Buffer
	s := newSession(t, session.WithLogger(zerolog.New(&buf)))
	dept := s.Registry().MustClass("Department")
	c := s.NewCommitter(uow.WithIsolation(sql.LevelDefault))
	require.NoError(t, c.Add(uow.Save(dept, &testmodel.Department{ID: 1, Name: "A"})))
	ok, err := c.TryCommit(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, buf.String(), "commit succeeded")
}
