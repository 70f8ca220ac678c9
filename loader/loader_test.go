package loader_test

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/dialect"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/identity"
	"github.com/syssam/mapper/internal/testmodel"
	"github.com/syssam/mapper/loader"
	"github.com/syssam/mapper/query"
)

func newLoader(t *testing.T) (*loader.Loader, *sql.DB) {
	t.Helper()
	db := testmodel.Open(t)
	return loader.New(testmodel.Registry(), identity.New(), db), db
}

func TestLoadOneIdentity(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type) VALUES (1, 'Ada', 'Person')`)
	person := ld.Registry().MustClass("Person")

	first, err := ld.LoadOne(ctx, person, criteria.Eq("ID", 1))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Person{}, first)
	p := first.(*testmodel.Person)
	assert.Equal(t, "Ada", p.Surname)
	assert.Nil(t, p.DepartmentID)
	assert.Equal(t, entity.Persisted, entity.StateOf(p).Status())

	second, err := ld.LoadOne(ctx, person, criteria.Eq("Surname", "Ada"))
	require.NoError(t, err)
	assert.Same(t, first, second)

	many, err := ld.LoadMany(ctx, person, nil)
	require.NoError(t, err)
	require.Len(t, many, 1)
	assert.Same(t, first, many[0])

	none, err := ld.LoadOne(ctx, person, criteria.Eq("ID", 2))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestLoadOverwritesInPlace(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (1, 'Sales')`)
	dept := ld.Registry().MustClass("Department")

	obj, err := ld.LoadOne(ctx, dept, criteria.Eq("ID", 1))
	require.NoError(t, err)
	d := obj.(*testmodel.Department)

	testmodel.Exec(t, db, `UPDATE departments SET name = 'Marketing' WHERE id = 1`)
	again, err := ld.LoadOne(ctx, dept, criteria.Eq("ID", 1))
	require.NoError(t, err)
	assert.Same(t, d, again)
	assert.Equal(t, "Marketing", d.Name, "stored instance is refreshed")
	assert.False(t, entity.IsDirty(dept, d))

	entity.BeginEdit(dept, d)
	d.Name = "Local"
	testmodel.Exec(t, db, `UPDATE departments SET name = 'Remote' WHERE id = 1`)
	again, err = ld.LoadOne(ctx, dept, criteria.Eq("ID", 1))
	require.NoError(t, err)
	assert.Same(t, d, again)
	assert.Equal(t, "Local", d.Name, "an instance under edit is never overwritten")
}

func TestLoadNewInstanceNotReplaced(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (5, 'Ops')`)
	dept := ld.Registry().MustClass("Department")

	unsaved := &testmodel.Department{ID: 5, Name: "Draft"}
	_, err := ld.Identity().Add(dept, unsaved)
	require.NoError(t, err)

	obj, err := ld.LoadOne(ctx, dept, criteria.Eq("ID", 5))
	require.NoError(t, err)
	assert.NotSame(t, unsaved, obj, "the row is returned unregistered")
	assert.Equal(t, "Ops", obj.(*testmodel.Department).Name)
	assert.Equal(t, "Draft", unsaved.Name)
	registered, ok := ld.Identity().Find(dept, int64(5))
	require.True(t, ok)
	assert.Same(t, unsaved, registered)
}

func TestSubtypeResolution(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	reg := ld.Registry()
	person := reg.MustClass("Person")

	// A base instance registered before the row became an employee.
	stale := &testmodel.Person{ID: 3, Surname: "Old", Type: "Person"}
	entity.MarkPersisted(person, stale)
	_, err := ld.Identity().Add(person, stale)
	require.NoError(t, err)
	staleEmployee := &testmodel.Employee{Person: testmodel.Person{ID: 3}}

	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type, salary) VALUES (3, 'Hopper', 'Employee', '5100.50')`)
	obj, err := ld.LoadOne(ctx, person, criteria.Eq("ID", 3))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Employee{}, obj)
	e := obj.(*testmodel.Employee)
	assert.Equal(t, "Hopper", e.Surname)
	assert.Equal(t, "Employee", e.Type)
	assert.True(t, decimal.RequireFromString("5100.50").Equal(e.Salary))
	assert.NotSame(t, staleEmployee, e)

	registered, ok := ld.Identity().Find(person, 3)
	require.True(t, ok)
	assert.Same(t, e, registered, "the base instance is evicted")

	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type, reports) VALUES (4, 'Lovelace', 'Manager', 7)`)
	obj, err = ld.LoadOne(ctx, reg.MustClass("Employee"), criteria.Eq("ID", 4))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Manager{}, obj)
	assert.Equal(t, 7, obj.(*testmodel.Manager).Reports)
}

func TestClassTableSubtype(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO vehicles (id, make, kind) VALUES (1, 'Ford', 'Car'), (2, 'Volvo', 'Truck')`)
	testmodel.Exec(t, db, `INSERT INTO cars (id, doors) VALUES (1, 5)`)
	testmodel.Exec(t, db, `INSERT INTO trucks (id, payload) VALUES (2, 12.5)`)

	all, err := ld.LoadMany(ctx, ld.Registry().MustClass("Vehicle"), nil, query.OrderBy(query.Asc("ID")))
	require.NoError(t, err)
	require.Len(t, all, 2)
	car, ok := all[0].(*testmodel.Car)
	require.True(t, ok)
	assert.Equal(t, 5, car.Doors)
	assert.Equal(t, "Ford", car.Make)
	truck, ok := all[1].(*testmodel.Truck)
	require.True(t, ok)
	assert.InDelta(t, 12.5, truck.Payload, 0.001)

	cars, err := ld.LoadMany(ctx, ld.Registry().MustClass("Car"), nil)
	require.NoError(t, err)
	require.Len(t, cars, 1)
	assert.Same(t, car, cars[0])
}

func TestLoadOneAmbiguous(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type) VALUES (1, 'Smith', 'Person'), (2, 'Smith', 'Person')`)

	obj, err := ld.LoadOne(context.Background(), ld.Registry().MustClass("Person"), criteria.Eq("Surname", "Smith"))
	require.Error(t, err)
	assert.Nil(t, obj)
	assert.True(t, mapper.IsAmbiguousResult(err))
	assert.Equal(t, 0, ld.Identity().Len(), "no partial result is registered")
}

func TestPagingConcatenation(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		testmodel.Exec(t, db, `INSERT INTO people (id, surname, type) VALUES (?, ?, 'Person')`, i, string(rune('a'+7-i)))
	}
	person := ld.Registry().MustClass("Person")
	full, err := ld.LoadMany(ctx, person, nil, query.OrderBy(query.Asc("Surname")))
	require.NoError(t, err)
	require.Len(t, full, 7)

	var paged []any
	for offset := 0; offset < 9; offset += 3 {
		page, err := ld.LoadMany(ctx, person, nil, query.OrderBy(query.Asc("Surname")), query.Limit(3), query.Offset(offset))
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page), 3)
		paged = append(paged, page...)
	}
	assert.Equal(t, full, paged)

	past, err := ld.LoadMany(ctx, person, nil, query.Limit(3), query.Offset(7))
	require.NoError(t, err)
	assert.Empty(t, past)

	n, err := ld.Count(ctx, person, criteria.Lt("ID", 3))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReload(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (9, 'R&D')`)
	dept := ld.Registry().MustClass("Department")
	obj, err := ld.LoadOne(ctx, dept, criteria.Eq("ID", 9))
	require.NoError(t, err)
	d := obj.(*testmodel.Department)

	entity.BeginEdit(dept, d)
	d.Name = "edited"
	testmodel.Exec(t, db, `UPDATE departments SET name = 'Research' WHERE id = 9`)
	require.NoError(t, ld.Reload(ctx, d))
	assert.Equal(t, "Research", d.Name)
	assert.False(t, entity.StateOf(d).IsEditing())

	testmodel.Exec(t, db, `DELETE FROM departments WHERE id = 9`)
	err = ld.Reload(ctx, d)
	require.Error(t, err)
	assert.True(t, mapper.IsDeleteConcurrency(err))
	_, ok := ld.Identity().Find(dept, int64(9))
	assert.False(t, ok)
}

func TestReloadEditedKey(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO departments (id, name) VALUES (9, 'R&D'), (99, 'Other')`)
	dept := ld.Registry().MustClass("Department")
	obj, err := ld.LoadOne(ctx, dept, criteria.Eq("ID", 9))
	require.NoError(t, err)
	d := obj.(*testmodel.Department)

	d.ID = 99
	require.NoError(t, ld.Reload(ctx, d))
	assert.Equal(t, int64(9), d.ID, "the persisted key finds the row")
	assert.Equal(t, "R&D", d.Name)
	registered, ok := ld.Identity().Find(dept, int64(9))
	require.True(t, ok)
	assert.Same(t, d, registered)
	_, ok = ld.Identity().Find(dept, int64(99))
	assert.False(t, ok)

	testmodel.Exec(t, db, `DELETE FROM departments WHERE id = 9`)
	d.ID = 99
	err = ld.Reload(ctx, d)
	assert.True(t, mapper.IsDeleteConcurrency(err), "the row of the edited key is not the instance's row")
	_, ok = ld.Identity().Find(dept, int64(9))
	assert.False(t, ok)
}

func TestConcurrentLoads(t *testing.T) {
	t.Parallel()
	ld, db := newLoader(t)
	ctx := context.Background()
	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type) VALUES (1, 'Ada', 'Person')`)
	person := ld.Registry().MustClass("Person")

	const n = 16
	got := make([]any, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			obj, err := ld.LoadOne(ctx, person, criteria.Eq("ID", 1))
			got[i] = obj
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, obj := range got[1:] {
		assert.Same(t, got[0], obj)
	}
	assert.Equal(t, 1, ld.Identity().Len())
	assert.Equal(t, "Ada", got[0].(*testmodel.Person).Surname)
}

type policyFunc func(context.Context, *query.SelectQuery) error

func (f policyFunc) EvalQuery(ctx context.Context, q *query.SelectQuery) error { return f(ctx, q) }

func TestPolicyCoversKeyReads(t *testing.T) {
	t.Parallel()
	db := testmodel.Open(t)
	ctx := context.Background()
	var classes []string
	hideAda := false
	policy := policyFunc(func(_ context.Context, q *query.SelectQuery) error {
		classes = append(classes, q.Class.Name)
		if hideAda {
			return q.Filter(criteria.Ne("Surname", "Ada"))
		}
		return nil
	})
	ld := loader.New(testmodel.Registry(), identity.New(), db, loader.WithPolicy(policy))
	testmodel.Exec(t, db, `INSERT INTO people (id, surname, type, salary) VALUES (1, 'Ada', 'Employee', '5')`)

	obj, err := ld.LoadOne(ctx, ld.Registry().MustClass("Person"), criteria.Eq("ID", 1))
	require.NoError(t, err)
	require.IsType(t, &testmodel.Employee{}, obj)
	assert.Equal(t, []string{"Person", "Employee"}, classes, "the subclass read is evaluated too")

	hideAda = true
	err = ld.Reload(ctx, obj)
	assert.True(t, mapper.IsDeleteConcurrency(err), "a narrowed reload does not see the row")
	assert.Equal(t, []string{"Person", "Employee", "Employee"}, classes)

	denied := errors.New("denied")
	ld = loader.New(testmodel.Registry(), identity.New(), db, loader.WithPolicy(policyFunc(func(context.Context, *query.SelectQuery) error {
		return denied
	})))
	assert.ErrorIs(t, ld.Reload(ctx, obj), denied)
}

func TestLoadReadFailure(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	drv := sql.OpenDB(dialect.MustGet(dialect.Postgres), db, sql.WithDescriptor("postgres://app:s3cret@db:5432/app"))
	ld := loader.New(testmodel.Registry(), identity.New(), drv)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM "departments" a1 WHERE a1."id" = $1`)).
		WithArgs(1).
		WillReturnError(errors.New("connection reset"))

	_, err = ld.LoadOne(context.Background(), ld.Registry().MustClass("Department"), criteria.Eq("ID", 1))
	require.Error(t, err)
	assert.True(t, mapper.IsReadFailure(err))
	var rf *mapper.ReadFailureError
	require.ErrorAs(t, err, &rf)
	assert.Contains(t, rf.SQL, `"departments"`)
	assert.NotContains(t, err.Error(), "s3cret")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPageSkipsDataQuery(t *testing.T) {
	t.Parallel()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	ld := loader.New(testmodel.Registry(), identity.New(), sql.OpenDB(dialect.MustGet(dialect.SQLite), db))

	mock.ExpectQuery(`SELECT COUNT(*) FROM "departments" a1`).
		WillReturnRows(sqlmock.NewRows([]string{"COUNT(*)"}).AddRow(4))

	objs, err := ld.LoadMany(context.Background(), ld.Registry().MustClass("Department"), nil, query.Limit(2), query.Offset(4))
	require.NoError(t, err)
	assert.Empty(t, objs)
	require.NoError(t, mock.ExpectationsWereMet())
}
