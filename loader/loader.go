package loader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cast"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/identity"
	"github.com/syssam/mapper/query"
	"github.com/syssam/mapper/schema"
)

// Loader executes class queries and materializes their rows as instances
// registered in an identity map.
type Loader struct {
	compiler *query.Compiler
	provider sql.Provider
	identity *identity.Map
	policy   Policy
	log      zerolog.Logger
}

// Policy decides whether a query may run, and may narrow it. A non-nil
// error denies the query and is returned to the caller.
type Policy interface {
	EvalQuery(ctx context.Context, q *query.SelectQuery) error
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger for load events.
func WithLogger(l zerolog.Logger) Option {
	return func(ld *Loader) {
		ld.log = l
	}
}

// WithPolicy sets the policy every query is evaluated against.
func WithPolicy(p Policy) Option {
	return func(ld *Loader) {
		ld.policy = p
	}
}

// New returns a loader reading from p. Statements are compiled for the
// provider's dialect.
func New(reg *schema.Registry, ids *identity.Map, p sql.Provider, opts ...Option) *Loader {
	l := &Loader{
		compiler: query.NewCompiler(reg, p.Dialect()),
		provider: p,
		identity: ids,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Compiler returns the query compiler of the loader.
func (l *Loader) Compiler() *query.Compiler { return l.compiler }

// Registry returns the class registry.
func (l *Loader) Registry() *schema.Registry { return l.compiler.Registry() }

// Identity returns the identity map instances are registered in.
func (l *Loader) Identity() *identity.Map { return l.identity }

// record is one row keyed by property name.
type record map[string]any

// Load runs q and returns one instance per row, in row order.
func (l *Loader) Load(ctx context.Context, q *query.SelectQuery) ([]any, error) {
	if err := l.authorize(ctx, q); err != nil {
		return nil, err
	}
	return l.load(ctx, q)
}

func (l *Loader) authorize(ctx context.Context, q *query.SelectQuery) error {
	if l.policy == nil {
		return nil
	}
	if err := l.policy.EvalQuery(ctx, q); err != nil {
		l.log.Debug().Err(err).Str("class", q.Class.Name).Msg("query denied")
		return err
	}
	return nil
}

func (l *Loader) load(ctx context.Context, q *query.SelectQuery) ([]any, error) {
	recs, err := l.fetch(ctx, q, 0)
	if err != nil {
		return nil, err
	}
	out := make([]any, 0, len(recs))
	for _, rec := range recs {
		obj, err := l.materialize(ctx, q.Class, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	l.log.Debug().Str("class", q.Class.Name).Int("rows", len(out)).Msg("instances loaded")
	return out, nil
}

// LoadMany returns the instances of def matching where. A paged query
// counts the matching rows first and returns nothing without running
// the data query when the offset is past the last row.
func (l *Loader) LoadMany(ctx context.Context, def *schema.ClassDef, where *criteria.Criteria, opts ...query.Option) ([]any, error) {
	q, err := l.compiler.NewSelectQuery(def, where, opts...)
	if err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, q); err != nil {
		return nil, err
	}
	if q.Paged() {
		total, err := l.count(ctx, q)
		if err != nil {
			return nil, err
		}
		page, skip := q.Page(total)
		if skip {
			l.log.Debug().Str("class", def.Name).Int("total", total).Int("offset", q.Offset).Msg("page past the last row")
			return nil, nil
		}
		q = page
	}
	return l.load(ctx, q)
}

// LoadOne returns the single instance of def matching where, or nil when
// no row matches. More than one matching row is an AmbiguousResultError.
func (l *Loader) LoadOne(ctx context.Context, def *schema.ClassDef, where *criteria.Criteria, opts ...query.Option) (any, error) {
	q, err := l.compiler.NewSelectQuery(def, where, opts...)
	if err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, q); err != nil {
		return nil, err
	}
	recs, err := l.fetch(ctx, q, 2)
	if err != nil {
		return nil, err
	}
	switch len(recs) {
	case 0:
		return nil, nil
	case 1:
		return l.materialize(ctx, def, recs[0])
	default:
		return nil, mapper.NewAmbiguousResultError(def.Name, where.String())
	}
}

// Count returns the number of rows of def matching where.
func (l *Loader) Count(ctx context.Context, def *schema.ClassDef, where *criteria.Criteria) (int, error) {
	q, err := l.compiler.NewSelectQuery(def, where)
	if err != nil {
		return 0, err
	}
	if err := l.authorize(ctx, q); err != nil {
		return 0, err
	}
	return l.count(ctx, q)
}

// Reload reads the row of obj again and overwrites obj in place, edit in
// progress or not. The row is found by the key obj was last persisted
// with, so a locally edited key still reloads its own row. A row that no
// longer exists is a DeleteConcurrencyError and obj leaves the identity map.
func (l *Loader) Reload(ctx context.Context, obj any) error {
	def, err := l.Registry().ClassOf(obj)
	if err != nil {
		return err
	}
	key, ok := entity.PersistedKey(def, obj)
	if !ok {
		if key, err = def.KeyValues(obj); err != nil {
			return err
		}
	}
	k, err := identity.KeyOf(def, key...)
	if err != nil {
		return err
	}
	recs, err := l.fetchByKey(ctx, def, key)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		l.identity.Evict(k, obj)
		return mapper.NewDeleteConcurrencyError(def.Name, fmt.Sprint(key...))
	}
	_, err = l.identity.Reconcile(k, func(any, bool) (any, bool, error) {
		if err := populate(def, obj, recs[0]); err != nil {
			return nil, false, err
		}
		entity.MarkPersisted(def, obj)
		return obj, true, nil
	})
	return err
}

func (l *Loader) count(ctx context.Context, q *query.SelectQuery) (int, error) {
	stmt, err := l.compiler.CompileCount(q)
	if err != nil {
		return 0, err
	}
	rows, err := l.provider.Query(ctx, stmt)
	if err != nil {
		return 0, l.readError(stmt, err)
	}
	defer rows.Close()
	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, l.readError(stmt, err)
		}
	}
	if err := rows.Err(); err != nil {
		return 0, l.readError(stmt, err)
	}
	return int(n), nil
}

// fetch runs q and reads up to limit rows, all of them when limit is 0. Rows
// are closed before any instance is built, so nested loads never hold two
// readers at once.
func (l *Loader) fetch(ctx context.Context, q *query.SelectQuery, limit int) ([]record, error) {
	stmt, err := l.compiler.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := l.provider.Query(ctx, stmt)
	if err != nil {
		return nil, l.readError(stmt, err)
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return nil, l.readError(stmt, err)
	}
	// Column index to property; columns of related classes stay unmapped.
	props := make([]string, len(columns))
	for i, c := range columns {
		if _, ok := q.Class.Property(c); ok {
			props[i] = c
		}
	}
	var recs []record
	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, l.readError(stmt, err)
		}
		rec := make(record, len(columns))
		for i, p := range props {
			if p != "" {
				rec[p] = values[i]
			}
		}
		recs = append(recs, rec)
		if limit > 0 && len(recs) == limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, l.readError(stmt, err)
	}
	return recs, nil
}

// fetchByKey reads the row of def with the given key. The query goes
// through the policy like any other, so a narrowing rule can hide the row.
func (l *Loader) fetchByKey(ctx context.Context, def *schema.ClassDef, key []any) ([]record, error) {
	cs := make([]*criteria.Criteria, len(def.Key()))
	for i, p := range def.Key() {
		cs[i] = criteria.Eq(p.Name, key[i])
	}
	q, err := l.compiler.NewSelectQuery(def, criteria.And(cs...))
	if err != nil {
		return nil, err
	}
	if err := l.authorize(ctx, q); err != nil {
		return nil, err
	}
	return l.fetch(ctx, q, 2)
}

func (l *Loader) readError(stmt *sql.Statement, err error) error {
	return mapper.NewReadFailureError(stmt.String(), l.provider.Descriptor(), err)
}

// materialize builds the instance of one row and reconciles it with the
// identity map.
func (l *Loader) materialize(ctx context.Context, def *schema.ClassDef, rec record) (any, error) {
	def, rec, err := l.resolveSubtype(ctx, def, rec)
	if err != nil {
		return nil, err
	}
	candidate, err := def.New()
	if err != nil {
		return nil, err
	}
	if err := populate(def, candidate, rec); err != nil {
		return nil, err
	}
	return l.reconcile(def, candidate, rec)
}

// resolveSubtype follows the discriminator of rec down the hierarchy. When
// it names a subclass of def, the row is read again as that subclass so
// the subclass columns are loaded.
func (l *Loader) resolveSubtype(ctx context.Context, def *schema.ClassDef, rec record) (*schema.ClassDef, record, error) {
	d, ok := def.DiscriminatorProperty()
	if !ok {
		return def, rec, nil
	}
	visited := map[*schema.ClassDef]bool{def: true}
	for {
		raw := rec[d.Name]
		if raw == nil {
			return def, rec, nil
		}
		if b, ok := raw.([]byte); ok {
			raw = string(b)
		}
		id, err := cast.ToStringE(raw)
		if err != nil {
			return nil, nil, mapper.NewConfigurationError(def.Name, "discriminator %s: %v", d.Name, err)
		}
		sub, ok := l.Registry().ByClassID(def, id)
		if !ok || sub == def || !sub.IsSubclassOf(def) {
			return def, rec, nil
		}
		if visited[sub] {
			return nil, nil, mapper.NewConfigurationError(def.Name, "discriminator %q cycles back to %s", id, sub.Name)
		}
		visited[sub] = true
		key := make([]any, len(def.Key()))
		for i, p := range def.Key() {
			key[i] = rec[p.Name]
		}
		l.log.Debug().Str("class", def.Name).Str("subclass", sub.Name).Msg("loading row as subclass")
		recs, err := l.fetchByKey(ctx, sub, key)
		if err != nil {
			return nil, nil, err
		}
		if len(recs) == 0 {
			return nil, nil, mapper.NewDeleteConcurrencyError(sub.Name, fmt.Sprint(key...))
		}
		def, rec = sub, recs[0]
	}
}

// reconcile returns the canonical instance for candidate. It runs under
// the identity map's lock, so concurrent loads of one key never populate
// the stored instance at the same time.
func (l *Loader) reconcile(def *schema.ClassDef, candidate any, rec record) (any, error) {
	key, err := identity.KeyOfInstance(def, candidate)
	if err != nil {
		return nil, err
	}
	return l.identity.Reconcile(key, func(stored any, found bool) (any, bool, error) {
		if !found {
			entity.MarkPersisted(def, candidate)
			return candidate, true, nil
		}
		storedDef, err := l.Registry().ClassOf(stored)
		if err != nil || storedDef != def {
			// The key was registered under another class of the hierarchy,
			// typically a base class instance loaded before its subclass.
			l.log.Debug().Str("class", def.Name).Stringer("key", key).Msg("evicting instance of another class")
			entity.MarkPersisted(def, candidate)
			return candidate, true, nil
		}
		if s := entity.StateOf(stored); s != nil {
			switch {
			case s.IsNew():
				entity.MarkPersisted(def, candidate)
				return candidate, false, nil
			case s.IsDeleted():
				// A deleted instance is never revived by a row reusing its key.
				l.log.Debug().Str("class", def.Name).Stringer("key", key).Msg("replacing deleted instance")
				entity.MarkPersisted(def, candidate)
				return candidate, true, nil
			case s.IsEditing():
				return stored, false, nil
			}
		}
		if err := populate(def, stored, rec); err != nil {
			return nil, false, err
		}
		entity.MarkPersisted(def, stored)
		return stored, false, nil
	})
}

func populate(def *schema.ClassDef, obj any, rec record) error {
	for name, v := range rec {
		if _, ok := def.Property(name); !ok {
			continue
		}
		if err := def.Set(obj, name, v); err != nil {
			return err
		}
	}
	return nil
}
