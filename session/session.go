package session

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/dialect"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/identity"
	"github.com/syssam/mapper/loader"
	"github.com/syssam/mapper/query"
	"github.com/syssam/mapper/schema"
	"github.com/syssam/mapper/uow"
)

// Session is the entry point for loading and committing mapped instances.
// It owns the identity map shared by every load and commit issued through
// it. A Session is safe for concurrent use; the instances it returns are not.
type Session struct {
	registry *schema.Registry
	provider sql.Provider
	identity *identity.Map
	loader   *loader.Loader
	policy   Policy
	log      zerolog.Logger
	level    sql.IsolationLevel
}

// Policy gates both the queries and the commits of a session.
type Policy interface {
	loader.Policy
	uow.Policy
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger passed to the loader and to every committer.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithIsolation sets the isolation level of commit transactions.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(s *Session) {
		s.level = level
	}
}

// WithPolicy evaluates every query and every committed change against p.
func WithPolicy(p Policy) Option {
	return func(s *Session) {
		s.policy = p
	}
}

// WithIdentityMap makes the session share ids instead of creating its own.
func WithIdentityMap(ids *identity.Map) Option {
	return func(s *Session) {
		s.identity = ids
	}
}

// New returns a session over the classes of reg, reading and writing
// through p.
func New(reg *schema.Registry, p sql.Provider, opts ...Option) *Session {
	s := &Session{
		registry: reg,
		provider: p,
		log:      zerolog.Nop(),
		level:    sql.LevelDefault,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identity == nil {
		s.identity = identity.New()
	}
	lopts := []loader.Option{loader.WithLogger(s.log)}
	if s.policy != nil {
		lopts = append(lopts, loader.WithPolicy(s.policy))
	}
	s.loader = loader.New(reg, s.identity, p, lopts...)
	return s
}

// Registry returns the class registry.
func (s *Session) Registry() *schema.Registry { return s.registry }

// Identity returns the identity map of the session.
func (s *Session) Identity() *identity.Map { return s.identity }

// Provider returns the connection provider.
func (s *Session) Provider() sql.Provider { return s.provider }

// Dialect returns the dialect of the provider.
func (s *Session) Dialect() dialect.Dialect { return s.provider.Dialect() }

// Loader returns the loader backing the query methods.
func (s *Session) Loader() *loader.Loader { return s.loader }

// Class returns the named class definition.
func (s *Session) Class(name string) (*schema.ClassDef, error) {
	return s.registry.Class(name)
}

// LoadOne returns the single instance of def matching where, or nil.
func (s *Session) LoadOne(ctx context.Context, def *schema.ClassDef, where *criteria.Criteria, opts ...query.Option) (any, error) {
	return s.loader.LoadOne(ctx, def, where, opts...)
}

// LoadMany returns the instances of def matching where.
func (s *Session) LoadMany(ctx context.Context, def *schema.ClassDef, where *criteria.Criteria, opts ...query.Option) ([]any, error) {
	return s.loader.LoadMany(ctx, def, where, opts...)
}

// Count returns the number of rows of def matching where.
func (s *Session) Count(ctx context.Context, def *schema.ClassDef, where *criteria.Criteria) (int, error) {
	return s.loader.Count(ctx, def, where)
}

// Refresher is a result set that can be read again.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Refresh reloads r, typically a loader.Collection made by Collection.
func (s *Session) Refresh(ctx context.Context, r Refresher) error {
	return r.Refresh(ctx)
}

// Reload reads the row of obj again. A row deleted by someone else is a
// DeleteConcurrencyError.
func (s *Session) Reload(ctx context.Context, obj any) error {
	return s.loader.Reload(ctx, obj)
}

// NewCommitter returns a committer sharing the session identity map.
// Options given here override the session defaults.
func (s *Session) NewCommitter(opts ...uow.Option) *uow.Committer {
	base := []uow.Option{uow.WithLogger(s.log), uow.WithIsolation(s.level)}
	if s.policy != nil {
		base = append(base, uow.WithPolicy(s.policy))
	}
	return uow.New(s.provider, s.identity, append(base, opts...)...)
}

// Commit adds changes to a new committer and commits them.
func (s *Session) Commit(ctx context.Context, changes ...*uow.Change) (bool, error) {
	c := s.NewCommitter()
	if err := c.Add(changes...); err != nil {
		return false, err
	}
	return c.TryCommit(ctx)
}

// Collection returns an unloaded collection of def instances matching
// where. Call Refresh to load it.
func Collection[T comparable](s *Session, def *schema.ClassDef, where *criteria.Criteria, opts ...query.Option) *loader.Collection[T] {
	return loader.NewCollection[T](s.loader, def, where, opts...)
}

// One loads the single instance of the class mapped to T, a mapped struct
// type or a pointer to one. The zero T is returned when no row matches. A
// row resolving to a subclass is a ConfigurationError, since the subclass
// instance is not a T; use LoadOne for hierarchies.
func One[T any](ctx context.Context, s *Session, where *criteria.Criteria, opts ...query.Option) (T, error) {
	var zero T
	def, err := schema.ClassFor[T](s.registry)
	if err != nil {
		return zero, err
	}
	obj, err := s.loader.LoadOne(ctx, def, where, opts...)
	if err != nil || obj == nil {
		return zero, err
	}
	return as[T](def, obj)
}

// Many loads the instances of the class mapped to T.
func Many[T any](ctx context.Context, s *Session, where *criteria.Criteria, opts ...query.Option) ([]T, error) {
	def, err := schema.ClassFor[T](s.registry)
	if err != nil {
		return nil, err
	}
	objs, err := s.loader.LoadMany(ctx, def, where, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(objs))
	for _, obj := range objs {
		t, err := as[T](def, obj)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func as[T any](def *schema.ClassDef, obj any) (T, error) {
	t, ok := obj.(T)
	if !ok {
		var zero T
		return zero, mapper.NewConfigurationError(def.Name, "loaded %T, want %T", obj, zero)
	}
	return t, nil
}
