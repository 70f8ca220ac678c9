package uow

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/identity"
	"github.com/syssam/mapper/persist"
)

// State is the lifecycle state of a Committer.
type State int

// Committer states.
const (
	NotStarted State = iota
	Executing
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Executing:
		return "executing"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// ErrCommitterUsed is returned when a committer is used after its commit cycle.
var ErrCommitterUsed = errors.New("uow: committer already used")

// Committer executes a batch of changes in one transaction. It runs one
// commit cycle and cannot be reused.
type Committer struct {
	provider sql.Provider
	identity *identity.Map
	gen      *persist.Generator
	level    sql.IsolationLevel
	policy   Policy
	log      zerolog.Logger

	state    State
	changes  []*Change
	executed map[uuid.UUID]bool
}

// Option configures a Committer.
type Option func(*Committer)

// WithIsolation sets the transaction isolation level.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(c *Committer) {
		c.level = level
	}
}

// Policy decides whether a change may be written. A non-nil error denies
// the change and aborts the commit before any statement runs.
type Policy interface {
	EvalChange(ctx context.Context, c *Change) error
}

// WithPolicy sets the policy every change is evaluated against.
func WithPolicy(p Policy) Option {
	return func(c *Committer) {
		c.policy = p
	}
}

// WithLogger sets the logger for commit events.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Committer) {
		c.log = l
	}
}

// New returns a committer writing through p. Committed instances are
// added to or removed from ids.
func New(p sql.Provider, ids *identity.Map, opts ...Option) *Committer {
	c := &Committer{
		provider: p,
		identity: ids,
		gen:      persist.NewGenerator(p.Dialect()),
		level:    sql.LevelDefault,
		log:      zerolog.Nop(),
		executed: make(map[uuid.UUID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the committer state.
func (c *Committer) State() State { return c.state }

// Begin starts a new batch, dropping changes added so far.
func (c *Committer) Begin() error {
	if c.state != NotStarted {
		return ErrCommitterUsed
	}
	c.changes = nil
	clear(c.executed)
	return nil
}

// Add appends changes to the batch, capturing the in-memory state of
// each instance so a rollback can restore it.
func (c *Committer) Add(changes ...*Change) error {
	if c.state != NotStarted {
		return ErrCommitterUsed
	}
	for _, ch := range changes {
		if ch.Class != nil {
			ch.memento = entity.Save(ch.Class, ch.Obj)
		}
		c.changes = append(c.changes, ch)
	}
	return nil
}

// Len returns the number of changes in the batch.
func (c *Committer) Len() int { return len(c.changes) }

// TryCommit executes every change in order and commits. It reports false
// when the batch was rolled back; the error then tells why. Instance state
// changes only after a successful commit, and is restored after a rollback.
func (c *Committer) TryCommit(ctx context.Context) (bool, error) {
	if c.state != NotStarted {
		return false, ErrCommitterUsed
	}
	c.state = Executing

	// Duplicate saves of one instance take part once.
	var batch []*Change
	seen := make(map[uuid.UUID]bool, len(c.changes))
	for _, ch := range c.changes {
		if id := ch.TransactionID(); !seen[id] {
			seen[id] = true
			batch = append(batch, ch)
		}
	}
	for _, ch := range batch {
		if err := ch.validate(); err != nil {
			c.log.Info().Err(err).Msg("commit rejected by validation")
			return false, c.reject(batch, err)
		}
		if c.policy == nil {
			continue
		}
		if err := c.policy.EvalChange(ctx, ch); err != nil {
			c.log.Info().Err(err).Str("class", ch.Class.Name).Stringer("action", ch.Action()).Msg("commit denied by policy")
			return false, c.reject(batch, err)
		}
	}

	tx, err := c.provider.BeginTx(ctx, c.level)
	if err != nil {
		c.state = RolledBack
		return false, mapper.NewWriteFailureError("BEGIN", c.provider.Descriptor(), err)
	}
	defer func() {
		if err := tx.Close(); err != nil {
			c.log.Warn().Err(err).Msg("releasing transaction connection")
		}
	}()

	for _, ch := range c.changes {
		id := ch.TransactionID()
		if c.executed[id] {
			continue
		}
		c.executed[id] = true
		stmts, err := ch.statements(c.gen)
		if err != nil {
			return false, c.rollback(tx, batch, "", err)
		}
		for _, stmt := range stmts {
			if stmt.Empty() {
				continue
			}
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return false, c.rollback(tx, batch, stmt.String(), err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return false, c.rollback(tx, batch, "COMMIT", err)
	}
	c.state = Committed

	var errs []error
	for _, ch := range batch {
		errs = append(errs, ch.committed(c.identity))
	}
	c.log.Info().Int("changes", len(batch)).Msg("commit succeeded")
	return true, errors.Join(errs...)
}

// reject ends a commit that never opened a transaction, flagging every
// change of the batch as rolled back.
func (c *Committer) reject(batch []*Change, cause error) error {
	err := cause
	for _, ch := range batch {
		if rErr := ch.rolledBack(); rErr != nil {
			err = errors.Join(err, rErr)
		}
	}
	c.state = RolledBack
	return err
}

// rollback aborts tx and restores every change of the batch. A failure
// that is not a mapping error is reported as a WriteFailureError for
// query.
func (c *Committer) rollback(tx *sql.Tx, batch []*Change, query string, cause error) error {
	err := cause
	if !mapper.IsConfigurationError(cause) {
		err = mapper.NewWriteFailureError(query, c.provider.Descriptor(), cause)
	}
	c.log.Warn().
		Err(cause).
		Str("sql", query).
		Stringer("violation", sql.ClassifyViolation(cause)).
		Msg("commit failed, rolling back")
	if rbErr := tx.Rollback(); rbErr != nil {
		err = errors.Join(err, &mapper.RollbackError{Err: rbErr})
	}
	for _, ch := range batch {
		if rErr := ch.rolledBack(); rErr != nil {
			err = errors.Join(err, rErr)
		}
	}
	c.state = RolledBack
	return err
}
