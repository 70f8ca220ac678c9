package sql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/syssam/mapper/dialect"
)

// Provider is the connection provider consumed by the loader and the
// committer. *DB implements it.
type Provider interface {
	// Dialect returns the vendor strategy points for statements sent to this provider.
	Dialect() dialect.Dialect
	// Descriptor returns the connection descriptor with credentials redacted.
	Descriptor() string
	// Query executes stmt on a pooled connection. The connection returns to
	// the pool when the returned Rows are closed.
	Query(ctx context.Context, stmt *Statement) (*Rows, error)
	// BeginTx opens a dedicated connection and starts a transaction on it.
	BeginTx(ctx context.Context, level IsolationLevel) (*Tx, error)
}

// DB is a Provider over a database/sql handle.
type DB struct {
	db      *sql.DB
	dialect dialect.Dialect
	pool    *Pool
	mon     *monitor
	timeout time.Duration
}

// Option configures a DB.
type Option func(*DB)

// WithDescriptor sets the connection descriptor reported in logs and
// errors. The value is redacted before it is stored.
func WithDescriptor(dsn string) Option {
	return func(d *DB) {
		d.mon.descriptor = dialect.Redact(d.dialect.Name, dsn)
	}
}

// WithPoolSize sets how many idle connections the read pool keeps.
func WithPoolSize(n int) Option {
	return func(d *DB) {
		d.pool.size = n
	}
}

// WithCommandTimeout bounds every statement execution. Zero disables the timeout.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(d *DB) {
		d.timeout = timeout
	}
}

// WithLogger sets the logger used for statement and slow query events.
func WithLogger(l zerolog.Logger) Option {
	return func(d *DB) {
		d.mon.log = l
	}
}

// WithSlowThreshold sets the duration above which a statement is logged as slow.
func WithSlowThreshold(threshold time.Duration) Option {
	return func(d *DB) {
		d.mon.slowThreshold = threshold
	}
}

// Open opens a database for the named dialect. The dsn is kept only in
// redacted form.
func Open(name, dsn string, opts ...Option) (*DB, error) {
	d, err := dialect.Get(name)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.DriverName, dsn)
	if err != nil {
		return nil, err
	}
	return OpenDB(d, db, append([]Option{WithDescriptor(dsn)}, opts...)...), nil
}

// OpenDB wraps an existing database/sql handle.
func OpenDB(d dialect.Dialect, db *sql.DB, opts ...Option) *DB {
	drv := &DB{
		db:      db,
		dialect: d,
		pool:    newPool(db, defaultPoolSize),
		mon: &monitor{
			stats:         &QueryStats{},
			log:           zerolog.Nop(),
			slowThreshold: 100 * time.Millisecond,
			descriptor:    d.Name,
		},
	}
	for _, opt := range opts {
		opt(drv)
	}
	return drv
}

// DB returns the underlying *sql.DB instance.
func (d *DB) DB() *sql.DB { return d.db }

// Dialect implements Provider.
func (d *DB) Dialect() dialect.Dialect { return d.dialect }

// Descriptor implements Provider.
func (d *DB) Descriptor() string { return d.mon.descriptor }

// Stats returns the statement statistics collected so far.
func (d *DB) Stats() *QueryStats { return d.mon.stats }

// Pool returns the read connection pool.
func (d *DB) Pool() *Pool { return d.pool }

// Query implements Provider.
func (d *DB) Query(ctx context.Context, stmt *Statement) (*Rows, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: acquire connection: %w", err)
	}
	c := d.conn(conn, func() error {
		d.pool.Release(conn)
		return nil
	})
	rows, err := c.Query(ctx, stmt)
	if err != nil {
		d.pool.Release(conn)
		return nil, err
	}
	return rows, nil
}

// Exec executes stmt outside of any transaction on a pooled connection.
func (d *DB) Exec(ctx context.Context, stmt *Statement) (Result, error) {
	conn, err := d.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: acquire connection: %w", err)
	}
	defer d.pool.Release(conn)
	return d.conn(conn, nil).Exec(ctx, stmt)
}

// BeginTx implements Provider.
func (d *DB) BeginTx(ctx context.Context, level IsolationLevel) (*Tx, error) {
	conn, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: open connection: %w", err)
	}
	tx, err := conn.BeginTx(ctx, &TxOptions{Isolation: level})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("dialect/sql: begin: %w", err), conn.Close())
	}
	d.mon.log.Debug().Str("isolation", level.String()).Msg("transaction started")
	return &Tx{
		Conn:    Conn{ExecQuerier: tx, timeout: d.timeout, mon: d.mon},
		tx:      tx,
		release: conn.Close,
	}, nil
}

// Close closes the pooled connections and the underlying database.
func (d *DB) Close() error {
	return errors.Join(d.pool.Close(), d.db.Close())
}

func (d *DB) conn(ex ExecQuerier, closer func() error) Conn {
	return Conn{ExecQuerier: ex, timeout: d.timeout, mon: d.mon, closer: closer}
}

// Tx is a transaction bound to a single dedicated connection.
type Tx struct {
	Conn
	tx      *sql.Tx
	release func() error
	once    sync.Once
	done    bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("dialect/sql: commit: %w", err)
	}
	t.mon.log.Debug().Msg("transaction committed")
	return nil
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("dialect/sql: rollback: %w", err)
	}
	t.mon.log.Debug().Msg("transaction rolled back")
	return nil
}

// Close releases the connection, rolling back first if the transaction
// was never finished. It is safe to call more than once.
func (t *Tx) Close() error {
	var err error
	t.once.Do(func() {
		if !t.done {
			err = t.Rollback()
		}
		err = errors.Join(err, t.release())
	})
	return err
}

// ExecQuerier wraps the standard Exec and Query methods.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Conn executes statements over an ExecQuerier, applying the command
// timeout and recording statistics.
type Conn struct {
	ExecQuerier
	timeout time.Duration
	mon     *monitor
	closer  func() error // Called when rows returned by Query are closed
}

// Exec executes a statement that returns no rows.
func (c Conn) Exec(ctx context.Context, stmt *Statement) (Result, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	start := time.Now()
	res, err := c.ExecContext(ctx, stmt.String(), stmt.Args()...)
	c.mon.record(ctx, stmt, start, err, false)
	if err != nil {
		return nil, fmt.Errorf("dialect/sql: exec: %w", err)
	}
	return res, nil
}

// Query executes a statement that returns rows. The command timeout stays
// in effect until the rows are closed.
func (c Conn) Query(ctx context.Context, stmt *Statement) (*Rows, error) {
	ctx, cancel := c.withTimeout(ctx)
	start := time.Now()
	rows, err := c.QueryContext(ctx, stmt.String(), stmt.Args()...)
	c.mon.record(ctx, stmt, start, err, true)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("dialect/sql: query: %w", err)
	}
	closer := func() error {
		cancel()
		if c.closer != nil {
			return c.closer()
		}
		return nil
	}
	return &Rows{&rowsWithCloser{ColumnScanner: rows, closer: closer}}, nil
}

func (c Conn) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

var _ Provider = (*DB)(nil)

type (
	// Rows wraps the sql.Rows to avoid locks copy.
	Rows struct{ ColumnScanner }
	// Result is an alias to sql.Result.
	Result = sql.Result
	// TxOptions holds the transaction options to be used in DB.BeginTx.
	TxOptions = sql.TxOptions
	// IsolationLevel is an alias to sql.IsolationLevel.
	IsolationLevel = sql.IsolationLevel
)

// Isolation levels re-exported for callers that do not import database/sql.
const (
	LevelDefault        = sql.LevelDefault
	LevelReadCommitted  = sql.LevelReadCommitted
	LevelRepeatableRead = sql.LevelRepeatableRead
	LevelSerializable   = sql.LevelSerializable
)

// ColumnScanner is the interface that wraps the standard
// sql.Rows methods used for scanning database rows.
type ColumnScanner interface {
	Close() error
	ColumnTypes() ([]*sql.ColumnType, error)
	Columns() ([]string, error)
	Err() error
	Next() bool
	NextResultSet() bool
	Scan(dest ...any) error
}

// rowsWithCloser wraps the ColumnScanner interface with a custom Close hook.
type rowsWithCloser struct {
	ColumnScanner
	closer func() error
	once   sync.Once
}

// Close closes the underlying ColumnScanner and calls the custom closer once.
func (r *rowsWithCloser) Close() error {
	err := r.ColumnScanner.Close()
	r.once.Do(func() {
		err = errors.Join(err, r.closer())
	})
	return err
}
