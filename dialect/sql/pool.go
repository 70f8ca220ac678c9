package sql

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

const defaultPoolSize = 4

// Pool is a small reusable pool of read connections. Acquire hands out the
// first idle connection, or opens a new one when none is idle. Release keeps
// up to size idle connections and closes the rest.
type Pool struct {
	db     *sql.DB
	size   int
	mu     sync.Mutex
	idle   []*sql.Conn
	opened int
	closed bool
}

func newPool(db *sql.DB, size int) *Pool {
	return &Pool{db: db, size: size}
}

// Acquire returns an idle connection or opens a new one.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, errors.New("dialect/sql: pool is closed")
	}
	if len(p.idle) > 0 {
		conn := p.idle[0]
		p.idle = p.idle[1:]
		p.mu.Unlock()
		return conn, nil
	}
	p.mu.Unlock()

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.opened++
	p.mu.Unlock()
	return conn, nil
}

// Release returns conn to the pool.
func (p *Pool) Release(conn *sql.Conn) {
	p.mu.Lock()
	if !p.closed && len(p.idle) < p.size {
		p.idle = append(p.idle, conn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	_ = conn.Close()
}

// Idle returns the number of idle connections.
func (p *Pool) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Opened returns how many connections the pool has opened in total.
func (p *Pool) Opened() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opened
}

// Close closes every idle connection. Connections still in use are closed
// when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.closed = true
	p.mu.Unlock()

	var errs []error
	for _, conn := range idle {
		errs = append(errs, conn.Close())
	}
	return errors.Join(errs...)
}
