package sql

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// QueryStats holds statement execution statistics.
type QueryStats struct {
	// TotalQueries is the total number of queries executed.
	TotalQueries atomic.Int64
	// TotalExecs is the total number of exec statements executed.
	TotalExecs atomic.Int64
	// TotalDuration is the total time spent executing statements.
	TotalDuration atomic.Int64 // nanoseconds
	// SlowQueries is the count of statements exceeding the slow threshold.
	SlowQueries atomic.Int64
	// Errors is the count of statement errors.
	Errors atomic.Int64
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	return StatsSnapshot{
		TotalQueries:  s.TotalQueries.Load(),
		TotalExecs:    s.TotalExecs.Load(),
		TotalDuration: time.Duration(s.TotalDuration.Load()),
		SlowQueries:   s.SlowQueries.Load(),
		Errors:        s.Errors.Load(),
	}
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	s.TotalQueries.Store(0)
	s.TotalExecs.Store(0)
	s.TotalDuration.Store(0)
	s.SlowQueries.Store(0)
	s.Errors.Store(0)
}

// StatsSnapshot is a point-in-time snapshot of statement statistics.
type StatsSnapshot struct {
	TotalQueries  int64
	TotalExecs    int64
	TotalDuration time.Duration
	SlowQueries   int64
	Errors        int64
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	total := s.TotalQueries + s.TotalExecs
	if total == 0 {
		return 0
	}
	return s.TotalDuration / time.Duration(total)
}

// String returns a human-readable summary of the statistics.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf(
		"queries=%d execs=%d duration=%s avg=%s slow=%d errors=%d",
		s.TotalQueries, s.TotalExecs, s.TotalDuration, s.AvgDuration(),
		s.SlowQueries, s.Errors,
	)
}

// monitor records statistics and log events for every executed statement.
type monitor struct {
	stats         *QueryStats
	log           zerolog.Logger
	slowThreshold time.Duration
	descriptor    string
}

func (m *monitor) record(_ context.Context, stmt *Statement, start time.Time, err error, isQuery bool) {
	duration := time.Since(start)
	if isQuery {
		m.stats.TotalQueries.Add(1)
	} else {
		m.stats.TotalExecs.Add(1)
	}
	m.stats.TotalDuration.Add(int64(duration))

	if err != nil {
		m.stats.Errors.Add(1)
		m.log.Debug().Err(err).Str("sql", stmt.String()).Str("db", m.descriptor).Msg("statement failed")
		return
	}
	if m.slowThreshold > 0 && duration > m.slowThreshold {
		m.stats.SlowQueries.Add(1)
		m.log.Warn().
			Dur("duration", duration).
			Str("sql", stmt.String()).
			Int("params", len(stmt.Params())).
			Msg("slow statement detected")
		return
	}
	m.log.Debug().
		Dur("duration", duration).
		Str("sql", stmt.String()).
		Int("params", len(stmt.Params())).
		Msg("statement executed")
}
