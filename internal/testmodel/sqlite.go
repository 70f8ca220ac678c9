package testmodel

import (
	"context"
	stdsql "database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/syssam/mapper/dialect"
	"github.com/syssam/mapper/dialect/sql"
)

// Open returns a provider over a fresh sqlite file holding the DDL tables.
// The database is closed when the test ends.
func Open(t testing.TB, opts ...sql.Option) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapper.db")
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := stdsql.Open("sqlite", dsn)
	require.NoError(t, err)
	for _, stmt := range strings.Split(DDL, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			_, err := db.ExecContext(context.Background(), stmt)
			require.NoError(t, err)
		}
	}
	drv := sql.OpenDB(dialect.MustGet(dialect.SQLite), db, append([]sql.Option{sql.WithDescriptor(dsn)}, opts...)...)
	t.Cleanup(func() { _ = drv.Close() })
	return drv
}

// Exec runs raw SQL against db, failing the test on error.
func Exec(t testing.TB, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.DB().ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}
