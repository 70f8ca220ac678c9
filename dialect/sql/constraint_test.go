package sql

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type stateErr string

func (e stateErr) Error() string    { return "state " + string(e) }
func (e stateErr) SQLState() string { return string(e) }

func TestClassifyViolation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want Violation
	}{
		{"nil", nil, NoViolation},
		{"plain", errors.New("connection reset"), NoViolation},
		{"pq_unique", &pq.Error{Code: "23505"}, UniqueViolation},
		{"pq_fk_wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23503"}), ForeignKeyViolation},
		{"pq_other", &pq.Error{Code: "42P01"}, NoViolation},
		{"mysql_duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, UniqueViolation},
		{"mysql_fk_child", &mysql.MySQLError{Number: 1452}, ForeignKeyViolation},
		{"mysql_check", &mysql.MySQLError{Number: 3819}, CheckViolation},
		{"mysql_not_null", &mysql.MySQLError{Number: 1048}, NotNullViolation},
		{"sqlstate", stateErr("23514"), CheckViolation},
		{"sqlite_unique", errors.New("constraint failed: UNIQUE constraint failed: people.id (1555)"), UniqueViolation},
		{"sqlite_fk", errors.New("FOREIGN KEY constraint failed"), ForeignKeyViolation},
		{"sqlite_not_null", errors.New("NOT NULL constraint failed: people.surname"), NotNullViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyViolation(tt.err))
			assert.Equal(t, tt.want != NoViolation, IsConstraintError(tt.err))
		})
	}
}

func TestViolationString(t *testing.T) {
	assert.Equal(t, "unique", UniqueViolation.String())
	assert.Equal(t, "foreign key", ForeignKeyViolation.String())
	assert.Equal(t, "none", NoViolation.String())
}
