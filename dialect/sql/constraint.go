package sql

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Violation classifies a failed write by the store constraint it broke.
type Violation int

// Constraint violations.
const (
	NoViolation Violation = iota
	UniqueViolation
	ForeignKeyViolation
	CheckViolation
	NotNullViolation
)

func (v Violation) String() string {
	switch v {
	case UniqueViolation:
		return "unique"
	case ForeignKeyViolation:
		return "foreign key"
	case CheckViolation:
		return "check"
	case NotNullViolation:
		return "not null"
	default:
		return "none"
	}
}

// PostgreSQL SQLSTATE codes (class 23).
const (
	pgNotNull    = "23502"
	pgForeignKey = "23503"
	pgUnique     = "23505"
	pgCheck      = "23514"
)

// MySQL error numbers.
const (
	myNotNull         = 1048
	myDuplicateEntry  = 1062
	myForeignKeyOwner = 1451
	myForeignKeyChild = 1452
	myCheck           = 3819
)

// sqlStateError is implemented by drivers exposing SQLSTATE codes.
type sqlStateError interface {
	SQLState() string
}

// ClassifyViolation reports which constraint err violated, if any. Driver
// error types are inspected first; SQLite and unknown drivers fall back to
// message matching.
func ClassifyViolation(err error) Violation {
	if err == nil {
		return NoViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return fromSQLState(string(pqErr.Code))
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return UniqueViolation
		case myForeignKeyOwner, myForeignKeyChild:
			return ForeignKeyViolation
		case myCheck:
			return CheckViolation
		case myNotNull:
			return NotNullViolation
		}
		return NoViolation
	}
	var stateErr sqlStateError
	if errors.As(err, &stateErr) {
		return fromSQLState(stateErr.SQLState())
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "UNIQUE constraint failed", "violates unique constraint", "Error 1062"):
		return UniqueViolation
	case containsAny(msg, "FOREIGN KEY constraint failed", "violates foreign key constraint", "Error 1451", "Error 1452"):
		return ForeignKeyViolation
	case containsAny(msg, "CHECK constraint failed", "violates check constraint", "Error 3819"):
		return CheckViolation
	case containsAny(msg, "NOT NULL constraint failed", "violates not-null constraint", "Error 1048"):
		return NotNullViolation
	}
	return NoViolation
}

// IsConstraintError reports whether err resulted from a constraint violation.
func IsConstraintError(err error) bool {
	return ClassifyViolation(err) != NoViolation
}

func fromSQLState(code string) Violation {
	switch code {
	case pgUnique:
		return UniqueViolation
	case pgForeignKey:
		return ForeignKeyViolation
	case pgCheck:
		return CheckViolation
	case pgNotNull:
		return NotNullViolation
	}
	return NoViolation
}

func containsAny(s string, substrings ...string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
