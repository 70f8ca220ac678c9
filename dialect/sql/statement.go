package sql

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/syssam/mapper/dialect"
)

// Param is one bound statement parameter.
type Param struct {
	Name  string // Bind name for named dialects, empty otherwise
	Value any
}

// Statement is a parametrized SQL statement under construction. It is
// created per logical operation and discarded after execution.
//
// Placeholders are generated by a per-statement counter, so the n-th call
// to AddParam always yields the n-th placeholder of the dialect.
type Statement struct {
	dialect dialect.Dialect
	text    strings.Builder
	params  []Param
}

// NewStatement returns an empty statement for the given dialect.
func NewStatement(d dialect.Dialect) *Statement {
	return &Statement{dialect: d}
}

// NewStatementf returns a statement with formatted initial text and no parameters.
func NewStatementf(d dialect.Dialect, format string, args ...any) *Statement {
	s := NewStatement(d)
	fmt.Fprintf(&s.text, format, args...)
	return s
}

// Dialect returns the statement dialect.
func (s *Statement) Dialect() dialect.Dialect { return s.dialect }

// WriteString appends raw SQL text.
func (s *Statement) WriteString(str string) *Statement {
	s.text.WriteString(str)
	return s
}

// Writef appends formatted SQL text. Never format values into the text;
// use AddParam.
func (s *Statement) Writef(format string, args ...any) *Statement {
	fmt.Fprintf(&s.text, format, args...)
	return s
}

// Quote delimits an identifier using the statement dialect.
func (s *Statement) Quote(ident string) string {
	return s.dialect.Quote(ident)
}

// AddParam records v and returns the placeholder that refers to it.
// The value is stored unmodified.
func (s *Statement) AddParam(v any) string {
	n := len(s.params) + 1
	s.params = append(s.params, Param{Name: s.dialect.ParamName(n), Value: v})
	return s.dialect.Placeholder(n)
}

// WriteParam records v and appends its placeholder to the text.
func (s *Statement) WriteParam(v any) *Statement {
	s.text.WriteString(s.AddParam(v))
	return s
}

// Wrap surrounds the current text with prefix and suffix. Parameters are
// untouched, so wrapping must not introduce new placeholders.
func (s *Statement) Wrap(prefix, suffix string) *Statement {
	inner := s.text.String()
	s.text.Reset()
	s.text.WriteString(prefix)
	s.text.WriteString(inner)
	s.text.WriteString(suffix)
	return s
}

// String returns the SQL text with placeholders, for execution and logs.
func (s *Statement) String() string { return s.text.String() }

// Empty reports whether no SQL has been written.
func (s *Statement) Empty() bool { return s == nil || s.text.Len() == 0 }

// Params returns the ordered parameters.
func (s *Statement) Params() []Param { return s.params }

// Values returns the ordered parameter values.
func (s *Statement) Values() []any {
	vs := make([]any, len(s.params))
	for i, p := range s.params {
		vs[i] = p.Value
	}
	return vs
}

// Args returns the driver arguments: sql.Named values for named dialects,
// plain values otherwise.
func (s *Statement) Args() []any {
	args := make([]any, len(s.params))
	for i, p := range s.params {
		if p.Name != "" {
			args[i] = sql.Named(p.Name, p.Value)
		} else {
			args[i] = p.Value
		}
	}
	return args
}

// Equal reports whether two statements have the same dialect, text and parameters.
func (s *Statement) Equal(o *Statement) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.dialect.Name == o.dialect.Name &&
		s.String() == o.String() &&
		reflect.DeepEqual(s.params, o.params)
}
