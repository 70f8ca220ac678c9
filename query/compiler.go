package query

import (
	"strings"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/dialect"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/schema"
)

// Compiler turns select queries into statements of one dialect.
type Compiler struct {
	registry *schema.Registry
	dialect  dialect.Dialect
}

// NewCompiler returns a compiler for the classes of reg.
func NewCompiler(reg *schema.Registry, d dialect.Dialect) *Compiler {
	return &Compiler{registry: reg, dialect: d}
}

// Dialect returns the compiler dialect.
func (c *Compiler) Dialect() dialect.Dialect { return c.dialect }

// Registry returns the class registry.
func (c *Compiler) Registry() *schema.Registry { return c.registry }

// NewSelectQuery builds a query over def filtered by where. It resolves
// every referenced property, joins the sources they need and assigns
// aliases once.
func (c *Compiler) NewSelectQuery(def *schema.ClassDef, where *criteria.Criteria, opts ...Option) (*SelectQuery, error) {
	q := &SelectQuery{
		Class:    def,
		Criteria: where,
		Aliases:  NewAliases(),
		Source:   NewSource(def.Name, def.Table),
		registry: c.registry,
		resolved: make(map[string]*Field),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return nil, mapper.NewConfigurationError(def.Name, "negative limit or offset")
	}
	joinAncestors(def, q.Source)

	if err := q.selectFields(); err != nil {
		return nil, err
	}
	q.DiscriminatorCriteria = discriminatorFilter(def)
	if q.Paged() && len(q.Order) == 0 {
		for _, k := range def.Key() {
			q.Order = append(q.Order, Asc(k.Name))
		}
	}
	for _, p := range q.where().Properties() {
		if _, err := q.Resolve(p); err != nil {
			return nil, err
		}
	}
	for _, o := range q.Order {
		if _, err := q.Resolve(o.Property); err != nil {
			return nil, err
		}
	}
	q.Aliases.Assign(q.Source)
	for _, f := range q.Fields {
		q.Aliases.Assign(f.Source)
	}
	return q, nil
}

func (q *SelectQuery) selectFields() error {
	names := q.fieldNames
	if len(names) == 0 {
		for _, p := range q.Class.AllProperties() {
			names = append(names, p.Name)
		}
	}
	var all []string
	for _, k := range q.Class.Key() {
		all = append(all, k.Name)
	}
	all = append(all, names...)
	if d, ok := q.Class.DiscriminatorProperty(); ok {
		all = append(all, d.Name)
	}
	seen := make(map[string]bool, len(all))
	for _, name := range all {
		if seen[name] {
			continue
		}
		seen[name] = true
		f, err := q.Resolve(name)
		if err != nil {
			return err
		}
		q.Fields = append(q.Fields, f)
	}
	return nil
}

func (q *SelectQuery) where() *criteria.Criteria {
	return criteria.And(q.Criteria, q.DiscriminatorCriteria)
}

// Compile returns the select statement of q.
//
// Without an offset only a limit clause is added. With an offset the
// statement is nested twice: the inner select takes the first
// offset+limit rows in the requested order, the middle select keeps the
// last limit of them by reversing the order, and the outer select
// restores the requested order.
func (c *Compiler) Compile(q *SelectQuery) (*sql.Statement, error) {
	stmt := sql.NewStatement(c.dialect)
	where, err := Translate(q.where(), q.Resolve, q.Aliases, stmt)
	if err != nil {
		return nil, err
	}
	order := q.order()
	window := q.Limit
	if q.Offset > 0 {
		if q.Limit == 0 {
			return nil, mapper.NewConfigurationError(q.Class.Name, "offset %d without a limit; page the query with its row count first", q.Offset)
		}
		for _, o := range order {
			if _, ok := q.Field(o.Property); !ok {
				return nil, mapper.NewConfigurationError(q.Class.Name, "paged order property %s must be selected", o.Property)
			}
		}
		window = q.Offset + q.Limit
	}

	stmt.WriteString("SELECT ").WriteString(c.dialect.LimitPrefix(window))
	for i, f := range q.Fields {
		if i > 0 {
			stmt.WriteString(", ")
		}
		col, err := c.column(q, f)
		if err != nil {
			return nil, err
		}
		stmt.WriteString(col).WriteString(" AS ").WriteString(c.dialect.QuoteName(f.Property))
	}
	if err := c.from(stmt, q); err != nil {
		return nil, err
	}
	if where != "" {
		stmt.WriteString(" WHERE ").WriteString(where)
	}
	if len(order) > 0 {
		terms := make([]string, len(order))
		for i, o := range order {
			f, err := q.Resolve(o.Property)
			if err != nil {
				return nil, err
			}
			col, err := c.column(q, f)
			if err != nil {
				return nil, err
			}
			terms[i] = col + " " + o.direction()
		}
		stmt.WriteString(" ORDER BY ").WriteString(strings.Join(terms, ", "))
	}
	stmt.WriteString(c.dialect.LimitSuffix(window))

	if q.Offset > 0 {
		reversed := make([]Order, len(order))
		for i, o := range order {
			reversed[i] = o.reverse()
		}
		stmt.Wrap("SELECT "+c.dialect.LimitPrefix(q.Limit)+"* FROM (",
			") s1 ORDER BY "+c.outerOrder(reversed)+c.dialect.LimitSuffix(q.Limit))
		stmt.Wrap("SELECT * FROM (", ") s2 ORDER BY "+c.outerOrder(order))
	}
	return stmt, nil
}

// CompileCount returns SELECT COUNT(*) over the rows q matches.
func (c *Compiler) CompileCount(q *SelectQuery) (*sql.Statement, error) {
	stmt := sql.NewStatement(c.dialect)
	where, err := Translate(q.where(), q.Resolve, q.Aliases, stmt)
	if err != nil {
		return nil, err
	}
	stmt.WriteString("SELECT COUNT(*)")
	if err := c.from(stmt, q); err != nil {
		return nil, err
	}
	if where != "" {
		stmt.WriteString(" WHERE ").WriteString(where)
	}
	return stmt, nil
}

func (c *Compiler) column(q *SelectQuery, f *Field) (string, error) {
	alias, ok := q.Aliases.Of(f.Source)
	if !ok {
		return "", mapper.NewConfigurationError(q.Class.Name, "source %s has no alias", f.Source.Path())
	}
	return alias + "." + c.dialect.Quote(f.Name), nil
}

func (c *Compiler) outerOrder(order []Order) string {
	terms := make([]string, len(order))
	for i, o := range order {
		terms[i] = c.dialect.QuoteName(o.Property) + " " + o.direction()
	}
	return strings.Join(terms, ", ")
}

// from writes the FROM clause with every join of the source tree, in
// alias order.
func (c *Compiler) from(stmt *sql.Statement, q *SelectQuery) error {
	alias, ok := q.Aliases.Of(q.Source)
	if !ok {
		return mapper.NewConfigurationError(q.Class.Name, "root source has no alias")
	}
	stmt.WriteString(" FROM ").WriteString(c.dialect.Quote(q.Source.Table)).WriteString(" " + alias)
	var joins func(s *Source, parent string) error
	emit := func(j *Join, parent string) error {
		child, ok := q.Aliases.Of(j.Source)
		if !ok {
			return mapper.NewConfigurationError(q.Class.Name, "source %s has no alias", j.Source.Path())
		}
		stmt.WriteString(" " + string(j.Type) + " ").
			WriteString(c.dialect.Quote(j.Source.Table)).
			WriteString(" " + child + " ON ")
		for i, p := range j.Fields {
			if i > 0 {
				stmt.WriteString(" AND ")
			}
			stmt.Writef("%s.%s = %s.%s", parent, c.dialect.Quote(p.From), child, c.dialect.Quote(p.To))
		}
		return joins(j.Source, child)
	}
	joins = func(s *Source, parent string) error {
		for _, j := range s.InheritanceJoins {
			if err := emit(j, parent); err != nil {
				return err
			}
		}
		for _, j := range s.Joins {
			if err := emit(j, parent); err != nil {
				return err
			}
		}
		return nil
	}
	return joins(q.Source, alias)
}
