package query

import "strings"

// JoinType is the kind of SQL join emitted for a Join.
type JoinType string

// Join types.
const (
	InnerJoin JoinType = "INNER JOIN"
	LeftJoin  JoinType = "LEFT JOIN"
)

// FieldPair equates a field of the parent source with a field of the joined one.
type FieldPair struct {
	From, To string
}

// Join attaches a source to its parent.
type Join struct {
	Type   JoinType
	Source *Source
	Fields []FieldPair
}

// Source is a table node of a query. Lateral Joins follow relationships;
// InheritanceJoins reach super class tables under class-table inheritance.
// Sources form a tree and are identified by their dotted Path.
type Source struct {
	Name  string
	Table string

	Joins            []*Join
	InheritanceJoins []*Join

	parent *Source
}

// NewSource returns a root source.
func NewSource(name, table string) *Source {
	return &Source{Name: name, Table: table}
}

// Parent returns the source this one is joined to, nil for the root.
func (s *Source) Parent() *Source { return s.parent }

// Path returns the canonical dotted path of s, for example "Person.Department".
func (s *Source) Path() string {
	if s.parent == nil {
		return s.Name
	}
	return s.parent.Path() + "." + s.Name
}

// Join returns the lateral child named name, adding it when missing.
func (s *Source) Join(typ JoinType, name, table string, fields ...FieldPair) *Source {
	return s.child(&s.Joins, typ, name, table, fields)
}

// InheritanceJoin returns the super class child named name, adding it when missing.
func (s *Source) InheritanceJoin(name, table string, fields ...FieldPair) *Source {
	return s.child(&s.InheritanceJoins, InnerJoin, name, table, fields)
}

func (s *Source) child(joins *[]*Join, typ JoinType, name, table string, fields []FieldPair) *Source {
	for _, j := range *joins {
		if j.Source.Name == name {
			return j.Source
		}
	}
	c := &Source{Name: name, Table: table, parent: s}
	*joins = append(*joins, &Join{Type: typ, Source: c, Fields: fields})
	return c
}

// Find returns the source at the given path below (or equal to) s.
func (s *Source) Find(path string) (*Source, bool) {
	if path == s.Name {
		return s, true
	}
	rest, ok := strings.CutPrefix(path, s.Name+".")
	if !ok {
		return nil, false
	}
	for _, j := range s.InheritanceJoins {
		if found, ok := j.Source.Find(rest); ok {
			return found, true
		}
	}
	for _, j := range s.Joins {
		if found, ok := j.Source.Find(rest); ok {
			return found, true
		}
	}
	return nil, false
}

// Walk visits s and every joined source depth first: inheritance joins
// before lateral joins, each in insertion order.
func (s *Source) Walk(fn func(*Source)) {
	fn(s)
	for _, j := range s.InheritanceJoins {
		j.Source.Walk(fn)
	}
	for _, j := range s.Joins {
		j.Source.Walk(fn)
	}
}

// Field is one selected or filtered property and the physical field that
// stores it. Property is the full path relative to the queried class.
type Field struct {
	Property string
	Name     string
	Source   *Source
}
