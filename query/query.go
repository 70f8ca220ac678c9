package query

import (
	"strings"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/schema"
)

// Order is one ORDER BY term.
type Order struct {
	Property string
	Desc     bool
}

// Asc orders by property ascending.
func Asc(property string) Order { return Order{Property: property} }

// Desc orders by property descending.
func Desc(property string) Order { return Order{Property: property, Desc: true} }

func (o Order) reverse() Order { return Order{Property: o.Property, Desc: !o.Desc} }

func (o Order) direction() string {
	if o.Desc {
		return "DESC"
	}
	return "ASC"
}

// SelectQuery is a select over one class, ready to compile. Its source
// tree and aliases are fixed when the query is built.
type SelectQuery struct {
	Class *schema.ClassDef
	// Fields in select-list order, unique per property.
	Fields   []*Field
	Criteria *criteria.Criteria
	// DiscriminatorCriteria restricts rows to the class and its subclasses
	// when they share tables with other classes.
	DiscriminatorCriteria *criteria.Criteria
	Order                 []Order
	Limit                 int
	Offset                int
	Source                *Source
	Aliases               *Aliases

	registry   *schema.Registry
	fieldNames []string
	resolved   map[string]*Field
}

// Option configures a SelectQuery.
type Option func(*SelectQuery)

// WithFields selects only the given properties. Key properties and the
// discriminator are always selected.
func WithFields(properties ...string) Option {
	return func(q *SelectQuery) {
		q.fieldNames = append(q.fieldNames, properties...)
	}
}

// OrderBy appends order terms.
func OrderBy(orders ...Order) Option {
	return func(q *SelectQuery) {
		q.Order = append(q.Order, orders...)
	}
}

// Limit caps the number of returned rows.
func Limit(n int) Option {
	return func(q *SelectQuery) { q.Limit = n }
}

// Offset skips rows before returning any.
func Offset(n int) Option {
	return func(q *SelectQuery) { q.Offset = n }
}

// Paged reports whether the query has a limit or an offset.
func (q *SelectQuery) Paged() bool { return q.Limit > 0 || q.Offset > 0 }

// Field returns the selected field of a property.
func (q *SelectQuery) Field(property string) (*Field, bool) {
	for _, f := range q.Fields {
		if f.Property == property {
			return f, true
		}
	}
	return nil, false
}

// Page returns a copy of q fitted to total matching rows. The limit is
// clipped to the rows left after the offset, so the last page never
// repeats rows of the previous one. skip is true when the offset is past
// the last row and no data query should run.
func (q *SelectQuery) Page(total int) (page *SelectQuery, skip bool) {
	if total <= q.Offset {
		return nil, true
	}
	cp := *q
	if cp.Limit == 0 || cp.Offset+cp.Limit > total {
		cp.Limit = total - cp.Offset
	}
	return &cp, false
}

// order returns the effective order: the requested terms, then any key
// property not yet ordered by, so paged windows are stable.
func (q *SelectQuery) order() []Order {
	if !q.Paged() {
		return q.Order
	}
	out := append([]Order(nil), q.Order...)
	for _, k := range q.Class.Key() {
		found := false
		for _, o := range out {
			if o.Property == k.Name {
				found = true
				break
			}
		}
		if !found {
			out = append(out, Asc(k.Name))
		}
	}
	return out
}

// Filter narrows q with c, joining the sources c's paths need.
func (q *SelectQuery) Filter(c *criteria.Criteria) error {
	for _, p := range c.Properties() {
		if _, err := q.Resolve(p); err != nil {
			return err
		}
	}
	q.Criteria = criteria.And(q.Criteria, c)
	q.Aliases.Assign(q.Source)
	return nil
}

// Resolve returns the field of a property path, joining relationship
// sources on first use.
func (q *SelectQuery) Resolve(path string) (*Field, error) {
	if f, ok := q.resolved[path]; ok {
		return f, nil
	}
	segs := strings.Split(path, ".")
	def, src := q.Class, q.Source
	for _, seg := range segs[:len(segs)-1] {
		rel, ok := def.Relationship(seg)
		if !ok {
			return nil, mapper.NewConfigurationError(def.Name, "unknown relationship %q in %s", seg, path)
		}
		if rel.Multiple() || len(rel.Keys) == 0 {
			return nil, mapper.NewConfigurationError(def.Name, "relationship %s cannot be navigated in a query", seg)
		}
		related, err := q.registry.Class(rel.Class)
		if err != nil {
			return nil, err
		}
		from, _, err := home(def, src, rel.Keys[0].Owner)
		if err != nil {
			return nil, err
		}
		own := related.Tables()[0]
		pairs := make([]FieldPair, 0, len(rel.Keys))
		for _, k := range rel.Keys {
			s, op, err := home(def, src, k.Owner)
			if err != nil {
				return nil, err
			}
			if s != from {
				return nil, mapper.NewConfigurationError(def.Name, "keys of relationship %s span several tables", seg)
			}
			rp, ok := related.Property(k.Related)
			if !ok || !own.Has(k.Related) {
				return nil, mapper.NewConfigurationError(related.Name, "relationship %s joins on %q, which is not stored in %s", seg, k.Related, own.Table)
			}
			pairs = append(pairs, FieldPair{From: op.Field, To: rp.Field})
		}
		child := from.Join(LeftJoin, seg, own.Table, pairs...)
		joinAncestors(related, child)
		def, src = related, child
	}
	s, p, err := home(def, src, segs[len(segs)-1])
	if err != nil {
		return nil, err
	}
	f := &Field{Property: path, Name: p.Field, Source: s}
	q.resolved[path] = f
	return f, nil
}

// joinAncestors adds an inheritance join below src for every super class
// table of def.
func joinAncestors(def *schema.ClassDef, src *Source) {
	tables := def.Tables()
	for _, t := range tables[1:] {
		pairs := make([]FieldPair, len(def.Key()))
		for i, k := range def.Key() {
			pairs[i] = FieldPair{From: k.Field, To: k.Field}
		}
		src.InheritanceJoin(t.Class.Name, t.Table, pairs...)
	}
}

// home returns the source storing property name of def, where src holds
// def's own table.
func home(def *schema.ClassDef, src *Source, name string) (*Source, *schema.Property, error) {
	p, ok := def.Property(name)
	if !ok {
		return nil, nil, mapper.NewConfigurationError(def.Name, "unknown property %q", name)
	}
	t, ok := def.HomeTable(name)
	if !ok {
		return nil, nil, mapper.NewConfigurationError(def.Name, "property %q is not stored in any table", name)
	}
	if t.Class == def.Tables()[0].Class {
		return src, p, nil
	}
	for _, j := range src.InheritanceJoins {
		if j.Source.Name == t.Class.Name {
			return j.Source, p, nil
		}
	}
	return nil, nil, mapper.NewConfigurationError(def.Name, "no source joins table %s", t.Table)
}

// discriminatorFilter restricts a query to def and its subclasses when
// the hierarchy tells rows apart by discriminator.
func discriminatorFilter(def *schema.ClassDef) *criteria.Criteria {
	d, ok := def.DiscriminatorProperty()
	if !ok {
		return nil
	}
	var family []*schema.ClassDef
	switch def.Inheritance {
	case schema.SingleTable:
		family = def.SingleTableFamily()
	case schema.ClassTable:
		family = append([]*schema.ClassDef{def}, def.Descendants()...)
	default:
		return nil
	}
	if len(family) == 1 {
		return criteria.Eq(d.Name, family[0].ClassID)
	}
	ids := make([]any, len(family))
	for i, c := range family {
		ids[i] = c.ClassID
	}
	return criteria.InValues(d.Name, ids...)
}
