package schema

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-openapi/inflect"

	"github.com/syssam/mapper"
)

// Inheritance is the mapping strategy a class uses relative to its super class.
type Inheritance int

// Inheritance strategies.
const (
	// None marks a hierarchy root (or a class without a super class).
	None Inheritance = iota
	// SingleTable stores the class in its super class table, told apart by
	// the discriminator column of the hierarchy root.
	SingleTable
	// ClassTable stores the class's own properties in its own table, joined
	// to the super class table by primary key.
	ClassTable
	// ConcreteTable stores every inherited and own property in one
	// denormalized table with no join to the super class.
	ConcreteTable
)

var inheritanceNames = [...]string{
	None:          "none",
	SingleTable:   "single_table",
	ClassTable:    "class_table",
	ConcreteTable: "concrete_table",
}

func (i Inheritance) String() string {
	if i < 0 || int(i) >= len(inheritanceNames) {
		return fmt.Sprintf("Inheritance(%d)", int(i))
	}
	return inheritanceNames[i]
}

// MarshalText implements encoding.TextMarshaler.
func (i Inheritance) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Both "single_table"
// and the short form "single" are accepted.
func (i *Inheritance) UnmarshalText(text []byte) error {
	s := strings.ToLower(strings.TrimSpace(string(text)))
	switch s {
	case "", "none":
		*i = None
	case "single", "single_table":
		*i = SingleTable
	case "class", "class_table":
		*i = ClassTable
	case "concrete", "concrete_table":
		*i = ConcreteTable
	default:
		return fmt.Errorf("schema: unknown inheritance %q", s)
	}
	return nil
}

// Property maps one object property to one physical field.
type Property struct {
	// Name of the property, also the Go struct field name.
	Name string `yaml:"name"`
	// Field is the column name. Defaults to the underscored property name.
	Field string `yaml:"field,omitempty"`
	// Immutable properties are written on insert and never updated.
	Immutable bool `yaml:"immutable,omitempty"`

	owner *ClassDef
}

// Owner returns the class that declares the property.
func (p *Property) Owner() *ClassDef { return p.owner }

// PrimaryKey lists the key properties of a hierarchy. It is declared on the root.
type PrimaryKey struct {
	Properties []string `yaml:"properties"`
	// Immutable keys (guids, natural keys) are never part of an UPDATE.
	Immutable bool `yaml:"immutable,omitempty"`
}

// KeyPair joins an owner property to a related class property.
type KeyPair struct {
	Owner   string `yaml:"owner"`
	Related string `yaml:"related"`
}

// Relationship describes a navigable association to another class.
//
// A to-one relationship is joined through Keys. A to-many relationship
// is backed by LinkTable, whose rows hold the owner key (LinkOwnerFields)
// and the related key (LinkRelatedFields).
type Relationship struct {
	Name              string    `yaml:"name"`
	Class             string    `yaml:"class"`
	Keys              []KeyPair `yaml:"keys,omitempty"`
	LinkTable         string    `yaml:"link_table,omitempty"`
	LinkOwnerFields   []string  `yaml:"link_owner_fields,omitempty"`
	LinkRelatedFields []string  `yaml:"link_related_fields,omitempty"`
}

// Multiple reports whether the relationship is backed by a link table.
func (r *Relationship) Multiple() bool { return r.LinkTable != "" }

// TableMap is one physical table an instance of a class spans, with the
// properties stored there.
type TableMap struct {
	// Class whose table this is.
	Class *ClassDef
	Table string
	// Properties stored in the table, key properties included.
	Properties []*Property
}

// Has reports whether the table stores the named property.
func (t TableMap) Has(name string) bool {
	for _, p := range t.Properties {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ClassDef is the physical mapping of one class. Definitions are
// immutable once registered.
type ClassDef struct {
	// Name of the class.
	Name string `yaml:"name"`
	// Table defaults to the pluralized underscored class name, or to the
	// super class table under single-table inheritance.
	Table string `yaml:"table,omitempty"`
	// SuperName is the name of the super class, empty for roots.
	SuperName   string      `yaml:"super,omitempty"`
	Inheritance Inheritance `yaml:"inheritance,omitempty"`
	// Discriminator names the root property whose value is the concrete
	// ClassID of a row.
	Discriminator string `yaml:"discriminator,omitempty"`
	// ClassID is the discriminator value of the class. Defaults to Name.
	ClassID       string          `yaml:"class_id,omitempty"`
	PrimaryKey    PrimaryKey      `yaml:"key,omitempty"`
	Properties    []*Property     `yaml:"properties"`
	Relationships []*Relationship `yaml:"relationships,omitempty"`
	// Type is the Go struct type of instances. Optional for metadata-only
	// use (compiling SQL), required for loading.
	Type reflect.Type `yaml:"-"`

	super  *ClassDef
	subs   []*ClassDef
	chain  []*ClassDef
	all    []*Property
	props  map[string]*Property
	key    []*Property
	tables []TableMap
	fields map[string][]int
}

// Super returns the super class, or nil for roots.
func (c *ClassDef) Super() *ClassDef { return c.super }

// Root returns the hierarchy root.
func (c *ClassDef) Root() *ClassDef { return c.chain[0] }

// Chain returns the inheritance chain from the root down to c.
func (c *ClassDef) Chain() []*ClassDef { return c.chain }

// Subclasses returns the direct subclasses in registration order.
func (c *ClassDef) Subclasses() []*ClassDef { return c.subs }

// Descendants returns every subclass below c, depth first.
func (c *ClassDef) Descendants() []*ClassDef {
	var out []*ClassDef
	var walk func(*ClassDef)
	walk = func(n *ClassDef) {
		for _, s := range n.subs {
			out = append(out, s)
			walk(s)
		}
	}
	walk(c)
	return out
}

// IsSubclassOf reports whether c is o or inherits from o.
func (c *ClassDef) IsSubclassOf(o *ClassDef) bool {
	for _, a := range c.chain {
		if a == o {
			return true
		}
	}
	return false
}

// AllProperties returns every property of the chain, root properties first.
func (c *ClassDef) AllProperties() []*Property { return c.all }

// Property returns the named property, searching the whole chain.
func (c *ClassDef) Property(name string) (*Property, bool) {
	p, ok := c.props[name]
	return p, ok
}

// Key returns the primary key properties, in declaration order.
func (c *ClassDef) Key() []*Property { return c.key }

// IsKey reports whether the named property is part of the primary key.
func (c *ClassDef) IsKey(name string) bool {
	for _, p := range c.key {
		if p.Name == name {
			return true
		}
	}
	return false
}

// ImmutableKey reports whether the hierarchy key is never updated.
func (c *ClassDef) ImmutableKey() bool { return c.Root().PrimaryKey.Immutable }

// DiscriminatorProperty returns the hierarchy discriminator, if any.
func (c *ClassDef) DiscriminatorProperty() (*Property, bool) {
	root := c.Root()
	if root.Discriminator == "" {
		return nil, false
	}
	return c.Property(root.Discriminator)
}

// SingleTableHierarchy reports whether any class sharing c's table is
// stored under single-table inheritance.
func (c *ClassDef) SingleTableHierarchy() bool {
	top := c
	for top.Inheritance == SingleTable {
		top = top.super
	}
	if top != c {
		return true
	}
	for _, d := range c.subs {
		if d.Inheritance == SingleTable {
			return true
		}
	}
	return false
}

// SingleTableFamily returns c and every descendant stored in c's table
// under single-table inheritance.
func (c *ClassDef) SingleTableFamily() []*ClassDef {
	out := []*ClassDef{c}
	var walk func(*ClassDef)
	walk = func(n *ClassDef) {
		for _, s := range n.subs {
			if s.Inheritance == SingleTable {
				out = append(out, s)
				walk(s)
			}
		}
	}
	walk(c)
	return out
}

// Relationship returns the named relationship, searching the whole chain.
func (c *ClassDef) Relationship(name string) (*Relationship, bool) {
	for i := len(c.chain) - 1; i >= 0; i-- {
		for _, r := range c.chain[i].Relationships {
			if r.Name == name {
				return r, true
			}
		}
	}
	return nil, false
}

// Tables returns the physical tables an instance spans, the class's own
// table first and the root-most table last.
func (c *ClassDef) Tables() []TableMap { return c.tables }

// HomeTable returns the table that stores the named property.
func (c *ClassDef) HomeTable(name string) (TableMap, bool) {
	for _, t := range c.tables {
		if t.Has(name) && (!c.IsKey(name) || t.Class == c.tables[len(c.tables)-1].Class) {
			return t, true
		}
	}
	return TableMap{}, false
}

func (c *ClassDef) String() string { return c.Name }

// applyDefaults fills names derived by convention.
func (c *ClassDef) applyDefaults() {
	if c.ClassID == "" {
		c.ClassID = c.Name
	}
	if c.Table == "" {
		if c.Inheritance == SingleTable && c.super != nil {
			c.Table = c.super.Table
		} else {
			c.Table = TableName(c.Name)
		}
	}
	for _, p := range c.Properties {
		if p.Field == "" {
			p.Field = FieldName(p.Name)
		}
		p.owner = c
	}
}

// resolve computes the derived chain, property index and table layout.
// The super class must already be resolved.
func (c *ClassDef) resolve() error {
	if c.super != nil {
		c.chain = append(append([]*ClassDef(nil), c.super.chain...), c)
	} else {
		c.chain = []*ClassDef{c}
	}
	c.props = make(map[string]*Property)
	c.all = nil
	for _, a := range c.chain {
		for _, p := range a.Properties {
			if _, ok := c.props[p.Name]; ok {
				return mapper.NewConfigurationError(c.Name, "property %q declared twice in the hierarchy", p.Name)
			}
			c.props[p.Name] = p
			c.all = append(c.all, p)
		}
	}
	root := c.Root()
	if len(root.PrimaryKey.Properties) == 0 {
		return mapper.NewConfigurationError(c.Name, "hierarchy root %s has no primary key", root.Name)
	}
	c.key = c.key[:0]
	for _, name := range root.PrimaryKey.Properties {
		p, ok := c.props[name]
		if !ok || p.owner != root {
			return mapper.NewConfigurationError(c.Name, "primary key property %q is not declared on %s", name, root.Name)
		}
		c.key = append(c.key, p)
	}
	if c.super != nil && len(c.PrimaryKey.Properties) > 0 {
		return mapper.NewConfigurationError(c.Name, "only a hierarchy root can declare a primary key")
	}
	if c.Discriminator != "" {
		if c.super != nil {
			return mapper.NewConfigurationError(c.Name, "only a hierarchy root can declare a discriminator")
		}
		if p, ok := c.props[c.Discriminator]; !ok || p.owner != c {
			return mapper.NewConfigurationError(c.Name, "discriminator property %q is not declared", c.Discriminator)
		}
	}
	if c.Inheritance == SingleTable && root.Discriminator == "" {
		return mapper.NewConfigurationError(c.Name, "single-table inheritance requires a discriminator on %s", root.Name)
	}
	c.tables = c.layout()
	return nil
}

// layout groups the chain into physical tables, walking from c to the root.
func (c *ClassDef) layout() []TableMap {
	var tables []TableMap
	cur := c
	for cur != nil {
		t := TableMap{Class: cur, Table: cur.Table}
		members := []*ClassDef{cur}
		next := cur
		for next.Inheritance == SingleTable {
			next = next.super
			members = append(members, next)
		}
		switch next.Inheritance {
		case ConcreteTable:
			t.Properties = append(t.Properties, c.allUpTo(cur)...)
			tables = append(tables, t)
			return tables
		case ClassTable:
			// Key columns repeat in every class-table level.
			t.Properties = append(t.Properties, c.key...)
		}
		for i := len(members) - 1; i >= 0; i-- {
			t.Properties = append(t.Properties, members[i].Properties...)
		}
		tables = append(tables, t)
		if next.Inheritance == ClassTable {
			cur = next.super
		} else {
			cur = nil
		}
	}
	return tables
}

// allUpTo returns every property declared on the chain from the root to n.
func (c *ClassDef) allUpTo(n *ClassDef) []*Property {
	var out []*Property
	for _, a := range n.chain {
		out = append(out, a.Properties...)
	}
	return out
}

// TableName returns the conventional table name of a class.
func TableName(class string) string {
	return inflect.Pluralize(inflect.Underscore(class))
}

// FieldName returns the conventional column name of a property.
func FieldName(property string) string {
	return inflect.Underscore(property)
}
