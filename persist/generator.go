package persist

import (
	"fmt"
	"slices"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/dialect"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/schema"
)

// Validator is implemented by instances that check themselves before
// they are written.
type Validator interface {
	Validate() error
}

// Generator builds the write statements of mapped instances for one dialect.
type Generator struct {
	dialect dialect.Dialect
}

// NewGenerator returns a generator for d.
func NewGenerator(d dialect.Dialect) *Generator {
	return &Generator{dialect: d}
}

// Dialect returns the generator dialect.
func (g *Generator) Dialect() dialect.Dialect { return g.dialect }

// Insert returns one INSERT per table obj spans, its own table first.
// The discriminator, if any, is set to the class id of def before the
// statements are built.
func (g *Generator) Insert(def *schema.ClassDef, obj any) ([]*sql.Statement, error) {
	if d, ok := def.DiscriminatorProperty(); ok {
		if err := def.Set(obj, d.Name, def.ClassID); err != nil {
			return nil, err
		}
	}
	var stmts []*sql.Statement
	for _, t := range def.Tables() {
		stmt := sql.NewStatement(g.dialect)
		stmt.Writef("INSERT INTO %s (", g.dialect.Quote(t.Table))
		for i, p := range t.Properties {
			if i > 0 {
				stmt.WriteString(", ")
			}
			stmt.WriteString(g.dialect.Quote(p.Field))
		}
		stmt.WriteString(") VALUES (")
		for i, p := range t.Properties {
			if i > 0 {
				stmt.WriteString(", ")
			}
			v, err := def.Get(obj, p.Name)
			if err != nil {
				return nil, err
			}
			stmt.WriteParam(v)
		}
		stmt.WriteString(")")
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Update returns one UPDATE per table holding a property changed since
// obj was last persisted. Immutable properties are never written, and
// tables with nothing to write get no statement.
func (g *Generator) Update(def *schema.ClassDef, obj any) ([]*sql.Statement, error) {
	key, err := persistedKey(def, obj)
	if err != nil {
		return nil, err
	}
	dirty := entity.Dirty(def, obj)
	var stmts []*sql.Statement
	for _, t := range def.Tables() {
		var set []*schema.Property
		for _, p := range t.Properties {
			if !slices.Contains(dirty, p.Name) || immutable(def, p) {
				continue
			}
			set = append(set, p)
		}
		if len(set) == 0 {
			continue
		}
		stmt := sql.NewStatement(g.dialect)
		stmt.Writef("UPDATE %s SET ", g.dialect.Quote(t.Table))
		for i, p := range set {
			if i > 0 {
				stmt.WriteString(", ")
			}
			v, err := def.Get(obj, p.Name)
			if err != nil {
				return nil, err
			}
			stmt.WriteString(g.dialect.Quote(p.Field)).WriteString(" = ").WriteParam(v)
		}
		g.where(stmt, def, key)
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Delete returns one DELETE per table obj spans, its own table first and
// the root table last. An instance that was never persisted has no row
// and yields no statement.
func (g *Generator) Delete(def *schema.ClassDef, obj any) ([]*sql.Statement, error) {
	if s := entity.StateOf(obj); s != nil && s.IsNew() {
		return nil, nil
	}
	key, err := persistedKey(def, obj)
	if err != nil {
		return nil, err
	}
	stmts := make([]*sql.Statement, 0, len(def.Tables()))
	for _, t := range def.Tables() {
		stmt := sql.NewStatementf(g.dialect, "DELETE FROM %s", g.dialect.Quote(t.Table))
		g.where(stmt, def, key)
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// Link returns the INSERT adding the (owner, related) row to the link
// table of the named many-to-many relationship.
func (g *Generator) Link(def *schema.ClassDef, rel string, owner, related *LinkEnd) (*sql.Statement, error) {
	r, cols, vals, err := g.link(def, rel, owner, related)
	if err != nil {
		return nil, err
	}
	stmt := sql.NewStatementf(g.dialect, "INSERT INTO %s (", g.dialect.Quote(r.LinkTable))
	for i, c := range cols {
		if i > 0 {
			stmt.WriteString(", ")
		}
		stmt.WriteString(g.dialect.Quote(c))
	}
	stmt.WriteString(") VALUES (")
	for i, v := range vals {
		if i > 0 {
			stmt.WriteString(", ")
		}
		stmt.WriteParam(v)
	}
	stmt.WriteString(")")
	return stmt, nil
}

// Unlink returns the DELETE removing the (owner, related) row from the
// link table of the named many-to-many relationship.
func (g *Generator) Unlink(def *schema.ClassDef, rel string, owner, related *LinkEnd) (*sql.Statement, error) {
	r, cols, vals, err := g.link(def, rel, owner, related)
	if err != nil {
		return nil, err
	}
	stmt := sql.NewStatementf(g.dialect, "DELETE FROM %s WHERE ", g.dialect.Quote(r.LinkTable))
	for i, c := range cols {
		if i > 0 {
			stmt.WriteString(" AND ")
		}
		stmt.WriteString(g.dialect.Quote(c)).WriteString(" = ").WriteParam(vals[i])
	}
	return stmt, nil
}

// LinkEnd is one side of a link table row.
type LinkEnd struct {
	Class *schema.ClassDef
	Obj   any
}

func (g *Generator) link(def *schema.ClassDef, name string, owner, related *LinkEnd) (*schema.Relationship, []string, []any, error) {
	r, ok := def.Relationship(name)
	if !ok {
		return nil, nil, nil, mapper.NewConfigurationError(def.Name, "unknown relationship %q", name)
	}
	if !r.Multiple() {
		return nil, nil, nil, mapper.NewConfigurationError(def.Name, "relationship %s has no link table", name)
	}
	ownerKey, err := owner.Class.KeyValues(owner.Obj)
	if err != nil {
		return nil, nil, nil, err
	}
	relatedKey, err := related.Class.KeyValues(related.Obj)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(ownerKey) != len(r.LinkOwnerFields) || len(relatedKey) != len(r.LinkRelatedFields) {
		return nil, nil, nil, mapper.NewConfigurationError(def.Name, "link fields of %s do not match the key sizes", name)
	}
	cols := append(slices.Clone(r.LinkOwnerFields), r.LinkRelatedFields...)
	vals := append(ownerKey, relatedKey...)
	return r, cols, vals, nil
}

func (g *Generator) where(stmt *sql.Statement, def *schema.ClassDef, key []any) {
	stmt.WriteString(" WHERE ")
	for i, p := range def.Key() {
		if i > 0 {
			stmt.WriteString(" AND ")
		}
		stmt.WriteString(g.dialect.Quote(p.Field)).WriteString(" = ").WriteParam(key[i])
	}
}

// persistedKey returns the key values obj had when it was last persisted,
// so an edited key never redirects a statement to another row.
func persistedKey(def *schema.ClassDef, obj any) ([]any, error) {
	key, ok := entity.PersistedKey(def, obj)
	if !ok {
		return nil, mapper.NewConfigurationError(def.Name, "%T has no persisted key", obj)
	}
	return key, nil
}

func immutable(def *schema.ClassDef, p *schema.Property) bool {
	return p.Immutable || (def.IsKey(p.Name) && def.ImmutableKey())
}

// Validate runs obj's Validator, if it has one, and wraps a failure.
func Validate(def *schema.ClassDef, obj any) error {
	v, ok := obj.(Validator)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		return mapper.NewValidationError(def.Name, fmt.Errorf("%T: %w", obj, err))
	}
	return nil
}
