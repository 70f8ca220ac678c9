package uow

import (
	"github.com/google/uuid"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/identity"
	"github.com/syssam/mapper/persist"
	"github.com/syssam/mapper/schema"
)

// Op is the kind of a pending change.
type Op int

// Change kinds.
const (
	// OpSave inserts, updates or deletes an instance depending on its state.
	OpSave Op = iota
	// OpLink adds a link table row.
	OpLink
	// OpUnlink removes a link table row.
	OpUnlink
)

func (o Op) String() string {
	switch o {
	case OpSave:
		return "save"
	case OpLink:
		return "link"
	case OpUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// Action is the write a change resolves to.
type Action int

// Change actions.
const (
	ActionNone Action = iota
	ActionInsert
	ActionUpdate
	ActionDelete
	ActionLink
	ActionUnlink
)

func (a Action) String() string {
	switch a {
	case ActionInsert:
		return "insert"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	case ActionLink:
		return "link"
	case ActionUnlink:
		return "unlink"
	default:
		return "none"
	}
}

// Change is one pending change of a commit.
type Change struct {
	Op    Op
	Class *schema.ClassDef
	Obj   any
	// Relationship and Related are set for link and unlink changes; Obj is
	// then the owner.
	Relationship string
	Related      *persist.LinkEnd

	id       uuid.UUID
	memento  *entity.Memento
	resolved Action
}

// Save returns the change writing obj: an insert when it is new, a delete
// when it is marked for deletion, an update otherwise.
func Save(def *schema.ClassDef, obj any) *Change {
	return &Change{Op: OpSave, Class: def, Obj: obj}
}

// Link returns the change adding related to the named many-to-many
// relationship of owner.
func Link(def *schema.ClassDef, owner any, rel string, related *persist.LinkEnd) *Change {
	return &Change{Op: OpLink, Class: def, Obj: owner, Relationship: rel, Related: related}
}

// Unlink returns the change removing related from the named many-to-many
// relationship of owner.
func Unlink(def *schema.ClassDef, owner any, rel string, related *persist.LinkEnd) *Change {
	return &Change{Op: OpUnlink, Class: def, Obj: owner, Relationship: rel, Related: related}
}

// TransactionID identifies the change within a commit. Saves of one
// instance share the instance's id, so it is written once per commit.
func (c *Change) TransactionID() uuid.UUID {
	if c.Op == OpSave {
		if s := entity.StateOf(c.Obj); s != nil {
			return s.TransactionID()
		}
	}
	if c.id == uuid.Nil {
		c.id = uuid.New()
	}
	return c.id
}

func (c *Change) validate() error {
	if c.Class == nil {
		return mapper.NewConfigurationError("", "change of %T has no class", c.Obj)
	}
	if c.Op != OpSave {
		return nil
	}
	if s := entity.StateOf(c.Obj); s != nil && s.MarkedForDelete() {
		return nil
	}
	return persist.Validate(c.Class, c.Obj)
}

// Action returns the write the change resolves to given the current state
// of its instance. A save of an instance without entity state is ActionNone.
func (c *Change) Action() Action {
	switch c.Op {
	case OpLink:
		return ActionLink
	case OpUnlink:
		return ActionUnlink
	}
	s := entity.StateOf(c.Obj)
	switch {
	case s == nil || (s.IsDeleted() && !s.MarkedForDelete()):
		return ActionNone
	case s.MarkedForDelete():
		return ActionDelete
	case s.IsNew():
		return ActionInsert
	default:
		return ActionUpdate
	}
}

// statements builds the SQL of the change and records what it resolved to.
func (c *Change) statements(g *persist.Generator) ([]*sql.Statement, error) {
	c.resolved = c.Action()
	switch c.resolved {
	case ActionLink, ActionUnlink:
		owner := &persist.LinkEnd{Class: c.Class, Obj: c.Obj}
		gen := g.Link
		if c.resolved == ActionUnlink {
			gen = g.Unlink
		}
		stmt, err := gen(c.Class, c.Relationship, owner, c.Related)
		if err != nil {
			return nil, err
		}
		return []*sql.Statement{stmt}, nil
	case ActionDelete:
		return g.Delete(c.Class, c.Obj)
	case ActionInsert:
		return g.Insert(c.Class, c.Obj)
	case ActionUpdate:
		return g.Update(c.Class, c.Obj)
	}
	if entity.StateOf(c.Obj) == nil {
		return nil, mapper.NewConfigurationError(c.Class.Name, "%T does not embed entity.Entity", c.Obj)
	}
	return nil, nil
}

// committed updates the instance state and the identity map once the
// transaction is committed.
func (c *Change) committed(ids *identity.Map) error {
	switch c.resolved {
	case ActionDelete:
		wasNew := entity.StateOf(c.Obj).IsNew()
		entity.MarkDeleted(c.Obj)
		if wasNew {
			return nil
		}
		return ids.Remove(c.Class, c.Obj)
	case ActionInsert, ActionUpdate:
		if c.resolved == ActionUpdate {
			c.forgetPersistedKey(ids)
		}
		entity.MarkPersisted(c.Class, c.Obj)
		_, err := ids.Add(c.Class, c.Obj)
		return err
	}
	return nil
}

// forgetPersistedKey drops the entry of the key obj had before an update.
func (c *Change) forgetPersistedKey(ids *identity.Map) {
	key, ok := entity.PersistedKey(c.Class, c.Obj)
	if !ok {
		return
	}
	k, err := identity.KeyOf(c.Class, key...)
	if err != nil {
		return
	}
	ids.Evict(k, c.Obj)
}

func (c *Change) rolledBack() error {
	if c.memento == nil {
		return nil
	}
	return c.memento.Restore()
}
