package entity

import (
	"reflect"
	"sort"

	"github.com/google/uuid"

	"github.com/syssam/mapper/schema"
)

// Status is the persistence status of an instance.
type Status int

// Instance statuses.
const (
	// New instances have never been written to the store.
	New Status = iota
	// Persisted instances mirror a row of the store.
	Persisted
	// Deleted instances had their rows removed by a committed change.
	Deleted
)

func (s Status) String() string {
	switch s {
	case New:
		return "new"
	case Persisted:
		return "persisted"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// State is the bookkeeping the mapper keeps for each instance.
// The zero value is a new instance.
type State struct {
	status    Status
	editing   bool
	delete    bool
	txID      uuid.UUID
	persisted map[string]any
	edit      map[string]any
	rolled    bool
}

// Entity is embedded in mapped structs to carry their State.
//
//	type Person struct {
//		entity.Entity
//		ID      int64
//		Surname string
//	}
type Entity struct {
	state State
}

// EntityState implements Stater.
func (e *Entity) EntityState() *State { return &e.state }

// Stater is implemented by every mapped instance.
type Stater interface {
	EntityState() *State
}

// StateOf returns the state of obj, or nil if obj does not embed Entity.
func StateOf(obj any) *State {
	if s, ok := obj.(Stater); ok {
		return s.EntityState()
	}
	return nil
}

// Status returns the persistence status.
func (s *State) Status() Status { return s.status }

// IsNew reports whether the instance was never persisted.
func (s *State) IsNew() bool { return s.status == New }

// IsDeleted reports whether the instance row was deleted.
func (s *State) IsDeleted() bool { return s.status == Deleted }

// IsEditing reports whether a local edit is in progress.
func (s *State) IsEditing() bool { return s.editing }

// MarkedForDelete reports whether the next commit deletes the instance.
func (s *State) MarkedForDelete() bool { return s.delete }

// MarkForDelete schedules the instance for deletion on the next commit.
func (s *State) MarkForDelete() { s.delete = true }

// RolledBack reports whether the last commit the instance took part in
// was rolled back.
func (s *State) RolledBack() bool { return s.rolled }

// TransactionID returns the identity used to execute the instance's
// pending change once per commit.
func (s *State) TransactionID() uuid.UUID {
	if s.txID == uuid.Nil {
		s.txID = uuid.New()
	}
	return s.txID
}

// Persisted returns the value a property had when last read from
// or written to the store.
func (s *State) Persisted(name string) (any, bool) {
	v, ok := s.persisted[name]
	return v, ok
}

// PersistedKey returns the primary key values obj had when last read from
// or written to the store. It reports false for an instance that never was.
func PersistedKey(def *schema.ClassDef, obj any) ([]any, bool) {
	s := StateOf(obj)
	if s == nil || s.IsNew() {
		return nil, false
	}
	key := make([]any, len(def.Key()))
	for i, p := range def.Key() {
		v, ok := s.Persisted(p.Name)
		if !ok {
			return nil, false
		}
		key[i] = v
	}
	return key, true
}

// snapshot captures the current property values of obj.
func snapshot(def *schema.ClassDef, obj any) map[string]any {
	vals, err := def.Values(obj)
	if err != nil {
		return nil
	}
	return vals
}

// MarkPersisted records obj as mirroring its row: the current values become
// the persisted snapshot, and any edit or delete mark is cleared.
func MarkPersisted(def *schema.ClassDef, obj any) {
	s := StateOf(obj)
	if s == nil {
		return
	}
	s.status = Persisted
	s.editing = false
	s.delete = false
	s.rolled = false
	s.edit = nil
	s.persisted = snapshot(def, obj)
}

// MarkDeleted records that obj's row no longer exists.
func MarkDeleted(obj any) {
	s := StateOf(obj)
	if s == nil {
		return
	}
	s.status = Deleted
	s.editing = false
	s.delete = false
	s.rolled = false
	s.edit = nil
}

// BeginEdit starts a local edit. Loads never overwrite an instance under edit.
func BeginEdit(def *schema.ClassDef, obj any) {
	s := StateOf(obj)
	if s == nil || s.editing {
		return
	}
	s.editing = true
	s.edit = snapshot(def, obj)
}

// EndEdit keeps the edited values and leaves them pending for the next commit.
func EndEdit(obj any) {
	if s := StateOf(obj); s != nil {
		s.editing = false
		s.edit = nil
	}
}

// CancelEdit restores the values obj had when BeginEdit was called.
func CancelEdit(def *schema.ClassDef, obj any) error {
	s := StateOf(obj)
	if s == nil || !s.editing {
		return nil
	}
	if err := restore(def, obj, s.edit); err != nil {
		return err
	}
	s.editing = false
	s.edit = nil
	return nil
}

// Dirty returns, in property order, the names of properties whose values
// differ from the persisted snapshot. Every property of a new instance is dirty.
func Dirty(def *schema.ClassDef, obj any) []string {
	s := StateOf(obj)
	var out []string
	for _, p := range def.AllProperties() {
		cur, err := def.Get(obj, p.Name)
		if err != nil {
			continue
		}
		if s == nil || s.persisted == nil {
			out = append(out, p.Name)
			continue
		}
		old, ok := s.persisted[p.Name]
		if !ok || !reflect.DeepEqual(old, cur) {
			out = append(out, p.Name)
		}
	}
	return out
}

// IsDirty reports whether any property changed since it was persisted.
func IsDirty(def *schema.ClassDef, obj any) bool {
	s := StateOf(obj)
	if s == nil || s.status != Persisted {
		return true
	}
	return len(Dirty(def, obj)) > 0
}

func restore(def *schema.ClassDef, obj any, vals map[string]any) error {
	names := make([]string, 0, len(vals))
	for name := range vals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := def.Set(obj, name, vals[name]); err != nil {
			return err
		}
	}
	return nil
}
