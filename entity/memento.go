package entity

import "github.com/syssam/mapper/schema"

// Memento is the in-memory state of an instance captured before a commit,
// restored if the commit rolls back.
type Memento struct {
	def    *schema.ClassDef
	obj    any
	values map[string]any
	state  State
}

// Save captures obj's property values and state.
func Save(def *schema.ClassDef, obj any) *Memento {
	m := &Memento{def: def, obj: obj, values: snapshot(def, obj)}
	if s := StateOf(obj); s != nil {
		m.state = *s
	}
	return m
}

// Restore puts obj back to the captured values and state, and flags it
// as rolled back.
func (m *Memento) Restore() error {
	if err := restore(m.def, m.obj, m.values); err != nil {
		return err
	}
	if s := StateOf(m.obj); s != nil {
		*s = m.state
		s.rolled = true
	}
	return nil
}
