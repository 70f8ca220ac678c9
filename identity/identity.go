package identity

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/schema"
)

// Key identifies one canonical instance: the hierarchy root class and the
// encoded primary key values. Classes of one hierarchy share keys, so a
// row loaded as Person and later as Employee resolves to the same entry.
type Key struct {
	Class string
	ID    string
}

func (k Key) String() string { return fmt.Sprintf("%s%x", k.Class, k.ID) }

// KeyOf builds the key of def's hierarchy for the given primary key values.
// Integer values of any width encode identically.
func KeyOf(def *schema.ClassDef, values ...any) (Key, error) {
	if len(values) != len(def.Key()) {
		return Key{}, mapper.NewConfigurationError(def.Name, "primary key has %d properties, got %d values", len(def.Key()), len(values))
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.UseCompactFloats(true)
	for _, v := range values {
		if err := enc.Encode(v); err != nil {
			return Key{}, mapper.NewConfigurationError(def.Name, "encoding primary key value %v: %v", v, err)
		}
	}
	return Key{Class: def.Root().Name, ID: buf.String()}, nil
}

// KeyOfInstance builds the key of obj from its current primary key values.
func KeyOfInstance(def *schema.ClassDef, obj any) (Key, error) {
	vals, err := def.KeyValues(obj)
	if err != nil {
		return Key{}, err
	}
	return KeyOf(def, vals...)
}

// Map holds at most one canonical instance per key. It is safe for
// concurrent use.
type Map struct {
	mu      sync.RWMutex
	entries map[Key]any
}

// New returns an empty identity map.
func New() *Map {
	return &Map{entries: make(map[Key]any)}
}

// Find returns the instance registered for def's hierarchy and key values.
func (m *Map) Find(def *schema.ClassDef, values ...any) (any, bool) {
	k, err := KeyOf(def, values...)
	if err != nil {
		return nil, false
	}
	return m.FindKey(k)
}

// FindKey returns the instance registered under k.
func (m *Map) FindKey(k Key) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.entries[k]
	return obj, ok
}

// Add registers obj as the canonical instance of its key, replacing any
// other instance. Adding the registered instance again is a no-op.
func (m *Map) Add(def *schema.ClassDef, obj any) (Key, error) {
	k, err := KeyOfInstance(def, obj)
	if err != nil {
		return Key{}, err
	}
	m.AddKey(k, obj)
	return k, nil
}

// AddKey registers obj under k.
func (m *Map) AddKey(k Key, obj any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[k] = obj
}

// Reconcile calls fn with the instance registered under k while holding
// the map's write lock, so concurrent reconciliations of one key run one
// at a time. When fn reports register, the instance it returns replaces
// the entry.
func (m *Map) Reconcile(k Key, fn func(stored any, found bool) (obj any, register bool, err error)) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, found := m.entries[k]
	obj, register, err := fn(stored, found)
	if err != nil {
		return nil, err
	}
	if register {
		m.entries[k] = obj
	}
	return obj, nil
}

// Remove unregisters obj. It does nothing if another instance, or none,
// is registered under obj's key.
func (m *Map) Remove(def *schema.ClassDef, obj any) error {
	k, err := KeyOfInstance(def, obj)
	if err != nil {
		return err
	}
	m.Evict(k, obj)
	return nil
}

// Evict unregisters obj from k. It does nothing if another instance, or
// none, is registered under k.
func (m *Map) Evict(k Key, obj any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.entries[k]; ok && cur == obj {
		delete(m.entries, k)
	}
}

// RemoveKey unregisters whatever instance is stored under k.
func (m *Map) RemoveKey(k Key) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, k)
}

// Len returns the number of registered instances.
func (m *Map) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear unregisters every instance.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}
