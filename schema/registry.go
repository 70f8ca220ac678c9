package schema

import (
	"reflect"
	"sync"

	"github.com/syssam/mapper"
)

// Registry holds the class mappings of one application. A registry is
// populated at startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]*ClassDef
	types   map[reflect.Type]*ClassDef
	order   []*ClassDef
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*ClassDef),
		types:   make(map[reflect.Type]*ClassDef),
	}
}

// Register validates and adds class definitions. Definitions may reference
// super classes registered earlier or in the same call. Registration is
// all or nothing: on error the registry is left unchanged.
func (r *Registry) Register(defs ...*ClassDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]*ClassDef, len(defs))
	for _, d := range defs {
		if d == nil || d.Name == "" {
			return mapper.NewConfigurationError("", "class definition without a name")
		}
		if _, ok := r.classes[d.Name]; ok {
			return mapper.NewConfigurationError(d.Name, "class registered twice")
		}
		if _, ok := pending[d.Name]; ok {
			return mapper.NewConfigurationError(d.Name, "class registered twice")
		}
		pending[d.Name] = d
	}
	lookup := func(name string) (*ClassDef, bool) {
		if d, ok := pending[name]; ok {
			return d, true
		}
		d, ok := r.classes[name]
		return d, ok
	}
	// Link super classes and order the batch so supers resolve first.
	var ordered []*ClassDef
	state := make(map[*ClassDef]int, len(defs))
	var visit func(d *ClassDef) error
	visit = func(d *ClassDef) error {
		switch state[d] {
		case 1:
			return mapper.NewConfigurationError(d.Name, "inheritance cycle through %s", d.SuperName)
		case 2:
			return nil
		}
		state[d] = 1
		if d.SuperName != "" {
			super, ok := lookup(d.SuperName)
			if !ok {
				return mapper.NewConfigurationError(d.Name, "unknown super class %q", d.SuperName)
			}
			if d.Inheritance == None {
				return mapper.NewConfigurationError(d.Name, "super class %s set without an inheritance strategy", d.SuperName)
			}
			if _, ok := pending[super.Name]; ok {
				if err := visit(super); err != nil {
					return err
				}
			}
			d.super = super
		} else if d.Inheritance != None {
			return mapper.NewConfigurationError(d.Name, "%s inheritance without a super class", d.Inheritance)
		}
		state[d] = 2
		ordered = append(ordered, d)
		return nil
	}
	for _, d := range defs {
		if err := visit(d); err != nil {
			return err
		}
	}
	batchTypes := make(map[reflect.Type]string)
	for _, d := range ordered {
		d.applyDefaults()
		if err := d.resolve(); err != nil {
			return err
		}
		if err := d.bind(); err != nil {
			return err
		}
		if d.Type != nil {
			if other, ok := r.types[d.Type]; ok {
				return mapper.NewConfigurationError(d.Name, "type %s is already mapped by %s", d.Type, other.Name)
			}
			if other, ok := batchTypes[d.Type]; ok {
				return mapper.NewConfigurationError(d.Name, "type %s is already mapped by %s", d.Type, other)
			}
			batchTypes[d.Type] = d.Name
		}
	}
	if err := checkClassIDs(ordered); err != nil {
		return err
	}
	for _, d := range ordered {
		if d.super != nil {
			d.super.subs = append(d.super.subs, d)
		}
		r.classes[d.Name] = d
		if d.Type != nil {
			r.types[d.Type] = d
		}
		r.order = append(r.order, d)
	}
	return nil
}

// checkClassIDs rejects two classes of one hierarchy sharing a class id.
func checkClassIDs(defs []*ClassDef) error {
	seen := make(map[*ClassDef]map[string]string)
	add := func(d *ClassDef) error {
		ids := seen[d.Root()]
		if ids == nil {
			ids = make(map[string]string)
			seen[d.Root()] = ids
		}
		if other, ok := ids[d.ClassID]; ok && other != d.Name {
			return mapper.NewConfigurationError(d.Name, "class id %q already used by %s", d.ClassID, other)
		}
		ids[d.ClassID] = d.Name
		return nil
	}
	for _, d := range defs {
		for _, m := range append([]*ClassDef{d.Root()}, d.Root().Descendants()...) {
			if err := add(m); err != nil {
				return err
			}
		}
		if err := add(d); err != nil {
			return err
		}
	}
	return nil
}

// Class returns the named class.
func (r *Registry) Class(name string) (*ClassDef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.classes[name]
	if !ok {
		return nil, mapper.NewConfigurationError(name, "class is not registered")
	}
	return d, nil
}

// MustClass is like Class but panics if the class is not registered.
func (r *Registry) MustClass(name string) *ClassDef {
	d, err := r.Class(name)
	if err != nil {
		panic(err)
	}
	return d
}

// ClassOf returns the class mapping the dynamic type of obj, a pointer
// to a registered struct type.
func (r *Registry) ClassOf(obj any) (*ClassDef, error) {
	t := reflect.TypeOf(obj)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[t]
	if !ok {
		return nil, mapper.NewConfigurationError("", "type %T is not mapped", obj)
	}
	return d, nil
}

// ClassOfType returns the class mapping t. Pointer types are dereferenced.
func (r *Registry) ClassOfType(t reflect.Type) (*ClassDef, error) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.types[t]
	if !ok {
		return nil, mapper.NewConfigurationError("", "type %v is not mapped", t)
	}
	return d, nil
}

// ClassFor returns the class mapping the Go type T, which may be the
// struct type or a pointer to it.
func ClassFor[T any](r *Registry) (*ClassDef, error) {
	return r.ClassOfType(reflect.TypeFor[T]())
}

// Classes returns every class in registration order.
func (r *Registry) Classes() []*ClassDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*ClassDef(nil), r.order...)
}

// ByClassID returns the class of base's hierarchy whose class id is id.
func (r *Registry) ByClassID(base *ClassDef, id string) (*ClassDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if base.ClassID == id {
		return base, true
	}
	for _, d := range base.Root().Descendants() {
		if d.ClassID == id {
			return d, true
		}
	}
	if base.Root().ClassID == id {
		return base.Root(), true
	}
	return nil, false
}
