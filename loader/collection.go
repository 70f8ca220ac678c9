package loader

import (
	"context"
	"slices"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/entity"
	"github.com/syssam/mapper/query"
	"github.com/syssam/mapper/schema"
)

// Collection is a query-backed list of instances. Refresh reloads it and
// reports membership changes through OnAdded and OnRemoved.
//
// T is the element type: a concrete pointer type such as *Person for a
// class without subclasses, or an interface (entity.Stater, any) when rows
// may materialize as subclasses.
type Collection[T comparable] struct {
	// OnAdded is called for each instance a reload brings in. The first
	// load does not call it.
	OnAdded func(T)
	// OnRemoved is called for each instance a reload drops.
	OnRemoved func(T)

	loader  *Loader
	class   *schema.ClassDef
	where   *criteria.Criteria
	opts    []query.Option
	items   []T
	loaded  bool
	added   []T
	removed []T
}

// NewCollection returns an unloaded collection of def instances matching where.
func NewCollection[T comparable](l *Loader, def *schema.ClassDef, where *criteria.Criteria, opts ...query.Option) *Collection[T] {
	return &Collection[T]{loader: l, class: def, where: where, opts: opts}
}

// Items returns the current members.
func (c *Collection[T]) Items() []T { return slices.Clone(c.items) }

// Len returns the number of members.
func (c *Collection[T]) Len() int { return len(c.items) }

// Loaded reports whether Refresh has succeeded at least once.
func (c *Collection[T]) Loaded() bool { return c.loaded }

// Add appends obj locally. An unsaved obj stays a member across reloads
// until it is persisted.
func (c *Collection[T]) Add(obj T) {
	if slices.Contains(c.items, obj) {
		return
	}
	c.items = append(c.items, obj)
	c.removed = slices.DeleteFunc(c.removed, func(o T) bool { return o == obj })
	if s := entity.StateOf(obj); s != nil && s.IsNew() {
		c.added = append(c.added, obj)
	}
}

// Remove drops obj locally. A persisted obj stays out across reloads until
// its row is deleted.
func (c *Collection[T]) Remove(obj T) {
	n := len(c.items)
	c.items = slices.DeleteFunc(c.items, func(o T) bool { return o == obj })
	if len(c.items) == n {
		return
	}
	c.added = slices.DeleteFunc(c.added, func(o T) bool { return o == obj })
	if s := entity.StateOf(obj); s != nil && !s.IsNew() {
		c.removed = append(c.removed, obj)
	}
}

// Refresh reloads the members from the store. Local additions of unsaved
// instances and local removals of persisted ones are kept.
func (c *Collection[T]) Refresh(ctx context.Context) error {
	// Statuses are read before loading, which marks loaded instances
	// persisted.
	released := make(map[T]bool, len(c.removed)+len(c.added))
	for _, o := range c.removed {
		if s := entity.StateOf(o); s != nil && s.IsDeleted() {
			released[o] = true
		}
	}
	for _, o := range c.added {
		if s := entity.StateOf(o); s == nil || !s.IsNew() {
			released[o] = true
		}
	}
	objs, err := c.loader.LoadMany(ctx, c.class, c.where, c.opts...)
	if err != nil {
		return err
	}
	next := make([]T, 0, len(objs)+len(c.added))
	for _, o := range objs {
		t, ok := o.(T)
		if !ok {
			return mapper.NewConfigurationError(c.class.Name, "loaded %T is not a collection element", o)
		}
		next = append(next, t)
	}

	c.removed = slices.DeleteFunc(c.removed, func(o T) bool {
		return released[o] || !slices.Contains(next, o)
	})
	next = slices.DeleteFunc(next, func(o T) bool { return slices.Contains(c.removed, o) })
	c.added = slices.DeleteFunc(c.added, func(o T) bool { return released[o] })
	for _, o := range c.added {
		if !slices.Contains(next, o) {
			next = append(next, o)
		}
	}

	if c.loaded {
		for _, o := range next {
			if !slices.Contains(c.items, o) && c.OnAdded != nil {
				c.OnAdded(o)
			}
		}
		for _, o := range c.items {
			if !slices.Contains(next, o) && c.OnRemoved != nil {
				c.OnRemoved(o)
			}
		}
	}
	c.items, c.loaded = next, true
	return nil
}
