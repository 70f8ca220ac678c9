package query

import "strconv"

// Aliases maps source paths to short SQL aliases (a1, a2, ...).
// Assignment is deterministic and never changes an existing entry.
type Aliases struct {
	byPath map[string]string
	next   int
}

// NewAliases returns an empty alias map.
func NewAliases() *Aliases {
	return &Aliases{byPath: make(map[string]string)}
}

// Assign gives the next sequential alias to every unaliased source of the
// tree rooted at s, depth first.
func (a *Aliases) Assign(s *Source) {
	if s == nil {
		return
	}
	s.Walk(func(n *Source) {
		p := n.Path()
		if _, ok := a.byPath[p]; ok {
			return
		}
		a.next++
		a.byPath[p] = "a" + strconv.Itoa(a.next)
	})
}

// Alias returns the alias assigned to the source at path.
func (a *Aliases) Alias(path string) (string, bool) {
	alias, ok := a.byPath[path]
	return alias, ok
}

// Of returns the alias of s.
func (a *Aliases) Of(s *Source) (string, bool) {
	return a.Alias(s.Path())
}

// Len returns the number of assigned aliases.
func (a *Aliases) Len() int { return len(a.byPath) }

// Map returns a copy of the path to alias mapping.
func (a *Aliases) Map() map[string]string {
	out := make(map[string]string, len(a.byPath))
	for k, v := range a.byPath {
		out[k] = v
	}
	return out
}
