package criteria

import (
	"fmt"
	"reflect"
	"strings"
)

// Op is a comparison operator of a leaf.
type Op string

// Comparison operators.
const (
	EQ      Op = "="
	NEQ     Op = "<>"
	GT      Op = ">"
	GTE     Op = ">="
	LT      Op = "<"
	LTE     Op = "<="
	Like    Op = "LIKE"
	NotLike Op = "NOT LIKE"
	In      Op = "IN"
	NotIn   Op = "NOT IN"
)

// Multi reports whether the operator takes a value list.
func (o Op) Multi() bool { return o == In || o == NotIn }

// Logic is the operator of a composite node.
type Logic string

// Logical operators.
const (
	AND Logic = "AND"
	OR  Logic = "OR"
	NOT Logic = "NOT"
)

// Criteria is an immutable boolean expression over class properties.
// A leaf compares one property with a value (or value list); a composite
// combines a left and right child. NOT has only a right child.
type Criteria struct {
	property string
	op       Op
	value    any
	values   []any

	logic       Logic
	left, right *Criteria
}

// IsLeaf reports whether c is a comparison.
func (c *Criteria) IsLeaf() bool { return c.logic == "" }

// Property returns the property path compared by a leaf, for example
// "Surname" or "Department.Name".
func (c *Criteria) Property() string { return c.property }

// Op returns the comparison operator of a leaf.
func (c *Criteria) Op() Op { return c.op }

// Value returns the compared value of a single-value leaf.
func (c *Criteria) Value() any { return c.value }

// Values returns a copy of the value list of an IN or NOT IN leaf.
func (c *Criteria) Values() []any { return append([]any(nil), c.values...) }

// Logic returns the operator of a composite.
func (c *Criteria) Logic() Logic { return c.logic }

// Left returns the left child of a composite; nil for NOT.
func (c *Criteria) Left() *Criteria { return c.left }

// Right returns the right child of a composite.
func (c *Criteria) Right() *Criteria { return c.right }

// Compare returns a leaf comparing property with v. A nil pointer v
// compares like an untyped nil.
func Compare(property string, op Op, v any) *Criteria {
	if op.Multi() {
		return &Criteria{property: property, op: op, values: list(v)}
	}
	if isNil(v) {
		v = nil
	}
	return &Criteria{property: property, op: op, value: v}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// list expands a slice or array value into its elements. A []byte and any
// other value stay a single element.
func list(v any) []any {
	switch vs := v.(type) {
	case nil:
		return nil
	case []any:
		return append([]any(nil), vs...)
	case []byte:
		return []any{vs}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// Eq returns property = v. A nil v compares with IS NULL.
func Eq(property string, v any) *Criteria { return Compare(property, EQ, v) }

// Ne returns property <> v. A nil v compares with IS NOT NULL.
func Ne(property string, v any) *Criteria { return Compare(property, NEQ, v) }

// Gt returns property > v.
func Gt(property string, v any) *Criteria { return Compare(property, GT, v) }

// Ge returns property >= v.
func Ge(property string, v any) *Criteria { return Compare(property, GTE, v) }

// Lt returns property < v.
func Lt(property string, v any) *Criteria { return Compare(property, LT, v) }

// Le returns property <= v.
func Le(property string, v any) *Criteria { return Compare(property, LTE, v) }

// Contains returns property LIKE pattern.
func Contains(property, pattern string) *Criteria { return Compare(property, Like, pattern) }

// NotContains returns property NOT LIKE pattern.
func NotContains(property, pattern string) *Criteria { return Compare(property, NotLike, pattern) }

// InValues returns property IN (vs...).
func InValues(property string, vs ...any) *Criteria {
	return &Criteria{property: property, op: In, values: append([]any(nil), vs...)}
}

// NotInValues returns property NOT IN (vs...).
func NotInValues(property string, vs ...any) *Criteria {
	return &Criteria{property: property, op: NotIn, values: append([]any(nil), vs...)}
}

// And combines criteria with AND. Nil arguments are skipped, so an optional
// filter can be passed as is; And of nothing is nil.
func And(cs ...*Criteria) *Criteria { return join(AND, cs) }

// Or combines criteria with OR. Nil arguments are skipped.
func Or(cs ...*Criteria) *Criteria { return join(OR, cs) }

func join(l Logic, cs []*Criteria) *Criteria {
	var out *Criteria
	for _, c := range cs {
		switch {
		case c == nil:
		case out == nil:
			out = c
		default:
			out = &Criteria{logic: l, left: out, right: c}
		}
	}
	return out
}

// Not negates c. Not of nil is nil.
func Not(c *Criteria) *Criteria {
	if c == nil {
		return nil
	}
	return &Criteria{logic: NOT, right: c}
}

// Walk calls fn for every leaf of c, left to right.
func (c *Criteria) Walk(fn func(leaf *Criteria)) {
	if c == nil {
		return
	}
	if c.IsLeaf() {
		fn(c)
		return
	}
	c.left.Walk(fn)
	c.right.Walk(fn)
}

// Properties returns the property paths referenced by c, in first-use order.
func (c *Criteria) Properties() []string {
	var out []string
	seen := make(map[string]bool)
	c.Walk(func(l *Criteria) {
		if !seen[l.property] {
			seen[l.property] = true
			out = append(out, l.property)
		}
	})
	return out
}

// String renders c for diagnostics. Values are printed with %v.
func (c *Criteria) String() string {
	if c == nil {
		return "<none>"
	}
	var b strings.Builder
	c.format(&b)
	return b.String()
}

func (c *Criteria) format(b *strings.Builder) {
	switch {
	case c.IsLeaf() && c.op.Multi():
		parts := make([]string, len(c.values))
		for i, v := range c.values {
			parts[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintf(b, "%s %s (%s)", c.property, c.op, strings.Join(parts, ", "))
	case c.IsLeaf() && c.value == nil:
		if c.op == NEQ {
			fmt.Fprintf(b, "%s IS NOT NULL", c.property)
		} else {
			fmt.Fprintf(b, "%s IS NULL", c.property)
		}
	case c.IsLeaf():
		fmt.Fprintf(b, "%s %s %v", c.property, c.op, c.value)
	case c.logic == NOT:
		b.WriteString("NOT (")
		c.right.format(b)
		b.WriteString(")")
	default:
		b.WriteString("(")
		c.left.format(b)
		fmt.Fprintf(b, ") %s (", c.logic)
		c.right.format(b)
		b.WriteString(")")
	}
}
