package query

import (
	"strings"

	"github.com/syssam/mapper"
	"github.com/syssam/mapper/criteria"
)

// ParamSink receives the literals of a translated expression and returns
// their placeholders. *sql.Statement implements it.
type ParamSink interface {
	AddParam(v any) string
	Quote(ident string) string
}

// Resolver maps a property path to its field.
type Resolver func(property string) (*Field, error)

// Translate renders c as a parametrized boolean expression. Every literal
// goes through sink; none is formatted into the text. A nil c yields "".
func Translate(c *criteria.Criteria, resolve Resolver, aliases *Aliases, sink ParamSink) (string, error) {
	if c == nil {
		return "", nil
	}
	var b strings.Builder
	if err := translate(&b, c, resolve, aliases, sink); err != nil {
		return "", err
	}
	return b.String(), nil
}

func translate(b *strings.Builder, c *criteria.Criteria, resolve Resolver, aliases *Aliases, sink ParamSink) error {
	if !c.IsLeaf() {
		if c.Logic() == criteria.NOT {
			b.WriteString("NOT (")
			if err := translate(b, c.Right(), resolve, aliases, sink); err != nil {
				return err
			}
			b.WriteString(")")
			return nil
		}
		b.WriteString("(")
		if err := translate(b, c.Left(), resolve, aliases, sink); err != nil {
			return err
		}
		b.WriteString(") ")
		b.WriteString(string(c.Logic()))
		b.WriteString(" (")
		if err := translate(b, c.Right(), resolve, aliases, sink); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	}
	column, err := qualify(c.Property(), resolve, aliases, sink)
	if err != nil {
		return err
	}
	b.WriteString(column)
	switch {
	case c.Op().Multi():
		values := c.Values()
		if len(values) == 0 {
			return mapper.NewConfigurationError("", "%s on %s needs at least one value", c.Op(), c.Property())
		}
		b.WriteString(" ")
		b.WriteString(string(c.Op()))
		b.WriteString(" (")
		for i, v := range values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(sink.AddParam(v))
		}
		b.WriteString(")")
	case c.Value() == nil:
		switch c.Op() {
		case criteria.EQ:
			b.WriteString(" IS NULL")
		case criteria.NEQ:
			b.WriteString(" IS NOT NULL")
		default:
			return mapper.NewConfigurationError("", "%s cannot compare %s with NULL", c.Op(), c.Property())
		}
	default:
		b.WriteString(" ")
		b.WriteString(string(c.Op()))
		b.WriteString(" ")
		b.WriteString(sink.AddParam(c.Value()))
	}
	return nil
}

// qualify renders alias.field for a property. A field whose source has
// no alias is a configuration error; unqualified names are never emitted.
func qualify(property string, resolve Resolver, aliases *Aliases, sink ParamSink) (string, error) {
	f, err := resolve(property)
	if err != nil {
		return "", err
	}
	alias, ok := aliases.Of(f.Source)
	if !ok {
		return "", mapper.NewConfigurationError("", "source %s of property %s has no alias", f.Source.Path(), property)
	}
	return alias + "." + sink.Quote(f.Name), nil
}
