package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/syssam/mapper/criteria"
	"github.com/syssam/mapper/dialect/sql"
	"github.com/syssam/mapper/query"
)

type explainOptions struct {
	where  []string
	order  []string
	fields []string
	limit  int
	offset int
	count  bool
}

func newExplainCommand(a *app) *cobra.Command {
	opts := &explainOptions{}
	cmd := &cobra.Command{
		Use:   "explain <class>",
		Short: "Print the SQL and arguments compiled for a class query",
		Long: `Print the SQL and arguments compiled for a class query.

Conditions are joined with AND. Each has the form <path><op><value> where
op is one of = != < <= > >= ~ (LIKE) and !~ (NOT LIKE). The value null
compares with IS NULL. Paths may cross relationships, e.g. Department.Name.
An order prefixed with - sorts descending.`,
		Example: `  mapperctl explain Employee -m mapping.yaml -w Surname=Ada -o -Salary --limit 10`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stmt, err := a.explain(args[0], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, stmt.String())
			if vals := stmt.Values(); len(vals) > 0 {
				fmt.Fprintf(out, "-- args: %s\n", formatArgs(vals))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringArrayVarP(&opts.where, "where", "w", nil, "condition <path><op><value> (repeatable)")
	flags.StringSliceVarP(&opts.order, "order", "o", nil, "order by property, - prefix for descending")
	flags.StringSliceVarP(&opts.fields, "fields", "f", nil, "properties to select (default all)")
	flags.IntVar(&opts.limit, "limit", 0, "maximum number of rows")
	flags.IntVar(&opts.offset, "offset", 0, "rows to skip (requires --limit)")
	flags.BoolVar(&opts.count, "count", false, "compile the count query instead")
	return cmd
}

func (a *app) explain(class string, opts *explainOptions) (*sql.Statement, error) {
	reg, err := a.registry()
	if err != nil {
		return nil, err
	}
	def, err := reg.Class(class)
	if err != nil {
		return nil, err
	}
	d, err := a.dialect()
	if err != nil {
		return nil, err
	}
	conds := make([]*criteria.Criteria, 0, len(opts.where))
	for _, w := range opts.where {
		c, err := parseCondition(w)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	qopts := []query.Option{query.Limit(opts.limit), query.Offset(opts.offset)}
	if len(opts.fields) > 0 {
		qopts = append(qopts, query.WithFields(opts.fields...))
	}
	for _, o := range opts.order {
		if name, ok := strings.CutPrefix(o, "-"); ok {
			qopts = append(qopts, query.OrderBy(query.Desc(name)))
		} else {
			qopts = append(qopts, query.OrderBy(query.Asc(o)))
		}
	}

	c := query.NewCompiler(reg, d)
	q, err := c.NewSelectQuery(def, criteria.And(conds...), qopts...)
	if err != nil {
		return nil, err
	}
	var stmt *sql.Statement
	if opts.count {
		stmt, err = c.CompileCount(q)
	} else {
		stmt, err = c.Compile(q)
	}
	if err != nil {
		return nil, err
	}
	a.log.Debug().Str("class", def.Name).Str("dialect", d.Name).Int("args", len(stmt.Values())).Msg("query compiled")
	return stmt, nil
}

// operators are matched longest first.
var operators = []struct {
	token string
	op    criteria.Op
}{
	{"!=", criteria.NEQ},
	{"<=", criteria.LTE},
	{">=", criteria.GTE},
	{"!~", criteria.NotLike},
	{"=", criteria.EQ},
	{"<", criteria.LT},
	{">", criteria.GT},
	{"~", criteria.Like},
}

// parseCondition parses <path><op><value>. The first operator found
// splits the condition, so values may themselves contain operators.
func parseCondition(s string) (*criteria.Criteria, error) {
	for i := 1; i < len(s); i++ {
		for _, o := range operators {
			if !strings.HasPrefix(s[i:], o.token) {
				continue
			}
			path := strings.TrimSpace(s[:i])
			raw := strings.TrimSpace(s[i+len(o.token):])
			var v any = raw
			if strings.EqualFold(raw, "null") {
				if o.op != criteria.EQ && o.op != criteria.NEQ {
					return nil, fmt.Errorf("condition %q: null only compares with = or !=", s)
				}
				v = nil
			}
			return criteria.Compare(path, o.op, v), nil
		}
	}
	return nil, fmt.Errorf("condition %q: want <path><op><value>", s)
}

func formatArgs(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		if s, ok := v.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = fmt.Sprint(v)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
