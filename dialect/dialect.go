package dialect

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect names.
const (
	MySQL     = "mysql"
	SQLite    = "sqlite"
	Postgres  = "postgres"
	SQLServer = "sqlserver"
	Oracle    = "oracle"
)

// PlaceholderStyle controls how parameter placeholders are rendered.
type PlaceholderStyle int

const (
	// Positional renders every placeholder as the bare prefix ("?").
	Positional PlaceholderStyle = iota
	// Numbered appends the parameter ordinal to the prefix ("$1").
	Numbered
	// Named renders "<prefix>p<ordinal>" and binds arguments by name ("@p1", ":p1").
	Named
)

// LimitStyle controls where a row limit is written.
type LimitStyle int

const (
	// LimitTrailing appends "LIMIT n" after the ORDER BY clause.
	LimitTrailing LimitStyle = iota
	// LimitTop writes "TOP n" right after SELECT.
	LimitTop
	// LimitFetch appends "FETCH FIRST n ROWS ONLY".
	LimitFetch
)

// Dialect holds the vendor strategy points used while building statements.
// The zero value is not usable; use Get or one of the predefined values.
type Dialect struct {
	Name        string
	Prefix      string // Placeholder prefix ("?", "$", "@", ":")
	Style       PlaceholderStyle
	OpenQuote   string
	CloseQuote  string
	Limit       LimitStyle
	DriverName  string // database/sql driver name
	paramPrefix string
}

var dialects = map[string]Dialect{
	MySQL:     {Name: MySQL, Prefix: "?", Style: Positional, OpenQuote: "`", CloseQuote: "`", Limit: LimitTrailing, DriverName: "mysql"},
	SQLite:    {Name: SQLite, Prefix: "?", Style: Positional, OpenQuote: `"`, CloseQuote: `"`, Limit: LimitTrailing, DriverName: "sqlite"},
	Postgres:  {Name: Postgres, Prefix: "$", Style: Numbered, OpenQuote: `"`, CloseQuote: `"`, Limit: LimitTrailing, DriverName: "postgres"},
	SQLServer: {Name: SQLServer, Prefix: "@", Style: Named, OpenQuote: "[", CloseQuote: "]", Limit: LimitTop, DriverName: "sqlserver", paramPrefix: "p"},
	Oracle:    {Name: Oracle, Prefix: ":", Style: Named, OpenQuote: `"`, CloseQuote: `"`, Limit: LimitFetch, DriverName: "oracle", paramPrefix: "p"},
}

// Get returns the dialect registered under name. Driver names wrapped by
// telemetry drivers ("sqlite3", "postgres-otel") resolve by prefix.
func Get(name string) (Dialect, error) {
	if d, ok := dialects[name]; ok {
		return d, nil
	}
	for _, n := range []string{MySQL, SQLite, Postgres, SQLServer, Oracle} {
		if strings.HasPrefix(name, n) {
			return dialects[n], nil
		}
	}
	return Dialect{}, fmt.Errorf("dialect: unsupported dialect %q", name)
}

// MustGet is like Get but panics on unknown names.
func MustGet(name string) Dialect {
	d, err := Get(name)
	if err != nil {
		panic(err)
	}
	return d
}

// Names returns the supported dialect names.
func Names() []string {
	return []string{MySQL, SQLite, Postgres, SQLServer, Oracle}
}

// ParamName returns the bind name of the n-th (1-based) parameter. It is
// empty for dialects that bind by position.
func (d Dialect) ParamName(n int) string {
	if d.Style != Named {
		return ""
	}
	return d.paramPrefix + strconv.Itoa(n)
}

// Placeholder renders the n-th (1-based) parameter placeholder.
func (d Dialect) Placeholder(n int) string {
	switch d.Style {
	case Numbered:
		return d.Prefix + strconv.Itoa(n)
	case Named:
		return d.Prefix + d.ParamName(n)
	default:
		return d.Prefix
	}
}

// Quote delimits an identifier. Dotted identifiers are quoted per part.
func (d Dialect) Quote(ident string) string {
	if d.OpenQuote == "" {
		return ident
	}
	parts := strings.Split(ident, ".")
	for i, p := range parts {
		p = strings.ReplaceAll(p, d.CloseQuote, d.CloseQuote+d.CloseQuote)
		parts[i] = d.OpenQuote + p + d.CloseQuote
	}
	return strings.Join(parts, ".")
}

// QuoteName delimits ident as one identifier, dots included. It is used
// for column aliases such as "Department.Name".
func (d Dialect) QuoteName(ident string) string {
	if d.OpenQuote == "" {
		return ident
	}
	return d.OpenQuote + strings.ReplaceAll(ident, d.CloseQuote, d.CloseQuote+d.CloseQuote) + d.CloseQuote
}

// LimitPrefix returns the clause written after SELECT for a row limit.
func (d Dialect) LimitPrefix(n int) string {
	if d.Limit == LimitTop && n > 0 {
		return "TOP " + strconv.Itoa(n) + " "
	}
	return ""
}

// LimitSuffix returns the clause written at the end of a statement for a row limit.
func (d Dialect) LimitSuffix(n int) string {
	if n <= 0 {
		return ""
	}
	switch d.Limit {
	case LimitTrailing:
		return " LIMIT " + strconv.Itoa(n)
	case LimitFetch:
		return " FETCH FIRST " + strconv.Itoa(n) + " ROWS ONLY"
	default:
		return ""
	}
}
