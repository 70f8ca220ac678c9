// Package sql provides statements and connections for the mapper.
//
// # Statements
//
// A Statement is mutable SQL text plus an ordered parameter list. Values are
// never formatted into the text: AddParam records the literal and returns
// the dialect placeholder generated by the statement's own counter.
//
//	stmt := sql.NewStatement(dialect.MustGet(dialect.Postgres))
//	stmt.WriteString(`SELECT * FROM "people" WHERE "id" = `).WriteParam(7)
//	stmt.String() // SELECT * FROM "people" WHERE "id" = $1
//	stmt.Args()   // []any{7}
//
// # Connections
//
// DB implements Provider. Reads run on connections from a small Pool and the
// connection goes back to the pool when the returned Rows are closed.
// BeginTx opens one dedicated connection per transaction; Tx.Close releases
// it and rolls back anything left unfinished.
//
// Every execution goes through Conn, which applies the command timeout and
// records QueryStats. Statements slower than the configured threshold are
// logged at warn level through zerolog.
package sql
