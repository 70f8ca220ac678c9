// Package mapper is the persistence core of a data-mapper ORM.
//
// It compiles typed criteria and class metadata into parametrized SQL,
// executes it, reconciles returned rows against an identity map, resolves
// polymorphic subtypes under single-, class- and concrete-table inheritance,
// and commits batches of pending changes atomically.
//
// # Packages
//
//   - schema: class metadata registry (tables, properties, keys, inheritance)
//   - criteria: immutable criteria trees
//   - query: source graph, alias assignment, criteria translation, select compiler
//   - dialect, dialect/sql: vendor strategy points, statements, pooled connections
//   - entity, identity: per-instance state and the identity map
//   - loader: row materialization and collection refresh
//   - persist: insert/update/delete and link/unlink statement generators
//   - uow: the transaction committer (unit of work)
//   - session: the query and commit surface tying the above together
//
// # Usage
//
//	reg := schema.NewRegistry()
//	if err := reg.Register(personDef, employeeDef); err != nil {
//	    log.Fatal(err)
//	}
//	db, err := sql.Open(dialect.SQLite, "app.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	s := session.New(db, reg)
//	p, err := session.One[Person](ctx, s, criteria.Eq("ID", 7))
//
// Errors returned by every package belong to the taxonomy in this package:
// ConfigurationError, AmbiguousResultError, DeleteConcurrencyError,
// WriteFailureError and ReadFailureError.
package mapper
