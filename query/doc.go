// Package query compiles class queries into parametrized SQL.
//
// A SelectQuery owns a tree of Sources: the queried class's own table at
// the root, InheritanceJoins to the tables of class-table super classes,
// and lateral Joins added on demand when criteria or order terms navigate
// a to-one relationship ("Department.Name"). Aliases are assigned to the
// tree once, depth first, so every column in the statement is qualified.
//
// Compile renders the select; CompileCount renders the matching row
// count used to page collections. Criteria are translated by Translate,
// which never formats a literal into the SQL text.
package query
