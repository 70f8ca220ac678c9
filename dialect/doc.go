// Package dialect holds the vendor strategy points of the mapper.
//
// Only three things vary per vendor in the persistence core:
//
//   - the parameter placeholder family: "?" (MySQL, SQLite), "$n" (Postgres),
//     "@pN" (SQL Server), ":pN" (Oracle)
//   - identifier delimiters: backticks, double quotes or brackets
//   - the row limit clause: leading "TOP n", trailing "LIMIT n" or
//     "FETCH FIRST n ROWS ONLY"
//
// A Dialect is picked once per statement and never changes while the
// statement is built, so every placeholder in one statement uses the same
// family.
//
//	d := dialect.MustGet(dialect.Postgres)
//	d.Placeholder(2) // "$2"
//	d.Quote("people") // `"people"`
//	d.LimitSuffix(10) // " LIMIT 10"
//
// Redact strips passwords from connection strings before they reach logs
// or error values. MySQL DSNs are parsed with the go-sql-driver/mysql
// parser and Postgres URLs are normalized with lib/pq first.
package dialect
