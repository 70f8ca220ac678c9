// Package identity implements the identity map: at most one canonical
// in-memory instance per (hierarchy root class, primary key).
//
// Keys are the msgpack encoding of the primary key values with compact
// integers, so 7, int32(7) and int64(7) name the same row.
package identity
