// Package entity tracks the persistence state of mapped instances.
//
// Mapped structs embed Entity. Its State records whether the instance is
// new, persisted or deleted, whether a local edit is in progress, and the
// property values last read from or written to the store. Update
// statements write only the properties that differ from that snapshot, and
// their WHERE clauses use the snapshot key values.
package entity
