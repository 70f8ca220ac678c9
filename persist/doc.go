// Package persist generates the INSERT, UPDATE and DELETE statements of
// mapped instances, and the link table statements of many-to-many
// relationships.
//
// An instance spans one table per class-table inheritance level and one
// table otherwise. Updates write only the properties that changed since
// the instance was last persisted, and every WHERE clause uses the
// persisted key values rather than the current ones.
package persist
