// Package uow commits batches of changes to mapped instances in one
// transaction.
//
// A Committer collects saves and link changes, writes them in the order
// they were added and either commits all of them or none. After a
// rollback every instance of the batch gets back the state it had when it
// was added. A Committer runs a single commit cycle.
package uow
