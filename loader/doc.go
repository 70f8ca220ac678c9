// Package loader materializes query results as mapped instances.
//
// Every row goes through the identity map: loading a primary key that is
// already registered returns the registered instance, refreshed in place
// unless it is under edit. A row whose discriminator names a subclass of
// the queried class is read again as that subclass, and any instance of
// another class registered under its key is evicted.
package loader
