// Package persistence implements the persistent object graph: descriptor-based
// objects (properties, items, relationships), the per-document registry that
// maps specifiers to live objects, and the non-owning proxies and references
// that resolve specifiers lazily as objects register and unregister.
//
// The graph is mutated from a single goroutine. Storage is an external
// collaborator reached through the Storage interface; the package itself does
// no I/O.
package persistence
