package persistence

import (
	"slices"

	"github.com/google/uuid"
)

// LookupFunc reads a raw field from the dictionary an object is about to be
// read from, returning def when the field is absent.
type LookupFunc func(name string, def any) any

// Factory constructs an empty object of the right concrete type for a raw
// dictionary. It typically switches on lookup("type", "").
type Factory func(lookup LookupFunc) Persistent

func lookupIn(properties map[string]any) LookupFunc {
	return func(name string, def any) any {
		if v, ok := properties[name]; ok {
			return v
		}
		return def
	}
}

// Item is a one-to-one owned child slot.
type Item struct {
	name        string
	factory     Factory
	value       Persistent
	itemChanged func(name string, oldValue, newValue Persistent)
	hidden      bool
}

// ItemOption configures an Item at definition time.
type ItemOption func(*Item)

// WithItemChanged registers a callback fired after the child is replaced.
func WithItemChanged(fn func(name string, oldValue, newValue Persistent)) ItemOption {
	return func(i *Item) { i.itemChanged = fn }
}

// HiddenItem excludes the item from generic attribute access.
func HiddenItem() ItemOption {
	return func(i *Item) { i.hidden = true }
}

func (i *Item) Name() string      { return i.name }
func (i *Item) Value() Persistent { return i.value }
func (i *Item) Hidden() bool      { return i.hidden }

// Relationship is an ordered one-to-many collection of owned children with a
// UUID index kept in step with the order.
type Relationship struct {
	name     string
	key      string
	factory  Factory
	values   []Persistent
	index    map[uuid.UUID]Persistent
	inserted func(name string, index int, item Persistent)
	removed  func(name string, index int, item Persistent)
	hidden   bool
}

// RelationshipOption configures a Relationship at definition time.
type RelationshipOption func(*Relationship)

// WithRelationshipKey sets the storage key when it differs from the name.
func WithRelationshipKey(key string) RelationshipOption {
	return func(r *Relationship) { r.key = key }
}

// WithInserted registers a callback fired after an insert.
func WithInserted(fn func(name string, index int, item Persistent)) RelationshipOption {
	return func(r *Relationship) { r.inserted = fn }
}

// WithRemoved registers a callback fired after a removal, before the removed
// child is closed.
func WithRemoved(fn func(name string, index int, item Persistent)) RelationshipOption {
	return func(r *Relationship) { r.removed = fn }
}

// HiddenRelationship excludes the relationship from generic attribute access.
func HiddenRelationship() RelationshipOption {
	return func(r *Relationship) { r.hidden = true }
}

func (r *Relationship) Name() string { return r.name }
func (r *Relationship) Hidden() bool { return r.hidden }

// StorageKey is the dictionary key for the relationship list.
func (r *Relationship) StorageKey() string {
	if r.key != "" {
		return r.key
	}
	return r.name
}

// Values returns the children in order. The slice is a copy.
func (r *Relationship) Values() []Persistent {
	return slices.Clone(r.values)
}

// Len returns the number of children.
func (r *Relationship) Len() int { return len(r.values) }

// Lookup returns the child with the given UUID, or nil.
func (r *Relationship) Lookup(id uuid.UUID) Persistent {
	return r.index[id]
}

// IndexOf returns the position of item, or -1.
func (r *Relationship) IndexOf(item Persistent) int {
	if item == nil {
		return -1
	}
	target := item.PersistentObject()
	return slices.IndexFunc(r.values, func(v Persistent) bool { return v.PersistentObject() == target })
}

func (r *Relationship) insertValue(before int, item Persistent) {
	r.values = slices.Insert(r.values, before, item)
	r.index[item.PersistentObject().UUID()] = item
}

func (r *Relationship) removeValue(index int) Persistent {
	item := r.values[index]
	r.values = slices.Delete(r.values, index, index+1)
	delete(r.index, item.PersistentObject().UUID())
	return item
}
