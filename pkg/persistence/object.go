package persistence

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Persistent is implemented by every node in the document graph. Concrete
// types embed Object and call Init from their constructor, which makes the
// promoted PersistentObject method return the embedded Object.
type Persistent interface {
	PersistentObject() *Object
}

// Parent is a child's back-reference to its container. It names the slot the
// child occupies and never owns the parent.
type Parent struct {
	Object           Persistent
	ItemName         string
	RelationshipName string
}

// ModifiedLayout is the timestamp layout written under the "modified" key.
const ModifiedLayout = "2006-01-02T15:04:05.000000"

// Reserved dictionary keys.
const (
	KeyType     = "type"
	KeyUUID     = "uuid"
	KeyModified = "modified"
)

// Object is a node of the persistent document graph: a set of declared
// properties, items and relationships plus identity, modified-state tracking
// and context/storage attachment.
type Object struct {
	self     Persistent
	typeName string
	id       uuid.UUID

	properties        map[string]*Property
	propertyNames     []string
	items             map[string]*Item
	itemNames         []string
	relationships     map[string]*Relationship
	relationshipNames []string

	modified      time.Time
	modifiedCount int64
	modifiedState int64

	parent  *Parent
	context *Context
	storage Storage

	aboutToBeRemoved bool
	closed           bool

	// ContextChangedEvent fires after the object's context has been set or
	// cleared and the change has propagated to its children.
	ContextChangedEvent Event[struct{}]
	// AboutToBeRemovedEvent fires while the object is still attached, before
	// its container detaches it.
	AboutToBeRemovedEvent Event[struct{}]
	// AboutToCloseEvent fires at the start of Close.
	AboutToCloseEvent Event[struct{}]
	// PropertyChangedEvent fires with the property name after a set.
	PropertyChangedEvent Event[string]
}

// Init prepares o for use. self is the outer value embedding o; it is the
// value handed to storage, the context and callbacks. A nil self means o is
// used on its own.
func (o *Object) Init(self Persistent, typeName string) {
	if self == nil {
		self = o
	}
	o.self = self
	o.typeName = typeName
	o.id = newUUID()
	o.modified = time.Now().UTC()
	o.properties = make(map[string]*Property)
	o.items = make(map[string]*Item)
	o.relationships = make(map[string]*Relationship)
}

// newUUID generates a UUID v7 for object identity, falling back to v4.
func newUUID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// PersistentObject returns o.
func (o *Object) PersistentObject() *Object { return o }

// Self returns the outer value registered with Init.
func (o *Object) Self() Persistent { return o.self }

func (o *Object) UUID() uuid.UUID      { return o.id }
func (o *Object) Type() string         { return o.typeName }
func (o *Object) Specifier() Specifier { return NewSpecifier(o.id) }
func (o *Object) Modified() time.Time  { return o.modified }
func (o *Object) ModifiedCount() int64 { return o.modifiedCount }
func (o *Object) ModifiedState() int64 { return o.modifiedState }
func (o *Object) Parent() *Parent      { return o.parent }
func (o *Object) Closed() bool         { return o.closed }

// SetModifiedState restores a fingerprint captured earlier. Used by undo.
func (o *Object) SetModifiedState(state int64) { o.modifiedState = state }

// IsAboutToBeRemoved reports whether AboutToBeRemoved has run.
func (o *Object) IsAboutToBeRemoved() bool { return o.aboutToBeRemoved }

// updateModified bumps the counters here and on every ancestor. The state
// follows the monotonic count so a value restored by undo is never reissued.
func (o *Object) updateModified(when time.Time) {
	for cur := o; cur != nil; {
		cur.modifiedCount++
		cur.modifiedState = cur.modifiedCount
		cur.modified = when
		if cur.parent == nil || cur.parent.Object == nil {
			break
		}
		cur = cur.parent.Object.PersistentObject()
	}
}

// DefineProperty declares a property with a default value.
func (o *Object) DefineProperty(name string, value any, opts ...PropertyOption) *Property {
	mustf(o.self != nil, "object not initialized")
	mustf(o.properties[name] == nil, "property %q already defined", name)
	p := newProperty(name, value, opts...)
	o.properties[name] = p
	o.propertyNames = append(o.propertyNames, name)
	return p
}

// DefineItem declares a one-to-one child slot.
func (o *Object) DefineItem(name string, factory Factory, opts ...ItemOption) *Item {
	mustf(o.self != nil, "object not initialized")
	mustf(o.items[name] == nil, "item %q already defined", name)
	i := &Item{name: name, factory: factory}
	for _, opt := range opts {
		opt(i)
	}
	o.items[name] = i
	o.itemNames = append(o.itemNames, name)
	return i
}

// DefineRelationship declares an ordered one-to-many child collection.
func (o *Object) DefineRelationship(name string, factory Factory, opts ...RelationshipOption) *Relationship {
	mustf(o.self != nil, "object not initialized")
	mustf(o.relationships[name] == nil, "relationship %q already defined", name)
	r := &Relationship{name: name, factory: factory, index: make(map[uuid.UUID]Persistent)}
	for _, opt := range opts {
		opt(r)
	}
	o.relationships[name] = r
	o.relationshipNames = append(o.relationshipNames, name)
	return r
}

// Property returns the descriptor for name, or nil.
func (o *Object) Property(name string) *Property { return o.properties[name] }

// PropertyNames returns the declared property names in declaration order.
func (o *Object) PropertyNames() []string { return append([]string(nil), o.propertyNames...) }

func (o *Object) mustProperty(name string) *Property {
	p := o.properties[name]
	mustf(p != nil, "no property %q on %s", name, o.typeName)
	return p
}

func (o *Object) mustItem(name string) *Item {
	i := o.items[name]
	mustf(i != nil, "no item %q on %s", name, o.typeName)
	return i
}

func (o *Object) mustRelationship(name string) *Relationship {
	r := o.relationships[name]
	mustf(r != nil, "no relationship %q on %s", name, o.typeName)
	return r
}

// PropertyValue returns a copy of the named property's value. It ignores the
// hidden flag.
func (o *Object) PropertyValue(name string) any {
	return o.mustProperty(name).Value()
}

// SetPropertyValue stores value in the named property, bypassing the
// read-only and hidden flags.
func (o *Object) SetPropertyValue(name string, value any) {
	o.setProperty(o.mustProperty(name), value)
}

// Attr is generic attribute access. A property yields a copy of its value,
// an item its child (possibly nil) and a relationship its children in order.
// Unknown and hidden names return false.
func (o *Object) Attr(name string) (any, bool) {
	if p, ok := o.properties[name]; ok {
		if p.hidden {
			return nil, false
		}
		return p.Value(), true
	}
	if i, ok := o.items[name]; ok {
		if i.hidden {
			return nil, false
		}
		return i.value, true
	}
	if r, ok := o.relationships[name]; ok {
		if r.hidden {
			return nil, false
		}
		return r.Values(), true
	}
	return nil, false
}

// PropertyRecordable reports whether changes to the named property belong in
// undo history.
func (o *Object) PropertyRecordable(name string) bool {
	return o.mustProperty(name).recordable
}

// SetAttr is generic attribute assignment. It returns false for unknown or
// hidden properties and panics with ErrReadOnlyProperty for read-only ones.
func (o *Object) SetAttr(name string, value any) bool {
	p, ok := o.properties[name]
	if !ok || p.hidden {
		return false
	}
	if p.readOnly {
		panic(fmt.Errorf("%w: %s", ErrReadOnlyProperty, name))
	}
	o.setProperty(p, value)
	return true
}

// Get returns the named property of p as a T, or the zero T when the stored
// value has another type.
func Get[T any](p Persistent, name string) T {
	v, _ := p.PersistentObject().PropertyValue(name).(T)
	return v
}

func (o *Object) setProperty(p *Property, value any) {
	p.SetValue(value)
	o.updateModified(time.Now().UTC())
	if o.context != nil {
		o.notifyPropertyChanged(p)
	}
	o.PropertyChangedEvent.Fire(p.name)
}

func (o *Object) notifyPropertyChanged(p *Property) {
	storage := o.PersistentStorage()
	if storage == nil {
		return
	}
	encoded := make(map[string]any, 1)
	p.writeToDict(encoded)
	if _, ok := encoded[p.key]; !ok {
		storage.ClearProperty(o.self, p.key)
	}
	for key, value := range encoded {
		storage.SetProperty(o.self, key, value)
	}
}

// Item returns the child in the named item slot, or nil.
func (o *Object) Item(name string) Persistent {
	return o.mustItem(name).value
}

// SetItem replaces the child in the named slot. The old child is detached and
// closed. Storage is notified before the new child joins the context.
func (o *Object) SetItem(name string, value Persistent) {
	item := o.mustItem(name)
	old := item.value
	if old == value {
		return
	}
	if value != nil {
		mustf(value.PersistentObject().parent == nil, "item already has a parent")
	}
	item.value = value
	if old != nil {
		oldObj := old.PersistentObject()
		oldObj.parent = nil
		oldObj.Close()
	}
	if value != nil {
		value.PersistentObject().parent = &Parent{Object: o.self, ItemName: name}
	}
	o.updateModified(time.Now().UTC())
	if o.context != nil {
		if storage := o.PersistentStorage(); storage != nil {
			storage.SetItem(o.self, name, value)
		}
		if value != nil {
			value.PersistentObject().SetPersistentObjectContext(o.context)
		}
	}
	if item.itemChanged != nil {
		item.itemChanged(name, old, value)
	}
}

// Relationship returns the named relationship's children in order.
func (o *Object) Relationship(name string) []Persistent {
	return o.mustRelationship(name).Values()
}

// RelationshipDescriptor returns the descriptor for name, or nil.
func (o *Object) RelationshipDescriptor(name string) *Relationship {
	return o.relationships[name]
}

// RelationshipStorageKey returns the storage key of the named relationship.
func (o *Object) RelationshipStorageKey(name string) string {
	return o.mustRelationship(name).StorageKey()
}

// RelationshipCount returns the number of children in the named relationship.
func (o *Object) RelationshipCount(name string) int {
	return o.mustRelationship(name).Len()
}

// ItemByUUID returns the child of the named relationship with the given UUID.
func (o *Object) ItemByUUID(name string, id uuid.UUID) Persistent {
	return o.mustRelationship(name).Lookup(id)
}

// IndexOf returns the position of item within the named relationship, or -1.
func (o *Object) IndexOf(name string, item Persistent) int {
	return o.mustRelationship(name).IndexOf(item)
}

// AppendItem inserts item at the end of the named relationship.
func (o *Object) AppendItem(name string, item Persistent) {
	o.InsertItem(name, o.mustRelationship(name).Len(), item)
}

// InsertItem inserts item before the given index. The child joins the context
// before storage is notified.
func (o *Object) InsertItem(name string, before int, item Persistent) {
	r := o.mustRelationship(name)
	mustf(item != nil, "cannot insert nil into %q", name)
	child := item.PersistentObject()
	mustf(child.parent == nil, "item already has a parent")
	mustf(before >= 0 && before <= r.Len(), "insert index %d out of range for %q", before, name)
	r.insertValue(before, item)
	child.parent = &Parent{Object: o.self, RelationshipName: name}
	o.updateModified(time.Now().UTC())
	if o.context != nil {
		child.SetPersistentObjectContext(o.context)
		if storage := o.PersistentStorage(); storage != nil {
			storage.InsertItem(o.self, r.StorageKey(), before, item)
		}
	}
	if r.inserted != nil {
		r.inserted(name, before, item)
	}
}

// RemoveItem removes item from the named relationship. The whole child subtree
// is told it is about to be removed while still attached; then the child is
// detached, storage notified, and the child closed.
func (o *Object) RemoveItem(name string, item Persistent) {
	r := o.mustRelationship(name)
	index := r.IndexOf(item)
	mustf(index >= 0, "item not in relationship %q", name)
	child := item.PersistentObject()
	child.AboutToBeRemoved()
	r.removeValue(index)
	o.updateModified(time.Now().UTC())
	if o.context != nil {
		if storage := o.PersistentStorage(); storage != nil {
			storage.RemoveItem(o.self, r.StorageKey(), index, item)
		}
	}
	if r.removed != nil {
		r.removed(name, index, item)
	}
	child.SetPersistentObjectContext(nil)
	child.parent = nil
	child.Close()
}

// AboutToBeRemoved notifies the subtree, children before self, that it is
// about to leave the graph. Items go first, then relationships in reverse.
func (o *Object) AboutToBeRemoved() {
	for _, name := range o.itemNames {
		if v := o.items[name].value; v != nil {
			v.PersistentObject().AboutToBeRemoved()
		}
	}
	for _, name := range o.relationshipNames {
		values := o.relationships[name].values
		for i := len(values) - 1; i >= 0; i-- {
			values[i].PersistentObject().AboutToBeRemoved()
		}
	}
	o.AboutToBeRemovedEvent.Fire(struct{}{})
	mustf(!o.aboutToBeRemoved, "object %s already about to be removed", o.id)
	o.aboutToBeRemoved = true
}

// PersistentObjectContext returns the context, or nil when detached.
func (o *Object) PersistentObjectContext() *Context { return o.context }

// SetPersistentObjectContext attaches o (and its subtree) to ctx or, with nil,
// detaches it. Moving directly from one context to another is a contract
// violation.
func (o *Object) SetPersistentObjectContext(ctx *Context) {
	mustf(o.context == nil || ctx == nil, "object %s already has a context", o.id)
	old := o.context
	if old == nil && ctx == nil {
		return
	}
	if old != nil {
		old.Unregister(o.self)
	}
	o.context = ctx
	if ctx != nil {
		ctx.Register(o.self)
	}
	for _, name := range o.itemNames {
		if v := o.items[name].value; v != nil {
			v.PersistentObject().SetPersistentObjectContext(ctx)
		}
	}
	for _, name := range o.relationshipNames {
		for _, v := range o.relationships[name].values {
			v.PersistentObject().SetPersistentObjectContext(ctx)
		}
	}
	o.ContextChangedEvent.Fire(struct{}{})
}

// SetPersistentStorage attaches storage to o. Children without their own
// storage use their parent's.
func (o *Object) SetPersistentStorage(storage Storage) { o.storage = storage }

// PersistentStorage returns o's storage or the nearest ancestor's.
func (o *Object) PersistentStorage() Storage {
	for cur := o; cur != nil; {
		if cur.storage != nil {
			return cur.storage
		}
		if cur.parent == nil || cur.parent.Object == nil {
			return nil
		}
		cur = cur.parent.Object.PersistentObject()
	}
	return nil
}

// PersistentDict returns the stored dictionary for o, or nil.
func (o *Object) PersistentDict() map[string]any {
	if storage := o.PersistentStorage(); storage != nil {
		return storage.Properties(o.self)
	}
	return nil
}

// ReadExternalData reads a bulk payload stored outside the dictionary.
func (o *Object) ReadExternalData(ctx context.Context, name string) ([]byte, error) {
	storage := o.PersistentStorage()
	if storage == nil {
		return nil, ErrNoStorage
	}
	return storage.ReadExternalData(ctx, o.self, name)
}

// WriteExternalData writes a bulk payload stored outside the dictionary.
func (o *Object) WriteExternalData(ctx context.Context, name string, data []byte) error {
	storage := o.PersistentStorage()
	if storage == nil {
		return ErrNoStorage
	}
	return storage.WriteExternalData(ctx, o.self, name, data)
}

// ReserveExternalData allocates a zeroed payload of size bytes.
func (o *Object) ReserveExternalData(ctx context.Context, name string, size int) error {
	storage := o.PersistentStorage()
	if storage == nil {
		return ErrNoStorage
	}
	return storage.ReserveExternalData(ctx, o.self, name, size)
}

// EnterWriteDelay asks storage to hold writes for o until ExitWriteDelay.
func (o *Object) EnterWriteDelay() {
	if storage := o.PersistentStorage(); storage != nil {
		storage.EnterWriteDelay(o.self)
	}
}

// ExitWriteDelay releases a write delay taken with EnterWriteDelay.
func (o *Object) ExitWriteDelay() {
	if storage := o.PersistentStorage(); storage != nil {
		storage.ExitWriteDelay(o.self)
	}
}

// IsWriteDelayed reports whether storage is holding writes for o.
func (o *Object) IsWriteDelayed() bool {
	if storage := o.PersistentStorage(); storage != nil {
		return storage.IsWriteDelayed(o.self)
	}
	return false
}

// RewriteItem asks storage to re-encode o from scratch.
func (o *Object) RewriteItem() {
	if storage := o.PersistentStorage(); storage != nil {
		storage.RewriteItem(o.self)
	}
}

// Close detaches o from its context, closes its children depth-first and
// clears its descriptor tables. Closing twice is a no-op.
func (o *Object) Close() {
	if o.closed {
		return
	}
	o.AboutToCloseEvent.Fire(struct{}{})
	o.SetPersistentObjectContext(nil)
	for _, name := range o.itemNames {
		if v := o.items[name].value; v != nil {
			v.PersistentObject().Close()
		}
	}
	for _, name := range o.relationshipNames {
		values := o.relationships[name].values
		for i := len(values) - 1; i >= 0; i-- {
			values[i].PersistentObject().Close()
		}
	}
	o.properties = nil
	o.propertyNames = nil
	o.items = nil
	o.itemNames = nil
	o.relationships = nil
	o.relationshipNames = nil
	o.closed = true
}

// ReadFromDict populates o from its dictionary form. Children are built by
// their descriptor's factory, which sees the raw child dictionary through a
// lookup closure, and are then read recursively.
func (o *Object) ReadFromDict(properties map[string]any) {
	if raw, ok := properties[KeyUUID].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			o.id = id
		}
	}
	if raw, ok := properties[KeyModified].(string); ok {
		if t, ok := ParseModified(raw); ok {
			o.modified = t
		}
	}
	for _, name := range o.propertyNames {
		o.properties[name].readFromDict(properties)
	}
	for _, name := range o.itemNames {
		item := o.items[name]
		d, ok := properties[name].(map[string]any)
		if !ok || item.factory == nil {
			continue
		}
		child := o.readChild(item.factory, d, name)
		if old := item.value; old != nil {
			old.PersistentObject().parent = nil
			old.PersistentObject().Close()
		}
		item.value = child
		child.PersistentObject().parent = &Parent{Object: o.self, ItemName: name}
		if o.context != nil {
			child.PersistentObject().SetPersistentObjectContext(o.context)
		}
	}
	for _, name := range o.relationshipNames {
		r := o.relationships[name]
		if r.factory == nil {
			continue
		}
		for _, d := range dictList(properties[r.StorageKey()]) {
			child := o.readChild(r.factory, d, name)
			r.insertValue(r.Len(), child)
			child.PersistentObject().parent = &Parent{Object: o.self, RelationshipName: name}
			if o.context != nil {
				child.PersistentObject().SetPersistentObjectContext(o.context)
			}
		}
	}
}

func (o *Object) readChild(factory Factory, d map[string]any, slot string) Persistent {
	child := factory(lookupIn(d))
	mustf(child != nil, "factory for %q on %s returned nil for type %v", slot, o.typeName, d[KeyType])
	child.PersistentObject().ReadFromDict(d)
	return child
}

// dictList accepts both []any (decoded JSON) and []map[string]any.
func dictList(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		out := make([]map[string]any, 0, len(t))
		for _, e := range t {
			if d, ok := e.(map[string]any); ok {
				out = append(out, d)
			}
		}
		return out
	}
	return nil
}

// WriteToDict encodes o and its subtree. Relationship children accumulate
// into a list under the relationship's storage key.
func (o *Object) WriteToDict() map[string]any {
	properties := make(map[string]any)
	if o.typeName != "" {
		properties[KeyType] = o.typeName
	}
	properties[KeyUUID] = o.id.String()
	properties[KeyModified] = FormatModified(o.modified)
	for _, name := range o.propertyNames {
		o.properties[name].writeToDict(properties)
	}
	for _, name := range o.itemNames {
		if v := o.items[name].value; v != nil {
			properties[name] = v.PersistentObject().WriteToDict()
		}
	}
	for _, name := range o.relationshipNames {
		r := o.relationships[name]
		if r.Len() == 0 {
			continue
		}
		list := make([]any, 0, r.Len())
		for _, v := range r.values {
			list = append(list, v.PersistentObject().WriteToDict())
		}
		properties[r.StorageKey()] = list
	}
	return properties
}

// Clone builds a detached deep copy of p with fresh identities throughout,
// using factory to construct the copy's root.
func Clone(p Persistent, factory Factory) Persistent {
	d := p.PersistentObject().WriteToDict()
	stripUUIDs(d)
	c := factory(lookupIn(d))
	mustf(c != nil, "clone factory returned nil for type %v", d[KeyType])
	c.PersistentObject().ReadFromDict(d)
	return c
}

func stripUUIDs(d map[string]any) {
	delete(d, KeyUUID)
	for _, v := range d {
		switch t := v.(type) {
		case map[string]any:
			if _, ok := t[KeyType]; ok {
				stripUUIDs(t)
			}
		case []any:
			for _, e := range t {
				if m, ok := e.(map[string]any); ok {
					if _, ok := m[KeyType]; ok {
						stripUUIDs(m)
					}
				}
			}
		}
	}
}

// Root returns the top of p's parent chain.
func Root(p Persistent) Persistent {
	for {
		parent := p.PersistentObject().parent
		if parent == nil || parent.Object == nil {
			return p
		}
		p = parent.Object
	}
}

var digitRuns = regexp.MustCompile(`\d+`)

// FormatModified renders t with ModifiedLayout.
func FormatModified(t time.Time) string {
	return t.UTC().Format(ModifiedLayout)
}

// ParseModified reads a timestamp from any string whose runs of digits are,
// in order, year, month, day, hour, minute, second and microsecond. At least
// year, month and day are required.
func ParseModified(s string) (time.Time, bool) {
	runs := digitRuns.FindAllString(s, 7)
	if len(runs) < 3 {
		return time.Time{}, false
	}
	var parts [7]int
	for i, r := range runs {
		n, err := strconv.Atoi(r)
		if err != nil {
			return time.Time{}, false
		}
		parts[i] = n
	}
	if parts[1] < 1 || parts[1] > 12 || parts[2] < 1 || parts[2] > 31 {
		return time.Time{}, false
	}
	return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6]*1000, time.UTC), true
}
