package persistence

import (
	"log/slog"
	"slices"
	"weak"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/docgraph/internal/metrics"
)

// RegistrationEvent reports one registry change. Exactly one field is set.
type RegistrationEvent struct {
	Registered   Persistent
	Unregistered Persistent
}

// RegistrationChangedFn is a per-UUID subscriber. One argument is nil.
type RegistrationChangedFn func(registered, unregistered Persistent)

type registrationListener struct {
	key any
	fn  RegistrationChangedFn
}

// Context is the per-document registry mapping specifiers to live objects.
// It holds weak references only: the parent/child tree owns the objects.
type Context struct {
	objects   map[Specifier]weak.Pointer[Object]
	listeners map[uuid.UUID][]registrationListener

	// RegistrationEvent fires on every register and unregister, before the
	// per-UUID subscribers run.
	RegistrationEvent Event[RegistrationEvent]

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithLogger sets the logger for registry activity.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *Context) { c.logger = logger }
}

// WithMetrics records registry activity.
func WithMetrics(m *metrics.Metrics) ContextOption {
	return func(c *Context) { c.metrics = m }
}

// NewContext creates an empty registry. One is created per document root.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		objects:   make(map[Specifier]weak.Pointer[Object]),
		listeners: make(map[uuid.UUID][]registrationListener),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds p to the registry and notifies subscribers.
func (c *Context) Register(p Persistent) {
	obj := p.PersistentObject()
	spec := obj.Specifier()
	if _, ok := c.objects[spec]; !ok {
		c.metrics.ObjectRegistered()
	}
	c.objects[spec] = weak.Make(obj)
	c.logger.Debug("object registered", "type", obj.Type(), "uuid", spec.String())
	c.RegistrationEvent.Fire(RegistrationEvent{Registered: p})
	c.notify(spec.UUID(), p, nil)
}

// Unregister removes p from the registry and notifies subscribers. It does
// nothing when p is not the object registered under its specifier.
func (c *Context) Unregister(p Persistent) {
	obj := p.PersistentObject()
	spec := obj.Specifier()
	wp, ok := c.objects[spec]
	if !ok {
		return
	}
	if live := wp.Value(); live != nil && live != obj {
		return
	}
	delete(c.objects, spec)
	c.metrics.ObjectUnregistered()
	c.logger.Debug("object unregistered", "type", obj.Type(), "uuid", spec.String())
	c.RegistrationEvent.Fire(RegistrationEvent{Unregistered: p})
	c.notify(spec.UUID(), nil, p)
}

func (c *Context) notify(id uuid.UUID, registered, unregistered Persistent) {
	listeners := c.listeners[id]
	if len(listeners) == 0 {
		return
	}
	for _, l := range slices.Clone(listeners) {
		l.fn(registered, unregistered)
	}
}

// RegisterRegistrationChangedFn subscribes fn to registry changes of the
// object with the given UUID. key identifies the subscription for removal;
// registering the same key again replaces its function.
func (c *Context) RegisterRegistrationChangedFn(id uuid.UUID, key any, fn RegistrationChangedFn) {
	listeners := c.listeners[id]
	for i := range listeners {
		if listeners[i].key == key {
			listeners[i].fn = fn
			return
		}
	}
	c.listeners[id] = append(listeners, registrationListener{key: key, fn: fn})
}

// UnregisterRegistrationChangedFn removes the subscription added under key.
func (c *Context) UnregisterRegistrationChangedFn(id uuid.UUID, key any) {
	listeners, ok := c.listeners[id]
	if !ok {
		return
	}
	listeners = slices.DeleteFunc(listeners, func(l registrationListener) bool { return l.key == key })
	if len(listeners) == 0 {
		delete(c.listeners, id)
		return
	}
	c.listeners[id] = listeners
}

// RegisteredObject returns the live object for spec, or nil when it was never
// registered or has since been garbage collected.
func (c *Context) RegisteredObject(spec Specifier) Persistent {
	wp, ok := c.objects[spec]
	if !ok {
		return nil
	}
	obj := wp.Value()
	if obj == nil {
		delete(c.objects, spec)
		return nil
	}
	return obj.self
}

// RegisteredCount returns the number of registry entries.
func (c *Context) RegisteredCount() int { return len(c.objects) }

// listenerCount returns the number of subscriptions for id.
func (c *Context) listenerCount(id uuid.UUID) int { return len(c.listeners[id]) }
