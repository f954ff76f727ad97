package persistence

// HandleOption configures a Proxy or Reference.
type HandleOption func(*handle)

// WithHandleTracker counts the handle in t until it is closed.
func WithHandleTracker(t *Tracker) HandleOption {
	return func(h *handle) { h.tracker = t }
}

// handle is the resolution state shared by Proxy and Reference: either a live
// item or only its specifier, kept current by a per-UUID subscription on the
// context.
type handle struct {
	item    Persistent
	spec    Specifier
	context *Context
	tracker *Tracker

	// OnItemRegistered is called when a matching object registers after the
	// handle attached to the context. Attaching to an already registered
	// object resolves the handle without calling it.
	OnItemRegistered func(item Persistent)
	// OnItemUnregistered is called when the held item unregisters.
	OnItemUnregistered func(item Persistent)
}

func (h *handle) init(item Persistent, spec Specifier, opts []HandleOption) {
	for _, opt := range opts {
		opt(h)
	}
	h.item = item
	h.spec = spec
	if item != nil {
		h.spec = SpecifierFor(item)
	}
}

// Item returns the resolved object, or nil while unresolved.
func (h *handle) Item() Persistent { return h.item }

// ItemSpecifier returns the specifier the handle resolves.
func (h *handle) ItemSpecifier() Specifier { return h.spec }

func (h *handle) setContext(ctx *Context) {
	if h.context == ctx {
		return
	}
	if h.context != nil && !h.spec.IsZero() {
		h.context.UnregisterRegistrationChangedFn(h.spec.UUID(), h)
	}
	h.context = ctx
	if ctx == nil || h.spec.IsZero() {
		return
	}
	ctx.RegisterRegistrationChangedFn(h.spec.UUID(), h, h.registrationChanged)
	if h.item == nil {
		h.item = ctx.RegisteredObject(h.spec)
	}
}

// retarget points the handle at a new item or specifier without firing
// callbacks.
func (h *handle) retarget(item Persistent, spec Specifier) {
	ctx := h.context
	h.setContext(nil)
	h.item = item
	h.spec = spec
	if item != nil {
		h.spec = SpecifierFor(item)
	}
	h.setContext(ctx)
}

func (h *handle) registrationChanged(registered, unregistered Persistent) {
	switch {
	case registered != nil && h.item == nil && SpecifierFor(registered) == h.spec:
		h.item = registered
		if h.OnItemRegistered != nil {
			h.OnItemRegistered(registered)
		}
	case unregistered != nil && h.item != nil && h.item.PersistentObject() == unregistered.PersistentObject():
		h.item = nil
		if h.OnItemUnregistered != nil {
			h.OnItemUnregistered(unregistered)
		}
	}
}

func (h *handle) close() {
	h.setContext(nil)
	h.item = nil
	h.spec = Specifier{}
	h.OnItemRegistered = nil
	h.OnItemUnregistered = nil
}
