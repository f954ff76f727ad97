package persistence

// Reference is a non-owning handle to an object whose context is set
// explicitly. Unlike Proxy it can be retargeted.
type Reference struct {
	handle
	closed bool
}

// NewReference creates a reference to item. A nil item leaves it empty.
func NewReference(item Persistent, opts ...HandleOption) *Reference {
	r := &Reference{}
	r.init(item, Specifier{}, opts)
	r.tracker.addReference(1)
	return r
}

// NewSpecifierReference creates a reference resolved by specifier.
func NewSpecifierReference(spec Specifier, opts ...HandleOption) *Reference {
	r := &Reference{}
	r.init(nil, spec, opts)
	r.tracker.addReference(1)
	return r
}

// PersistentObjectContext returns the context the reference resolves in.
func (r *Reference) PersistentObjectContext() *Context { return r.context }

// SetPersistentObjectContext attaches the reference to ctx, resolving the item
// immediately if it is already registered.
func (r *Reference) SetPersistentObjectContext(ctx *Context) {
	r.setContext(ctx)
}

// SetItem points the reference at item.
func (r *Reference) SetItem(item Persistent) {
	r.retarget(item, Specifier{})
}

// SetItemSpecifier points the reference at spec and resolves it in the
// current context.
func (r *Reference) SetItemSpecifier(spec Specifier) {
	if spec == r.spec && (r.item != nil || spec.IsZero()) {
		return
	}
	r.retarget(nil, spec)
}

// Close unsubscribes the reference and clears its state.
func (r *Reference) Close() {
	if r.closed {
		return
	}
	r.close()
	r.closed = true
	r.tracker.addReference(-1)
}
