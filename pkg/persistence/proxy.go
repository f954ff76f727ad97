package persistence

// Proxy is a non-owning handle to an object, bound to an owning object whose
// context it follows. It never closes the item it resolves.
type Proxy struct {
	handle
	owner    Persistent
	listener *Listener
	closed   bool
}

// NewProxy creates a proxy owned by owner that resolves item.
func NewProxy(owner, item Persistent, opts ...HandleOption) *Proxy {
	return newProxy(owner, item, Specifier{}, opts)
}

// NewSpecifierProxy creates a proxy owned by owner that resolves spec once a
// matching object is registered.
func NewSpecifierProxy(owner Persistent, spec Specifier, opts ...HandleOption) *Proxy {
	return newProxy(owner, nil, spec, opts)
}

func newProxy(owner, item Persistent, spec Specifier, opts []HandleOption) *Proxy {
	mustf(owner != nil, "proxy requires an owner")
	p := &Proxy{owner: owner}
	p.init(item, spec, opts)
	p.tracker.addProxy(1)
	obj := owner.PersistentObject()
	p.listener = obj.ContextChangedEvent.Listen(func(struct{}) {
		p.setContext(obj.PersistentObjectContext())
	})
	p.setContext(obj.PersistentObjectContext())
	return p
}

// Owner returns the object whose context the proxy follows.
func (p *Proxy) Owner() Persistent { return p.owner }

// Close unsubscribes the proxy and clears its state.
func (p *Proxy) Close() {
	if p.closed {
		return
	}
	p.listener.Close()
	p.close()
	p.owner = nil
	p.closed = true
	p.tracker.addProxy(-1)
}
