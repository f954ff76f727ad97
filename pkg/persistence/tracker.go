package persistence

import "sync/atomic"

// Tracker counts live proxies and references. Tests inject one to detect
// handles that were never closed. A nil *Tracker counts nothing.
type Tracker struct {
	proxies    atomic.Int64
	references atomic.Int64
}

// ProxyCount returns the number of proxies created and not yet closed.
func (t *Tracker) ProxyCount() int64 {
	if t == nil {
		return 0
	}
	return t.proxies.Load()
}

// ReferenceCount returns the number of references created and not yet closed.
func (t *Tracker) ReferenceCount() int64 {
	if t == nil {
		return 0
	}
	return t.references.Load()
}

func (t *Tracker) addProxy(delta int64) {
	if t != nil {
		t.proxies.Add(delta)
	}
}

func (t *Tracker) addReference(delta int64) {
	if t != nil {
		t.references.Add(delta)
	}
}
