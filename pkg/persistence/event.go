package persistence

import "slices"

// Event is a synchronous, ordered, multi-listener notification. Listeners run
// on the firing goroutine in the order they subscribed.
type Event[T any] struct {
	next      int
	listeners []eventListener[T]
}

type eventListener[T any] struct {
	id int
	fn func(T)
}

// Listener is a subscription handle returned by Event.Listen.
type Listener struct {
	close func()
}

// Close removes the subscription. Safe to call more than once.
func (l *Listener) Close() {
	if l == nil || l.close == nil {
		return
	}
	l.close()
	l.close = nil
}

// Listen subscribes fn to the event.
func (e *Event[T]) Listen(fn func(T)) *Listener {
	e.next++
	id := e.next
	e.listeners = append(e.listeners, eventListener[T]{id: id, fn: fn})
	return &Listener{close: func() { e.remove(id) }}
}

// Fire calls every listener with v. Listeners added or removed during Fire
// take effect on the next Fire.
func (e *Event[T]) Fire(v T) {
	if len(e.listeners) == 0 {
		return
	}
	for _, l := range slices.Clone(e.listeners) {
		l.fn(v)
	}
}

// ListenerCount reports the number of live subscriptions.
func (e *Event[T]) ListenerCount() int {
	return len(e.listeners)
}

func (e *Event[T]) remove(id int) {
	e.listeners = slices.DeleteFunc(e.listeners, func(l eventListener[T]) bool { return l.id == id })
}
