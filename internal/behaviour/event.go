package behaviour

// Event is a multi-cast event. Listeners are called in the order they were
// added.
type Event[T any] struct {
	nextID    int
	listeners []listener[T]
}

type listener[T any] struct {
	id int
	fn func(T)
}

// AddListener subscribes callback and returns a function that removes it.
// Components pass the result to Track so it is removed on destroy.
func (e *Event[T]) AddListener(callback func(T)) (remove func()) {
	if callback == nil {
		return func() {}
	}
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, listener[T]{id: id, fn: callback})
	return func() {
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

func (e *Event[T]) RemoveAllListeners() {
	e.listeners = nil
}

// Invoke calls all registered listeners
func (e *Event[T]) Invoke(arg T) {
	for _, l := range append([]listener[T](nil), e.listeners...) {
		l.fn(arg)
	}
}

// GetListenerCount returns the number of registered listeners (for debugging)
func (e *Event[T]) GetListenerCount() int {
	return len(e.listeners)
}
