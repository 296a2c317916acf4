package power

import "sync"

// PowerAware is implemented by anything that must react to system power
// transitions: display, UI, other drivers.
type PowerAware interface {
	OnSystemPowerOnReset()
	OnSystemEnterSleep()
	OnSystemWakeFromSleep()
}

// Registry is an ordered set of listeners. It holds them by reference and
// never owns them. Listeners are compared by identity, so register pointers:
// a listener whose dynamic type is not comparable (a struct value holding a
// slice or map) is never equal to anything, so it is not deduplicated and
// Remove cannot find it.
//
// Notification passes visit every listener once, in insertion order.
// Appending or removing from inside a callback of the same pass is not
// supported; do it before or after the pass.
type Registry struct {
	mu        sync.Mutex
	listeners []PowerAware
}

func NewRegistry() *Registry { return &Registry{} }

// Append adds l at the tail. A listener already present is not added twice.
func (r *Registry) Append(l PowerAware) {
	if l == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.listeners {
		if same(x, l) {
			return
		}
	}
	r.listeners = append(r.listeners, l)
}

// Remove deletes l and reports whether it was present.
func (r *Registry) Remove(l PowerAware) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.listeners {
		if same(x, l) {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

func (r *Registry) NotifyPowerOnReset() { r.each(PowerAware.OnSystemPowerOnReset) }
func (r *Registry) NotifyEnterSleep()   { r.each(PowerAware.OnSystemEnterSleep) }
func (r *Registry) NotifyWake()         { r.each(PowerAware.OnSystemWakeFromSleep) }

func (r *Registry) each(fn func(PowerAware)) {
	r.mu.Lock()
	ls := r.listeners
	r.mu.Unlock()
	for _, l := range ls {
		fn(l)
	}
}

// same compares two listeners without panicking on non-comparable types.
func same(a, b PowerAware) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
