// Package observer provides an ordered set of callbacks that can be notified
// from one goroutine while registrations are added and removed from others,
// including from inside a callback.
package observer

import (
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Set is an ordered collection of observer registrations.
//
// Notify delivers to a snapshot of the registrations taken before the first
// callback runs, most recent registration first. A registration disposed
// while a notification is in progress is skipped if it has not been reached
// yet, and receives nothing afterwards.
type Set[T any] struct {
	mu      sync.Mutex
	entries []*entry[T]
}

type entry[T any] struct {
	id       string
	fn       func(T)
	disposed bool
}

// Subscription is the handle returned by Set.Subscribe.
type Subscription struct {
	id      string
	dispose func()
	once    sync.Once
}

// ID returns the unique identifier of the registration.
func (s *Subscription) ID() string {
	return s.id
}

// Dispose removes exactly this registration. It is safe to call more than
// once and from inside the observer's own callback.
func (s *Subscription) Dispose() {
	s.once.Do(s.dispose)
}

// Subscribe registers fn and returns a handle that removes it.
func (s *Set[T]) Subscribe(fn func(T)) *Subscription {
	e := &entry[T]{id: ulid.Make().String(), fn: fn}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.mu.Unlock()

	return &Subscription{
		id:      e.id,
		dispose: func() { s.remove(e) },
	}
}

// remove drops e from the set and marks it disposed so an in-flight snapshot
// skips it.
func (s *Set[T]) remove(e *entry[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e.disposed = true
	s.entries = slices.DeleteFunc(s.entries, func(x *entry[T]) bool { return x == e })
}

// Len returns the number of live registrations.
func (s *Set[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.entries)
}

// Notify delivers v to every registration. Callbacks run on the caller's
// goroutine without the set's lock held.
func (s *Set[T]) Notify(v T) {
	s.mu.Lock()
	snapshot := slices.Clone(s.entries)
	s.mu.Unlock()

	for i := len(snapshot) - 1; i >= 0; i-- {
		e := snapshot[i]

		s.mu.Lock()
		disposed := e.disposed
		s.mu.Unlock()

		if disposed {
			continue
		}

		e.fn(v)
	}
}
