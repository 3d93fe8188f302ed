package subprocess

import (
	"context"
	"sync"
)

// readySignal is a single-resolution signal. The first resolve wins; later
// calls are no-ops.
type readySignal struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newReadySignal() *readySignal {
	return &readySignal{done: make(chan struct{})}
}

// resolve settles the signal with err (nil for ready). It reports whether
// this call was the one that settled it.
func (s *readySignal) resolve(err error) bool {
	resolved := false

	s.once.Do(func() {
		s.err = err
		close(s.done)

		resolved = true
	})

	return resolved
}

// wait blocks until the signal settles or ctx is done.
func (s *readySignal) wait(ctx context.Context) error {
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// settled reports whether the signal has been resolved.
func (s *readySignal) settled() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}
