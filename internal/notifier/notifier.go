// Package notifier lets any number of watchers find out that a shared
// value has changed, without seeing the value itself. The live view
// uses it to wake a renderer when new samples arrive.
package notifier

import "sync"

// Notifier broadcasts change notifications to its watchers.
// The zero value is ready to use. Methods may be called concurrently.
type Notifier struct {
	mu      sync.Mutex
	version int
	closed  bool
	// gen is closed whenever the value changes or the notifier is
	// closed, waking every watcher blocked on it. It's recreated
	// lazily after each change.
	gen chan struct{}
}

// current returns the wait channel for the current version.
// Called with mu held.
func (n *Notifier) current() chan struct{} {
	if n.gen == nil {
		n.gen = make(chan struct{})
	}
	return n.gen
}

// Changed flags that the shared value has changed.
// All watchers will be notified.
func (n *Notifier) Changed() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.version++
	close(n.current())
	n.gen = nil
}

// Close unblocks all watchers. After Close, every call to a
// watcher's Next returns false. Close is idempotent.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	close(n.current())
	n.gen = nil
}

// Closed reports whether the notifier has been closed.
func (n *Notifier) Closed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}

// Watch returns a Watcher that can be used to wait for changes.
// If Changed has never been called, the watcher's Next blocks
// until it is or until the notifier is closed.
func (n *Notifier) Watch() *Watcher {
	return &Watcher{
		notifier: n,
		stop:     make(chan struct{}),
	}
}

// Watcher represents a single watcher of a shared value.
type Watcher struct {
	notifier *Notifier
	version  int
	stopOnce sync.Once
	stop     chan struct{}
}

// Next blocks until there has been a change since the last call,
// then returns true. Changes aren't queued: any number of calls to
// Changed while the watcher isn't waiting show up as a single Next.
// Next returns false when the notifier or the watcher is closed.
func (w *Watcher) Next() bool {
	n := w.notifier
	n.mu.Lock()
	for {
		if w.version != n.version {
			w.version = n.version
			n.mu.Unlock()
			return true
		}
		if n.closed {
			n.mu.Unlock()
			return false
		}
		wait := n.current()
		n.mu.Unlock()
		select {
		case <-wait:
		case <-w.stop:
			return false
		}
		n.mu.Lock()
	}
}

// Close stops the watcher without closing the underlying notifier.
// It may be called concurrently with Next.
func (w *Watcher) Close() {
	w.stopOnce.Do(func() {
		close(w.stop)
	})
}
