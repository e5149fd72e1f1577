// Package livebuf holds the most recent gauge samples in memory for a
// live scrolling view. Memory use is bounded by a fixed per-channel
// capacity no matter how long the sampling process runs.
package livebuf

import (
	"sync"
	"time"

	"gopkg.in/errgo.v1"

	"github.com/cryolab/dewarlog/internal/notifier"
)

// Entry holds one live sample for one channel.
type Entry struct {
	// Elapsed holds the time the sample was taken, in seconds
	// since the sampling run started.
	Elapsed float64
	// Value holds the sample value; NaN marks a failed reading.
	Value float64
}

// DefaultCapacity is used when Params.Capacity is zero. It retains
// ten minutes of samples at the nominal one-second live cadence,
// with headroom for ticks that arrive early.
const DefaultCapacity = 630

// Params holds the parameters for New.
type Params struct {
	// Channels holds the names of the live series the buffer keeps.
	Channels []string
	// Capacity holds the number of entries retained per channel
	// before the oldest entry is overwritten. Size it to at least
	// the view window duration divided by the tick period, plus
	// some margin. If it's zero, DefaultCapacity is used.
	Capacity int
}

// Buffer is a fixed-capacity per-channel store of recent samples.
// Push and Snapshot may be called from different goroutines;
// a snapshot never observes a half-applied push.
type Buffer struct {
	notifier notifier.Notifier

	mu    sync.Mutex
	rings map[string]*ring
}

// New returns a Buffer retaining the most recent entries
// of each named channel.
func New(p Params) (*Buffer, error) {
	if len(p.Channels) == 0 {
		return nil, errgo.New("no live channels specified")
	}
	if p.Capacity == 0 {
		p.Capacity = DefaultCapacity
	}
	b := &Buffer{
		rings: make(map[string]*ring),
	}
	for _, name := range p.Channels {
		b.rings[name] = &ring{
			entries: make([]Entry, p.Capacity),
		}
	}
	return b, nil
}

// Push appends one entry to the named channel, evicting the oldest
// retained entry once the channel is at capacity. Pushing to an
// unknown channel is an error; the set of channels is fixed at
// construction. A failed reading should still be pushed, as NaN, so
// that all channels stay the same length and a renderer can zip
// them by index.
func (b *Buffer) Push(channel string, elapsed, value float64) error {
	b.mu.Lock()
	r, ok := b.rings[channel]
	if !ok {
		b.mu.Unlock()
		return errgo.Newf("unknown live channel %q", channel)
	}
	r.push(Entry{Elapsed: elapsed, Value: value})
	b.mu.Unlock()
	b.notifier.Changed()
	return nil
}

// Snapshot returns the named channel's entries whose elapsed time is
// within window of the most recent entry, oldest first. A window of
// zero or less returns everything retained. The result is a copy,
// safe to use while pushes continue.
func (b *Buffer) Snapshot(channel string, window time.Duration) []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.rings[channel]
	if !ok || r.n == 0 {
		return nil
	}
	first := 0
	if window > 0 {
		cutoff := r.at(r.n - 1).Elapsed - window.Seconds()
		// Entries arrive in elapsed order, so walk back from the
		// newest to find the first one inside the window.
		first = r.n
		for i := r.n - 1; i >= 0; i-- {
			if r.at(i).Elapsed < cutoff {
				break
			}
			first = i
		}
	}
	entries := make([]Entry, 0, r.n-first)
	for i := first; i < r.n; i++ {
		entries = append(entries, r.at(i))
	}
	return entries
}

// Watch returns a watcher whose Next method blocks until the next
// push. A renderer can use it to redraw only when there's new data.
func (b *Buffer) Watch() *notifier.Watcher {
	return b.notifier.Watch()
}

// Close wakes and stops all watchers. The buffer contents
// remain readable.
func (b *Buffer) Close() {
	b.notifier.Close()
}

// ring is a fixed-capacity circular sequence of entries.
type ring struct {
	entries []Entry
	start   int
	n       int
}

func (r *ring) push(e Entry) {
	if r.n < len(r.entries) {
		r.entries[(r.start+r.n)%len(r.entries)] = e
		r.n++
		return
	}
	r.entries[r.start] = e
	r.start = (r.start + 1) % len(r.entries)
}

// at returns the i'th oldest retained entry.
func (r *ring) at(i int) Entry {
	return r.entries[(r.start+i)%len(r.entries)]
}
