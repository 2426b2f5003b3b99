package resource

import (
	"sync"
	"time"
)

// Info is a read-only view of one cache entry.
type Info struct {
	ID         Handle
	Key        string
	Name       string
	Refs       int
	CreatedAt  time.Time
	Disposable bool
}

// Snapshot is the state of a cache after one mutation. Entries are ordered by
// creation.
type Snapshot struct {
	Kind    Kind
	Version uint64
	Entries []Info
}

// notifier fans snapshots out to subscribers. Delivery is serialized and a
// snapshot older than one already delivered is dropped, so observers only
// ever move forward. Callbacks must not mutate the publishing cache.
type notifier struct {
	subsMu sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int

	deliverMu sync.Mutex
	delivered uint64
}

func (n *notifier) subscribe(fn func(Snapshot)) func() {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int]func(Snapshot))
	}
	id := n.nextID
	n.nextID++
	n.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			n.subsMu.Lock()
			delete(n.subs, id)
			n.subsMu.Unlock()
		})
	}
}

func (n *notifier) publish(s Snapshot) {
	n.deliverMu.Lock()
	defer n.deliverMu.Unlock()
	if s.Version <= n.delivered {
		return
	}
	n.delivered = s.Version

	n.subsMu.Lock()
	subs := make([]func(Snapshot), 0, len(n.subs))
	for _, fn := range n.subs {
		subs = append(subs, fn)
	}
	n.subsMu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}

// Find returns the entry for h in the snapshot.
func (s Snapshot) Find(h Handle) (Info, bool) {
	for _, e := range s.Entries {
		if e.ID == h {
			return e, true
		}
	}
	return Info{}, false
}

func (s Snapshot) refs(h Handle) int {
	e, _ := s.Find(h)
	return e.Refs
}
