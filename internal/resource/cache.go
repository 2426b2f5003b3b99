package resource

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"GopherScene/internal/logger"

	"go.uber.org/zap"
)

// Policy decides what happens to an entry when its reference count reaches zero.
type Policy int

const (
	// DisposeEager frees the value and removes the entry as soon as the last
	// reference is released.
	DisposeEager Policy = iota
	// RetainAtZero keeps the entry as a reusable template and only marks it
	// disposable. Sweep or Dispose frees it.
	RetainAtZero
)

// Entry is a single owned resource and its bookkeeping.
type Entry[T any] struct {
	ID         Handle
	Key        string
	Name       string
	Value      T
	CreatedAt  time.Time
	refs       int
	disposable bool
	seq        uint64
}

func (e *Entry[T]) info() Info {
	return Info{
		ID:         e.ID,
		Key:        e.Key,
		Name:       e.Name,
		Refs:       e.refs,
		CreatedAt:  e.CreatedAt,
		Disposable: e.disposable,
	}
}

// Stats provides debugging and profiling information.
type Stats struct {
	Hits      int
	Misses    int
	Coalesced int
	Loads     int
	Failures  int
	Disposals int
	Live      int
}

// LoadFunc produces the value for a key that is not cached yet.
type LoadFunc[T any] func(ctx context.Context) (T, error)

type loadOptions struct {
	name  string
	token Token
}

type LoadOption func(*loadOptions)

// WithName sets the display name of the entry created by a load.
func WithName(name string) LoadOption {
	return func(o *loadOptions) { o.name = name }
}

// WithToken ties a load to a scene generation. A load whose token expired by
// the time it completes is discarded.
func WithToken(t Token) LoadOption {
	return func(o *loadOptions) { o.token = t }
}

// flight is an in-progress load that later callers attach to.
type flight struct {
	done    chan struct{}
	waiters int
	handle  Handle
	err     error
}

// Cache is a reference-counted store of resources of one kind, deduplicated by
// source key. It is safe for concurrent use. Disposal callbacks run outside the
// cache lock so they may release entries in other caches.
type Cache[T any] struct {
	kind    Kind
	policy  Policy
	dispose func(T)

	mu       sync.Mutex
	entries  map[Handle]*Entry[T]
	byKey    map[string]Handle
	inflight map[string]*flight
	seq      uint64
	version  uint64
	stats    Stats

	notify notifier
	now    func() time.Time
}

// NewCache creates an empty cache. dispose may be nil.
func NewCache[T any](kind Kind, policy Policy, dispose func(T)) *Cache[T] {
	return &Cache[T]{
		kind:     kind,
		policy:   policy,
		dispose:  dispose,
		entries:  make(map[Handle]*Entry[T]),
		byKey:    make(map[string]Handle),
		inflight: make(map[string]*flight),
		now:      time.Now,
	}
}

func (c *Cache[T]) Kind() Kind {
	return c.kind
}

// Load returns the entry cached under key, taking a reference, or runs load
// to create it with one reference. Concurrent loads of the same key share a
// single call to load. An empty key disables deduplication.
func (c *Cache[T]) Load(ctx context.Context, key string, load LoadFunc[T], opts ...LoadOption) (Handle, error) {
	o := loadOptions{name: key}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.token.Valid() {
		return "", fmt.Errorf("%s %q: %w", c.kind, key, ErrCancelled)
	}

	c.mu.Lock()
	if key != "" {
		if h, ok := c.byKey[key]; ok {
			e := c.entries[h]
			c.acquireLocked(e)
			c.stats.Hits++
			snap := c.publishLocked()
			c.mu.Unlock()
			c.notify.publish(snap)

			logger.Log.Debug("Cache hit",
				zap.String("kind", string(c.kind)),
				zap.String("key", key),
				zap.Int("refCount", snap.refs(h)))
			return h, nil
		}
		if f, ok := c.inflight[key]; ok {
			f.waiters++
			c.stats.Coalesced++
			c.mu.Unlock()

			logger.Log.Debug("Joined in-flight load",
				zap.String("kind", string(c.kind)),
				zap.String("key", key))
			return c.wait(ctx, f)
		}
	}

	f := &flight{done: make(chan struct{}), waiters: 1}
	if key != "" {
		c.inflight[key] = f
	}
	c.stats.Misses++
	c.mu.Unlock()

	// The load outlives any single caller: others may have attached to it.
	go c.run(context.WithoutCancel(ctx), key, f, load, o)
	return c.wait(ctx, f)
}

func (c *Cache[T]) run(ctx context.Context, key string, f *flight, load LoadFunc[T], o loadOptions) {
	value, err := load(ctx)

	var discard []T
	var snap *Snapshot

	c.mu.Lock()
	if key != "" {
		delete(c.inflight, key)
	}
	switch {
	case err != nil:
		c.stats.Failures++
		f.err = wrapLoadErr(c.kind, key, err)
	case !o.token.Valid():
		c.stats.Failures++
		f.err = fmt.Errorf("%s %q: %w", c.kind, key, ErrCancelled)
		discard = append(discard, value)
	case f.waiters == 0:
		f.err = fmt.Errorf("%s %q: %w", c.kind, key, context.Canceled)
		discard = append(discard, value)
	default:
		c.stats.Loads++
		if h, ok := c.byKey[key]; ok && key != "" {
			// Registered explicitly while the load was in flight.
			e := c.entries[h]
			for i := 0; i < f.waiters; i++ {
				c.acquireLocked(e)
			}
			f.handle = h
			discard = append(discard, value)
		} else {
			e := c.insertLocked(key, o.name, value)
			e.refs = f.waiters
			f.handle = e.ID
		}
		s := c.publishLocked()
		snap = &s
	}
	close(f.done)
	c.mu.Unlock()

	if snap != nil {
		c.notify.publish(*snap)
	}
	c.disposeValues(discard)

	if f.err != nil {
		logger.Log.Warn("Load did not commit",
			zap.String("kind", string(c.kind)),
			zap.String("key", key),
			zap.Error(f.err))
		return
	}
	logger.Log.Info("Resource loaded and cached",
		zap.String("kind", string(c.kind)),
		zap.String("key", key),
		zap.String("handle", string(f.handle)),
		zap.Int("refCount", snap.refs(f.handle)))
}

func (c *Cache[T]) wait(ctx context.Context, f *flight) (Handle, error) {
	select {
	case <-f.done:
		return f.handle, f.err
	case <-ctx.Done():
	}

	c.mu.Lock()
	select {
	case <-f.done:
		// Committed between the two selects; give back the reference that
		// was counted for this caller.
		c.mu.Unlock()
		if f.err == nil {
			_ = c.Release(f.handle)
		}
	default:
		f.waiters--
		c.mu.Unlock()
	}
	return "", ctx.Err()
}

// Register stores value under key with one reference. When key is already
// cached the existing entry gains a reference, value is disposed and
// existing is true.
func (c *Cache[T]) Register(key, name string, value T) (h Handle, existing bool) {
	c.mu.Lock()
	if key != "" {
		if h, ok := c.byKey[key]; ok {
			c.acquireLocked(c.entries[h])
			c.stats.Hits++
			snap := c.publishLocked()
			c.mu.Unlock()
			c.notify.publish(snap)
			c.disposeValues([]T{value})
			return h, true
		}
	}
	e := c.insertLocked(key, name, value)
	e.refs = 1
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)

	logger.Log.Debug("Resource registered",
		zap.String("kind", string(c.kind)),
		zap.String("name", name),
		zap.String("handle", string(e.ID)))
	return e.ID, false
}

// Get acquires a reference to h and returns its value.
func (c *Cache[T]) Get(h Handle) (T, error) {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		var zero T
		return zero, notFound(c.kind, h)
	}
	c.acquireLocked(e)
	v := e.Value
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)
	return v, nil
}

// Acquire takes a reference to h without returning the value.
func (c *Cache[T]) Acquire(h Handle) error {
	_, err := c.Get(h)
	return err
}

// Peek returns the value for h without touching its reference count.
func (c *Cache[T]) Peek(h Handle) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[h]; ok {
		return e.Value, true
	}
	var zero T
	return zero, false
}

// Lookup returns the bookkeeping for h without touching its reference count.
func (c *Cache[T]) Lookup(h Handle) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[h]; ok {
		return e.info(), true
	}
	return Info{}, false
}

// HandleFor returns the handle cached under key.
func (c *Cache[T]) HandleFor(key string) (Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.byKey[key]
	return h, ok
}

// Loading reports whether a load for key is in flight.
func (c *Cache[T]) Loading(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[key]
	return ok
}

// Release drops one reference to h. See Policy for what happens at zero.
func (c *Cache[T]) Release(h Handle) error {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		logger.Log.Warn("Attempted to release unknown resource",
			zap.String("kind", string(c.kind)),
			zap.String("handle", string(h)))
		return notFound(c.kind, h)
	}

	if e.refs == 0 {
		c.mu.Unlock()
		logger.Log.Warn("Attempted to release resource with no references",
			zap.String("kind", string(c.kind)),
			zap.String("handle", string(h)))
		return nil
	}

	e.refs--
	var discard []T
	if e.refs == 0 {
		if c.policy == DisposeEager {
			c.removeLocked(e)
			discard = append(discard, e.Value)
		} else {
			e.disposable = true
		}
	}
	refs := e.refs
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)

	logger.Log.Debug("Resource reference released",
		zap.String("kind", string(c.kind)),
		zap.String("handle", string(h)),
		zap.Int("refCount", refs))

	if len(discard) > 0 {
		c.disposeValues(discard)
		logger.Log.Info("Resource freed",
			zap.String("kind", string(c.kind)),
			zap.String("key", e.Key),
			zap.String("handle", string(h)))
	}
	return nil
}

// Dispose frees h regardless of its reference count.
func (c *Cache[T]) Dispose(h Handle) error {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return notFound(c.kind, h)
	}
	c.removeLocked(e)
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)

	c.disposeValues([]T{e.Value})
	logger.Log.Info("Resource force disposed",
		zap.String("kind", string(c.kind)),
		zap.String("handle", string(h)),
		zap.Int("refCount", e.refs))
	return nil
}

// Sweep frees every entry that was retained at zero references and returns
// how many were removed.
func (c *Cache[T]) Sweep() int {
	c.mu.Lock()
	var discard []T
	for _, e := range c.entries {
		if e.disposable && e.refs == 0 {
			c.removeLocked(e)
			discard = append(discard, e.Value)
		}
	}
	if len(discard) == 0 {
		c.mu.Unlock()
		return 0
	}
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)

	c.disposeValues(discard)
	logger.Log.Info("Cache swept",
		zap.String("kind", string(c.kind)),
		zap.Int("freed", len(discard)))
	return len(discard)
}

// DisposeAll frees every entry unconditionally.
func (c *Cache[T]) DisposeAll() {
	c.mu.Lock()
	discard := make([]T, 0, len(c.entries))
	for _, e := range c.ordered() {
		discard = append(discard, e.Value)
		c.stats.Disposals++
	}
	c.entries = make(map[Handle]*Entry[T])
	c.byKey = make(map[string]Handle)
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)

	c.disposeValues(discard)
	logger.Log.Info("Cache cleared",
		zap.String("kind", string(c.kind)),
		zap.Int("freed", len(discard)))
}

func (c *Cache[T]) Rename(h Handle, name string) error {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return notFound(c.kind, h)
	}
	e.Name = name
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)
	return nil
}

// Update replaces the value of h in place. The handle, key and reference
// count are unchanged. If fn fails nothing is modified.
func (c *Cache[T]) Update(h Handle, fn func(T) (T, error)) error {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return notFound(c.kind, h)
	}
	v, err := fn(e.Value)
	if err != nil {
		c.mu.Unlock()
		return fmt.Errorf("%s %s: %w", c.kind, h, err)
	}
	e.Value = v
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)
	return nil
}

// Rekey moves h to key, so later loads and registrations of key find it and
// those of its old key do not. An empty key removes h from deduplication.
// Rekeying onto a key held by another entry fails.
func (c *Cache[T]) Rekey(h Handle, key string) error {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return notFound(c.kind, h)
	}
	if e.Key == key {
		c.mu.Unlock()
		return nil
	}
	if other, taken := c.byKey[key]; key != "" && taken && other != h {
		c.mu.Unlock()
		return fmt.Errorf("%s %s: key %q is held by %s", c.kind, h, key, other)
	}
	if e.Key != "" && c.byKey[e.Key] == h {
		delete(c.byKey, e.Key)
	}
	e.Key = key
	if key != "" {
		c.byKey[key] = h
	}
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)
	return nil
}

// UpdateWhere calls fn for every entry and keeps the values for which it
// reports a change. All changes are published as one snapshot.
func (c *Cache[T]) UpdateWhere(fn func(h Handle, v T) (T, bool)) []Handle {
	c.mu.Lock()
	var changed []Handle
	for _, e := range c.ordered() {
		if v, ok := fn(e.ID, e.Value); ok {
			e.Value = v
			changed = append(changed, e.ID)
		}
	}
	if len(changed) == 0 {
		c.mu.Unlock()
		return nil
	}
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)
	return changed
}

// Clone stores a copy of h under a new handle with one reference. Clones have
// no key and are never deduplicated.
func (c *Cache[T]) Clone(h Handle, name string, clone func(T) (T, error)) (Handle, error) {
	c.mu.Lock()
	e, ok := c.entries[h]
	if !ok {
		c.mu.Unlock()
		return "", notFound(c.kind, h)
	}
	v, err := clone(e.Value)
	if err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("clone %s %s: %w", c.kind, h, err)
	}
	if name == "" {
		name = e.Name
	}
	n := c.insertLocked("", name, v)
	n.refs = 1
	snap := c.publishLocked()
	c.mu.Unlock()
	c.notify.publish(snap)
	return n.ID, nil
}

// Find returns the handles whose values match pred, in creation order.
func (c *Cache[T]) Find(pred func(h Handle, v T) bool) []Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Handle
	for _, e := range c.ordered() {
		if pred(e.ID, e.Value) {
			out = append(out, e.ID)
		}
	}
	return out
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns the current state under the version of the last
// published change.
func (c *Cache[T]) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Cache[T]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Live = len(c.entries)
	return s
}

// LogStats logs current cache statistics.
func (c *Cache[T]) LogStats() {
	s := c.Stats()
	hitRate := 0.0
	if s.Hits+s.Misses > 0 {
		hitRate = float64(s.Hits) / float64(s.Hits+s.Misses)
	}
	logger.Log.Info("Cache stats",
		zap.String("kind", string(c.kind)),
		zap.Int("live", s.Live),
		zap.Int("loads", s.Loads),
		zap.Int("hits", s.Hits),
		zap.Int("misses", s.Misses),
		zap.Int("coalesced", s.Coalesced),
		zap.Int("failures", s.Failures),
		zap.Int("disposals", s.Disposals),
		zap.Float64("hitRate", hitRate))
}

// Subscribe registers fn for every snapshot published after a mutation.
// The returned function unsubscribes.
func (c *Cache[T]) Subscribe(fn func(Snapshot)) func() {
	return c.notify.subscribe(fn)
}

func (c *Cache[T]) acquireLocked(e *Entry[T]) {
	e.refs++
	e.disposable = false
}

func (c *Cache[T]) insertLocked(key, name string, value T) *Entry[T] {
	c.seq++
	e := &Entry[T]{
		ID:        NewHandle(),
		Key:       key,
		Name:      name,
		Value:     value,
		CreatedAt: c.now(),
		seq:       c.seq,
	}
	c.entries[e.ID] = e
	if key != "" {
		c.byKey[key] = e.ID
	}
	return e
}

func (c *Cache[T]) removeLocked(e *Entry[T]) {
	delete(c.entries, e.ID)
	if e.Key != "" && c.byKey[e.Key] == e.ID {
		delete(c.byKey, e.Key)
	}
	c.stats.Disposals++
}

func (c *Cache[T]) ordered() []*Entry[T] {
	out := make([]*Entry[T], 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// publishLocked advances the version for a mutation and returns the
// snapshot to publish.
func (c *Cache[T]) publishLocked() Snapshot {
	c.version++
	return c.snapshotLocked()
}

func (c *Cache[T]) snapshotLocked() Snapshot {
	entries := make([]Info, 0, len(c.entries))
	for _, e := range c.ordered() {
		entries = append(entries, e.info())
	}
	return Snapshot{Kind: c.kind, Version: c.version, Entries: entries}
}

func (c *Cache[T]) disposeValues(values []T) {
	if c.dispose == nil {
		return
	}
	for _, v := range values {
		c.dispose(v)
	}
}
