// Package watch reloads textures when their source files change on disk.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"GopherScene/internal/assets"
	"GopherScene/internal/config"
	"GopherScene/internal/loader"
	"GopherScene/internal/logger"
	"GopherScene/internal/resource"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher maps texture source files under a root directory to the texture
// handles decoded from them.
type Watcher struct {
	lib      *assets.Library
	root     string
	debounce time.Duration
	dispatch func(func())
	onReload func(h resource.Handle, materials int, err error)

	fs   *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	byPath  map[string]map[resource.Handle]bool
	dirs    map[string]int
	pending map[string]*time.Timer
	closed  bool
}

type Option func(*Watcher)

// WithDispatch runs reloads through fn, e.g. a runtime's Post, instead of on
// the watcher goroutine.
func WithDispatch(fn func(func())) Option {
	return func(w *Watcher) { w.dispatch = fn }
}

// WithReloadHook is called after every reload attempt.
func WithReloadHook(fn func(h resource.Handle, materials int, err error)) Option {
	return func(w *Watcher) { w.onReload = fn }
}

// Textures starts watching for lib, resolving texture sources against root.
func Textures(lib *assets.Library, root string, cfg config.Watch, opts ...Option) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("texture watcher: %w", err)
	}
	w := &Watcher{
		lib:      lib,
		root:     root,
		debounce: cfg.Debounce,
		dispatch: func(fn func()) { fn() },
		fs:       fsw,
		done:     make(chan struct{}),
		byPath:   make(map[string]map[resource.Handle]bool),
		dirs:     make(map[string]int),
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logger.Log.Warn("Texture watcher error", zap.Error(err))
		}
	}
}

// Watch starts reloading h when its source file changes. Directories are
// watched rather than files so editors that replace files are seen.
func (w *Watcher) Watch(h resource.Handle) error {
	tex, ok := w.lib.PeekTexture(h)
	if !ok {
		return fmt.Errorf("%s %s: %w", resource.KindTexture, h, resource.ErrNotFound)
	}
	if tex.Source == "" {
		return fmt.Errorf("texture %s has no source file", h)
	}
	path := w.pathFor(tex.Source)

	w.mu.Lock()
	defer w.mu.Unlock()
	handles := w.byPath[path]
	if handles == nil {
		handles = make(map[resource.Handle]bool)
		w.byPath[path] = handles
	}
	if handles[h] {
		return nil
	}
	dir := filepath.Dir(path)
	if w.dirs[dir] == 0 {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	handles[h] = true
	logger.Log.Debug("Watching texture", zap.String("handle", string(h)), zap.String("path", path))
	return nil
}

// Unwatch stops reloading h.
func (w *Watcher) Unwatch(h resource.Handle) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, handles := range w.byPath {
		if !handles[h] {
			continue
		}
		delete(handles, h)
		if len(handles) == 0 {
			delete(w.byPath, path)
		}
		dir := filepath.Dir(path)
		if w.dirs[dir]--; w.dirs[dir] <= 0 {
			delete(w.dirs, dir)
			_ = w.fs.Remove(dir)
		}
		return true
	}
	return false
}

// Watched is the number of watched texture handles.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, handles := range w.byPath {
		n += len(handles)
	}
	return n
}

// Close stops watching and drops reloads still waiting out the debounce.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) pathFor(source string) string {
	return filepath.Clean(filepath.Join(w.root, filepath.FromSlash(loader.CleanPath(source))))
}

// handleEvent schedules a reload of every texture decoded from the changed
// file and returns how many are scheduled. With a debounce the reload runs
// once the file has been quiet for that long; each event restarts the wait.
func (w *Watcher) handleEvent(ev fsnotify.Event) int {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return 0
	}
	path := filepath.Clean(ev.Name)

	w.mu.Lock()
	n := len(w.byPath[path])
	if n == 0 || w.closed {
		w.mu.Unlock()
		return 0
	}
	if w.debounce <= 0 {
		w.mu.Unlock()
		w.fire(path)
		return n
	}
	if t, ok := w.pending[path]; ok {
		t.Reset(w.debounce)
	} else {
		w.pending[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
	}
	w.mu.Unlock()
	return n
}

// fire dispatches reloads for the handles watched at path when it runs, so
// handles unwatched during the debounce are skipped.
func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	if w.closed {
		w.mu.Unlock()
		return
	}
	handles := make([]resource.Handle, 0, len(w.byPath[path]))
	for h := range w.byPath[path] {
		handles = append(handles, h)
	}
	w.mu.Unlock()

	for _, h := range handles {
		h := h
		w.dispatch(func() { w.reload(h) })
	}
}

func (w *Watcher) reload(h resource.Handle) {
	n, err := w.lib.ReloadTexture(context.Background(), h)
	if err != nil {
		logger.Log.Warn("Texture reload failed", zap.String("handle", string(h)), zap.Error(err))
	} else {
		logger.Log.Info("Texture reloaded", zap.String("handle", string(h)), zap.Int("materials", n))
	}
	if w.onReload != nil {
		w.onReload(h, n, err)
	}
}
