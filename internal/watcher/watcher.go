// Package watcher re-reports project file changes after they settle.
//
// Editors and git checkouts touch many files in bursts. The watcher collects
// changes until no new ones arrive for the debounce delay, then hands the
// whole batch to one callback:
//
//	w, err := watcher.New(root, 2*time.Second, func(paths []string) {
//		ix.Sync(ctx, paths)
//	})
//	if err != nil {
//		return err
//	}
//	return w.Run(ctx)
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/billie-coop/pacer/internal/files"
)

// DefaultDelay is the quiet period used when none is given.
const DefaultDelay = 2 * time.Second

// Watcher monitors a project tree with debouncing.
type Watcher struct {
	root     string
	delay    time.Duration
	onChange func([]string)
	log      *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	stopped bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(w *Watcher) {
		if log != nil {
			w.log = log
		}
	}
}

// New creates a watcher for root. onChange receives slash-separated paths
// relative to root, sorted, each at most once per batch.
func New(root string, delay time.Duration, onChange func([]string), opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("watcher: onChange must not be nil")
	}
	if delay <= 0 {
		delay = DefaultDelay
	}
	w := &Watcher{
		root:     root,
		delay:    delay,
		onChange: onChange,
		log:      zap.NewNop(),
		pending:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Changed records changed paths (relative to root) and restarts the quiet
// period. Ignored and non-indexable paths are dropped.
func (w *Watcher) Changed(paths ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	added := false
	for _, p := range paths {
		p = filepath.ToSlash(p)
		if files.ShouldIgnore(p) || !files.IsIndexable(p) {
			continue
		}
		w.pending[p] = struct{}{}
		added = true
	}
	if !added {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.flush)
}

// flush hands the accumulated batch to onChange outside the lock.
func (w *Watcher) flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.timer = nil
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	sort.Strings(paths)
	w.log.Debug("files settled", zap.Strings("paths", paths))
	w.onChange(paths)
}

// Stop drops pending changes and ignores later ones.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.pending = make(map[string]struct{})
}

// Run watches the tree with fsnotify until ctx ends. New directories are
// picked up as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	defer fsw.Close()
	defer w.Stop()

	if err := w.addTree(fsw, w.root); err != nil {
		return err
	}
	w.log.Info("watching", zap.String("root", w.root), zap.Duration("debounce", w.delay))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handle(fsw, ev)
		}
	}
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fsw, ev.Name); err != nil {
				w.log.Warn("failed to watch new directory", zap.String("dir", rel), zap.Error(err))
			}
			return
		}
	}
	if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.Changed(rel)
	}
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if rel, _ := filepath.Rel(w.root, path); rel != "." && files.ShouldIgnore(rel) {
			return filepath.SkipDir
		}
		if err := fsw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
