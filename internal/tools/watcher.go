package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/agentgate/internal/logging"
	"github.com/ShayCichocki/agentgate/pkg/models"
)

// Watcher rebuilds a registry whenever its file changes on disk.
type Watcher struct {
	path     string
	registry *Registry
	deps     BuildDeps
	extra    []models.Tool
	logger   *logging.Logger
	debounce time.Duration
	closer   func() error
	onReload func(names []string, err error)

	// grace delays closing replaced tools; runs that resolved them before a
	// reload keep using them until they finish.
	grace   time.Duration
	mu      sync.Mutex
	retired map[*retiredTools]struct{}
}

// retiredTools is a replaced tool set waiting to be closed.
type retiredTools struct {
	timer *time.Timer
	close func() error
}

// NewWatcher creates a watcher for the registry file at path. The extra tools
// (such as summarize) are kept in the registry across reloads.
func NewWatcher(path string, registry *Registry, deps BuildDeps, extra []models.Tool, closer func() error) *Watcher {
	return &Watcher{
		path:     path,
		registry: registry,
		deps:     deps,
		extra:    extra,
		logger:   deps.Logger.With("watcher"),
		debounce: 200 * time.Millisecond,
		closer:   closer,
		retired:  make(map[*retiredTools]struct{}),
	}
}

// SetCloseGrace sets how long replaced tools stay open after a reload. Zero
// closes them as soon as they are replaced.
func (w *Watcher) SetCloseGrace(d time.Duration) {
	w.grace = d
}

// OnReload registers a callback invoked after each reload attempt.
func (w *Watcher) OnReload(fn func(names []string, err error)) {
	w.onReload = fn
}

// Run watches until ctx is cancelled. It watches the parent directory so
// editors that replace the file by rename are handled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.Infof("watching %s", w.path)

	base := filepath.Base(w.path)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.closeRetired()
			if w.closer != nil {
				return w.closer()
			}
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.reload()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Infof("watch error: %v", err)
		}
	}
}

// reload rebuilds the tools and swaps them in. On failure the registry keeps
// its previous tools.
func (w *Watcher) reload() {
	names, err := w.Reload()
	if err != nil {
		w.logger.Infof("reload %s failed: %v", w.path, err)
	} else {
		w.logger.Infof("reloaded %d tools from %s", len(names), w.path)
	}
	if w.onReload != nil {
		w.onReload(names, err)
	}
}

// Reload loads the file now and replaces the registry contents.
func (w *Watcher) Reload() ([]string, error) {
	f, err := LoadFile(w.path)
	if err != nil {
		return nil, err
	}
	built, closer, err := f.Build(w.deps)
	if err != nil {
		return nil, err
	}
	if err := w.registry.Replace(append(built, w.extra...)); err != nil {
		closer()
		return nil, err
	}
	w.retire(w.closer)
	w.closer = closer
	return w.registry.Names(), nil
}

// retire closes a replaced tool set once the grace period has passed.
func (w *Watcher) retire(closer func() error) {
	if closer == nil {
		return
	}
	if w.grace <= 0 {
		w.closeTools(closer)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	r := &retiredTools{close: closer}
	r.timer = time.AfterFunc(w.grace, func() {
		w.mu.Lock()
		delete(w.retired, r)
		w.mu.Unlock()
		w.closeTools(closer)
	})
	w.retired[r] = struct{}{}
}

// closeRetired closes every replaced tool set whose grace period is still
// running.
func (w *Watcher) closeRetired() {
	w.mu.Lock()
	var pending []func() error
	for r := range w.retired {
		// A timer that already fired closes its own tools.
		if r.timer.Stop() {
			pending = append(pending, r.close)
		}
		delete(w.retired, r)
	}
	w.mu.Unlock()

	for _, closer := range pending {
		w.closeTools(closer)
	}
}

func (w *Watcher) closeTools(closer func() error) {
	if err := closer(); err != nil {
		w.logger.Infof("close previous tools: %v", err)
	}
}
