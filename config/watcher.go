package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/atomic"

	"github.com/tickbot-robotics/tickbot/logging"
	"github.com/tickbot-robotics/tickbot/utils"
)

// Watcher is a Provider that re-reads its file when it changes on disk. A reload only affects
// lookups made afterwards; values already captured by constructed actions keep their old values.
// A file that fails to parse is logged and the previous snapshot is kept.
type Watcher struct {
	path     string
	logger   logging.Logger
	current  *atomic.Pointer[AttributeMap]
	reloads  *atomic.Int64
	notify   *fsnotify.Watcher
	workers  utils.StoppableWorkers
	onReload func(AttributeMap)
}

// NewWatcher reads path and starts watching it. onReload, if non-nil, is called from the watch
// goroutine after every successful reload.
func NewWatcher(path string, logger logging.Logger, onReload func(AttributeMap)) (*Watcher, error) {
	initial, err := Read(path)
	if err != nil {
		return nil, err
	}
	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// watch the directory so editors that replace the file are still seen
	if err := notify.Add(filepath.Dir(path)); err != nil {
		//nolint:errcheck
		notify.Close()
		return nil, err
	}
	w := &Watcher{
		path:     filepath.Clean(path),
		logger:   logger,
		current:  atomic.NewPointer(&initial),
		reloads:  atomic.NewInt64(0),
		notify:   notify,
		onReload: onReload,
	}
	w.workers = utils.NewStoppableWorkers(w.watch)
	return w, nil
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.notify.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			w.reload()
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("config watch error", "path", w.path, "error", err)
		}
	}
}

func (w *Watcher) reload() {
	am, err := Read(w.path)
	if err != nil {
		w.logger.Warnw("keeping previous config, reload failed", "path", w.path, "error", err)
		return
	}
	w.current.Store(&am)
	w.reloads.Inc()
	w.logger.Infow("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(am)
	}
}

// Get implements Provider against the latest snapshot.
func (w *Watcher) Get(path string) (interface{}, error) {
	return (*w.current.Load()).Get(path)
}

// Snapshot returns the latest parsed config.
func (w *Watcher) Snapshot() AttributeMap {
	return *w.current.Load()
}

// Reloads returns how many successful reloads happened.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Close stops watching.
func (w *Watcher) Close() error {
	err := w.notify.Close()
	w.workers.Stop()
	return err
}
