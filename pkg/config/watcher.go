package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openfroyo/statues/pkg/telemetry"
)

// DefaultDebounce is the quiet period after the last change before a
// watched model file is reloaded.
const DefaultDebounce = 500 * time.Millisecond

// ReloadFunc receives the reloaded model, or the error that prevented it.
type ReloadFunc func(spec *ModelSpec, err error)

// Watcher reloads a model file when it changes.
type Watcher struct {
	loader   *Loader
	path     string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	logger   *telemetry.Logger

	mu    sync.Mutex
	timer *time.Timer
	done  chan struct{}
}

// Watch starts watching path and calls fn after each change settles.
// The directory is watched rather than the file so that editors that save
// by renaming a temporary file are seen. Watching stops when ctx is done or
// Close is called.
func (l *Loader) Watch(ctx context.Context, path string, debounce time.Duration, fn ReloadFunc) (*Watcher, error) {
	if _, err := FormatOf(path); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{
		loader:   l,
		path:     abs,
		debounce: debounce,
		watcher:  fsw,
		logger:   telemetry.FromContext(ctx).NewComponentLogger("watcher").WithField("path", abs),
		done:     make(chan struct{}),
	}

	go w.processEvents(ctx, fn)

	w.logger.Info("started watching model file")
	return w, nil
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	err := w.watcher.Close()
	<-w.done
	return err
}

// processEvents debounces file system events into reloads.
func (w *Watcher) processEvents(ctx context.Context, fn ReloadFunc) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			_ = w.watcher.Close()
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.logger.WithField("op", event.Op.String()).Debug("model file changed")

			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, func() { w.reload(ctx, fn) })
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("watcher error")
		}
	}
}

func (w *Watcher) reload(ctx context.Context, fn ReloadFunc) {
	spec, err := w.loader.Load(ctx, w.path)
	if err != nil {
		w.logger.WithError(err).Warn("failed to reload model file")
		fn(nil, err)
		return
	}

	if tel := telemetry.FromTelemetryContext(ctx); tel != nil {
		_ = tel.Events.PublishModelLoaded(spec.Name, w.path, true)
	}
	w.logger.WithModel(spec.Name).Info("model file reloaded")
	fn(spec, nil)
}
