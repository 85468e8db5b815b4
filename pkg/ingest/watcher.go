package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultDebounce is how long Watcher waits after the last change before reloading
	DefaultDebounce = 500 * time.Millisecond
	// DefaultRetryInterval is how often Watcher retries watching a missing directory
	DefaultRetryInterval = 5 * time.Second
)

// Watcher reloads a detections file whenever it is written or recreated
type Watcher struct {
	path     string
	loader   *Loader
	debounce time.Duration
	retry    time.Duration
	logger   logrus.FieldLogger
}

// WatcherOption configures a Watcher
type WatcherOption func(*Watcher)

// WithDebounce sets the quiet period before a reload
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithRetryInterval sets how often a directory that cannot be watched is retried
func WithRetryInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.retry = d }
}

// WithWatcherLogger sets the logger
func WithWatcherLogger(logger logrus.FieldLogger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// NewWatcher creates a watcher for the file at path
func NewWatcher(path string, loader *Loader, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		path:     filepath.Clean(path),
		loader:   loader,
		debounce: DefaultDebounce,
		retry:    DefaultRetryInterval,
		logger:   loader.logger,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run loads the file if it exists, then watches its directory until ctx is
// done. A directory that cannot be watched yet is retried until ctx is done.
// Load failures are logged; only a failure to create the watcher is returned.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	log := w.logger.WithField("path", w.path)
	if !w.addDir(ctx, watcher, log) {
		log.Info("Stopped watching detections file")
		return nil
	}
	log.Info("Watching detections file")

	if _, err := os.Stat(w.path); err == nil {
		w.reload(ctx, log)
	} else if errors.Is(err, os.ErrNotExist) {
		log.Warn("Detections file does not exist yet")
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stopped watching detections file")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path || !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			log.WithField("op", event.Op.String()).Debug("Detections file changed")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			reload = timer.C

		case <-reload:
			reload = nil
			w.reload(ctx, log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("Watcher error")
		}
	}
}

// addDir reports false if ctx ended before the directory could be watched
func (w *Watcher) addDir(ctx context.Context, watcher *fsnotify.Watcher, log logrus.FieldLogger) bool {
	dir := filepath.Dir(w.path)
	for attempt := 1; ; attempt++ {
		err := watcher.Add(dir)
		if err == nil {
			return true
		}
		entry := log.WithError(err).WithField("attempt", attempt)
		if attempt == 1 {
			entry.Errorf("Cannot watch %s, retrying every %s", dir, w.retry)
		} else {
			entry.Debug("Still cannot watch detections directory")
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(w.retry):
		}
	}
}

func (w *Watcher) reload(ctx context.Context, log logrus.FieldLogger) {
	if _, err := w.loader.LoadFile(ctx, w.path); err != nil {
		log.WithError(err).Error("Failed to load detections file")
	}
}
