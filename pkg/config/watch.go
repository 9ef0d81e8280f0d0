package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/IBM/CRAIG-sub005/pkg/store"
)

// DefaultDebounce is how long a watcher waits after the last change event
// before reloading.
const DefaultDebounce = 300 * time.Millisecond

// DocumentWatcher reloads a document file whenever it changes on disk.
type DocumentWatcher struct {
	path     string
	debounce time.Duration
	logger   zerolog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	ignore  time.Time
}

// NewDocumentWatcher creates a watcher for path.
func NewDocumentWatcher(path string, logger zerolog.Logger) *DocumentWatcher {
	return &DocumentWatcher{
		path:     filepath.Clean(path),
		debounce: DefaultDebounce,
		logger:   logger.With().Str("component", "document-watcher").Str("path", path).Logger(),
	}
}

// SetDebounce changes the debounce delay. Call it before Watch.
func (w *DocumentWatcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// IgnoreUntil suppresses change events until t, so a caller writing the
// file itself does not trigger its own reload.
func (w *DocumentWatcher) IgnoreUntil(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignore = t
}

// Watch starts watching and calls reloadFn with each freshly loaded document
// until ctx is cancelled. The parent directory is watched because editors
// usually replace files rather than write them in place.
func (w *DocumentWatcher) Watch(ctx context.Context, reloadFn func(store.Document) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	go w.processEvents(ctx, watcher, reloadFn)

	w.logger.Info().Msg("Started watching document")
	return nil
}

// processEvents processes file system events and triggers reloads.
func (w *DocumentWatcher) processEvents(ctx context.Context, watcher *fsnotify.Watcher, reloadFn func(store.Document) error) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			w.mu.Lock()
			if time.Now().Before(w.ignore) {
				w.mu.Unlock()
				continue
			}
			w.logger.Debug().Str("op", event.Op.String()).Msg("Document changed")
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, func() {
				if err := w.reload(ctx, reloadFn); err != nil {
					w.logger.Error().Err(err).Msg("Failed to reload document")
				}
			})
			w.mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *DocumentWatcher) reload(ctx context.Context, reloadFn func(store.Document) error) error {
	if ctx.Err() != nil {
		return nil
	}
	doc, err := LoadDocument(ctx, w.path)
	if err != nil {
		return err
	}
	if err := reloadFn(doc); err != nil {
		return fmt.Errorf("failed to apply reloaded document: %w", err)
	}
	w.logger.Info().Int("properties", len(doc)).Msg("Document reloaded")
	return nil
}

// Stop stops watching. It is safe to call more than once.
func (w *DocumentWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}
