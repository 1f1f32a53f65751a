// Package watcher monitors the taskwarrior data directory in serve mode.
// Task state can change underneath the plugin at any time (another terminal,
// a sync run), so any write to the data files invalidates the export cache.
// Events are debounced to batch taskwarrior's multi-file writes.
package watcher

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the default window for batching rapid changes.
const DefaultDebounce = 500 * time.Millisecond

// Config holds watcher settings.
type Config struct {
	Paths    []string      // files or directories to watch
	Debounce time.Duration // debounce window, DefaultDebounce if zero
	OnChange func()        // invoked after the debounce window closes
}

// Watcher invalidates cached task state when watched paths change.
type Watcher struct {
	cfg     Config
	fsw     *fsnotify.Watcher
	log     zerolog.Logger
	stopCh  chan struct{}
	stopped bool
	mu      sync.Mutex
}

// New creates a Watcher.
func New(cfg Config, log zerolog.Logger) (*Watcher, error) {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		log:    log,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins watching the configured paths. Paths that do not exist yet
// are skipped; taskwarrior creates its data directory lazily.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher has been stopped and cannot be restarted")
	}
	w.mu.Unlock()

	watching := 0
	for _, path := range w.cfg.Paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			w.log.Debug().Str("path", path).Msg("skipping missing watch path")
			continue
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch path %q: %w", path, err)
		}
		watching++
	}
	w.log.Debug().Int("paths", watching).Msg("watcher started")

	go w.eventLoop()
	return nil
}

// Stop stops the watcher and cleans up resources.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
	_ = w.fsw.Close()
}

// eventLoop coalesces fsnotify events into OnChange calls.
func (w *Watcher) eventLoop() {
	var timer *time.Timer
	fire := make(chan struct{}, 1)

	reset := func() {
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.cfg.Debounce, func() {
			select {
			case fire <- struct{}{}:
			default:
			}
		})
	}

	for {
		select {
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("data change")
			reset()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-fire:
			if w.cfg.OnChange != nil {
				w.cfg.OnChange()
			}
		}
	}
}
