// Package watch reports changes to an open document so the viewer can reload
// it.
package watch

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the bursts of events editors produce on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher signals on Changes after the watched file is written, replaced or
// recreated and has then been quiet for the debounce interval.
type Watcher struct {
	fs       *fsnotify.Watcher
	name     string
	debounce time.Duration
	changes  chan struct{}
	done     chan struct{}
	once     sync.Once
	log      *slog.Logger
}

// New watches path. The directory is watched rather than the file, so
// editors that save by rename keep being tracked.
func New(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	w := &Watcher{
		fs:       fw,
		name:     filepath.Base(abs),
		debounce: debounce,
		changes:  make(chan struct{}, 1),
		done:     make(chan struct{}),
		log:      logger,
	}
	go w.run()
	return w, nil
}

// Changes delivers one value per settled change. Unread signals collapse.
// The channel is closed once the watcher stops.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

// Close stops watching.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fs.Close()
	})
	return err
}

func (w *Watcher) run() {
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()
	defer close(w.changes)

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.log.Debug("document event", "op", ev.Op.String(), "file", ev.Name)
			timer.Reset(w.debounce)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)
		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}
