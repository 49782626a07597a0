package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"project-tracker/internal/observability"
)

const defaultDebounce = 500 * time.Millisecond

// ChangeCallback is called once per burst of changes to a watched file.
type ChangeCallback func(name, path string)

// Watcher reports changes to individual files. It watches each file's
// parent directory so that editors which replace files by rename are
// still seen.
type Watcher struct {
	mu       sync.RWMutex
	watchers map[string]*fileWatcher // name → watcher
	debounce time.Duration
	callback ChangeCallback
}

type fileWatcher struct {
	name      string
	path      string
	fsWatcher *fsnotify.Watcher
	cancel    chan struct{}
}

// New creates a file watcher. A non-positive debounce uses 500ms.
func New(debounce time.Duration, callback ChangeCallback) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		watchers: make(map[string]*fileWatcher),
		debounce: debounce,
		callback: callback,
	}
}

// Watch starts watching path under name. Watching a name again replaces
// the previous watch.
func (w *Watcher) Watch(name, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	fsW, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsW.Add(filepath.Dir(abs)); err != nil {
		fsW.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	fw := &fileWatcher{
		name:      name,
		path:      abs,
		fsWatcher: fsW,
		cancel:    make(chan struct{}),
	}

	w.Unwatch(name)
	w.mu.Lock()
	w.watchers[name] = fw
	w.mu.Unlock()

	go w.watchLoop(fw)
	return nil
}

// Unwatch stops watching name.
func (w *Watcher) Unwatch(name string) {
	w.mu.Lock()
	fw, ok := w.watchers[name]
	if ok {
		delete(w.watchers, name)
	}
	w.mu.Unlock()

	if ok {
		close(fw.cancel)
		fw.fsWatcher.Close()
	}
}

// Watching reports whether name is being watched.
func (w *Watcher) Watching(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.watchers[name]
	return ok
}

// watchLoop processes fsnotify events with debouncing.
func (w *Watcher) watchLoop(fw *fileWatcher) {
	var timer *time.Timer
	log := observability.WithFields("watch", fw.name, "path", fw.path)

	for {
		select {
		case <-fw.cancel:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-fw.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != fw.path {
				continue
			}
			if event.Op == fsnotify.Chmod {
				continue
			}

			// Debounce: reset timer on each event.
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				log.Debug("file changed")
				if w.callback != nil {
					w.callback(fw.name, fw.path)
				}
			})

		case err, ok := <-fw.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watcher error", "error", err)
		}
	}
}

// Shutdown stops all watchers.
func (w *Watcher) Shutdown() {
	w.mu.Lock()
	names := make([]string, 0, len(w.watchers))
	for name := range w.watchers {
		names = append(names, name)
	}
	w.mu.Unlock()

	for _, name := range names {
		w.Unwatch(name)
	}
}
