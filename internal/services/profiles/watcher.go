package profiles

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/j-veylop/gemini-quota-switch/internal/logger"
)

const debounceInterval = 100 * time.Millisecond

// Watcher calls onChange when the active directory's current marker changes.
type Watcher struct {
	watcher       *fsnotify.Watcher
	onChange      func()
	stopChan      chan struct{}
	debounceTimer *time.Timer
	dir           string
	mu            sync.Mutex
	closed        bool
	closeOnce     sync.Once
}

// NewWatcher starts watching activeDir. The directory must exist.
func NewWatcher(activeDir string, onChange func()) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory to catch the marker being recreated.
	if err := watcher.Add(activeDir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil {
			logger.Error("failed to close watcher", "error", closeErr)
		}
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		onChange: onChange,
		stopChan: make(chan struct{}),
		dir:      activeDir,
	}
	go w.watchLoop()
	return w, nil
}

// watchLoop handles file system events with debouncing.
func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) != MarkerFile {
				continue
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove) != 0 {
				w.mu.Lock()
				if w.debounceTimer != nil {
					w.debounceTimer.Stop()
				}
				w.debounceTimer = time.AfterFunc(debounceInterval, w.fire)
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("Active profile watcher error", "dir", w.dir, "error", err)

		case <-w.stopChan:
			return
		}
	}
}

// fire runs onChange under mu so that Close waits for an in-flight callback.
func (w *Watcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	logger.Debug("Current profile marker changed", "dir", w.dir)
	if w.onChange != nil {
		w.onChange()
	}
}

// Close stops the watcher. onChange is never called once Close returns. It is
// safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.stopChan)

		w.mu.Lock()
		w.closed = true
		if w.debounceTimer != nil {
			w.debounceTimer.Stop()
		}
		w.mu.Unlock()

		err = w.watcher.Close()
	})
	return err
}
