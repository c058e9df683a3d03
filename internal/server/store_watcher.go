package server

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"skillpulse/internal/errors"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceDelay collapses bursts of writes from one pipeline stage into one invalidation
const DefaultDebounceDelay = 500 * time.Millisecond

// StoreWatcher watches the SQLite database file and its journal files and calls
// onChange once per burst of writes
type StoreWatcher struct {
	mu sync.RWMutex

	dbFile string
	names  []string

	fsWatcher     *fsnotify.Watcher
	debounceDelay time.Duration
	debounceTimer *time.Timer

	stopChan   chan struct{}
	changeChan chan struct{}

	onChange func()
	logger   *errors.Logger

	running bool
}

// NewStoreWatcher creates a watcher for dbFile
func NewStoreWatcher(dbFile string, onChange func(), logger *errors.Logger) *StoreWatcher {
	base := filepath.Base(dbFile)
	return &StoreWatcher{
		dbFile:        dbFile,
		names:         []string{base, base + "-wal", base + "-journal"},
		debounceDelay: DefaultDebounceDelay,
		stopChan:      make(chan struct{}),
		changeChan:    make(chan struct{}, 1),
		onChange:      onChange,
		logger:        logger,
	}
}

// Start begins watching the directory holding the database
func (sw *StoreWatcher) Start() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.running {
		return fmt.Errorf("store watcher is already running")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	// SQLite replaces and creates journal files next to the database, so the directory is watched.
	dir := filepath.Dir(sw.dbFile)
	if err := watcher.Add(dir); err != nil {
		if closeErr := watcher.Close(); closeErr != nil && sw.logger != nil {
			sw.logger.LogError(closeErr, "Failed to close file watcher during cleanup")
		}
		return fmt.Errorf("failed to watch directory %s: %w", dir, err)
	}
	sw.fsWatcher = watcher

	sw.running = true
	go sw.watchLoop()

	if sw.logger != nil {
		sw.logger.Info("Store watcher started",
			"file", sw.dbFile,
			"debounce_delay", sw.debounceDelay)
	}
	return nil
}

// Stop stops the watcher
func (sw *StoreWatcher) Stop() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if !sw.running {
		return nil
	}

	close(sw.stopChan)
	if sw.debounceTimer != nil {
		sw.debounceTimer.Stop()
	}
	sw.running = false

	if err := sw.fsWatcher.Close(); err != nil {
		if sw.logger != nil {
			sw.logger.LogError(err, "Failed to close file system watcher")
		}
		return err
	}

	if sw.logger != nil {
		sw.logger.Info("Store watcher stopped")
	}
	return nil
}

// IsRunning returns whether the watcher is currently running
func (sw *StoreWatcher) IsRunning() bool {
	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.running
}

func (sw *StoreWatcher) watchLoop() {
	for {
		select {
		case event, ok := <-sw.fsWatcher.Events:
			if !ok {
				return
			}
			if sw.shouldProcessEvent(event) {
				sw.scheduleChange()
			}

		case err, ok := <-sw.fsWatcher.Errors:
			if !ok {
				return
			}
			if sw.logger != nil {
				sw.logger.LogError(err, "File watcher error")
			}

		case <-sw.changeChan:
			if sw.logger != nil {
				sw.logger.Debug("Store changed, invalidating cached queries", "file", sw.dbFile)
			}
			sw.onChange()

		case <-sw.stopChan:
			return
		}
	}
}

// shouldProcessEvent keeps writes, creations, renames and removals of the database files
func (sw *StoreWatcher) shouldProcessEvent(event fsnotify.Event) bool {
	if !slices.Contains(sw.names, filepath.Base(event.Name)) {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0
}

func (sw *StoreWatcher) scheduleChange() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.debounceTimer != nil {
		sw.debounceTimer.Stop()
	}

	sw.debounceTimer = time.AfterFunc(sw.debounceDelay, func() {
		select {
		case sw.changeChan <- struct{}{}:
		default:
			// a change is already pending
		}
	})
}
