package watcher

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	internal "github.com/openstandia/connector-csv/csvconn"
	"github.com/openstandia/connector-csv/csvconn/filesystem/common"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher reports changes of a fixed set of files. It watches their
// parent directories so that files replaced by rename are still seen.
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	errorChan chan error
	files     map[string]bool
	dirs      []string
	logger    zerolog.Logger
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewFileWatcher creates a watcher for files. Events are delivered in
// debounced batches per file through Changes.
func NewFileWatcher(config Config, files ...string) (*FileWatcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	def := DefaultConfig()
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = def.DebounceDelay
	}
	if config.QueueCapacity <= 0 {
		config.QueueCapacity = def.QueueCapacity
	}

	logger := internal.GetLogger()
	if config.Logger != nil {
		logger = *config.Logger
	}

	pathUtils := common.NewPathUtils()
	watched := make(map[string]bool, len(files))
	dirSet := make(map[string]bool)
	for _, f := range files {
		if err := pathUtils.ValidatePath(f); err != nil {
			return nil, fmt.Errorf("invalid watch path %q: %w", f, err)
		}
		p := pathUtils.NormalizePath(f)
		watched[p] = true
		dirSet[filepath.Dir(p)] = true
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	for _, d := range dirs {
		if err := fsWatcher.Add(d); err != nil {
			_ = fsWatcher.Close()
			return nil, common.NewIOError("watch directory", d, err)
		}
	}

	return &FileWatcher{
		watcher:   fsWatcher,
		debouncer: NewDebouncer(config.DebounceDelay, config.MaxDebounceDelay, config.QueueCapacity),
		errorChan: make(chan error, 10),
		files:     watched,
		dirs:      dirs,
		logger:    logger.With().Str("component", "watcher").Logger(),
		done:      make(chan struct{}),
	}, nil
}

// Start begins delivering events
func (w *FileWatcher) Start() {
	w.wg.Add(1)
	go w.watchLoop()
	w.logger.Info().Int("files", len(w.files)).Strs("dirs", w.dirs).Msg("File watcher started")
}

// Changes returns the debounced event batches, one batch per file
func (w *FileWatcher) Changes() <-chan []Event {
	return w.debouncer.Events()
}

// Errors returns the error channel
func (w *FileWatcher) Errors() <-chan error {
	return w.errorChan
}

// Close stops watching and closes both channels
func (w *FileWatcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
		w.debouncer.Close()
		close(w.errorChan)
		w.logger.Info().Msg("File watcher closed")
	})
	return err
}

func (w *FileWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if e, ok := w.convertEvent(event); ok {
				w.logger.Debug().Stringer("type", e.Type).Str("path", e.Path).Msg("File event")
				w.debouncer.Add(e)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errorChan <- err:
			default:
				w.logger.Warn().Err(err).Msg("Error channel full, dropping error")
			}
		}
	}
}

// convertEvent keeps content changes of watched files only
func (w *FileWatcher) convertEvent(event fsnotify.Event) (Event, bool) {
	path := filepath.Clean(event.Name)
	if !w.files[path] {
		return Event{}, false
	}

	var eventType EventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = EventCreate
	case event.Has(fsnotify.Write):
		eventType = EventWrite
	case event.Has(fsnotify.Remove):
		eventType = EventRemove
	case event.Has(fsnotify.Rename):
		eventType = EventRename
	default:
		return Event{}, false
	}

	return Event{Type: eventType, Path: path, Timestamp: time.Now()}, true
}
