package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/carousel-tv/carousel/internal/logger"
)

const (
	watchDebounceWindow = 500 * time.Millisecond
	// A root must be quiet this long before a rescan fires, so a batch copy
	// triggers one scan instead of one per file
	watchQuietPeriod    = 2 * time.Second
	defaultPollInterval = 30 * time.Second
)

// RescanFunc is invoked with the library root that changed
type RescanFunc func(root string)

// Watcher watches library roots for new or changed video files and triggers
// rescans
type Watcher interface {
	Start() error
	Stop() error
}

// libraryWatcher implements Watcher using fsnotify with polling fallback
type libraryWatcher struct {
	roots        []string
	formats      []string
	rescan       RescanFunc
	pollInterval time.Duration
	quietPeriod  time.Duration

	fsnotifyWatcher *fsnotify.Watcher
	stopChan        chan struct{}
	watchDone       chan struct{}

	mu           sync.Mutex
	pendingRoots map[string]time.Time // root -> last event time
	stopped      bool
}

// NewWatcher creates a watcher over the given library roots. Events for files
// without a supported video extension are ignored.
func NewWatcher(roots []string, formats []string, rescan RescanFunc) (Watcher, error) {
	if len(roots) == 0 {
		return nil, fmt.Errorf("at least one library root is required")
	}
	if rescan == nil {
		return nil, fmt.Errorf("rescan callback cannot be nil")
	}
	if len(formats) == 0 {
		formats = defaultVideoFormats
	}

	return &libraryWatcher{
		roots:        roots,
		formats:      normalizeFormats(formats),
		rescan:       rescan,
		pollInterval: defaultPollInterval,
		quietPeriod:  watchQuietPeriod,
		stopChan:     make(chan struct{}),
		watchDone:    make(chan struct{}),
		pendingRoots: make(map[string]time.Time),
	}, nil
}

// Start begins watching the library roots
func (lw *libraryWatcher) Start() error {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	if lw.stopped {
		return fmt.Errorf("watcher has been stopped")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Log.Warn().
			Err(err).
			Msg("Failed to create fsnotify watcher, falling back to polling")
		lw.fsnotifyWatcher = nil
	} else {
		lw.fsnotifyWatcher = watcher
		for _, root := range lw.roots {
			if err := lw.watchTree(root); err != nil {
				logger.Log.Warn().
					Err(err).
					Str("root", root).
					Msg("Failed to watch library root, falling back to polling")
				_ = watcher.Close()
				lw.fsnotifyWatcher = nil
				break
			}
		}
	}

	go lw.runWatching()

	logger.Log.Info().
		Strs("roots", lw.roots).
		Bool("using_fsnotify", lw.fsnotifyWatcher != nil).
		Msg("Library watcher started")

	return nil
}

// Stop gracefully stops the watcher
func (lw *libraryWatcher) Stop() error {
	lw.mu.Lock()
	if lw.stopped {
		lw.mu.Unlock()
		return nil
	}
	lw.stopped = true
	lw.mu.Unlock()

	close(lw.stopChan)

	if lw.fsnotifyWatcher != nil {
		if err := lw.fsnotifyWatcher.Close(); err != nil {
			logger.Log.Warn().
				Err(err).
				Msg("Error closing fsnotify watcher")
		}
	}

	<-lw.watchDone

	logger.Log.Debug().Msg("Library watcher stopped")
	return nil
}

// watchTree registers a root and all its subdirectories with fsnotify
func (lw *libraryWatcher) watchTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return lw.fsnotifyWatcher.Add(path)
		}
		return nil
	})
}

// runWatching runs the file watching loop (fsnotify or polling)
func (lw *libraryWatcher) runWatching() {
	defer close(lw.watchDone)

	if lw.fsnotifyWatcher != nil {
		lw.startWatching()
	} else {
		lw.startPolling()
	}
}

// startWatching uses fsnotify to watch for file events
func (lw *libraryWatcher) startWatching() {
	ticker := time.NewTicker(watchDebounceWindow)
	defer ticker.Stop()

	for {
		select {
		case <-lw.stopChan:
			return
		case event, ok := <-lw.fsnotifyWatcher.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == fsnotify.Create {
				// New subdirectories must be added to the watch set
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := lw.fsnotifyWatcher.Add(event.Name); err != nil {
						logger.Log.Warn().
							Err(err).
							Str("path", event.Name).
							Msg("Failed to watch new subdirectory")
					}
					continue
				}
			}
			if event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Write == fsnotify.Write ||
				event.Op&fsnotify.Rename == fsnotify.Rename ||
				event.Op&fsnotify.Remove == fsnotify.Remove {
				lw.handleFileEvent(event.Name)
			}
		case err, ok := <-lw.fsnotifyWatcher.Errors:
			if !ok {
				return
			}
			logger.Log.Warn().
				Err(err).
				Msg("fsnotify error, continuing")
		case <-ticker.C:
			lw.processPendingRoots()
		}
	}
}

// startPolling periodically fingerprints each root and rescans on change
func (lw *libraryWatcher) startPolling() {
	ticker := time.NewTicker(lw.pollInterval)
	defer ticker.Stop()

	fingerprints := make(map[string]string)
	for _, root := range lw.roots {
		fingerprints[root] = lw.fingerprint(root)
	}

	for {
		select {
		case <-lw.stopChan:
			return
		case <-ticker.C:
			for _, root := range lw.roots {
				fp := lw.fingerprint(root)
				if fp != fingerprints[root] {
					fingerprints[root] = fp
					logger.Log.Debug().
						Str("root", root).
						Msg("Library change detected via polling")
					lw.rescan(root)
				}
			}
		}
	}
}

// fingerprint summarizes a root's video files (count and newest mod time)
func (lw *libraryWatcher) fingerprint(root string) string {
	var count int
	var newest time.Time

	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if lw.isVideoFile(path) {
			count++
			if info.ModTime().After(newest) {
				newest = info.ModTime()
			}
		}
		return nil
	})

	return fmt.Sprintf("%d:%d", count, newest.UnixNano())
}

// handleFileEvent marks the owning root as pending if the event concerns a
// video file
func (lw *libraryWatcher) handleFileEvent(filePath string) {
	if !lw.isVideoFile(filePath) {
		return
	}

	root := lw.rootFor(filePath)
	if root == "" {
		return
	}

	lw.mu.Lock()
	lw.pendingRoots[root] = time.Now()
	lw.mu.Unlock()
}

// processPendingRoots rescans roots that have been quiet long enough
func (lw *libraryWatcher) processPendingRoots() {
	now := time.Now()

	lw.mu.Lock()
	var due []string
	for root, lastEvent := range lw.pendingRoots {
		if now.Sub(lastEvent) >= lw.quietPeriod {
			due = append(due, root)
			delete(lw.pendingRoots, root)
		}
	}
	lw.mu.Unlock()

	for _, root := range due {
		logger.Log.Info().
			Str("root", root).
			Msg("Library change detected, triggering rescan")
		lw.rescan(root)
	}
}

// rootFor returns the configured library root containing the given path
func (lw *libraryWatcher) rootFor(filePath string) string {
	for _, root := range lw.roots {
		rel, err := filepath.Rel(root, filePath)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return root
	}
	return ""
}

func (lw *libraryWatcher) isVideoFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, supported := range lw.formats {
		if ext == supported {
			return true
		}
	}
	return false
}
