// Package watcher keeps the indexes in sync with corpus files on disk.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/queryscout/queryscout/internal/indexer"
)

const defaultDebounce = 400 * time.Millisecond

// CorpusWatcher watches corpus directories and feeds file changes to the
// indexer. Writes are debounced per file because editors and exports produce
// bursts of events for one save.
type CorpusWatcher struct {
	indexer    *indexer.Indexer
	roots      []string
	extensions []string
	recursive  bool
	debounce   time.Duration
	logger     *zap.Logger

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	pending  map[string]*time.Timer
	started  bool
	done     chan struct{}
	stopOnce sync.Once
}

func New(ix *indexer.Indexer, roots, extensions []string, recursive bool, logger *zap.Logger) *CorpusWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CorpusWatcher{
		indexer:    ix,
		roots:      roots,
		extensions: extensions,
		recursive:  recursive,
		debounce:   defaultDebounce,
		logger:     logger,
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}
}

// Start begins watching. Roots that do not exist yet are created. The
// watcher runs until ctx is cancelled or Stop is called.
func (w *CorpusWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.fsw = fsw
	w.started = true
	for _, root := range w.roots {
		if err := w.watchTreeLocked(root); err != nil {
			_ = fsw.Close()
			w.fsw = nil
			w.started = false
			w.mu.Unlock()
			return err
		}
	}
	w.mu.Unlock()

	w.logger.Info("corpus watcher started",
		zap.Strings("roots", w.roots),
		zap.Strings("extensions", w.extensions))
	go w.run(ctx)
	return nil
}

// SyncExistingFiles indexes every matching file already present under the
// watched roots. Call after Start to pick up corpus files that predate the
// watcher.
func (w *CorpusWatcher) SyncExistingFiles(ctx context.Context) {
	for _, root := range w.roots {
		filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			if w.matches(path) {
				w.indexFile(ctx, path)
			}
			return nil
		})
	}
}

func (w *CorpusWatcher) run(ctx context.Context) {
	// Capture the fsnotify watcher once: Stop sets w.fsw to nil, and the
	// select must not re-read the field after that. Close closes the
	// channels, so the !ok branches below still terminate the loop.
	w.mu.Lock()
	fsw := w.fsw
	w.mu.Unlock()
	if fsw == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.logger.Debug("watch error", zap.Error(err))
			}
		}
	}
}

func (w *CorpusWatcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	path := ev.Name
	switch {
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addDirectory(ctx, path)
			return
		}
		if w.matches(path) {
			w.scheduleIndex(ctx, path)
		}
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancelPending(path)
		if w.matches(path) {
			if _, err := w.indexer.RemoveSource(ctx, path); err != nil {
				w.logger.Warn("failed to remove vanished source",
					zap.String("path", path), zap.Error(err))
			}
		}
	}
}

// addDirectory starts watching a directory that appeared under a root and
// indexes its contents.
func (w *CorpusWatcher) addDirectory(ctx context.Context, dir string) {
	if !w.recursive {
		return
	}
	w.mu.Lock()
	if w.fsw != nil {
		if err := w.watchTreeLocked(dir); err != nil {
			w.logger.Warn("failed to watch new directory",
				zap.String("path", dir), zap.Error(err))
		}
	}
	w.mu.Unlock()

	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if w.matches(path) {
			w.scheduleIndex(ctx, path)
		}
		return nil
	})
}

func (w *CorpusWatcher) watchTreeLocked(root string) error {
	root = filepath.Clean(root)
	if _, err := os.Stat(root); os.IsNotExist(err) {
		if err := os.MkdirAll(root, 0755); err != nil {
			return err
		}
	}
	if !w.recursive {
		return w.fsw.Add(root)
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fsw.Add(path)
		}
		return nil
	})
}

func (w *CorpusWatcher) matches(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range w.extensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == strings.TrimPrefix(ext, ".") {
			return true
		}
	}
	return false
}

func (w *CorpusWatcher) scheduleIndex(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.indexFile(ctx, path)
	})
}

func (w *CorpusWatcher) indexFile(ctx context.Context, path string) {
	if _, err := w.indexer.IndexFile(ctx, path); err != nil {
		w.logger.Warn("failed to index corpus file",
			zap.String("path", path), zap.Error(err))
	}
}

func (w *CorpusWatcher) cancelPending(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Stop()
		delete(w.pending, path)
	}
}

// Directories returns the watched roots.
func (w *CorpusWatcher) Directories() []string {
	return append([]string(nil), w.roots...)
}

// Stop stops watching and cancels pending work.
func (w *CorpusWatcher) Stop() {
	w.mu.Lock()
	if !w.started || w.fsw == nil {
		w.mu.Unlock()
		return
	}
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	_ = w.fsw.Close()
	w.fsw = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
