package ingest

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"cuebase/logger"

	"github.com/fsnotify/fsnotify"
)

// settleDelay is how long a file must stay quiet after its last write event
// before it is imported. Copies into the watch directory arrive as many small
// writes; importing mid-copy would hash a truncated file.
const settleDelay = 2 * time.Second

// Watcher auto-imports audio files dropped into a directory.
type Watcher struct {
	svc *Service
	dir string

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over dir.
func NewWatcher(svc *Service, dir string) *Watcher {
	return &Watcher{svc: svc, dir: dir, pending: make(map[string]*time.Timer)}
}

// Run scans the directory once, then watches it until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.scanExisting()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return err
	}
	logger.Info("Watching import directory", logger.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) != 0 && IsAudioFile(event.Name) {
				w.schedule(event.Name)
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("Watcher error", logger.ErrorField(err))
		}
	}
}

func (w *Watcher) scanExisting() {
	err := filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsAudioFile(path) {
			w.importOne(path)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Initial watch-directory scan failed",
			logger.String("dir", w.dir), logger.ErrorField(err))
	}
}

// schedule (re)arms the settle timer for a path; the import fires once the
// writes stop.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(settleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(settleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.importOne(path)
	})
}

func (w *Watcher) importOne(path string) {
	if _, err := w.svc.ImportFile(path); err != nil {
		logger.Error("Auto-import failed", logger.String("path", path), logger.ErrorField(err))
	}
}
