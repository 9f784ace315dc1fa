package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// DirWatcher follows a directory the camera writes one JSON document per
// frame into.
type DirWatcher struct {
	dir  string
	gate *gate
}

func NewDirWatcher(dir string, processedCap int) *DirWatcher {
	return &DirWatcher{dir: dir, gate: newGate(processedCap)}
}

// Run watches the directory until ctx is done. Files present before Run
// starts are ignored.
func (w *DirWatcher) Run(ctx context.Context, out chan<- Record) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	slog.Info("watching results directory", "dir", w.dir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return errors.New("watcher closed")
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".json") {
				continue
			}
			if err := w.handleFile(ctx, ev.Name, out); err != nil {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("watcher closed")
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// handleFile only returns an error when ctx is done.
func (w *DirWatcher) handleFile(ctx context.Context, path string, out chan<- Record) error {
	if w.gate.seen(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Debug("read detection file", "path", path, "error", err)
		return nil
	}

	rec, ok := w.gate.admit(path, data)
	if !ok {
		return nil
	}
	slog.Debug("processing detection file", "file", filepath.Base(path), "detections", len(rec.Event.Detections))
	return emit(ctx, out, rec)
}
