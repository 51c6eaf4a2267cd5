// Package watch analyzes label images as they appear in watched directories.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/nutrigood/internal/batch"
	"github.com/MeKo-Tech/nutrigood/internal/classifier"
	"github.com/MeKo-Tech/nutrigood/internal/history"
	"github.com/MeKo-Tech/nutrigood/internal/report"
	"github.com/fsnotify/fsnotify"
)

// Config configures a Watcher.
type Config struct {
	Dirs            []string // watched recursively
	IncludePatterns []string
	ExcludePatterns []string
	InitialScan     bool          // analyze files already present at start
	Debounce        time.Duration // coalesce bursts of events per file
	Attributes      classifier.Attributes
}

// Processor analyzes one image file.
type Processor interface {
	ProcessFile(ctx context.Context, path string, attrs classifier.Attributes) (*report.Report, error)
}

// Recorder stores finished reports.
type Recorder interface {
	Save(ctx context.Context, r *report.Report) (history.Record, error)
}

// Watcher feeds new and changed images to a Processor.
type Watcher struct {
	cfg      Config
	proc     Processor
	recorder Recorder
	onReport func(*report.Report)
	logger   *slog.Logger

	// last processed modification time per path
	done map[string]time.Time
}

// New creates a Watcher. recorder may be nil.
func New(cfg Config, proc Processor, recorder Recorder, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		cfg:      cfg,
		proc:     proc,
		recorder: recorder,
		logger:   logger,
		done:     make(map[string]time.Time),
	}
}

// OnReport registers fn to receive every report.
func (w *Watcher) OnReport(fn func(*report.Report)) *Watcher {
	w.onReport = fn
	return w
}

// Run watches until ctx is canceled. Files are processed one at a time in
// the order their debounce windows close.
func (w *Watcher) Run(ctx context.Context) error {
	if len(w.cfg.Dirs) == 0 {
		return errors.New("no directories to watch")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	var initial []string
	for _, dir := range w.cfg.Dirs {
		found, err := w.addTree(fw, dir)
		if err != nil {
			return err
		}
		initial = append(initial, found...)
	}
	w.logger.Info("Watching for label images", "dirs", w.cfg.Dirs, "initial", len(initial))

	if w.cfg.InitialScan {
		for _, path := range initial {
			if ctx.Err() != nil {
				return nil
			}
			w.handle(ctx, path)
		}
	}

	pending := make(map[string]time.Time)
	tick := w.cfg.Debounce / 2
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					found, err := w.addTree(fw, ev.Name)
					if err != nil {
						w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err)
					}
					for _, p := range found {
						pending[p] = time.Now()
					}
					continue
				}
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) {
				if w.matches(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case now := <-ticker.C:
			for path, last := range pending {
				if now.Sub(last) < w.cfg.Debounce {
					continue
				}
				delete(pending, path)
				w.handle(ctx, path)
			}
		}
	}
}

// addTree watches root and its subdirectories and returns matching files.
func (w *Watcher) addTree(fw *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		if w.matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	return files, nil
}

func (w *Watcher) matches(path string) bool {
	return batch.ShouldIncludeFile(path, w.cfg.IncludePatterns, w.cfg.ExcludePatterns)
}

// handle analyzes path unless it was already analyzed at its current
// modification time.
func (w *Watcher) handle(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if last, ok := w.done[path]; ok && !info.ModTime().After(last) {
		return
	}
	w.done[path] = info.ModTime()

	r, err := w.proc.ProcessFile(ctx, path, w.cfg.Attributes)
	if err != nil {
		w.logger.Warn("Label analysis failed", "path", path, "error", err)
	} else {
		w.logger.Info("Label analyzed", "path", path, "outcome", r.Outcome, "id", r.ID)
		if w.recorder != nil {
			if _, err := w.recorder.Save(ctx, r); err != nil {
				w.logger.Error("Failed to record scan", "path", path, "error", err)
			}
		}
	}
	if w.onReport != nil && r != nil {
		w.onReport(r)
	}
}
