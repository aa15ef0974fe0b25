// Package watcher keeps the vector index in step with a directory tree.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

// DefaultDebounce is the quiet period before pending changes are applied.
const DefaultDebounce = 500 * time.Millisecond

// Indexer is the part of index.Index the watcher drives.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (int, error)
	Remove(ctx context.Context, path string) (int, error)
	Accepts(path string) bool
}

// Options controls which paths are watched.
type Options struct {
	Debounce   time.Duration
	Extensions []string
	SkipDirs   []string
}

// OptionsFromConfig builds Options from the index and watch sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Debounce:   cfg.Watch.Debounce,
		Extensions: cfg.Index.Extensions,
		SkipDirs:   cfg.Index.SkipDirs,
	}
}

// Change reports one applied change.
type Change struct {
	Path    string
	Removed bool
	Chunks  int
	Err     error
}

// Watcher re-indexes changed files and drops removed ones.
type Watcher struct {
	fs       *fsnotify.Watcher
	ix       Indexer
	debounce time.Duration
	exts     map[string]bool
	skipDirs map[string]bool
	log      *logging.Logger

	root    string
	pending map[string]struct{}

	// OnChange, when set, is called after each applied change.
	OnChange func(Change)
}

// New creates a Watcher. Call Close when done.
func New(ix Indexer, opts Options, log *logging.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	w := &Watcher{
		fs:       fw,
		ix:       ix,
		debounce: opts.Debounce,
		exts:     make(map[string]bool, len(opts.Extensions)),
		skipDirs: make(map[string]bool, len(opts.SkipDirs)),
		log:      log.WithPrefix("watch"),
		pending:  make(map[string]struct{}),
	}
	for _, ext := range opts.Extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		w.exts[ext] = true
	}
	for _, d := range opts.SkipDirs {
		w.skipDirs[d] = true
	}
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// Run watches dir recursively until ctx is done. Changes are collected
// and applied once no event has arrived for the debounce period.
func (w *Watcher) Run(ctx context.Context, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	w.root = root
	if err := w.addTree(root); err != nil {
		return err
	}
	w.log.Info("watching", logging.Path(root), logging.Duration(w.debounce))

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", logging.Error(err))

		case <-timer.C:
			w.flush(ctx)
		}
	}
}

// addTree watches dir and every directory below it that is not skipped.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.log.Warn("cannot watch directory", logging.Path(path), logging.Error(err))
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || w.skipDirs[name]
}

// ignored reports whether path lies under a skipped directory or has an
// extension that is never indexed.
func (w *Watcher) ignored(path string) bool {
	if w.root != "" {
		rel, err := filepath.Rel(w.root, filepath.Dir(path))
		if err == nil && rel != "." {
			for _, part := range strings.Split(rel, string(filepath.Separator)) {
				if w.skipDir(part) {
					return true
				}
			}
		}
	}
	return len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(path))]
}

// handle records ev and reports whether anything became pending.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	path := ev.Name

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.skipDir(filepath.Base(path)) {
				return false
			}
			if err := w.addTree(path); err != nil {
				w.log.Warn("cannot watch new directory", logging.Path(path), logging.Error(err))
			}
			return w.queueTree(path)
		}
	}

	if w.ignored(path) {
		return false
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	w.pending[path] = struct{}{}
	return true
}

// queueTree queues the files already present in a new directory, which
// appear before the directory itself is watched.
func (w *Watcher) queueTree(dir string) bool {
	queued := false
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && !w.ignored(path) {
			w.pending[path] = struct{}{}
			queued = true
		}
		return nil
	})
	return queued
}

// flush applies pending changes in path order. Whether a path is
// re-indexed or removed depends on whether it exists now, not on the
// event that queued it.
func (w *Watcher) flush(ctx context.Context) {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}
		delete(w.pending, path)

		_, statErr := os.Stat(path)
		removed := os.IsNotExist(statErr)

		change := Change{Path: path, Removed: removed}
		if removed {
			change.Chunks, change.Err = w.ix.Remove(ctx, path)
			if change.Err == nil {
				w.log.Info("removed from index", logging.Path(path), logging.Chunks(change.Chunks))
			}
		} else {
			if !w.ix.Accepts(path) {
				w.log.Debug("not indexable", logging.Path(path))
				continue
			}
			change.Chunks, change.Err = w.ix.IndexFile(ctx, path)
			if change.Err == nil {
				w.log.Info("re-indexed", logging.Path(path), logging.Chunks(change.Chunks))
			}
		}
		if change.Err != nil {
			w.log.Warn("index update failed", logging.Path(path), logging.Error(change.Err))
		}
		if w.OnChange != nil {
			w.OnChange(change)
		}
	}
}
