package index

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
)

type filter struct {
	extensions  map[string]bool
	skipDirs    map[string]bool
	maxFileSize int64
}

func newFilter(extensions, skipDirs []string, maxFileSize int64) *filter {
	f := &filter{
		extensions:  make(map[string]bool, len(extensions)),
		skipDirs:    make(map[string]bool, len(skipDirs)),
		maxFileSize: maxFileSize,
	}
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		f.extensions[ext] = true
	}
	for _, d := range skipDirs {
		f.skipDirs[d] = true
	}
	return f
}

// skipDir reports whether a directory below the walk root is pruned.
func (f *filter) skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || f.skipDirs[name]
}

// acceptFile returns "" when path should be indexed, otherwise the reason
// it is skipped.
func (f *filter) acceptFile(path string) string {
	if !f.extensions[strings.ToLower(filepath.Ext(path))] {
		return "extension"
	}
	if f.maxFileSize > 0 {
		info, err := os.Stat(path)
		if err != nil {
			return "stat"
		}
		if info.Size() > f.maxFileSize {
			return "size"
		}
	}
	return ""
}

// Stats summarizes an IndexDirectory run.
type Stats struct {
	Dir     string
	Indexed int
	Skipped int
	Failed  int
	Chunks  int
}

func (s Stats) String() string {
	return fmt.Sprintf("Indexed %d files from %s", s.Indexed, s.Dir)
}

// IndexFile embeds the file at path and replaces its stored chunks.
func (ix *Index) IndexFile(ctx context.Context, path string) (int, error) {
	unlock, err := ix.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return ix.indexFile(ctx, path)
}

func (ix *Index) indexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	if !utf8.Valid(data) {
		return 0, fmt.Errorf("%s is not valid UTF-8 text", path)
	}

	chunks, vectors, err := ix.embedder.EmbedDocument(ctx, string(data))
	if err != nil {
		return 0, err
	}
	return ix.upsert(ctx, path, chunks, vectors)
}

// IndexDirectory indexes every accepted file under dir, pruning skipped
// and hidden directories. Files that fail to embed are logged and skipped.
func (ix *Index) IndexDirectory(ctx context.Context, dir string) (Stats, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Stats{Dir: dir}, err
	}
	stats := Stats{Dir: abs}

	info, err := os.Stat(abs)
	if err != nil {
		return stats, err
	}
	if !info.IsDir() {
		return stats, fmt.Errorf("%s is not a directory", abs)
	}

	unlock, err := ix.lock(ctx)
	if err != nil {
		return stats, err
	}
	defer unlock()

	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			ix.log.Debug("walk error", logging.Path(path), logging.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != abs && ix.filter.skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if reason := ix.filter.acceptFile(path); reason != "" {
			if reason != "extension" {
				ix.skip(path, reason)
				stats.Skipped++
			}
			return nil
		}

		n, err := ix.indexFile(ctx, path)
		switch {
		case err == nil:
			stats.Indexed++
			stats.Chunks += n
			return nil
		case apperr.HasCode(err, apperr.CodeDimensionMismatch):
			return err
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			ix.log.Warn("skipping file", logging.Path(path), logging.Error(err))
			ix.log.Metrics().RecordSkipped()
			stats.Failed++
			return nil
		}
	})

	ix.log.Info("directory indexed", logging.Path(abs),
		logging.Count(stats.Indexed), logging.Chunks(stats.Chunks),
		logging.F("skipped", stats.Skipped), logging.F("failed", stats.Failed))
	return stats, err
}

func (ix *Index) skip(path, reason string) {
	ix.log.Debug("skipping file", logging.Path(path), logging.F("reason", reason))
	ix.log.Event(logging.EventIndexSkip, logging.Path(path), logging.F("reason", reason))
	ix.log.Metrics().RecordSkipped()
}
