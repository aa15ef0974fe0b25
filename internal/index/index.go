// Package index maps files to chunk vectors in a named collection and
// answers similarity queries over them.
package index

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/config"
	"github.com/abdul-hamid-achik/codeagent/internal/embedding"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
	"github.com/abdul-hamid-achik/codeagent/internal/logging"
	"github.com/abdul-hamid-achik/codeagent/internal/store"
)

// ErrNoResults matches, via errors.Is, the error returned by Query when the
// collection holds nothing.
var ErrNoResults = apperr.NoResults("")

// Options configures an Index.
type Options struct {
	Collection          string
	OnDimensionMismatch string
	Extensions          []string
	SkipDirs            []string
	MaxFileSize         int64

	// LockDir, when set, holds the advisory lock serializing writers
	// across processes.
	LockDir     string
	LockTimeout time.Duration
}

// OptionsFromConfig builds Options from the index section of cfg.
func OptionsFromConfig(cfg config.IndexConfig) Options {
	return Options{
		Collection:          cfg.Collection,
		OnDimensionMismatch: cfg.OnDimensionMismatch,
		Extensions:          cfg.Extensions,
		SkipDirs:            cfg.SkipDirs,
		MaxFileSize:         cfg.MaxFileSize,
		LockDir:             cfg.Path,
		LockTimeout:         cfg.LockTimeout,
	}
}

// Query selects either a text to embed or a precomputed vector.
type Query struct {
	Text   string
	Vector []float32
}

// Result is one ranked chunk.
type Result struct {
	ID        string
	ChunkText string
	Source    string
	Ordinal   int
	Score     float64
}

// Index is the vector index over a Store.
type Index struct {
	store    store.Store
	embedder embedding.DocumentEmbedder
	opts     Options
	log      *logging.Logger
	filter   *filter

	mu sync.Mutex
}

// New creates an Index. log may be nil.
func New(s store.Store, e embedding.DocumentEmbedder, opts Options, log *logging.Logger) *Index {
	if opts.Collection == "" {
		opts.Collection = "codebase"
	}
	if opts.OnDimensionMismatch == "" {
		opts.OnDimensionMismatch = config.MismatchRebuild
	}
	return &Index{
		store:    s,
		embedder: e,
		opts:     opts,
		log:      log.WithPrefix("index"),
		filter:   newFilter(opts.Extensions, opts.SkipDirs, opts.MaxFileSize),
	}
}

// ChunkID is the stable id of chunk ordinal of the file at absPath.
func ChunkID(absPath string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", absPath, ordinal)
}

// Collection returns the collection name.
func (ix *Index) Collection() string {
	return ix.opts.Collection
}

// Upsert replaces the stored chunks of path with chunks. When vectors is
// nil the chunks are embedded first. It returns the number of chunks stored.
func (ix *Index) Upsert(ctx context.Context, path string, chunks []string, vectors [][]float32) (int, error) {
	unlock, err := ix.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	return ix.upsert(ctx, path, chunks, vectors)
}

func (ix *Index) upsert(ctx context.Context, path string, chunks []string, vectors [][]float32) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	if vectors == nil && len(chunks) > 0 {
		vectors, err = ix.embedder.EmbedChunks(ctx, chunks)
		if err != nil {
			return 0, err
		}
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}

	records := make([]store.Record, len(chunks))
	for i, text := range chunks {
		records[i] = store.Record{
			ID:      ChunkID(abs, i),
			Source:  abs,
			Ordinal: i,
			Text:    text,
			Vector:  vectors[i],
		}
	}

	if err := ix.write(ctx, abs, records); err != nil {
		return 0, err
	}
	ix.log.Metrics().RecordIndexed(len(records))
	ix.log.Event(logging.EventIndexFile, logging.Path(abs), logging.Chunks(len(records)))
	return len(records), nil
}

// write stores records for source, applying the dimension-mismatch policy.
func (ix *Index) write(ctx context.Context, source string, records []store.Record) error {
	if len(records) == 0 {
		_, err := ix.store.DeleteSource(ctx, ix.opts.Collection, source)
		if errors.Is(err, store.ErrCollectionNotFound) {
			return nil
		}
		return err
	}

	dim := len(records[0].Vector)
	for attempt := 0; ; attempt++ {
		if err := ix.ensureCollection(ctx, dim); err != nil {
			return err
		}
		err := ix.store.ReplaceSource(ctx, ix.opts.Collection, source, records)
		if err == nil || attempt > 0 || !apperr.HasCode(err, apperr.CodeDimensionMismatch) {
			return err
		}
	}
}

// ensureCollection gets or creates the collection for dim. An existing
// collection of another dimension is rebuilt or rejected per policy.
func (ix *Index) ensureCollection(ctx context.Context, dim int) error {
	name := ix.opts.Collection
	model := ix.embedder.ModelID()

	c, err := ix.store.GetCollection(ctx, name)
	if errors.Is(err, store.ErrCollectionNotFound) {
		_, err = ix.store.CreateCollection(ctx, name, model, dim)
		return err
	}
	if err != nil {
		return err
	}

	if c.Dim == dim {
		if c.Model != model {
			ix.log.Warn("embedding model changed with equal dimension; existing vectors may not be comparable",
				logging.Collection(name), logging.From(c.Model), logging.To(model))
		}
		return nil
	}

	if ix.opts.OnDimensionMismatch == config.MismatchReject {
		return apperr.DimensionMismatch(name, c.Dim, dim)
	}

	ix.log.Warn("embedding dimension changed; rebuilding collection",
		logging.Collection(name),
		logging.F("old_dim", c.Dim), logging.F("new_dim", dim),
		logging.F("old_model", c.Model), logging.F("new_model", model))
	ix.log.Event(logging.EventIndexRebuild, logging.Collection(name), logging.Dim(dim))
	ix.log.Metrics().RecordRebuild()

	if err := ix.store.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("dropping collection %s: %w", name, err)
	}
	_, err = ix.store.CreateCollection(ctx, name, model, dim)
	return err
}

// Query returns up to k chunks by descending similarity.
func (ix *Index) Query(ctx context.Context, q Query, k int) ([]Result, error) {
	if k <= 0 {
		k = 5
	}
	c, err := ix.store.GetCollection(ctx, ix.opts.Collection)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return nil, apperr.NoResults(ix.opts.Collection)
	}
	if err != nil {
		return nil, err
	}

	vector := q.Vector
	if vector == nil {
		vector, err = ix.embedder.EmbedQuery(ctx, q.Text)
		if err != nil {
			return nil, err
		}
	}
	if len(vector) != c.Dim {
		return nil, apperr.DimensionMismatch(c.Name, c.Dim, len(vector))
	}

	ix.log.Event(logging.EventIndexQuery, logging.Query(q.Text), logging.Count(k))
	matches, err := ix.store.Query(ctx, ix.opts.Collection, vector, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			ID:        m.ID,
			ChunkText: m.Text,
			Source:    m.Source,
			Ordinal:   m.Ordinal,
			Score:     m.Score,
		}
	}
	return results, nil
}

// Remove deletes every chunk of path.
func (ix *Index) Remove(ctx context.Context, path string) (int, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	unlock, err := ix.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	n, err := ix.store.DeleteSource(ctx, ix.opts.Collection, abs)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return 0, nil
	}
	return n, err
}

// Rebuild drops the collection; the next write recreates it.
func (ix *Index) Rebuild(ctx context.Context) error {
	unlock, err := ix.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	ix.log.Info("dropping collection", logging.Collection(ix.opts.Collection))
	ix.log.Metrics().RecordRebuild()
	return ix.store.DropCollection(ctx, ix.opts.Collection)
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	return ix.store.Count(ctx, ix.opts.Collection)
}

// Sources lists the indexed file paths.
func (ix *Index) Sources(ctx context.Context) ([]string, error) {
	sources, err := ix.store.Sources(ctx, ix.opts.Collection)
	if errors.Is(err, store.ErrCollectionNotFound) {
		return nil, nil
	}
	return sources, err
}

// Accepts reports whether path passes the extension and size filters.
func (ix *Index) Accepts(path string) bool {
	return ix.filter.acceptFile(path) == ""
}
