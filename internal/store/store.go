// Package store persists chunk vectors in named collections and answers
// nearest-neighbour queries by cosine similarity.
package store

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// ErrCollectionNotFound is returned for operations on a missing collection.
var ErrCollectionNotFound = errors.New("collection not found")

// Record is one stored chunk.
type Record struct {
	ID      string
	Source  string
	Ordinal int
	Text    string
	Vector  []float32
}

// Match is a query hit.
type Match struct {
	Record
	Score float64
}

// Collection describes a named set of vectors bound to one embedding
// configuration.
type Collection struct {
	Name      string
	Model     string
	Dim       int
	CreatedAt time.Time
}

// Store is the persistence capability the index needs.
type Store interface {
	// GetCollection returns ErrCollectionNotFound when name does not exist.
	GetCollection(ctx context.Context, name string) (*Collection, error)
	CreateCollection(ctx context.Context, name, model string, dim int) (*Collection, error)
	DropCollection(ctx context.Context, name string) error

	// ReplaceSource deletes every record of source and inserts records in
	// one atomic step. Records must match the collection dimension.
	ReplaceSource(ctx context.Context, collection, source string, records []Record) error
	// Upsert inserts or overwrites records by id.
	Upsert(ctx context.Context, collection string, records []Record) error
	DeleteSource(ctx context.Context, collection, source string) (int, error)

	// Query returns up to k records by descending similarity to vector.
	Query(ctx context.Context, collection string, vector []float32, k int) ([]Match, error)
	Count(ctx context.Context, collection string) (int, error)
	IDs(ctx context.Context, collection, source string) ([]string, error)
	Sources(ctx context.Context, collection string) ([]string, error)

	Close() error
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// rank sorts matches by descending score, breaking ties by id, and keeps k.
func rank(matches []Match, k int) []Match {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func checkDims(c *Collection, records []Record) error {
	for _, r := range records {
		if len(r.Vector) != c.Dim {
			return apperr.DimensionMismatch(c.Name, c.Dim, len(r.Vector))
		}
	}
	return nil
}
