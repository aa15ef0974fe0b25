package embedding

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/codeagent/internal/chunker"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// ChunkStrategy embeds each fixed-size chunk in isolation.
type ChunkStrategy struct {
	chunker  chunker.Fixed
	embedder Embedder
}

// NewChunkStrategy creates the whole-chunk strategy.
func NewChunkStrategy(c chunker.Fixed, e Embedder) *ChunkStrategy {
	return &ChunkStrategy{chunker: c, embedder: e}
}

// ModelID identifies the embedding configuration.
func (s *ChunkStrategy) ModelID() string {
	return s.embedder.ModelID()
}

// EmbedDocument splits text and embeds every chunk.
func (s *ChunkStrategy) EmbedDocument(ctx context.Context, text string) ([]string, [][]float32, error) {
	chunks := s.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, nil, nil
	}
	vectors, err := s.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, nil, err
	}
	return chunks, vectors, nil
}

// EmbedChunks embeds caller-supplied chunks.
func (s *ChunkStrategy) EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, apperr.EmbeddingUnavailable(s.ModelID(), err)
	}
	return vectors, nil
}

// EmbedQuery embeds a query string.
func (s *ChunkStrategy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedChunks(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, apperr.EmbeddingUnavailable(s.ModelID(), fmt.Errorf("got %d vectors for one query", len(vectors)))
	}
	return vectors[0], nil
}
