package embedding

import (
	"context"
	"fmt"

	"github.com/abdul-hamid-achik/codeagent/internal/chunker"
	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// Query modes for late chunking.
const (
	QueryPooled = "pooled" // pool the query's own sentence spans
	QueryWhole  = "whole"  // one server-pooled embedding of the whole query
)

// PoolSpans mean-pools token vectors over each span [Start, End).
//
// With maxLength > 0, spans starting at or beyond maxLength-1 are dropped
// and the rest are clipped to end at maxLength-1. Spans are also clipped
// to the number of token vectors. Spans left with no tokens are dropped.
// The returned indexes say which input span each pooled vector came from.
// Vectors are plain arithmetic means and are not renormalized.
func PoolSpans(tokenVecs [][]float32, spans []chunker.Span, maxLength int) ([][]float32, []int) {
	var pooled [][]float32
	var kept []int

	for i, s := range spans {
		start, end := s.Start, s.End
		if maxLength > 0 {
			if start >= maxLength-1 {
				continue
			}
			end = min(end, maxLength-1)
		}
		end = min(end, len(tokenVecs))
		if start < 0 || end-start < 1 {
			continue
		}

		pooled = append(pooled, mean(tokenVecs[start:end]))
		kept = append(kept, i)
	}
	return pooled, kept
}

func mean(vecs [][]float32) []float32 {
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for _, v := range vecs {
		for j := 0; j < dim && j < len(v); j++ {
			sum[j] += float64(v[j])
		}
	}
	out := make([]float32, dim)
	n := float64(len(vecs))
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out
}

// LateStrategy embeds a document once at token level and pools the token
// vectors per sentence span.
type LateStrategy struct {
	model     TokenModel
	maxLength int
	queryMode string
}

// NewLateStrategy creates the late-chunking strategy.
func NewLateStrategy(model TokenModel, maxLength int, queryMode string) *LateStrategy {
	if queryMode != QueryWhole {
		queryMode = QueryPooled
	}
	return &LateStrategy{model: model, maxLength: maxLength, queryMode: queryMode}
}

// ModelID identifies the embedding configuration.
func (s *LateStrategy) ModelID() string {
	return s.model.ModelID()
}

// EmbedDocument returns the sentence chunks that survived pooling with
// their vectors, index-aligned.
func (s *LateStrategy) EmbedDocument(ctx context.Context, text string) ([]string, [][]float32, error) {
	chunks, pooled, err := s.pool(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	return chunks, pooled, nil
}

// EmbedChunks embeds caller-supplied chunks with the same model, each in
// isolation since their surrounding document is unknown.
func (s *LateStrategy) EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	vectors, err := s.model.Embed(ctx, chunks)
	if err != nil {
		return nil, apperr.EmbeddingUnavailable(s.ModelID(), err)
	}
	return vectors, nil
}

// EmbedQuery embeds a query according to the configured query mode.
// Pooled mode averages the query's span vectors.
func (s *LateStrategy) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if s.queryMode == QueryWhole {
		vectors, err := s.EmbedChunks(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) != 1 {
			return nil, apperr.EmbeddingUnavailable(s.ModelID(), fmt.Errorf("got %d vectors for one query", len(vectors)))
		}
		return vectors[0], nil
	}

	_, pooled, err := s.pool(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(pooled) == 0 {
		return nil, apperr.EmbeddingUnavailable(s.ModelID(), fmt.Errorf("query produced no token spans"))
	}
	return mean(pooled), nil
}

func (s *LateStrategy) pool(ctx context.Context, text string) ([]string, [][]float32, error) {
	tokens, err := s.model.Tokenize(ctx, text)
	if err != nil {
		return nil, nil, apperr.EmbeddingUnavailable(s.ModelID(), err)
	}
	chunks, spans := chunker.SplitSentences(text, tokens)
	if len(chunks) == 0 {
		return nil, nil, nil
	}

	tokenVecs, err := s.model.EmbedTokens(ctx, text)
	if err != nil {
		return nil, nil, apperr.EmbeddingUnavailable(s.ModelID(), err)
	}

	pooled, kept := PoolSpans(tokenVecs, spans, s.maxLength)
	keptChunks := make([]string, len(kept))
	for i, k := range kept {
		keptChunks[i] = chunks[k]
	}
	return keptChunks, pooled, nil
}
