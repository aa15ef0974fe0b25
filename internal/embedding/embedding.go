// Package embedding turns text into vectors. It offers two strategies:
// whole-chunk embedding, and late chunking, which embeds the full token
// sequence once and mean-pools the token vectors per sentence span.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/abdul-hamid-achik/codeagent/internal/chunker"
)

// Embedder maps texts to fixed-dimension vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	ModelID() string
}

// TokenModel exposes token-level output of an embedding model.
type TokenModel interface {
	Tokenize(ctx context.Context, text string) ([]chunker.Token, error)
	// EmbedTokens returns one vector per token of text, special tokens included.
	EmbedTokens(ctx context.Context, text string) ([][]float32, error)
	Embedder
}

// DocumentEmbedder is the strategy the index uses. EmbedDocument chunks and
// embeds a whole document; EmbedChunks and EmbedQuery embed caller-supplied
// text with the same model so stored and query vectors are comparable.
//
// On a model or tokenizer failure the methods return nil vectors and an
// embedding-category error; callers skip the item and carry on.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) (chunks []string, vectors [][]float32, err error)
	EmbedChunks(ctx context.Context, chunks []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	ModelID() string
}

// postJSON sends body as JSON and decodes a 2xx response into out.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// batches splits texts into groups of at most size.
func batches(texts []string, size int) [][]string {
	if size <= 0 {
		size = len(texts)
	}
	var out [][]string
	for len(texts) > 0 {
		n := min(size, len(texts))
		out = append(out, texts[:n])
		texts = texts[n:]
	}
	return out
}
