package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/codeagent/internal/chunker"
)

// TEIClient talks to a text-embeddings-inference server, which exposes
// both tokenizer offsets and per-token embeddings.
type TEIClient struct {
	baseURL   string
	model     string
	batchSize int
	client    *http.Client
}

// NewTEI creates a text-embeddings-inference client. model is only used
// to label the collection; the server decides which model runs.
func NewTEI(baseURL, model string, batchSize int, timeout time.Duration) *TEIClient {
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &TEIClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		batchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
	}
}

type teiToken struct {
	ID      int    `json:"id"`
	Text    string `json:"text"`
	Special bool   `json:"special"`
	Start   *int   `json:"start"`
	Stop    *int   `json:"stop"`
}

// ModelID identifies the backend and model.
func (c *TEIClient) ModelID() string {
	return "tei:" + c.model
}

// Tokenize returns the tokens of text including special markers.
func (c *TEIClient) Tokenize(ctx context.Context, text string) ([]chunker.Token, error) {
	var resp [][]teiToken
	body := map[string]any{"inputs": text, "add_special_tokens": true}
	if err := postJSON(ctx, c.client, c.baseURL+"/tokenize", nil, body, &resp); err != nil {
		return nil, err
	}
	if len(resp) != 1 {
		return nil, fmt.Errorf("tokenize returned %d sequences", len(resp))
	}

	tokens := make([]chunker.Token, len(resp[0]))
	for i, t := range resp[0] {
		tok := chunker.Token{ID: t.ID, Text: t.Text, Special: t.Special}
		if t.Start != nil {
			tok.Start = *t.Start
		}
		if t.Stop != nil {
			tok.End = *t.Stop
		}
		tokens[i] = tok
	}
	return tokens, nil
}

// EmbedTokens returns the last hidden state for every token of text.
// The server truncates to the model's maximum length.
func (c *TEIClient) EmbedTokens(ctx context.Context, text string) ([][]float32, error) {
	var resp [][][]float32
	body := map[string]any{"inputs": text, "truncate": true}
	if err := postJSON(ctx, c.client, c.baseURL+"/embed_all", nil, body, &resp); err != nil {
		return nil, err
	}
	if len(resp) != 1 {
		return nil, fmt.Errorf("embed_all returned %d sequences", len(resp))
	}
	return resp[0], nil
}

// Embed returns the server-pooled embedding of each text.
func (c *TEIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, c.batchSize) {
		var resp [][]float32
		body := map[string]any{"inputs": batch, "truncate": true}
		if err := postJSON(ctx, c.client, c.baseURL+"/embed", nil, body, &resp); err != nil {
			return nil, err
		}
		if len(resp) != len(batch) {
			return nil, fmt.Errorf("embed returned %d vectors for %d inputs", len(resp), len(batch))
		}
		out = append(out, resp...)
	}
	return out, nil
}
