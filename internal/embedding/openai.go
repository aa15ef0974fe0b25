package embedding

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// OpenAIEmbedder calls an OpenAI-compatible POST {baseURL}/embeddings.
type OpenAIEmbedder struct {
	baseURL   string
	model     string
	apiKey    string
	batchSize int
	client    *http.Client
}

// NewOpenAI creates an OpenAI-compatible embedder.
func NewOpenAI(baseURL, model, apiKey string, batchSize int, timeout time.Duration) *OpenAIEmbedder {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIEmbedder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		model:     model,
		apiKey:    apiKey,
		batchSize: batchSize,
		client:    &http.Client{Timeout: timeout},
	}
}

type openAIEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// ModelID identifies the backend and model.
func (o *OpenAIEmbedder) ModelID() string {
	return "openai:" + o.model
}

// Embed embeds texts in batches, restoring input order from the response indexes.
func (o *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if o.model == "" {
		return nil, fmt.Errorf("embedding model is not configured")
	}
	if o.apiKey == "" {
		return nil, fmt.Errorf("embedding API key is not configured (set OPENAI_API_KEY)")
	}

	headers := map[string]string{"Authorization": "Bearer " + o.apiKey}
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(texts, o.batchSize) {
		var resp openAIEmbedResponse
		body := map[string]any{"model": o.model, "input": batch}
		if err := postJSON(ctx, o.client, o.baseURL+"/embeddings", headers, body, &resp); err != nil {
			return nil, err
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embeddings response has %d items for %d inputs", len(resp.Data), len(batch))
		}
		sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })
		for _, d := range resp.Data {
			out = append(out, d.Embedding)
		}
	}
	return out, nil
}
