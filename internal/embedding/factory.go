package embedding

import (
	"fmt"

	"github.com/abdul-hamid-achik/codeagent/internal/chunker"
	"github.com/abdul-hamid-achik/codeagent/internal/config"
)

// FromConfig builds the document embedder selected by the embedding and
// chunking sections.
func FromConfig(cfg *config.Config) (DocumentEmbedder, error) {
	e := cfg.Embedding
	switch e.Strategy {
	case config.StrategyChunk:
		var backend Embedder
		switch e.Backend {
		case config.ProviderOllama:
			backend = NewOllama(e.BaseURL, e.Model, e.BatchSize, e.Timeout)
		case "openai":
			backend = NewOpenAI(e.BaseURL, e.Model, e.APIKey, e.BatchSize, e.Timeout)
		default:
			return nil, fmt.Errorf("unknown embedding backend %q", e.Backend)
		}
		return NewChunkStrategy(chunker.NewFixed(cfg.Chunking.Size, cfg.Chunking.Overlap), backend), nil

	case config.StrategyLate:
		tei := NewTEI(e.TokenModelURL, e.Model, e.BatchSize, e.Timeout)
		return NewLateStrategy(tei, e.MaxLength, e.LateQueryMode), nil

	default:
		return nil, fmt.Errorf("unknown embedding strategy %q", e.Strategy)
	}
}
