package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	apperr "github.com/abdul-hamid-achik/codeagent/internal/errors"
)

// Model providers
const (
	ProviderOllama    = "ollama"
	ProviderAnthropic = "anthropic"
)

// Embedding strategies
const (
	StrategyChunk = "chunk" // whole-chunk embedding
	StrategyLate  = "late"  // late chunking over token embeddings
)

// Late-chunking query modes
const (
	QueryPooled = "pooled"
	QueryWhole  = "whole"
)

// Permission modes for write and execute tools
const (
	PermissionAsk    = "ask"
	PermissionAuto   = "auto"
	PermissionStrict = "strict"
)

// Dimension mismatch policies
const (
	MismatchRebuild = "rebuild"
	MismatchReject  = "reject"
)

// OllamaConfig holds the Ollama endpoint settings
type OllamaConfig struct {
	BaseURL string        `yaml:"base_url"`
	NumCtx  int           `yaml:"num_ctx"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicConfig holds Anthropic API settings
type AnthropicConfig struct {
	APIKey     string `yaml:"-"` // From environment only
	MaxRetries int    `yaml:"max_retries"`
}

// AgentConfig controls the tool-calling loop
type AgentConfig struct {
	MaxIterations  int    `yaml:"max_iterations"` // Tool-call rounds per request
	ShowToolCalls  bool   `yaml:"show_tool_calls"`
	PermissionMode string `yaml:"permission_mode"` // ask | auto | strict
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRetries         int           `yaml:"max_retries"`          // Maximum retries on 429
	BaseDelay          time.Duration `yaml:"base_delay"`           // Base delay for exponential backoff
	MaxDelay           time.Duration `yaml:"max_delay"`            // Maximum delay between retries
	TokensPerMinute    int           `yaml:"tokens_per_minute"`    // Rate limit (tokens/minute)
	EnableRateLimiting bool          `yaml:"enable_rate_limiting"` // Enable proactive rate limiting
}

// CacheConfig bounds the file and directory read caches
type CacheConfig struct {
	FileCapacity int `yaml:"file_capacity"`
	DirCapacity  int `yaml:"dir_capacity"`
}

// ChunkingConfig configures fixed-size chunking
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig selects the embedding strategy and backend
type EmbeddingConfig struct {
	Strategy      string        `yaml:"strategy"` // chunk | late
	Backend       string        `yaml:"backend"`  // ollama | openai (chunk strategy)
	Model         string        `yaml:"model"`
	BaseURL       string        `yaml:"base_url"`
	APIKey        string        `yaml:"-"`
	TokenModelURL string        `yaml:"token_model_url"` // text-embeddings-inference endpoint (late strategy)
	MaxLength     int           `yaml:"max_length"`
	LateQueryMode string        `yaml:"late_query_mode"` // pooled | whole
	BatchSize     int           `yaml:"batch_size"`
	Timeout       time.Duration `yaml:"timeout"`
}

// IndexConfig configures the on-disk vector index
type IndexConfig struct {
	Path                string        `yaml:"path"`
	Collection          string        `yaml:"collection"`
	OnDimensionMismatch string        `yaml:"on_dimension_mismatch"` // rebuild | reject
	Extensions          []string      `yaml:"extensions"`
	SkipDirs            []string      `yaml:"skip_dirs"`
	MaxFileSize         int64         `yaml:"max_file_size"`
	LockTimeout         time.Duration `yaml:"lock_timeout"`
}

// ToolsConfig configures tool execution limits
type ToolsConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
	MaxOutput      int           `yaml:"max_output"`
	BlockDangerous bool          `yaml:"block_dangerous"`
	Sandbox        bool          `yaml:"sandbox"` // bwrap on Linux, sandbox-exec on macOS
	// SandboxNetwork keeps network access inside the sandbox.
	SandboxNetwork bool `yaml:"sandbox_network"`
	// SandboxWritable lists extra writable paths inside the sandbox.
	SandboxWritable []string `yaml:"sandbox_writable"`
}

// WatchConfig configures watch-mode re-indexing
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Config holds the application configuration
type Config struct {
	Provider    string          `yaml:"provider"`
	Model       string          `yaml:"model"`
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float64         `yaml:"temperature"`
	Ollama      OllamaConfig    `yaml:"ollama"`
	Anthropic   AnthropicConfig `yaml:"anthropic"`
	Agent       AgentConfig     `yaml:"agent"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Cache       CacheConfig     `yaml:"cache"`
	Chunking    ChunkingConfig  `yaml:"chunking"`
	Embedding   EmbeddingConfig `yaml:"embedding"`
	Index       IndexConfig     `yaml:"index"`
	Tools       ToolsConfig     `yaml:"tools"`
	Watch       WatchConfig     `yaml:"watch"`

	// Internal: where config was loaded from
	configPath string
}

// DefaultExtensions is the allow-list of file extensions indexed by default.
var DefaultExtensions = []string{
	".py", ".js", ".jsx", ".ts", ".tsx", ".go", ".java", ".kt", ".scala",
	".c", ".h", ".cpp", ".hpp", ".cc", ".cs", ".rs", ".rb", ".php", ".swift",
	".sh", ".sql", ".html", ".css", ".md", ".txt", ".rst", ".json", ".yaml",
	".yml", ".toml",
}

// DefaultSkipDirs are directory names never descended into while indexing.
// Dot-prefixed directories are skipped as well.
var DefaultSkipDirs = []string{"node_modules", "__pycache__", "venv", "env"}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Provider:    ProviderOllama,
		Model:       "qwen3:8b",
		MaxTokens:   8192,
		Temperature: 0,
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			NumCtx:  32768,
			Timeout: 10 * time.Minute,
		},
		Anthropic: AnthropicConfig{
			MaxRetries: 2,
		},
		Agent: AgentConfig{
			MaxIterations:  10,
			ShowToolCalls:  true,
			PermissionMode: PermissionAuto,
		},
		RateLimit: RateLimitConfig{
			MaxRetries:         5,
			BaseDelay:          1 * time.Second,
			MaxDelay:           60 * time.Second,
			TokensPerMinute:    30000,
			EnableRateLimiting: false,
		},
		Cache: CacheConfig{
			FileCapacity: 512,
			DirCapacity:  256,
		},
		Chunking: ChunkingConfig{
			Size:    1000,
			Overlap: 200,
		},
		Embedding: EmbeddingConfig{
			Strategy:      StrategyChunk,
			Backend:       ProviderOllama,
			Model:         "nomic-embed-text",
			BaseURL:       "http://localhost:11434",
			TokenModelURL: "http://localhost:8080",
			MaxLength:     8192,
			LateQueryMode: QueryPooled,
			BatchSize:     32,
			Timeout:       2 * time.Minute,
		},
		Index: IndexConfig{
			Path:                ".codeagent/index",
			Collection:          "codebase",
			OnDimensionMismatch: MismatchRebuild,
			Extensions:          slices.Clone(DefaultExtensions),
			SkipDirs:            slices.Clone(DefaultSkipDirs),
			MaxFileSize:         1 << 20,
			LockTimeout:         10 * time.Second,
		},
		Tools: ToolsConfig{
			CommandTimeout: 2 * time.Minute,
			MaxOutput:      50000,
			BlockDangerous: true,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
	}
}

// LoadOptions tweaks how Load finds its config file
type LoadOptions struct {
	Path     string // Explicit config file; skips the search
	NoCreate bool   // Do not write a default config when none exists
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	return LoadWithOptions(LoadOptions{})
}

// LoadWithOptions loads configuration, applies environment overrides and validates.
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	cfg := DefaultConfig()

	paths := getConfigPaths()
	if opts.Path != "" {
		paths = []string{opts.Path}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := cfg.loadFromFile(path); err != nil {
				return nil, apperr.ConfigLoadFailed(path, err)
			}
			cfg.configPath = path
			break
		} else if opts.Path != "" {
			return nil, apperr.ConfigLoadFailed(path, err)
		}
	}

	if cfg.configPath == "" && !opts.NoCreate {
		if err := cfg.createDefault(); err != nil {
			// Non-fatal: just use defaults
			fmt.Fprintf(os.Stderr, "Warning: could not create default config: %v\n", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getConfigPaths returns config file locations in priority order
func getConfigPaths() []string {
	paths := []string{
		"codeagent.yaml",
		".codeagent/config.yaml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "codeagent", "config.yaml"))
	}
	return paths
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) createDefault() error {
	dir := ".codeagent"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(dir, "config.yaml")
	c.configPath = path

	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	content := "# codeagent configuration\n# API keys are read from the environment or .env\n\n" + string(data)
	return os.WriteFile(path, []byte(content), 0644)
}

// applyEnv overlays secrets and a few overrides from the environment or .env.
func (c *Config) applyEnv() error {
	values, err := LoadDotEnv(".env")
	if err != nil {
		return err
	}
	get := func(key string) string {
		return GetConfigValue(values, key)
	}

	c.Anthropic.APIKey = get("ANTHROPIC_API_KEY")
	c.Embedding.APIKey = get("OPENAI_API_KEY")
	if v := get("CODEAGENT_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := get("CODEAGENT_MODEL"); v != "" {
		c.Model = v
	}
	if v := get("OLLAMA_HOST"); v != "" {
		c.Ollama.BaseURL = v
		if c.Embedding.Backend == ProviderOllama {
			c.Embedding.BaseURL = v
		}
	}
	return nil
}

// Validate checks enumerations and numeric bounds.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOllama:
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			return apperr.ConfigInvalid("provider", "ANTHROPIC_API_KEY is required for the anthropic provider")
		}
	default:
		return apperr.ConfigInvalid("provider", fmt.Sprintf("unknown provider %q", c.Provider))
	}

	if c.Agent.MaxIterations <= 0 {
		return apperr.ConfigInvalid("agent.max_iterations", "must be positive")
	}
	switch c.Agent.PermissionMode {
	case PermissionAsk, PermissionAuto, PermissionStrict:
	default:
		return apperr.ConfigInvalid("agent.permission_mode", fmt.Sprintf("unknown mode %q", c.Agent.PermissionMode))
	}
	if c.Chunking.Size <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return apperr.ConfigInvalid("chunking", "size must be positive and overlap in [0, size)")
	}
	if c.Cache.FileCapacity <= 0 || c.Cache.DirCapacity <= 0 {
		return apperr.ConfigInvalid("cache", "capacities must be positive")
	}

	switch c.Embedding.Strategy {
	case StrategyChunk:
		if c.Embedding.Backend != ProviderOllama && c.Embedding.Backend != "openai" {
			return apperr.ConfigInvalid("embedding.backend", fmt.Sprintf("unknown backend %q", c.Embedding.Backend))
		}
	case StrategyLate:
		if c.Embedding.LateQueryMode != QueryPooled && c.Embedding.LateQueryMode != QueryWhole {
			return apperr.ConfigInvalid("embedding.late_query_mode", fmt.Sprintf("unknown mode %q", c.Embedding.LateQueryMode))
		}
		if c.Embedding.MaxLength < 2 {
			return apperr.ConfigInvalid("embedding.max_length", "must be at least 2")
		}
	default:
		return apperr.ConfigInvalid("embedding.strategy", fmt.Sprintf("unknown strategy %q", c.Embedding.Strategy))
	}

	if c.Index.OnDimensionMismatch != MismatchRebuild && c.Index.OnDimensionMismatch != MismatchReject {
		return apperr.ConfigInvalid("index.on_dimension_mismatch", fmt.Sprintf("unknown policy %q", c.Index.OnDimensionMismatch))
	}
	if c.Index.Collection == "" {
		return apperr.ConfigInvalid("index.collection", "must not be empty")
	}
	return nil
}

// EmbeddingModelID identifies the embedding configuration a collection is bound to.
func (c *Config) EmbeddingModelID() string {
	if c.Embedding.Strategy == StrategyLate {
		return "late:" + c.Embedding.Model
	}
	return c.Embedding.Backend + ":" + c.Embedding.Model
}

// ConfigPath returns where the config was loaded from
func (c *Config) ConfigPath() string {
	return c.configPath
}
