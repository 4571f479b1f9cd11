package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotInitialized = errors.New("llm client not initialized")

type Config struct {
	Backend    string
	Model      string
	OllamaHost string
	// APIKey overrides the backend's environment variable when set.
	APIKey string
}

// Provider is a text completion backend.
type Provider interface {
	Init(cfg Config) error
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

type SearchRequest struct {
	Query       string
	ContextSize string // low | medium | high
	MaxResults  int
}

// SearchHit is one result in the backend's own shape, before normalization.
type SearchHit struct {
	Title   string
	URL     string
	Snippet string
	Score   float64
	Date    string
}

type SearchResponse struct {
	Query   string
	Answer  string
	Hits    []SearchHit
	Elapsed time.Duration
}

// Searcher performs a web search and returns ranked snippets with source URLs.
type Searcher interface {
	Search(ctx context.Context, req SearchRequest) (*SearchResponse, error)
}

// New builds and initializes the completion backend named by cfg.Backend.
func New(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
	case "gemini":
		p = &geminiProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}

// NewSearcher builds the web search backend. A gemini completion provider can
// be reused for grounded search.
func NewSearcher(backend string, cfg Config, completion Provider, opts SerperOptions) (Searcher, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", "gemini":
		if g, ok := completion.(*geminiProvider); ok {
			return g, nil
		}
		g := &geminiProvider{}
		if err := g.Init(Config{Model: cfg.Model, APIKey: cfg.APIKey}); err != nil {
			return nil, err
		}
		return g, nil
	case "serper":
		return NewSerper(opts)
	default:
		return nil, fmt.Errorf("unsupported search backend: %s", backend)
	}
}
