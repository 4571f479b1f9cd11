package cli

import (
	"fmt"
	"sync"

	"researcher/internal/config"
	"researcher/internal/executor"
	"researcher/internal/llm_client"
	"researcher/internal/logger"
	"researcher/internal/metrics"
	"researcher/internal/planner"
	"researcher/internal/ratelimit"
	"researcher/internal/search"
	"researcher/internal/supervisor"
	"researcher/internal/synthesizer"
)

// app is the wired research pipeline shared by every command.
type app struct {
	cfg     *config.Config
	metrics *metrics.Metrics
	planner *planner.Planner
	agent   *supervisor.Agent

	// background mission watchers started by the interactive loop
	wg sync.WaitGroup
}

func newApp(cfg *config.Config) (*app, error) {
	m := metrics.Default()

	provider, err := llm_client.New(llm_client.Config{
		Backend:    cfg.LLM.Backend,
		Model:      cfg.LLM.Model,
		OllamaHost: cfg.LLM.OllamaHost,
	})
	if err != nil {
		return nil, fmt.Errorf("could not initialize LLM client: %w", err)
	}

	searcher, err := llm_client.NewSearcher(cfg.Search.Backend,
		llm_client.Config{Model: cfg.Search.Model, APIKey: cfg.Search.APIKey},
		provider,
		llm_client.SerperOptions{APIKey: cfg.Search.APIKey, Timeout: cfg.Search.Timeout},
	)
	if err != nil {
		return nil, fmt.Errorf("could not initialize search backend: %w", err)
	}

	opts := search.Options{ContextSize: cfg.Search.ContextSize, MaxResults: cfg.Search.MaxResults}
	adapter := search.New(searcher, provider, search.Config{
		Model:          cfg.LLM.Model,
		Defaults:       opts,
		MaxRetries:     cfg.Search.MaxRetries,
		RetryBaseDelay: cfg.Search.RetryBaseDelay,
		CallTimeout:    cfg.LLM.Timeout,
	}, m)

	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)
	exec := executor.New(adapter, limiter, opts, cfg.Search.MaxRetries, m)
	runner := supervisor.NewRunner(exec, synthesizer.New(adapter), m)
	p := planner.New(adapter, m)

	logger.Log.Printf("[CLI] pipeline ready: llm=%s search=%s rate=%d/%s",
		cfg.LLM.Backend, cfg.Search.Backend, cfg.RateLimit.MaxRequests, cfg.RateLimit.Window)

	return &app{
		cfg:     cfg,
		metrics: m,
		planner: p,
		agent:   supervisor.NewAgent(p, runner),
	}, nil
}
