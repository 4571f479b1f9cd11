package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"

	"researcher/internal/llm_client"
	"researcher/internal/logger"
	"researcher/internal/metrics"
	"researcher/internal/mission"
	"researcher/internal/parser"
	"researcher/internal/utils"
)

var (
	ErrEmptyQuery      = errors.New("search query is empty")
	ErrEmptyResponse   = errors.New("search provider returned no response")
	ErrEmptyCompletion = errors.New("completion was empty")
)

const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Second
	maxQueryLength        = 400
	minQueryLength        = 3
)

type Options struct {
	ContextSize string // low | medium | high
	MaxResults  int
}

type Response struct {
	Query   string
	Answer  string
	Results []mission.SourceResult
	Elapsed time.Duration
}

type Config struct {
	// Model is passed to the completion provider; empty means its default.
	Model          string
	Defaults       Options
	MaxRetries     int
	RetryBaseDelay time.Duration
	// CallTimeout bounds each completion call. Zero leaves it to the caller's context.
	CallTimeout time.Duration
}

// Adapter wraps the search and completion backends with retry and response
// normalization.
type Adapter struct {
	searcher llm_client.Searcher
	llm      llm_client.Provider
	cfg      Config
	metrics  *metrics.Metrics
	// newBackOff builds the wait schedule for one SearchWithRetry call.
	newBackOff func(attempts int) backoff.BackOff
}

func New(searcher llm_client.Searcher, llm llm_client.Provider, cfg Config, m *metrics.Metrics) *Adapter {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = DefaultRetryBaseDelay
	}
	if cfg.Defaults.ContextSize == "" {
		cfg.Defaults.ContextSize = "medium"
	}
	a := &Adapter{
		searcher: searcher,
		llm:      llm,
		cfg:      cfg,
		metrics:  m,
	}
	a.newBackOff = a.exponentialBackOff
	return a
}

// exponentialBackOff waits base, 2*base, 4*base... between attempts, without
// jitter or an elapsed-time cap.
func (a *Adapter) exponentialBackOff(attempts int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.RetryBaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = a.cfg.RetryBaseDelay << uint(attempts)
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (a *Adapter) withDefaults(opts Options) Options {
	if opts.ContextSize == "" {
		opts.ContextSize = a.cfg.Defaults.ContextSize
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = a.cfg.Defaults.MaxResults
	}
	return opts
}

// Search runs one query against the provider. Failures are returned as-is;
// no placeholder results are ever substituted.
func (a *Adapter) Search(ctx context.Context, query string, opts Options) (*Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if a.searcher == nil {
		return nil, llm_client.ErrNotInitialized
	}
	opts = a.withDefaults(opts)

	started := time.Now()
	raw, err := a.searcher.Search(ctx, llm_client.SearchRequest{
		Query:       query,
		ContextSize: opts.ContextSize,
		MaxResults:  opts.MaxResults,
	})
	if err == nil && raw == nil {
		err = ErrEmptyResponse
	}
	a.metrics.ObserveProviderCall("search", started, err)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	results := ProcessResults(raw)
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return &Response{
		Query:   query,
		Answer:  strings.TrimSpace(raw.Answer),
		Results: results,
		Elapsed: time.Since(started),
	}, nil
}

// SearchWithRetry makes up to maxRetries attempts, waiting base*2^attempt
// between them. The last error is returned once attempts run out.
func (a *Adapter) SearchWithRetry(ctx context.Context, query string, opts Options, maxRetries int) (*Response, error) {
	if maxRetries <= 0 {
		maxRetries = a.cfg.MaxRetries
	}

	var schedule backoff.BackOff = &backoff.StopBackOff{}
	if maxRetries > 1 {
		schedule = backoff.WithMaxRetries(a.newBackOff(maxRetries), uint64(maxRetries-1))
	}
	schedule = backoff.WithContext(schedule, ctx)

	var resp *Response
	attempts := 0
	op := func() error {
		attempts++
		r, err := a.Search(ctx, query, opts)
		if errors.Is(err, ErrEmptyQuery) {
			return backoff.Permanent(err)
		}
		resp = r
		return err
	}
	notify := func(err error, delay time.Duration) {
		logger.Log.Printf("[Search] attempt %d/%d failed: %v; retrying in %s", attempts, maxRetries, err, delay)
		a.metrics.IncRetry("search")
	}

	if err := backoff.RetryNotify(op, schedule, notify); err != nil {
		if ctx.Err() != nil && !errors.Is(err, ErrEmptyQuery) {
			return nil, fmt.Errorf("search retry aborted after %d attempts: %w", attempts, err)
		}
		return nil, fmt.Errorf("search failed after %d attempts: %w", attempts, err)
	}
	return resp, nil
}

var fillerRe = regexp.MustCompile(`(?i)\b(how\s+to|what\s+is|explain|research|find|about)\b`)

// OptimizeQuery turns a step description plus accumulated findings into a
// search query with filler phrases removed.
func OptimizeQuery(stepText, findings string) string {
	q := stepText
	if c := strings.TrimSpace(findings); c != "" {
		q = stepText + " " + c
	}
	q = fillerRe.ReplaceAllString(q, " ")
	q = utils.CollapseWhitespace(q)
	if len(q) < minQueryLength {
		return stepText
	}
	return utils.TruncateWords(q, maxQueryLength)
}

// ProcessResults maps provider hits onto SourceResult. Hits without an
// absolute http(s) URL are dropped.
func ProcessResults(raw *llm_client.SearchResponse) []mission.SourceResult {
	if raw == nil {
		return nil
	}
	out := make([]mission.SourceResult, 0, len(raw.Hits))
	for _, h := range raw.Hits {
		u := strings.TrimSpace(h.URL)
		if !utils.IsWebURL(u) {
			continue
		}
		title := utils.StripHTML(h.Title)
		if title == "" {
			title = utils.Host(u)
		}
		if title == "" {
			title = u
		}
		out = append(out, mission.SourceResult{
			Title:         title,
			URL:           u,
			Content:       utils.StripHTML(h.Snippet),
			Score:         clampScore(h.Score),
			PublishedDate: normalizeDate(h.Date),
		})
	}
	return out
}

func clampScore(s float64) float64 {
	switch {
	case math.IsNaN(s), s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02 Jan 2006",
}

// normalizeDate rewrites parseable dates as YYYY-MM-DD and passes anything
// else (e.g. "3 days ago") through trimmed.
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func (a *Adapter) complete(ctx context.Context, operation, prompt string) (string, error) {
	if a.llm == nil {
		return "", llm_client.ErrNotInitialized
	}
	if a.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.CallTimeout)
		defer cancel()
	}
	started := time.Now()
	text, err := a.llm.Generate(ctx, prompt, a.cfg.Model)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyCompletion
	}
	a.metrics.ObserveProviderCall(operation, started, err)
	return text, err
}

// GenerateComprehensiveAnalysis returns the model's free-text report for prompt.
func (a *Adapter) GenerateComprehensiveAnalysis(ctx context.Context, prompt string) (string, error) {
	text, err := a.complete(ctx, "analysis", prompt)
	if err != nil {
		return "", fmt.Errorf("comprehensive analysis: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// GenerateResearchSteps asks the model for a step list and parses it.
func (a *Adapter) GenerateResearchSteps(ctx context.Context, topic string) ([]parser.PlannedStep, error) {
	text, err := a.complete(ctx, "plan", parser.BuildStepsPrompt(topic))
	if err != nil {
		return nil, fmt.Errorf("failed to generate steps from LLM: %w", err)
	}
	steps, err := parser.ParseSteps(text)
	if err != nil {
		return nil, fmt.Errorf("error parsing generated steps: %w", err)
	}
	return steps, nil
}
