package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"researcher/internal/logger"
	"researcher/internal/metrics"
	"researcher/internal/mission"
	"researcher/internal/search"
)

// Searcher is the part of the search adapter a step needs.
type Searcher interface {
	SearchWithRetry(ctx context.Context, query string, opts search.Options, maxRetries int) (*search.Response, error)
}

// Limiter gates outbound provider calls.
type Limiter interface {
	Wait(ctx context.Context) error
}

type Executor struct {
	searcher   Searcher
	limiter    Limiter
	opts       search.Options
	maxRetries int
	metrics    *metrics.Metrics
	now        func() time.Time
}

func New(s Searcher, l Limiter, opts search.Options, maxRetries int, m *metrics.Metrics) *Executor {
	return &Executor{
		searcher:   s,
		limiter:    l,
		opts:       opts,
		maxRetries: maxRetries,
		metrics:    m,
		now:        time.Now,
	}
}

// ExecuteStep runs one step's search and records the outcome on step. A
// failed step is marked error and the error is returned; callers decide
// whether to continue.
func (e *Executor) ExecuteStep(ctx context.Context, step *mission.Step, findings string) (rerr error) {
	if step == nil {
		return errors.New("nil step")
	}
	started := e.now()
	step.Begin(started)

	defer func() {
		if rec := recover(); rec != nil {
			rerr = fmt.Errorf("panic in step %q: %v", step.Title, rec)
		}
		if rerr != nil {
			step.Failf(rerr, e.now())
			logger.Log.Printf("[Executor] step %d %q failed: %v", step.Order+1, step.Title, rerr)
		}
		e.metrics.ObserveStep(string(step.Status), e.now().Sub(started))
	}()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
	}

	step.Query = search.OptimizeQuery(step.Description, findings)
	logger.Log.Printf("[Executor] step %d %q query: %s", step.Order+1, step.Title, step.Query)

	resp, err := e.searcher.SearchWithRetry(ctx, step.Query, e.opts, e.maxRetries)
	if err != nil {
		return err
	}
	step.Complete(resp.Results, e.now())
	logger.Log.Printf("[Executor] step %d %q completed with %d results", step.Order+1, step.Title, len(resp.Results))
	return nil
}
