package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"researcher/internal/logger"
	"researcher/internal/mission"
	"researcher/internal/store"
	"researcher/internal/supervisor"
)

const shutdownTimeout = 10 * time.Second

type Options struct {
	Store   *store.Memory
	Planner supervisor.StepPlanner
	Agent   *supervisor.Agent
	// CreateRate caps mission creations per client per minute; 0 disables it.
	CreateRate int
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

// Server exposes missions over HTTP. Missions run in the background and
// their progress is written back to the store.
type Server struct {
	store      *store.Memory
	planner    supervisor.StepPlanner
	agent      *supervisor.Agent
	createRate int
	gather     prometheus.Gatherer

	baseCtx context.Context
	wg      sync.WaitGroup
}

func New(opts Options) *Server {
	g := opts.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return &Server{
		store:      opts.Store,
		planner:    opts.Planner,
		agent:      opts.Agent,
		createRate: opts.CreateRate,
		gather:     g,
		baseCtx:    context.Background(),
	}
}

// Echo builds the router with every route registered.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = errorHandler

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gather, promhttp.HandlerOpts{})))

	v1 := e.Group("/v1")
	v1.GET("/status", s.status)
	h := &missionsHandler{srv: s}
	h.Register(v1.Group("/missions"))
	return e
}

// Run serves on addr until ctx is cancelled, then cancels the running
// mission and drains background work.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.baseCtx = ctx
	e := s.Echo()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Printf("[HTTP] listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.agent.Cancel(""); err == nil {
			logger.Log.Printf("[HTTP] shutdown: cancelled running mission")
		}
		err := e.Shutdown(shutdownCtx)
		s.Wait()
		return err
	})
	return g.Wait()
}

// Wait blocks until background missions and their summaries are stored.
func (s *Server) Wait() {
	s.wg.Wait()
	s.agent.Wait()
}

func (s *Server) status(c echo.Context) error {
	resp := map[string]any{"isProcessing": s.agent.IsProcessing()}
	if m := s.agent.CurrentMission(); m != nil {
		resp["currentMissionId"] = m.ID
		resp["progress"] = m.Progress
		resp["status"] = m.Status
	}
	return c.JSON(http.StatusOK, resp)
}

// persist stores snap unless the stored copy is newer. Deleted missions
// stay deleted.
func (s *Server) persist(snap *mission.Mission) {
	if snap == nil {
		return
	}
	_, err := s.store.Update(snap.ID, func(cur *mission.Mission) error {
		if snap.UpdatedAt.Before(cur.UpdatedAt) {
			return errStale
		}
		*cur = *snap.Clone()
		return nil
	})
	if err != nil && !errors.Is(err, errStale) {
		logger.Log.Printf("[HTTP] mission %s not persisted: %v", snap.ID, err)
	}
}

var errStale = errors.New("stale snapshot")

func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
	}
	req := c.Request()
	logger.Log.Printf("[HTTP] %d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"error": msg})
	}
}
