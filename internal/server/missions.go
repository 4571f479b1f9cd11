package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"researcher/internal/logger"
	"researcher/internal/mission"
	"researcher/internal/store"
	"researcher/internal/supervisor"
)

var errNotEditable = errors.New("mission can only be edited while pending")

type missionsHandler struct {
	srv *Server
}

func (h *missionsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	var createMW []echo.MiddlewareFunc
	if h.srv.createRate > 0 {
		createMW = append(createMW, createLimiter(h.srv.createRate))
	}
	g.POST("", h.create, createMW...)
	g.GET("/:id", h.get)
	g.PATCH("/:id", h.patch)
	g.DELETE("/:id", h.delete)
	g.POST("/:id/start", h.start)
	g.POST("/:id/cancel", h.cancel)
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type stepInput struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Priority          string `json:"priority"`
	EstimatedDuration string `json:"estimatedDuration"`
}

type patchRequest struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Steps       *[]stepInput `json:"steps"`
}

func (h *missionsHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.srv.store.List())
}

func (h *missionsHandler) create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	title, desc := strings.TrimSpace(req.Title), strings.TrimSpace(req.Description)
	if err := supervisor.ValidateTopic(title, desc); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	m := mission.New(title, desc)
	m.Steps = h.srv.planner.PlanSteps(c.Request().Context(), supervisor.Topic(title, desc))
	mission.Reindex(m.Steps)
	h.srv.store.Save(m)
	logger.Log.Printf("[HTTP] created mission %s with %d steps", m.ID, len(m.Steps))
	return c.JSON(http.StatusCreated, m)
}

func (h *missionsHandler) get(c echo.Context) error {
	m, err := h.srv.store.Get(c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, m)
}

func (h *missionsHandler) patch(c echo.Context) error {
	var req patchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	m, err := h.srv.store.Update(c.Param("id"), func(m *mission.Mission) error {
		if m.Status != mission.StatusPending {
			return fmt.Errorf("%w (status %s)", errNotEditable, m.Status)
		}
		if req.Title != nil {
			m.Title = strings.TrimSpace(*req.Title)
		}
		if req.Description != nil {
			m.Description = strings.TrimSpace(*req.Description)
		}
		if err := supervisor.ValidateTopic(m.Title, m.Description); err != nil {
			return err
		}
		if req.Steps != nil {
			steps, err := buildSteps(*req.Steps)
			if err != nil {
				return err
			}
			m.Steps = steps
		}
		m.Touch()
		return nil
	})
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, m)
	case errors.Is(err, errNotEditable):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, supervisor.ErrInvalidTopic), errors.Is(err, errInvalidStep):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return storeError(err)
	}
}

var errInvalidStep = errors.New("invalid step")

func buildSteps(in []stepInput) ([]mission.Step, error) {
	steps := make([]mission.Step, 0, len(in))
	for i, s := range in {
		title, desc := strings.TrimSpace(s.Title), strings.TrimSpace(s.Description)
		if title == "" || desc == "" {
			return nil, fmt.Errorf("%w %d: title and description are required", errInvalidStep, i)
		}
		prio := mission.Priority(strings.ToLower(strings.TrimSpace(s.Priority)))
		if prio == "" {
			prio = mission.PriorityMedium
		}
		if !prio.Valid() {
			return nil, fmt.Errorf("%w %d: priority %q", errInvalidStep, i, s.Priority)
		}
		steps = append(steps, mission.NewStep(title, desc, prio, strings.TrimSpace(s.EstimatedDuration), i))
	}
	mission.Reindex(steps)
	return steps, nil
}

func (h *missionsHandler) delete(c echo.Context) error {
	id := c.Param("id")
	if cur := h.srv.agent.CurrentMission(); cur != nil && cur.ID == id {
		return echo.NewHTTPError(http.StatusConflict, "mission is running; cancel it first")
	}
	if err := h.srv.store.Delete(id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *missionsHandler) start(c echo.Context) error {
	m, err := h.srv.store.Get(c.Param("id"))
	if err != nil {
		return storeError(err)
	}
	if m.Status != mission.StatusPending {
		return echo.NewHTTPError(http.StatusConflict, fmt.Sprintf("mission is %s", m.Status))
	}

	s := h.srv
	hooks := supervisor.Hooks{
		OnPlanned: s.persist,
		OnStepComplete: func(mission.Step, float64) {
			s.persist(s.agent.CurrentMission())
		},
		OnMissionUpdate: s.persist,
	}
	done, err := s.agent.Launch(s.baseCtx, m, hooks)
	if errors.Is(err, supervisor.ErrAlreadyProcessing) {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		out := <-done
		s.persist(out.Mission)
		if out.Err != nil {
			logger.Log.Printf("[HTTP] mission %s ended: %v", m.ID, out.Err)
		}
	}()
	return c.JSON(http.StatusAccepted, map[string]string{"id": m.ID, "status": "started"})
}

func (h *missionsHandler) cancel(c echo.Context) error {
	id := c.Param("id")
	err := h.srv.agent.Cancel(id)
	switch {
	case err == nil:
		return c.JSON(http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
	case errors.Is(err, supervisor.ErrNoActiveMission), errors.Is(err, supervisor.ErrMissionMismatch):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return err
	}
}

func storeError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return err
}
