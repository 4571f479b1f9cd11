package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"researcher/internal/logger"
	"researcher/internal/mission"
)

// planningShare is the progress credited once steps are planned; step
// execution fills the remainder.
const planningShare = 5.0

var (
	ErrCancelled         = errors.New("mission cancelled")
	ErrAlreadyProcessing = errors.New("a research mission is already in progress")
	ErrNoActiveMission   = errors.New("no mission is currently running")
	ErrMissionMismatch   = errors.New("mission is not the one currently running")
)

var timeNow = time.Now

// StepPlanner turns a topic into pending steps. It must not fail.
type StepPlanner interface {
	PlanSteps(ctx context.Context, topic string) []mission.Step
}

// Agent runs one mission at a time: plan, execute, summarize.
type Agent struct {
	planner StepPlanner
	runner  *Runner

	curMu      sync.Mutex
	curMission *mission.Mission
	curCancel  context.CancelFunc
}

func NewAgent(planner StepPlanner, runner *Runner) *Agent {
	return &Agent{planner: planner, runner: runner}
}

// Topic is the planner input for a mission.
func Topic(title, description string) string {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if description == "" || strings.EqualFold(title, description) {
		return title
	}
	return title + ": " + description
}

// StartResearch creates a mission for the topic, plans it and executes it.
// It returns a snapshot taken when the basic results are ready; the
// comprehensive summary arrives later through hooks.OnMissionUpdate.
func (a *Agent) StartResearch(ctx context.Context, title, description string, hooks Hooks) (*mission.Mission, error) {
	return a.run(ctx, mission.New(title, description), hooks)
}

// RunMission executes an existing mission, planning it first if it has no
// steps. The agent takes ownership of m.
func (a *Agent) RunMission(ctx context.Context, m *mission.Mission, hooks Hooks) (*mission.Mission, error) {
	if m == nil {
		return nil, errors.New("nil mission")
	}
	return a.run(ctx, m, hooks)
}

// Outcome is the result of a mission started with Launch.
type Outcome struct {
	Mission *mission.Mission
	Err     error
}

// Launch claims the agent for m and runs it in the background. Unlike
// RunMission it returns as soon as the mission is accepted; the outcome is
// delivered on the returned channel.
func (a *Agent) Launch(ctx context.Context, m *mission.Mission, hooks Hooks) (<-chan Outcome, error) {
	if m == nil {
		return nil, errors.New("nil mission")
	}
	runCtx, release, err := a.acquire(ctx, m)
	if err != nil {
		return nil, err
	}
	done := make(chan Outcome, 1)
	go func() {
		snap, err := a.execute(runCtx, m, hooks)
		release()
		done <- Outcome{Mission: snap, Err: err}
	}()
	return done, nil
}

func (a *Agent) run(ctx context.Context, m *mission.Mission, hooks Hooks) (*mission.Mission, error) {
	runCtx, release, err := a.acquire(ctx, m)
	if err != nil {
		return nil, err
	}
	defer release()
	return a.execute(runCtx, m, hooks)
}

// execute plans m if needed and runs it. The caller holds the agent.
func (a *Agent) execute(runCtx context.Context, m *mission.Mission, hooks Hooks) (*mission.Mission, error) {
	logger.Log.Printf("[Supervisor] Starting mission '%s' (ID: %s)", m.Title, m.ID)

	if len(m.Steps) == 0 {
		if err := a.runner.update(m, func(m *mission.Mission) error { return m.SetStatus(mission.StatusPlanning) }); err != nil {
			_ = a.runner.update(m, func(m *mission.Mission) error { m.Fail(err); return nil })
			return a.runner.Snapshot(m), fmt.Errorf("mission %s: %w", m.ID, err)
		}
		steps := a.planner.PlanSteps(runCtx, Topic(m.Title, m.Description))
		_ = a.runner.update(m, func(m *mission.Mission) error {
			m.Steps = steps
			mission.Reindex(m.Steps)
			m.Progress = planningShare
			m.Touch()
			return nil
		})
		logger.Log.Printf("[Supervisor] Mission %s planned with %d steps", m.ID, len(steps))
		if hooks.OnPlanned != nil {
			hooks.OnPlanned(a.runner.Snapshot(m))
		}
		if runCtx.Err() != nil {
			err := a.runner.cancelled(m)
			return a.runner.Snapshot(m), err
		}
	}

	snap, err := a.runner.execute(runCtx, m, hooks, planningShare, 100-planningShare)
	switch {
	case errors.Is(err, ErrCancelled):
		logger.Log.Printf("[Supervisor] Mission '%s' CANCELLED (ID: %s).", m.Title, m.ID)
	case err != nil:
		logger.Log.Printf("[Supervisor] Mission '%s' FAILED (ID: %s): %v", m.Title, m.ID, err)
	default:
		logger.Log.Printf("[Supervisor] Mission '%s' COMPLETED (ID: %s).", m.Title, m.ID)
	}
	return snap, err
}

func (a *Agent) acquire(ctx context.Context, m *mission.Mission) (context.Context, func(), error) {
	a.curMu.Lock()
	defer a.curMu.Unlock()
	if a.curMission != nil {
		return nil, nil, ErrAlreadyProcessing
	}
	runCtx, cancel := context.WithCancel(ctx)
	a.curMission = m
	a.curCancel = cancel

	release := func() {
		cancel()
		a.curMu.Lock()
		if a.curMission == m {
			a.curMission = nil
			a.curCancel = nil
		}
		a.curMu.Unlock()
	}
	return runCtx, release, nil
}

func (a *Agent) IsProcessing() bool {
	a.curMu.Lock()
	defer a.curMu.Unlock()
	return a.curMission != nil
}

// CurrentMission returns a snapshot of the running mission, or nil.
func (a *Agent) CurrentMission() *mission.Mission {
	a.curMu.Lock()
	m := a.curMission
	a.curMu.Unlock()
	if m == nil {
		return nil
	}
	return a.runner.Snapshot(m)
}

// Cancel stops the running mission before its next step. An empty id
// cancels whatever is running.
func (a *Agent) Cancel(id string) error {
	a.curMu.Lock()
	defer a.curMu.Unlock()

	if a.curMission == nil {
		return ErrNoActiveMission
	}
	if id != "" && !strings.EqualFold(a.curMission.ID, id) {
		return fmt.Errorf("%w: %s (current running: %s)", ErrMissionMismatch, id, a.curMission.ID)
	}
	a.curCancel()
	return nil
}

// Wait blocks until background summaries have been applied.
func (a *Agent) Wait() {
	a.runner.Wait()
}
