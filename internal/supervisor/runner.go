package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"researcher/internal/logger"
	"researcher/internal/metrics"
	"researcher/internal/mission"
	"researcher/internal/synthesizer"
	"researcher/internal/utils"
)

const (
	digestResults  = 3
	digestMaxChars = 200
)

// StepExecutor runs a single research step, normally *executor.Executor.
type StepExecutor interface {
	ExecuteStep(ctx context.Context, step *mission.Step, findings string) error
}

// Synthesizer produces the comprehensive phase, normally *synthesizer.Synthesizer.
type Synthesizer interface {
	Comprehensive(ctx context.Context, snapshot *mission.Mission, basic mission.Results) synthesizer.Update
}

// Hooks are optional observers. They receive copies and run on the
// goroutine that produced the event.
type Hooks struct {
	OnPlanned       func(m *mission.Mission)
	OnStepComplete  func(step mission.Step, progress float64)
	OnMissionUpdate func(m *mission.Mission)
}

// Runner executes a planned mission step by step and schedules the
// comprehensive summary. Missions handed to a Runner are mutated under its
// lock; read them through Snapshot until Wait returns.
type Runner struct {
	exec    StepExecutor
	synth   Synthesizer
	metrics *metrics.Metrics

	mu sync.Mutex
	wg sync.WaitGroup
}

func NewRunner(exec StepExecutor, synth Synthesizer, m *metrics.Metrics) *Runner {
	return &Runner{exec: exec, synth: synth, metrics: m}
}

// ExecuteResearchPlan runs every step of m in order, tolerating step
// failures, then writes the basic results and marks m completed. The
// comprehensive phase continues in the background; OnMissionUpdate fires
// when it lands. The returned copy is the mission as it stood after the
// basic phase and is never touched by the background work.
func (r *Runner) ExecuteResearchPlan(ctx context.Context, m *mission.Mission, hooks Hooks) (*mission.Mission, error) {
	return r.execute(ctx, m, hooks, 0, 100)
}

// Wait blocks until every scheduled comprehensive phase has been applied.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Snapshot returns a consistent copy of m.
func (r *Runner) Snapshot(m *mission.Mission) *mission.Mission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return m.Clone()
}

// update applies fn to m under the runner lock.
func (r *Runner) update(m *mission.Mission, fn func(m *mission.Mission) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(m)
}

// execute maps step progress onto [base, base+span]. The returned snapshot
// is taken before the comprehensive phase is scheduled.
func (r *Runner) execute(ctx context.Context, m *mission.Mission, hooks Hooks, base, span float64) (*mission.Mission, error) {
	r.metrics.MissionStarted()
	outcome := "error"
	defer func() { r.metrics.MissionFinished(outcome) }()

	var total int
	var findings string
	err := r.update(m, func(m *mission.Mission) error {
		if err := m.SetStatus(mission.StatusResearching); err != nil {
			m.Fail(err)
			return err
		}
		total = len(m.Steps)
		findings = m.Description
		return nil
	})
	if err != nil {
		return r.Snapshot(m), fmt.Errorf("mission %s: %w", m.ID, err)
	}
	logger.Log.Printf("[Runner] mission %s: executing %d steps", m.ID, total)

	for i := 0; i < total; i++ {
		if ctx.Err() != nil {
			outcome = "cancelled"
			err := r.cancelled(m)
			return r.Snapshot(m), err
		}

		var step mission.Step
		_ = r.update(m, func(m *mission.Mission) error {
			m.Steps[i].Begin(timeNow())
			step = m.Steps[i]
			return nil
		})

		stepErr := r.exec.ExecuteStep(ctx, &step, findings)
		progress := base + float64(i+1)/float64(total)*span

		_ = r.update(m, func(m *mission.Mission) error {
			m.Steps[i] = step
			m.Progress = progress
			m.Touch()
			return nil
		})

		if stepErr != nil {
			logger.Log.Printf("[Runner] mission %s: step %d/%d %q failed, continuing: %v", m.ID, i+1, total, step.Title, stepErr)
		} else {
			findings = appendDigest(findings, step.Results)
		}
		if hooks.OnStepComplete != nil {
			hooks.OnStepComplete(step, progress)
		}
	}

	if ctx.Err() != nil {
		outcome = "cancelled"
		err := r.cancelled(m)
		return r.Snapshot(m), err
	}

	var basic mission.Results
	var snapshot *mission.Mission
	err = r.update(m, func(m *mission.Mission) error {
		basic = synthesizer.GenerateBasicResults(m)
		res := basic.Clone()
		m.Results = &res
		if err := m.SetStatus(mission.StatusCompleted); err != nil {
			m.Fail(err)
			return err
		}
		m.Progress = base + span
		snapshot = m.Clone()
		return nil
	})
	if err != nil {
		return r.Snapshot(m), fmt.Errorf("mission %s: %w", m.ID, err)
	}
	outcome = "completed"
	logger.Log.Printf("[Runner] mission %s: completed %d/%d steps, %d sources", m.ID, basic.CompletedSteps, basic.TotalSteps, len(basic.Sources))

	r.wg.Add(1)
	go r.comprehensive(context.WithoutCancel(ctx), m, snapshot.Clone(), basic, hooks)
	return snapshot, nil
}

func (r *Runner) cancelled(m *mission.Mission) error {
	_ = r.update(m, func(m *mission.Mission) error {
		m.Fail(ErrCancelled)
		return nil
	})
	logger.Log.Printf("[Runner] mission %s: cancelled", m.ID)
	return ErrCancelled
}

func (r *Runner) comprehensive(ctx context.Context, m, snapshot *mission.Mission, basic mission.Results, hooks Hooks) {
	defer r.wg.Done()

	var u synthesizer.Update
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				u = synthesizer.Failed(snapshot.ID, basic, fmt.Errorf("panic in comprehensive phase: %v", rec))
			}
		}()
		if r.synth == nil {
			u = synthesizer.Failed(snapshot.ID, basic, errors.New("no synthesizer configured"))
			return
		}
		u = r.synth.Comprehensive(ctx, snapshot, basic)
	}()

	var latest *mission.Mission
	_ = r.update(m, func(m *mission.Mission) error {
		u.Apply(m)
		latest = m.Clone()
		return nil
	})
	if u.Err != nil {
		logger.Log.Printf("[Runner] mission %s: comprehensive phase degraded: %v", m.ID, u.Err)
	}
	if hooks.OnMissionUpdate != nil {
		hooks.OnMissionUpdate(latest)
	}
}

// appendDigest adds the leading content of a step's first results to the
// running findings used to refine later queries.
func appendDigest(findings string, results []mission.SourceResult) string {
	var parts []string
	for i, res := range results {
		if i == digestResults {
			break
		}
		if c := strings.TrimSpace(res.Content); c != "" {
			parts = append(parts, utils.TruncateWords(c, digestMaxChars))
		}
	}
	if len(parts) == 0 {
		return findings
	}
	return strings.TrimSpace(findings + " " + strings.Join(parts, " "))
}
