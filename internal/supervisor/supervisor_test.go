package supervisor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researcher/internal/executor"
	"researcher/internal/llm_client"
	"researcher/internal/llm_client/mocks"
	"researcher/internal/mission"
	"researcher/internal/planner"
	"researcher/internal/ratelimit"
	"researcher/internal/search"
	"researcher/internal/synthesizer"
)

const snippet = "Electric vehicles cost less to fuel and maintain over a typical ten year ownership period. Battery prices keep falling."

func newPipeline(p *mocks.MockProvider, s *mocks.MockSearcher) *Agent {
	adapter := search.New(s, p, search.Config{RetryBaseDelay: time.Millisecond}, nil)
	exec := executor.New(adapter, ratelimit.New(100, time.Minute), search.Options{}, 3, nil)
	runner := NewRunner(exec, synthesizer.New(adapter), nil)
	return NewAgent(planner.New(adapter, nil), runner)
}

// The planner's model call fails and step 2 exhausts its retries; the
// mission still completes with the fallback plan and 4 of 5 steps.
func TestStartResearchToleratesPlanningAndStepFailure(t *testing.T) {
	p := &mocks.MockProvider{GenerateFunc: func(_ context.Context, prompt, _ string) (string, error) {
		if strings.Contains(prompt, "research planner") {
			return "", errors.New("provider unavailable")
		}
		return "Comprehensive report", nil
	}}
	var mu sync.Mutex
	n := 0
	s := &mocks.MockSearcher{SearchFunc: func(_ context.Context, req llm_client.SearchRequest) (*llm_client.SearchResponse, error) {
		if strings.HasPrefix(req.Query, "Analyze") {
			return nil, errors.New("quota exceeded")
		}
		mu.Lock()
		n++
		url := fmt.Sprintf("https://example.com/%d", n)
		mu.Unlock()
		return &llm_client.SearchResponse{Query: req.Query, Hits: []llm_client.SearchHit{{Title: "EV costs", URL: url, Snippet: snippet, Score: 0.8}}}, nil
	}}
	agent := newPipeline(p, s)

	var progress []float64
	updates := make(chan *mission.Mission, 1)
	hooks := Hooks{
		OnStepComplete:  func(_ mission.Step, pct float64) { progress = append(progress, pct) },
		OnMissionUpdate: func(m *mission.Mission) { updates <- m },
	}

	snap, err := agent.StartResearch(context.Background(), "EVs vs gasoline", "Compare total cost of ownership", hooks)
	require.NoError(t, err)

	assert.Equal(t, mission.StatusCompleted, snap.Status)
	require.Len(t, snap.Steps, 5)
	for i, want := range shapeTitles(planner.FallbackSteps("x")) {
		assert.Equal(t, want, snap.Steps[i].Title)
	}
	assert.Equal(t, mission.StepError, snap.Steps[1].Status)
	assert.Contains(t, snap.Steps[1].Error, "quota exceeded")
	require.NotNil(t, snap.Results)
	assert.Equal(t, 4, snap.Results.CompletedSteps)
	assert.Equal(t, 5, snap.Results.TotalSteps)
	assert.Len(t, snap.Results.Sources, 4)
	assert.True(t, snap.Results.IsGeneratingComprehensiveAnalysis)
	assert.Contains(t, snap.Results.Summary, synthesizer.GeneratingTrailer)
	assert.Equal(t, 100.0, snap.Progress)

	require.Len(t, progress, 5)
	assert.Greater(t, progress[0], planningShare)
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 100.0, progress[4])

	agent.Wait()
	final := <-updates
	assert.False(t, final.Results.IsGeneratingComprehensiveAnalysis)
	assert.Equal(t, "Comprehensive report", final.Results.Summary)
	assert.Equal(t, mission.PhaseComprehensive, final.Results.Phase)
	assert.False(t, agent.IsProcessing())
}

func TestStartResearchAllStepsEmpty(t *testing.T) {
	p := &mocks.MockProvider{GenerateFunc: func(context.Context, string, string) (string, error) {
		return "", errors.New("provider unavailable")
	}}
	s := &mocks.MockSearcher{SearchFunc: func(context.Context, llm_client.SearchRequest) (*llm_client.SearchResponse, error) {
		return nil, errors.New("search down")
	}}
	agent := newPipeline(p, s)

	updates := make(chan *mission.Mission, 1)
	snap, err := agent.StartResearch(context.Background(), "Deep sea mining", "Environmental impact of deep sea mining",
		Hooks{OnMissionUpdate: func(m *mission.Mission) { updates <- m }})
	require.NoError(t, err)
	assert.Equal(t, mission.StatusCompleted, snap.Status)
	assert.Equal(t, 0, snap.Results.CompletedSteps)
	assert.Empty(t, snap.Results.Sources)

	agent.Wait()
	final := <-updates
	assert.Contains(t, final.Results.Summary, "no significant findings")
	assert.False(t, final.Results.IsGeneratingComprehensiveAnalysis)
}

func shapeTitles(steps []mission.Step) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Title
	}
	return out
}

type fakeExecutor struct {
	fn func(ctx context.Context, step *mission.Step, findings string) error
}

func (f fakeExecutor) ExecuteStep(ctx context.Context, step *mission.Step, findings string) error {
	step.Begin(time.Now())
	err := f.fn(ctx, step, findings)
	if err != nil {
		step.Failf(err, time.Now())
		return err
	}
	step.Complete(step.Results, time.Now())
	return nil
}

type gatedSynth struct {
	release chan struct{}
}

func (g gatedSynth) Comprehensive(_ context.Context, snap *mission.Mission, basic mission.Results) synthesizer.Update {
	<-g.release
	r := basic.Clone()
	r.Summary = "final"
	r.IsGeneratingComprehensiveAnalysis = false
	return synthesizer.Update{MissionID: snap.ID, Results: r}
}

func TestExecuteResearchPlanTwoPhase(t *testing.T) {
	var findings []string
	exec := fakeExecutor{fn: func(_ context.Context, step *mission.Step, f string) error {
		findings = append(findings, f)
		if step.Order%2 == 1 {
			return errors.New("boom")
		}
		step.Results = []mission.SourceResult{{URL: fmt.Sprintf("https://s/%d", step.Order), Content: strings.Repeat("c", 250)}}
		return nil
	}}
	gate := gatedSynth{release: make(chan struct{})}
	r := NewRunner(exec, gate, nil)

	m := mission.New("Topic", "seed description")
	m.Steps = planner.FallbackSteps("Topic")
	updated := make(chan struct{})
	basic, err := r.ExecuteResearchPlan(context.Background(), m, Hooks{OnMissionUpdate: func(*mission.Mission) { close(updated) }})
	require.NoError(t, err)
	require.NotNil(t, basic)
	require.NotSame(t, m, basic)

	assert.Equal(t, mission.StatusCompleted, basic.Status)
	assert.Len(t, basic.Steps, 5)
	assert.True(t, basic.Results.IsGeneratingComprehensiveAnalysis)
	assert.Equal(t, 3, basic.Results.CompletedSteps)

	// findings start from the description and grow only after successful steps
	require.Len(t, findings, 5)
	assert.Equal(t, "seed description", findings[0])
	assert.Equal(t, "seed description "+strings.Repeat("c", 200), findings[1])
	assert.Equal(t, findings[1], findings[2])

	close(gate.release)
	r.Wait()
	<-updated
	snap := r.Snapshot(m)
	assert.False(t, snap.Results.IsGeneratingComprehensiveAnalysis)
	assert.Equal(t, "final", snap.Results.Summary)

	// the basic copy keeps what the caller was handed
	assert.True(t, basic.Results.IsGeneratingComprehensiveAnalysis)
	assert.NotEqual(t, "final", basic.Results.Summary)
}

func TestExecuteResearchPlanCancelBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	exec := fakeExecutor{fn: func(context.Context, *mission.Step, string) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return nil
	}}
	r := NewRunner(exec, gatedSynth{release: make(chan struct{})}, nil)
	m := mission.New("Topic", "seed description")
	m.Steps = planner.FallbackSteps("Topic")

	got, err := r.ExecuteResearchPlan(ctx, m, Hooks{})
	require.ErrorIs(t, err, ErrCancelled)
	r.Wait()
	assert.Equal(t, mission.StatusError, got.Status)

	snap := r.Snapshot(m)
	assert.Equal(t, 2, calls)
	assert.Equal(t, mission.StatusError, snap.Status)
	assert.Equal(t, ErrCancelled.Error(), snap.Error)
	assert.Nil(t, snap.Results)
	assert.Equal(t, mission.StepCompleted, snap.Steps[1].Status)
	assert.Equal(t, mission.StepPending, snap.Steps[2].Status)
}

func TestExecuteResearchPlanRejectsFinishedMission(t *testing.T) {
	r := NewRunner(fakeExecutor{fn: func(context.Context, *mission.Step, string) error { return nil }}, nil, nil)
	m := mission.New("Topic", "seed description")
	m.Status = mission.StatusCompleted

	got, err := r.ExecuteResearchPlan(context.Background(), m, Hooks{})
	require.ErrorIs(t, err, mission.ErrInvalidTransition)
	assert.Equal(t, mission.StatusError, got.Status)
	assert.Equal(t, mission.StatusError, r.Snapshot(m).Status)
}

type fallbackPlanner struct{}

func (fallbackPlanner) PlanSteps(_ context.Context, topic string) []mission.Step {
	return planner.FallbackSteps(topic)
}

func TestAgentExclusivityAndCancel(t *testing.T) {
	started := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	exec := fakeExecutor{fn: func(context.Context, *mission.Step, string) error {
		once.Do(func() { close(started) })
		<-unblock
		return nil
	}}
	agent := NewAgent(fallbackPlanner{}, NewRunner(exec, gatedSynth{release: make(chan struct{})}, nil))

	assert.ErrorIs(t, agent.Cancel(""), ErrNoActiveMission)

	type result struct {
		m   *mission.Mission
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := agent.StartResearch(context.Background(), "First topic", "first description", Hooks{})
		done <- result{m, err}
	}()
	<-started

	assert.True(t, agent.IsProcessing())
	_, err := agent.StartResearch(context.Background(), "Second topic", "second description", Hooks{})
	assert.ErrorIs(t, err, ErrAlreadyProcessing)

	cur := agent.CurrentMission()
	require.NotNil(t, cur)
	assert.Equal(t, mission.StatusResearching, cur.Status)
	assert.Equal(t, planningShare, cur.Progress)
	assert.Equal(t, mission.StepExecuting, cur.Steps[0].Status)

	assert.ErrorIs(t, agent.Cancel("not-the-id"), ErrMissionMismatch)
	require.NoError(t, agent.Cancel(cur.ID))
	close(unblock)

	res := <-done
	require.ErrorIs(t, res.err, ErrCancelled)
	assert.Equal(t, mission.StatusError, res.m.Status)
	assert.False(t, agent.IsProcessing())
	assert.Nil(t, agent.CurrentMission())
}

func TestAppendDigest(t *testing.T) {
	long := strings.Repeat("word ", 80)
	results := []mission.SourceResult{{Content: long}, {Content: "  "}, {Content: "b"}, {Content: "not included"}}
	got := appendDigest("seed", results)
	assert.True(t, strings.HasPrefix(got, "seed word"))
	assert.True(t, strings.HasSuffix(got, " b"))
	assert.NotContains(t, got, "not included")
	assert.Equal(t, "seed", appendDigest("seed", nil))
}

func TestValidateTopic(t *testing.T) {
	testCases := []struct {
		name        string
		title       string
		description string
		wantErr     bool
	}{
		{name: "Valid", title: "EVs", description: "Compare ownership costs"},
		{name: "Title too short", title: "EV", description: "Compare ownership costs", wantErr: true},
		{name: "Title too long", title: strings.Repeat("t", 201), description: "Compare ownership costs", wantErr: true},
		{name: "Description too short", title: "EVs", description: "short", wantErr: true},
		{name: "Description too long", title: "EVs", description: strings.Repeat("d", 2001), wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTopic(tc.title, tc.description)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTopic)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTopic(t *testing.T) {
	assert.Equal(t, "EVs: Compare ownership costs", Topic(" EVs ", "Compare ownership costs "))
	assert.Equal(t, "EVs", Topic("EVs", ""))
	assert.Equal(t, "Grid storage costs", Topic("Grid storage costs", "grid storage costs"))
}
