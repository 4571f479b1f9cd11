package synthesizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"researcher/internal/mission"
)

const longSentence = "Electric vehicles have lower lifetime running costs than comparable gasoline cars."

func completedStep(title string, results ...mission.SourceResult) mission.Step {
	s := mission.NewStep(title, title, mission.PriorityHigh, "5 minutes", 0)
	s.Status = mission.StepCompleted
	s.Results = results
	return s
}

func failedStep(title string) mission.Step {
	s := mission.NewStep(title, title, mission.PriorityLow, "5 minutes", 0)
	s.Status = mission.StepError
	s.Error = "quota exceeded"
	return s
}

func src(url string, score float64, content string) mission.SourceResult {
	return mission.SourceResult{Title: url, URL: url, Score: score, Content: content}
}

func testMission(steps ...mission.Step) *mission.Mission {
	m := mission.New("EVs vs gasoline", "Compare total cost of ownership")
	m.Steps = steps
	mission.Reindex(m.Steps)
	return m
}

func TestGenerateBasicResultsDedupFirstSeen(t *testing.T) {
	m := testMission(
		completedStep("A", src("https://x", 0.2, "first"), src("https://y", 0.5, "y")),
		completedStep("B", src("https://x", 0.9, "second")),
	)

	r := GenerateBasicResults(m)
	require.Len(t, r.Sources, 2)
	assert.Equal(t, "first", r.Sources[0].Content)
	assert.Equal(t, "https://y", r.Sources[1].URL)
}

func TestGenerateBasicResultsCapsSources(t *testing.T) {
	var a, b []mission.SourceResult
	for i := 0; i < 15; i++ {
		a = append(a, src(fmt.Sprintf("https://a/%d", i), 0.5, "a"))
		b = append(b, src(fmt.Sprintf("https://b/%d", i), 0.5, "b"))
	}
	r := GenerateBasicResults(testMission(completedStep("A", a...), completedStep("B", b...)))
	assert.Len(t, r.Sources, MaxSources)
	assert.Equal(t, "https://a/0", r.Sources[0].URL)
	assert.Equal(t, "https://b/4", r.Sources[19].URL)
}

func TestGenerateBasicResultsKeyFindings(t *testing.T) {
	top := "Too short. " + longSentence + " Another sentence follows here."
	m := testMission(
		completedStep("A", src("https://low", 0.1, "Low scored content that is long enough to count as a finding sentence."), src("https://top", 0.9, top)),
		completedStep("B", src("https://short", 1, "Nothing qualifies. At all.")),
		failedStep("C"),
	)

	r := GenerateBasicResults(m)
	assert.Equal(t, []string{longSentence}, r.KeyFindings)
	assert.Equal(t, 2, r.CompletedSteps)
	assert.Equal(t, 3, r.TotalSteps)
	assert.True(t, r.IsGeneratingComprehensiveAnalysis)
	assert.Equal(t, mission.PhaseBasic, r.Phase)

	assert.Contains(t, r.Summary, "Research completed on: EVs vs gasoline")
	assert.Contains(t, r.Summary, "Successfully completed 2 of 3 research steps")
	assert.Contains(t, r.Summary, "Key findings:\n1. "+longSentence)
	assert.True(t, strings.HasSuffix(r.Summary, GeneratingTrailer))
}

func TestRecommendations(t *testing.T) {
	m := testMission(completedStep("Market trends"), failedStep("Expert views"))
	r := GenerateBasicResults(m)
	require.Len(t, r.Recommendations, 4)
	assert.Contains(t, r.Recommendations[0], "Cross-reference")
	assert.Contains(t, r.Recommendations[1], "trends in EVs vs gasoline")
	assert.Contains(t, r.Recommendations[2], "experts")
	assert.Contains(t, r.Recommendations[3], "fewer than five")

	var many []mission.SourceResult
	for i := 0; i < 6; i++ {
		many = append(many, src(fmt.Sprintf("https://s/%d", i), 0.5, "c"))
	}
	r = GenerateBasicResults(testMission(completedStep("Costs", many...)))
	assert.Len(t, r.Recommendations, 1)
}

func TestGenerateBasicResultsAllEmpty(t *testing.T) {
	m := testMission(failedStep("A"), failedStep("B"))
	r := GenerateBasicResults(m)
	assert.Empty(t, r.Sources)
	assert.NotNil(t, r.Sources)
	assert.Empty(t, r.KeyFindings)
	assert.Equal(t, 0, r.CompletedSteps)
	assert.Contains(t, r.Summary, "Successfully completed 0 of 2 research steps")
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Version 2.5 shipped. Is it fast?  Yes! trailing")
	assert.Equal(t, []string{"Version 2.5 shipped.", "Is it fast?", "Yes!", "trailing"}, got)
}

func TestCollectContentBlocks(t *testing.T) {
	long := strings.Repeat("x", 101)
	m := testMission(
		completedStep("A", src("https://a", 1, long), src("https://b", 1, strings.Repeat("y", 100))),
		failedStep("B"),
	)
	blocks := CollectContentBlocks(m)
	require.Len(t, blocks, 1)
	assert.Equal(t, ContentBlock{StepTitle: "A", Content: long, URL: "https://a"}, blocks[0])

	prompt := BuildComprehensivePrompt(m, blocks)
	for _, want := range []string{"EVs vs gasoline", "Compare total cost of ownership", "https://a", "Executive Summary", "4-6 major themes", "8-10", "5-7", "3-5"} {
		assert.Contains(t, prompt, want)
	}
}

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) GenerateComprehensiveAnalysis(context.Context, string) (string, error) {
	return s.text, s.err
}

func TestComprehensive(t *testing.T) {
	rich := testMission(completedStep("A", src("https://a", 1, strings.Repeat("evidence ", 20))))
	empty := testMission(completedStep("A", src("https://a", 1, "short")))

	testCases := []struct {
		name      string
		m         *mission.Mission
		gen       AnalysisGenerator
		wantPhase mission.Phase
		wantErr   bool
		check     func(t *testing.T, summary string)
	}{
		{
			name:      "Success replaces summary",
			m:         rich,
			gen:       stubGenerator{text: "Full report"},
			wantPhase: mission.PhaseComprehensive,
			check:     func(t *testing.T, s string) { assert.Equal(t, "Full report", s) },
		},
		{
			name:      "Failure replaces trailer",
			m:         rich,
			gen:       stubGenerator{err: errors.New("model down")},
			wantPhase: mission.PhaseDegraded,
			wantErr:   true,
			check: func(t *testing.T, s string) {
				assert.Contains(t, s, "Research completed on:")
				assert.Contains(t, s, FailureNotice)
			},
		},
		{
			name:      "No content short-circuits",
			m:         empty,
			gen:       stubGenerator{err: errors.New("must not be called")},
			wantPhase: mission.PhaseComprehensive,
			check:     func(t *testing.T, s string) { assert.Contains(t, s, "no significant findings") },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			basic := GenerateBasicResults(tc.m)
			u := New(tc.gen).Comprehensive(context.Background(), tc.m, basic)

			assert.Equal(t, tc.m.ID, u.MissionID)
			assert.False(t, u.Results.IsGeneratingComprehensiveAnalysis)
			assert.NotContains(t, u.Results.Summary, GeneratingTrailer)
			assert.Equal(t, tc.wantPhase, u.Results.Phase)
			assert.Equal(t, tc.wantErr, u.Err != nil)
			assert.Equal(t, basic.Sources, u.Results.Sources)
			tc.check(t, u.Results.Summary)

			// basic is untouched; the update is a new value
			assert.True(t, basic.IsGeneratingComprehensiveAnalysis)
		})
	}
}

func TestUpdateApply(t *testing.T) {
	m := testMission()
	before := m.UpdatedAt
	u := Update{MissionID: m.ID, Results: mission.Results{Summary: "done", Phase: mission.PhaseComprehensive}}

	assert.False(t, u.Apply(mission.New("other", "other mission")))
	require.True(t, u.Apply(m))
	require.NotNil(t, m.Results)
	assert.Equal(t, "done", m.Results.Summary)
	assert.False(t, m.UpdatedAt.Before(before))
}
