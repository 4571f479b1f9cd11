package display

import (
	"errors"
	"strings"
	"testing"
	"time"

	"researcher/internal/mission"
)

func TestFormatPlan(t *testing.T) {
	steps := []mission.Step{
		mission.NewStep("Foundation Research", "Gather background on solid-state batteries", mission.PriorityHigh, "5-10 minutes", 0),
		mission.NewStep("Current Status", strings.Repeat("x", 150), "", "", 1),
	}

	resultString := FormatPlan(steps)

	expectedSubstrings := []string{
		"Research plan:",
		"Step 1: Foundation Research [high, 5-10 minutes]",
		"Gather background on solid-state batteries",
		"Step 2: Current Status [-, -]",
		strings.Repeat("x", 100) + "...",
	}
	for _, sub := range expectedSubstrings {
		if !strings.Contains(resultString, sub) {
			t.Errorf("FormatPlan() output missing %q\nGot:\n%s", sub, resultString)
		}
	}
	if strings.Contains(resultString, strings.Repeat("x", 101)) {
		t.Errorf("FormatPlan() did not truncate long description")
	}

	full := FormatPlanFull(steps)
	if !strings.Contains(full, strings.Repeat("x", 150)) {
		t.Errorf("FormatPlanFull() truncated description")
	}
}

func TestFormatValueForDisplay(t *testing.T) {
	if got := formatValueForDisplay("a\nb", 10); got != `a\nb` {
		t.Errorf("newline not escaped: %q", got)
	}
	if got := formatValueForDisplay("héllo wörld", 5); got != "héllo..." {
		t.Errorf("rune truncation: %q", got)
	}
}

func TestFormatProgress(t *testing.T) {
	now := time.Now()
	ok := mission.NewStep("Expert Insights", "d", mission.PriorityMedium, "", 3)
	ok.Begin(now)
	ok.Complete([]mission.SourceResult{{URL: "https://a"}, {URL: "https://b"}}, now)

	bad := mission.NewStep("Detailed Analysis", "d", mission.PriorityHigh, "", 1)
	bad.Begin(now)
	bad.Failf(errors.New("quota exceeded"), now)

	tests := []struct {
		step mission.Step
		pct  float64
		want []string
	}{
		{ok, 81, []string{"[ 81.0%]", `Step 4 "Expert Insights" done (2 sources)`}},
		{bad, 43, []string{"[ 43.0%]", `Step 2 "Detailed Analysis" FAILED`, "quota exceeded"}},
	}
	for _, tt := range tests {
		got := FormatProgress(tt.step, tt.pct)
		for _, sub := range tt.want {
			if !strings.Contains(got, sub) {
				t.Errorf("FormatProgress() = %q, missing %q", got, sub)
			}
		}
	}
}

func TestFormatResults(t *testing.T) {
	if got := FormatResults(nil); got != "No results available." {
		t.Errorf("FormatResults(nil) = %q", got)
	}

	sources := make([]mission.SourceResult, 12)
	for i := range sources {
		sources[i] = mission.SourceResult{Title: "Source", URL: "https://example.com"}
	}
	r := &mission.Results{
		Summary:         "Research completed on: EVs",
		Sources:         sources,
		Recommendations: []string{"Cross-reference findings"},
		CompletedSteps:  4,
		TotalSteps:      5,
		Phase:           mission.PhaseBasic,
	}
	got := FormatResults(r)
	for _, sub := range []string{
		"Results (basic, 4/5 steps completed):",
		"Research completed on: EVs",
		"Sources (12):",
		" 10. Source",
		"... and 2 more",
		"- Cross-reference findings",
	} {
		if !strings.Contains(got, sub) {
			t.Errorf("FormatResults() missing %q\nGot:\n%s", sub, got)
		}
	}
	if strings.Contains(got, " 11. ") {
		t.Errorf("FormatResults() listed more than %d sources", maxListedSources)
	}
}

func TestFormatMission(t *testing.T) {
	m := mission.New("EVs", "Compare ownership costs")
	m.Fail(errors.New("mission cancelled"))

	got := FormatMission(m)
	if !strings.Contains(got, `"EVs": error`) || !strings.Contains(got, "mission cancelled") {
		t.Errorf("FormatMission() = %q", got)
	}
	if FormatMission(nil) != "No mission." {
		t.Errorf("FormatMission(nil) mismatch")
	}
}
