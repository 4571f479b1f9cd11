package synthesizer

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"researcher/internal/logger"
	"researcher/internal/mission"
	"researcher/internal/utils"
)

const (
	minBlockLen    = 100
	maxBlockPrompt = 2000
)

// AnalysisGenerator produces the long-form report, normally *search.Adapter.
type AnalysisGenerator interface {
	GenerateComprehensiveAnalysis(ctx context.Context, prompt string) (string, error)
}

type ContentBlock struct {
	StepTitle string
	Content   string
	URL       string
}

// CollectContentBlocks returns the substantial source texts of completed steps.
func CollectContentBlocks(m *mission.Mission) []ContentBlock {
	var blocks []ContentBlock
	for _, s := range m.Steps {
		if s.Status != mission.StepCompleted {
			continue
		}
		for _, r := range s.Results {
			if utf8.RuneCountInString(r.Content) <= minBlockLen {
				continue
			}
			blocks = append(blocks, ContentBlock{StepTitle: s.Title, Content: r.Content, URL: r.URL})
		}
	}
	return blocks
}

// Prompt for the analyst report over all collected sources
func BuildComprehensivePrompt(m *mission.Mission, blocks []ContentBlock) string {
	var sb strings.Builder

	sb.WriteString("You are a senior research analyst. Write a comprehensive research report based ONLY on the sources below. Do not invent facts, figures or citations.\n\n")
	sb.WriteString(fmt.Sprintf("RESEARCH TOPIC: %s\n", m.Title))
	sb.WriteString(fmt.Sprintf("DESCRIPTION: %s\n\n", m.Description))

	sb.WriteString("SOURCES:\n")
	for i, b := range blocks {
		sb.WriteString(fmt.Sprintf("[%d] Step: %s\nURL: %s\n%s\n\n", i+1, b.StepTitle, b.URL, utils.Truncate(b.Content, maxBlockPrompt)))
	}

	sb.WriteString("REPORT STRUCTURE:\n")
	sb.WriteString("1. Executive Summary: 2-3 paragraphs answering the research question directly.\n")
	sb.WriteString("2. Detailed Analysis: cover 4-6 major themes, each with supporting evidence from the sources.\n")
	sb.WriteString("3. Key Findings: 8-10 specific, evidence-backed findings.\n")
	sb.WriteString("4. Trends and Patterns: what is changing and in which direction.\n")
	sb.WriteString("5. Implications: what the findings mean for stakeholders.\n")
	sb.WriteString("6. Recommendations: 5-7 actionable recommendations.\n")
	sb.WriteString("7. Further Research: 3-5 open questions or areas worth investigating next.\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("- Refer to sources by their [number] when citing.\n")
	sb.WriteString("- If sources disagree, say so and explain the disagreement.\n")
	sb.WriteString("- Use plain text headings; no tables.\n")

	return sb.String()
}

// Update carries the outcome of the comprehensive phase back to the owner
// of the mission.
type Update struct {
	MissionID string
	Results   mission.Results
	Err       error
}

// Apply splices the update into m. It reports false when the update belongs
// to another mission.
func (u Update) Apply(m *mission.Mission) bool {
	if m == nil || m.ID != u.MissionID {
		return false
	}
	r := u.Results.Clone()
	m.Results = &r
	m.Touch()
	return true
}

type Synthesizer struct {
	gen AnalysisGenerator
}

func New(gen AnalysisGenerator) *Synthesizer {
	return &Synthesizer{gen: gen}
}

// Comprehensive derives the final results from basic. It never fails: a
// model error degrades the summary and is reported in Update.Err. The
// generating flag is cleared in every outcome.
func (s *Synthesizer) Comprehensive(ctx context.Context, snapshot *mission.Mission, basic mission.Results) Update {
	out := basic.Clone()
	out.IsGeneratingComprehensiveAnalysis = false
	out.GeneratedAt = time.Now()
	u := Update{MissionID: snapshot.ID}

	blocks := CollectContentBlocks(snapshot)
	if len(blocks) == 0 {
		logger.Log.Printf("[Synthesizer] mission %s: no content for analysis", snapshot.ID)
		out.Summary = fmt.Sprintf("Research on %q completed, but no significant findings were retrieved from the executed steps.", snapshot.Title)
		out.Phase = mission.PhaseComprehensive
		u.Results = out
		return u
	}

	var text string
	var err error
	if s.gen == nil {
		err = fmt.Errorf("no analysis generator configured")
	} else {
		text, err = s.gen.GenerateComprehensiveAnalysis(ctx, BuildComprehensivePrompt(snapshot, blocks))
	}
	if err != nil {
		logger.Log.Printf("[Synthesizer] mission %s: comprehensive analysis failed: %v", snapshot.ID, err)
		return Failed(snapshot.ID, basic, err)
	}

	logger.Log.Printf("[Synthesizer] mission %s: comprehensive analysis ready (%d chars)", snapshot.ID, len(text))
	out.Summary = text
	out.Phase = mission.PhaseComprehensive
	u.Results = out
	return u
}

// Failed is the update for a comprehensive phase that could not finish: the
// generating trailer becomes FailureNotice and the flag is cleared.
func Failed(missionID string, basic mission.Results, err error) Update {
	out := basic.Clone()
	out.IsGeneratingComprehensiveAnalysis = false
	out.GeneratedAt = time.Now()
	out.Summary = degrade(out.Summary)
	out.Phase = mission.PhaseDegraded
	return Update{MissionID: missionID, Results: out, Err: err}
}

func degrade(summary string) string {
	if strings.Contains(summary, GeneratingTrailer) {
		return strings.Replace(summary, GeneratingTrailer, FailureNotice, 1)
	}
	return strings.TrimSpace(summary + "\n\n" + FailureNotice)
}
