package synthesizer

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"researcher/internal/mission"
)

const (
	MaxSources         = 20
	maxRecommendations = 4

	minFindingLen = 50
	maxFindingLen = 200

	// GeneratingTrailer closes the basic summary until the comprehensive
	// analysis replaces it.
	GeneratingTrailer = "Generating comprehensive analysis..."
	FailureNotice     = "Comprehensive analysis could not be generated. The summary above is based on the key findings only."
)

// GenerateBasicResults builds the fast, extractive result set from the
// mission's steps. It makes no model calls.
func GenerateBasicResults(m *mission.Mission) mission.Results {
	sources := dedupSources(m.Steps)
	findings := keyFindings(m.Steps)
	completed := m.CompletedSteps()

	return mission.Results{
		Summary:                           basicSummary(m, completed, len(sources), findings),
		KeyFindings:                       findings,
		Sources:                           sources,
		Recommendations:                   recommendations(m, len(sources)),
		CompletedSteps:                    completed,
		TotalSteps:                        len(m.Steps),
		IsGeneratingComprehensiveAnalysis: true,
		Phase:                             mission.PhaseBasic,
		GeneratedAt:                       time.Now(),
	}
}

// dedupSources collects results in step order, keeping the first occurrence
// of each URL, up to MaxSources.
func dedupSources(steps []mission.Step) []mission.SourceResult {
	seen := make(map[string]struct{})
	out := []mission.SourceResult{}
	for _, s := range steps {
		for _, r := range s.Results {
			if len(out) == MaxSources {
				return out
			}
			if _, ok := seen[r.URL]; ok {
				continue
			}
			seen[r.URL] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func keyFindings(steps []mission.Step) []string {
	out := []string{}
	for _, s := range steps {
		if s.Status != mission.StepCompleted || len(s.Results) == 0 {
			continue
		}
		top := s.Results[0]
		for _, r := range s.Results[1:] {
			if r.Score > top.Score {
				top = r
			}
		}
		if f := firstSentenceInRange(top.Content, minFindingLen, maxFindingLen); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// firstSentenceInRange returns the first sentence of text whose rune length
// lies in [min, max], or "".
func firstSentenceInRange(text string, min, max int) string {
	for _, s := range splitSentences(text) {
		if n := utf8.RuneCountInString(s); n >= min && n <= max {
			return s
		}
	}
	return ""
}

// splitSentences breaks on '.', '!' or '?' followed by whitespace or the end
// of the text.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		out = append(out, tail)
	}
	return out
}

func basicSummary(m *mission.Mission, completed, sources int, findings []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Research completed on: %s\n\n", m.Title))
	if d := strings.TrimSpace(m.Description); d != "" {
		sb.WriteString(d + "\n\n")
	}
	sb.WriteString(fmt.Sprintf("Successfully completed %d of %d research steps and gathered %d unique sources.\n\n", completed, len(m.Steps), sources))
	sb.WriteString("Key findings:\n")
	if len(findings) == 0 {
		sb.WriteString("No key findings could be extracted from the retrieved sources.\n")
	}
	for i, f := range findings {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, f))
	}
	sb.WriteString("\n" + GeneratingTrailer)
	return sb.String()
}

func recommendations(m *mission.Mission, sources int) []string {
	recs := []string{"Cross-reference the findings across multiple independent sources before drawing conclusions."}

	var trend, failed bool
	for _, s := range m.Steps {
		if strings.Contains(strings.ToLower(s.Title), "trend") {
			trend = true
		}
		if s.Status == mission.StepError {
			failed = true
		}
	}
	if trend {
		recs = append(recs, fmt.Sprintf("Monitor emerging trends in %s, as this area is still evolving.", m.Title))
	}
	if failed {
		recs = append(recs, "Consult subject-matter experts to cover the research steps that could not be completed.")
	}
	if sources < 5 {
		recs = append(recs, "Run deeper follow-up research; fewer than five distinct sources were found.")
	}
	if len(recs) > maxRecommendations {
		recs = recs[:maxRecommendations]
	}
	return recs
}
