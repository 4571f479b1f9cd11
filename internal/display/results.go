package display

import (
	"fmt"
	"strings"

	"researcher/internal/mission"
)

const maxListedSources = 10

func FormatResults(r *mission.Results) string {
	if r == nil {
		return "No results available."
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Results (%s, %d/%d steps completed):\n", r.Phase, r.CompletedSteps, r.TotalSteps))
	sb.WriteString("--------------------------------------------------\n")
	sb.WriteString(strings.TrimSpace(r.Summary) + "\n")

	if len(r.Sources) > 0 {
		sb.WriteString(fmt.Sprintf("\nSources (%d):\n", len(r.Sources)))
		for i, s := range r.Sources {
			if i == maxListedSources {
				sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(r.Sources)-maxListedSources))
				break
			}
			sb.WriteString(fmt.Sprintf("  %2d. %s\n      %s\n", i+1, formatValueForDisplay(s.Title, maxValueLength), s.URL))
		}
	}
	if len(r.Recommendations) > 0 {
		sb.WriteString("\nRecommendations:\n")
		for _, rec := range r.Recommendations {
			sb.WriteString("  - " + rec + "\n")
		}
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

// one-line mission status
func FormatMission(m *mission.Mission) string {
	if m == nil {
		return "No mission."
	}
	line := fmt.Sprintf("Mission %s %q: %s (%.0f%%, %d/%d steps)", m.ID, m.Title, m.Status, m.Progress, m.CompletedSteps(), len(m.Steps))
	if m.Error != "" {
		line += " - " + m.Error
	}
	return line
}
