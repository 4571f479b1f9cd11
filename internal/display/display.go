package display

import (
	"fmt"
	"strings"

	"researcher/internal/mission"
)

const maxValueLength = 100

// stdout plan (truncated)
func FormatPlan(steps []mission.Step) string {
	return formatPlanInternal(steps, maxValueLength)
}

// full plan (no truncation), used for logs
func FormatPlanFull(steps []mission.Step) string {
	return formatPlanInternal(steps, -1)
}

func formatPlanInternal(steps []mission.Step, limit int) string {
	var sb strings.Builder
	sb.WriteString("Research plan:\n")
	sb.WriteString("--------------------------------------------------\n")

	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("Step %d: %s [%s, %s]\n", s.Order+1, s.Title, orDash(string(s.Priority)), orDash(s.EstimatedDuration)))
		sb.WriteString(fmt.Sprintf("    %s\n", formatValueForDisplay(s.Description, limit)))
	}
	sb.WriteString("--------------------------------------------------")
	return sb.String()
}

func formatValueForDisplay(value string, limit int) string {
	s := strings.ReplaceAll(value, "\n", "\\n")
	if limit >= 0 && len([]rune(s)) > limit {
		return string([]rune(s)[:limit]) + "..."
	}
	return s
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
