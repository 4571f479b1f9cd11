package display

import (
	"fmt"

	"researcher/internal/mission"
)

func FormatProgress(step mission.Step, progress float64) string {
	switch step.Status {
	case mission.StepError:
		return fmt.Sprintf("[%5.1f%%] Step %d %q FAILED: %s", progress, step.Order+1, step.Title, formatValueForDisplay(step.Error, maxValueLength))
	case mission.StepCompleted:
		return fmt.Sprintf("[%5.1f%%] Step %d %q done (%d sources)", progress, step.Order+1, step.Title, len(step.Results))
	default:
		return fmt.Sprintf("[%5.1f%%] Step %d %q %s", progress, step.Order+1, step.Title, step.Status)
	}
}
