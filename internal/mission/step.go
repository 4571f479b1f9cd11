package mission

import (
	"time"

	"github.com/google/uuid"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepExecuting StepStatus = "executing"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type Step struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Query             string         `json:"query,omitempty"`
	Status            StepStatus     `json:"status"`
	Priority          Priority       `json:"priority,omitempty"`
	EstimatedDuration string         `json:"estimatedDuration,omitempty"`
	Order             int            `json:"order"`
	Results           []SourceResult `json:"results,omitempty"`
	Error             string         `json:"error,omitempty"`
	StartedAt         *time.Time     `json:"startedAt,omitempty"`
	CompletedAt       *time.Time     `json:"completedAt,omitempty"`
}

func NewStep(title, description string, priority Priority, duration string, order int) Step {
	return Step{
		ID:                uuid.NewString(),
		Title:             title,
		Description:       description,
		Status:            StepPending,
		Priority:          priority,
		EstimatedDuration: duration,
		Order:             order,
	}
}

// Begin clears any previous execution state and marks the step executing.
func (s *Step) Begin(now time.Time) {
	s.Status = StepExecuting
	s.Query = ""
	s.Results = nil
	s.Error = ""
	s.CompletedAt = nil
	s.StartedAt = &now
}

func (s *Step) Complete(results []SourceResult, now time.Time) {
	s.Status = StepCompleted
	s.Results = results
	s.CompletedAt = &now
}

func (s *Step) Failf(err error, now time.Time) {
	s.Status = StepError
	if err != nil {
		s.Error = err.Error()
	}
	if s.Error == "" {
		s.Error = "step failed"
	}
	s.CompletedAt = &now
}

// Reindex assigns sequential order values in slice order.
func Reindex(steps []Step) {
	for i := range steps {
		steps[i].Order = i
	}
}

func (s Step) clone() Step {
	out := s
	if s.Results != nil {
		out.Results = append([]SourceResult(nil), s.Results...)
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
