package mission

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusPlanning    Status = "planning"
	StatusResearching Status = "researching"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
)

// rank orders the forward path; error sits outside it.
var rank = map[Status]int{
	StatusPending:     0,
	StatusPlanning:    1,
	StatusResearching: 2,
	StatusCompleted:   3,
}

var ErrInvalidTransition = errors.New("invalid mission status transition")

// CanTransition reports whether a mission may move from one status to another.
// Any status may fall into error; only researching may complete.
func CanTransition(from, to Status) bool {
	if to == StatusError {
		return true
	}
	if from == StatusError || from == StatusCompleted {
		return false
	}
	if to == StatusCompleted {
		return from == StatusResearching
	}
	f, okFrom := rank[from]
	t, okTo := rank[to]
	return okFrom && okTo && t > f
}

type Mission struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Steps       []Step    `json:"steps"`
	Results     *Results  `json:"results,omitempty"`
	Progress    float64   `json:"progress"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func New(title, description string) *Mission {
	now := time.Now()
	return &Mission{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (m *Mission) SetStatus(to Status) error {
	if m.Status == to {
		return nil
	}
	if !CanTransition(m.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.Status, to)
	}
	m.Status = to
	m.Touch()
	return nil
}

// Fail moves the mission into error and records why.
func (m *Mission) Fail(err error) {
	m.Status = StatusError
	if err != nil {
		m.Error = err.Error()
	}
	m.Touch()
}

func (m *Mission) Touch() {
	m.UpdatedAt = time.Now()
}

func (m *Mission) CompletedSteps() int {
	n := 0
	for _, s := range m.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that is safe to hand to another goroutine.
func (m *Mission) Clone() *Mission {
	if m == nil {
		return nil
	}
	out := *m
	if m.Steps != nil {
		out.Steps = make([]Step, len(m.Steps))
		for i := range m.Steps {
			out.Steps[i] = m.Steps[i].clone()
		}
	}
	if m.Results != nil {
		r := m.Results.Clone()
		out.Results = &r
	}
	return &out
}
