package planner

import (
	"context"
	"fmt"
	"strings"

	"researcher/internal/logger"
	"researcher/internal/metrics"
	"researcher/internal/mission"
	"researcher/internal/parser"
)

// MaxSteps caps model-generated plans.
const MaxSteps = 10

// StepGenerator is the model-backed step source, normally *search.Adapter.
type StepGenerator interface {
	GenerateResearchSteps(ctx context.Context, topic string) ([]parser.PlannedStep, error)
}

type Planner struct {
	gen     StepGenerator
	metrics *metrics.Metrics
}

func New(gen StepGenerator, m *metrics.Metrics) *Planner {
	return &Planner{gen: gen, metrics: m}
}

// PlanSteps returns an ordered list of pending steps for topic. It never
// fails: any problem with the generated plan yields FallbackSteps(topic).
func (p *Planner) PlanSteps(ctx context.Context, topic string) []mission.Step {
	steps, err := p.generate(ctx, topic)
	if err != nil {
		logger.Log.Printf("[Planner] using fallback plan for %q: %v", topic, err)
		p.metrics.PlannerFallback()
		return FallbackSteps(topic)
	}
	logger.Log.Printf("[Planner] generated %d steps for %q", len(steps), topic)
	return steps
}

func (p *Planner) generate(ctx context.Context, topic string) ([]mission.Step, error) {
	if p.gen == nil {
		return nil, fmt.Errorf("no step generator configured")
	}
	planned, err := p.gen.GenerateResearchSteps(ctx, topic)
	if err != nil {
		return nil, err
	}
	if len(planned) == 0 {
		return nil, parser.ErrEmptySteps
	}
	if len(planned) > MaxSteps {
		planned = planned[:MaxSteps]
	}
	return FromPlanned(planned)
}

// FromPlanned converts parsed steps into pending mission steps.
func FromPlanned(planned []parser.PlannedStep) ([]mission.Step, error) {
	steps := make([]mission.Step, 0, len(planned))
	for i, ps := range planned {
		prio := mission.Priority(strings.ToLower(ps.Priority))
		if !prio.Valid() {
			return nil, &parser.FieldError{Index: i, Field: "priority", Err: parser.ErrInvalidPriority}
		}
		steps = append(steps, mission.NewStep(ps.Title, ps.Description, prio, ps.EstimatedDuration, i))
	}
	return steps, nil
}

// ToPlanned is the inverse of FromPlanned, used to save a plan for editing.
func ToPlanned(steps []mission.Step) []parser.PlannedStep {
	out := make([]parser.PlannedStep, len(steps))
	for i, s := range steps {
		out[i] = parser.PlannedStep{
			Title:             s.Title,
			Description:       s.Description,
			Priority:          string(s.Priority),
			EstimatedDuration: s.EstimatedDuration,
		}
	}
	return out
}

type template struct {
	title       string
	description string // %s is the topic
	priority    mission.Priority
	duration    string
}

var fallbackTemplate = []template{
	{"Foundation Research", "Gather background information and key definitions about %s", mission.PriorityHigh, "5-10 minutes"},
	{"Detailed Analysis", "Analyze the main factors, mechanisms and data behind %s", mission.PriorityHigh, "10-15 minutes"},
	{"Current Status", "Find the latest developments, news and statistics on %s", mission.PriorityMedium, "5-10 minutes"},
	{"Expert Insights", "Collect expert opinions, studies and authoritative sources on %s", mission.PriorityMedium, "10-15 minutes"},
	{"Summary & Validation", "Cross-check the key facts and conclusions about %s", mission.PriorityLow, "5-10 minutes"},
}

// FallbackSteps is the fixed five-step plan used when generation fails. Only
// the topic varies between calls.
func FallbackSteps(topic string) []mission.Step {
	topic = strings.TrimSpace(topic)
	steps := make([]mission.Step, len(fallbackTemplate))
	for i, t := range fallbackTemplate {
		steps[i] = mission.NewStep(t.title, fmt.Sprintf(t.description, topic), t.priority, t.duration, i)
	}
	return steps
}
