package parser

// PlannedStep is one research step as emitted by the model.
type PlannedStep struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	Priority          string `json:"priority"`
	EstimatedDuration string `json:"estimatedDuration"`
}

// requiredFields lists the keys every planned step must carry, in the order
// they are reported when missing.
var requiredFields = []string{"title", "description", "priority", "estimatedDuration"}
