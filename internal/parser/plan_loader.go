package parser

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

/*
LoadStepsFromFile reads a hand-written research plan. It accepts the same
shapes a model reply may take:

 1. Wrapped:    { "steps": [ {..step..}, ... ] }
 2. Bare array: [ {..step..}, ... ]

Every step needs title, description, priority and estimatedDuration.
*/
func LoadStepsFromFile(path string) ([]PlannedStep, error) {
	clean := filepath.Clean(path)
	if _, err := os.Stat(clean); err != nil {
		return nil, fmt.Errorf("steps file not found: %s", clean)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	steps, err := ParseSteps(string(data))
	if err != nil {
		return nil, fmt.Errorf("steps file %s: %w", filepath.Base(clean), err)
	}
	return steps, nil
}

// WriteStepsFile saves steps in the wrapped shape LoadStepsFromFile reads.
func WriteStepsFile(path string, steps []PlannedStep) error {
	data, err := json.MarshalIndent(struct {
		Steps []PlannedStep `json:"steps"`
	}{steps}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode steps: %w", err)
	}
	if err := os.WriteFile(filepath.Clean(path), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
