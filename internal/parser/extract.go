package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	ErrEmptyResponse   = errors.New("empty model response")
	ErrNoJSON          = errors.New("no JSON array or object found in response")
	ErrMalformedJSON   = errors.New("malformed steps JSON")
	ErrEmptySteps      = errors.New("steps array is empty")
	ErrMissingField    = errors.New("step is missing a required field")
	ErrInvalidPriority = errors.New("step has an invalid priority")
	ErrInvalidType     = errors.New("step field must be a string")
)

// FieldError names the step and field that failed validation.
type FieldError struct {
	Index int
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("step %d field %q: %v", e.Index, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)```")

// ParseSteps extracts and validates the planned steps from a raw model reply.
// Replies may be wrapped in markdown fences or surrounded by prose.
func ParseSteps(raw string) ([]PlannedStep, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}

	body, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	items, err := decodeItems(body)
	if err != nil {
		repaired, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
		items, err = decodeItems(repaired)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
		}
	}
	if len(items) == 0 {
		return nil, ErrEmptySteps
	}

	steps := make([]PlannedStep, 0, len(items))
	for i, item := range items {
		step, err := validateItem(i, item)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// ExtractJSON strips code fences and slices from the first '[' or '{' to the
// last matching closer.
func ExtractJSON(raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	} else {
		// An unterminated fence still carries the payload after it.
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSpace(strings.TrimSuffix(text, "```"))
	}

	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := "]"
	if text[start] == '{' {
		closer = "}"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		// Truncated reply; leave the tail for the repair pass.
		return text[start:], nil
	}
	return text[start : end+1], nil
}

func decodeItems(body string) ([]map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace([]byte(body))
	if len(trimmed) == 0 {
		return nil, errors.New("empty JSON body")
	}

	var elems []json.RawMessage
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &elems); err != nil {
			return nil, err
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, err
		}
		if inner, ok := obj["steps"]; ok {
			if err := json.Unmarshal(inner, &elems); err != nil {
				return nil, fmt.Errorf("steps is not an array: %w", err)
			}
		} else if _, ok := obj["title"]; ok {
			elems = []json.RawMessage{trimmed}
		} else {
			return nil, errors.New("object has no steps array")
		}
	default:
		return nil, fmt.Errorf("unexpected JSON start %q", trimmed[0])
	}

	items := make([]map[string]json.RawMessage, 0, len(elems))
	for i, e := range elems {
		var item map[string]json.RawMessage
		if err := json.Unmarshal(e, &item); err != nil || item == nil {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		items = append(items, item)
	}
	return items, nil
}

func validateItem(index int, item map[string]json.RawMessage) (PlannedStep, error) {
	values := make(map[string]string, len(requiredFields))
	for _, field := range requiredFields {
		raw, ok := item[field]
		if !ok {
			return PlannedStep{}, &FieldError{Index: index, Field: field, Err: ErrMissingField}
		}
		s, err := fieldString(field, raw)
		if err != nil {
			return PlannedStep{}, &FieldError{Index: index, Field: field, Err: err}
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return PlannedStep{}, &FieldError{Index: index, Field: field, Err: ErrMissingField}
		}
		values[field] = s
	}

	priority := strings.ToLower(values["priority"])
	switch priority {
	case "high", "medium", "low":
	default:
		return PlannedStep{}, &FieldError{Index: index, Field: "priority", Err: ErrInvalidPriority}
	}

	return PlannedStep{
		Title:             values["title"],
		Description:       values["description"],
		Priority:          priority,
		EstimatedDuration: values["estimatedDuration"],
	}, nil
}

// fieldString decodes a JSON string. Numeric durations such as 10 are also
// accepted; null reads as empty.
func fieldString(field string, raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	trimmed := bytes.TrimSpace(raw)
	if string(trimmed) == "null" {
		return "", nil
	}
	if field == "estimatedDuration" {
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err == nil {
			return n.String(), nil
		}
	}
	return "", ErrInvalidType
}
