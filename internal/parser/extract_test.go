package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoSteps = `[{"title":"Basics","description":"Core concepts of solid state batteries","priority":"high","estimatedDuration":"5-10 minutes"},{"title":"Market","description":"Solid state battery market size 2024","priority":"Medium","estimatedDuration":"10 minutes"}]`

func TestParseSteps_Accepted(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "Clean JSON", raw: twoSteps},
		{name: "Fenced JSON", raw: "```json\n" + twoSteps + "\n```"},
		{name: "Bare fence", raw: "```\n" + twoSteps + "\n```"},
		{name: "Leading and trailing prose", raw: "Sure! Here is the plan:\n" + twoSteps + "\nLet me know if you need more."},
		{name: "Prose around a fence", raw: "Plan below.\n```json\n" + twoSteps + "\n```\nDone."},
		{name: "Wrapped in steps object", raw: `{"steps": ` + twoSteps + `}`},
		{name: "Trailing comma repaired", raw: strings.TrimSuffix(twoSteps, "]") + ",]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := ParseSteps(tc.raw)
			require.NoError(t, err)
			require.Len(t, steps, 2)
			assert.Equal(t, "Basics", steps[0].Title)
			assert.Equal(t, "medium", steps[1].Priority)
			assert.Equal(t, "10 minutes", steps[1].EstimatedDuration)
		})
	}
}

func TestParseSteps_NamedFailures(t *testing.T) {
	testCases := []struct {
		name    string
		raw     string
		wantErr error
	}{
		{name: "Empty response", raw: "   \n", wantErr: ErrEmptyResponse},
		{name: "Unparsable garbage", raw: "I'm sorry, I cannot help with that request.", wantErr: ErrNoJSON},
		{name: "Array of non-objects", raw: "[1, 2, 3]", wantErr: ErrMalformedJSON},
		{name: "Object without steps", raw: `{"plan": "none"}`, wantErr: ErrMalformedJSON},
		{name: "Empty array", raw: "[]", wantErr: ErrEmptySteps},
		{name: "Missing field", raw: `[{"title":"A","description":"B","priority":"high"}]`, wantErr: ErrMissingField},
		{name: "Blank field", raw: `[{"title":" ","description":"B","priority":"high","estimatedDuration":"5m"}]`, wantErr: ErrMissingField},
		{name: "Bad priority", raw: `[{"title":"A","description":"B","priority":"urgent","estimatedDuration":"5m"}]`, wantErr: ErrInvalidPriority},
		{name: "Object title", raw: `[{"title":{"x":1},"description":"B","priority":"high","estimatedDuration":"5m"}]`, wantErr: ErrInvalidType},
		{name: "Array description", raw: `[{"title":"A","description":["B"],"priority":"high","estimatedDuration":"5m"}]`, wantErr: ErrInvalidType},
		{name: "Boolean priority", raw: `[{"title":"A","description":"B","priority":true,"estimatedDuration":"5m"}]`, wantErr: ErrInvalidType},
		{name: "Numeric title", raw: `[{"title":42,"description":"B","priority":"high","estimatedDuration":"5m"}]`, wantErr: ErrInvalidType},
		{name: "Null field", raw: `[{"title":"A","description":null,"priority":"high","estimatedDuration":"5m"}]`, wantErr: ErrMissingField},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := ParseSteps(tc.raw)
			require.Error(t, err)
			assert.Nil(t, steps)
			assert.True(t, errors.Is(err, tc.wantErr), "got %v, want %v", err, tc.wantErr)
		})
	}
}

func TestParseSteps_NumericDuration(t *testing.T) {
	steps, err := ParseSteps(`[{"title":"A","description":"B","priority":"high","estimatedDuration":10}]`)
	require.NoError(t, err)
	assert.Equal(t, "10", steps[0].EstimatedDuration)
}

func TestParseSteps_FieldErrorNamesField(t *testing.T) {
	_, err := ParseSteps(`[{"title":"A","description":"B","priority":"high","estimatedDuration":"5m"},{"title":"C","priority":"low","estimatedDuration":"5m"}]`)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 1, fe.Index)
	assert.Equal(t, "description", fe.Field)
	assert.Contains(t, err.Error(), "description")
}

func TestExtractJSON(t *testing.T) {
	got, err := ExtractJSON("noise [1,[2]] trailing ] text")
	require.NoError(t, err)
	assert.Equal(t, "[1,[2]] trailing ]", got)

	got, err = ExtractJSON(`prefix {"a": {"b": 1}} suffix`)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	_, err = ExtractJSON("nothing here")
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestBuildStepsPrompt(t *testing.T) {
	prompt := BuildStepsPrompt("  Compare electric vehicles vs gasoline cars ")

	assert.Contains(t, prompt, `Topic: "Compare electric vehicles vs gasoline cars"`)
	assert.Contains(t, prompt, "estimatedDuration")
	assert.True(t, strings.HasSuffix(prompt, "Assistant: "))
}
