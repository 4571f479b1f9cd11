package parser

import (
	"fmt"
	"strings"
)

// Prompt for turning a research topic into ordered search steps
func BuildStepsPrompt(topic string) string {
	var sb strings.Builder

	sb.WriteString("You are an expert research planner. Break the research topic below into a focused, ordered list of web research steps.\n")
	sb.WriteString("Respond ONLY with a JSON array. No extra text, no markdown.\n\n")

	sb.WriteString("OUTPUT JSON SCHEMA:\n")
	sb.WriteString("[{\"title\": \"<short step title>\", \"description\": \"<what to search for and why>\", \"priority\": \"high|medium|low\", \"estimatedDuration\": \"<e.g. 5-10 minutes>\"}]\n\n")

	sb.WriteString("RULES:\n")
	sb.WriteString("1) Produce between 4 and 8 steps.\n")
	sb.WriteString("2) Order matters: start with foundations, then analysis, current developments, expert views, and finish with validation.\n")
	sb.WriteString("3) Each description must read like a concrete web search intent (names, entities, time frames), not a vague instruction.\n")
	sb.WriteString("4) Every element MUST include all four keys. priority is exactly one of high, medium, low.\n")
	sb.WriteString("5) Do not repeat the same search across steps.\n\n")

	sb.WriteString("EXAMPLE:\n")
	sb.WriteString("Topic: \"Impact of remote work on urban housing markets\"\n")
	sb.WriteString("Assistant: [{\"title\":\"Baseline Housing Data\",\"description\":\"Pre-2020 urban housing prices and rent trends in major US cities\",\"priority\":\"high\",\"estimatedDuration\":\"5-10 minutes\"},{\"title\":\"Remote Work Adoption\",\"description\":\"Remote work adoption rates 2020-2024 by industry and city\",\"priority\":\"high\",\"estimatedDuration\":\"5-10 minutes\"}]\n\n")

	sb.WriteString("Generate the steps now for this topic:\n")
	sb.WriteString(fmt.Sprintf("Topic: \"%s\"\n", strings.TrimSpace(topic)))
	sb.WriteString("Assistant: ")

	return sb.String()
}
