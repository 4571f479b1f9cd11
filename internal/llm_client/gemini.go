package llm_client

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

type geminiProvider struct {
	client *genai.Client
	model  string
}

const geminiDefault = "gemini-2.0-flash"

func (p *geminiProvider) Init(cfg Config) error {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is not set")
	}
	c, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("gemini client init: %w", err)
	}
	p.client = c
	if strings.TrimSpace(cfg.Model) != "" {
		p.model = cfg.Model
	} else {
		p.model = geminiDefault
	}
	return nil
}

func (p *geminiProvider) DefaultModel() string { return geminiDefault }

func (p *geminiProvider) AllowedModelOrDefault(model string) string {
	m := strings.TrimSpace(model)
	if m == "" {
		return p.model
	}
	if !strings.HasPrefix(strings.ToLower(model), "gemini-") {
		return geminiDefault
	}

	return m
}

func (p *geminiProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	m := p.AllowedModelOrDefault(model)
	resp, err := p.client.Models.GenerateContent(ctx, m, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: empty response")
	}
	return text, nil
}

func (p *geminiProvider) GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	m := p.AllowedModelOrDefault(model)
	cfg := &genai.GenerateContentConfig{
		// Force JSON output in candidates
		ResponseMIMEType: "application/json",
	}
	if schema != nil {
		cfg.ResponseJsonSchema = schema
	}
	resp, err := p.client.Models.GenerateContent(ctx, m, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate json: %w", err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini: empty json response")
	}
	return text, nil
}

// Search answers the query with the Google Search grounding tool and returns
// the grounding chunks as hits. A hit's score is the best confidence among
// the answer segments that cite it.
func (p *geminiProvider) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if p.client == nil {
		return nil, ErrNotInitialized
	}
	start := time.Now()
	cfg := &genai.GenerateContentConfig{
		Tools:           []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
		MaxOutputTokens: outputTokensFor(req.ContextSize),
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(searchPrompt(req.Query)), cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini search: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("gemini search: no candidates")
	}

	out := &SearchResponse{Query: req.Query, Answer: resp.Text()}
	meta := resp.Candidates[0].GroundingMetadata
	if meta != nil {
		out.Hits = groundingHits(meta)
	}
	if req.MaxResults > 0 && len(out.Hits) > req.MaxResults {
		out.Hits = out.Hits[:req.MaxResults]
	}
	out.Elapsed = time.Since(start)
	return out, nil
}

func groundingHits(meta *genai.GroundingMetadata) []SearchHit {
	hits := make([]SearchHit, len(meta.GroundingChunks))
	for i, ch := range meta.GroundingChunks {
		if ch == nil || ch.Web == nil {
			continue
		}
		hits[i] = SearchHit{Title: ch.Web.Title, URL: ch.Web.URI}
	}

	// Attach the cited answer segments to each chunk as its snippet.
	snippets := make([][]string, len(hits))
	for _, sup := range meta.GroundingSupports {
		if sup == nil || sup.Segment == nil {
			continue
		}
		for j, idx := range sup.GroundingChunkIndices {
			if int(idx) < 0 || int(idx) >= len(hits) {
				continue
			}
			snippets[idx] = append(snippets[idx], sup.Segment.Text)
			if j < len(sup.ConfidenceScores) {
				if s := float64(sup.ConfidenceScores[j]); s > hits[idx].Score {
					hits[idx].Score = s
				}
			}
		}
	}

	out := make([]SearchHit, 0, len(hits))
	for i, h := range hits {
		if h.URL == "" {
			continue
		}
		h.Snippet = strings.Join(snippets[i], " ")
		out = append(out, h)
	}
	return out
}

func searchPrompt(query string) string {
	var sb strings.Builder
	sb.WriteString("Search the web and answer with factual, sourced information.\n")
	sb.WriteString("Prefer recent, authoritative sources. Be concise.\n\n")
	sb.WriteString(fmt.Sprintf("Query: %s\n", query))
	return sb.String()
}

func outputTokensFor(contextSize string) int32 {
	switch contextSize {
	case "low":
		return 512
	case "high":
		return 4096
	default:
		return 1536
	}
}
