package llm_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const serperEndpoint = "https://google.serper.dev/search"

type SerperOptions struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
	// HTTPClient overrides the default client built from Timeout.
	HTTPClient *http.Client
}

// serperSearcher queries the Serper Google Search API. Serper has no relevance
// score, so hits are scored by rank.
type serperSearcher struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

func NewSerper(opts SerperOptions) (Searcher, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		key = os.Getenv("SERPER_API_KEY")
	}
	if key == "" {
		return nil, fmt.Errorf("SERPER_API_KEY is not set")
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = serperEndpoint
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &serperSearcher{apiKey: key, endpoint: endpoint, httpClient: hc}, nil
}

type serperResponse struct {
	AnswerBox *struct {
		Answer  string `json:"answer"`
		Snippet string `json:"snippet"`
	} `json:"answerBox"`
	Organic []struct {
		Title    string `json:"title"`
		Link     string `json:"link"`
		Snippet  string `json:"snippet"`
		Date     string `json:"date"`
		Position int    `json:"position"`
	} `json:"organic"`
}

func (s *serperSearcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	num := req.MaxResults
	if num <= 0 {
		num = resultsForContext(req.ContextSize)
	}
	body, err := json.Marshal(map[string]any{"q": req.Query, "num": num})
	if err != nil {
		return nil, fmt.Errorf("serper marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serper create request: %w", err)
	}
	httpReq.Header.Set("X-API-KEY", s.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("serper request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("serper returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var raw serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("serper decode response: %w", err)
	}

	out := &SearchResponse{Query: req.Query}
	if raw.AnswerBox != nil {
		out.Answer = raw.AnswerBox.Answer
		if out.Answer == "" {
			out.Answer = raw.AnswerBox.Snippet
		}
	}
	total := len(raw.Organic)
	for i, item := range raw.Organic {
		if i >= num {
			break
		}
		out.Hits = append(out.Hits, SearchHit{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Date:    item.Date,
			Score:   1 - float64(i)/float64(total+1),
		})
	}
	out.Elapsed = time.Since(start)
	return out, nil
}

func resultsForContext(contextSize string) int {
	switch contextSize {
	case "low":
		return 5
	case "high":
		return 20
	default:
		return 10
	}
}
