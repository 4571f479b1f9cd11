package mocks

import (
	"context"
	"sync"

	"researcher/internal/llm_client"
)

type MockProvider struct {
	GenerateFunc     func(ctx context.Context, prompt, model string) (string, error)
	GenerateJSONFunc func(ctx context.Context, prompt, model string, schema any) (string, error)

	mu      sync.Mutex
	prompts []string
}

func (m *MockProvider) Init(llm_client.Config) error { return nil }

func (m *MockProvider) DefaultModel() string { return "mock" }

func (m *MockProvider) AllowedModelOrDefault(model string) string {
	if model == "" {
		return "mock"
	}
	return model
}

func (m *MockProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	m.record(prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, model)
	}
	return "", nil
}

func (m *MockProvider) GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error) {
	m.record(prompt)
	if m.GenerateJSONFunc != nil {
		return m.GenerateJSONFunc(ctx, prompt, model, schema)
	}
	return "[]", nil
}

// Prompts returns every prompt received so far.
func (m *MockProvider) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockProvider) record(p string) {
	m.mu.Lock()
	m.prompts = append(m.prompts, p)
	m.mu.Unlock()
}

type MockSearcher struct {
	SearchFunc func(ctx context.Context, req llm_client.SearchRequest) (*llm_client.SearchResponse, error)

	mu       sync.Mutex
	requests []llm_client.SearchRequest
}

func (m *MockSearcher) Search(ctx context.Context, req llm_client.SearchRequest) (*llm_client.SearchResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, req)
	}
	return &llm_client.SearchResponse{Query: req.Query}, nil
}

func (m *MockSearcher) Requests() []llm_client.SearchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm_client.SearchRequest(nil), m.requests...)
}

func (m *MockSearcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
