package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"researcher/internal/mission"
)

const DefaultCapacity = 256

var ErrNotFound = errors.New("mission not found")

// Memory keeps the most recently written missions in an LRU. Stored values
// are private copies; callers always get clones back.
type Memory struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *mission.Mission]
}

func NewMemory(capacity int) (*Memory, error) {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c, err := lru.New[string, *mission.Mission](capacity)
	if err != nil {
		return nil, fmt.Errorf("mission store: %w", err)
	}
	return &Memory{cache: c}, nil
}

func (s *Memory) Get(id string) (*mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m.Clone(), nil
}

func (s *Memory) Save(m *mission.Mission) {
	if m == nil {
		return
	}
	s.mu.Lock()
	s.cache.Add(m.ID, m.Clone())
	s.mu.Unlock()
}

func (s *Memory) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cache.Remove(id) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns every stored mission, newest first by creation time.
func (s *Memory) List() []*mission.Mission {
	s.mu.Lock()
	values := s.cache.Values()
	out := make([]*mission.Mission, len(values))
	for i, m := range values {
		out[i] = m.Clone()
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Update applies fn to a copy of the stored mission and saves the result if
// fn succeeds.
func (s *Memory) Update(id string, fn func(m *mission.Mission) error) (*mission.Mission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.ID = id
	s.cache.Add(id, next)
	return next.Clone(), nil
}

func (s *Memory) Len() int {
	return s.cache.Len()
}
