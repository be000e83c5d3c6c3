package store

import (
	"errors"
	"sync"

	"example.com/jsonblog/internal/models"
)

// MemoryStore keeps a snapshot of the collection in memory. Load and Save
// copy, so callers never share slices or like counters with the store.
type MemoryStore struct {
	mu         sync.Mutex
	posts      []models.Post
	Saves      int  // number of successful Save calls
	ShouldFail bool // flag to simulate failures
}

// NewMemory initializes a memory store holding posts
func NewMemory(posts ...models.Post) *MemoryStore {
	return &MemoryStore{posts: clonePosts(posts)}
}

func (m *MemoryStore) Load() ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return nil, errors.New("mock: load failed")
	}
	return clonePosts(m.posts), nil
}

func (m *MemoryStore) Save(posts []models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return errors.New("mock: save failed")
	}
	m.posts = clonePosts(posts)
	m.Saves++
	return nil
}

// SaveCount returns Saves under the store lock.
func (m *MemoryStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}

func (m *MemoryStore) Close() {}

func clonePosts(posts []models.Post) []models.Post {
	out := make([]models.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

// ---------------------------------------------
// MockStoreFail always returns errors for negative tests
type MockStoreFail struct{}

func (m *MockStoreFail) Close() {}

func (m *MockStoreFail) Load() ([]models.Post, error) {
	return nil, errors.New("mock store load failed")
}

func (m *MockStoreFail) Save(posts []models.Post) error {
	return errors.New("mock store save failed")
}
