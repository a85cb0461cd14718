package mocks

import (
	"sync"

	"github.com/mcoot/playeraccounts/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	// IntnResults is a queue of results to return from Intn
	IntnResults []int
	intnIndex   int

	// Fallback is returned once the queue is exhausted
	Fallback func(n int) int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result reduced into [0, n), or the fallback
// (0 when unset) if none remain
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.intnIndex >= len(r.IntnResults) {
		if r.Fallback != nil {
			return r.Fallback(n)
		}
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	if n > 0 {
		result %= n
	}
	return result
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = append(r.IntnResults, values...)
}

// Calls returns how many queued values have been consumed
func (r *MockRandom) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intnIndex
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = nil
	r.intnIndex = 0
}
