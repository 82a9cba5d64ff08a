package mock

import (
	"context"
	"iter"
	"sync"

	"github.com/Devcavi19/adal-4naga-app/ai"
)

// MockGenerator is a test double for ai.Generator.
// By default it yields Chunks in order and then Err if set.
type MockGenerator struct {
	// StreamFunc replaces the default behavior when set.
	StreamFunc func(ctx context.Context, req ai.GenerationRequest) iter.Seq2[string, error]

	// Chunks are yielded in order by the default behavior.
	Chunks []string

	// Err is yielded after Chunks by the default behavior.
	Err error

	mu       sync.Mutex
	requests []ai.GenerationRequest
}

// NewMockGenerator creates a generator that streams the given chunks.
func NewMockGenerator(chunks ...string) *MockGenerator {
	return &MockGenerator{Chunks: chunks}
}

// Stream records the request and streams the configured output.
func (m *MockGenerator) Stream(ctx context.Context, req ai.GenerationRequest) iter.Seq2[string, error] {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, req)
	}

	return func(yield func(string, error) bool) {
		for _, chunk := range m.Chunks {
			if ctx.Err() != nil {
				yield("", ctx.Err())
				return
			}
			if !yield(chunk, nil) {
				return
			}
		}
		if m.Err != nil {
			yield("", m.Err)
		}
	}
}

// Requests returns every request seen so far.
func (m *MockGenerator) Requests() []ai.GenerationRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.GenerationRequest(nil), m.requests...)
}

// CallCount returns the number of Stream calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
