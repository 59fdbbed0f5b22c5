package generation

import (
	"context"
	"sync"
)

// MockGenerator returns a fixed reply, or the prompt itself when the reply is
// empty, and records every prompt it receives.
type MockGenerator struct {
	Reply string
	Err   error

	mu      sync.Mutex
	prompts []string
}

// NewMockGenerator returns a generator that answers with reply.
func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply}
}

// Generate records prompt and returns the configured reply or error.
func (m *MockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if m.Reply == "" {
		return prompt, nil
	}
	return m.Reply, nil
}

// Prompts returns the prompts received so far.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Close is a no-op.
func (m *MockGenerator) Close() error { return nil }
