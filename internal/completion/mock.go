package completion

import (
	"context"
	"sync"
	"time"
)

// MockResponse configures a single outcome from the mock backend.
type MockResponse struct {
	Output string
	Status int
	Err    error
	// Delay stalls the invocation before returning, to exercise timeout
	// and concurrency paths.
	Delay time.Duration
}

// Mock is a scripted completion backend for tests. Responses are returned in
// order; when exhausted, the last response repeats.
type Mock struct {
	mu        sync.Mutex
	responses []MockResponse
	callIndex int
	prompts   []string
	envs      [][]string
}

// NewMock creates a mock backend with a sequence of responses.
func NewMock(responses ...MockResponse) *Mock {
	return &Mock{responses: responses}
}

// Invoke records the prompt and returns the next scripted outcome.
func (m *Mock) Invoke(ctx context.Context, prompt string, timeout time.Duration, env []string) (*Result, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.envs = append(m.envs, env)

	var resp MockResponse
	if len(m.responses) > 0 {
		idx := m.callIndex
		if idx >= len(m.responses) {
			idx = len(m.responses) - 1
		} else {
			m.callIndex++
		}
		resp = m.responses[idx]
	}
	m.mu.Unlock()

	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return &Result{Output: resp.Output, Status: resp.Status}, nil
}

// Prompts returns all prompts the mock has seen.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// Envs returns the environment passed with each invocation.
func (m *Mock) Envs() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]string(nil), m.envs...)
}
