package llm

import (
	"context"
	"sync"
)

// MockClient returns canned responses in order and counts calls. Once the
// responses are exhausted the last one repeats.
type MockClient struct {
	mu        sync.Mutex
	Responses []string
	Errors    []error
	calls     int
	requests  [][]Message
}

func (m *MockClient) Generate(ctx context.Context, messages []Message) (string, *Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.calls
	m.calls++
	m.requests = append(m.requests, messages)

	if i < len(m.Errors) && m.Errors[i] != nil {
		return "", nil, m.Errors[i]
	}
	if len(m.Responses) == 0 {
		return "", &Usage{}, nil
	}
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	resp := m.Responses[i]
	return resp, &Usage{
		PromptTokens:     estimateLen(messages),
		CompletionTokens: len(resp) / 4,
		TotalTokens:      estimateLen(messages) + len(resp)/4,
	}, nil
}

func (m *MockClient) Model() string { return "mock" }

// Calls reports how many times Generate ran.
func (m *MockClient) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastRequest returns the messages of the most recent call, or nil.
func (m *MockClient) LastRequest() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

func estimateLen(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)
	}
	return total / 4
}
