package llm

import (
	"context"
	"encoding/json"
	"iter"
	"sync"
	"time"
)

// MockResponse is a canned response for the MockProvider.
//
// For streaming calls, Chunks are yielded in order; when Chunks is empty the
// whole Content is yielded as a single delta. StreamErr, if set, is yielded
// after the last chunk.
type MockResponse struct {
	Content    json.RawMessage
	Chunks     []string
	ChunkDelay time.Duration
	StreamErr  error
	Usage      Usage
	Err        error
}

// MockProvider is a deterministic Provider for testing.
// It returns canned responses in FIFO order and records all requests.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given canned responses.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

// next pops the next canned response. ok is false when the queue is empty.
func (m *MockProvider) next(req Request) (MockResponse, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, req)

	if len(m.responses) == 0 {
		return MockResponse{}, false
	}
	resp := m.responses[0]
	m.responses = m.responses[1:]
	return resp, true
}

// Generate returns the next canned response or ErrProviderUnavailable if
// the queue is empty.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	resp, ok := m.next(req)
	if !ok {
		return nil, &ErrProviderUnavailable{Err: nil}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	content := resp.Content
	if content == nil && len(resp.Chunks) > 0 {
		var all []byte
		for _, c := range resp.Chunks {
			all = append(all, c...)
		}
		content = all
	}

	return &Response{
		Content:    content,
		Usage:      resp.Usage,
		Model:      "mock",
		StopReason: "end",
	}, nil
}

// Stream yields the next canned response as a sequence of deltas.
func (m *MockProvider) Stream(ctx context.Context, req Request) iter.Seq2[Delta, error] {
	return func(yield func(Delta, error) bool) {
		resp, ok := m.next(req)
		if !ok {
			yield(Delta{}, &ErrProviderUnavailable{Err: nil})
			return
		}
		if resp.Err != nil {
			yield(Delta{}, resp.Err)
			return
		}

		chunks := resp.Chunks
		if len(chunks) == 0 && len(resp.Content) > 0 {
			chunks = []string{string(resp.Content)}
		}

		for _, c := range chunks {
			if resp.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					yield(Delta{}, ctx.Err())
					return
				case <-time.After(resp.ChunkDelay):
				}
			}
			if !yield(Delta{Text: c}, nil) {
				return
			}
		}

		if resp.StreamErr != nil {
			yield(Delta{}, resp.StreamErr)
			return
		}

		usage := resp.Usage
		yield(Delta{Usage: &usage, StopReason: "end"}, nil)
	}
}

// ModelID returns "mock".
func (m *MockProvider) ModelID() string {
	return "mock"
}

// AddResponse appends a canned response to the queue.
func (m *MockProvider) AddResponse(resp MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, resp)
}

// CallCount returns the number of Generate and Stream calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
