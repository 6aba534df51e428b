// Package provider abstracts generation backends (text or image completion)
// behind a single Submit call. The engine treats requests and artifacts as
// opaque payloads; only the retry executor's bounded-attempt contract wraps
// the call. Adapters live in subpackages (anthropic, openai).
package provider

import (
	"context"
	"fmt"
	"sync"
)

// Request is the normalized provider input built by agent handlers. The
// engine never inspects its serialization; adapters map it onto their wire
// format.
type Request struct {
	// System is the optional system / instruction preamble.
	System string `json:"system,omitempty"`
	// Prompt is the main generation prompt.
	Prompt string `json:"prompt"`
	// Params carries provider specific tuning (size, temperature overrides).
	Params map[string]any `json:"params,omitempty"`
}

// Artifact is the opaque result of a successful Submit. Text generations fill
// Text; binary generations (images) fill Data with a MIME type.
type Artifact struct {
	Text     string         `json:"text,omitempty"`
	Data     []byte         `json:"data,omitempty"`
	MIME     string         `json:"mime,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Bytes returns the artifact payload for storage: Data when present,
// otherwise the text encoded as UTF-8.
func (a Artifact) Bytes() []byte {
	if len(a.Data) > 0 {
		return a.Data
	}
	return []byte(a.Text)
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name     string `json:"name"`     // model identifier
	Provider string `json:"provider"` // "anthropic", "openai", "mock", ...
}

// Provider is the minimal interface agent handlers use to drive generation.
// Submit either succeeds with an artifact or fails with a provider error.
// Transient failures should be returned plainly so the retry executor can
// retry them; non-retryable failures must be wrapped with retry.Permanent.
type Provider interface {
	Submit(ctx context.Context, req Request) (Artifact, error)
	Info() Info
}

// MockProvider is a lightweight in-memory Provider useful for tests and
// examples. Responses are keyed by prompt; a configurable number of leading
// calls can be made to fail to exercise retry paths.
type MockProvider struct {
	mu        sync.Mutex
	info      Info
	responses map[string]string
	failures  int
	failErr   error
	calls     int
}

// NewMockProvider constructs a MockProvider.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		info:      Info{Name: name, Provider: "mock"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockProvider) AddResponse(prompt, response string) { m.responses[prompt] = response }

// FailTimes makes the next n Submit calls fail with err before succeeding.
func (m *MockProvider) FailTimes(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
	m.failErr = err
}

// Calls returns how many times Submit was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Submit implements Provider.
func (m *MockProvider) Submit(_ context.Context, req Request) (Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failures > 0 {
		m.failures--
		return Artifact{}, m.failErr
	}
	text, ok := m.responses[req.Prompt]
	if !ok {
		text = fmt.Sprintf("mock response to: %s", req.Prompt)
	}
	return Artifact{Text: text}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
