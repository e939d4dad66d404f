package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Request is a single-turn completion request.
type Request struct {
	// System carries the role and output contract for the model.
	System string `json:"system,omitempty"`
	// Prompt is the user turn.
	Prompt string `json:"prompt"`
	// MaxTokens overrides the adapter's default when > 0.
	MaxTokens int64 `json:"max_tokens,omitempty"`
	// Temperature overrides the adapter's default when set.
	Temperature *float64 `json:"temperature,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// Response is a completed generation.
type Response struct {
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "end_turn", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Model is the minimal interface the model-backed evaluator needs.
type Model interface {
	Generate(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// Temperature returns a pointer suitable for Request.Temperature.
func Temperature(t float64) *float64 { return &t }

// ErrNoResponse is returned by MockModel when no canned response matches.
var ErrNoResponse = errors.New("mock model: no response for prompt")

// MockModel is a deterministic in-memory Model for tests and dry runs.
//
// Responses registered with AddResponse are matched by substring against the
// prompt, in registration order. Queued responses are returned first, one per
// call. It is safe for concurrent use.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses []cannedResponse
	queue     []string
	fallback  string
	err       error
	requests  []Request
}

type cannedResponse struct {
	match string
	text  string
}

// NewMockModel constructs an empty MockModel.
func NewMockModel(name string) *MockModel {
	return &MockModel{info: Info{Name: name, Provider: "mock"}}
}

// AddResponse returns text for any prompt containing match.
func (m *MockModel) AddResponse(match, text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, cannedResponse{match: match, text: text})
	return m
}

// Enqueue returns texts in order, one per call, before matching.
func (m *MockModel) Enqueue(texts ...string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, texts...)
	return m
}

// SetFallback returns text when nothing else matches.
func (m *MockModel) SetFallback(text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = text
	return m
}

// SetError makes every call fail with err.
func (m *MockModel) SetError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Requests returns every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return Response{}, m.err
	}

	text, ok := "", false
	if len(m.queue) > 0 {
		text, m.queue, ok = m.queue[0], m.queue[1:], true
	}
	for i := 0; !ok && i < len(m.responses); i++ {
		if strings.Contains(req.Prompt, m.responses[i].match) {
			text, ok = m.responses[i].text, true
		}
	}
	if !ok && m.fallback != "" {
		text, ok = m.fallback, true
	}
	if !ok {
		return Response{}, fmt.Errorf("%w: %.40q", ErrNoResponse, req.Prompt)
	}
	return Response{
		Text:         text,
		FinishReason: "stop",
		Usage: &TokenUsage{
			PromptTokens:     int64(len(strings.Fields(req.System + " " + req.Prompt))),
			CompletionTokens: int64(len(strings.Fields(text))),
			TotalTokens:      int64(len(strings.Fields(req.System+" "+req.Prompt)) + len(strings.Fields(text))),
		},
	}, nil
}

// Info implements Model.
func (m *MockModel) Info() Info { return m.info }
