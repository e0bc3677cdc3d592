package brain

import (
	"context"
	"strings"
)

// MockBackend echoes prompts back. Prompts containing "[blocked]" are refused.
type MockBackend struct{}

func NewMockBackend() *MockBackend { return &MockBackend{} }

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Generate(_ context.Context, req Request) (Response, error) {
	if strings.Contains(req.Prompt, "[blocked]") {
		return Response{}, ErrBlocked
	}
	return Response{Text: "I heard you: " + strings.TrimSpace(req.Prompt)}, nil
}
