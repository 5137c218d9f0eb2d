package provider

import (
	"context"
	"strings"
)

type mockGenerator struct {
	model string
}

// NewMock returns a keyless backend for development and tests.
func NewMock(model string) Generator {
	if model == "" {
		model = "mock-1"
	}
	return &mockGenerator{model: model}
}

func (m *mockGenerator) Name() string  { return "Mock" }
func (m *mockGenerator) Model() string { return m.model }

func (m *mockGenerator) Validate(ctx context.Context) error { return nil }

func (m *mockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return "[mock reply to " + strings.TrimSpace(prompt) + "]", nil
}
