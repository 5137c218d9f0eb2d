// Package provider implements the swappable text-generation backends and the
// registry that validates and tracks them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/habibuoy/VirtualAIAssistant/internal/config"
)

var (
	// ErrUnsupportedProvider marks an unrecognized provider identifier. The
	// factory still returns the default backend so callers can decide whether
	// the fallback is acceptable.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrUnknownProvider marks a switch to a name absent from the registry.
	// This is a contract violation, not a runtime condition to recover from.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrNoRemoteSynthesis is returned when remote synthesis is requested
	// from a backend that does not declare the capability.
	ErrNoRemoteSynthesis = errors.New("backend does not support remote synthesis")
)

// Generator is a named text-generation backend.
type Generator interface {
	Name() string
	Model() string
	Validate(ctx context.Context) error
	Generate(ctx context.Context, prompt string) (string, error)
}

// RemoteSynthesizer is the optional remote speech capability. Backends that
// implement it can speak a reply without the local phoneme pipeline.
type RemoteSynthesizer interface {
	SynthesizeSpeech(ctx context.Context, text string) ([]float32, int, error)
}

// New constructs a backend from one config entry. Unrecognized provider
// identifiers fall back to the configured default implementation (Gemini
// when the default itself is unrecognized) and return ErrUnsupportedProvider
// alongside it so callers can decide whether the fallback is acceptable.
func New(cfg config.ProviderConfig, defaultProvider string) (Generator, error) {
	if gen, ok := construct(cfg); ok {
		return gen, nil
	}

	fallback := cfg
	fallback.Provider = defaultProvider
	gen, ok := construct(fallback)
	if !ok {
		gen = NewGemini(cfg.APIKey, cfg.Model, cfg.Endpoint)
	}
	return gen, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
}

func construct(cfg config.ProviderConfig) (Generator, bool) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "gemini":
		return NewGemini(cfg.APIKey, cfg.Model, cfg.Endpoint), true
	case "chatgpt", "openai":
		return NewChatGPT(cfg.APIKey, cfg.Model, cfg.Endpoint), true
	case "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model), true
	case "mock":
		return NewMock(cfg.Model), true
	default:
		return nil, false
	}
}
