package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/habibuoy/VirtualAIAssistant/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeGenerator struct {
	name        string
	model       string
	validateErr error
	attempts    int
	reply       string
	generateErr error
}

func (f *fakeGenerator) Name() string  { return f.name }
func (f *fakeGenerator) Model() string { return f.model }

func (f *fakeGenerator) Validate(ctx context.Context) error {
	f.attempts++
	return f.validateErr
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if f.generateErr != nil {
		return "", f.generateErr
	}
	return f.reply, nil
}

type fakeRemoteGenerator struct {
	fakeGenerator
}

func (f *fakeRemoteGenerator) SynthesizeSpeech(ctx context.Context, text string) ([]float32, int, error) {
	return make([]float32, 240), 24000, nil
}

func testCfg(entries ...config.ProviderConfig) config.ProvidersConfig {
	return config.ProvidersConfig{
		Entries:           entries,
		Default:           "Gemini",
		RequestTimeoutMS:  1000,
		ValidateTimeoutMS: 500,
	}
}

func factoryFor(gens map[string]Generator) Factory {
	return func(cfg config.ProviderConfig) (Generator, error) {
		if gen, ok := gens[cfg.Provider]; ok {
			return gen, nil
		}
		return gens["Gemini"], errors.New("unsupported provider: " + cfg.Provider)
	}
}

func TestLoadRegistersValidatedProviders(t *testing.T) {
	gens := map[string]Generator{
		"Gemini":  &fakeGenerator{name: "Gemini", model: "gemini-2.0-flash"},
		"ChatGPT": &fakeRemoteGenerator{fakeGenerator: fakeGenerator{name: "ChatGPT", model: "gpt-4.1-nano"}},
	}
	cfg := testCfg(
		config.ProviderConfig{Provider: "Gemini", APIKey: "a"},
		config.ProviderConfig{Provider: "ChatGPT", APIKey: "b"},
	)

	r := LoadWithFactory(context.Background(), cfg, factoryFor(gens), newLogger())
	if r.Empty() {
		t.Fatal("expected non-empty registry")
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "Gemini" || names[1] != "ChatGPT" {
		t.Fatalf("unexpected order: %v", names)
	}
	if r.ActiveName() != "Gemini" {
		t.Fatalf("expected default active Gemini, got %q", r.ActiveName())
	}

	active, ok := r.Active()
	if !ok || active.RemoteCapable() {
		t.Fatalf("expected active Gemini without remote capability")
	}
	chatgpt, err := r.SwitchActive("ChatGPT")
	if err != nil {
		t.Fatalf("switch: %v", err)
	}
	if !chatgpt.RemoteCapable() {
		t.Fatal("expected ChatGPT entry to declare remote synthesis")
	}
}

func TestLoadDropsFailedValidation(t *testing.T) {
	failing := &fakeGenerator{name: "ChatGPT", validateErr: errors.New("bad key")}
	gens := map[string]Generator{
		"Gemini":  &fakeGenerator{name: "Gemini"},
		"ChatGPT": failing,
	}
	cfg := testCfg(
		config.ProviderConfig{Provider: "Gemini", APIKey: "a"},
		config.ProviderConfig{Provider: "ChatGPT", APIKey: "b"},
	)

	r := LoadWithFactory(context.Background(), cfg, factoryFor(gens), newLogger())
	if got := r.Names(); len(got) != 1 || got[0] != "Gemini" {
		t.Fatalf("expected only Gemini, got %v", got)
	}
	// validation is retried once before the backend is dropped
	if failing.attempts != 2 {
		t.Fatalf("expected 2 validation attempts, got %d", failing.attempts)
	}
}

func TestLoadDeduplicatesByName(t *testing.T) {
	gens := map[string]Generator{
		"Gemini": &fakeGenerator{name: "Gemini"},
	}
	cfg := testCfg(
		config.ProviderConfig{Provider: "Gemini", APIKey: "a"},
		config.ProviderConfig{Provider: "Gemini", APIKey: "b"},
	)

	r := LoadWithFactory(context.Background(), cfg, factoryFor(gens), newLogger())
	if got := r.Names(); len(got) != 1 {
		t.Fatalf("expected deduplicated registry, got %v", got)
	}
}

func TestSwitchActiveUnknownProvider(t *testing.T) {
	gens := map[string]Generator{
		"Gemini": &fakeGenerator{name: "Gemini"},
	}
	r := LoadWithFactory(context.Background(), testCfg(config.ProviderConfig{Provider: "Gemini", APIKey: "a"}), factoryFor(gens), newLogger())

	if _, err := r.SwitchActive("Claude"); !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
	if r.ActiveName() != "Gemini" {
		t.Fatalf("active must not change on failed switch, got %q", r.ActiveName())
	}
}

func TestLoadEmptyWhenNothingValidates(t *testing.T) {
	gens := map[string]Generator{
		"Gemini": &fakeGenerator{name: "Gemini", validateErr: errors.New("down")},
	}
	r := LoadWithFactory(context.Background(), testCfg(config.ProviderConfig{Provider: "Gemini", APIKey: "a"}), factoryFor(gens), newLogger())
	if !r.Empty() {
		t.Fatal("expected empty registry")
	}
	if _, ok := r.Active(); ok {
		t.Fatal("expected no active entry")
	}
}

func TestGenerateRetriesOnce(t *testing.T) {
	gen := &retryGenerator{fakeGenerator: fakeGenerator{name: "Gemini", reply: "hi"}}
	gens := map[string]Generator{"Gemini": gen}
	r := LoadWithFactory(context.Background(), testCfg(config.ProviderConfig{Provider: "Gemini", APIKey: "a"}), factoryFor(gens), newLogger())

	entry, _ := r.Active()
	reply, err := r.Generate(context.Background(), entry, "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "hi" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if gen.calls != 2 {
		t.Fatalf("expected 2 generate attempts, got %d", gen.calls)
	}
}

func TestSynthesizeRemoteWithoutCapability(t *testing.T) {
	gens := map[string]Generator{"Gemini": &fakeGenerator{name: "Gemini"}}
	r := LoadWithFactory(context.Background(), testCfg(config.ProviderConfig{Provider: "Gemini", APIKey: "a"}), factoryFor(gens), newLogger())

	entry, _ := r.Active()
	if _, _, err := r.SynthesizeRemote(context.Background(), entry, "hello"); !errors.Is(err, ErrNoRemoteSynthesis) {
		t.Fatalf("expected ErrNoRemoteSynthesis, got %v", err)
	}
}

func TestFactoryFallsBackOnUnsupportedProvider(t *testing.T) {
	gen, err := New(config.ProviderConfig{Provider: "Claude", APIKey: "k"}, "Gemini")
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if gen == nil || gen.Name() != "Gemini" {
		t.Fatalf("expected Gemini fallback, got %v", gen)
	}
}

func TestFactoryFallbackHonorsConfiguredDefault(t *testing.T) {
	gen, err := New(config.ProviderConfig{Provider: "Claude", APIKey: "k"}, "ChatGPT")
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if gen == nil || gen.Name() != "ChatGPT" {
		t.Fatalf("expected configured default ChatGPT as fallback, got %v", gen)
	}

	// an unrecognized default still yields a working backend
	gen, err = New(config.ProviderConfig{Provider: "Claude", APIKey: "k"}, "Bard")
	if !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
	if gen == nil || gen.Name() != "Gemini" {
		t.Fatalf("expected Gemini when the default is also unrecognized, got %v", gen)
	}
}

type retryGenerator struct {
	fakeGenerator
	calls int
}

func (r *retryGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	r.calls++
	if r.calls == 1 {
		return "", errors.New("transient")
	}
	return r.reply, nil
}
