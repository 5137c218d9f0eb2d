package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Bus.Servers[0] != "nats://localhost:4222" {
		t.Fatalf("expected default server, got %v", cfg.Bus.Servers)
	}
	if cfg.STT.Sentinel != "[BLANK_AUDIO]" {
		t.Fatalf("expected default sentinel, got %q", cfg.STT.Sentinel)
	}
	if cfg.Providers.Default != "Gemini" {
		t.Fatalf("expected default provider Gemini, got %q", cfg.Providers.Default)
	}
	if cfg.Speech.SampleRate != 22050 {
		t.Fatalf("expected default speech sample rate 22050, got %d", cfg.Speech.SampleRate)
	}
}

func TestLoadProvidersFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assistant.yaml")
	body := `
providers:
  default: ChatGPT
  entries:
    - provider: Gemini
      model: gemini-2.0-flash
      api_key: key-a
    - provider: ChatGPT
      model: gpt-4.1-nano
      api_key: key-b
speech:
  prefer_remote: true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Providers.Entries) != 2 {
		t.Fatalf("expected 2 provider entries, got %d", len(cfg.Providers.Entries))
	}
	if cfg.Providers.Entries[0].Provider != "Gemini" {
		t.Fatalf("expected first provider Gemini, got %q", cfg.Providers.Entries[0].Provider)
	}
	if cfg.Providers.Default != "ChatGPT" {
		t.Fatalf("expected default ChatGPT, got %q", cfg.Providers.Default)
	}
	if !cfg.Speech.PreferRemote {
		t.Fatal("expected prefer_remote true")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("VAA_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("VAA_BUS_USERNAME", "alice")
	t.Setenv("VAA_BUS_PASSWORD", "secret")
	t.Setenv("VAA_STT_NO_SPEECH_SENTINEL", "[SILENCE]")
	t.Setenv("VAA_SPEECH_PREFER_REMOTE", "true")
	t.Setenv("VAA_EVENT_STORE_RETENTION_MODE", "persistent")
	t.Setenv("VAA_EVENT_STORE_MAX_TURNS", "123")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.STT.Sentinel != "[SILENCE]" {
		t.Fatalf("expected sentinel override, got %q", cfg.STT.Sentinel)
	}
	if !cfg.Speech.PreferRemote {
		t.Fatal("expected prefer_remote override true")
	}
	if cfg.EventStore.RetentionMode != "persistent" {
		t.Fatalf("expected retention mode override")
	}
	if cfg.EventStore.MaxTurns != 123 {
		t.Fatalf("expected max turns override, got %d", cfg.EventStore.MaxTurns)
	}
}

func TestInlineProviderFromEnv(t *testing.T) {
	t.Setenv("VAA_PROVIDER", "Gemini")
	t.Setenv("VAA_PROVIDER_MODEL", "gemini-2.0-flash")
	t.Setenv("VAA_PROVIDER_API_KEY", "inline-key")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Providers.Entries) != 1 {
		t.Fatalf("expected 1 inline provider entry, got %d", len(cfg.Providers.Entries))
	}
	entry := cfg.Providers.Entries[0]
	if entry.Provider != "Gemini" || entry.Model != "gemini-2.0-flash" || entry.APIKey != "inline-key" {
		t.Fatalf("unexpected inline entry: %+v", entry)
	}
}

func TestValidateRejectsBadSpeechMode(t *testing.T) {
	t.Setenv("VAA_SPEECH_MODE", "gpu")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for invalid speech mode")
	}
}

func TestTelemetryLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for input, want := range cases {
		got := TelemetryConfig{LogLevel: input}.Level()
		if got != want {
			t.Fatalf("level %q: expected %v, got %v", input, want, got)
		}
	}
}
