package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/habibuoy/VirtualAIAssistant/internal/config"
)

// Entry is one validated backend plus its declared capabilities. The remote
// synthesis capability is recorded at load time rather than probed per call.
type Entry struct {
	Generator Generator
	Remote    RemoteSynthesizer // nil when the backend has no remote speech
}

// RemoteCapable reports whether the backend declared remote synthesis.
func (e Entry) RemoteCapable() bool {
	return e.Remote != nil
}

// Factory builds a backend from one config entry.
type Factory func(config.ProviderConfig) (Generator, error)

// Registry owns the validated backends and the active selection.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
	active  string

	requestTimeout  time.Duration
	validateTimeout time.Duration
	log             *slog.Logger
}

// Load constructs and validates every configured backend. Backends that fail
// validation are logged and dropped; duplicates (by name) keep the first
// occurrence. The result may be empty, which callers surface as a startup
// problem and keep the talk control disabled.
func Load(ctx context.Context, cfg config.ProvidersConfig, log *slog.Logger) *Registry {
	factory := func(entry config.ProviderConfig) (Generator, error) {
		return New(entry, cfg.Default)
	}
	return LoadWithFactory(ctx, cfg, factory, log)
}

func LoadWithFactory(ctx context.Context, cfg config.ProvidersConfig, factory Factory, log *slog.Logger) *Registry {
	r := &Registry{
		entries:         make(map[string]Entry),
		requestTimeout:  time.Duration(cfg.RequestTimeoutMS) * time.Millisecond,
		validateTimeout: time.Duration(cfg.ValidateTimeoutMS) * time.Millisecond,
		log:             log.With(slog.String("component", "provider-registry")),
	}

	for _, entryCfg := range cfg.Entries {
		if entryCfg.APIKey == "" {
			r.log.Warn("provider entry has no API key",
				slog.String("provider", entryCfg.Provider))
		}

		gen, err := factory(entryCfg)
		if err != nil {
			if !errors.Is(err, ErrUnsupportedProvider) {
				r.log.Warn("failed to construct provider", slog.String("provider", entryCfg.Provider), slogError(err))
				continue
			}
			r.log.Warn("unrecognized provider, using default backend",
				slog.String("provider", entryCfg.Provider),
				slog.String("fallback", gen.Name()))
		}

		name := gen.Name()
		if _, exists := r.entries[name]; exists {
			r.log.Warn("duplicate provider dropped", slog.String("provider", name))
			continue
		}

		if err := r.validateWithRetry(ctx, gen); err != nil {
			r.log.Warn("provider failed validation, dropped",
				slog.String("provider", name),
				slog.String("model", gen.Model()),
				slogError(err))
			continue
		}

		remote, _ := gen.(RemoteSynthesizer)
		r.entries[name] = Entry{Generator: gen, Remote: remote}
		r.order = append(r.order, name)
		r.log.Info("provider registered",
			slog.String("provider", name),
			slog.String("model", gen.Model()),
			slog.Bool("remote_synthesis", remote != nil))
	}

	if len(r.order) > 0 {
		r.active = r.order[0]
		if _, ok := r.entries[cfg.Default]; ok {
			r.active = cfg.Default
		}
	}
	return r
}

// validateWithRetry bounds the validation round trip and retries once. The
// original design had no deadline; this is a deliberate hardening deviation.
func (r *Registry) validateWithRetry(ctx context.Context, gen Generator) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		vctx, cancel := context.WithTimeout(ctx, r.validateTimeout)
		lastErr = gen.Validate(vctx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

// Empty reports whether no backend passed validation.
func (r *Registry) Empty() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries) == 0
}

// Names returns provider names in first-seen configuration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Active returns the currently selected backend.
func (r *Registry) Active() (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[r.active]
	return entry, ok
}

// ActiveName returns the currently selected provider name.
func (r *Registry) ActiveName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SwitchActive selects a different backend. Unknown names are a hard error:
// the UI offering them means UI and registry state have desynchronized.
func (r *Registry) SwitchActive(name string) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	r.active = name
	return entry, nil
}

// Generate runs the backend's generation with a bounded timeout and a single
// retry on failure.
func (r *Registry) Generate(ctx context.Context, entry Entry, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		gctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
		reply, err := entry.Generator.Generate(gctx, prompt)
		cancel()
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", lastErr
}

// SynthesizeRemote runs the backend's remote speech capability with a bounded
// timeout and a single retry.
func (r *Registry) SynthesizeRemote(ctx context.Context, entry Entry, text string) ([]float32, int, error) {
	if entry.Remote == nil {
		return nil, 0, ErrNoRemoteSynthesis
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		sctx, cancel := context.WithTimeout(ctx, r.requestTimeout)
		samples, rate, err := entry.Remote.SynthesizeSpeech(sctx, text)
		cancel()
		if err == nil {
			return samples, rate, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, 0, lastErr
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
