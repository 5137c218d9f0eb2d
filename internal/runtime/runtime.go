// Package runtime composes the assistant daemon: telemetry, message bus,
// event store, generation providers, the speech pipeline and the turn
// orchestrator, plus the health and metrics endpoints.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habibuoy/VirtualAIAssistant/internal/audio"
	"github.com/habibuoy/VirtualAIAssistant/internal/bus"
	"github.com/habibuoy/VirtualAIAssistant/internal/config"
	"github.com/habibuoy/VirtualAIAssistant/internal/eventstore"
	"github.com/habibuoy/VirtualAIAssistant/internal/natsserver"
	"github.com/habibuoy/VirtualAIAssistant/internal/orchestrator"
	"github.com/habibuoy/VirtualAIAssistant/internal/phoneme"
	"github.com/habibuoy/VirtualAIAssistant/internal/provider"
	"github.com/habibuoy/VirtualAIAssistant/internal/speech"
	"github.com/habibuoy/VirtualAIAssistant/internal/transcribe"
)

type Runtime struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	ready      atomic.Bool
	wg         sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tel, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}

	var embedded *natsserver.EmbeddedServer
	if r.cfg.Bus.Embedded {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded bus: %w", err)
		}
	}

	busClient, err := bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		if embedded != nil {
			embedded.Shutdown()
		}
		return fmt.Errorf("failed to connect to bus: %w", err)
	}

	store, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		busClient.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return fmt.Errorf("failed to open event store: %w", err)
	}

	registry := provider.Load(ctx, r.cfg.Providers, r.logger)
	if registry.Empty() {
		r.logger.Warn("no generation providers passed validation, talk control stays disabled")
	}

	decoder := phoneme.NewDecoder(r.cfg.Speech.DictionaryPath, r.logger)

	sink, err := audio.NewWAVSink(r.cfg.Speech.OutputDir, true)
	if err != nil {
		store.Close()
		busClient.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return fmt.Errorf("failed to create audio sink: %w", err)
	}
	player := audio.NewPlayer(sink, r.logger)

	speechRuntime, err := newSpeechRuntime(r.cfg.Speech)
	if err != nil {
		store.Close()
		busClient.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return fmt.Errorf("failed to create speech runtime: %w", err)
	}
	engine := speech.NewEngine(decoder, speechRuntime, player, r.cfg.Speech.SampleRate, r.logger)

	transcriber, err := newTranscriber(r.cfg.STT)
	if err != nil {
		store.Close()
		busClient.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	svc := orchestrator.NewService(ctx, orchestrator.Options{
		Registry:    registry,
		Transcriber: transcriber,
		Engine:      engine,
		Player:      player,
		Store:       store,
		Notifier:    orchestrator.NewBusNotifier(busClient, r.logger),
		Sentinel:    r.cfg.STT.Sentinel,
		PreferLocal: !r.cfg.Speech.PreferRemote,
		Logger:      r.logger,
	})
	svc.Start()

	binding, err := svc.BindBus(busClient)
	if err != nil {
		svc.Close()
		store.Close()
		busClient.Close()
		if embedded != nil {
			embedded.Shutdown()
		}
		return fmt.Errorf("failed to bind orchestrator to bus: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if tel.metricsHandler != nil {
		mux.Handle("/metrics", tel.metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("active_provider", registry.ActiveName()),
		slog.Int("providers", len(registry.Names())))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	// subscriptions must drain before the orchestrator stops so no capture
	// handler fires after its context is cancelled
	binding.Close()
	svc.Close()
	engine.Close()
	player.Close()
	if err := store.Close(); err != nil {
		r.logger.Error("event store shutdown error", slog.String("error", err.Error()))
	}
	busClient.Close()
	if embedded != nil {
		embedded.Shutdown()
	}

	if err := tel.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
	}

	return nil
}

func newSpeechRuntime(cfg config.SpeechConfig) (speech.Runtime, error) {
	switch cfg.Mode {
	case "exec":
		return speech.NewExecRuntime(cfg.Command, cfg.SampleRate)
	default:
		return speech.NewMockRuntime(256), nil
	}
}

func newTranscriber(cfg config.STTConfig) (transcribe.Transcriber, error) {
	switch cfg.Mode {
	case "exec":
		return transcribe.NewExecTranscriber(cfg)
	default:
		return transcribe.NewMockTranscriber(), nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
