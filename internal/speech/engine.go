// Package speech schedules neural text-to-speech inference and hands the
// resulting sample buffer to the audio player.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/habibuoy/VirtualAIAssistant/internal/audio"
	"github.com/habibuoy/VirtualAIAssistant/internal/phoneme"
)

// ErrSynthesisPending is returned when a speech request arrives while an
// inference job is still outstanding. Callers treat it as a no-op.
var ErrSynthesisPending = errors.New("speech synthesis already pending")

// EventKind identifies inference lifecycle events.
type EventKind string

const (
	// EventCompleted fires once a job's samples have been handed to playback.
	EventCompleted EventKind = "completed"
	// EventCancelled fires when a job is abandoned due to a runtime failure.
	EventCancelled EventKind = "cancelled"
)

// Event reports the terminal outcome of one inference job.
type Event struct {
	Kind     EventKind
	Duration time.Duration
	Err      error
}

// Engine converts text to phoneme tokens, runs the model and starts playback.
// At most one inference job is in flight at a time.
type Engine struct {
	decoder    *phoneme.Decoder
	runtime    Runtime
	player     *audio.Player
	sampleRate int
	log        *slog.Logger

	pending atomic.Bool
	events  chan Event
	wg      sync.WaitGroup
}

func NewEngine(decoder *phoneme.Decoder, runtime Runtime, player *audio.Player, sampleRate int, log *slog.Logger) *Engine {
	return &Engine{
		decoder:    decoder,
		runtime:    runtime,
		player:     player,
		sampleRate: sampleRate,
		log:        log.With(slog.String("component", "speech-engine")),
		events:     make(chan Event, 8),
	}
}

// Events exposes the inference lifecycle stream.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Pending reports whether an inference job is outstanding.
func (e *Engine) Pending() bool {
	return e.pending.Load()
}

// Speak decodes text into model tokens and schedules inference. If a job is
// already pending the request is dropped with ErrSynthesisPending. The call
// never blocks on model execution; completion arrives on Events.
func (e *Engine) Speak(ctx context.Context, text string) error {
	if !e.pending.CompareAndSwap(false, true) {
		return ErrSynthesisPending
	}

	ptext := e.decoder.Decode(text)
	tokens := phoneme.Tokens(ptext)
	e.log.Debug("scheduling inference", slog.Int("tokens", len(tokens)))

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.run(ctx, tokens)
	}()
	return nil
}

func (e *Engine) run(ctx context.Context, tokens []int) {
	result, err := e.runtime.Generate(ctx, tokens)
	if err != nil {
		e.pending.Store(false)
		e.log.Warn("inference failed", slogError(err))
		e.emit(Event{Kind: EventCancelled, Err: err})
		return
	}

	samples := result.Samples
	if result.Length > 0 && result.Length < len(samples) {
		// raw buffer may be padded past the logical length
		samples = samples[:result.Length]
	}
	duration := time.Duration(float64(len(samples)) / float64(e.sampleRate) * float64(time.Second))

	e.pending.Store(false)
	e.player.Play(samples, e.sampleRate)
	e.log.Info("inference complete", slog.Duration("audio_duration", duration))
	e.emit(Event{Kind: EventCompleted, Duration: duration})
}

func (e *Engine) emit(evt Event) {
	select {
	case e.events <- evt:
	default:
		e.log.Warn("speech event dropped", slog.String("kind", string(evt.Kind)))
	}
}

// Close waits for an outstanding job and releases the runtime.
func (e *Engine) Close() {
	e.wg.Wait()
	e.runtime.Close()
	close(e.events)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
