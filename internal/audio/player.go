package audio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Sink is the audio output boundary. Play blocks until the session has
// finished rendering or ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, samples []float32, sampleRate int) error
}

// EventKind identifies playback lifecycle events.
type EventKind string

const (
	EventStarted  EventKind = "started"
	EventFinished EventKind = "finished"
)

// Event reports a playback session transition.
type Event struct {
	Kind      EventKind
	SessionID string
	Duration  time.Duration
}

// Player drives one playback session at a time. Starting a new session stops
// the previous one; every session emits a started event and exactly one
// finished event.
type Player struct {
	sink   Sink
	log    *slog.Logger
	events chan Event

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	playing bool
}

func NewPlayer(sink Sink, log *slog.Logger) *Player {
	return &Player{
		sink:   sink,
		log:    log.With(slog.String("component", "audio-player")),
		events: make(chan Event, 16),
	}
}

// Events exposes the playback lifecycle stream.
func (p *Player) Events() <-chan Event {
	return p.events
}

// Playing reports whether a session is currently active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Play stops any active session and starts a new one with the given samples.
// It returns the new session id without blocking on playback.
func (p *Player) Play(samples []float32, sampleRate int) string {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	sessionID := uuid.NewString()
	duration := sampleDuration(len(samples), sampleRate)

	// register only while no session holds the slot, so concurrent callers
	// cannot orphan each other's cancel func
	for {
		p.mu.Lock()
		if p.cancel == nil {
			p.cancel = cancel
			p.done = done
			p.playing = true
			p.mu.Unlock()
			break
		}
		prevCancel, prevDone := p.cancel, p.done
		p.mu.Unlock()
		prevCancel()
		<-prevDone
	}

	go func() {
		defer close(done)
		p.emit(Event{Kind: EventStarted, SessionID: sessionID, Duration: duration})
		if err := p.sink.Play(ctx, samples, sampleRate); err != nil && ctx.Err() == nil {
			p.log.Warn("playback sink failed", slog.String("error", err.Error()))
		}

		p.mu.Lock()
		if p.done == done {
			p.playing = false
			p.cancel = nil
			p.done = nil
		}
		p.mu.Unlock()

		p.emit(Event{Kind: EventFinished, SessionID: sessionID, Duration: duration})
	}()

	return sessionID
}

// Stop cancels the active session, if any, and waits for its finished event
// to have been emitted.
func (p *Player) Stop() {
	p.stopLocked()
}

func (p *Player) stopLocked() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Close stops playback and closes the event stream.
func (p *Player) Close() {
	p.Stop()
	close(p.events)
}

func (p *Player) emit(evt Event) {
	select {
	case p.events <- evt:
	default:
		p.log.Warn("playback event dropped", slog.String("kind", string(evt.Kind)))
	}
}

func sampleDuration(sampleCount, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(sampleCount) / float64(sampleRate) * float64(time.Second))
}
