// Package orchestrator sequences one conversation turn at a time through
// capture, transcription, generation, synthesis and playback.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/habibuoy/VirtualAIAssistant/internal/audio"
	"github.com/habibuoy/VirtualAIAssistant/internal/eventstore"
	"github.com/habibuoy/VirtualAIAssistant/internal/protocol"
	"github.com/habibuoy/VirtualAIAssistant/internal/provider"
	"github.com/habibuoy/VirtualAIAssistant/internal/speech"
	"github.com/habibuoy/VirtualAIAssistant/internal/transcribe"
)

// ErrBusy is returned for control requests that are only valid while idle.
var ErrBusy = errors.New("turn in flight")

// Notifier is the outbound UI boundary. The bus-backed implementation lives
// in this package; tests substitute a recording fake.
type Notifier interface {
	Status(evt protocol.UIStatus)
	Controls(state protocol.ControlState)
	CaptureStart()
	CaptureStop()
}

// Options carries the orchestrator collaborators and tunables.
type Options struct {
	Registry    *provider.Registry
	Transcriber transcribe.Transcriber
	Engine      *speech.Engine
	Player      *audio.Player
	Store       *eventstore.Store
	Notifier    Notifier
	Sentinel    string
	PreferLocal bool
	Logger      *slog.Logger
}

type turnState struct {
	ID    string
	Entry provider.Entry
	Name  string
	Start time.Time
}

// Service owns the turn state machine. All shared flags (active backend
// selection, synthesis preference) live on the struct and are mutated only
// through its methods.
type Service struct {
	registry    *provider.Registry
	transcriber transcribe.Transcriber
	engine      *speech.Engine
	player      *audio.Player
	store       *eventstore.Store
	notifier    Notifier
	sentinel    string
	log         *slog.Logger
	metrics     *turnMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	state          State
	preferRemote   bool
	conversationID string
	turn           *turnState
}

func NewService(parent context.Context, opts Options) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		registry:       opts.Registry,
		transcriber:    opts.Transcriber,
		engine:         opts.Engine,
		player:         opts.Player,
		store:          opts.Store,
		notifier:       opts.Notifier,
		sentinel:       opts.Sentinel,
		log:            opts.Logger.With(slog.String("component", "orchestrator")),
		metrics:        newTurnMetrics(opts.Logger),
		ctx:            ctx,
		cancel:         cancel,
		state:          StateIdle,
		preferRemote:   !opts.PreferLocal,
		conversationID: uuid.NewString(),
	}
	return s
}

// Start launches the lifecycle loop that consumes speech and playback events
// and publishes the initial control state.
func (s *Service) Start() {
	if s.store != nil {
		if err := s.store.EnsureConversation(s.ctx, s.conversationID, s.registry.ActiveName()); err != nil {
			s.log.Warn("failed to record conversation", slogError(err))
		}
	}
	s.wg.Add(1)
	go s.eventLoop()
	s.publishControls()
}

// Close stops the lifecycle loop. Collaborators are closed by the runtime.
func (s *Service) Close() {
	s.cancel()
	s.wg.Wait()
}

// State returns the current pipeline position.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PreferRemote reports the synthesis path preference.
func (s *Service) PreferRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preferRemote
}

// ToggleTalk flips the capture control. Idle starts a capture; Listening
// stops it, after which the capture collaborator delivers the recorded chunk.
func (s *Service) ToggleTalk() error {
	s.mu.Lock()
	switch s.state {
	case StateIdle:
		if s.registry.Empty() {
			s.mu.Unlock()
			s.notify("error", "no generation providers available", "")
			return errors.New("no validated providers")
		}
		s.state = StateListening
		s.mu.Unlock()
		s.notifier.CaptureStart()
		s.publishControls()
		return nil
	case StateListening:
		s.mu.Unlock()
		s.notifier.CaptureStop()
		return nil
	default:
		state := s.state
		s.mu.Unlock()
		s.log.Warn("talk toggle ignored", slog.String("state", string(state)))
		return ErrBusy
	}
}

// dispatchCapture runs HandleCapture on its own goroutine, tracked so Close
// waits for in-flight turns. No new work is accepted once the service is
// stopping; the runtime additionally drains bus subscriptions before Close.
func (s *Service) dispatchCapture(chunk protocol.CaptureChunk) {
	if s.ctx.Err() != nil {
		s.log.Warn("capture chunk dropped, service stopping")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.HandleCapture(chunk)
	}()
}

// HandleCapture runs one turn for a recorded audio chunk. It blocks the
// calling goroutine through transcription, generation and the start of
// synthesis; playback completion is observed by the lifecycle loop.
func (s *Service) HandleCapture(chunk protocol.CaptureChunk) {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		s.log.Warn("capture chunk dropped", slog.String("state", string(s.state)))
		return
	}
	entry, ok := s.registry.Active()
	if !ok {
		s.state = StateIdle
		s.mu.Unlock()
		s.notify("error", "no generation providers available", "")
		s.publishControls()
		return
	}
	turn := &turnState{
		ID:    uuid.NewString(),
		Entry: entry,
		Name:  s.registry.ActiveName(),
		Start: time.Now(),
	}
	s.turn = turn
	s.state = StateTranscribing
	preferRemote := s.preferRemote
	s.mu.Unlock()
	s.publishControls()
	s.recordTurn(turn.ID, "started", turn.Name)

	s.runTurn(turn, chunk, preferRemote)
}

func (s *Service) runTurn(turn *turnState, chunk protocol.CaptureChunk, preferRemote bool) {
	stageStart := time.Now()
	transcript, err := s.transcriber.Transcribe(s.ctx, chunk.PCM, chunk.SampleRate, chunk.Channels)
	s.metrics.observeStage(s.ctx, "transcribe", stageStart)
	if err != nil {
		s.failTurn(turn, "transcription failed", err)
		return
	}
	if transcript == s.sentinel || transcript == "" {
		s.log.Info("no speech detected", slog.String("turn_id", turn.ID))
		s.notify("notice", "no speech detected", turn.ID)
		s.finishTurn(turn, "no_speech")
		return
	}
	s.notify("transcript", transcript, turn.ID)
	s.recordTurn(turn.ID, "transcript", transcript)

	s.setState(StateThinking)
	stageStart = time.Now()
	reply, err := s.registry.Generate(s.ctx, turn.Entry, transcript)
	s.metrics.observeStage(s.ctx, "generate", stageStart)
	if err != nil || reply == "" {
		if err == nil {
			err = errors.New("empty reply")
		}
		s.failTurn(turn, "generation failed", err)
		return
	}
	s.notify("reply", reply, turn.ID)
	s.recordTurn(turn.ID, "reply", reply)

	s.setState(StateSynthesizing)
	if preferRemote && turn.Entry.RemoteCapable() {
		stageStart = time.Now()
		samples, rate, err := s.registry.SynthesizeRemote(s.ctx, turn.Entry, reply)
		s.metrics.observeStage(s.ctx, "synthesize_remote", stageStart)
		if err == nil {
			s.player.Play(samples, rate)
			return
		}
		s.log.Warn("remote synthesis failed, using local pipeline",
			slog.String("provider", turn.Name), slogError(err))
	}

	if err := s.engine.Speak(s.ctx, reply); err != nil {
		s.failTurn(turn, "synthesis failed", err)
	}
}

// SwitchProvider selects a different generation backend. Only valid while
// idle; an in-flight turn keeps the backend captured at its start.
func (s *Service) SwitchProvider(name string) error {
	s.mu.Lock()
	if s.state.busy() {
		state := s.state
		s.mu.Unlock()
		s.log.Warn("provider switch rejected", slog.String("provider", name), slog.String("state", string(state)))
		return fmt.Errorf("%w: cannot switch provider", ErrBusy)
	}
	s.mu.Unlock()

	if _, err := s.registry.SwitchActive(name); err != nil {
		s.log.Error("provider switch failed", slog.String("provider", name), slogError(err))
		return err
	}
	s.log.Info("active provider switched", slog.String("provider", name))
	s.publishControls()
	return nil
}

// SetPreferRemote flips the synthesis path for future turns. Only valid
// while idle.
func (s *Service) SetPreferRemote(remote bool) error {
	s.mu.Lock()
	if s.state.busy() {
		s.mu.Unlock()
		s.log.Warn("synthesis mode toggle rejected during turn")
		return fmt.Errorf("%w: cannot change synthesis mode", ErrBusy)
	}
	s.preferRemote = remote
	s.mu.Unlock()
	s.log.Info("synthesis mode changed", slog.Bool("prefer_remote", remote))
	s.publishControls()
	return nil
}

// eventLoop watches the speech engine and audio player streams and drives
// the Synthesizing -> Speaking -> Idle tail of each turn.
func (s *Service) eventLoop() {
	defer s.wg.Done()
	engineEvents := s.engine.Events()
	playerEvents := s.player.Events()
	for {
		select {
		case <-s.ctx.Done():
			return
		case evt, ok := <-engineEvents:
			if !ok {
				engineEvents = nil
				continue
			}
			if evt.Kind == speech.EventCancelled {
				s.mu.Lock()
				turn := s.turn
				s.mu.Unlock()
				if turn != nil {
					s.failTurn(turn, "synthesis failed", evt.Err)
				}
			}
		case evt, ok := <-playerEvents:
			if !ok {
				playerEvents = nil
				continue
			}
			switch evt.Kind {
			case audio.EventStarted:
				s.setState(StateSpeaking)
			case audio.EventFinished:
				s.mu.Lock()
				turn := s.turn
				s.mu.Unlock()
				if turn != nil {
					s.finishTurn(turn, "delivered")
				}
			}
		}
	}
}

func (s *Service) setState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()
	s.publishControls()
}

func (s *Service) finishTurn(turn *turnState, outcome string) {
	s.recordTurn(turn.ID, "outcome", outcome)
	s.metrics.countTurn(s.ctx, outcome)
	s.log.Info("turn finished",
		slog.String("turn_id", turn.ID),
		slog.String("outcome", outcome),
		slog.Duration("elapsed", time.Since(turn.Start)))
	s.clearTurn(turn)
}

func (s *Service) failTurn(turn *turnState, reason string, err error) {
	if err != nil {
		s.log.Warn("turn failed", slog.String("turn_id", turn.ID), slog.String("reason", reason), slogError(err))
	}
	s.notify("error", reason, turn.ID)
	s.recordTurn(turn.ID, "outcome", "failed: "+reason)
	s.metrics.countTurn(s.ctx, "failed")
	s.clearTurn(turn)
}

func (s *Service) clearTurn(turn *turnState) {
	s.mu.Lock()
	if s.turn == turn {
		s.turn = nil
	}
	s.state = StateIdle
	s.mu.Unlock()
	s.publishControls()
}

func (s *Service) notify(kind, text, turnID string) {
	s.notifier.Status(protocol.UIStatus{
		Kind:      kind,
		Text:      text,
		TurnID:    turnID,
		Timestamp: time.Now().UTC(),
	})
}

func (s *Service) publishControls() {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	idle := !state.busy()
	s.notifier.Controls(protocol.ControlState{
		TalkEnabled:           !s.registry.Empty() && (idle || state == StateListening),
		TalkLabel:             state.TalkLabel(),
		ProviderSelectEnabled: idle,
		ModeToggleEnabled:     idle,
		Providers:             s.registry.Names(),
		ActiveProvider:        s.registry.ActiveName(),
		Timestamp:             time.Now().UTC(),
	})
}

func (s *Service) recordTurn(turnID, stage, payload string) {
	if s.store == nil {
		return
	}
	err := s.store.AppendTurnEvent(s.ctx, eventstore.TurnEvent{
		ConversationID: s.conversationID,
		TurnID:         turnID,
		Stage:          stage,
		Payload:        []byte(payload),
	})
	if err != nil {
		s.log.Warn("failed to record turn event", slog.String("stage", stage), slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
