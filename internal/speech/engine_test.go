package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/habibuoy/VirtualAIAssistant/internal/audio"
	"github.com/habibuoy/VirtualAIAssistant/internal/phoneme"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeRuntime struct {
	jobs    atomic.Int64
	release chan struct{}
	result  Result
	err     error
}

func (f *fakeRuntime) Generate(ctx context.Context, tokens []int) (Result, error) {
	f.jobs.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeRuntime) Close() {}

type nullSink struct{}

func (nullSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	return nil
}

func testDecoder() *phoneme.Decoder {
	return phoneme.NewDecoderFromEntries(map[string]string{
		"HELLO": "HH AH0 L OW1",
	})
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-events:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for speech event")
		return Event{}
	}
}

func TestSpeakCompletesAndStartsPlayback(t *testing.T) {
	rt := &fakeRuntime{result: Result{Samples: make([]float32, 22050), Length: 22050}}
	player := audio.NewPlayer(nullSink{}, newLogger())
	engine := NewEngine(testDecoder(), rt, player, 22050, newLogger())

	if err := engine.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak: %v", err)
	}

	evt := waitEvent(t, engine.Events())
	if evt.Kind != EventCompleted {
		t.Fatalf("expected completed event, got %+v", evt)
	}
	if evt.Duration != time.Second {
		t.Fatalf("expected 1s audio duration, got %v", evt.Duration)
	}

	playback := <-player.Events()
	if playback.Kind != audio.EventStarted {
		t.Fatalf("expected playback start, got %+v", playback)
	}
	if engine.Pending() {
		t.Fatal("expected pending cleared after completion")
	}
}

func TestSpeakSingleFlight(t *testing.T) {
	rt := &fakeRuntime{
		release: make(chan struct{}),
		result:  Result{Samples: make([]float32, 10), Length: 10},
	}
	player := audio.NewPlayer(nullSink{}, newLogger())
	engine := NewEngine(testDecoder(), rt, player, 22050, newLogger())

	if err := engine.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("first speak: %v", err)
	}
	if err := engine.Speak(context.Background(), "hello"); !errors.Is(err, ErrSynthesisPending) {
		t.Fatalf("expected ErrSynthesisPending, got %v", err)
	}

	close(rt.release)
	evt := waitEvent(t, engine.Events())
	if evt.Kind != EventCompleted {
		t.Fatalf("expected completed event, got %+v", evt)
	}
	if got := rt.jobs.Load(); got != 1 {
		t.Fatalf("expected exactly 1 inference job, got %d", got)
	}

	// engine accepts work again once the job finished
	if err := engine.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak after completion: %v", err)
	}
	waitEvent(t, engine.Events())
}

func TestSpeakRuntimeFailureEmitsCancelled(t *testing.T) {
	rt := &fakeRuntime{err: errors.New("device exhausted")}
	player := audio.NewPlayer(nullSink{}, newLogger())
	engine := NewEngine(testDecoder(), rt, player, 22050, newLogger())

	if err := engine.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	evt := waitEvent(t, engine.Events())
	if evt.Kind != EventCancelled {
		t.Fatalf("expected cancelled event, got %+v", evt)
	}
	if evt.Err == nil {
		t.Fatal("expected error on cancelled event")
	}
	if engine.Pending() {
		t.Fatal("expected pending cleared after cancellation")
	}
}

func TestSpeakTruncatesPaddedSamples(t *testing.T) {
	rt := &fakeRuntime{result: Result{Samples: make([]float32, 44100), Length: 22050}}
	player := audio.NewPlayer(nullSink{}, newLogger())
	engine := NewEngine(testDecoder(), rt, player, 22050, newLogger())

	if err := engine.Speak(context.Background(), "hello"); err != nil {
		t.Fatalf("speak: %v", err)
	}
	evt := waitEvent(t, engine.Events())
	if evt.Kind != EventCompleted || evt.Duration != time.Second {
		t.Fatalf("expected 1s after truncation, got %+v", evt)
	}
}
