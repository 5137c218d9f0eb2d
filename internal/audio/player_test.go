package audio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type blockingSink struct {
	started atomic.Int64
}

func (s *blockingSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	s.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

type instantSink struct{}

func (s *instantSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	return nil
}

func collectEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-events:
		return evt
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for playback event")
		return Event{}
	}
}

func TestPlayEmitsStartAndFinish(t *testing.T) {
	player := NewPlayer(&instantSink{}, newLogger())
	defer player.Close()

	session := player.Play(make([]float32, 22050), 22050)

	started := collectEvent(t, player.Events())
	if started.Kind != EventStarted || started.SessionID != session {
		t.Fatalf("unexpected first event: %+v", started)
	}
	if started.Duration != time.Second {
		t.Fatalf("expected 1s duration, got %v", started.Duration)
	}
	finished := collectEvent(t, player.Events())
	if finished.Kind != EventFinished || finished.SessionID != session {
		t.Fatalf("unexpected second event: %+v", finished)
	}
}

func TestPlayReplacesActiveSession(t *testing.T) {
	sink := &blockingSink{}
	player := NewPlayer(sink, newLogger())

	first := player.Play(make([]float32, 100), 22050)
	startedFirst := collectEvent(t, player.Events())
	if startedFirst.SessionID != first {
		t.Fatalf("unexpected first start: %+v", startedFirst)
	}

	second := player.Play(make([]float32, 100), 22050)

	// The first session must finish (exactly once) before the second starts.
	finishedFirst := collectEvent(t, player.Events())
	if finishedFirst.Kind != EventFinished || finishedFirst.SessionID != first {
		t.Fatalf("expected finish of first session, got %+v", finishedFirst)
	}
	startedSecond := collectEvent(t, player.Events())
	if startedSecond.Kind != EventStarted || startedSecond.SessionID != second {
		t.Fatalf("expected start of second session, got %+v", startedSecond)
	}
	if got := sink.started.Load(); got != 2 {
		t.Fatalf("expected 2 sink sessions, got %d", got)
	}

	player.Stop()
	finishedSecond := collectEvent(t, player.Events())
	if finishedSecond.Kind != EventFinished || finishedSecond.SessionID != second {
		t.Fatalf("expected finish of second session, got %+v", finishedSecond)
	}
	if player.Playing() {
		t.Fatal("expected player idle after stop")
	}
}

type countingSink struct {
	active atomic.Int64
	peak   atomic.Int64
}

func (s *countingSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	cur := s.active.Add(1)
	for {
		old := s.peak.Load()
		if cur <= old || s.peak.CompareAndSwap(old, cur) {
			break
		}
	}
	<-ctx.Done()
	s.active.Add(-1)
	return ctx.Err()
}

func TestConcurrentPlayKeepsSingleSession(t *testing.T) {
	sink := &countingSink{}
	player := NewPlayer(sink, newLogger())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			player.Play(make([]float32, 10), 22050)
		}()
	}
	wg.Wait()
	player.Stop()

	if got := sink.peak.Load(); got != 1 {
		t.Fatalf("expected at most one sink session at a time, saw %d", got)
	}
	if player.Playing() {
		t.Fatal("expected player idle after stop")
	}
}

func TestWAVSinkWritesFile(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewWAVSink(dir, false)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	if err := sink.Play(context.Background(), []float32{0, 0.5, -0.5, 1}, 22050); err != nil {
		t.Fatalf("play: %v", err)
	}
}
