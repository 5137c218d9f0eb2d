package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink renders playback sessions as WAV files in a directory, then holds
// for the clip duration so session timing matches a real output device.
type WAVSink struct {
	dir      string
	realtime bool
	counter  atomic.Int64
}

func NewWAVSink(dir string, realtime bool) (*WAVSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create speech output dir: %w", err)
	}
	return &WAVSink{dir: dir, realtime: realtime}, nil
}

func (s *WAVSink) Play(ctx context.Context, samples []float32, sampleRate int) error {
	n := s.counter.Add(1)
	path := filepath.Join(s.dir, fmt.Sprintf("speech_%d.wav", n))
	if err := writeWAV(path, samples, sampleRate); err != nil {
		return err
	}

	if !s.realtime {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sampleDuration(len(samples), sampleRate)):
		return nil
	}
}

func writeWAV(path string, samples []float32, sampleRate int) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()

	buffer := &gaudio.IntBuffer{
		Format: &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, len(samples)),
	}
	for i, sample := range samples {
		buffer.Data[i] = clampSample(sample)
	}

	enc := wav.NewEncoder(file, sampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

func clampSample(sample float32) int {
	scaled := float64(sample) * math.MaxInt16
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int(scaled)
}
