package speech

import (
	"context"
	"time"
)

type mockRuntime struct {
	samplesPerToken int
}

// NewMockRuntime produces silence proportional to the token count.
func NewMockRuntime(samplesPerToken int) Runtime {
	if samplesPerToken <= 0 {
		samplesPerToken = 256
	}
	return &mockRuntime{samplesPerToken: samplesPerToken}
}

func (m *mockRuntime) Generate(ctx context.Context, tokens []int) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(10 * time.Millisecond):
	}
	samples := make([]float32, len(tokens)*m.samplesPerToken)
	return Result{Samples: samples, Length: len(samples)}, nil
}

func (m *mockRuntime) Close() {}
