package transcribe

import (
	"context"
	"fmt"
)

type mockTranscriber struct{}

func NewMockTranscriber() Transcriber {
	return &mockTranscriber{}
}

func (m *mockTranscriber) Transcribe(_ context.Context, pcm []byte, _ int, _ int) (string, error) {
	return fmt.Sprintf("[transcript length=%d]", len(pcm)), nil
}
