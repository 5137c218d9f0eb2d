package speech

import "context"

// Result carries one inference output. Samples may be padded past the
// declared logical length.
type Result struct {
	Samples []float32
	Length  int
}

// Runtime abstracts the neural TTS model execution so multiple native
// runtimes can share the same tokenization and scheduling pipeline.
type Runtime interface {
	Generate(ctx context.Context, tokens []int) (Result, error)
	Close()
}
