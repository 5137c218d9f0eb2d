// Package transcribe wraps the external speech-to-text collaborator.
package transcribe

import "context"

// Transcriber abstracts the speech-to-text backend. A returned error is a
// hard failure (device or model); the configured sentinel text signals "no
// speech detected" and is handled by the caller, not here.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte, sampleRate int, channels int) (string, error)
}
