package protocol

import "time"

// CaptureChunk carries the PCM audio recorded for one turn. The capture
// collaborator publishes it once recording stops.
type CaptureChunk struct {
	PCM        []byte    `json:"pcm"`
	SampleRate int       `json:"sample_rate"`
	Channels   int       `json:"channels"`
	Timestamp  time.Time `json:"timestamp"`
}

// ProviderSelect asks the orchestrator to switch the active generation backend.
type ProviderSelect struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

// SynthesisMode toggles between the local phoneme pipeline and remote synthesis.
type SynthesisMode struct {
	PreferRemote bool      `json:"prefer_remote"`
	Timestamp    time.Time `json:"timestamp"`
}

// UIStatus carries user-facing text: transcripts, replies, notices and errors.
type UIStatus struct {
	Kind      string    `json:"kind"` // transcript, reply, notice, error
	Text      string    `json:"text"`
	TurnID    string    `json:"turn_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ControlState describes the UI affordances for the current orchestrator state.
type ControlState struct {
	TalkEnabled           bool      `json:"talk_enabled"`
	TalkLabel             string    `json:"talk_label"`
	ProviderSelectEnabled bool      `json:"provider_select_enabled"`
	ModeToggleEnabled     bool      `json:"mode_toggle_enabled"`
	Providers             []string  `json:"providers,omitempty"`
	ActiveProvider        string    `json:"active_provider,omitempty"`
	Timestamp             time.Time `json:"timestamp"`
}

const (
	// talk toggle and capture start/stop carry no payload
	SubjectTalkToggle     = "ui.talk.toggle"
	SubjectProviderSelect = "ui.provider.select"
	SubjectSynthesisMode  = "ui.synthesis.mode"
	SubjectUIStatus       = "ui.status"
	SubjectUIControls     = "ui.controls"

	SubjectCaptureStart = "audio.capture.start"
	SubjectCaptureStop  = "audio.capture.stop"
	SubjectCaptureChunk = "audio.capture.chunk"
)
