package orchestrator

// State is the turn pipeline position. Exactly one turn moves through the
// states at a time; every error edge leads back to StateIdle.
type State string

const (
	StateIdle         State = "idle"
	StateListening    State = "listening"
	StateTranscribing State = "transcribing"
	StateThinking     State = "thinking"
	StateSynthesizing State = "synthesizing"
	StateSpeaking     State = "speaking"
)

// TalkLabel maps a state to the user-facing label of the talk control.
func (s State) TalkLabel() string {
	switch s {
	case StateListening:
		return "Listening"
	case StateTranscribing, StateThinking, StateSynthesizing:
		return "Thinking"
	case StateSpeaking:
		return "Talking"
	default:
		return "Waiting"
	}
}

// busy reports whether a turn is in flight. Provider switches and the
// synthesis mode toggle are only accepted while not busy.
func (s State) busy() bool {
	return s != StateIdle
}
