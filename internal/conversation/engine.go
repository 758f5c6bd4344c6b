package conversation

import "context"

type EventType string

const (
	// EventCustomerTranscript is a finished transcription of customer speech.
	EventCustomerTranscript EventType = "customer_transcript"
	// EventAssistantTextDelta is an incremental piece of the assistant reply.
	EventAssistantTextDelta EventType = "assistant_text_delta"
	// EventAssistantAudioDelta is a chunk of assistant speech, PCM16 LE at
	// the session sample rate.
	EventAssistantAudioDelta EventType = "assistant_audio_delta"
	// EventTurnComplete marks the end of one assistant turn.
	EventTurnComplete EventType = "turn_complete"
	// EventError is a session-fatal engine error; no further events follow.
	EventError EventType = "error"
)

type Event struct {
	Type       EventType
	Text       string
	Audio      []byte
	Confidence float64
	Err        error
}

// LeadContext carries the lead attributes used to personalize the
// conversation. Configured once at session start.
type LeadContext struct {
	Name    string
	Company string
	Phone   string
	Notes   string
}

// Session is one live conversation-engine connection. Events is closed
// when the session ends, after a final EventError if it ended abnormally.
type Session interface {
	SendAudio(pcm []byte) error
	Events() <-chan Event
	SampleRate() int
	Close() error
}

// Engine opens conversation sessions, one per live call.
type Engine interface {
	Start(ctx context.Context, callID string, lead LeadContext) (Session, error)
}
