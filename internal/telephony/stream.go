package telephony

import "encoding/json"

// Media stream wire protocol (Twilio Media Streams shape). The provider
// sends JSON text frames over the websocket: connected, start, media,
// stop. Outbound media frames echo the streamSid from the start event.
// Ref: https://www.twilio.com/docs/voice/media-streams

const (
	StreamEventConnected = "connected"
	StreamEventStart     = "start"
	StreamEventMedia     = "media"
	StreamEventStop      = "stop"
)

type StreamMessage struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid,omitempty"`
	Start     *StartPayload `json:"start,omitempty"`
	Media     *MediaPayload `json:"media,omitempty"`
}

type StartPayload struct {
	StreamSid        string            `json:"streamSid"`
	CallSid          string            `json:"callSid"`
	AccountSid       string            `json:"accountSid,omitempty"`
	Tracks           []string          `json:"tracks,omitempty"`
	CustomParameters map[string]string `json:"customParameters,omitempty"`
	MediaFormat      *MediaFormat      `json:"mediaFormat,omitempty"`
}

type MediaFormat struct {
	Encoding   string `json:"encoding"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
}

type MediaPayload struct {
	Track     string `json:"track,omitempty"`
	Chunk     string `json:"chunk,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	// Payload is base64-encoded mu-law audio.
	Payload string `json:"payload"`
}

// EncodeOutboundMedia builds one outbound media frame; payload must
// already be base64 mu-law.
func EncodeOutboundMedia(streamSid, payload string) ([]byte, error) {
	return json.Marshal(StreamMessage{
		Event:     StreamEventMedia,
		StreamSid: streamSid,
		Media:     &MediaPayload{Payload: payload},
	})
}
