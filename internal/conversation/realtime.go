package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultRealtimeURL  = "wss://api.openai.com/v1/realtime"
	defaultSampleRate   = 24000
	eventBufferSize     = 64
	defaultWriteTimeout = 5 * time.Second
)

// RealtimeConfig controls the realtime engine connection.
type RealtimeConfig struct {
	URL          string
	APIKey       string
	Model        string
	Voice        string
	Instructions string
	// SampleRate of assistant audio deltas (PCM16 LE).
	SampleRate   int
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

func (c RealtimeConfig) withDefaults() RealtimeConfig {
	out := c
	if out.URL == "" {
		out.URL = defaultRealtimeURL
	}
	if out.SampleRate <= 0 {
		out.SampleRate = defaultSampleRate
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = 10 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = defaultWriteTimeout
	}
	return out
}

// RealtimeEngine dials the provider's realtime websocket API, one
// connection per call.
type RealtimeEngine struct {
	cfg RealtimeConfig
	log *slog.Logger
}

func NewRealtimeEngine(cfg RealtimeConfig, log *slog.Logger) (*RealtimeEngine, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("realtime api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("realtime model is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RealtimeEngine{cfg: cfg.withDefaults(), log: log}, nil
}

func (e *RealtimeEngine) Start(ctx context.Context, callID string, lead LeadContext) (Session, error) {
	dialer := websocket.Dialer{HandshakeTimeout: e.cfg.DialTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	url := e.cfg.URL + "?model=" + e.cfg.Model
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("realtime dial: %w (status %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("realtime dial: %w", err)
	}

	s := &realtimeSession{
		conn:         conn,
		log:          e.log.With("call_id", callID),
		events:       make(chan Event, eventBufferSize),
		done:         make(chan struct{}),
		sampleRate:   e.cfg.SampleRate,
		writeTimeout: e.cfg.WriteTimeout,
	}

	if err := s.configure(e.cfg, lead); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("realtime session config: %w", err)
	}

	go s.readLoop()
	return s, nil
}

type realtimeSession struct {
	conn *websocket.Conn
	log  *slog.Logger

	events chan Event

	writeMu      sync.Mutex
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}

	sampleRate int
}

type sessionUpdate struct {
	Type    string          `json:"type"`
	Session sessionSettings `json:"session"`
}

type sessionSettings struct {
	Modalities        []string           `json:"modalities"`
	Voice             string             `json:"voice,omitempty"`
	Instructions      string             `json:"instructions"`
	InputAudioFormat  string             `json:"input_audio_format"`
	OutputAudioFormat string             `json:"output_audio_format"`
	Transcription     *transcriptionOpts `json:"input_audio_transcription,omitempty"`
	TurnDetection     *turnDetection     `json:"turn_detection,omitempty"`
}

type transcriptionOpts struct {
	Model string `json:"model"`
}

type turnDetection struct {
	Type string `json:"type"`
}

func (s *realtimeSession) configure(cfg RealtimeConfig, lead LeadContext) error {
	return s.writeJSON(sessionUpdate{
		Type: "session.update",
		Session: sessionSettings{
			Modalities:        []string{"text", "audio"},
			Voice:             cfg.Voice,
			Instructions:      buildInstructions(cfg.Instructions, lead),
			InputAudioFormat:  "pcm16",
			OutputAudioFormat: "pcm16",
			Transcription:     &transcriptionOpts{Model: "whisper-1"},
			TurnDetection:     &turnDetection{Type: "server_vad"},
		},
	})
}

// buildInstructions appends the lead attributes to the base prompt so
// the assistant can address the customer by name.
func buildInstructions(base string, lead LeadContext) string {
	var b strings.Builder
	b.WriteString(base)
	if lead.Name != "" {
		fmt.Fprintf(&b, "\nThe customer's name is %s.", lead.Name)
	}
	if lead.Company != "" {
		fmt.Fprintf(&b, "\nThey work at %s.", lead.Company)
	}
	if lead.Notes != "" {
		fmt.Fprintf(&b, "\nNotes from previous contact: %s", lead.Notes)
	}
	return b.String()
}

type audioAppend struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

func (s *realtimeSession) SendAudio(pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}
	return s.writeJSON(audioAppend{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

func (s *realtimeSession) Events() <-chan Event { return s.events }

func (s *realtimeSession) SampleRate() int { return s.sampleRate }

func (s *realtimeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}

func (s *realtimeSession) writeJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// serverEvent covers the fields we consume across all inbound event types.
type serverEvent struct {
	Type       string  `json:"type"`
	Delta      string  `json:"delta"`
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *realtimeSession) readLoop() {
	defer close(s.events)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				// Close() already ran; a read error here is expected.
			default:
				s.emit(Event{Type: EventError, Err: fmt.Errorf("realtime read: %w", err)})
			}
			return
		}

		var ev serverEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			s.log.Warn("unparseable engine event", "error", err)
			continue
		}

		switch ev.Type {
		case "conversation.item.input_audio_transcription.completed":
			s.emit(Event{Type: EventCustomerTranscript, Text: ev.Transcript, Confidence: ev.Confidence})
		case "response.audio_transcript.delta", "response.text.delta":
			s.emit(Event{Type: EventAssistantTextDelta, Text: ev.Delta})
		case "response.audio.delta":
			audio, err := base64.StdEncoding.DecodeString(ev.Delta)
			if err != nil {
				s.log.Warn("invalid audio delta", "error", err)
				continue
			}
			s.emit(Event{Type: EventAssistantAudioDelta, Audio: audio})
		case "response.done":
			s.emit(Event{Type: EventTurnComplete})
		case "error":
			s.emit(Event{Type: EventError, Err: fmt.Errorf("engine error: %s", ev.Error.Message)})
			return
		}
	}
}

func (s *realtimeSession) emit(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}
