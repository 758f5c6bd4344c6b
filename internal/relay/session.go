package relay

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"callpilot/internal/audio"
	"callpilot/internal/calls"
	"callpilot/internal/conversation"
)

type State string

const (
	StateConnecting State = "connecting"
	StateActive     State = "active"
	StateClosing    State = "closing"
	StateClosed     State = "closed"
)

// Outbound sends one media frame back to the telephony transport. The
// stream session id from the start event is echoed on every frame.
type Outbound interface {
	SendMedia(streamSID string, frame []byte) error
}

// Session bridges one live call between the telephony media stream and
// the conversation engine. Inbound media is decoded and forwarded to
// the engine; engine output comes back as transport frames. Every
// session runs independently; a fault here never touches another call.
type Session struct {
	callID        string
	engine        conversation.Session
	synth         conversation.Synthesizer
	calls         *calls.Service
	out           Outbound
	splitter      SentenceSplitter
	registry      *Registry
	log           *slog.Logger
	frameDuration time.Duration

	mu        sync.Mutex
	state     State
	streamSID string

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// HandleStart activates the session with the transport's stream id.
func (s *Session) HandleStart(streamSID string) {
	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateActive
	s.streamSID = streamSID
	s.mu.Unlock()

	if err := s.calls.AttachTransportSession(s.ctx, s.callID, streamSID); err != nil {
		s.log.Warn("transport session not attached", "error", err)
	}
}

// HandleMedia forwards one inbound mu-law frame to the engine. Frames
// arriving outside the ACTIVE window are dropped.
func (s *Session) HandleMedia(payload []byte) {
	s.mu.Lock()
	active := s.state == StateActive
	s.mu.Unlock()
	if !active || len(payload) == 0 {
		return
	}

	pcm8k := audio.DecodeMulawToPCM16(payload)
	pcm := resamplePCM16(pcm8k, audio.TransportSampleRate, s.engine.SampleRate())
	if err := s.engine.SendAudio(pcm); err != nil {
		s.fail("engine rejected audio", err)
	}
}

// HandleStop ends the session on a transport stop event.
func (s *Session) HandleStop() {
	s.shutdown()
}

// Close tears the session down; safe to call more than once.
func (s *Session) Close() {
	s.shutdown()
}

// Done is closed once the engine loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) fail(msg string, err error) {
	s.log.Error(msg, "error", err)
	s.shutdown()
}

// shutdown releases the engine connection and deregisters the session
// synchronously, so no further audio is processed for this call id.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosing
		s.mu.Unlock()

		s.cancel()
		if err := s.engine.Close(); err != nil {
			s.log.Warn("engine close failed", "error", err)
		}
		s.registry.Remove(s.callID)

		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()
	})
}

func (s *Session) engineLoop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.engine.Events():
			if !ok {
				// Engine hung up; release everything for this call.
				s.shutdown()
				return
			}
			switch ev.Type {
			case conversation.EventCustomerTranscript:
				s.appendInteraction(calls.SpeakerCustomer, ev.Text, ev.Confidence)
			case conversation.EventAssistantTextDelta:
				for _, sentence := range s.splitter.Feed(ev.Text) {
					s.speak(sentence)
				}
			case conversation.EventAssistantAudioDelta:
				if s.synth == nil {
					s.relayEngineAudio(ev.Audio)
				}
			case conversation.EventTurnComplete:
				if rest := s.splitter.Flush(); rest != "" {
					s.speak(rest)
				}
			case conversation.EventError:
				// Partial text buffered in the splitter is dropped with
				// the session.
				s.fail("engine session failed", ev.Err)
				return
			}
		}
	}
}

// speak synthesizes one finished sentence and streams it out, then
// records the utterance. A synthesis failure drops this utterance only,
// spoken and logged alike; the session stays alive.
func (s *Session) speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.synth != nil {
		buf, err := s.synth.Synthesize(s.ctx, text)
		if err != nil {
			s.log.Warn("synthesis failed, utterance dropped", "error", err)
			return
		}
		frames, err := audio.TranscodeToFrames(buf, s.frameDuration)
		if err != nil {
			s.log.Warn("synthesized audio not transcoded, utterance dropped", "error", err)
			return
		}
		s.sendFrames(frames)
	}
	s.appendInteraction(calls.SpeakerAI, text, 1)
}

func (s *Session) relayEngineAudio(pcm []byte) {
	frames, err := audio.FramePCM16(pcm, s.engine.SampleRate(), s.frameDuration)
	if err != nil {
		s.log.Warn("engine audio not framed", "error", err)
		return
	}
	s.sendFrames(frames)
}

func (s *Session) sendFrames(frames [][]byte) {
	s.mu.Lock()
	sid := s.streamSID
	state := s.state
	s.mu.Unlock()
	if state != StateActive {
		return
	}
	for _, frame := range frames {
		if err := s.out.SendMedia(sid, frame); err != nil {
			s.fail("outbound media send failed", err)
			return
		}
	}
}

func (s *Session) appendInteraction(sp calls.Speaker, text string, confidence float64) {
	// Even low-confidence transcripts are kept; arrival order is the
	// utterance order.
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := s.calls.AppendInteraction(s.ctx, s.callID, sp, text, "", confidence); err != nil {
		s.log.Warn("interaction not recorded", "speaker", string(sp), "error", err)
	}
}

func resamplePCM16(pcm []byte, inRate, outRate int) []byte {
	if inRate == outRate {
		return pcm
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
	}
	resampled := audio.Resample(samples, inRate, outRate)
	out := make([]byte, len(resampled)*2)
	for i, v := range resampled {
		out[i*2] = byte(uint16(v))
		out[i*2+1] = byte(uint16(v) >> 8)
	}
	return out
}
