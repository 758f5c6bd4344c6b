package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Synthesizer converts one finished sentence into a complete audio
// buffer (WAV or MP3; the transcoding layer sniffs the container).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// SpeechConfig controls the speech synthesis API client.
type SpeechConfig struct {
	URL     string
	APIKey  string
	Model   string
	Voice   string
	Format  string
	Timeout time.Duration
}

func (c SpeechConfig) withDefaults() SpeechConfig {
	out := c
	if out.URL == "" {
		out.URL = "https://api.openai.com/v1/audio/speech"
	}
	if out.Model == "" {
		out.Model = "gpt-4o-mini-tts"
	}
	if out.Voice == "" {
		out.Voice = "nova"
	}
	if out.Format == "" {
		out.Format = "wav"
	}
	if out.Timeout <= 0 {
		out.Timeout = 30 * time.Second
	}
	return out
}

// HTTPSynthesizer is a blocking speech synthesis client, one request
// per sentence.
type HTTPSynthesizer struct {
	cfg    SpeechConfig
	client *http.Client
}

func NewHTTPSynthesizer(cfg SpeechConfig) (*HTTPSynthesizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("speech api key is required")
	}
	cfg = cfg.withDefaults()
	return &HTTPSynthesizer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type speechRequest struct {
	Model  string `json:"model"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
	Input  string `json:"input"`
}

func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty utterance")
	}

	body, err := json.Marshal(speechRequest{
		Model:  s.cfg.Model,
		Voice:  s.cfg.Voice,
		Format: s.cfg.Format,
		Input:  text,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("speech synthesis %d: %s", resp.StatusCode, truncate(string(audio), 400))
	}
	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(ct, "application/json") || (len(audio) > 0 && audio[0] == '{') {
		return nil, fmt.Errorf("speech synthesis returned JSON instead of audio: %s", truncate(string(audio), 400))
	}
	return audio, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
