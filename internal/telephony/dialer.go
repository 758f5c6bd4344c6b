package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"callpilot/internal/calls"
)

// DialerConfig holds the provider REST credentials and the public base
// URLs the provider calls back into.
type DialerConfig struct {
	AccountSID string
	AuthToken  string
	// APIBaseURL without trailing slash, e.g. https://api.twilio.com
	APIBaseURL string
	// PublicHTTPBase is the externally reachable base for webhooks,
	// e.g. https://calls.example.com
	PublicHTTPBase string
	// PublicWSBase is the externally reachable base for media streams,
	// e.g. wss://calls.example.com
	PublicWSBase string
	// MachineDetection enables provider answering-machine detection.
	MachineDetection bool
	Timeout          time.Duration
}

func (c DialerConfig) validate() error {
	if c.AccountSID == "" || c.AuthToken == "" {
		return fmt.Errorf("telephony: provider credentials are required")
	}
	if c.PublicHTTPBase == "" || c.PublicWSBase == "" {
		return fmt.Errorf("telephony: public callback bases are required")
	}
	return nil
}

// RestDialer places outbound calls through the provider's REST API.
// The created call is pointed at our media stream endpoint and status
// callbacks are routed to the status webhook, keyed by our call id.
type RestDialer struct {
	cfg    DialerConfig
	client *http.Client
	log    *slog.Logger
}

func NewRestDialer(cfg DialerConfig, log *slog.Logger) (*RestDialer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = "https://api.twilio.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &RestDialer{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

func (d *RestDialer) StartCall(ctx context.Context, c calls.Call) error {
	mediaURL := strings.TrimRight(d.cfg.PublicWSBase, "/") + "/media/" + c.CallID
	twiml, err := ConnectStreamTwiML(mediaURL)
	if err != nil {
		return err
	}
	statusURL := strings.TrimRight(d.cfg.PublicHTTPBase, "/") +
		"/webhooks/telephony/status?call_id=" + url.QueryEscape(c.CallID)

	form := url.Values{}
	form.Set("To", c.To)
	form.Set("From", c.From)
	form.Set("Twiml", twiml)
	form.Set("StatusCallback", statusURL)
	form.Set("StatusCallbackMethod", http.MethodPost)
	for _, ev := range []string{"initiated", "ringing", "answered", "completed"} {
		form.Add("StatusCallbackEvent", ev)
	}
	if d.cfg.MachineDetection {
		form.Set("MachineDetection", "Enable")
	}

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Calls.json",
		strings.TrimRight(d.cfg.APIBaseURL, "/"), d.cfg.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(d.cfg.AccountSID, d.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("telephony: dial request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telephony: dial rejected (%d): %s", resp.StatusCode, string(body))
	}

	var created struct {
		Sid    string `json:"sid"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &created); err == nil && created.Sid != "" {
		d.log.Info("outbound call placed",
			"call_id", c.CallID, "provider_call_sid", created.Sid, "status", created.Status)
	}
	return nil
}
