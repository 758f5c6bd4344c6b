package calls

import "time"

// Call is one outbound phone call to a lead.
//
// Lifecycle invariants:
//   - Status only moves forward (scheduled -> ringing -> in_progress -> terminal).
//   - Calls are never deleted; they are only marked terminal.
//   - Mutations happen only through the state machine (Apply) driven by transport
//     status callbacks or relay completion.
type Call struct {
	CallID     string `json:"call_id" db:"call_id"`
	LeadID     string `json:"lead_id" db:"lead_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	From string `json:"from" db:"from_number"`
	To   string `json:"to" db:"to_number"`

	Status  CallStatus  `json:"status" db:"status"`
	Outcome CallOutcome `json:"outcome,omitempty" db:"outcome"`

	// TransportSessionID is the telephony provider's opaque handle for this call.
	TransportSessionID string `json:"transport_session_id,omitempty" db:"transport_session_id"`

	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   time.Time `json:"started_at,omitempty" db:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is derived once at completion: endedAt - startedAt,
	// zero when the call never entered in_progress.
	DurationSeconds int `json:"duration" db:"duration_seconds"`

	RecordingURL             string `json:"recording_url,omitempty" db:"recording_url"`
	RecordingDurationSeconds int    `json:"recording_duration,omitempty" db:"recording_duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusScheduled  CallStatus = "scheduled"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
)

// IsTerminal reports whether a status ends the lifecycle.
func (s CallStatus) IsTerminal() bool {
	return s == CallStatusCompleted || s == CallStatusFailed
}

// CallOutcome is the business classification of a finished call.
// Empty means not yet classified.
type CallOutcome string

const (
	OutcomeInterested    CallOutcome = "interested"
	OutcomeNotInterested CallOutcome = "not_interested"
	OutcomeCallback      CallOutcome = "callback"
	OutcomeVoicemail     CallOutcome = "voicemail"
	OutcomeNoAnswer      CallOutcome = "no_answer"
	OutcomeBusy          CallOutcome = "busy"
	OutcomeFailed        CallOutcome = "failed"
)

// IsSuccess reports whether a finished call counts toward a campaign's
// successful_calls counter: it completed and was not an answering machine.
func IsSuccess(c Call) bool {
	return c.Status == CallStatusCompleted && c.Outcome != OutcomeVoicemail
}

// Speaker identifies who produced an interaction.
type Speaker string

const (
	SpeakerAI       Speaker = "ai"
	SpeakerCustomer Speaker = "customer"
)

// Interaction is one spoken turn of a call: either a transcribed customer
// utterance or the source text of a synthesized AI utterance.
//
// Interactions are append-only and ordered by receipt; they are never
// mutated after insert. Garbled transcriptions are kept for audit with
// whatever confidence the transport reported.
type Interaction struct {
	ID      string  `json:"id" db:"id"`
	CallID  string  `json:"call_id" db:"call_id"`
	Speaker Speaker `json:"speaker" db:"speaker"`
	Content string  `json:"content" db:"content"`

	Sentiment  string  `json:"sentiment,omitempty" db:"sentiment"`
	Confidence float64 `json:"confidence,omitempty" db:"confidence"`

	Timestamp time.Time `json:"timestamp" db:"created_at"`
}
