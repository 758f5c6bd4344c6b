package calls

import "time"

// StatusEventType is a coarse call status reported by the telephony transport.
type StatusEventType string

const (
	EventRinging   StatusEventType = "ringing"
	EventAnswered  StatusEventType = "answered"
	EventCompleted StatusEventType = "completed"
	EventBusy      StatusEventType = "busy"
	EventNoAnswer  StatusEventType = "no_answer"
	EventFailed    StatusEventType = "failed"
)

// StatusEvent is one asynchronous status notification. Callbacks arrive
// possibly duplicated and out of order; Apply is responsible for keeping
// the call record consistent anyway.
type StatusEvent struct {
	Type StatusEventType

	// MachineDetected is the transport's answering-machine-detection flag.
	// It may accompany any event once the call is ringing.
	MachineDetected bool

	// DurationSeconds is the transport-reported duration on completion, if any.
	DurationSeconds int

	At time.Time
}

// statusRank orders statuses along the forward-only lifecycle.
func statusRank(s CallStatus) int {
	switch s {
	case CallStatusScheduled:
		return 0
	case CallStatusRinging:
		return 1
	case CallStatusInProgress:
		return 2
	case CallStatusCompleted, CallStatusFailed:
		return 3
	default:
		return 0
	}
}

// Apply is the pure transition function of the call lifecycle.
//
// It returns the updated call and whether anything changed. Duplicate
// terminal events and events reporting a state behind the current one are
// no-ops: a second "completed" never recomputes duration, and a stale
// "ringing" after "completed" is ignored rather than regressing the call.
//
// Answering-machine detection is a side branch: it sets outcome=voicemail
// at any point at or after ringing without altering the terminal status
// path, and the voicemail outcome is sticky: a later completed callback
// finishes the status path but does not overwrite it.
func Apply(c Call, e StatusEvent) (Call, bool) {
	changed := false
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	target, ok := targetStatus(e.Type)
	if ok && !c.Status.IsTerminal() && statusRank(target) > statusRank(c.Status) {
		c.Status = target
		changed = true

		switch target {
		case CallStatusInProgress:
			if c.StartedAt.IsZero() {
				c.StartedAt = at
			}
		case CallStatusCompleted:
			c.EndedAt = at
			c.DurationSeconds = deriveDuration(c, e)
		case CallStatusFailed:
			c.EndedAt = at
			c.DurationSeconds = deriveDuration(c, e)
			if c.Outcome == "" {
				c.Outcome = failureOutcome(e.Type)
			}
		}
	}

	// Voicemail detection applies once the call has at least started ringing,
	// regardless of whether the status itself advanced.
	if e.MachineDetected && c.Outcome != OutcomeVoicemail {
		if statusRank(c.Status) >= statusRank(CallStatusRinging) {
			c.Outcome = OutcomeVoicemail
			changed = true
		}
	}

	if changed {
		c.UpdatedAt = at
	}
	return c, changed
}

func targetStatus(t StatusEventType) (CallStatus, bool) {
	switch t {
	case EventRinging:
		return CallStatusRinging, true
	case EventAnswered:
		return CallStatusInProgress, true
	case EventCompleted:
		return CallStatusCompleted, true
	case EventBusy, EventNoAnswer, EventFailed:
		return CallStatusFailed, true
	default:
		return "", false
	}
}

// failureOutcome maps transport failure reasons 1:1 to terminal outcomes.
// Retries, if any, are a campaign-level policy decision, never taken here.
func failureOutcome(t StatusEventType) CallOutcome {
	switch t {
	case EventBusy:
		return OutcomeBusy
	case EventNoAnswer:
		return OutcomeNoAnswer
	default:
		return OutcomeFailed
	}
}

func deriveDuration(c Call, e StatusEvent) int {
	if e.DurationSeconds > 0 {
		return e.DurationSeconds
	}
	if c.StartedAt.IsZero() || c.EndedAt.IsZero() {
		return 0
	}
	d := int(c.EndedAt.Sub(c.StartedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}
