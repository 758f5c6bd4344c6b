package telephony

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"callpilot/internal/calls"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const statusDedupeTTL = 24 * time.Hour

// StatusForm captures the subset of the provider's status callback
// fields we care about; sent application/x-www-form-urlencoded.
type StatusForm struct {
	CallSid      string
	CallStatus   string
	AnsweredBy   string
	CallDuration string
}

func ParseStatusCallback(r *http.Request) (StatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusForm{}, err
	}
	return StatusForm{
		CallSid:      r.PostFormValue("CallSid"),
		CallStatus:   strings.ToLower(strings.TrimSpace(r.PostFormValue("CallStatus"))),
		AnsweredBy:   strings.ToLower(strings.TrimSpace(r.PostFormValue("AnsweredBy"))),
		CallDuration: r.PostFormValue("CallDuration"),
	}, nil
}

// Deduper suppresses exact repeats of a (call, status) callback pair.
// Pairs are marked only after the transition was applied, so a provider
// retry can still land an event we failed to persist.
type Deduper interface {
	Seen(ctx context.Context, callID, status string) bool
	Mark(ctx context.Context, callID, status string)
}

// StatusWebhook applies provider status callbacks to the call state
// machine. Callbacks can arrive out of order and more than once; the
// transition function absorbs both, redis dedupe just saves the work.
type StatusWebhook struct {
	calls  *calls.Service
	dedupe Deduper
	log    *slog.Logger
}

func NewStatusWebhook(callSvc *calls.Service, rdb *redis.Client, log *slog.Logger) *StatusWebhook {
	if log == nil {
		log = slog.Default()
	}
	h := &StatusWebhook{calls: callSvc, log: log}
	if rdb != nil {
		h.dedupe = &redisDeduper{rdb: rdb, log: log}
	}
	return h
}

func (h *StatusWebhook) Handle(c *gin.Context) {
	callID := c.Query("call_id")
	if callID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_id is required"})
		return
	}

	form, err := ParseStatusCallback(c.Request)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed callback"})
		return
	}

	ev, ok := statusEvent(form)
	if !ok {
		// Statuses we do not track (initiated, queued) are acknowledged
		// so the provider stops retrying.
		c.Status(http.StatusNoContent)
		return
	}

	if h.dedupe != nil && h.dedupe.Seen(c.Request.Context(), callID, form.CallStatus) {
		c.Status(http.StatusNoContent)
		return
	}

	if _, _, err := h.calls.HandleStatusEvent(c.Request.Context(), callID, ev); err != nil {
		h.log.Error("status callback not applied",
			"call_id", callID, "status", form.CallStatus, "error", err)
		if errors.Is(err, calls.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown call"})
			return
		}
		// Non-2xx so the provider retries; the pair was not marked seen.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "callback not applied"})
		return
	}
	if h.dedupe != nil {
		h.dedupe.Mark(c.Request.Context(), callID, form.CallStatus)
	}
	c.Status(http.StatusNoContent)
}

// redisDeduper keeps applied (call, status) pairs in redis. Without
// redis every callback goes through, which is safe, just more work.
type redisDeduper struct {
	rdb *redis.Client
	log *slog.Logger
}

func dedupeKey(callID, status string) string {
	return "callpilot:status:" + callID + ":" + status
}

func (d *redisDeduper) Seen(ctx context.Context, callID, status string) bool {
	n, err := d.rdb.Exists(ctx, dedupeKey(callID, status)).Result()
	if err != nil {
		d.log.Warn("status dedupe check failed", "error", err)
		return false
	}
	return n > 0
}

func (d *redisDeduper) Mark(ctx context.Context, callID, status string) {
	if err := d.rdb.SetNX(ctx, dedupeKey(callID, status), 1, statusDedupeTTL).Err(); err != nil {
		d.log.Warn("status dedupe mark failed", "error", err)
	}
}

func statusEvent(form StatusForm) (calls.StatusEvent, bool) {
	ev := calls.StatusEvent{
		MachineDetected: strings.HasPrefix(form.AnsweredBy, "machine"),
		At:              time.Now().UTC(),
	}
	if form.CallDuration != "" {
		if secs, err := strconv.Atoi(form.CallDuration); err == nil && secs > 0 {
			ev.DurationSeconds = secs
		}
	}

	switch form.CallStatus {
	case "ringing":
		ev.Type = calls.EventRinging
	case "in-progress":
		ev.Type = calls.EventAnswered
	case "completed":
		ev.Type = calls.EventCompleted
	case "busy":
		ev.Type = calls.EventBusy
	case "no-answer":
		ev.Type = calls.EventNoAnswer
	case "failed", "canceled":
		ev.Type = calls.EventFailed
	default:
		return calls.StatusEvent{}, false
	}
	return ev, true
}
