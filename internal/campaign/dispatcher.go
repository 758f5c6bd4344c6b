package campaign

import (
	"context"
	"log/slog"
	"time"

	"callpilot/internal/calls"
	"callpilot/internal/leads"
	"callpilot/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultMaxCallDuration = 15 * time.Minute

// Dialer places the outbound leg of a call with the telephony provider.
// Defined here so the campaign layer never imports the transport.
type Dialer interface {
	StartCall(ctx context.Context, c calls.Call) error
}

// DispatchRequest is the campaign dispatch API payload.
type DispatchRequest struct {
	LeadIDs                  []string `json:"lead_ids"`
	MaxConcurrentCalls       int      `json:"max_concurrent_calls"`
	DelayBetweenCallsSeconds int      `json:"delay_between_calls_seconds"`
}

func (r DispatchRequest) validate() error {
	if len(r.LeadIDs) == 0 {
		return ErrInvalidArgument
	}
	if r.MaxConcurrentCalls < 1 {
		return ErrInvalidArgument
	}
	if r.DelayBetweenCallsSeconds < 0 {
		return ErrInvalidArgument
	}
	return nil
}

// Dispatcher drives one call attempt per lead, bounding in-flight calls
// with a counting semaphore and spacing consecutive dispatches by the
// configured delay. Attempt completions land on Store.RecordResult in
// whatever order the calls finish.
type Dispatcher struct {
	campaigns Store
	leads     leads.Store
	calls     *calls.Service
	dialer    Dialer
	callerID  string
	log       *slog.Logger

	// Optional cross-replica cap, enforced in redis on top of the
	// in-process semaphore.
	rdb            *redis.Client
	globalCapKey   string
	globalCapLimit int
	globalCapTTL   time.Duration

	// maxCallDuration bounds one attempt: if the terminal callback
	// never arrives (provider drop, lost webhook) the call is failed
	// and the semaphore slot freed instead of pinning the campaign.
	maxCallDuration time.Duration

	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewDispatcher(campaigns Store, leadStore leads.Store, callSvc *calls.Service, dialer Dialer, callerID string, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		campaigns:       campaigns,
		leads:           leadStore,
		calls:           callSvc,
		dialer:          dialer,
		callerID:        callerID,
		log:             log,
		maxCallDuration: defaultMaxCallDuration,
		clock:           time.Now,
	}
}

// SetMaxCallDuration overrides the per-attempt watchdog.
func (d *Dispatcher) SetMaxCallDuration(dur time.Duration) {
	if dur > 0 {
		d.maxCallDuration = dur
	}
}

// SetGlobalCap enables the redis-backed cap shared across replicas.
func (d *Dispatcher) SetGlobalCap(rdb *redis.Client, key string, limit int, ttl time.Duration) {
	d.rdb = rdb
	d.globalCapKey = key
	d.globalCapLimit = limit
	d.globalCapTTL = ttl
}

// Dispatch records the campaign and returns it immediately; the
// dispatch loop runs in the background, detached from the request
// context so an HTTP timeout cannot abort a running campaign.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (Campaign, error) {
	if err := req.validate(); err != nil {
		return Campaign{}, err
	}

	now := d.clock().UTC()
	camp := Campaign{
		CampaignID:               uuid.NewString(),
		Status:                   CampaignStatusRunning,
		TotalLeads:               len(req.LeadIDs),
		MaxConcurrentCalls:       req.MaxConcurrentCalls,
		DelayBetweenCallsSeconds: req.DelayBetweenCallsSeconds,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := d.campaigns.CreateCampaign(ctx, camp); err != nil {
		return Campaign{}, err
	}

	go d.run(context.WithoutCancel(ctx), camp, req.LeadIDs)
	return camp, nil
}

func (d *Dispatcher) Get(ctx context.Context, campaignID string) (Campaign, error) {
	if campaignID == "" {
		return Campaign{}, ErrInvalidArgument
	}
	return d.campaigns.GetCampaign(ctx, campaignID)
}

func (d *Dispatcher) run(ctx context.Context, camp Campaign, leadIDs []string) {
	delay := time.Duration(camp.DelayBetweenCallsSeconds) * time.Second
	sem := make(chan struct{}, camp.MaxConcurrentCalls)

	for i, leadID := range leadIDs {
		sem <- struct{}{}
		go func(leadID string) {
			defer func() { <-sem }()
			d.attempt(ctx, camp.CampaignID, leadID)
		}(leadID)

		if delay > 0 && i < len(leadIDs)-1 {
			time.Sleep(delay)
		}
	}
}

// attempt runs one lead to its terminal state and records exactly one
// result, counting every failure mode (missing lead, dial error,
// panic) as a completed-unsuccessful call so the campaign still
// terminates.
func (d *Dispatcher) attempt(ctx context.Context, campaignID, leadID string) {
	success := d.placeCall(ctx, campaignID, leadID)

	_, completedNow, err := d.campaigns.RecordResult(ctx, campaignID, success, d.clock().UTC())
	if err != nil {
		d.log.Error("campaign result not recorded",
			"campaign_id", campaignID, "lead_id", leadID, "error", err)
		return
	}
	if completedNow {
		d.log.Info("campaign completed", "campaign_id", campaignID)
	}
}

func (d *Dispatcher) placeCall(ctx context.Context, campaignID, leadID string) (success bool) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("call attempt panicked",
				"campaign_id", campaignID, "lead_id", leadID, "panic", r)
			success = false
		}
	}()

	release, ok := d.acquireGlobalCap(ctx)
	if !ok {
		d.log.Warn("global concurrency cap unavailable",
			"campaign_id", campaignID, "lead_id", leadID)
		return false
	}
	defer release()

	lead, err := d.leads.GetLead(ctx, leadID)
	if err != nil {
		d.log.Error("lead lookup failed",
			"campaign_id", campaignID, "lead_id", leadID, "error", err)
		return false
	}

	c, err := d.calls.CreateScheduled(ctx, lead.LeadID, campaignID, d.callerID, lead.Phone)
	if err != nil {
		d.log.Error("call record not created",
			"campaign_id", campaignID, "lead_id", leadID, "error", err)
		return false
	}

	// Watch before dialing so a fast status callback cannot slip past.
	done, cancel, err := d.calls.WatchTerminal(ctx, c.CallID)
	if err != nil {
		return false
	}
	defer cancel()

	if err := d.dialer.StartCall(ctx, c); err != nil {
		d.log.Error("outbound dial failed",
			"campaign_id", campaignID, "call_id", c.CallID, "error", err)
		_ = d.calls.FailIfActive(ctx, c.CallID)
	}

	watchdog := time.NewTimer(d.maxCallDuration)
	defer watchdog.Stop()

	select {
	case final := <-done:
		return calls.IsSuccess(final)
	case <-watchdog.C:
		d.log.Warn("call exceeded max duration",
			"campaign_id", campaignID, "call_id", c.CallID, "max", d.maxCallDuration)
		_ = d.calls.FailIfActive(ctx, c.CallID)
		// FailIfActive either delivered the terminal call to the watcher
		// or raced a real terminal transition that did; drain it so a
		// last-moment completion still counts as what it was.
		select {
		case final := <-done:
			return calls.IsSuccess(final)
		default:
			return false
		}
	case <-ctx.Done():
		_ = d.calls.FailIfActive(context.WithoutCancel(ctx), c.CallID)
		return false
	}
}

// acquireGlobalCap blocks until a redis slot is free. The returned
// release func is a no-op unless a slot was actually taken, so a
// fail-open acquire cannot decrement a slot held by another replica.
func (d *Dispatcher) acquireGlobalCap(ctx context.Context) (release func(), ok bool) {
	noop := func() {}
	if d.rdb == nil || d.globalCapKey == "" {
		return noop, true
	}
	for {
		got, err := utils.AcquireConcurrencyCap(ctx, d.rdb, d.globalCapKey, d.globalCapLimit, d.globalCapTTL)
		if err != nil {
			// Fail open: a redis outage must not stall campaigns, the
			// in-process semaphore still bounds this replica.
			d.log.Warn("global cap check failed", "error", err)
			return noop, true
		}
		if got {
			return func() {
				if err := utils.ReleaseConcurrencyCap(ctx, d.rdb, d.globalCapKey); err != nil {
					d.log.Warn("global cap release failed", "error", err)
				}
			}, true
		}
		select {
		case <-time.After(250 * time.Millisecond):
		case <-ctx.Done():
			return noop, false
		}
	}
}
