package relay

import (
	"context"
	"log/slog"
	"time"

	"callpilot/internal/calls"
	"callpilot/internal/conversation"
	"callpilot/internal/leads"
)

// Manager owns the session registry and builds one Session per live
// call, wiring the engine connection and the synthesis path.
type Manager struct {
	engine        conversation.Engine
	synth         conversation.Synthesizer
	calls         *calls.Service
	leads         leads.Store
	registry      *Registry
	log           *slog.Logger
	frameDuration time.Duration
	newSplitter   func() SentenceSplitter
}

func NewManager(engine conversation.Engine, synth conversation.Synthesizer, callSvc *calls.Service, leadStore leads.Store, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		engine:        engine,
		synth:         synth,
		calls:         callSvc,
		leads:         leadStore,
		registry:      NewRegistry(),
		log:           log,
		frameDuration: 20 * time.Millisecond,
		newSplitter:   func() SentenceSplitter { return NewPunctuationSplitter() },
	}
}

// SetSplitter swaps the sentence boundary policy for new sessions.
func (m *Manager) SetSplitter(factory func() SentenceSplitter) {
	if factory != nil {
		m.newSplitter = factory
	}
}

func (m *Manager) Registry() *Registry { return m.registry }

// StartSession opens the engine connection for a call and registers
// the bridge. The session begins in CONNECTING and activates on the
// transport start event.
func (m *Manager) StartSession(ctx context.Context, callID string, out Outbound) (*Session, error) {
	c, err := m.calls.Get(ctx, callID)
	if err != nil {
		return nil, err
	}

	var leadCtx conversation.LeadContext
	if lead, err := m.leads.GetLead(ctx, c.LeadID); err == nil {
		leadCtx = conversation.LeadContext{
			Name:    lead.Name,
			Company: lead.Company,
			Phone:   lead.Phone,
			Notes:   lead.Notes,
		}
	} else {
		m.log.Warn("lead context unavailable", "call_id", callID, "error", err)
	}

	es, err := m.engine.Start(ctx, callID, leadCtx)
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		callID:        callID,
		engine:        es,
		synth:         m.synth,
		calls:         m.calls,
		out:           out,
		splitter:      m.newSplitter(),
		registry:      m.registry,
		log:           m.log.With("call_id", callID),
		frameDuration: m.frameDuration,
		state:         StateConnecting,
		ctx:           sessCtx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
	if err := m.registry.Register(callID, s); err != nil {
		cancel()
		_ = es.Close()
		return nil, err
	}

	go s.engineLoop()
	return s, nil
}
