package campaign

import "time"

type CampaignStatus string

const (
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
)

// Campaign tracks aggregate progress of one dispatch batch.
//
// Counter invariants:
// - completed_calls <= total_leads, monotonically non-decreasing
// - counters are written only through Store.RecordResult
type Campaign struct {
	CampaignID               string         `json:"campaign_id" db:"campaign_id"`
	Status                   CampaignStatus `json:"status" db:"status"`
	TotalLeads               int            `json:"total_leads" db:"total_leads"`
	CompletedCalls           int            `json:"completed_calls" db:"completed_calls"`
	SuccessfulCalls          int            `json:"successful_calls" db:"successful_calls"`
	MaxConcurrentCalls       int            `json:"max_concurrent_calls" db:"max_concurrent_calls"`
	DelayBetweenCallsSeconds int            `json:"delay_between_calls_seconds" db:"delay_between_calls_seconds"`
	CreatedAt                time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt                time.Time      `json:"updated_at" db:"updated_at"`
}
