package leads

import "time"

// Lead is one contact a campaign may dial. Personalization fields
// (name, company, notes) are forwarded to the conversation engine at
// session start; they are never mutated by the call pipeline.
type Lead struct {
	LeadID    string    `json:"lead_id" db:"lead_id"`
	Phone     string    `json:"phone" db:"phone"`
	Name      string    `json:"name" db:"name"`
	Company   string    `json:"company,omitempty" db:"company"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
