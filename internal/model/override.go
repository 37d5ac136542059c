package model

import "time"

// FieldTotalPrice is the canonical field name for the booking total, shared by
// override storage and the extraction tiers.
const FieldTotalPrice = "total_price"

// UserOverride is a persisted, user-confirmed resolution path for a field on
// a hostname. Tier 1 replays its selectors ahead of the generic registry and
// bumps the counters so a selector broken by a site redesign can eventually
// be deprioritized.
type UserOverride struct {
	Hostname     string    `json:"hostname"`
	PageType     string    `json:"page_type"`
	Field        string    `json:"field"`
	Selectors    []string  `json:"selectors"`
	LastValue    string    `json:"last_value,omitempty"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
