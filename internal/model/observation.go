package model

import "time"

// StabilityObservation is one confirmed price reading during a page session.
type StabilityObservation struct {
	Amount     float64    `json:"amount"`
	Currency   string     `json:"currency"`
	Timestamp  time.Time  `json:"timestamp"`
	Confidence Confidence `json:"confidence"`
}

// StabilityInfo is the derived view over a session's observations, exposed so
// confidence heuristics elsewhere can promote long-stable values or demote
// just-changed ones.
type StabilityInfo struct {
	StableReadCount    int       `json:"stable_read_count"`
	StableDurationMs   int64     `json:"stable_duration_ms"`
	PriceWasUnstable   bool      `json:"price_was_unstable"`
	FirstObservationAt time.Time `json:"first_observation_at,omitzero"`
	LastObservationAt  time.Time `json:"last_observation_at,omitzero"`
}
