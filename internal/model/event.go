package model

import "time"

// ExtractionEvent is one durable telemetry row in the per-hostname event log.
type ExtractionEvent struct {
	ID         string     `json:"id,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
	Hostname   string     `json:"hostname"`
	Success    bool       `json:"success"`
	Confidence Confidence `json:"confidence"`
	Method     string     `json:"method"`
	Tier       int        `json:"tier"`
	LatencyMs  int64      `json:"latency_ms"`
	Errors     []string   `json:"errors,omitempty"`
}

// ExtractionHealth is the per-hostname aggregate recomputed from the retained
// event window on every read. It is never stored.
type ExtractionHealth struct {
	Hostname        string     `json:"hostname"`
	Attempts        int        `json:"attempts"`
	HighSuccesses   int        `json:"high_successes"`
	MediumSuccesses int        `json:"medium_successes"`
	LowSuccesses    int        `json:"low_successes"`
	Failures        int        `json:"failures"`
	SuccessRate     float64    `json:"success_rate"`
	IsDegraded      bool       `json:"is_degraded"`
	LastSuccessAt   *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt   *time.Time `json:"last_failure_at,omitempty"`
}
