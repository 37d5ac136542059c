package model

// Extraction methods, one per tier.
const (
	MethodSiteSelector  = "site_selector"
	MethodSemantic      = "semantic"
	MethodHeuristic     = "heuristic"
	MethodUserConfirmed = "user_confirmed"
	MethodLLM           = "llm"
	MethodNone          = "none"
)

// CandidateScore is one ranked heuristic candidate, kept for diagnostics and
// for seeding the element picker.
type CandidateScore struct {
	Excerpt  string  `json:"excerpt"`
	Selector string  `json:"selector"`
	Score    float64 `json:"score"`
}

// Evidence is the provenance snapshot attached to every extraction result,
// success or failure.
type Evidence struct {
	MatchedText     string           `json:"matched_text,omitempty"`
	NormalizedValue float64          `json:"normalized_value,omitempty"`
	Selector        string           `json:"selector,omitempty"`
	DOMPath         string           `json:"dom_path,omitempty"`
	URL             string           `json:"url,omitempty"`
	Hostname        string           `json:"hostname,omitempty"`
	LabelText       string           `json:"label_text,omitempty"`
	FromOverride    bool             `json:"from_override,omitempty"`
	Warnings        []string         `json:"warnings,omitempty"`
	CandidateScores []CandidateScore `json:"candidate_scores,omitempty"`
}

// PriceBreakdown distinguishes a true total from qualified figures like
// "starting at" or "per night" prices.
type PriceBreakdown struct {
	Total       *Money `json:"total,omitempty"`
	PerNight    *Money `json:"per_night,omitempty"`
	IsFromPrice bool   `json:"is_from_price"`
	IsPerPerson bool   `json:"is_per_person"`
}

// ExtractionResult is the result envelope produced by every tier. It is
// created per attempt and never mutated; failures are expressed as OK=false,
// never as a panic or an error crossing the tier boundary.
type ExtractionResult struct {
	OK          bool              `json:"ok"`
	Value       *PriceBreakdown   `json:"value,omitempty"`
	Confidence  Confidence        `json:"confidence"`
	Method      string            `json:"method"`
	Tier        int               `json:"tier"`
	Evidence    *Evidence         `json:"evidence,omitempty"`
	Errors      []string          `json:"errors,omitempty"`
	LatencyMs   int64             `json:"latency_ms"`
	Diagnostics map[string]string `json:"diagnostics,omitempty"`
}

// UsableTotal returns the total money value when the result is a usable
// success, or nil.
func (r *ExtractionResult) UsableTotal() *Money {
	if r == nil || !r.OK || r.Value == nil {
		return nil
	}
	return r.Value.Total
}
