package model

// Confidence is the 4-level ordinal trust label attached to extraction results.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
	ConfidenceNone   Confidence = "none"
)

// Rank returns the ordinal position used everywhere confidences are compared.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether c is equal to or stronger than other.
func (c Confidence) AtLeast(other Confidence) bool {
	return c.Rank() >= other.Rank()
}

// Downgrade returns the confidence one level weaker than c.
func (c Confidence) Downgrade() Confidence {
	switch c {
	case ConfidenceHigh:
		return ConfidenceMedium
	case ConfidenceMedium:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// ConfidenceFromScore maps a 0-100 parser score onto the ordinal scale.
func ConfidenceFromScore(score float64) Confidence {
	switch {
	case score >= 80:
		return ConfidenceHigh
	case score >= 60:
		return ConfidenceMedium
	case score >= 40:
		return ConfidenceLow
	default:
		return ConfidenceNone
	}
}

// BetterResult is the single total order used to merge tier results:
// confidence rank first, lower latency as tiebreaker. A nil result loses
// to any non-nil one.
func BetterResult(a, b *ExtractionResult) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	if a.Confidence.Rank() != b.Confidence.Rank() {
		return a.Confidence.Rank() > b.Confidence.Rank()
	}
	return a.LatencyMs < b.LatencyMs
}
