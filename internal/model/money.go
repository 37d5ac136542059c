package model

import "math"

// AmountEpsilon is the tolerance used when deciding whether two readings
// refer to the same price (~1 cent).
const AmountEpsilon = 0.009

// Money is an immutable amount plus ISO 4217 currency code.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// SameAmount reports whether two monetary values agree within AmountEpsilon
// and share a currency.
func (m Money) SameAmount(other Money) bool {
	if m.Currency != other.Currency {
		return false
	}
	return math.Abs(m.Amount-other.Amount) <= AmountEpsilon
}
