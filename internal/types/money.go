// README: Common money value object used across modules.
package types

import "math"

// DefaultCurrency is the currency quoted by the fare service.
const DefaultCurrency = "HKD"

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func HKD(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

// RoundAmount rounds a fractional fare half away from zero.
func RoundAmount(v float64) int64 {
	return int64(math.Round(v))
}
