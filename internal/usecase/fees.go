package usecase

import "github.com/shopspring/decimal"

// FeePolicy computes the platform commission on a completed transaction.
// Stored amounts stay in integer minor units; decimal is used only for the
// rate arithmetic so percentage fees round deterministically.
type FeePolicy struct {
	rate decimal.Decimal
}

// NewFeePolicy creates a FeePolicy from a percentage rate, e.g. 1.5 for
// 1.5%.
func NewFeePolicy(ratePercent float64) FeePolicy {
	return FeePolicy{rate: decimal.NewFromFloat(ratePercent).Div(decimal.NewFromInt(100))}
}

// Commission returns the fee for amount in minor units, rounded half up.
func (f FeePolicy) Commission(amount int64) int64 {
	if f.rate.IsZero() || amount <= 0 {
		return 0
	}
	return decimal.NewFromInt(amount).Mul(f.rate).Round(0).IntPart()
}
