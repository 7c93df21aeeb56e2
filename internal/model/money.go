package model

import "github.com/shopspring/decimal"

// Scale is the number of decimal places emitted for money and percentages.
const Scale = 2

var hundred = decimal.NewFromInt(100)

// RevenuePolicy decides which orders contribute revenue. Order counts are
// never affected by the policy.
type RevenuePolicy struct {
	IncludeCancelled bool
}

// DefaultPolicy counts revenue of every order regardless of status.
var DefaultPolicy = RevenuePolicy{IncludeCancelled: true}

// Revenue returns the revenue o contributes under p.
func (p RevenuePolicy) Revenue(o Order) decimal.Decimal {
	if !p.IncludeCancelled && o.Status == StatusCancelled {
		return decimal.Zero
	}
	return o.Revenue()
}

// Float rounds d to Scale places and converts it for emission.
func Float(d decimal.Decimal) float64 {
	f, _ := d.Round(Scale).Float64()
	return f
}

// Ratio returns num/den, or zero when den is zero.
func Ratio(num, den decimal.Decimal) decimal.Decimal {
	if den.IsZero() {
		return decimal.Zero
	}
	return num.Div(den)
}

// Percent returns 100 × num/den, or zero when den is zero.
func Percent(num, den decimal.Decimal) decimal.Decimal {
	return Ratio(num, den).Mul(hundred)
}
