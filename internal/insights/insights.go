// Package insights computes secondary statistics written next to the main
// report: order size per category, spending tiers and outliers.
package insights

import (
	"sort"

	"github.com/shopspring/decimal"

	"salesanalytics/internal/aggregate"
	"salesanalytics/internal/model"
)

// Tier names in emission order.
const (
	Premium = "Premium"
	Regular = "Regular"
	Low     = "Low"
)

// Tier thresholds as spending quantiles.
var (
	PremiumQuantile = decimal.RequireFromString("0.9")
	RegularQuantile = decimal.RequireFromString("0.7")
)

// OutlierFence is the IQR multiplier beyond which an order counts as an outlier.
var OutlierFence = decimal.NewFromInt(2)

type Segment struct {
	Name          string
	CustomerCount int
	TotalRevenue  decimal.Decimal
	AvgSpending   decimal.Decimal
}

type Insights struct {
	// AvgOrderSizeByCategory is mean quantity per order, by category name asc.
	AvgOrderSizeByCategory []aggregate.Amount
	// Segments lists non-empty tiers in Premium, Regular, Low order.
	Segments     []Segment
	OutlierCount int
}

func Compute(orders []model.Order, p model.RevenuePolicy) Insights {
	return Insights{
		AvgOrderSizeByCategory: orderSize(orders, p),
		Segments:               segments(orders, p),
		OutlierCount:           outliers(orders, p),
	}
}

func orderSize(orders []model.Order, p model.RevenuePolicy) []aggregate.Amount {
	groups := aggregate.ByCategory(orders, p)
	out := make([]aggregate.Amount, 0, len(groups))
	for name, t := range groups {
		mean := model.Ratio(decimal.NewFromInt(t.Quantity), decimal.NewFromInt(int64(t.Orders)))
		out = append(out, aggregate.Amount{Key: name, Value: mean})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func segments(orders []model.Order, p model.RevenuePolicy) []Segment {
	customers := aggregate.ByCustomer(orders, p)
	if len(customers) == 0 {
		return nil
	}
	spending := make([]decimal.Decimal, 0, len(customers))
	for _, t := range customers {
		spending = append(spending, t.Revenue)
	}
	sortDecimals(spending)
	p90 := Quantile(spending, PremiumQuantile)
	p70 := Quantile(spending, RegularQuantile)

	tiers := map[string]*Segment{}
	for _, v := range spending {
		name := Low
		switch {
		case v.GreaterThanOrEqual(p90):
			name = Premium
		case v.GreaterThanOrEqual(p70):
			name = Regular
		}
		s, ok := tiers[name]
		if !ok {
			s = &Segment{Name: name}
			tiers[name] = s
		}
		s.CustomerCount++
		s.TotalRevenue = s.TotalRevenue.Add(v)
	}
	var out []Segment
	for _, name := range []string{Premium, Regular, Low} {
		s, ok := tiers[name]
		if !ok {
			continue
		}
		s.AvgSpending = model.Ratio(s.TotalRevenue, decimal.NewFromInt(int64(s.CustomerCount)))
		out = append(out, *s)
	}
	return out
}

func outliers(orders []model.Order, p model.RevenuePolicy) int {
	if len(orders) == 0 {
		return 0
	}
	vals := make([]decimal.Decimal, len(orders))
	for i, o := range orders {
		vals[i] = p.Revenue(o)
	}
	sortDecimals(vals)
	q1 := Quantile(vals, decimal.RequireFromString("0.25"))
	q3 := Quantile(vals, decimal.RequireFromString("0.75"))
	iqr := q3.Sub(q1)
	if iqr.IsZero() {
		return 0
	}
	low := q1.Sub(OutlierFence.Mul(iqr))
	high := q3.Add(OutlierFence.Mul(iqr))
	n := 0
	for _, v := range vals {
		if v.LessThan(low) || v.GreaterThan(high) {
			n++
		}
	}
	return n
}

func sortDecimals(v []decimal.Decimal) {
	sort.Slice(v, func(i, j int) bool { return v[i].LessThan(v[j]) })
}

// Quantile returns the q-quantile of sorted values using linear
// interpolation between closest ranks. It returns zero for no values.
func Quantile(sorted []decimal.Decimal, q decimal.Decimal) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	pos := q.Mul(decimal.NewFromInt(int64(len(sorted) - 1)))
	lo := pos.Floor()
	i := int(lo.IntPart())
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos.Sub(lo)
	return sorted[i].Add(sorted[i+1].Sub(sorted[i]).Mul(frac))
}
