package aggregate

import (
	"github.com/shopspring/decimal"

	"salesanalytics/internal/model"
)

// Tally accumulates one group of orders.
type Tally struct {
	Revenue  decimal.Decimal
	Quantity int64
	Orders   int
}

// Add folds the order into the tally.
func (t *Tally) Add(o model.Order, p model.RevenuePolicy) {
	t.Revenue = t.Revenue.Add(p.Revenue(o))
	t.Quantity += o.Quantity
	t.Orders++
}

// Mean returns revenue per order, zero for an empty tally.
func (t Tally) Mean() decimal.Decimal {
	return model.Ratio(t.Revenue, decimal.NewFromInt(int64(t.Orders)))
}

// GroupBy tallies orders under the key returned by key.
func GroupBy[K comparable](orders []model.Order, p model.RevenuePolicy, key func(model.Order) K) map[K]*Tally {
	out := make(map[K]*Tally)
	for _, o := range orders {
		k := key(o)
		t, ok := out[k]
		if !ok {
			t = &Tally{}
			out[k] = t
		}
		t.Add(o, p)
	}
	return out
}

// ByCustomer groups orders by customer id.
func ByCustomer(orders []model.Order, p model.RevenuePolicy) map[string]*Tally {
	return GroupBy(orders, p, func(o model.Order) string { return o.CustomerID })
}

// ByCategory groups orders by product category.
func ByCategory(orders []model.Order, p model.RevenuePolicy) map[string]*Tally {
	return GroupBy(orders, p, func(o model.Order) string { return o.Category })
}

// ByProduct groups orders by (category, product).
func ByProduct(orders []model.Order, p model.RevenuePolicy) map[model.ProductKey]*Tally {
	return GroupBy(orders, p, model.Order.Key)
}

// ByMonth groups orders by YYYY-MM bucket.
func ByMonth(orders []model.Order, p model.RevenuePolicy) map[string]*Tally {
	return GroupBy(orders, p, model.Order.Month)
}
