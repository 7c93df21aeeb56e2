// Package rank derives the bounded top-N views of a batch.
package rank

import (
	"sort"

	"github.com/shopspring/decimal"

	"salesanalytics/internal/aggregate"
	"salesanalytics/internal/model"
)

// DefaultLimit bounds both rankings when no limit is configured.
const DefaultLimit = 20

// CustomerRank is one entry of the customer lifetime value ranking.
type CustomerRank struct {
	CustomerID    string
	LifetimeValue decimal.Decimal
	OrderCount    int
	AvgOrderValue decimal.Decimal
}

// ProductRank is one entry of the product revenue ranking.
type ProductRank struct {
	Category   string
	Name       string
	Revenue    decimal.Decimal
	Quantity   int64
	OrderCount int
}

func limit(n, total int) int {
	if n <= 0 {
		n = DefaultLimit
	}
	if n > total {
		return total
	}
	return n
}

// TopCustomers returns up to n customers by lifetime value desc, ties by
// customer id asc.
func TopCustomers(orders []model.Order, n int, p model.RevenuePolicy) []CustomerRank {
	groups := aggregate.ByCustomer(orders, p)
	out := make([]CustomerRank, 0, len(groups))
	for id, t := range groups {
		out = append(out, CustomerRank{
			CustomerID:    id,
			LifetimeValue: t.Revenue,
			OrderCount:    t.Orders,
			AvgOrderValue: t.Mean(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].LifetimeValue.Cmp(out[j].LifetimeValue); c != 0 {
			return c > 0
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out[:limit(n, len(out))]
}

// TopProducts returns up to n products by revenue desc, ties by product name
// then category asc.
func TopProducts(orders []model.Order, n int, p model.RevenuePolicy) []ProductRank {
	groups := aggregate.ByProduct(orders, p)
	out := make([]ProductRank, 0, len(groups))
	for k, t := range groups {
		out = append(out, ProductRank{
			Category:   k.Category,
			Name:       k.Name,
			Revenue:    t.Revenue,
			Quantity:   t.Quantity,
			OrderCount: t.Orders,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Category < b.Category
	})
	return out[:limit(n, len(out))]
}
