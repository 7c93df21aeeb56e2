package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"salesanalytics/internal/model"
)

// Amount is a keyed money or percentage value.
type Amount struct {
	Key   string
	Value decimal.Decimal
}

// Count is a keyed integer value.
type Count struct {
	Key   string
	Value int
}

// Metrics holds every scalar and grouped aggregate of one batch. Values are
// exact; rounding happens when the report is assembled.
type Metrics struct {
	TotalRevenue       decimal.Decimal
	OrderCount         int
	CustomerCount      int
	AverageOrderValue  decimal.Decimal
	RepeatCustomerRate decimal.Decimal

	// RevenueByCategory is ordered by revenue desc, then name asc.
	RevenueByCategory []Amount
	// MostProfitable has an empty key when there are no orders.
	MostProfitable Amount

	// MonthlyRevenue and MonthlyGrowth are in chronological order.
	MonthlyRevenue []Amount
	MonthlyGrowth  []Amount

	// StatusCount and StatusPercentage follow model.Statuses and omit
	// statuses without orders.
	StatusCount      []Count
	StatusPercentage []Amount
}

// Compute derives all metrics from the validated orders.
func Compute(orders []model.Order, p model.RevenuePolicy) Metrics {
	var m Metrics
	m.OrderCount = len(orders)
	for _, o := range orders {
		m.TotalRevenue = m.TotalRevenue.Add(p.Revenue(o))
	}
	orderCount := decimal.NewFromInt(int64(m.OrderCount))
	m.AverageOrderValue = model.Ratio(m.TotalRevenue, orderCount)

	customers := ByCustomer(orders, p)
	m.CustomerCount = len(customers)
	repeat := 0
	for _, c := range customers {
		if c.Orders >= 2 {
			repeat++
		}
	}
	m.RepeatCustomerRate = model.Percent(decimal.NewFromInt(int64(repeat)), decimal.NewFromInt(int64(m.CustomerCount)))

	m.RevenueByCategory = categoryRevenue(orders, p)
	if len(m.RevenueByCategory) > 0 {
		m.MostProfitable = m.RevenueByCategory[0]
	}

	m.MonthlyRevenue, m.MonthlyGrowth = monthly(orders, p)
	m.StatusCount, m.StatusPercentage = statusDistribution(orders, orderCount)
	return m
}

func categoryRevenue(orders []model.Order, p model.RevenuePolicy) []Amount {
	groups := ByCategory(orders, p)
	out := make([]Amount, 0, len(groups))
	for name, t := range groups {
		out = append(out, Amount{Key: name, Value: t.Revenue})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Value.Cmp(out[j].Value); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// monthly returns revenue per populated month and the growth of each month
// against the previous populated one. The first month, and any month after
// a zero-revenue month, has zero growth.
func monthly(orders []model.Order, p model.RevenuePolicy) (revenue, growth []Amount) {
	groups := ByMonth(orders, p)
	months := make([]string, 0, len(groups))
	for k := range groups {
		months = append(months, k)
	}
	sort.Strings(months)

	revenue = make([]Amount, 0, len(months))
	growth = make([]Amount, 0, len(months))
	prev := decimal.Zero
	for i, month := range months {
		cur := groups[month].Revenue
		g := decimal.Zero
		if i > 0 {
			g = model.Percent(cur.Sub(prev), prev)
		}
		revenue = append(revenue, Amount{Key: month, Value: cur})
		growth = append(growth, Amount{Key: month, Value: g})
		prev = cur
	}
	return revenue, growth
}

func statusDistribution(orders []model.Order, total decimal.Decimal) ([]Count, []Amount) {
	counts := make(map[model.Status]int, len(model.Statuses))
	for _, o := range orders {
		counts[o.Status]++
	}
	var cnt []Count
	var pct []Amount
	for _, s := range model.Statuses {
		n, ok := counts[s]
		if !ok {
			continue
		}
		cnt = append(cnt, Count{Key: string(s), Value: n})
		pct = append(pct, Amount{Key: string(s), Value: model.Percent(decimal.NewFromInt(int64(n)), total)})
	}
	return cnt, pct
}
