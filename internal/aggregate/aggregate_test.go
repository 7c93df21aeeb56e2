package aggregate

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"salesanalytics/internal/model"
)

func order(id, customer, category string, qty int64, price string, date string, status model.Status) model.Order {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		panic(err)
	}
	return model.Order{
		OrderID:    id,
		CustomerID: customer,
		Category:   category,
		Product:    category + "-item",
		Quantity:   qty,
		UnitPrice:  decimal.RequireFromString(price),
		Date:       d,
		Status:     status,
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func TestCompute_SingleOrder(t *testing.T) {
	m := Compute([]model.Order{order("o1", "C1", "Books", 2, "10", "2024-01-05", model.StatusCompleted)}, model.DefaultPolicy)

	requireDec(t, "20", m.TotalRevenue)
	require.Equal(t, 1, m.OrderCount)
	require.Equal(t, 1, m.CustomerCount)
	requireDec(t, "20", m.AverageOrderValue)
	requireDec(t, "0", m.RepeatCustomerRate)
	require.Len(t, m.RevenueByCategory, 1)
	require.Equal(t, "Books", m.MostProfitable.Key)
	requireDec(t, "20", m.MostProfitable.Value)
	require.Equal(t, []Amount{{Key: "2024-01", Value: dec("20")}}, m.MonthlyRevenue)
	require.Len(t, m.MonthlyGrowth, 1)
	requireDec(t, "0", m.MonthlyGrowth[0].Value)
	require.Equal(t, []Count{{Key: "completed", Value: 1}}, m.StatusCount)
	requireDec(t, "100", m.StatusPercentage[0].Value)
}

func TestCompute_Empty(t *testing.T) {
	m := Compute(nil, model.DefaultPolicy)

	require.Zero(t, m.OrderCount)
	require.Zero(t, m.CustomerCount)
	require.True(t, m.TotalRevenue.IsZero())
	require.True(t, m.AverageOrderValue.IsZero())
	require.True(t, m.RepeatCustomerRate.IsZero())
	require.Empty(t, m.RevenueByCategory)
	require.Empty(t, m.MonthlyRevenue)
	require.Empty(t, m.MonthlyGrowth)
	require.Empty(t, m.StatusCount)
	require.Empty(t, m.StatusPercentage)
	require.Equal(t, "", m.MostProfitable.Key)
}

func TestCompute_RepeatCustomerAcrossMonths(t *testing.T) {
	m := Compute([]model.Order{
		order("o2", "C1", "Books", 1, "30", "2024-02-10", model.StatusPending),
		order("o1", "C1", "Books", 2, "10", "2024-01-05", model.StatusCompleted),
	}, model.DefaultPolicy)

	require.Equal(t, 1, m.CustomerCount)
	requireDec(t, "100", m.RepeatCustomerRate)
	require.Len(t, m.MonthlyRevenue, 2)
	require.Equal(t, "2024-01", m.MonthlyRevenue[0].Key)
	require.Equal(t, "2024-02", m.MonthlyRevenue[1].Key)
	requireDec(t, "0", m.MonthlyGrowth[0].Value)
	requireDec(t, "50", m.MonthlyGrowth[1].Value)
}

func TestCompute_CategoryOrderAndTieBreak(t *testing.T) {
	m := Compute([]model.Order{
		order("o1", "C1", "Sports", 1, "50", "2024-01-01", model.StatusCompleted),
		order("o2", "C2", "Books", 1, "50", "2024-01-01", model.StatusCompleted),
		order("o3", "C3", "Home", 1, "10", "2024-01-01", model.StatusCompleted),
	}, model.DefaultPolicy)

	keys := make([]string, 0, len(m.RevenueByCategory))
	for _, a := range m.RevenueByCategory {
		keys = append(keys, a.Key)
	}
	require.Equal(t, []string{"Books", "Sports", "Home"}, keys)
	require.Equal(t, "Books", m.MostProfitable.Key)
}

func TestCompute_GrowthAfterZeroMonth(t *testing.T) {
	m := Compute([]model.Order{
		order("o1", "C1", "Books", 1, "0", "2024-01-01", model.StatusCompleted),
		order("o2", "C1", "Books", 1, "40", "2024-03-01", model.StatusCompleted),
		order("o3", "C1", "Books", 1, "10", "2024-04-01", model.StatusCompleted),
	}, model.DefaultPolicy)

	require.Len(t, m.MonthlyGrowth, 3)
	requireDec(t, "0", m.MonthlyGrowth[1].Value)
	requireDec(t, "-75", m.MonthlyGrowth[2].Value)
}

func TestCompute_StatusOrderAndPolicy(t *testing.T) {
	orders := []model.Order{
		order("o1", "C1", "Books", 1, "10", "2024-01-01", model.StatusCancelled),
		order("o2", "C2", "Books", 1, "30", "2024-01-01", model.StatusCompleted),
		order("o3", "C3", "Toys", 1, "5", "2024-01-01", model.StatusCancelled),
	}

	m := Compute(orders, model.DefaultPolicy)
	require.Equal(t, []Count{{Key: "completed", Value: 1}, {Key: "cancelled", Value: 2}}, m.StatusCount)
	requireDec(t, "45", m.TotalRevenue)

	strict := Compute(orders, model.RevenuePolicy{IncludeCancelled: false})
	requireDec(t, "30", strict.TotalRevenue)
	require.Equal(t, 3, strict.OrderCount)
	requireDec(t, "10", strict.AverageOrderValue)
	require.Equal(t, "Books", strict.MostProfitable.Key)
	require.Len(t, strict.RevenueByCategory, 2)
	requireDec(t, "0", strict.RevenueByCategory[1].Value)
}

func TestTally_Mean(t *testing.T) {
	var empty Tally
	require.True(t, empty.Mean().IsZero())

	groups := ByProduct([]model.Order{
		order("o1", "C1", "Books", 2, "10", "2024-01-01", model.StatusCompleted),
		order("o2", "C2", "Books", 1, "4", "2024-01-01", model.StatusCompleted),
	}, model.DefaultPolicy)
	tally := groups[model.ProductKey{Category: "Books", Name: "Books-item"}]
	require.NotNil(t, tally)
	require.Equal(t, int64(3), tally.Quantity)
	require.Equal(t, 2, tally.Orders)
	requireDec(t, "12", tally.Mean())
}
