package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"salesanalytics/internal/aggregate"
	"salesanalytics/internal/insights"
	"salesanalytics/internal/loader"
	"salesanalytics/internal/model"
	"salesanalytics/internal/rank"
	"salesanalytics/internal/report"
)

func sample() ([]model.Order, report.Report, insights.Insights) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	orders := []model.Order{
		{OrderID: "o1", CustomerID: "C1", Category: "Electronics", Product: "Laptop", Quantity: 2, UnitPrice: decimal.RequireFromString("999.5"), Date: day, Status: model.StatusCompleted},
		{OrderID: "o2", CustomerID: "C2", Category: "Books", Product: "Novel", Quantity: 1, UnitPrice: decimal.NewFromInt(15), Date: day, Status: model.StatusCancelled},
	}
	p := model.DefaultPolicy
	r := report.Assemble(aggregate.Compute(orders, p), rank.TopCustomers(orders, 0, p), rank.TopProducts(orders, 0, p))
	return orders, r, insights.Compute(orders, p)
}

func TestSummary(t *testing.T) {
	_, r, in := sample()
	out := string(Summary(r, in, time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC)))

	for _, want := range []string{
		"SALES ANALYTICS SUMMARY",
		"Generated: 2024-02-01 08:30:00",
		"Total Revenue: $2,014.00",
		"Average Order Value: $1,007.00",
		"Total Orders: 2",
		"Repeat Customer Rate: 0.0%",
		"Top Category: Electronics ($1,999.00)",
		"  completed: 1 (50.0%)",
		"  cancelled: 1 (50.0%)",
		"Outlier Orders: 0",
	} {
		require.Contains(t, out, want)
	}
	require.Less(t, strings.Index(out, "completed:"), strings.Index(out, "cancelled:"))
}

func TestSummary_Empty(t *testing.T) {
	r := report.Assemble(aggregate.Compute(nil, model.DefaultPolicy), nil, nil)
	out := string(Summary(r, insights.Insights{}, time.Unix(0, 0).UTC()))
	require.Contains(t, out, "Top Category: none")
	require.Contains(t, out, "Total Revenue: $0.00")
}

func TestTopListsCSV(t *testing.T) {
	_, r, _ := sample()
	b, err := TopCustomersCSV(r)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"customer_id", "lifetime_value", "order_count", "avg_order_value"}, rows[0])
	require.Equal(t, []string{"C1", "1999.00", "1", "1999.00"}, rows[1])

	b, err = TopProductsCSV(r)
	require.NoError(t, err)
	rows, err = csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Electronics", "Laptop", "1999.00", "2", "1"}, rows[1])
}

func TestCleanCSV(t *testing.T) {
	orders, _, _ := sample()
	b, err := CleanCSV(orders)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(b))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "order_amount", rows[0][len(rows[0])-1])
	require.Equal(t, []string{"o2", "C2", "Books", "Novel", "1", "15.00", "2024-01-05", "cancelled", "15.00"}, rows[2])

	// the clean file loads back into the same orders
	recs, err := loader.NewCSVSource(strings.NewReader(string(b))).Records(context.Background())
	require.NoError(t, err)
	res := loader.Load(recs, loader.DefaultOptions)
	require.Len(t, res.Orders, 2)
	require.True(t, res.Orders[0].UnitPrice.Equal(orders[0].UnitPrice))
}

func TestInsightsJSON(t *testing.T) {
	_, _, in := sample()
	load := loader.Result{Read: 5, Dropped: 3, DropReasons: map[string]int{"invalid_date": 2, "duplicate_order_id": 1}}
	b, err := InsightsJSON(in, load)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(b, &doc))
	require.Equal(t, 5.0, doc["rows_read"])
	require.Equal(t, 3.0, doc["rows_dropped"])
	require.Equal(t, map[string]any{"invalid_date": 2.0, "duplicate_order_id": 1.0}, doc["drop_reasons"])
	require.Less(t, strings.Index(string(b), "duplicate_order_id"), strings.Index(string(b), "invalid_date"))
	segs := doc["customer_segments"].(map[string]any)
	require.Contains(t, segs, "avg_spending")
}

func TestExtras(t *testing.T) {
	orders, r, in := sample()
	arts, err := Extras("run-1", r, in, loader.Result{Orders: orders, Read: 2}, time.Now())
	require.NoError(t, err)
	names := map[string]bool{}
	for _, a := range arts {
		require.Equal(t, "run-1", a.RunID)
		require.NotEmpty(t, a.Data)
		names[a.Name] = true
	}
	for _, n := range []string{SummaryFile, InsightsFile, TopCustomersFile, TopProductsFile, CleanFile} {
		require.True(t, names[n], n)
	}
}
