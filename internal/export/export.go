// Package export renders the side artifacts written next to analytics.json.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"salesanalytics/internal/insights"
	"salesanalytics/internal/loader"
	"salesanalytics/internal/model"
	"salesanalytics/internal/report"
	"salesanalytics/internal/sink"
)

// Side artifact names.
const (
	SummaryFile      = "summary_report.txt"
	InsightsFile     = "insights.json"
	TopCustomersFile = "top_customers.csv"
	TopProductsFile  = "top_products.csv"
	CleanFile        = "sales_clean.csv"
)

var rule = strings.Repeat("=", 60)

// Summary renders the plain text run summary.
func Summary(r report.Report, in insights.Insights, generated time.Time) []byte {
	p := message.NewPrinter(language.English)
	var b strings.Builder
	line := func(format string, args ...any) {
		b.WriteString(p.Sprintf(format, args...))
		b.WriteByte('\n')
	}
	line("%s", rule)
	line("SALES ANALYTICS SUMMARY")
	line("Generated: %s", generated.Format("2006-01-02 15:04:05"))
	line("%s", rule)
	line("")
	line("Total Revenue: $%.2f", r.TotalRevenue)
	line("Average Order Value: $%.2f", r.AverageOrderValue)
	line("Total Customers: %d", r.CustomerCount)
	line("Total Orders: %d", r.OrderCount)
	line("Repeat Customer Rate: %.1f%%", r.RepeatCustomerRate)
	line("")
	if r.MostProfitableCategory.Name != "" {
		line("Top Category: %s ($%.2f)", r.MostProfitableCategory.Name, r.MostProfitableCategory.Revenue)
	} else {
		line("Top Category: none")
	}
	line("")
	line("Order Status:")
	for _, c := range r.OrderStatusDistribution.Count {
		pct, _ := r.OrderStatusDistribution.Percentage.Get(c.Key)
		line("  %s: %d (%.1f%%)", c.Key, c.Value, pct)
	}
	line("")
	line("Outlier Orders: %d", in.OutlierCount)
	return []byte(b.String())
}

func writeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}
	return buf.Bytes(), nil
}

func money(f float64) string { return strconv.FormatFloat(f, 'f', model.Scale, 64) }

// TopCustomersCSV renders the customer ranking as CSV.
func TopCustomersCSV(r report.Report) ([]byte, error) {
	rows := [][]string{{"customer_id", "lifetime_value", "order_count", "avg_order_value"}}
	for _, c := range r.TopCustomers {
		rows = append(rows, []string{c.CustomerID, money(c.LifetimeValue), strconv.Itoa(c.OrderCount), money(c.AvgOrderValue)})
	}
	return writeCSV(rows)
}

// TopProductsCSV renders the product ranking as CSV.
func TopProductsCSV(r report.Report) ([]byte, error) {
	rows := [][]string{{"product_category", "product_name", "revenue", "quantity", "order_count"}}
	for _, p := range r.TopProducts {
		rows = append(rows, []string{p.Category, p.Name, money(p.Revenue), strconv.FormatInt(p.Quantity, 10), strconv.Itoa(p.OrderCount)})
	}
	return writeCSV(rows)
}

// CleanCSV renders the validated orders in canonical column order with the
// derived order_amount column.
func CleanCSV(orders []model.Order) ([]byte, error) {
	rows := make([][]string, 0, len(orders)+1)
	rows = append(rows, append(append([]string(nil), loader.Columns...), "order_amount"))
	for _, o := range orders {
		rows = append(rows, []string{
			o.OrderID,
			o.CustomerID,
			o.Category,
			o.Product,
			strconv.FormatInt(o.Quantity, 10),
			o.UnitPrice.StringFixed(model.Scale),
			o.Date.Format("2006-01-02"),
			string(o.Status),
			o.Revenue().StringFixed(model.Scale),
		})
	}
	return writeCSV(rows)
}

type segmentsDoc struct {
	CustomerCount report.Ordered[int]     `json:"customer_count"`
	TotalRevenue  report.Ordered[float64] `json:"total_revenue"`
	AvgSpending   report.Ordered[float64] `json:"avg_spending"`
}

type insightsDoc struct {
	AvgOrderSizeByCategory report.Ordered[float64] `json:"avg_order_size_by_category"`
	CustomerSegments       segmentsDoc             `json:"customer_segments"`
	OutlierCount           int                     `json:"outlier_count"`
	RowsRead               int                     `json:"rows_read"`
	RowsDropped            int                     `json:"rows_dropped"`
	DropReasons            report.Ordered[int]     `json:"drop_reasons"`
}

// InsightsJSON renders the secondary statistics together with the load
// counters.
func InsightsJSON(in insights.Insights, load loader.Result) ([]byte, error) {
	doc := insightsDoc{
		AvgOrderSizeByCategory: report.Ordered[float64]{},
		CustomerSegments: segmentsDoc{
			CustomerCount: report.Ordered[int]{},
			TotalRevenue:  report.Ordered[float64]{},
			AvgSpending:   report.Ordered[float64]{},
		},
		OutlierCount: in.OutlierCount,
		RowsRead:     load.Read,
		RowsDropped:  load.Dropped,
		DropReasons:  report.Ordered[int]{},
	}
	for _, a := range in.AvgOrderSizeByCategory {
		doc.AvgOrderSizeByCategory = append(doc.AvgOrderSizeByCategory, report.Pair[float64]{Key: a.Key, Value: model.Float(a.Value)})
	}
	for _, s := range in.Segments {
		doc.CustomerSegments.CustomerCount = append(doc.CustomerSegments.CustomerCount, report.Pair[int]{Key: s.Name, Value: s.CustomerCount})
		doc.CustomerSegments.TotalRevenue = append(doc.CustomerSegments.TotalRevenue, report.Pair[float64]{Key: s.Name, Value: model.Float(s.TotalRevenue)})
		doc.CustomerSegments.AvgSpending = append(doc.CustomerSegments.AvgSpending, report.Pair[float64]{Key: s.Name, Value: model.Float(s.AvgSpending)})
	}
	reasons := make([]string, 0, len(load.DropReasons))
	for k := range load.DropReasons {
		reasons = append(reasons, k)
	}
	sort.Strings(reasons)
	for _, k := range reasons {
		doc.DropReasons = append(doc.DropReasons, report.Pair[int]{Key: k, Value: load.DropReasons[k]})
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode insights: %w", err)
	}
	return append(b, '\n'), nil
}

// Extras builds every side artifact of a run.
func Extras(runID string, r report.Report, in insights.Insights, load loader.Result, generated time.Time) ([]sink.Artifact, error) {
	customers, err := TopCustomersCSV(r)
	if err != nil {
		return nil, err
	}
	products, err := TopProductsCSV(r)
	if err != nil {
		return nil, err
	}
	clean, err := CleanCSV(load.Orders)
	if err != nil {
		return nil, err
	}
	ins, err := InsightsJSON(in, load)
	if err != nil {
		return nil, err
	}
	return []sink.Artifact{
		{Name: SummaryFile, RunID: runID, ContentType: "text/plain; charset=utf-8", Data: Summary(r, in, generated)},
		{Name: InsightsFile, RunID: runID, ContentType: "application/json", Data: ins},
		{Name: TopCustomersFile, RunID: runID, ContentType: "text/csv", Data: customers},
		{Name: TopProductsFile, RunID: runID, ContentType: "text/csv", Data: products},
		{Name: CleanFile, RunID: runID, ContentType: "text/csv", Data: clean},
	}, nil
}
