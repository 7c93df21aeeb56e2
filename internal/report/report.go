// Package report assembles the analytics artifact and guards its schema.
package report

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"salesanalytics/internal/aggregate"
	"salesanalytics/internal/model"
	"salesanalytics/internal/rank"
)

// Category is the most profitable category.
type Category struct {
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
}

// StatusDistribution holds order counts and shares per status.
type StatusDistribution struct {
	Count      Ordered[int]     `json:"count"`
	Percentage Ordered[float64] `json:"percentage"`
}

type Customer struct {
	CustomerID    string  `json:"customer_id"`
	LifetimeValue float64 `json:"lifetime_value"`
	OrderCount    int     `json:"order_count"`
	AvgOrderValue float64 `json:"avg_order_value"`
}

type Product struct {
	Category   string  `json:"product_category"`
	Name       string  `json:"product_name"`
	Revenue    float64 `json:"revenue"`
	Quantity   int64   `json:"quantity"`
	OrderCount int     `json:"order_count"`
}

// Report is the analytics artifact of one run. Field order is the emission
// order.
type Report struct {
	TotalRevenue            float64            `json:"total_revenue"`
	AverageOrderValue       float64            `json:"average_order_value"`
	CustomerCount           int                `json:"customer_count"`
	OrderCount              int                `json:"order_count"`
	RepeatCustomerRate      float64            `json:"repeat_customer_rate"`
	MostProfitableCategory  Category           `json:"most_profitable_category"`
	RevenueByCategory       Ordered[float64]   `json:"revenue_by_category"`
	TopCustomers            []Customer         `json:"top_customers"`
	MonthlyRevenue          Ordered[float64]   `json:"monthly_revenue"`
	MonthlyGrowth           Ordered[float64]   `json:"monthly_growth"`
	OrderStatusDistribution StatusDistribution `json:"order_status_distribution"`
	TopProducts             []Product          `json:"top_products"`
}

func amounts(in []aggregate.Amount) Ordered[float64] {
	out := make(Ordered[float64], 0, len(in))
	for _, a := range in {
		out = append(out, Pair[float64]{Key: a.Key, Value: model.Float(a.Value)})
	}
	return out
}

func counts(in []aggregate.Count) Ordered[int] {
	out := make(Ordered[int], 0, len(in))
	for _, c := range in {
		out = append(out, Pair[int]{Key: c.Key, Value: c.Value})
	}
	return out
}

// Assemble composes the aggregator and ranker outputs into a Report. Money
// and percentages are rounded to model.Scale places.
func Assemble(m aggregate.Metrics, customers []rank.CustomerRank, products []rank.ProductRank) Report {
	r := Report{
		TotalRevenue:       model.Float(m.TotalRevenue),
		AverageOrderValue:  model.Float(m.AverageOrderValue),
		CustomerCount:      m.CustomerCount,
		OrderCount:         m.OrderCount,
		RepeatCustomerRate: model.Float(m.RepeatCustomerRate),
		MostProfitableCategory: Category{
			Name:    m.MostProfitable.Key,
			Revenue: model.Float(m.MostProfitable.Value),
		},
		RevenueByCategory: amounts(m.RevenueByCategory),
		TopCustomers:      make([]Customer, 0, len(customers)),
		MonthlyRevenue:    amounts(m.MonthlyRevenue),
		MonthlyGrowth:     amounts(m.MonthlyGrowth),
		OrderStatusDistribution: StatusDistribution{
			Count:      counts(m.StatusCount),
			Percentage: amounts(m.StatusPercentage),
		},
		TopProducts: make([]Product, 0, len(products)),
	}
	for _, c := range customers {
		r.TopCustomers = append(r.TopCustomers, Customer{
			CustomerID:    c.CustomerID,
			LifetimeValue: model.Float(c.LifetimeValue),
			OrderCount:    c.OrderCount,
			AvgOrderValue: model.Float(c.AvgOrderValue),
		})
	}
	for _, p := range products {
		r.TopProducts = append(r.TopProducts, Product{
			Category:   p.Category,
			Name:       p.Name,
			Revenue:    model.Float(p.Revenue),
			Quantity:   p.Quantity,
			OrderCount: p.OrderCount,
		})
	}
	return r
}

// Encode renders r as indented JSON with a trailing newline.
func Encode(r Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode parses an encoded artifact.
func Decode(data []byte) (Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

// Digest returns "sha256:<hex>" of the canonical (RFC 8785) form of data, so
// formatting differences do not change it.
func Digest(data []byte) (string, error) {
	canon, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	sum := sha256.Sum256(canon)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}
