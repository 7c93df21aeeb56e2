package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every valid status in emission order.
var Statuses = []Status{StatusCompleted, StatusPending, StatusCancelled}

// Valid reports whether s is one of the enumerated statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusPending, StatusCancelled:
		return true
	}
	return false
}

// RawRecord is an input row as read from any source, before validation.
type RawRecord struct {
	OrderID         string `json:"order_id"`
	CustomerID      string `json:"customer_id"`
	ProductCategory string `json:"product_category"`
	ProductName     string `json:"product_name"`
	Quantity        string `json:"quantity"`
	UnitPrice       string `json:"unit_price"`
	OrderDate       string `json:"order_date"`
	Status          string `json:"status"`
}

// Order is a validated order row. Values are immutable once loaded.
type Order struct {
	OrderID    string
	CustomerID string
	Category   string
	Product    string
	Quantity   int64
	UnitPrice  decimal.Decimal
	Date       time.Time
	Status     Status
}

// Revenue returns quantity × unit price.
func (o Order) Revenue() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(o.Quantity))
}

// Month returns the YYYY-MM bucket of the order date.
func (o Order) Month() string {
	return o.Date.Format("2006-01")
}

// ProductKey identifies a product within its category.
type ProductKey struct {
	Category string
	Name     string
}

// Key returns the product key of the order.
func (o Order) Key() ProductKey {
	return ProductKey{Category: o.Category, Name: o.Product}
}
