package loader

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"salesanalytics/internal/model"
)

// Drop reasons reported in Result.DropReasons.
const (
	ReasonMissingField     = "missing_field"
	ReasonInvalidQuantity  = "invalid_quantity"
	ReasonInvalidUnitPrice = "invalid_unit_price"
	ReasonInvalidDate      = "invalid_date"
	ReasonInvalidStatus    = "invalid_status"
	ReasonDuplicateOrderID = "duplicate_order_id"
)

// MaxQuantity and MaxUnitPrice bound a row so that sums over any realistic
// batch stay finite once rounded for emission.
const MaxQuantity = math.MaxInt32

var MaxUnitPrice = decimal.New(1, 12)

// Options controls row validation.
type Options struct {
	// DefaultStatus replaces an empty status. Empty means such rows are dropped.
	DefaultStatus model.Status
}

// DefaultOptions fills missing statuses with pending.
var DefaultOptions = Options{DefaultStatus: model.StatusPending}

// RowError describes why a single row was rejected.
type RowError struct {
	Reason string
	Field  string
	Value  string
}

func (e *RowError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Reason, e.Field)
	}
	return fmt.Sprintf("%s: %s=%q", e.Reason, e.Field, e.Value)
}

// Result is the validated row set of one run.
type Result struct {
	Orders      []model.Order
	Read        int
	Dropped     int
	DropReasons map[string]int
}

// Validate converts one raw row into an Order.
func Validate(rec model.RawRecord, opts Options) (model.Order, error) {
	orderID := strings.TrimSpace(rec.OrderID)
	customerID := strings.TrimSpace(rec.CustomerID)
	category := strings.TrimSpace(rec.ProductCategory)
	product := strings.TrimSpace(rec.ProductName)
	for _, f := range []struct{ name, val string }{
		{"order_id", orderID},
		{"customer_id", customerID},
		{"product_category", category},
		{"product_name", product},
		{"quantity", rec.Quantity},
		{"unit_price", rec.UnitPrice},
		{"order_date", rec.OrderDate},
	} {
		if strings.TrimSpace(f.val) == "" {
			return model.Order{}, &RowError{Reason: ReasonMissingField, Field: f.name}
		}
	}

	qty, ok := parseQuantity(rec.Quantity)
	if !ok {
		return model.Order{}, &RowError{Reason: ReasonInvalidQuantity, Field: "quantity", Value: rec.Quantity}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(rec.UnitPrice))
	if err != nil || price.IsNegative() || price.GreaterThan(MaxUnitPrice) {
		return model.Order{}, &RowError{Reason: ReasonInvalidUnitPrice, Field: "unit_price", Value: rec.UnitPrice}
	}
	date, ok := ParseDate(rec.OrderDate)
	if !ok {
		return model.Order{}, &RowError{Reason: ReasonInvalidDate, Field: "order_date", Value: rec.OrderDate}
	}

	status := model.Status(strings.ToLower(strings.TrimSpace(rec.Status)))
	if status == "" {
		if opts.DefaultStatus == "" {
			return model.Order{}, &RowError{Reason: ReasonMissingField, Field: "status"}
		}
		status = opts.DefaultStatus
	}
	if !status.Valid() {
		return model.Order{}, &RowError{Reason: ReasonInvalidStatus, Field: "status", Value: rec.Status}
	}

	return model.Order{
		OrderID:    orderID,
		CustomerID: customerID,
		Category:   category,
		Product:    product,
		Quantity:   qty,
		UnitPrice:  price,
		Date:       date,
		Status:     status,
	}, nil
}

// Load validates every record, dropping malformed and duplicate rows.
// It never fails: an empty or fully invalid batch yields no orders.
func Load(recs []model.RawRecord, opts Options) Result {
	res := Result{
		Orders:      make([]model.Order, 0, len(recs)),
		Read:        len(recs),
		DropReasons: make(map[string]int),
	}
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		o, err := Validate(rec, opts)
		if err != nil {
			res.drop(reasonOf(err))
			continue
		}
		if _, dup := seen[o.OrderID]; dup {
			res.drop(ReasonDuplicateOrderID)
			continue
		}
		seen[o.OrderID] = struct{}{}
		res.Orders = append(res.Orders, o)
	}
	return res
}

func (r *Result) drop(reason string) {
	r.Dropped++
	r.DropReasons[reason]++
}

func reasonOf(err error) string {
	if re, ok := err.(*RowError); ok {
		return re.Reason
	}
	return ReasonMissingField
}

// parseQuantity accepts integers in [1, MaxQuantity], including integral
// floats like "2.0".
func parseQuantity(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, n > 0 && n <= MaxQuantity
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 1 || f > MaxQuantity {
		return 0, false
	}
	return int64(f), true
}
