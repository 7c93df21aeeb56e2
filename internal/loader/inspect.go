package loader

import "salesanalytics/internal/model"

// Columns lists the raw fields in their canonical order.
var Columns = []string{
	"order_id", "customer_id", "product_category", "product_name",
	"quantity", "unit_price", "order_date", "status",
}

// Inspection is a pre-validation profile of a raw batch.
type Inspection struct {
	Rows       int
	Columns    []string
	Missing    map[string]int
	Duplicates int
}

// Inspect counts blank fields per column and fully repeated rows.
func Inspect(recs []model.RawRecord) Inspection {
	ins := Inspection{
		Rows:    len(recs),
		Columns: Columns,
		Missing: make(map[string]int, len(Columns)),
	}
	seen := make(map[model.RawRecord]struct{}, len(recs))
	for _, r := range recs {
		for i, v := range fieldValues(r) {
			if v == "" {
				ins.Missing[Columns[i]]++
			}
		}
		if _, ok := seen[r]; ok {
			ins.Duplicates++
			continue
		}
		seen[r] = struct{}{}
	}
	return ins
}

func fieldValues(r model.RawRecord) [8]string {
	return [8]string{
		r.OrderID, r.CustomerID, r.ProductCategory, r.ProductName,
		r.Quantity, r.UnitPrice, r.OrderDate, r.Status,
	}
}
