package loader

import (
	"testing"
	"time"

	"salesanalytics/internal/model"
)

func validRecord(id string) model.RawRecord {
	return model.RawRecord{
		OrderID:         id,
		CustomerID:      "C1",
		ProductCategory: "Books",
		ProductName:     "Fiction",
		Quantity:        "2",
		UnitPrice:       "10",
		OrderDate:       "2024-01-05",
		Status:          "completed",
	}
}

func TestValidate_Valid(t *testing.T) {
	o, err := Validate(validRecord("o1"), DefaultOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Quantity != 2 || o.UnitPrice.String() != "10" || o.Status != model.StatusCompleted {
		t.Fatalf("unexpected order: %+v", o)
	}
	if !o.Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected date: %v", o.Date)
	}
	if o.Revenue().String() != "20" || o.Month() != "2024-01" {
		t.Fatalf("revenue=%s month=%s", o.Revenue(), o.Month())
	}
}

func TestValidate_Rejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(r *model.RawRecord)
		reason string
	}{
		{"missing customer", func(r *model.RawRecord) { r.CustomerID = "  " }, ReasonMissingField},
		{"missing category", func(r *model.RawRecord) { r.ProductCategory = "" }, ReasonMissingField},
		{"zero quantity", func(r *model.RawRecord) { r.Quantity = "0" }, ReasonInvalidQuantity},
		{"negative quantity", func(r *model.RawRecord) { r.Quantity = "-3" }, ReasonInvalidQuantity},
		{"fractional quantity", func(r *model.RawRecord) { r.Quantity = "1.5" }, ReasonInvalidQuantity},
		{"text quantity", func(r *model.RawRecord) { r.Quantity = "two" }, ReasonInvalidQuantity},
		{"huge quantity", func(r *model.RawRecord) { r.Quantity = "9000000000000000000" }, ReasonInvalidQuantity},
		{"quantity over cap", func(r *model.RawRecord) { r.Quantity = "2147483648" }, ReasonInvalidQuantity},
		{"negative price", func(r *model.RawRecord) { r.UnitPrice = "-0.01" }, ReasonInvalidUnitPrice},
		{"text price", func(r *model.RawRecord) { r.UnitPrice = "ten" }, ReasonInvalidUnitPrice},
		{"unbounded price", func(r *model.RawRecord) { r.UnitPrice = "1e400" }, ReasonInvalidUnitPrice},
		{"price over cap", func(r *model.RawRecord) { r.UnitPrice = "1000000000000.01" }, ReasonInvalidUnitPrice},
		{"bad date", func(r *model.RawRecord) { r.OrderDate = "2024-13-45" }, ReasonInvalidDate},
		{"unknown status", func(r *model.RawRecord) { r.Status = "shipped" }, ReasonInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := validRecord("o1")
			tc.mutate(&rec)
			_, err := Validate(rec, DefaultOptions)
			re, ok := err.(*RowError)
			if !ok {
				t.Fatalf("expected *RowError, got %v", err)
			}
			if re.Reason != tc.reason {
				t.Fatalf("reason=%s want=%s", re.Reason, tc.reason)
			}
		})
	}
}

func TestValidate_Normalizes(t *testing.T) {
	rec := validRecord(" o1 ")
	rec.Status = " Cancelled "
	rec.Quantity = "3.0"
	rec.UnitPrice = " 0 "
	o, err := Validate(rec, DefaultOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.OrderID != "o1" || o.Status != model.StatusCancelled || o.Quantity != 3 || !o.UnitPrice.IsZero() {
		t.Fatalf("unexpected order: %+v", o)
	}
}

func TestValidate_AcceptsBounds(t *testing.T) {
	rec := validRecord("o1")
	rec.Quantity = "2147483647"
	rec.UnitPrice = "1000000000000"
	o, err := Validate(rec, DefaultOptions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.Quantity != MaxQuantity || !o.UnitPrice.Equal(MaxUnitPrice) {
		t.Fatalf("unexpected order: %+v", o)
	}
}

func TestValidate_EmptyStatus(t *testing.T) {
	rec := validRecord("o1")
	rec.Status = ""
	o, err := Validate(rec, DefaultOptions)
	if err != nil || o.Status != model.StatusPending {
		t.Fatalf("default status not applied: %+v err=%v", o, err)
	}
	if _, err := Validate(rec, Options{}); err == nil {
		t.Fatal("expected empty status to be rejected without a default")
	}
}

func TestLoad_DropsAndCounts(t *testing.T) {
	bad := validRecord("o2")
	bad.Quantity = "0"
	recs := []model.RawRecord{validRecord("o1"), bad, validRecord("o1"), validRecord("o3"), {}}

	res := Load(recs, DefaultOptions)
	if res.Read != 5 || res.Dropped != 3 || len(res.Orders) != 2 {
		t.Fatalf("unexpected result: read=%d dropped=%d orders=%d", res.Read, res.Dropped, len(res.Orders))
	}
	if res.DropReasons[ReasonInvalidQuantity] != 1 || res.DropReasons[ReasonDuplicateOrderID] != 1 || res.DropReasons[ReasonMissingField] != 1 {
		t.Fatalf("unexpected reasons: %v", res.DropReasons)
	}
	if res.Orders[0].OrderID != "o1" || res.Orders[1].OrderID != "o3" {
		t.Fatalf("order not preserved: %+v", res.Orders)
	}
}

func TestLoad_Empty(t *testing.T) {
	res := Load(nil, DefaultOptions)
	if res.Orders == nil || len(res.Orders) != 0 || res.Dropped != 0 {
		t.Fatalf("unexpected result for empty input: %+v", res)
	}
}

func TestParseDate_Formats(t *testing.T) {
	want := time.Date(2023, 5, 15, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{"2023-05-15", "2023/05/15", "15-05-2023", "15/05/2023", "2023-05-15 13:45:00", "15.05.2023", "2023-05-15T13:45:00Z"} {
		got, ok := ParseDate(in)
		if !ok || !got.Equal(want) {
			t.Fatalf("ParseDate(%q) = %v,%v", in, got, ok)
		}
	}
	if _, ok := ParseDate("yesterday"); ok {
		t.Fatal("expected failure")
	}
}
