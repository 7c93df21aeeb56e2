package loader

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"salesanalytics/internal/model"
)

// Source yields the raw rows of one batch.
type Source interface {
	Records(ctx context.Context) ([]model.RawRecord, error)
}

// columnAliases maps normalised header names onto canonical field names.
var columnAliases = map[string]string{
	"price":    "unit_price",
	"category": "product_category",
	"product":  "product_name",
	"date":     "order_date",
	"id":       "order_id",
}

// CSVSource reads a header-first CSV table.
type CSVSource struct {
	r io.Reader
}

func NewCSVSource(r io.Reader) *CSVSource { return &CSVSource{r: r} }

func (s *CSVSource) Records(ctx context.Context) ([]model.RawRecord, error) {
	cr := csv.NewReader(s.r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := make([]string, len(header))
	aliased := make([]bool, len(header))
	for i, h := range header {
		cols[i], aliased[i] = canonicalColumn(h)
	}

	var out []model.RawRecord
	var open *csv.ParseError // quoted field still open when the reader gave up
	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := cr.Read()
		if err == io.EOF {
			if open != nil {
				return nil, fmt.Errorf("read csv line %d: quoted field runs to end of input: %w", open.StartLine, open)
			}
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				// A broken quote only spoils its own row, unless it swallowed
				// the rest of the file.
				open = nil
				if errors.Is(perr.Err, csv.ErrQuote) && perr.Line > perr.StartLine {
					open = perr
				}
				out = append(out, model.RawRecord{})
				continue
			}
			return nil, fmt.Errorf("read csv line %d: %w", line, err)
		}
		open = nil
		fields := make(map[string]string, len(cols))
		for i, v := range row {
			if i < len(cols) && cols[i] != "" {
				setField(fields, cols[i], v, aliased[i])
			}
		}
		out = append(out, recordFromFields(fields))
	}
	return out, nil
}

// JSONLSource reads one JSON object per line, as written by cmd/genorders.
type JSONLSource struct {
	r io.Reader
}

func NewJSONLSource(r io.Reader) *JSONLSource { return &JSONLSource{r: r} }

func (s *JSONLSource) Records(ctx context.Context) ([]model.RawRecord, error) {
	scanner := bufio.NewScanner(s.r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	var out []model.RawRecord
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out = append(out, DecodeJSONRecord(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan jsonl: %w", err)
	}
	return out, nil
}

// DecodeJSONRecord maps a JSON object onto a RawRecord. Numbers keep their
// literal text. Undecodable input yields an empty record, which validation
// later drops.
func DecodeJSONRecord(data []byte) model.RawRecord {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return model.RawRecord{}
	}
	fields := make(map[string]string, len(obj))
	for k, v := range obj {
		col, aliased := canonicalColumn(k)
		if col == "" || v == nil {
			continue
		}
		setField(fields, col, fmt.Sprint(v), aliased)
	}
	return recordFromFields(fields)
}

func recordFromFields(f map[string]string) model.RawRecord {
	return model.RawRecord{
		OrderID:         f["order_id"],
		CustomerID:      f["customer_id"],
		ProductCategory: f["product_category"],
		ProductName:     f["product_name"],
		Quantity:        f["quantity"],
		UnitPrice:       f["unit_price"],
		OrderDate:       f["order_date"],
		Status:          f["status"],
	}
}

// setField stores v under col. A value reached through an alias never
// replaces one given under the canonical name.
func setField(fields map[string]string, col, v string, aliased bool) {
	if _, exists := fields[col]; exists && aliased {
		return
	}
	fields[col] = v
}

// canonicalColumn normalises a header ("Unit Price", "unitPrice") to snake
// case and resolves aliases.
func canonicalColumn(h string) (string, bool) {
	key := toSnakeCase(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	if alias, ok := columnAliases[key]; ok {
		return alias, true
	}
	return key, false
}

func toSnakeCase(s string) string {
	var b strings.Builder
	prevLower := false
	for _, r := range s {
		switch {
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			prevLower = false
		case unicode.IsUpper(r):
			if prevLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		default:
			b.WriteRune(r)
			prevLower = unicode.IsLower(r) || unicode.IsDigit(r)
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
