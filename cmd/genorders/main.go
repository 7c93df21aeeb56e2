package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/shopspring/decimal"

	"salesanalytics/internal/loader"
)

var catalog = []struct {
	category string
	products []string
}{
	{"Electronics", []string{"Laptop", "Phone", "Tablet", "Headphones"}},
	{"Clothing", []string{"T-Shirt", "Jeans", "Jacket", "Shoes"}},
	{"Home & Garden", []string{"Lamp", "Plant", "Cushion", "Rug"}},
	{"Sports", []string{"Yoga Mat", "Dumbbell", "Running Shoes", "Bike"}},
	{"Books", []string{"Fiction", "Science", "History", "Art"}},
}

// status weights in percent; the empty status exercises the default
var statusMix = []struct {
	status string
	weight int
}{
	{"completed", 70},
	{"pending", 15},
	{"cancelled", 10},
	{"", 5},
}

var epoch = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// row is one generated order in the loader's canonical column order.
type row []string

func generate(count int, seed uint64) []row {
	r := rand.New(rand.NewPCG(seed, seed))
	out := make([]row, 0, count)
	for i := 0; i < count; i++ {
		c := catalog[r.IntN(len(catalog))]
		qty := 1 + r.IntN(4)
		price := decimal.NewFromFloat(10 + r.Float64()*490).Round(2)
		date := epoch.AddDate(0, 0, r.IntN(365))
		out = append(out, row{
			fmt.Sprintf("ORD%d", 1000+i),
			fmt.Sprintf("CUST%d", 1+r.IntN(49)),
			c.category,
			c.products[r.IntN(len(c.products))],
			strconv.Itoa(qty),
			price.StringFixed(2),
			date.Format("2006-01-02"),
			pickStatus(r),
		})
	}
	return out
}

func pickStatus(r *rand.Rand) string {
	n := r.IntN(100)
	for _, s := range statusMix {
		if n < s.weight {
			return s.status
		}
		n -= s.weight
	}
	return statusMix[0].status
}

// orderAmount is quantity*unit_price, carried as an extra column.
func orderAmount(rw row) string {
	q, _ := decimal.NewFromString(rw[4])
	p, _ := decimal.NewFromString(rw[5])
	return q.Mul(p).StringFixed(2)
}

func writeCSV(w io.Writer, rows []row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(append(append([]string{}, loader.Columns...), "order_amount")); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rw := range rows {
		if err := cw.Write(append(append([]string{}, rw...), orderAmount(rw))); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func jsonRecord(rw row) ([]byte, error) {
	obj := make(map[string]string, len(loader.Columns)+1)
	for i, col := range loader.Columns {
		obj[col] = rw[i]
	}
	obj["order_amount"] = orderAmount(rw)
	return json.Marshal(obj)
}

func writeJSONL(w io.Writer, rows []row) error {
	for i, rw := range rows {
		b, err := jsonRecord(rw)
		if err != nil {
			return fmt.Errorf("encode order %d: %w", i+1, err)
		}
		if _, err := w.Write(append(b, '\n')); err != nil {
			return err
		}
	}
	return nil
}

// produce publishes one JSON record per order, keyed by order id.
func produce(bootstrap, topic string, rows []row) error {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return fmt.Errorf("producer: %w", err)
	}
	defer p.Close()

	for _, rw := range rows {
		val, err := jsonRecord(rw)
		if err != nil {
			return err
		}
		msg := &ck.Message{
			TopicPartition: ck.TopicPartition{Topic: &topic, Partition: ck.PartitionAny},
			Key:            []byte(rw[0]),
			Value:          val,
		}
		if err := p.Produce(msg, nil); err != nil {
			return fmt.Errorf("produce %s: %w", rw[0], err)
		}
	}
	if left := p.Flush(15000); left > 0 {
		return fmt.Errorf("flush: %d messages undelivered", left)
	}
	return nil
}

func main() {
	var (
		count     int
		seed      uint64
		output    string
		format    string
		bootstrap string
		topic     string
	)
	flag.IntVar(&count, "count", 200, "number of orders to generate")
	flag.Uint64Var(&seed, "seed", 42, "random seed")
	flag.StringVar(&output, "output", "data/sales_data.csv", "output file")
	flag.StringVar(&format, "format", "csv", "csv|jsonl")
	flag.StringVar(&bootstrap, "bootstrap", "", "kafka bootstrap; when set, orders are also produced to -topic")
	flag.StringVar(&topic, "topic", "sales.orders", "raw orders topic")
	flag.Parse()

	rows := generate(count, seed)
	if err := writeFile(output, format, rows); err != nil {
		log.Fatalf("generation failed: %v", err)
	}
	log.Printf("generated %d orders to %s", count, output)

	if bootstrap != "" {
		if err := produce(bootstrap, topic, rows); err != nil {
			log.Fatalf("produce failed: %v", err)
		}
		log.Printf("produced %d orders to %s", count, topic)
	}
}

func writeFile(path, format string, rows []row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer f.Close()
	switch format {
	case "csv":
		err = writeCSV(f, rows)
	case "jsonl":
		err = writeJSONL(f, rows)
	default:
		err = fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}
	return f.Sync()
}
