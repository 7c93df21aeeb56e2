// Package fixture builds deterministic order sets for property tests.
package fixture

import (
	"fmt"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/shopspring/decimal"

	"salesanalytics/internal/model"
)

var (
	categories = []string{"Electronics", "Clothing", "Home", "Books", "Sports"}
	products   = []string{"Alpha", "Beta", "Gamma", "Delta"}
	base       = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Order derives one order from a seed. Equal seeds produce equal orders
// apart from the order id, which comes from i.
func Order(i, seed int) model.Order {
	if seed < 0 {
		seed = -seed
	}
	return model.Order{
		OrderID:    fmt.Sprintf("ORD%06d", i),
		CustomerID: fmt.Sprintf("CUST%03d", seed%37),
		Category:   categories[seed%len(categories)],
		Product:    products[(seed/7)%len(products)],
		Quantity:   int64(seed%5 + 1),
		UnitPrice:  decimal.New(int64(seed%20000), -2),
		Date:       base.AddDate(0, 0, seed%400),
		Status:     model.Statuses[(seed/3)%len(model.Statuses)],
	}
}

// FromSeeds maps each seed to an order.
func FromSeeds(seeds []int) []model.Order {
	out := make([]model.Order, len(seeds))
	for i, s := range seeds {
		out[i] = Order(i, s)
	}
	return out
}

// Orders generates order batches sized by the test parameters.
func Orders() gopter.Gen {
	return gen.SliceOf(gen.IntRange(0, 1<<20)).Map(FromSeeds)
}

// Parameters returns the shared property test parameters.
func Parameters() *gopter.TestParameters {
	p := gopter.DefaultTestParameters()
	p.MinSuccessfulTests = 150
	return p
}
