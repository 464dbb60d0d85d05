package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

type (
	// BucketTotal is the settled value summed over one month (1-12) or quarter (1-4).
	BucketTotal struct {
		Bucket int
		Total  float64
	}

	// CustomerTotal is the settled value summed over one customer.
	CustomerTotal struct {
		Customer string
		Total    float64
	}

	// Totals summarizes a table.
	Totals struct {
		Count     int
		Settled   float64
		Paid      float64
		Remaining float64
	}
)

// MonthlyTotals groups by signed month. Undated records are left out and
// only months that occur are returned, in ascending order.
func MonthlyTotals(contracts []Contract) []BucketTotal {
	return bucketTotals(contracts, func(c Contract) int { return c.Month })
}

// QuarterlyTotals groups by signed quarter, like MonthlyTotals.
func QuarterlyTotals(contracts []Contract) []BucketTotal {
	return bucketTotals(contracts, func(c Contract) int { return c.Quarter })
}

func bucketTotals(contracts []Contract, key func(Contract) int) []BucketTotal {
	sums := map[int]decimal.Decimal{}
	for _, c := range contracts {
		k := key(c)
		if k == 0 {
			continue
		}
		sums[k] = sums[k].Add(decimal.NewFromFloat(c.SettledValue))
	}
	out := make([]BucketTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, BucketTotal{Bucket: k, Total: v.InexactFloat64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket < out[j].Bucket })
	return out
}

// SameCustomer reports whether two names denote the same customer. Names are
// compared exactly after trimming, the same key CustomerTotals groups by.
func SameCustomer(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// CustomerTotals groups by customer name and sorts by total, largest first.
// Equal totals keep the order in which the customers first appear.
func CustomerTotals(contracts []Contract) []CustomerTotal {
	index := map[string]int{}
	var names []string
	var sums []decimal.Decimal
	for _, c := range contracts {
		name := strings.TrimSpace(c.CustomerName)
		i, ok := index[name]
		if !ok {
			i = len(names)
			index[name] = i
			names = append(names, name)
			sums = append(sums, decimal.Zero)
		}
		sums[i] = sums[i].Add(decimal.NewFromFloat(c.SettledValue))
	}

	out := make([]CustomerTotal, len(names))
	for i, name := range names {
		out[i] = CustomerTotal{Customer: name, Total: sums[i].InexactFloat64()}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	return out
}

// Summarize sums settled, paid and remaining amounts.
func Summarize(contracts []Contract) Totals {
	settled, paid := decimal.Zero, decimal.Zero
	for _, c := range contracts {
		settled = settled.Add(decimal.NewFromFloat(c.SettledValue))
		paid = paid.Add(decimal.NewFromFloat(c.TotalPaid))
	}
	return Totals{
		Count:     len(contracts),
		Settled:   settled.InexactFloat64(),
		Paid:      paid.InexactFloat64(),
		Remaining: settled.Sub(paid).InexactFloat64(),
	}
}

// ContractsByCustomer returns the records of one customer in table order.
func ContractsByCustomer(contracts []Contract, customer string) []Contract {
	var out []Contract
	for _, c := range contracts {
		if SameCustomer(c.CustomerName, customer) {
			out = append(out, c)
		}
	}
	return out
}

// Customers lists distinct customer names in order of first appearance.
func Customers(contracts []Contract) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, c := range contracts {
		name := strings.TrimSpace(c.CustomerName)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
