package core

import (
	"slices"
	"sort"
	"strings"
)

// Filter narrows a table before aggregation. An empty dimension matches
// everything. A year filter never matches undated records.
type Filter struct {
	Years           []int
	Statuses        []string
	Customers       []string
	InvoiceStatuses []string
}

// FilterOptions lists the distinct values available for each dimension.
type FilterOptions struct {
	Years           []int
	Statuses        []string
	Customers       []string
	InvoiceStatuses []string
}

// IsEmpty reports whether f matches every record.
func (f Filter) IsEmpty() bool {
	return len(f.Years) == 0 && len(f.Statuses) == 0 && len(f.Customers) == 0 && len(f.InvoiceStatuses) == 0
}

// Match reports whether c passes every dimension of f.
func (f Filter) Match(c Contract) bool {
	if len(f.Years) > 0 && (c.Year == 0 || !slices.Contains(f.Years, c.Year)) {
		return false
	}
	if len(f.Statuses) > 0 && !containsFold(f.Statuses, c.ContractStatus) {
		return false
	}
	if len(f.Customers) > 0 && !slices.ContainsFunc(f.Customers, func(name string) bool { return SameCustomer(name, c.CustomerName) }) {
		return false
	}
	if len(f.InvoiceStatuses) > 0 && !containsFold(f.InvoiceStatuses, c.InvoiceStatus) {
		return false
	}
	return true
}

// Apply returns the records matching f, in their original order.
func (f Filter) Apply(contracts []Contract) []Contract {
	if f.IsEmpty() {
		return contracts
	}
	out := make([]Contract, 0, len(contracts))
	for _, c := range contracts {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}

// Options collects the filter choices present in a table. Years are newest
// first, the text dimensions are sorted.
func Options(contracts []Contract) FilterOptions {
	years := map[int]struct{}{}
	statuses := map[string]struct{}{}
	customers := map[string]struct{}{}
	invoices := map[string]struct{}{}
	for _, c := range contracts {
		if c.Year != 0 {
			years[c.Year] = struct{}{}
		}
		addNonEmpty(statuses, c.ContractStatus)
		addNonEmpty(customers, c.CustomerName)
		addNonEmpty(invoices, c.InvoiceStatus)
	}

	opts := FilterOptions{
		Statuses:        sortedKeys(statuses),
		Customers:       sortedKeys(customers),
		InvoiceStatuses: sortedKeys(invoices),
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(opts.Years)))
	return opts
}

func containsFold(list []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, item := range list {
		if strings.EqualFold(strings.TrimSpace(item), v) {
			return true
		}
	}
	return false
}

func addNonEmpty(set map[string]struct{}, v string) {
	if v = strings.TrimSpace(v); v != "" {
		set[v] = struct{}{}
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
