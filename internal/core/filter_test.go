package core

import (
	"reflect"
	"testing"
)

func filterTable() []Contract {
	rows := []Contract{
		{ContractID: "1", CustomerName: "A", SignedDate: NewDate(2023, 5, 1), SettledValue: 100, ContractStatus: StatusCompleted, InvoiceStatus: InvoiceIssued},
		{ContractID: "2", CustomerName: "B", SignedDate: NewDate(2024, 1, 1), SettledValue: 200, ContractStatus: StatusInProgress, InvoiceStatus: InvoiceNotIssued},
		{ContractID: "3", CustomerName: "A", SignedDate: NewDate(2024, 2, 1), SettledValue: 300, ContractStatus: StatusCompleted, InvoiceStatus: InvoiceIssued},
		{ContractID: "4", CustomerName: "C", SettledValue: 400, ContractStatus: StatusOnHold},
	}
	for i := range rows {
		rows[i].Derive()
	}
	return rows
}

func ids(cs []Contract) []string {
	var out []string
	for _, c := range cs {
		out = append(out, c.ContractID)
	}
	return out
}

func TestFilterApply(t *testing.T) {
	table := filterTable()
	cases := []struct {
		name string
		f    Filter
		want []string
	}{
		{"empty filter", Filter{}, []string{"1", "2", "3", "4"}},
		{"year excludes other years and undated", Filter{Years: []int{2024}}, []string{"2", "3"}},
		{"status", Filter{Statuses: []string{StatusCompleted}}, []string{"1", "3"}},
		{"customer", Filter{Customers: []string{" A "}}, []string{"1", "3"}},
		{"customer is case sensitive like the totals", Filter{Customers: []string{"a"}}, nil},
		{"invoice", Filter{InvoiceStatuses: []string{InvoiceNotIssued}}, []string{"2"}},
		{"combined", Filter{Years: []int{2024}, Customers: []string{"A"}}, []string{"3"}},
		{"no match", Filter{Customers: []string{"Z"}}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ids(tc.f.Apply(table)); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestYearFilterAppliesBeforeAggregation(t *testing.T) {
	d := BuildDashboard(filterTable(), Filter{Years: []int{2024}})
	if ids(d.Contracts)[0] != "2" || len(d.Contracts) != 2 {
		t.Fatalf("listing = %v", ids(d.Contracts))
	}
	if !reflect.DeepEqual(d.Monthly, []BucketTotal{{1, 200}, {2, 300}}) {
		t.Fatalf("monthly = %+v", d.Monthly)
	}
	if !reflect.DeepEqual(d.Quarterly, []BucketTotal{{1, 500}}) {
		t.Fatalf("quarterly = %+v", d.Quarterly)
	}
	if !reflect.DeepEqual(d.Customers, []CustomerTotal{{"A", 300}, {"B", 200}}) {
		t.Fatalf("customers = %+v", d.Customers)
	}
	if d.Totals.Settled != 500 {
		t.Fatalf("settled = %v", d.Totals.Settled)
	}
	if !reflect.DeepEqual(d.Options.Years, []int{2024, 2023}) {
		t.Fatalf("options should come from the full table, got %v", d.Options.Years)
	}
}

func TestBuildDashboardCollectsLedgerIssues(t *testing.T) {
	c := Contract{ContractID: "X", CustomerName: "A", PaymentLedger: "2024|abc;2024-01-01|10"}
	c.Derive()
	d := BuildDashboard([]Contract{c}, Filter{})
	if len(d.Issues) != 1 || d.Issues[0].ContractID != "X" || d.Issues[0].Issues[0].Entry != "2024|abc" {
		t.Fatalf("issues = %+v", d.Issues)
	}
	if d.Totals.Paid != 10 {
		t.Fatalf("paid = %v", d.Totals.Paid)
	}
}

func TestOptions(t *testing.T) {
	opts := Options(filterTable())
	want := FilterOptions{
		Years:           []int{2024, 2023},
		Statuses:        []string{StatusInProgress, StatusCompleted, StatusOnHold},
		Customers:       []string{"A", "B", "C"},
		InvoiceStatuses: []string{InvoiceNotIssued, InvoiceIssued},
	}
	if !reflect.DeepEqual(opts.Years, want.Years) || !reflect.DeepEqual(opts.Customers, want.Customers) {
		t.Fatalf("options = %+v", opts)
	}
	if len(opts.Statuses) != 3 || len(opts.InvoiceStatuses) != 2 {
		t.Fatalf("options = %+v", opts)
	}
}
