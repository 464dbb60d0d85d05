package core

// ContractIssue ties skipped ledger entries to their contract.
type ContractIssue struct {
	ContractID string
	Issues     []LedgerIssue
}

// Dashboard is everything one page render needs, computed from one
// filtered table so that listing, totals and charts always agree.
type Dashboard struct {
	Filter    Filter
	Options   FilterOptions
	Contracts []Contract
	Totals    Totals
	Monthly   []BucketTotal
	Quarterly []BucketTotal
	Customers []CustomerTotal
	Issues    []ContractIssue
}

// BuildDashboard applies f to the full table and aggregates the result.
// Filter options always come from the unfiltered table.
func BuildDashboard(all []Contract, f Filter) Dashboard {
	rows := f.Apply(all)
	d := Dashboard{
		Filter:    f,
		Options:   Options(all),
		Contracts: rows,
		Totals:    Summarize(rows),
		Monthly:   MonthlyTotals(rows),
		Quarterly: QuarterlyTotals(rows),
		Customers: CustomerTotals(rows),
	}
	for _, c := range rows {
		if len(c.LedgerIssues) > 0 {
			d.Issues = append(d.Issues, ContractIssue{ContractID: c.ContractID, Issues: c.LedgerIssues})
		}
	}
	return d
}
