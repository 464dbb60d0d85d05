package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	ledgerEntrySep = ";"
	ledgerFieldSep = "|"
)

type (
	// PaymentEntry is one "date|amount" item of a payment ledger.
	PaymentEntry struct {
		DateText string
		Date     Date
		Amount   decimal.Decimal
	}

	// LedgerIssue records an entry that was skipped while parsing.
	LedgerIssue struct {
		Entry  string
		Reason string
	}

	// Ledger is a parsed payment ledger.
	Ledger struct {
		Entries []PaymentEntry
		Issues  []LedgerIssue
	}
)

// ParseLedger parses "date|amount;date|amount;...".
//
// Entries without "|" and empty entries are ignored. An entry whose amount
// does not parse is skipped and reported in Issues; the rest of the ledger
// still counts. An unreadable date keeps the entry with a zero Date.
func ParseLedger(raw string) Ledger {
	var l Ledger
	for _, part := range strings.Split(raw, ledgerEntrySep) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		dateText, amountText, ok := strings.Cut(part, ledgerFieldSep)
		if !ok {
			continue
		}
		amount, err := ParseAmount(amountText)
		if err != nil {
			l.Issues = append(l.Issues, LedgerIssue{Entry: part, Reason: "invalid amount"})
			continue
		}
		dateText = strings.TrimSpace(dateText)
		l.Entries = append(l.Entries, PaymentEntry{
			DateText: dateText,
			Date:     ParseDate(dateText),
			Amount:   amount,
		})
	}
	return l
}

// ParseLedgerValue parses a loosely typed ledger cell. Absent or
// non-text values yield an empty ledger.
func ParseLedgerValue(v any) Ledger {
	s, ok := v.(string)
	if !ok {
		return Ledger{}
	}
	return ParseLedger(s)
}

// Total returns the exact sum of all valid entries.
func (l Ledger) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range l.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// TotalPaid returns Total as float64.
func (l Ledger) TotalPaid() float64 {
	return l.Total().InexactFloat64()
}

// RemainingBalance is settled minus paid. Overpayment yields a negative value.
func RemainingBalance(settled, paid float64) float64 {
	return decimal.NewFromFloat(settled).Sub(decimal.NewFromFloat(paid)).InexactFloat64()
}

// AppendPayment returns ledger with one more "date|amount" entry.
func AppendPayment(ledger string, date Date, amount decimal.Decimal) (string, error) {
	if !amount.IsPositive() {
		return ledger, ErrInvalidAmount
	}
	entry := date.String() + ledgerFieldSep + FormatPlain(amount)
	ledger = strings.TrimRight(strings.TrimSpace(ledger), ledgerEntrySep+" ")
	if ledger == "" {
		return entry, nil
	}
	return ledger + ledgerEntrySep + entry, nil
}
