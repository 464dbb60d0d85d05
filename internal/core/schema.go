package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"01-02-06",
}

// Excel serial day 0, accounting for the 1900 leap-year bug.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// IsMonetaryColumn reports whether a missing column defaults to 0.0 rather than "".
func IsMonetaryColumn(name string) bool {
	n := strings.ToLower(name)
	return strings.Contains(n, "value") || strings.Contains(n, "total")
}

// FillDefaults returns a copy of r that has every canonical column.
// Missing monetary columns get 0.0, any other missing column gets "".
// Keys are matched after trimming and lower-casing.
func FillDefaults(r Row) Row {
	out := make(Row, len(r)+len(Columns))
	for k, v := range r {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	for _, col := range Columns {
		if _, ok := out[col]; ok {
			continue
		}
		if IsMonetaryColumn(col) {
			out[col] = 0.0
		} else {
			out[col] = ""
		}
	}
	return out
}

// NormalizeRow converts an untyped record into a typed, derived Contract.
func NormalizeRow(r Row) Contract {
	r = FillDefaults(r)
	c := Contract{
		ContractID:     textValue(r[ColContractID]),
		CustomerName:   textValue(r[ColCustomerName]),
		SignedDate:     DateFromValue(r[ColSignedDate]),
		SettledValue:   AmountFromValue(r[ColSettledValue]),
		ContractStatus: textValue(r[ColContractStatus]),
		InvoiceStatus:  textValue(r[ColInvoiceStatus]),
		InvoiceNumber:  textValue(r[ColInvoiceNumber]),
		InvoiceDate:    DateFromValue(r[ColInvoiceDate]),
		PaymentLedger:  textValue(r[ColPaymentLedger]),
	}
	c.Derive()
	return c
}

// NormalizeRows normalizes a whole table, preserving order.
func NormalizeRows(rows []Row) []Contract {
	out := make([]Contract, 0, len(rows))
	for _, r := range rows {
		out = append(out, NormalizeRow(r))
	}
	return out
}

// ParseDate reads a date in any of the accepted layouts. Unreadable input
// yields the zero "no date" marker.
func ParseDate(s string) Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), int(t.Month()), t.Day())
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return dateFromSerial(f)
	}
	return Date{}
}

// DateFromValue coerces a loosely typed cell to a Date.
func DateFromValue(v any) Date {
	switch t := v.(type) {
	case nil:
		return Date{}
	case Date:
		return t
	case time.Time:
		if t.IsZero() {
			return Date{}
		}
		return NewDate(t.Year(), int(t.Month()), t.Day())
	case float64:
		return dateFromSerial(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Date{}
		}
		return dateFromSerial(f)
	case string:
		return ParseDate(t)
	default:
		return Date{}
	}
}

// dateFromSerial reads an Excel serial day number. Values outside
// 1950-2199 are not treated as dates.
func dateFromSerial(f float64) Date {
	if math.IsNaN(f) || f < 18264 || f > 109574 {
		return Date{}
	}
	t := excelEpoch.AddDate(0, 0, int(f))
	return NewDate(t.Year(), int(t.Month()), t.Day())
}
