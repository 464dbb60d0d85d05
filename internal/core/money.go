// Package core provides money parsing and handling utilities.
//
// This file contains the lenient amount parser shared by the schema
// normalizer, the payment ledger and the entry forms, plus the VND
// formatter used by views and exports.
package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var vnPrinter = message.NewPrinter(language.Vietnamese)

// ParseAmount parses a monetary string into an exact decimal.
//
// Grouping commas and currency markers are dropped. Dots follow the
// Vietnamese grouping that FormatVND prints: more than one dot, or a single
// dot with one to three digits before it (no leading zero) and exactly three
// after it, separates thousands. Any other single dot is a decimal point, and
// so is a dot in a string that also holds a comma.
//
// Examples:
//
//	ParseAmount("1,500,000")   -> 1500000
//	ParseAmount("2000000.0")   -> 2000000
//	ParseAmount("1.500.000 đ") -> 1500000
//	ParseAmount("1.500")       -> 1500
//	ParseAmount("12.5")        -> 12.5
//	ParseAmount("1,500.000")   -> 1500
//	ParseAmount("abc")         -> ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	for _, suffix := range []string{"VND", "VNĐ", "vnd", "₫", "đ", "Đ"} {
		s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if dotGrouped(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

// dotGrouped reports whether the dots in s separate thousands.
func dotGrouped(s string) bool {
	switch strings.Count(s, ".") {
	case 0:
		return false
	case 1:
	default:
		return true
	}
	if strings.Contains(s, ",") {
		return false
	}
	whole, frac, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	return len(whole) >= 1 && len(whole) <= 3 && whole[0] != '0' && len(frac) == 3 && isDigits(whole) && isDigits(frac)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// AmountFromValue coerces a loosely typed cell to float64. Anything that
// cannot be read as a number yields 0.
func AmountFromValue(v any) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		d, err := ParseAmount(t)
		if err != nil {
			return 0
		}
		return d.InexactFloat64()
	default:
		return 0
	}
}

// FormatVND formats an amount with Vietnamese digit grouping, e.g. "1.500.000 ₫".
func FormatVND(v float64) string {
	return vnPrinter.Sprint(number.Decimal(v, number.MaxFractionDigits(0))) + " ₫"
}

// FormatPlain formats an amount without grouping, suitable for ledger text.
func FormatPlain(d decimal.Decimal) string {
	if d.IsInteger() {
		return d.StringFixed(0)
	}
	return d.String()
}

// textValue renders a loosely typed cell as trimmed text.
func textValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(toString(t))
	}
}

func toString(v any) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
