// Package http provides the dashboard server and its handlers.
//
// This file implements utilities for parsing request data: dashboard filters
// from the query string and sanitized form values.

package http

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"hopdong/internal/core"
)

// Query parameter names of the dashboard filter.
const (
	paramYear     = "year"
	paramStatus   = "status"
	paramCustomer = "customer"
	paramInvoice  = "invoice"
)

// ParseFilter reads the dashboard filter from query parameters. Every
// dimension may repeat. Unparseable years are ignored.
func ParseFilter(query url.Values) core.Filter {
	var f core.Filter
	for _, v := range query[paramYear] {
		if y, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && y > 0 && !slices.Contains(f.Years, y) {
			f.Years = append(f.Years, y)
		}
	}
	f.Statuses = values(query[paramStatus])
	f.Customers = values(query[paramCustomer])
	f.InvoiceStatuses = values(query[paramInvoice])
	return f
}

// FilterQuery encodes f back into a query string, so chart and export links
// reproduce the filtered view.
func FilterQuery(f core.Filter) string {
	q := url.Values{}
	for _, y := range f.Years {
		q.Add(paramYear, strconv.Itoa(y))
	}
	for _, s := range f.Statuses {
		q.Add(paramStatus, s)
	}
	for _, c := range f.Customers {
		q.Add(paramCustomer, c)
	}
	for _, s := range f.InvoiceStatuses {
		q.Add(paramInvoice, s)
	}
	return q.Encode()
}

func values(raw []string) []string {
	var out []string
	for _, v := range raw {
		v = sanitizeInput(v)
		if v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// formValue returns the sanitized value of a POST form field.
func formValue(r *http.Request, key string) string {
	return sanitizeInput(r.PostFormValue(key))
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// ParseFormOrFail parses the request form and returns an error response on failure.
// Returns nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Định dạng yêu cầu không hợp lệ")
	}
	return nil
}
