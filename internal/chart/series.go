package chart

import (
	"fmt"
	"html/template"

	"hopdong/internal/core"
)

// Kind names one of the dashboard charts.
type Kind string

const (
	Monthly   Kind = "monthly"
	Quarterly Kind = "quarterly"
	Customers Kind = "customers"
)

// ParseKind maps a route segment to a chart kind.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case Monthly, Quarterly, Customers:
		return k, true
	}
	return "", false
}

// Dashboard renders the chart of the given kind from an aggregated
// dashboard. An empty aggregate yields a placeholder.
func Dashboard(d core.Dashboard, kind Kind) (template.HTML, error) {
	var (
		values []float64
		labels []string
		opts   = BarOpts{SeriesLabel: "Giá trị quyết toán"}
	)

	switch kind {
	case Monthly:
		opts.Title = "Doanh thu theo tháng"
		for _, t := range d.Monthly {
			labels = append(labels, fmt.Sprintf("T%d", t.Bucket))
			values = append(values, t.Total)
		}
	case Quarterly:
		opts.Title = "Doanh thu theo quý"
		opts.Color = "#6366f1"
		for _, t := range d.Quarterly {
			labels = append(labels, fmt.Sprintf("Q%d", t.Bucket))
			values = append(values, t.Total)
		}
	case Customers:
		opts.Title = "Doanh thu theo khách hàng"
		opts.Color = "#10b981"
		opts.MaxLabelRunes = 14
		for _, t := range d.Customers {
			labels = append(labels, t.Customer)
			values = append(values, t.Total)
		}
	default:
		return "", fmt.Errorf("chart: unknown kind %q", kind)
	}

	if len(values) == 0 {
		return Empty(DefaultWidth, DefaultHeight, "Không có dữ liệu"), nil
	}
	return Bars(DefaultWidth, DefaultHeight, values, labels, opts)
}
