package core

import (
	"errors"
	"strings"
	"time"
)

// Canonical column names. The order is the column order of the local cache
// file and of every export that lists whole records.
const (
	ColContractID     = "contract_id"
	ColCustomerName   = "customer_name"
	ColSignedDate     = "signed_date"
	ColSettledValue   = "settled_value"
	ColContractStatus = "contract_status"
	ColInvoiceStatus  = "invoice_status"
	ColInvoiceNumber  = "invoice_number"
	ColInvoiceDate    = "invoice_date"
	ColPaymentLedger  = "payment_ledger"
)

// Columns lists the persisted canonical columns in canonical order.
var Columns = []string{
	ColContractID,
	ColCustomerName,
	ColSignedDate,
	ColSettledValue,
	ColContractStatus,
	ColInvoiceStatus,
	ColInvoiceNumber,
	ColInvoiceDate,
	ColPaymentLedger,
}

// Options offered by the entry forms. Stored values are free text.
const (
	StatusInProgress = "Đang thực hiện"
	StatusCompleted  = "Đã hoàn thành"
	StatusOnHold     = "Tạm dừng"
	StatusCancelled  = "Đã hủy"

	InvoiceNotIssued = "Chưa xuất hóa đơn"
	InvoiceIssued    = "Đã xuất hóa đơn"
)

var (
	ContractStatuses = []string{StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled}
	InvoiceStatuses  = []string{InvoiceNotIssued, InvoiceIssued}
)

type (
	// Date is a calendar date. The zero value is the "no date" marker.
	Date struct {
		time.Time
	}

	// Row is one untyped record as read from the remote store or the local cache.
	Row map[string]any

	// Contract is a normalized record. The fields after PaymentLedger are
	// derived on every load and never persisted.
	Contract struct {
		ContractID     string
		CustomerName   string
		SignedDate     Date
		SettledValue   float64
		ContractStatus string
		InvoiceStatus  string
		InvoiceNumber  string
		InvoiceDate    Date
		PaymentLedger  string

		Year             int
		Month            int
		Quarter          int
		TotalPaid        float64
		RemainingBalance float64
		LedgerIssues     []LedgerIssue
	}
)

var (
	ErrEmptyContractID   = errors.New("empty contract id")
	ErrEmptyCustomerName = errors.New("empty customer name")
	ErrInvalidValue      = errors.New("invalid settled value")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrContractNotFound  = errors.New("contract not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Valid reports whether d carries a date.
func (d Date) Valid() bool {
	return !d.IsZero()
}

// Quarter returns 1-4, or 0 for the no-date marker.
func (d Date) Quarter() int {
	if !d.Valid() {
		return 0
	}
	return (int(d.Time.Month())-1)/3 + 1
}

// String formats the date as YYYY-MM-DD, or "" for the no-date marker.
func (d Date) String() string {
	if !d.Valid() {
		return ""
	}
	return d.Format("2006-01-02")
}

// Invoiced reports whether the invoice status marks the contract as invoiced.
func (c Contract) Invoiced() bool {
	return strings.EqualFold(strings.TrimSpace(c.InvoiceStatus), InvoiceIssued)
}

// Validate checks the fields an entry form must provide.
func (c Contract) Validate() error {
	if strings.TrimSpace(c.ContractID) == "" {
		return ErrEmptyContractID
	}
	if strings.TrimSpace(c.CustomerName) == "" {
		return ErrEmptyCustomerName
	}
	if c.SettledValue < 0 {
		return ErrInvalidValue
	}
	return nil
}

// Derive recomputes the calendar and ledger fields.
func (c *Contract) Derive() {
	c.Year, c.Month, c.Quarter = 0, 0, 0
	if c.SignedDate.Valid() {
		c.Year = c.SignedDate.Year()
		c.Month = int(c.SignedDate.Month())
		c.Quarter = c.SignedDate.Quarter()
	}

	ledger := ParseLedger(c.PaymentLedger)
	c.TotalPaid = ledger.TotalPaid()
	c.RemainingBalance = RemainingBalance(c.SettledValue, c.TotalPaid)
	c.LedgerIssues = ledger.Issues
}

// Row converts the persisted fields back to an untyped record.
func (c Contract) Row() Row {
	return Row{
		ColContractID:     c.ContractID,
		ColCustomerName:   c.CustomerName,
		ColSignedDate:     c.SignedDate.String(),
		ColSettledValue:   c.SettledValue,
		ColContractStatus: c.ContractStatus,
		ColInvoiceStatus:  c.InvoiceStatus,
		ColInvoiceNumber:  c.InvoiceNumber,
		ColInvoiceDate:    c.InvoiceDate.String(),
		ColPaymentLedger:  c.PaymentLedger,
	}
}

// Rows converts a table to untyped records.
func Rows(contracts []Contract) []Row {
	rows := make([]Row, len(contracts))
	for i, c := range contracts {
		rows[i] = c.Row()
	}
	return rows
}
