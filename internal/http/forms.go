package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"hopdong/internal/core"
)

const dateLayout = "2006-01-02"

type loginForm struct {
	Username string `validate:"max=64"`
	Password string `validate:"max=256"`
}

type contractForm struct {
	ContractID     string `validate:"required,max=64"`
	CustomerName   string `validate:"required,max=200"`
	SignedDate     string `validate:"omitempty,datetime=2006-01-02"`
	SettledValue   string `validate:"required,max=32"`
	ContractStatus string `validate:"max=64"`
	InvoiceStatus  string `validate:"max=64"`
	InvoiceNumber  string `validate:"max=64"`
	InvoiceDate    string `validate:"omitempty,datetime=2006-01-02"`
	PaymentLedger  string `validate:"max=4000"`
}

type updateForm struct {
	ContractID    string `validate:"required,max=64"`
	SettledValue  string `validate:"required,max=32"`
	PaymentLedger string `validate:"max=4000"`
}

type paymentForm struct {
	ContractID string `validate:"required,max=64"`
	Date       string `validate:"required,datetime=2006-01-02"`
	Amount     string `validate:"required,max=32"`
}

var fieldLabels = map[string]string{
	"ContractID":    "Mã hợp đồng",
	"CustomerName":  "Tên khách hàng",
	"SignedDate":    "Ngày ký",
	"SettledValue":  "Giá trị quyết toán",
	"InvoiceDate":   "Ngày xuất hóa đơn",
	"InvoiceNumber": "Số hóa đơn",
	"PaymentLedger": "Lịch sử thanh toán",
	"Date":          "Ngày thanh toán",
	"Amount":        "Số tiền",
}

func parseContractForm(r *http.Request) contractForm {
	return contractForm{
		ContractID:     formValue(r, "contract_id"),
		CustomerName:   formValue(r, "customer_name"),
		SignedDate:     formValue(r, "signed_date"),
		SettledValue:   formValue(r, "settled_value"),
		ContractStatus: formValue(r, "contract_status"),
		InvoiceStatus:  formValue(r, "invoice_status"),
		InvoiceNumber:  formValue(r, "invoice_number"),
		InvoiceDate:    formValue(r, "invoice_date"),
		PaymentLedger:  formValue(r, "payment_ledger"),
	}
}

// Contract converts the form into a record. The invoice date is kept only
// for invoiced contracts.
func (f contractForm) Contract() (core.Contract, error) {
	value, err := core.ParseAmount(f.SettledValue)
	if err != nil {
		return core.Contract{}, core.ErrInvalidValue
	}
	c := core.Contract{
		ContractID:     f.ContractID,
		CustomerName:   f.CustomerName,
		SignedDate:     core.ParseDate(f.SignedDate),
		SettledValue:   value.InexactFloat64(),
		ContractStatus: f.ContractStatus,
		InvoiceStatus:  f.InvoiceStatus,
		InvoiceNumber:  f.InvoiceNumber,
		PaymentLedger:  f.PaymentLedger,
	}
	if c.ContractStatus == "" {
		c.ContractStatus = core.StatusInProgress
	}
	if c.InvoiceStatus == "" {
		c.InvoiceStatus = core.InvoiceNotIssued
	}
	if c.Invoiced() {
		c.InvoiceDate = core.ParseDate(f.InvoiceDate)
	}
	return c, nil
}

func parseUpdateForm(r *http.Request) updateForm {
	return updateForm{
		ContractID:    formValue(r, "contract_id"),
		SettledValue:  formValue(r, "settled_value"),
		PaymentLedger: formValue(r, "payment_ledger"),
	}
}

func (f updateForm) Settled() (float64, error) {
	value, err := core.ParseAmount(f.SettledValue)
	if err != nil {
		return 0, core.ErrInvalidValue
	}
	return value.InexactFloat64(), nil
}

func parsePaymentForm(r *http.Request) paymentForm {
	return paymentForm{
		ContractID: formValue(r, "contract_id"),
		Date:       formValue(r, "date"),
		Amount:     formValue(r, "amount"),
	}
}

func (f paymentForm) Payment() (core.Date, decimal.Decimal, error) {
	amount, err := core.ParseAmount(f.Amount)
	if err != nil {
		return core.Date{}, decimal.Zero, err
	}
	return core.ParseDate(f.Date), amount, nil
}

// validationMessage turns validator errors into one Vietnamese message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Dữ liệu không hợp lệ"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		label, ok := fieldLabels[fe.Field()]
		if !ok {
			label = fe.Field()
		}
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, label+" là bắt buộc")
		case "datetime":
			msgs = append(msgs, label+" không đúng định dạng ngày")
		case "max":
			msgs = append(msgs, label+" quá dài")
		default:
			msgs = append(msgs, label+" không hợp lệ")
		}
	}
	return strings.Join(msgs, "; ")
}

// domainMessage maps errors of the contract table to a status and message.
func domainMessage(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptyContractID):
		return http.StatusUnprocessableEntity, "Mã hợp đồng là bắt buộc"
	case errors.Is(err, core.ErrEmptyCustomerName):
		return http.StatusUnprocessableEntity, "Tên khách hàng là bắt buộc"
	case errors.Is(err, core.ErrInvalidValue):
		return http.StatusUnprocessableEntity, "Giá trị quyết toán không hợp lệ"
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "Số tiền không hợp lệ"
	case errors.Is(err, core.ErrContractNotFound):
		return http.StatusNotFound, "Không tìm thấy hợp đồng"
	default:
		return http.StatusInternalServerError, "Không thể lưu dữ liệu"
	}
}
