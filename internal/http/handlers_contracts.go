package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"hopdong/internal/auth"
	"hopdong/internal/log"
	"hopdong/internal/services"
)

func (s *Server) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	form := parseContractForm(r)
	if err := s.validate.Struct(form); err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	c, err := form.Contract()
	if err != nil {
		status, msg := domainMessage(err)
		s.fail(w, r, status, msg)
		return
	}

	report, err := s.contracts.Create(ctx, c)
	if err != nil {
		s.failSave(w, r, err, log.OpCreate, c.ContractID)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Contract created",
		log.NewFields().WithContract(c.ContractID, c.CustomerName, c.SettledValue).ToSlice()...)
	s.saved(w, r, report, c.ContractID, fmt.Sprintf("✅ Đã thêm hợp đồng %s", c.ContractID))
}

func (s *Server) handleUpdateContract(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	form := parseUpdateForm(r)
	if err := s.validate.Struct(form); err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	settled, err := form.Settled()
	if err != nil {
		status, msg := domainMessage(err)
		s.fail(w, r, status, msg)
		return
	}

	report, err := s.contracts.Update(ctx, form.ContractID, settled, form.PaymentLedger)
	if err != nil {
		s.failSave(w, r, err, log.OpUpdate, form.ContractID)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Contract updated",
		log.FieldContractID, form.ContractID, log.FieldRows, report.Changed)
	s.saved(w, r, report, form.ContractID, fmt.Sprintf("✅ Đã cập nhật hợp đồng %s", form.ContractID))
}

func (s *Server) handleRecordPayment(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	form := parsePaymentForm(r)
	if err := s.validate.Struct(form); err != nil {
		s.fail(w, r, http.StatusUnprocessableEntity, validationMessage(err))
		return
	}
	date, amount, err := form.Payment()
	if err != nil {
		status, msg := domainMessage(err)
		s.fail(w, r, status, msg)
		return
	}

	report, err := s.contracts.RecordPayment(ctx, form.ContractID, date, amount)
	if err != nil {
		s.failSave(w, r, err, log.OpPayment, form.ContractID)
		return
	}
	log.FromContext(ctx).InfoContext(ctx, "Payment recorded",
		log.FieldContractID, form.ContractID, log.FieldRows, report.Changed)
	s.saved(w, r, report, form.ContractID, fmt.Sprintf("✅ Đã ghi nhận thanh toán cho hợp đồng %s", form.ContractID))
}

// saved answers a successful save. htmx callers get triggers that refresh
// the dashboard; plain form posts are redirected with flashes.
func (s *Server) saved(w http.ResponseWriter, r *http.Request, report services.SaveReport, contractID, msg string) {
	if isHTMX(r) {
		NewHTMXResponse().
			TriggerContractsChanged(contractID, report.Changed).
			TriggerFormReset().
			TriggerSuccessNotification(msg).
			TriggerWarnings(report.Warnings).
			BodyHTML(`<div class="success">` + template.HTMLEscapeString(msg) + `</div>`).
			Write(w)
		return
	}
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(string(NotificationSuccess), msg)
		for _, warning := range report.Warnings {
			sess.AddFlash(string(NotificationWarning), warning)
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if isHTMX(r) {
		ErrorResponse(status, msg).TriggerErrorNotification(msg).Write(w)
		return
	}
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(string(NotificationError), msg)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) failSave(w http.ResponseWriter, r *http.Request, err error, op, contractID string) {
	ctx := r.Context()
	status, msg := domainMessage(err)
	if status == http.StatusInternalServerError {
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "Hết thời gian chờ khi lưu dữ liệu"
		}
		log.LogError(ctx, "Contract save failed", err, op, log.NewFields().WithContract(contractID, "", 0))
	} else {
		log.FromContext(ctx).WarnContext(ctx, "Contract change rejected",
			log.FieldContractID, contractID, log.FieldOperation, op, log.FieldError, err)
	}
	s.fail(w, r, status, msg)
}
