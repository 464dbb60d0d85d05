package http

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"hopdong/internal/core"
	"hopdong/internal/log"
	"hopdong/internal/services"
	"hopdong/internal/workbook"
)

const (
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	contentTypeZIP  = "application/zip"
)

func (s *Server) handleExportMonthly(w http.ResponseWriter, r *http.Request) {
	s.exportView(w, r, "doanh_thu_theo_thang.xlsx", func(out io.Writer, v services.DashboardView) error {
		return workbook.WriteMonthlySummary(out, v.Monthly)
	})
}

func (s *Server) handleExportQuarterly(w http.ResponseWriter, r *http.Request) {
	s.exportView(w, r, "doanh_thu_theo_quy.xlsx", func(out io.Writer, v services.DashboardView) error {
		return workbook.WriteQuarterlySummary(out, v.Quarterly)
	})
}

func (s *Server) handleExportCustomers(w http.ResponseWriter, r *http.Request) {
	s.exportView(w, r, "doanh_thu_theo_khach_hang.xlsx", func(out io.Writer, v services.DashboardView) error {
		return workbook.WriteCustomerSummary(out, v.Customers)
	})
}

func (s *Server) handleExportContracts(w http.ResponseWriter, r *http.Request) {
	s.exportView(w, r, "danh_sach_hop_dong.xlsx", func(out io.Writer, v services.DashboardView) error {
		return workbook.WriteContracts(out, v.Contracts)
	})
}

// handleExportCustomer exports every contract of one customer, ignoring the
// dashboard filter.
func (s *Server) handleExportCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := sanitizeInput(r.URL.Query().Get("name"))
	if name == "" {
		BadRequestError("Thiếu tên khách hàng").Write(w)
		return
	}

	report, err := s.contracts.Load(ctx)
	if err != nil {
		s.exportFailed(w, r, "customer", err)
		return
	}
	contracts := core.ContractsByCustomer(report.Contracts, name)
	if len(contracts) == 0 {
		NotFoundError("Không tìm thấy khách hàng").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := workbook.WriteCustomerDetail(&buf, contracts, s.banner); err != nil {
		s.exportFailed(w, r, "customer", err)
		return
	}
	s.sendFile(w, workbook.FileName(name)+".xlsx", contentTypeXLSX, buf.Bytes())
}

// handleExportBundle exports one detail workbook per customer in a ZIP archive.
func (s *Server) handleExportBundle(w http.ResponseWriter, r *http.Request) {
	report, err := s.contracts.Load(r.Context())
	if err != nil {
		s.exportFailed(w, r, "bundle", err)
		return
	}
	var buf bytes.Buffer
	if err := workbook.WriteCustomerBundle(&buf, report.Contracts, s.banner); err != nil {
		s.exportFailed(w, r, "bundle", err)
		return
	}
	s.sendFile(w, "hop_dong_theo_khach_hang.zip", contentTypeZIP, buf.Bytes())
}

// exportView renders an export of the filtered dashboard. The file is built
// in memory so a failure still yields a clean error response.
func (s *Server) exportView(w http.ResponseWriter, r *http.Request, filename string, write func(io.Writer, services.DashboardView) error) {
	ctx := r.Context()
	view, err := s.contracts.Dashboard(ctx, ParseFilter(r.URL.Query()))
	if err != nil {
		s.exportFailed(w, r, filename, err)
		return
	}
	var buf bytes.Buffer
	if err := write(&buf, view); err != nil {
		s.exportFailed(w, r, filename, err)
		return
	}
	s.sendFile(w, filename, contentTypeXLSX, buf.Bytes())
}

func (s *Server) sendFile(w http.ResponseWriter, filename, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

func (s *Server) exportFailed(w http.ResponseWriter, r *http.Request, export string, err error) {
	ctx := r.Context()
	log.FromContext(ctx).ErrorContext(ctx, "Export failed",
		log.FieldExport, strings.TrimSuffix(export, ".xlsx"), log.FieldError, err)
	InternalServerError("Không thể xuất tệp").Write(w)
}
