package http

import (
	"html/template"
	"net/http"
	"time"

	"hopdong/internal/auth"
	"hopdong/internal/chart"
	"hopdong/internal/core"
	"hopdong/internal/log"
	"hopdong/internal/services"
	"hopdong/internal/storage"
)

type dashboardPage struct {
	Title       string
	DisplayName string
	View        services.DashboardView
	Query       template.URL
	Today       string

	ContractStatuses []string
	InvoiceStatuses  []string
	InvoiceIssued    string

	Flashes []auth.FlashMessage
	Logins  []storage.LoginEvent
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	f := ParseFilter(r.URL.Query())

	view, err := s.contracts.Dashboard(ctx, f)
	if err != nil {
		log.LogError(ctx, "Dashboard load failed", err, log.OpLoad, log.NewFields())
		http.Error(w, "Không thể tải dữ liệu", http.StatusInternalServerError)
		return
	}

	page := dashboardPage{
		Title:            "Quản lý hợp đồng",
		View:             view,
		Query:            template.URL(FilterQuery(f)),
		Today:            time.Now().Format(dateLayout),
		ContractStatuses: core.ContractStatuses,
		InvoiceStatuses:  core.InvoiceStatuses,
		InvoiceIssued:    core.InvoiceIssued,
	}
	if sess := auth.SessionFromContext(ctx); sess != nil {
		page.DisplayName = sess.DisplayName()
		page.Flashes = sess.PopFlashes()
	}
	if s.history != nil {
		logins, err := s.history.RecentLogins(ctx, recentLogins)
		if err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Login history unavailable", log.FieldError, err)
		}
		page.Logins = logins
	}

	s.render(w, r, http.StatusOK, "dashboard.html", page)
}

func (s *Server) handleChart(kind chart.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		view, err := s.contracts.Dashboard(ctx, ParseFilter(r.URL.Query()))
		if err != nil {
			log.LogError(ctx, "Chart load failed", err, log.OpLoad, log.NewFields())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		svg, err := chart.Dashboard(view.Dashboard, kind)
		if err != nil {
			log.LogError(ctx, "Chart render failed", err, log.OpRender, log.NewFields())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte(svg))
	}
}
