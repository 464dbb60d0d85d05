package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"hopdong/internal/auth"
	"hopdong/internal/chart"
	"hopdong/internal/core"
	"hopdong/internal/log"
	"hopdong/internal/services"
	"hopdong/internal/storage"
	"hopdong/internal/workbook"
	appweb "hopdong/web"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultLoginLimit     = 10
	recentLogins          = 10
)

// ContractService is the pipeline the handlers drive.
type ContractService interface {
	Load(ctx context.Context) (services.LoadReport, error)
	Dashboard(ctx context.Context, f core.Filter) (services.DashboardView, error)
	Create(ctx context.Context, c core.Contract) (services.SaveReport, error)
	Update(ctx context.Context, contractID string, settled float64, ledger string) (services.SaveReport, error)
	RecordPayment(ctx context.Context, contractID string, date core.Date, amount decimal.Decimal) (services.SaveReport, error)
}

// LoginHistory lists past login attempts.
type LoginHistory interface {
	RecentLogins(ctx context.Context, limit int) ([]storage.LoginEvent, error)
}

// Checker is a dependency probed by /readyz.
type Checker interface {
	Ping(ctx context.Context) error
}

// Config wires the server to its collaborators.
type Config struct {
	Addr          string
	Logger        *log.Logger
	Contracts     ContractService
	Authenticator *auth.Authenticator
	Sessions      *auth.SessionManager
	// History is optional. Without it the dashboard shows no login history.
	History LoginHistory
	// Banner heads customer detail exports; nil exports without it.
	Banner *workbook.Banner
	Checks map[string]Checker

	Production     bool
	RequestTimeout time.Duration
	// LoginRateLimit is the number of login posts allowed per IP per minute.
	LoginRateLimit int
}

type Server struct {
	http.Server
	logger    *log.Logger
	contracts ContractService
	auth      *auth.Authenticator
	sessions  *auth.SessionManager
	history   LoginHistory
	banner    *workbook.Banner
	checks    map[string]Checker
	templates *template.Template
	validate  *validator.Validate
	started   time.Time
}

// NewServer parses the embedded templates and configures routes, returning
// a ready-to-run http.Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Contracts == nil || cfg.Authenticator == nil || cfg.Sessions == nil {
		return nil, fmt.Errorf("http server: contracts, authenticator and sessions are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.DefaultConfig())
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = defaultLoginLimit
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		logger:    cfg.Logger.WithComponent(log.ComponentHTTP),
		contracts: cfg.Contracts,
		auth:      cfg.Authenticator,
		sessions:  cfg.Sessions,
		history:   cfg.History,
		banner:    cfg.Banner,
		checks:    cfg.Checks,
		templates: t,
		validate:  validator.New(),
		started:   time.Now(),
	}

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.RequestID,
		log.Middleware(cfg.Logger),
		middleware.Recoverer,
		middleware.Timeout(cfg.RequestTimeout),
		secureHeaders(s.logger, cfg.Production),
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	files := http.StripPrefix("/static/", http.FileServer(http.FS(static)))
	r.Get("/static/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		files.ServeHTTP(w, r)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.sessionMiddleware)

		r.Get("/login", s.showLogin)
		r.With(httprate.Limit(cfg.LoginRateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
			Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/", s.handleDashboard)
			r.Post("/contracts", s.handleCreateContract)
			r.Post("/contracts/update", s.handleUpdateContract)
			r.Post("/contracts/payment", s.handleRecordPayment)

			for _, kind := range []chart.Kind{chart.Monthly, chart.Quarterly, chart.Customers} {
				r.Get("/charts/"+string(kind)+".svg", s.handleChart(kind))
			}

			r.Get("/export/monthly.xlsx", s.handleExportMonthly)
			r.Get("/export/quarterly.xlsx", s.handleExportQuarterly)
			r.Get("/export/customers.xlsx", s.handleExportCustomers)
			r.Get("/export/contracts.xlsx", s.handleExportContracts)
			r.Get("/export/customer.xlsx", s.handleExportCustomer)
			r.Get("/export/customers.zip", s.handleExportBundle)
		})
	})

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

var templateFuncs = template.FuncMap{
	"vnd": core.FormatVND,
	"date": func(d core.Date) string {
		if !d.Valid() {
			return "—"
		}
		return d.Format("02/01/2006")
	},
	"datetime": func(t time.Time) string {
		return t.Local().Format("02/01/2006 15:04")
	},
	"hasString": func(list []string, v string) bool {
		return slices.Contains(list, v)
	},
	"hasInt": func(list []int, v int) bool {
		return slices.Contains(list, v)
	},
	"join": strings.Join,
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.LogError(r.Context(), "Template execution failed", err, log.OpRender, log.NewFields())
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}
