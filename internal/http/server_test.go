package http

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"hopdong/internal/auth"
	"hopdong/internal/core"
	"hopdong/internal/log"
	"hopdong/internal/services"
	"hopdong/internal/sheets/memory"
	"hopdong/internal/storage"
	"hopdong/internal/workbook"
)

type loginLog struct {
	mu     sync.Mutex
	events []storage.LoginEvent
}

func (l *loginLog) RecordLogin(_ context.Context, e storage.LoginEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.At = time.Now()
	l.events = append([]storage.LoginEvent{e}, l.events...)
	return nil
}

func (l *loginLog) RecentLogins(_ context.Context, limit int) ([]storage.LoginEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) > limit {
		return l.events[:limit], nil
	}
	return l.events, nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type testEnv struct {
	handler http.Handler
	remote  *memory.Store
	logins  *loginLog
}

func newTestEnv(t *testing.T, checks map[string]Checker) *testEnv {
	t.Helper()
	remote := memory.New(
		core.Row{
			core.ColContractID:    "HD-001",
			core.ColCustomerName:  "Công ty A",
			core.ColSignedDate:    "2024-01-15",
			core.ColSettledValue:  "1,500,000",
			core.ColPaymentLedger: "2024-02-01|500000",
		},
		core.Row{
			core.ColContractID:   "HD-002",
			core.ColCustomerName: "Công ty B",
			core.ColSignedDate:   "2024-04-02",
			core.ColSettledValue: 3000000.0,
		},
	)
	svc := services.NewContractService(services.ContractServiceConfig{
		Remote:    remote,
		Pusher:    services.DirectPusher{Store: remote},
		CacheFile: filepath.Join(t.TempDir(), "contracts.xlsx"),
	})

	hash, err := auth.HashPassword("123456", bcrypt.MinCost)
	require.NoError(t, err)
	logins := &loginLog{}
	authenticator, err := auth.NewAuthenticator(auth.Account{Username: "admin", DisplayName: "Quản trị", PasswordHash: hash}, logins)
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Logger:        log.New(log.Config{Output: io.Discard}),
		Contracts:     svc,
		Authenticator: authenticator,
		Sessions:      auth.NewSessionManager(auth.NewMemoryStore(), "auth_token", time.Hour, false),
		History:       logins,
		Checks:        checks,
	})
	require.NoError(t, err)
	return &testEnv{handler: srv.Handler, remote: remote, logins: logins}
}

// client keeps cookies between requests like a browser.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (e *testEnv) client(t *testing.T) *client {
	return &client{t: t, handler: e.handler, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) post(path string, form url.Values, htmx bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if htmx {
		req.Header.Set("HX-Request", "true")
	}
	return c.do(req)
}

func (c *client) login() {
	c.t.Helper()
	rec := c.post("/login", url.Values{"username": {"admin"}, "password": {"123456"}}, false)
	require.Equal(c.t, http.StatusSeeOther, rec.Code)
	require.Equal(c.t, "/", rec.Header().Get("Location"))
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, map[string]Checker{
		"sqlite": pingFunc(func(context.Context) error { return nil }),
	})
	c := env.client(t)

	rec := c.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = c.get("/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"sqlite":"ok"`)
	assert.Empty(t, rec.Result().Cookies(), "health probes never touch sessions")

	env = newTestEnv(t, map[string]Checker{
		"redis": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	})
	rec = env.client(t).get("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestSecurityHeaders(t *testing.T) {
	rec := newTestEnv(t, nil).client(t).get("/login")
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	c := newTestEnv(t, nil).client(t)

	for _, path := range []string{"/", "/charts/monthly.svg", "/export/contracts.xlsx"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusSeeOther, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := c.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("HX-Redirect"))
}

func TestLoginOutcomes(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t)

	rec := c.get("/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), msgLoginPending)

	rec = c.post("/login", url.Values{}, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `data-outcome="pending"`)

	rec = c.post("/login", url.Values{"username": {"admin"}, "password": {"wrong"}}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), msgLoginRejected)
	assert.Contains(t, rec.Body.String(), `value="admin"`)
	assert.Empty(t, c.cookies, "a rejected attempt starts no session")

	c.login()
	rec = c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, msgLoginSuccess)
	assert.Contains(t, body, "Quản trị")
	assert.Contains(t, body, "HD-001")
	assert.Contains(t, body, "Lịch sử đăng nhập")

	require.Len(t, env.logins.events, 2, "pending attempts are not recorded")
	assert.Equal(t, "authenticated", env.logins.events[0].Outcome)
	assert.Equal(t, "rejected", env.logins.events[1].Outcome)

	rec = c.get("/login")
	assert.Equal(t, http.StatusSeeOther, rec.Code, "signed-in users skip the login page")
}

func TestLogout(t *testing.T) {
	c := newTestEnv(t, nil).client(t)
	c.login()

	rec := c.post("/logout", nil, false)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, c.cookies)

	rec = c.get("/")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestLoginRateLimit(t *testing.T) {
	c := newTestEnv(t, nil).client(t)
	form := url.Values{"username": {"admin"}, "password": {"wrong"}}

	for i := 0; i < defaultLoginLimit; i++ {
		rec := c.post("/login", form, false)
		require.Equal(t, http.StatusBadRequest, rec.Code, "attempt %d", i+1)
	}
	rec := c.post("/login", form, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestDashboardFilter(t *testing.T) {
	c := newTestEnv(t, nil).client(t)
	c.login()

	rec := c.get("/?customer=" + url.QueryEscape("Công ty B"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<td>HD-002</td>")
	assert.NotContains(t, body, "<td>HD-001</td>")
	assert.Contains(t, body, "/charts/monthly.svg?customer=C%C3%B4ng+ty+B")
}

func TestCreateContractHTMX(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t)
	c.login()

	rec := c.post("/contracts", url.Values{
		"contract_id":    {"HD-003"},
		"customer_name":  {"Công ty C"},
		"signed_date":    {"2024-07-01"},
		"settled_value":  {"2.500.000"},
		"invoice_status": {core.InvoiceNotIssued},
		"invoice_date":   {"2024-07-05"},
	}, true)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	trigger := rec.Header().Get("HX-Trigger")
	assert.Contains(t, trigger, `"contracts:changed"`)
	assert.Contains(t, trigger, `"contract_id":"HD-003"`)
	assert.Contains(t, trigger, `"type":"success"`)
	assert.Equal(t, 3, env.remote.Len())

	rows, err := env.remote.ReadAll(context.Background())
	require.NoError(t, err)
	created := core.NormalizeRows(rows)[2]
	assert.Equal(t, 2500000.0, created.SettledValue)
	assert.Equal(t, core.StatusInProgress, created.ContractStatus)
	assert.False(t, created.InvoiceDate.Valid(), "invoice date is dropped while not invoiced")
}

func TestCreateContractValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t)
	c.login()

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"missing id", url.Values{"customer_name": {"X"}, "settled_value": {"1"}}, "Mã hợp đồng là bắt buộc"},
		{"bad date", url.Values{"contract_id": {"X"}, "customer_name": {"X"}, "settled_value": {"1"}, "signed_date": {"15/01/2024"}}, "Ngày ký không đúng định dạng ngày"},
		{"bad value", url.Values{"contract_id": {"X"}, "customer_name": {"X"}, "settled_value": {"abc"}}, "Giá trị quyết toán không hợp lệ"},
		{"negative value", url.Values{"contract_id": {"X"}, "customer_name": {"X"}, "settled_value": {"-5"}}, "Giá trị quyết toán không hợp lệ"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := c.post("/contracts", tt.form, true)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
			assert.Contains(t, rec.Header().Get("HX-Trigger"), `"type":"error"`)
		})
	}
	assert.Equal(t, 2, env.remote.Len())
}

func TestCreateContractPlainPost(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t)
	c.login()
	c.get("/") // consume the login flash

	env.remote.Fail(errors.New("timeout"))
	rec := c.post("/contracts", url.Values{
		"contract_id":   {"HD-004"},
		"customer_name": {"Công ty D"},
		"settled_value": {"1000"},
	}, false)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	env.remote.Fail(nil)
	body := c.get("/").Body.String()
	assert.Contains(t, body, "Đã thêm hợp đồng HD-004")
	assert.Contains(t, body, services.WarnRemotePush)
}

func TestUpdateAndPayment(t *testing.T) {
	env := newTestEnv(t, nil)
	c := env.client(t)
	c.login()

	rec := c.post("/contracts/update", url.Values{
		"contract_id":    {"HD-002"},
		"settled_value":  {"3,200,000"},
		"payment_ledger": {"2024-05-01|1000000"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("HX-Trigger"), `"changed":1`)

	rec = c.post("/contracts/payment", url.Values{
		"contract_id": {"HD-002"},
		"date":        {"2024-06-01"},
		"amount":      {"200000"},
	}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rows, err := env.remote.ReadAll(context.Background())
	require.NoError(t, err)
	updated := core.NormalizeRows(rows)[1]
	assert.Equal(t, 3200000.0, updated.SettledValue)
	assert.Equal(t, "2024-05-01|1000000;2024-06-01|200000", updated.PaymentLedger)
	assert.Equal(t, 2000000.0, updated.RemainingBalance)

	rec = c.post("/contracts/update", url.Values{"contract_id": {"HD-404"}, "settled_value": {"1"}}, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = c.post("/contracts/payment", url.Values{"contract_id": {"HD-002"}, "date": {"2024-06-01"}, "amount": {"0"}}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCharts(t *testing.T) {
	c := newTestEnv(t, nil).client(t)
	c.login()

	for _, kind := range []string{"monthly", "quarterly", "customers"} {
		rec := c.get("/charts/" + kind + ".svg")
		require.Equal(t, http.StatusOK, rec.Code, kind)
		assert.Equal(t, "image/svg+xml; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasPrefix(rec.Body.String(), "<svg"), kind)
	}

	rec := c.get("/charts/monthly.svg?year=1999")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Không có dữ liệu")
}

func TestExports(t *testing.T) {
	c := newTestEnv(t, nil).client(t)
	c.login()

	rec := c.get("/export/customers.xlsx")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeXLSX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "doanh_thu_theo_khach_hang.xlsx")
	totals, err := workbook.ReadCustomerSummary(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Công ty A": 1500000, "Công ty B": 3000000}, totals)

	for _, path := range []string{"/export/monthly.xlsx?year=2024", "/export/quarterly.xlsx", "/export/contracts.xlsx"} {
		rec := c.get(path)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.NotZero(t, rec.Body.Len(), path)
	}

	rec = c.get("/export/customer.xlsx?name=" + url.QueryEscape("Công ty A"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Cong_ty_A.xlsx")

	assert.Equal(t, http.StatusBadRequest, c.get("/export/customer.xlsx").Code)
	assert.Equal(t, http.StatusNotFound, c.get("/export/customer.xlsx?name=Nobody").Code)

	rec = c.get("/export/customers.zip")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contentTypeZIP, rec.Header().Get("Content-Type"))
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"Cong_ty_A.xlsx", "Cong_ty_B.xlsx"}, names)
}

func TestNewServerRequiresCollaborators(t *testing.T) {
	_, err := NewServer(Config{})
	assert.Error(t, err)
}
