package http

import (
	"net/http"
	"time"

	"hopdong/internal/auth"
	"hopdong/internal/log"
)

// Login page notices.
const (
	msgLoginPending  = "🔒 Vui lòng đăng nhập để tiếp tục"
	msgLoginRejected = "❌ Sai tên đăng nhập hoặc mật khẩu"
	msgLoginSuccess  = "✅ Đăng nhập thành công"
	msgLoggedOut     = "Bạn đã đăng xuất"
)

type loginPage struct {
	Title    string
	Username string
	Outcome  string
	Message  string
	Flashes  []auth.FlashMessage
}

func (s *Server) showLogin(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess != nil && sess.Authenticated() {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	s.renderLogin(w, r, http.StatusOK, "", auth.Pending)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	ctx := r.Context()

	// the password is compared verbatim
	form := loginForm{
		Username: formValue(r, "username"),
		Password: r.PostFormValue("password"),
	}

	outcome := auth.Rejected
	if err := s.validate.Struct(form); err == nil {
		outcome = s.auth.Authenticate(ctx, auth.Attempt{
			Username:  form.Username,
			Password:  form.Password,
			ClientIP:  clientIP(r),
			UserAgent: r.UserAgent(),
		})
	}

	switch outcome {
	case auth.Authenticated:
		account := s.auth.Account()
		if sess := auth.SessionFromContext(ctx); sess != nil {
			sess.SignIn(account.Username, account.DisplayName, time.Now())
			sess.AddFlash(string(NotificationSuccess), msgLoginSuccess)
		}
		log.FromContext(ctx).InfoContext(ctx, "User signed in", log.FieldUsername, account.Username)
		if isHTMX(r) {
			NewHTMXResponse().Redirect("/").Write(w)
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case auth.Pending:
		s.renderLogin(w, r, http.StatusOK, form.Username, outcome)
	default:
		s.renderLogin(w, r, http.StatusBadRequest, form.Username, outcome)
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		s.sessions.Destroy(sess)
	}
	http.Redirect(w, r, "/login?logged_out=1", http.StatusSeeOther)
}

func (s *Server) renderLogin(w http.ResponseWriter, r *http.Request, status int, username string, outcome auth.Outcome) {
	page := loginPage{
		Title:    "Đăng nhập",
		Username: username,
		Outcome:  outcome.String(),
		Message:  msgLoginPending,
	}
	if outcome == auth.Rejected {
		page.Message = msgLoginRejected
	}
	if r.URL.Query().Get("logged_out") != "" {
		page.Flashes = append(page.Flashes, auth.FlashMessage{Kind: string(NotificationInfo), Message: msgLoggedOut})
	}
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		page.Flashes = append(page.Flashes, sess.PopFlashes()...)
	}
	s.render(w, r, status, "login.html", page)
}
