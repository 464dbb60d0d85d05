package http

import (
	"context"
	"net"
	"net/http"

	"github.com/unrolled/secure"

	"hopdong/internal/auth"
	"hopdong/internal/log"
)

const contentSecurityPolicy = "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self'; img-src 'self' data:; connect-src 'self'"

func secureHeaders(logger *log.Logger, production bool) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: contentSecurityPolicy,
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				logger.WarnContext(r.Context(), "Secure headers blocked request", log.FieldError, err, log.FieldPath, r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// sessionWriter commits the session right before the response header is
// written, the last moment a cookie can still be set.
type sessionWriter struct {
	http.ResponseWriter
	ctx           context.Context
	sess          *auth.Session
	manager       *auth.SessionManager
	headerWritten bool
}

func (w *sessionWriter) WriteHeader(statusCode int) {
	if !w.headerWritten {
		w.headerWritten = true
		if err := w.manager.Commit(w.ctx, w.ResponseWriter, w.sess); err != nil {
			log.FromContext(w.ctx).ErrorContext(w.ctx, "Session commit failed", log.FieldError, err)
		}
	}
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *sessionWriter) Write(data []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(data)
}

func (w *sessionWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, err := s.sessions.Load(ctx, r)
		if err != nil {
			log.LogError(ctx, "Session load failed", err, log.OpLogin, log.NewFields())
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		ctx = auth.WithSession(ctx, sess)

		sw := &sessionWriter{ResponseWriter: w, ctx: ctx, sess: sess, manager: s.sessions}
		next.ServeHTTP(sw, r.WithContext(ctx))
		if !sw.headerWritten {
			sw.WriteHeader(http.StatusOK)
		}
	})
}

// requireAuth sends anonymous visitors to the login page. htmx requests get
// an HX-Redirect so the whole page navigates.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := auth.SessionFromContext(r.Context())
		if sess != nil && sess.Authenticated() {
			next.ServeHTTP(w, r)
			return
		}
		if isHTMX(r) {
			NewHTMXResponse().Redirect("/login").Status(http.StatusUnauthorized).Write(w)
			return
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	})
}

// clientIP returns the address set by the RealIP middleware without its port.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
