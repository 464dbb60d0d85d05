package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// FlashMessage is a one-time notification carried across a redirect.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionManager runs cookie sessions on top of a Store.
type SessionManager struct {
	store      Store
	cookieName string
	ttl        time.Duration
	secure     bool
}

// Session is the per-request session state.
type Session struct {
	ID        string
	prevID    string
	user      string
	name      string
	loginAt   time.Time
	flashes   []FlashMessage
	isNew     bool
	dirty     bool
	destroyed bool
}

type sessionPayload struct {
	User    string         `json:"user"`
	Name    string         `json:"name"`
	LoginAt time.Time      `json:"login_at"`
	Flashes []FlashMessage `json:"flashes,omitempty"`
}

func NewSessionManager(store Store, cookieName string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{
		store:      store,
		cookieName: cookieName,
		ttl:        ttl,
		secure:     secure,
	}
}

// Load returns the request's session, or a fresh one when the cookie is
// missing, unknown or expired.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return sm.newSession(), nil
		}
		return nil, err
	}

	data, err := sm.store.Get(ctx, cookie.Value)
	if errors.Is(err, ErrSessionNotFound) {
		return sm.newSession(), nil
	}
	if err != nil {
		return nil, err
	}

	var stored sessionPayload
	if err := json.Unmarshal(data, &stored); err != nil {
		return sm.newSession(), nil
	}

	return &Session{
		ID:      cookie.Value,
		user:    stored.User,
		name:    stored.Name,
		loginAt: stored.LoginAt,
		flashes: stored.Flashes,
	}, nil
}

// Commit persists changes and writes the cookie. Anonymous sessions without
// pending flashes are never stored.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, sess *Session) error {
	if sess == nil {
		return nil
	}

	if sess.destroyed {
		if err := sm.store.Delete(ctx, sess.ID); err != nil {
			return err
		}
		http.SetCookie(w, &http.Cookie{
			Name:     sm.cookieName,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   sm.secure,
			SameSite: http.SameSiteStrictMode,
		})
		return nil
	}

	if sess.prevID != "" {
		if err := sm.store.Delete(ctx, sess.prevID); err != nil {
			return err
		}
		sess.prevID = ""
	}

	if !sess.dirty {
		return nil
	}
	if sess.user == "" && len(sess.flashes) == 0 {
		if sess.isNew {
			return nil
		}
		sess.dirty = false
		return sm.store.Delete(ctx, sess.ID)
	}

	data, err := json.Marshal(sessionPayload{
		User:    sess.user,
		Name:    sess.name,
		LoginAt: sess.loginAt,
		Flashes: sess.flashes,
	})
	if err != nil {
		return err
	}
	if err := sm.store.Set(ctx, sess.ID, data, sm.ttl); err != nil {
		return err
	}
	sess.dirty = false
	sess.isNew = false

	http.SetCookie(w, &http.Cookie{
		Name:     sm.cookieName,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(sm.ttl),
		MaxAge:   int(sm.ttl.Seconds()),
	})
	return nil
}

// Destroy marks the session for deletion on the next Commit.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.destroyed = true
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// CookieName returns the cookie identifier used for sessions.
func (sm *SessionManager) CookieName() string {
	return sm.cookieName
}

// SignIn binds the session to a user under a new id.
func (s *Session) SignIn(user, displayName string, at time.Time) {
	if !s.isNew {
		s.prevID = s.ID
	}
	s.ID = newSessionID()
	s.user = user
	s.name = displayName
	s.loginAt = at
	s.isNew = true
	s.dirty = true
}

// User returns the signed-in username, or "" for anonymous sessions.
func (s *Session) User() string {
	return s.user
}

// DisplayName returns the signed-in user's display name.
func (s *Session) DisplayName() string {
	return s.name
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool {
	return s != nil && s.user != "" && !s.destroyed
}

// AddFlash queues a flash message.
func (s *Session) AddFlash(kind, message string) {
	s.flashes = append(s.flashes, FlashMessage{Kind: kind, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears every queued flash.
func (s *Session) PopFlashes() []FlashMessage {
	if len(s.flashes) == 0 {
		return nil
	}
	out := s.flashes
	s.flashes = nil
	s.dirty = true
	return out
}

func (sm *SessionManager) newSession() *Session {
	return &Session{
		ID:    newSessionID(),
		isNew: true,
	}
}

func newSessionID() string {
	return uuid.NewString()
}

type sessionKey struct{}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the request session, or nil.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}
