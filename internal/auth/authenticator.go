package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"hopdong/internal/storage"
)

// Outcome is the result of an authentication attempt.
type Outcome int

const (
	// Pending means nothing was submitted yet.
	Pending Outcome = iota
	Rejected
	Authenticated
)

func (o Outcome) String() string {
	switch o {
	case Authenticated:
		return "authenticated"
	case Rejected:
		return "rejected"
	default:
		return "pending"
	}
}

// ErrMissingPasswordHash is returned when no account hash is configured.
var ErrMissingPasswordHash = errors.New("missing password hash")

// LoginRecorder appends login attempts to the login history.
type LoginRecorder interface {
	RecordLogin(ctx context.Context, e storage.LoginEvent) error
}

// Account is the single user allowed to sign in.
type Account struct {
	Username     string
	DisplayName  string
	PasswordHash string
}

// Attempt is one submitted login form.
type Attempt struct {
	Username  string
	Password  string
	ClientIP  string
	UserAgent string
}

// Authenticator checks credentials against one fixed account.
type Authenticator struct {
	account  Account
	hash     []byte
	recorder LoginRecorder
}

func NewAuthenticator(account Account, recorder LoginRecorder) (*Authenticator, error) {
	if account.PasswordHash == "" {
		return nil, ErrMissingPasswordHash
	}
	if _, err := bcrypt.Cost([]byte(account.PasswordHash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	if account.DisplayName == "" {
		account.DisplayName = account.Username
	}
	return &Authenticator{
		account:  account,
		hash:     []byte(account.PasswordHash),
		recorder: recorder,
	}, nil
}

// Account returns the configured account without its hash.
func (a *Authenticator) Account() Account {
	acc := a.account
	acc.PasswordHash = ""
	return acc
}

// Authenticate checks an attempt. An empty attempt is Pending and is not
// recorded; every other attempt lands in the login history.
func (a *Authenticator) Authenticate(ctx context.Context, at Attempt) Outcome {
	username := strings.TrimSpace(at.Username)
	if username == "" && at.Password == "" {
		return Pending
	}

	// the hash is compared even for unknown users
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.account.Username)) == 1
	passOK := bcrypt.CompareHashAndPassword(a.hash, []byte(at.Password)) == nil

	outcome := Rejected
	if userOK && passOK {
		outcome = Authenticated
	}

	if a.recorder != nil {
		err := a.recorder.RecordLogin(ctx, storage.LoginEvent{
			Username:  username,
			Outcome:   outcome.String(),
			ClientIP:  at.ClientIP,
			UserAgent: at.UserAgent,
		})
		if err != nil {
			slog.ErrorContext(ctx, "Failed to record login attempt", "username", username, "error", err)
		}
	}

	slog.InfoContext(ctx, "Login attempt", "username", username, "outcome", outcome.String(), "client_ip", at.ClientIP)
	return outcome
}

// HashPassword returns a bcrypt hash suitable for AUTH_PASSWORD_HASH.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", errors.New("empty password")
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
