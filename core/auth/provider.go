package auth

import (
	"context"
	"errors"
	"time"
)

// Identity is the authenticated principal as known by the IdentityProvider.
// It is read-only from this package's perspective.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is an open authenticated session with its bearer token.
type Session struct {
	Identity  Identity
	Token     string
	ExpiresAt time.Time
}

// Event identifies an auth state change notification.
type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Known provider failures, pattern-matched by Classify.
var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAccountExists      = errors.New("user already registered")
	ErrEmailNotConfirmed  = errors.New("email not confirmed")
	ErrWeakPassword       = errors.New("weak password")
	ErrInvalidEmail       = errors.New("invalid email format")
)

// IdentityProvider manages credential-based sign-in/sign-up and exposes the
// current authenticated session plus change notifications.
type IdentityProvider interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignUp creates an account. A nil Session with a nil error means the
	// account was created but email confirmation is still pending.
	SignUp(ctx context.Context, email, password string) (Identity, *Session, error)

	SignOut(ctx context.Context) error

	// GetSession returns the currently open session, or nil when signed out.
	// A session token carried by ctx (see ContextWithToken) takes precedence
	// over the provider's own persisted session.
	GetSession(ctx context.Context) (*Session, error)

	// OnAuthStateChange registers a callback fired on every sign-in, sign-out
	// and token refresh. Callbacks must be idempotent-safe: they re-run role
	// resolution on each event.
	OnAuthStateChange(callback func(event Event, session *Session))
}

type ctxKey int

const tokenCtxKey ctxKey = iota

// ContextWithToken returns a Context carrying a session token, letting
// callers (eg. an HTTP request) scope identity resolution to that token.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenCtxKey, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenCtxKey).(string)
	return token, ok
}
