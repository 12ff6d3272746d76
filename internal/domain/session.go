package domain

import (
	"context"
	"time"
)

// Identity is the auth-service view of a user.
type Identity struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
}

type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Identity     Identity  `json:"user"`
}

// Same reports whether s and other are the same session. Sessions are compared
// by access token; a refreshed session is a different session.
func (s *Session) Same(other *Session) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.AccessToken == other.AccessToken
}

// ExpiresWithin reports whether the session expires within d of now.
func (s *Session) ExpiresWithin(now time.Time, d time.Duration) bool {
	if s == nil || s.ExpiresAt.IsZero() {
		return false
	}
	return !s.ExpiresAt.After(now.Add(d))
}

type AuthEvent string

const (
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// SessionListener receives session-change notifications. session is nil on sign-out.
type SessionListener func(ctx context.Context, event AuthEvent, session *Session)

// Subscription is a handle on a registered SessionListener.
type Subscription interface {
	Unsubscribe()
}

// AuthCollaborator is the backend auth service. Errors are *AuthError where the
// backend produced a classified failure.
type AuthCollaborator interface {
	SignIn(ctx context.Context, email, password string) (*Session, error)
	// SignUp returns a nil session when the identity must confirm its email first.
	SignUp(ctx context.Context, email, password, redirectTo string) (*Identity, *Session, error)
	GetSession(ctx context.Context) (*Session, error)
	Subscribe(listener SessionListener) Subscription
	SignOut(ctx context.Context) error
	ResendVerification(ctx context.Context, email, redirectTo string) error
}

// SessionStore persists the collaborator's current session between runs.
// Load returns (nil, nil) when nothing is stored.
type SessionStore interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Clear(ctx context.Context) error
}

// State is a snapshot of the session manager.
type State struct {
	Session *Session `json:"session"`
	User    *User    `json:"user"`
	Loading bool     `json:"loading"`
}

type RegisterInput struct {
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Password        string   `json:"password"`
	PasswordConfirm string   `json:"confirmPassword"`
	UserType        UserType `json:"userType"`
	Profile         Profile  `json:"-"`
}

// SessionManager owns the authenticated session and the projected user.
type SessionManager interface {
	Initialize(ctx context.Context)
	Login(ctx context.Context, email, password string) AuthResult
	Register(ctx context.Context, input RegisterInput) AuthResult
	Logout(ctx context.Context) AuthResult
	ResendConfirmation(ctx context.Context, email string) AuthResult
	SaveProfile(ctx context.Context, userType UserType, profile Profile) AuthResult
	State() State
	Subscribe(observer func(State)) (unsubscribe func())
	Dispose()
}
