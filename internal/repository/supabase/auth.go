package supabase

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/metrics"

	"github.com/golang-jwt/jwt/v5"
)

type userResponse struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Phone            string     `json:"phone"`
	CreatedAt        time.Time  `json:"created_at"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
}

func (u userResponse) identity() domain.Identity {
	return domain.Identity{
		ID:               u.ID,
		Email:            u.Email,
		Phone:            u.Phone,
		CreatedAt:        u.CreatedAt,
		EmailConfirmedAt: u.EmailConfirmedAt,
	}
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	RefreshToken string       `json:"refresh_token"`
	User         userResponse `json:"user"`
}

// signUpResponse is either a session (auto-confirm) or a bare user object.
type signUpResponse struct {
	tokenResponse
	userResponse
}

var _ domain.AuthCollaborator = (*AuthClient)(nil)

// AuthClient is the GoTrue-backed AuthCollaborator. It keeps the current
// session in a SessionStore and notifies subscribers synchronously, in
// registration order, whenever the session changes.
type AuthClient struct {
	client        *Client
	store         domain.SessionStore
	refreshMargin time.Duration
	metrics       metrics.MetricsCollector
	now           func() time.Time

	mu        sync.Mutex
	session   *domain.Session
	loaded    bool
	listeners map[int]domain.SessionListener
	nextID    int

	refreshMu sync.Mutex
}

func NewAuthClient(client *Client, store domain.SessionStore, refreshMargin time.Duration, m metrics.MetricsCollector) *AuthClient {
	if m == nil {
		m = metrics.Nop{}
	}
	return &AuthClient{
		client:        client,
		store:         store,
		refreshMargin: refreshMargin,
		metrics:       m,
		now:           time.Now,
		listeners:     make(map[int]domain.SessionListener),
	}
}

func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	var tok tokenResponse
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   map[string]string{"email": email, "password": password},
	}, &tok)
	if err != nil {
		return nil, err
	}
	session := a.toSession(tok)
	a.setSession(ctx, session, domain.EventSignedIn)
	return session, nil
}

func (a *AuthClient) SignUp(ctx context.Context, email, password, redirectTo string) (*domain.Identity, *domain.Session, error) {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	var resp signUpResponse
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		query:  query,
		body:   map[string]string{"email": email, "password": password},
	}, &resp)
	if err != nil {
		return nil, nil, err
	}

	if resp.AccessToken == "" {
		identity := resp.userResponse.identity()
		if identity.ID == "" {
			return nil, nil, nil
		}
		return &identity, nil, nil
	}
	session := a.toSession(resp.tokenResponse)
	a.setSession(ctx, session, domain.EventSignedIn)
	identity := session.Identity
	return &identity, session, nil
}

// GetSession returns the stored session, refreshing it first when it expires
// within the refresh margin. A rejected refresh signs the session out.
func (a *AuthClient) GetSession(ctx context.Context) (*domain.Session, error) {
	session, err := a.current(ctx)
	if err != nil || session == nil {
		return nil, err
	}
	if !session.ExpiresWithin(a.now(), a.refreshMargin) {
		return session, nil
	}
	return a.Refresh(ctx)
}

func (a *AuthClient) current(ctx context.Context) (*domain.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loaded {
		return a.session, nil
	}
	session, err := a.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	a.session = session
	a.loaded = true
	return session, nil
}

// Refresh exchanges the refresh token for a new session and emits
// TOKEN_REFRESHED. Listeners run after the refresh lock is released so they
// may call GetSession.
func (a *AuthClient) Refresh(ctx context.Context) (*domain.Session, error) {
	session, event, listeners, err := a.refresh(ctx)
	if listeners != nil {
		a.dispatch(ctx, listeners, event, session)
	}
	return session, err
}

func (a *AuthClient) refresh(ctx context.Context) (*domain.Session, domain.AuthEvent, []domain.SessionListener, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	session, err := a.current(ctx)
	if err != nil || session == nil {
		return nil, "", nil, err
	}
	// Another caller may have refreshed while we waited.
	if !session.ExpiresWithin(a.now(), a.refreshMargin) {
		return session, "", nil, nil
	}

	var tok tokenResponse
	err = a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": session.RefreshToken},
	}, &tok)
	if err != nil {
		a.metrics.RecordSessionRefresh(false)
		if domain.KindOf(err) == domain.KindTransport {
			return nil, "", nil, err
		}
		logger.Log.Warn("Refresh token rejected, signing out", "user_id", session.Identity.ID, "error", err)
		return nil, domain.EventSignedOut, a.apply(ctx, nil, domain.EventSignedOut), err
	}

	refreshed := a.toSession(tok)
	a.metrics.RecordSessionRefresh(true)
	return refreshed, domain.EventTokenRefreshed, a.apply(ctx, refreshed, domain.EventTokenRefreshed), nil
}

// StartAutoRefresh refreshes the session in the background every interval
// until ctx is cancelled or the returned stop func is called.
func (a *AuthClient) StartAutoRefresh(ctx context.Context, interval time.Duration) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := a.GetSession(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Log.Warn("Background session refresh failed", "error", err)
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// SignOut revokes the session remotely and always clears it locally. A 401 or
// 404 from GoTrue means the session was already gone and is not an error.
func (a *AuthClient) SignOut(ctx context.Context) error {
	session, _ := a.current(ctx)
	var err error
	if session != nil {
		err = a.client.do(ctx, request{
			method: http.MethodPost,
			path:   "/auth/v1/logout",
			bearer: session.AccessToken,
		}, nil)
		var authErr *domain.AuthError
		if errors.As(err, &authErr) && (authErr.Status == http.StatusUnauthorized || authErr.Status == http.StatusNotFound) {
			err = nil
		}
	}
	a.setSession(ctx, nil, domain.EventSignedOut)
	return err
}

func (a *AuthClient) ResendVerification(ctx context.Context, email, redirectTo string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	return a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/resend",
		query:  query,
		body:   map[string]string{"type": "signup", "email": email},
	}, nil)
}

type subscription struct {
	once sync.Once
	fn   func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.fn)
}

func (a *AuthClient) Subscribe(listener domain.SessionListener) domain.Subscription {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = listener
	a.mu.Unlock()

	return &subscription{fn: func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}}
}

// AccessToken returns the current access token, or "" when signed out. It is
// the token source for PostgREST calls made on the user's behalf.
func (a *AuthClient) AccessToken(ctx context.Context) (string, error) {
	session, err := a.GetSession(ctx)
	if err != nil || session == nil {
		return "", err
	}
	return session.AccessToken, nil
}

func (a *AuthClient) setSession(ctx context.Context, session *domain.Session, event domain.AuthEvent) {
	a.dispatch(ctx, a.apply(ctx, session, event), event, session)
}

// apply replaces and persists the current session and returns the listeners
// to notify, in registration order.
func (a *AuthClient) apply(ctx context.Context, session *domain.Session, event domain.AuthEvent) []domain.SessionListener {
	a.mu.Lock()
	a.session = session
	a.loaded = true
	listeners := make([]domain.SessionListener, 0, len(a.listeners))
	for id := 0; id < a.nextID; id++ {
		if l, ok := a.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	a.mu.Unlock()

	var err error
	if session == nil {
		err = a.store.Clear(ctx)
	} else {
		err = a.store.Save(ctx, session)
	}
	if err != nil {
		logger.Log.Error("Failed to persist session", "event", event, "error", err)
	}
	return listeners
}

func (a *AuthClient) dispatch(ctx context.Context, listeners []domain.SessionListener, event domain.AuthEvent, session *domain.Session) {
	for _, l := range listeners {
		l(ctx, event, session)
	}
}

func (a *AuthClient) toSession(tok tokenResponse) *domain.Session {
	return &domain.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    a.expiry(tok),
		Identity:     tok.User.identity(),
	}
}

// expiry prefers expires_at, then expires_in, then the exp claim of the token.
func (a *AuthClient) expiry(tok tokenResponse) time.Time {
	if tok.ExpiresAt > 0 {
		return time.Unix(tok.ExpiresAt, 0)
	}
	if tok.ExpiresIn > 0 {
		return a.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return time.Time{}
}
