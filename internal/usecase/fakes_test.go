package usecase_test

import (
	"context"
	"sync"
	"time"

	"agribid-backend/internal/domain"

	"github.com/stretchr/testify/mock"
)

// fakeAuth is an AuthCollaborator that dispatches session events synchronously,
// the same way the Supabase client does.
type fakeAuth struct {
	mu        sync.Mutex
	session   *domain.Session
	listeners map[int]domain.SessionListener
	nextID    int

	signIn     func(ctx context.Context, email, password string) (*domain.Session, error)
	signUp     func(ctx context.Context, email, password, redirectTo string) (*domain.Identity, *domain.Session, error)
	getSession func(ctx context.Context) (*domain.Session, error)
	getErr     error
	signOutErr error
	resendErr  error

	signInCalls  int
	signOutCalls int
	unsubscribed int
	redirects    []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{listeners: make(map[int]domain.SessionListener)}
}

func sessionFor(id, email string) *domain.Session {
	return &domain.Session{
		AccessToken:  "access-" + id,
		RefreshToken: "refresh-" + id,
		TokenType:    "bearer",
		ExpiresAt:    time.Now().Add(time.Hour),
		Identity: domain.Identity{
			ID:        id,
			Email:     email,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func (f *fakeAuth) emit(ctx context.Context, event domain.AuthEvent, s *domain.Session) {
	f.mu.Lock()
	listeners := make([]domain.SessionListener, 0, len(f.listeners))
	for id := 0; id < f.nextID; id++ {
		if l, ok := f.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	f.mu.Unlock()
	for _, l := range listeners {
		l(ctx, event, s)
	}
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) (*domain.Session, error) {
	f.mu.Lock()
	f.signInCalls++
	fn := f.signIn
	f.mu.Unlock()

	var s *domain.Session
	var err error
	if fn != nil {
		s, err = fn(ctx, email, password)
	} else {
		s = sessionFor("user-"+email, email)
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.emit(ctx, domain.EventSignedIn, s)
	return s, nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password, redirectTo string) (*domain.Identity, *domain.Session, error) {
	f.mu.Lock()
	f.redirects = append(f.redirects, redirectTo)
	fn := f.signUp
	f.mu.Unlock()

	if fn == nil {
		id := &domain.Identity{ID: "new-" + email, Email: email, CreatedAt: time.Now()}
		return id, nil, nil
	}
	identity, s, err := fn(ctx, email, password, redirectTo)
	if err != nil || s == nil {
		return identity, s, err
	}
	f.mu.Lock()
	f.session = s
	f.mu.Unlock()
	f.emit(ctx, domain.EventSignedIn, s)
	return identity, s, nil
}

func (f *fakeAuth) GetSession(ctx context.Context) (*domain.Session, error) {
	f.mu.Lock()
	fn := f.getSession
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.session, nil
}

type fakeSubscription struct {
	once sync.Once
	fn   func()
}

func (s *fakeSubscription) Unsubscribe() { s.once.Do(s.fn) }

func (f *fakeAuth) Subscribe(listener domain.SessionListener) domain.Subscription {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = listener
	f.mu.Unlock()
	return &fakeSubscription{fn: func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.unsubscribed++
		f.mu.Unlock()
	}}
}

func (f *fakeAuth) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.session = nil
	err := f.signOutErr
	f.mu.Unlock()
	f.emit(ctx, domain.EventSignedOut, nil)
	return err
}

func (f *fakeAuth) ResendVerification(ctx context.Context, email, redirectTo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.redirects = append(f.redirects, redirectTo)
	return f.resendErr
}

func (f *fakeAuth) listenerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

// MockProfileRepo is used where a test needs to inject repository failures.
type MockProfileRepo struct {
	mock.Mock
}

func (m *MockProfileRepo) GetByUserID(ctx context.Context, userID string) (*domain.ProfileRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProfileRecord), args.Error(1)
}

func (m *MockProfileRepo) Upsert(ctx context.Context, record *domain.ProfileRecord) error {
	return m.Called(ctx, record).Error(0)
}

type MockProductRepo struct {
	mock.Mock
}

func (m *MockProductRepo) Fetch(ctx context.Context, filter domain.ProductFilter, limit, offset int) ([]domain.Product, int64, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Get(1).(int64), args.Error(2)
}

func (m *MockProductRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductRepo) Create(ctx context.Context, product *domain.Product) error {
	return m.Called(ctx, product).Error(0)
}
