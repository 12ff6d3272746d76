package usecase

import (
	"context"
	"sync"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/metrics"
	"agribid-backend/pkg/validation"

	"github.com/go-playground/validator/v10"
)

// SessionConfig tunes the credential operations of a session manager.
type SessionConfig struct {
	EmailRedirectURL     string
	ProfileWriteAttempts int
	ProfileWriteBackoff  time.Duration
}

type sessionManager struct {
	auth      domain.AuthCollaborator
	profiles  domain.ProfileRepository
	projector domain.UserProjector
	profileUC domain.ProfileUsecase
	validate  *validator.Validate
	metrics   metrics.MetricsCollector
	cfg       SessionConfig

	mu          sync.Mutex
	session     *domain.Session
	user        *domain.User
	initialized bool
	inFlight    int
	logoutGen   uint64
	writeGen    uint64 // bumped on every session write
	observers   map[int]func(domain.State)
	nextID      int
	notifying   bool
	dirty       bool

	sub         domain.Subscription
	disposeOnce sync.Once
}

// NewSessionManager wires a manager to its collaborators and subscribes it to
// session-change notifications. Callers must call Dispose when done.
func NewSessionManager(
	auth domain.AuthCollaborator,
	profiles domain.ProfileRepository,
	projector domain.UserProjector,
	validate *validator.Validate,
	m metrics.MetricsCollector,
	cfg SessionConfig,
) domain.SessionManager {
	if m == nil {
		m = metrics.Nop{}
	}
	if validate == nil {
		validate = validation.New()
	}
	if cfg.ProfileWriteAttempts < 1 {
		cfg.ProfileWriteAttempts = 1
	}
	sm := &sessionManager{
		auth:      auth,
		profiles:  profiles,
		projector: projector,
		profileUC: NewProfileUsecase(profiles, projector, validate),
		validate:  validate,
		metrics:   m,
		cfg:       cfg,
		observers: make(map[int]func(domain.State)),
	}
	sm.sub = auth.Subscribe(sm.onSessionChanged)
	return sm
}

func (m *sessionManager) Initialize(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		m.initialized = true
		m.mu.Unlock()
		m.notify()
	}()

	gen := m.currentWriteGen()
	session, err := m.auth.GetSession(ctx)
	if err != nil {
		logger.Log.Error("Failed to load initial session", "error", err)
		session = nil
	}
	// A login, logout or auth event that landed during GetSession is newer.
	if !m.applyInitial(session, gen) {
		logger.Log.Debug("Discarding stale initial session")
		return
	}
	if session != nil {
		m.resolve(ctx, session)
	}
}

// applyInitial installs the session read at start-up unless another write
// happened since gen was read.
func (m *sessionManager) applyInitial(session *domain.Session, gen uint64) bool {
	m.mu.Lock()
	if m.writeGen != gen {
		m.mu.Unlock()
		return false
	}
	m.writeGen++
	if session == nil {
		m.user = nil
	}
	m.session = session
	m.mu.Unlock()
	m.notify()
	return true
}

// onSessionChanged is the only writer of user besides the local clear on logout.
func (m *sessionManager) onSessionChanged(ctx context.Context, event domain.AuthEvent, session *domain.Session) {
	logger.Log.Debug("Auth state changed", "event", event, "has_session", session != nil)
	if session == nil {
		m.clear()
		return
	}
	m.setSession(session, nil)
	m.resolve(ctx, session)
}

// setSession replaces the current session. When gen is non-nil the write only
// happens if no logout started since gen was read.
func (m *sessionManager) setSession(session *domain.Session, gen *uint64) bool {
	m.mu.Lock()
	if gen != nil && m.logoutGen != *gen {
		m.mu.Unlock()
		return false
	}
	m.writeGen++
	if m.session.Same(session) {
		m.mu.Unlock()
		return true
	}
	m.session = session
	m.mu.Unlock()
	m.notify()
	return true
}

// resolve projects session's identity and applies the user only if session is
// still the current one once the profile has been fetched.
func (m *sessionManager) resolve(ctx context.Context, session *domain.Session) {
	user, err := m.projector.ResolveUser(ctx, session.Identity)
	if err != nil {
		logger.Log.Error("Failed to resolve user profile", "user_id", session.Identity.ID, "error", err)
	}

	m.mu.Lock()
	if !m.session.Same(session) {
		m.mu.Unlock()
		logger.Log.Debug("Discarding stale profile resolution", "user_id", session.Identity.ID)
		return
	}
	m.user = user
	m.mu.Unlock()
	m.notify()
}

func (m *sessionManager) clear() {
	m.mu.Lock()
	m.writeGen++
	if m.session == nil && m.user == nil {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.user = nil
	m.mu.Unlock()
	m.notify()
}

// begin marks an operation in flight and returns the func that ends it.
func (m *sessionManager) begin() func() {
	m.mu.Lock()
	m.inFlight++
	m.mu.Unlock()
	m.notify()
	return func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
		m.notify()
	}
}

func (m *sessionManager) currentWriteGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writeGen
}

func (m *sessionManager) currentLogoutGen() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logoutGen
}

func (m *sessionManager) State() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot()
}

func (m *sessionManager) snapshot() domain.State {
	return domain.State{
		Session: m.session,
		User:    m.user,
		Loading: !m.initialized || m.inFlight > 0,
	}
}

func (m *sessionManager) Subscribe(observer func(domain.State)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = observer
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

// notify delivers the current snapshot to every observer outside the lock.
// Only one caller delivers at a time; a notify that arrives meanwhile marks
// the state dirty and the active caller delivers again, so the last snapshot
// an observer sees is always the latest one.
func (m *sessionManager) notify() {
	m.mu.Lock()
	if m.notifying {
		m.dirty = true
		m.mu.Unlock()
		return
	}
	m.notifying = true
	for {
		m.dirty = false
		state := m.snapshot()
		observers := make([]func(domain.State), 0, len(m.observers))
		for id := 0; id < m.nextID; id++ {
			if o, ok := m.observers[id]; ok {
				observers = append(observers, o)
			}
		}
		m.mu.Unlock()

		for _, o := range observers {
			o(state)
		}

		m.mu.Lock()
		if !m.dirty {
			m.notifying = false
			m.mu.Unlock()
			return
		}
	}
}

func (m *sessionManager) Dispose() {
	m.disposeOnce.Do(func() {
		if m.sub != nil {
			m.sub.Unsubscribe()
		}
		m.mu.Lock()
		m.observers = make(map[int]func(domain.State))
		m.mu.Unlock()
	})
}
