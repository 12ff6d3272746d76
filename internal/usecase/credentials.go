package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/logger"

	"github.com/sethvargo/go-retry"
)

const (
	msgFillAllFields        = "Please fill in all fields"
	msgPasswordTooShort     = "Password must be at least 6 characters"
	msgFillRequiredFields   = "Please fill in all required fields"
	msgPasswordsMismatch    = "Passwords do not match"
	msgFarmerProfileFields  = "Please fill in all farmer profile fields"
	msgCompanyProfileFields = "Please fill in all company profile fields"
	msgInvalidUserType      = "Please choose farmer, company or exporter"
	msgUnexpected           = "An unexpected error occurred. Please try again."
	msgLoginFailed          = "Login failed. Please try again."
	msgRegistrationFailed   = "Registration failed. Please try again."
	msgResendFailed         = "Failed to resend confirmation email."
	msgLoginCancelled       = "Login was cancelled by a logout"
	msgProfilePending       = "Your account was created but your profile could not be saved. Please try saving it again."
	msgNotLoggedIn          = "You must be logged in to save your profile"
	msgProfileSaveFailed    = "Failed to save profile. Please try again."

	minPasswordLength = 6
)

func (m *sessionManager) Login(ctx context.Context, email, password string) domain.AuthResult {
	email = strings.TrimSpace(email)
	if email == "" || strings.TrimSpace(password) == "" {
		return domain.Failed(domain.KindValidation, msgFillAllFields)
	}
	if len(password) < minPasswordLength {
		return domain.Failed(domain.KindValidation, msgPasswordTooShort)
	}

	done := m.begin()
	defer done()

	gen := m.currentLogoutGen()
	session, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		logger.Log.Warn("Login failed", "email", email, "error", err)
		result := collaboratorFailure(err, msgLoginFailed)
		result.NeedsConfirmation = result.Kind == domain.KindUnverifiedIdentity
		m.metrics.RecordLogin(string(result.Kind))
		return result
	}
	if session == nil {
		m.metrics.RecordLogin(string(domain.KindTransport))
		return domain.Failed(domain.KindTransport, msgLoginFailed)
	}

	// A logout issued while SignIn was pending wins.
	if !m.setSession(session, &gen) {
		logger.Log.Info("Login superseded by logout", "email", email)
		if err := m.auth.SignOut(ctx); err != nil {
			logger.Log.Error("Failed to sign out superseded login", "error", err)
		}
		m.clear()
		m.metrics.RecordLogin(string(domain.KindCancelled))
		return domain.Failed(domain.KindCancelled, msgLoginCancelled)
	}
	if m.needsUser(session) {
		m.resolve(ctx, session)
	}

	logger.Log.Info("Login successful", "user_id", session.Identity.ID)
	m.metrics.RecordLogin("success")
	return domain.Succeeded()
}

// needsUser reports whether session is current but has no projected user yet.
func (m *sessionManager) needsUser(session *domain.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Same(session) && m.user == nil
}

func (m *sessionManager) Register(ctx context.Context, input domain.RegisterInput) domain.AuthResult {
	input.Email = strings.TrimSpace(input.Email)
	input.Phone = strings.TrimSpace(input.Phone)
	if res, ok := m.validateRegistration(input); !ok {
		return res
	}

	done := m.begin()
	defer done()

	identity, session, err := m.auth.SignUp(ctx, input.Email, input.Password, m.cfg.EmailRedirectURL)
	if err != nil {
		logger.Log.Warn("Registration failed", "email", input.Email, "error", err)
		result := collaboratorFailure(err, msgRegistrationFailed)
		m.metrics.RecordRegistration(string(result.Kind))
		return result
	}
	if identity == nil {
		m.metrics.RecordRegistration(string(domain.KindAuthRejected))
		return domain.Failed(domain.KindAuthRejected, msgRegistrationFailed)
	}
	logger.Log.Info("User registered", "user_id", identity.ID)

	result := domain.Succeeded()
	result.NeedsEmailConfirmation = session == nil

	record, err := newProfileRecord(identity.ID, input.Email, input.Phone, input.UserType, input.Profile)
	if err == nil {
		err = m.writeProfile(ctx, record)
	}
	if err != nil {
		logger.Log.Error("Profile creation failed after sign-up", "user_id", identity.ID, "error", err)
		result.ProfilePending = true
		result.Kind = domain.KindProfilePersistence
		result.Error = msgProfilePending
		m.metrics.RecordRegistration("profile_pending")
		return result
	}

	// The SIGNED_IN notification fired before the profile existed.
	if session != nil && m.isCurrent(session) {
		m.resolve(ctx, session)
	}
	m.metrics.RecordRegistration("success")
	return result
}

func (m *sessionManager) validateRegistration(input domain.RegisterInput) (domain.AuthResult, bool) {
	if input.Email == "" || input.Phone == "" || input.Password == "" || input.PasswordConfirm == "" {
		return domain.Failed(domain.KindValidation, msgFillRequiredFields), false
	}
	if len(input.Password) < minPasswordLength {
		return domain.Failed(domain.KindValidation, msgPasswordTooShort), false
	}
	if input.Password != input.PasswordConfirm {
		return domain.Failed(domain.KindValidation, msgPasswordsMismatch), false
	}
	if !input.UserType.Valid() {
		return domain.Failed(domain.KindValidation, msgInvalidUserType), false
	}
	if err := validateProfile(m.validate, input.UserType, input.Profile); err != nil {
		return domain.Failed(domain.KindValidation, profileFieldsMessage(input.UserType)), false
	}
	return domain.AuthResult{}, true
}

// writeProfile upserts record, retrying with exponential backoff.
func (m *sessionManager) writeProfile(ctx context.Context, record *domain.ProfileRecord) error {
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(m.cfg.ProfileWriteAttempts-1), retry.NewExponential(m.backoffBase()))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			m.metrics.RecordProfileWriteRetry()
		}
		if err := m.profiles.Upsert(ctx, record); err != nil {
			logger.Log.Warn("Profile write attempt failed", "user_id", record.UserID, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (m *sessionManager) backoffBase() time.Duration {
	if m.cfg.ProfileWriteBackoff <= 0 {
		return time.Millisecond
	}
	return m.cfg.ProfileWriteBackoff
}

func (m *sessionManager) isCurrent(session *domain.Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Same(session)
}

func (m *sessionManager) Logout(ctx context.Context) domain.AuthResult {
	m.mu.Lock()
	m.logoutGen++
	m.mu.Unlock()

	done := m.begin()
	defer done()

	if err := m.auth.SignOut(ctx); err != nil {
		logger.Log.Error("Logout error", "error", err)
	}
	m.clear()
	logger.Log.Info("User logged out")
	return domain.Succeeded()
}

func (m *sessionManager) ResendConfirmation(ctx context.Context, email string) domain.AuthResult {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Failed(domain.KindValidation, msgFillAllFields)
	}

	done := m.begin()
	defer done()

	if err := m.auth.ResendVerification(ctx, email, m.cfg.EmailRedirectURL); err != nil {
		logger.Log.Warn("Resend confirmation failed", "email", email, "error", err)
		result := collaboratorFailure(err, msgResendFailed)
		if result.Kind == domain.KindTransport {
			result.Error = msgResendFailed
		}
		return result
	}
	return domain.Succeeded()
}

func (m *sessionManager) SaveProfile(ctx context.Context, userType domain.UserType, profile domain.Profile) domain.AuthResult {
	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return domain.Failed(domain.KindAuthRejected, msgNotLoggedIn)
	}

	done := m.begin()
	defer done()

	if _, err := m.profileUC.SaveProfile(ctx, session.Identity, userType, profile); err != nil {
		logger.Log.Warn("Profile save failed", "user_id", session.Identity.ID, "error", err)
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.Code < 500 {
			return domain.Failed(domain.KindValidation, appErr.Message)
		}
		return domain.Failed(domain.KindProfilePersistence, msgProfileSaveFailed)
	}
	if m.isCurrent(session) {
		m.resolve(ctx, session)
	}
	return domain.Succeeded()
}

// collaboratorFailure turns a collaborator error into a result. Classified
// errors keep their message; anything else is reported as a transport failure.
func collaboratorFailure(err error, fallback string) domain.AuthResult {
	var authErr *domain.AuthError
	if !errors.As(err, &authErr) {
		return domain.Failed(domain.KindTransport, msgUnexpected)
	}
	if authErr.Kind == domain.KindTransport {
		return domain.Failed(domain.KindTransport, msgUnexpected)
	}
	message := authErr.Message
	if message == "" {
		message = fallback
	}
	return domain.Failed(authErr.Kind, message)
}
