package v1

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"agribid-backend/internal/delivery/http/middleware"
	"agribid-backend/internal/delivery/http/response"
	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/logger"
	"agribid-backend/pkg/security"

	"github.com/gin-gonic/gin"
)

// SessionFactory starts a session manager whose collaborator holds session
// (nil for an anonymous request). Handlers Dispose it before returning.
type SessionFactory func(session *domain.Session) domain.SessionManager

type AuthHandler struct {
	sessions  SessionFactory
	tracker   *security.LoginTracker
	secLogger *security.SecurityLogger
}

func NewAuthHandler(public *gin.RouterGroup, protected *gin.RouterGroup, sessions SessionFactory, tracker *security.LoginTracker, secLogger *security.SecurityLogger) {
	handler := &AuthHandler{
		sessions:  sessions,
		tracker:   tracker,
		secLogger: secLogger,
	}

	publicAuth := public.Group("/auth")
	{
		publicAuth.POST("/login", handler.Login)
		publicAuth.POST("/register", handler.Register)
		publicAuth.POST("/resend-confirmation", handler.ResendConfirmation)
		publicAuth.POST("/refresh", handler.Refresh)
	}

	protectedAuth := protected.Group("/auth")
	{
		protectedAuth.POST("/logout", handler.Logout)
		protectedAuth.GET("/me", handler.Me)
	}
}

type LoginRequest struct {
	Email    string `json:"email" example:"abebe@example.com"`
	Password string `json:"password" example:"secret123"`
}

type RegisterRequest struct {
	Email           string          `json:"email"`
	Phone           string          `json:"phone"`
	Password        string          `json:"password"`
	ConfirmPassword string          `json:"confirmPassword"`
	UserType        string          `json:"userType" enums:"farmer,company,exporter"`
	Profile         json.RawMessage `json:"profile" swaggertype:"object"`
}

type ResendConfirmationRequest struct {
	Email string `json:"email"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthResponse is the data of every credential endpoint.
type AuthResponse struct {
	Result  domain.AuthResult `json:"result"`
	Session *domain.Session   `json:"session,omitempty"`
	User    *domain.User      `json:"user,omitempty"`
}

// resultStatus maps a failed AuthResult to an HTTP status.
func resultStatus(result domain.AuthResult) int {
	switch result.Kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthRejected:
		return http.StatusUnauthorized
	case domain.KindUnverifiedIdentity:
		return http.StatusForbidden
	case domain.KindCancelled:
		return http.StatusConflict
	case domain.KindProfilePersistence:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func (h *AuthHandler) start(ctx context.Context, session *domain.Session) domain.SessionManager {
	manager := h.sessions(session)
	manager.Initialize(ctx)
	return manager
}

// Login godoc
// @Summary      Log in
// @Description  Signs in with email and password and returns the session and the resolved user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        login  body      LoginRequest  true  "Credentials"
// @Success      200    {object}  response.Response{data=AuthResponse}
// @Failure      400    {object}  response.Response
// @Failure      401    {object}  response.Response
// @Failure      403    {object}  response.Response  "Email not confirmed"
// @Failure      429    {object}  response.Response
// @Failure      502    {object}  response.Response
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid request body"))
		return
	}
	ctx := c.Request.Context()
	ip, ua, reqID := c.ClientIP(), c.GetHeader("User-Agent"), requestID(c)

	blocked, err := h.tracker.IsBlocked(ctx, req.Email, ip)
	if err != nil {
		logger.Log.Warn("Login block check failed", "error", err)
	}
	if blocked {
		h.secLogger.LogLoginBlocked(ctx, req.Email, ip, ua, reqID)
		if ttl, ok, _ := h.tracker.GetBlockTTL(ctx, req.Email); ok && ttl > 0 {
			c.Header("Retry-After", strconv.Itoa(int(ttl.Seconds())))
		}
		c.Error(apperror.TooManyRequests("Too many failed login attempts. Please try again later."))
		return
	}

	manager := h.start(ctx, nil)
	defer manager.Dispose()

	result := manager.Login(ctx, req.Email, req.Password)
	if !result.Success {
		switch result.Kind {
		case domain.KindAuthRejected:
			if nowBlocked, _, err := h.tracker.RecordFailedAttempt(ctx, req.Email, ip, ua, reqID, result.Error); err == nil && nowBlocked {
				logger.Log.Warn("Login blocked after repeated failures", "email", security.MaskEmail(req.Email))
			}
		case domain.KindUnverifiedIdentity:
			h.secLogger.Log(ctx, security.SecurityEvent{
				Event:        security.EventLoginUnverified,
				SubjectType:  "email",
				SubjectValue: req.Email,
				IP:           ip,
				UserAgent:    ua,
				RequestID:    reqID,
			})
		case domain.KindValidation:
			h.secLogger.Log(ctx, security.SecurityEvent{
				Event:     security.EventValidationFailed,
				IP:        ip,
				RequestID: reqID,
				Details:   map[string]any{"endpoint": "login"},
			})
		}
		response.Error(c, resultStatus(result), result.Error, result)
		return
	}

	state := manager.State()
	if state.Session != nil {
		if err := h.tracker.ClearAttempts(ctx, req.Email, ip); err != nil {
			logger.Log.Warn("Failed to clear login attempts", "error", err)
		}
		h.secLogger.LogLoginSuccess(ctx, state.Session.Identity.ID, ip, reqID)
	}
	response.Success(c, http.StatusOK, "Login successful", AuthResponse{Result: result, Session: state.Session, User: state.User})
}

// Register godoc
// @Summary      Register
// @Description  Creates the identity and stores the farmer or company profile. When email confirmation is required no session is returned. profilePending reports a profile that could not be stored.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        register  body      RegisterRequest  true  "Registration details"
// @Success      201       {object}  response.Response{data=AuthResponse}
// @Failure      400       {object}  response.Response
// @Failure      401       {object}  response.Response
// @Failure      502       {object}  response.Response
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid request body"))
		return
	}
	ctx := c.Request.Context()

	input := domain.RegisterInput{
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		PasswordConfirm: req.ConfirmPassword,
		UserType:        domain.UserType(strings.ToLower(strings.TrimSpace(req.UserType))),
	}
	// A profile of the wrong shape is left nil and rejected by validation.
	if input.UserType.Valid() {
		if profile, err := domain.DecodeProfile(input.UserType, req.Profile); err == nil {
			input.Profile = profile
		}
	}

	manager := h.start(ctx, nil)
	defer manager.Dispose()

	result := manager.Register(ctx, input)
	if !result.Success {
		response.Error(c, resultStatus(result), result.Error, result)
		return
	}

	state := manager.State()
	event := security.EventRegistration
	message := "Registration successful"
	switch {
	case result.ProfilePending:
		event = security.EventProfilePending
		message = result.Error
	case result.NeedsEmailConfirmation:
		message = "Registration successful. Please check your email to confirm your account."
	}
	h.secLogger.Log(ctx, security.SecurityEvent{
		Event:        event,
		SubjectType:  "email",
		SubjectValue: input.Email,
		IP:           c.ClientIP(),
		RequestID:    requestID(c),
		Details:      map[string]any{"user_type": string(input.UserType)},
	})
	response.Success(c, http.StatusCreated, message, AuthResponse{Result: result, Session: state.Session, User: state.User})
}

// ResendConfirmation godoc
// @Summary      Resend confirmation email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      ResendConfirmationRequest  true  "Email"
// @Success      200      {object}  response.Response{data=AuthResponse}
// @Failure      400      {object}  response.Response
// @Failure      502      {object}  response.Response
// @Router       /auth/resend-confirmation [post]
func (h *AuthHandler) ResendConfirmation(c *gin.Context) {
	var req ResendConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.BadRequest("Invalid request body"))
		return
	}
	ctx := c.Request.Context()

	manager := h.start(ctx, nil)
	defer manager.Dispose()

	result := manager.ResendConfirmation(ctx, req.Email)
	if !result.Success {
		response.Error(c, resultStatus(result), result.Error, result)
		return
	}
	response.Success(c, http.StatusOK, "Confirmation email sent. Please check your inbox.", AuthResponse{Result: result})
}

// Refresh godoc
// @Summary      Refresh session
// @Description  Exchanges a refresh token for a new session.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request  body      RefreshRequest  true  "Refresh token"
// @Success      200      {object}  response.Response{data=AuthResponse}
// @Failure      400      {object}  response.Response
// @Failure      401      {object}  response.Response
// @Router       /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		c.Error(apperror.BadRequest("refresh_token is required"))
		return
	}

	// An already expired session makes Initialize refresh it.
	manager := h.start(c.Request.Context(), &domain.Session{
		RefreshToken: req.RefreshToken,
		ExpiresAt:    time.Unix(1, 0),
	})
	defer manager.Dispose()

	state := manager.State()
	if state.Session == nil {
		c.Error(apperror.Unauthorized("Session expired. Please log in again."))
		return
	}
	response.Success(c, http.StatusOK, "Session refreshed", AuthResponse{Result: domain.Succeeded(), Session: state.Session, User: state.User})
}

// Logout godoc
// @Summary      Log out
// @Description  Revokes the caller's session with the auth service.
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=AuthResponse}
// @Failure      401  {object}  response.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, _ := middleware.CurrentIdentity(c)
	token := c.GetString(string(domain.KeyAccessToken))
	ctx := c.Request.Context()

	manager := h.sessions(&domain.Session{AccessToken: token, TokenType: "bearer", Identity: identity})
	defer manager.Dispose()

	result := manager.Logout(ctx)
	h.secLogger.Log(ctx, security.SecurityEvent{
		Event:        security.EventLogout,
		SubjectType:  "user_id",
		SubjectValue: identity.ID,
		IP:           c.ClientIP(),
		RequestID:    requestID(c),
	})
	response.Success(c, http.StatusOK, "Logged out", AuthResponse{Result: result})
}

// Me godoc
// @Summary      Current user
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=domain.User}
// @Failure      401  {object}  response.Response
// @Router       /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.Error(apperror.Unauthorized("User not authenticated"))
		return
	}
	response.Success(c, http.StatusOK, "User retrieved", user)
}

func requestID(c *gin.Context) string {
	return c.GetString(string(domain.KeyRequestID))
}
