package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agribid-backend/internal/domain"
	"agribid-backend/pkg/apperror"
	"agribid-backend/pkg/auth"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(token string) (*auth.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Claims), args.Error(1)
}

type MockProjector struct {
	mock.Mock
}

func (m *MockProjector) ResolveUser(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, requestID(c))
	})

	t.Run("generates an id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.NotEmpty(t, w.Body.String())
		assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))
	})

	t.Run("keeps the caller's id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, "req-123", w.Body.String())
	})
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), ErrorHandler())
	r.GET("/app", func(c *gin.Context) {
		_ = c.Error(apperror.NotFound("Product not found"))
	})
	r.GET("/internal", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: connection refused"))
	})

	t.Run("app error keeps code and message", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/app", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decode(t, w)
		assert.False(t, body.Success)
		assert.Equal(t, "Product not found", body.Message)
		assert.NotEmpty(t, body.RequestID)
	})

	t.Run("internal error is hidden", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/internal", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}

func TestCORSMiddleware(t *testing.T) {
	newRouter := func(release bool) *gin.Engine {
		r := gin.New()
		r.Use(CORSMiddleware([]string{"https://agribid.app/"}, release))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
		return r
	}

	tests := []struct {
		name       string
		release    bool
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"configured origin", true, http.MethodGet, "https://agribid.app", http.StatusOK, "https://agribid.app"},
		{"no origin", true, http.MethodGet, "", http.StatusOK, ""},
		{"unknown origin gets no headers", true, http.MethodGet, "https://evil.example", http.StatusOK, ""},
		{"preflight allowed", true, http.MethodOptions, "https://agribid.app", http.StatusNoContent, "https://agribid.app"},
		{"preflight rejected", true, http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
		{"dev origin in debug", false, http.MethodGet, "http://localhost:8081", http.StatusOK, "http://localhost:8081"},
		{"dev origin in release", true, http.MethodGet, "http://localhost:8081", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/x", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			newRouter(tt.release).ServeHTTP(w, req)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeadersMiddleware())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer t")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Cache-Control"), "no-store")
}

func TestRateLimiterInMemory(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rl := NewRateLimiter(nil, nil)
	defer rl.Stop()

	r := gin.New()
	r.Use(RequestID(), rl.Middleware(AuthRateLimitConfig(2, time.Minute)))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1").Code)
	second := call("10.0.0.1")
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))

	blocked := call("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, call("10.0.0.2").Code, "limits are per client")
	assert.Equal(t, 2, rl.localCount())

	rl.cleanup(time.Now().Add(time.Hour))
	assert.Equal(t, 0, rl.localCount())
}

func claimsFor(sub, email string) *auth.Claims {
	return &auth.Claims{
		Email:            email,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub},
	}
}

func TestAuthMiddleware(t *testing.T) {
	farmer, err := domain.NewUser("user-1", "abebe@example.com", "", domain.UserTypeFarmer, nil, time.Time{})
	require.NoError(t, err)

	newRouter := func(v *MockVerifier, p *MockProjector) *gin.Engine {
		r := gin.New()
		r.Use(AuthMiddleware(v, p, nil))
		r.GET("/me", func(c *gin.Context) {
			user, ok := CurrentUser(c)
			require.True(t, ok)
			identity, ok := CurrentIdentity(c)
			require.True(t, ok)
			token, _ := c.Request.Context().Value(domain.KeyAccessToken).(string)
			c.JSON(http.StatusOK, gin.H{"id": user.ID, "identity": identity.ID, "token": token})
		})
		return r
	}

	t.Run("missing header", func(t *testing.T) {
		w := httptest.NewRecorder()
		newRouter(new(MockVerifier), new(MockProjector)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		v := new(MockVerifier)
		v.On("Verify", "bad").Return(nil, auth.ErrInvalidToken)
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer bad")
		w := httptest.NewRecorder()
		newRouter(v, new(MockProjector)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid token", decode(t, w).Message)
	})

	t.Run("valid token resolves the user", func(t *testing.T) {
		v := new(MockVerifier)
		p := new(MockProjector)
		v.On("Verify", "good").Return(claimsFor("user-1", "abebe@example.com"), nil)
		p.On("ResolveUser", mock.Anything, mock.MatchedBy(func(id domain.Identity) bool { return id.ID == "user-1" })).Return(farmer, nil)

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		newRouter(v, p).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"id":"user-1","identity":"user-1","token":"good"}`, w.Body.String())
		p.AssertExpectations(t)
	})

	t.Run("profile store failure", func(t *testing.T) {
		v := new(MockVerifier)
		p := new(MockProjector)
		v.On("Verify", "good").Return(claimsFor("user-1", "abebe@example.com"), nil)
		p.On("ResolveUser", mock.Anything, mock.Anything).Return(nil, errors.New("postgrest down"))

		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer good")
		w := httptest.NewRecorder()
		newRouter(v, p).ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestOptionalAuth(t *testing.T) {
	v := new(MockVerifier)
	p := new(MockProjector)
	v.On("Verify", "bad").Return(nil, auth.ErrInvalidToken)

	r := gin.New()
	r.Use(OptionalAuth(v, p))
	r.GET("/products/:id", func(c *gin.Context) {
		_, ok := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": ok})
	})

	for _, header := range []string{"", "Bearer bad"} {
		req := httptest.NewRequest(http.MethodGet, "/products/1", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"authenticated":false}`, w.Body.String())
	}
	p.AssertNotCalled(t, "ResolveUser", mock.Anything, mock.Anything)
}

type recordingMetrics struct {
	route  string
	status int
}

func (r *recordingMetrics) RecordLogin(string)          {}
func (r *recordingMetrics) RecordRegistration(string)   {}
func (r *recordingMetrics) RecordProfileWriteRetry()    {}
func (r *recordingMetrics) RecordListingCreated(string) {}
func (r *recordingMetrics) RecordSessionRefresh(bool)   {}
func (r *recordingMetrics) RecordHTTPRequest(_ string, route string, status int, _ time.Duration) {
	r.route, r.status = route, status
}

func TestMetricsMiddleware(t *testing.T) {
	m := &recordingMetrics{}
	r := gin.New()
	r.Use(MetricsMiddleware(m))
	r.GET("/products/:id", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/products/42", nil))
	assert.Equal(t, "/products/:id", m.route)
	assert.Equal(t, http.StatusTeapot, m.status)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "unmatched", m.route)
}
