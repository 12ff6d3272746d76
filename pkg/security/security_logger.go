// Package security records authentication security events and enforces
// login and upload throttling.
package security

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type EventType string

const (
	EventLoginFailed        EventType = "login_failed"
	EventLoginBlocked       EventType = "login_blocked"
	EventLoginSuccess       EventType = "login_success"
	EventLoginUnverified    EventType = "login_unverified"
	EventLogout             EventType = "logout"
	EventRegistration       EventType = "registration"
	EventProfilePending     EventType = "profile_pending"
	EventRateLimitTriggered EventType = "rate_limit_triggered"
	EventUnauthorizedAccess EventType = "unauthorized_access"
	EventBlockCreated       EventType = "block_created"
	EventValidationFailed   EventType = "validation_failed"
	EventUploadRejected     EventType = "upload_rejected"
)

// SecurityEvent is one structured security log line. SubjectValue is masked
// or hashed before it is logged.
type SecurityEvent struct {
	Timestamp    time.Time
	Event        EventType
	SubjectType  string // "email", "ip", "user_id"
	SubjectValue string
	IP           string
	UserAgent    string
	RequestID    string
	Details      map[string]any
}

type SecurityLogger struct {
	zapLogger   *zap.Logger
	serviceName string
	environment string
}

var (
	defaultLogger *SecurityLogger
	defaultMu     sync.Mutex
)

// NewSecurityLogger wraps zl. A nil zl builds a production JSON logger on stdout.
func NewSecurityLogger(zl *zap.Logger, serviceName, environment string) *SecurityLogger {
	if zl == nil {
		config := zap.NewProductionConfig()
		config.EncoderConfig.TimeKey = "timestamp"
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.MessageKey = "message"
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}

		var err error
		zl, err = config.Build(zap.AddStacktrace(zapcore.ErrorLevel))
		if err != nil {
			zl = zap.NewNop()
		}
	}
	return &SecurityLogger{zapLogger: zl, serviceName: serviceName, environment: environment}
}

// InitSecurityLogger builds the process-wide logger returned by DefaultLogger.
func InitSecurityLogger(serviceName, environment string) *SecurityLogger {
	sl := NewSecurityLogger(nil, serviceName, environment)
	defaultMu.Lock()
	defaultLogger = sl
	defaultMu.Unlock()
	return sl
}

func DefaultLogger() *SecurityLogger {
	defaultMu.Lock()
	sl := defaultLogger
	defaultMu.Unlock()
	if sl == nil {
		return InitSecurityLogger("agribid-api", getEnvironment())
	}
	return sl
}

func (sl *SecurityLogger) Log(ctx context.Context, event SecurityEvent) {
	if sl == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	severity := GetSeverity(event.Event)
	fields := []zap.Field{
		zap.String("service", sl.serviceName),
		zap.String("env", sl.environment),
		zap.String("event", string(event.Event)),
		zap.String("severity", string(severity)),
		zap.Time("occurred_at", event.Timestamp),
	}
	if event.SubjectType != "" {
		fields = append(fields,
			zap.String("subject_type", event.SubjectType),
			zap.String("subject_value", maskValue(event.SubjectType, event.SubjectValue)),
		)
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserAgent != "" {
		fields = append(fields, zap.String("user_agent", event.UserAgent))
	}
	if event.RequestID != "" {
		fields = append(fields, zap.String("request_id", event.RequestID))
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}

	sl.zapLogger.Log(severity.Level(), string(event.Event), fields...)
}

func (sl *SecurityLogger) LogLoginFailed(ctx context.Context, email, ip, userAgent, requestID, reason string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventLoginFailed,
		SubjectType:  "email",
		SubjectValue: email,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]any{"reason": reason},
	})
}

func (sl *SecurityLogger) LogLoginSuccess(ctx context.Context, userID, ip, requestID string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventLoginSuccess,
		SubjectType:  "user_id",
		SubjectValue: userID,
		IP:           ip,
		RequestID:    requestID,
	})
}

func (sl *SecurityLogger) LogLoginBlocked(ctx context.Context, email, ip, userAgent, requestID string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventLoginBlocked,
		SubjectType:  "email",
		SubjectValue: email,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]any{"reason": "too_many_failed_attempts"},
	})
}

func (sl *SecurityLogger) LogRateLimitTriggered(ctx context.Context, ip, userAgent, requestID, endpoint string) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventRateLimitTriggered,
		SubjectType:  "ip",
		SubjectValue: ip,
		IP:           ip,
		UserAgent:    userAgent,
		RequestID:    requestID,
		Details:      map[string]any{"endpoint": endpoint},
	})
}

func (sl *SecurityLogger) LogBlockCreated(ctx context.Context, subjectType, subjectValue, ip, requestID string, durationMinutes int) {
	sl.Log(ctx, SecurityEvent{
		Event:        EventBlockCreated,
		SubjectType:  subjectType,
		SubjectValue: subjectValue,
		IP:           ip,
		RequestID:    requestID,
		Details:      map[string]any{"duration_minutes": durationMinutes},
	})
}

func (sl *SecurityLogger) Sync() error {
	return sl.zapLogger.Sync()
}

// MaskEmail keeps the first character and the domain: "a***@example.com".
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 3 || at < 0 {
		return "***"
	}
	if at <= 1 {
		return "***" + email[at:]
	}
	return email[:1] + "***" + email[at:]
}

// HashValue returns the first 16 hex characters of the SHA-256 of value.
func HashValue(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}

func maskValue(subjectType, value string) string {
	switch subjectType {
	case "email":
		return MaskEmail(value)
	case "ip":
		return value
	default:
		return HashValue(value)
	}
}

func getEnvironment() string {
	if os.Getenv("GIN_MODE") == "release" {
		return "production"
	}
	return "development"
}
