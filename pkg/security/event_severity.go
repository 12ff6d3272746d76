package security

import "go.uber.org/zap/zapcore"

// Severity is derived from the EventType, never supplied by the caller.
type Severity string

const (
	SeverityINFO   Severity = "INFO"
	SeverityMEDIUM Severity = "MEDIUM"
	SeverityWARN   Severity = "WARN"
	SeverityHIGH   Severity = "HIGH"
)

var EventSeverityMap = map[EventType]Severity{
	EventLoginSuccess:   SeverityINFO,
	EventLogout:         SeverityINFO,
	EventRegistration:   SeverityINFO,
	EventProfilePending: SeverityMEDIUM,

	EventLoginFailed:        SeverityWARN,
	EventLoginUnverified:    SeverityWARN,
	EventRateLimitTriggered: SeverityWARN,
	EventValidationFailed:   SeverityWARN,
	EventUploadRejected:     SeverityWARN,

	EventLoginBlocked:       SeverityHIGH,
	EventBlockCreated:       SeverityHIGH,
	EventUnauthorizedAccess: SeverityHIGH,
}

// GetSeverity defaults to MEDIUM for unmapped events.
func GetSeverity(eventType EventType) Severity {
	if severity, ok := EventSeverityMap[eventType]; ok {
		return severity
	}
	return SeverityMEDIUM
}

// Level maps a severity onto the zap level it is logged at.
func (s Severity) Level() zapcore.Level {
	switch s {
	case SeverityINFO, SeverityMEDIUM:
		return zapcore.InfoLevel
	case SeverityHIGH:
		return zapcore.ErrorLevel
	default:
		return zapcore.WarnLevel
	}
}
