package logger

import (
	"context"
	"log/slog"
	"time"
)

// Audit categories
const (
	AuditTypeAuth     = "auth"
	AuditTypeSession  = "session"
	AuditTypeRecovery = "recovery"
	AuditTypePassword = "password"
)

// AuditEvent represents a security audit event
type AuditEvent struct {
	EventType     string
	Email         string // masked before it is written
	UserID        string
	ClientID      string
	IPAddress     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger writes security events as structured records
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogAuthAttempt logs login, MFA and registration outcomes
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	al.log(AuditTypeAuth, event)
}

// LogSessionEvent logs session establishment, renewal, expiry and logout
func (al *AuditLogger) LogSessionEvent(event AuditEvent) {
	al.log(AuditTypeSession, event)
}

// LogRecoveryEvent logs recovery code issuance and verification
func (al *AuditLogger) LogRecoveryEvent(event AuditEvent) {
	al.log(AuditTypeRecovery, event)
}

// LogPasswordChange logs password changes and resets
func (al *AuditLogger) LogPasswordChange(event AuditEvent) {
	al.log(AuditTypePassword, event)
}

func (al *AuditLogger) log(auditType string, event AuditEvent) {
	if al == nil || al.logger == nil {
		return
	}

	attrs := []slog.Attr{
		slog.String("audit_type", auditType),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}

	if event.Email != "" {
		attrs = append(attrs, slog.String("email", SanitizedEmail(event.Email)))
	}
	if event.UserID != "" {
		attrs = append(attrs, slog.String("user_id", event.UserID))
	}
	if event.ClientID != "" {
		attrs = append(attrs, slog.String("client_id", event.ClientID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}
	for key, val := range event.Metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	level := slog.LevelInfo
	if !event.Success {
		level = slog.LevelWarn
	}
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}
