package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent is one security-relevant event. IdentityID may be empty when
// the event never resolved to an account (unknown identifier, stale pending
// token).
type AuditEvent struct {
	EventType     string
	IdentityKind  string
	IdentityID    string
	IPAddress     string
	UserAgent     string
	Success       bool
	FailureReason string
	Metadata      map[string]string
}

// AuditLogger emits structured audit records on the normal log stream,
// tagged so they can be split off downstream.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

func (al *AuditLogger) emit(auditType string, success bool, attrs []slog.Attr) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	attrs = append(attrs,
		slog.String("audit_type", auditType),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
	al.logger.LogAttrs(context.Background(), level, "audit", attrs...)
}

// LogAuthAttempt records a login, verification or credential event
func (al *AuditLogger) LogAuthAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
	}

	if event.IdentityKind != "" {
		attrs = append(attrs, slog.String("identity_kind", event.IdentityKind))
	}
	if event.IdentityID != "" {
		attrs = append(attrs, slog.String("identity_id", event.IdentityID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	al.emit("auth", event.Success, attrs)
}

// LogPasswordChange records a password change attempt
func (al *AuditLogger) LogPasswordChange(identityKind, identityID string, success bool) {
	attrs := []slog.Attr{
		slog.String("event_type", "password_change"),
		slog.Bool("success", success),
		slog.String("identity_kind", identityKind),
		slog.String("identity_id", identityID),
	}

	al.emit("password", success, attrs)
}

// LogAccountAction records an account lifecycle event
func (al *AuditLogger) LogAccountAction(eventType, identityID string, metadata map[string]string) {
	attrs := []slog.Attr{
		slog.String("event_type", eventType),
		slog.String("identity_id", identityID),
		slog.Bool("success", true),
	}

	for key, val := range metadata {
		attrs = append(attrs, slog.String(key, val))
	}

	al.emit("account", true, attrs)
}
