// Package logger records security events (auth failures, denied access,
// rejected uploads and relay traffic) as structured JSON.
package logger

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Event types written to the event_type attribute
const (
	EventAuthFailure   = "auth_failure"
	EventRateLimit     = "rate_limit"
	EventForbidden     = "forbidden"
	EventPathTraversal = "path_traversal"
	EventInvalidOrigin = "invalid_origin"
	EventBlockedUpload = "blocked_upload"
	EventRelayRejected = "relay_rejected"
)

// redacted replaces values of credential-like attributes
const redacted = "[REDACTED]"

// SecurityLogger writes security events. Credential-like attributes are
// redacted before they reach the handler.
type SecurityLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewSecurityLogger creates a SecurityLogger writing JSON to stdout.
func NewSecurityLogger() *SecurityLogger {
	return NewSecurityLoggerWithHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// NewSecurityLoggerWithHandler creates a SecurityLogger on top of handler.
func NewSecurityLoggerWithHandler(handler slog.Handler) *SecurityLogger {
	return &SecurityLogger{
		logger: slog.New(handler),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *SecurityLogger) warn(event, ip string, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+3)
	args = append(args,
		slog.String("event_type", event),
		slog.String("ip", ip),
		slog.Time("timestamp", s.now()),
	)
	for _, a := range attrs {
		if isSensitiveKey(a.Key) {
			a = slog.String(a.Key, redacted)
		}
		args = append(args, a)
	}
	s.logger.Warn("security_event", args...)
}

// AuthFailure logs a rejected bearer token. The token itself is never logged.
func (s *SecurityLogger) AuthFailure(ip, path, reason string) {
	s.warn(EventAuthFailure, ip, slog.String("path", path), slog.String("reason", reason))
}

// RateLimitExceeded logs a request refused by the per-IP limiter.
func (s *SecurityLogger) RateLimitExceeded(ip, path string) {
	s.warn(EventRateLimit, ip, slog.String("path", path))
}

// Forbidden logs an authenticated participant reaching for something it may not use.
func (s *SecurityLogger) Forbidden(ip, path, participant, reason string) {
	s.warn(EventForbidden, ip,
		slog.String("path", path),
		slog.String("participant", participant),
		slog.String("reason", reason),
	)
}

// PathTraversalAttempt logs an upload download that escaped the storage root.
func (s *SecurityLogger) PathTraversalAttempt(ip, path, attemptedPath string) {
	s.warn(EventPathTraversal, ip, slog.String("path", path), slog.String("attempted_path", attemptedPath))
}

// InvalidOrigin logs a websocket upgrade from an origin outside the allow list.
func (s *SecurityLogger) InvalidOrigin(ip, origin string) {
	s.warn(EventInvalidOrigin, ip, slog.String("origin", origin))
}

// BlockedFileUpload logs an attachment refused before it was stored.
func (s *SecurityLogger) BlockedFileUpload(ip, filename, reason string) {
	s.warn(EventBlockedUpload, ip, slog.String("filename", filename), slog.String("reason", reason))
}

// RelayRejected logs an SMTP recipient the relay refused.
func (s *SecurityLogger) RelayRejected(remoteAddr, recipient, reason string) {
	s.warn(EventRelayRejected, remoteAddr, slog.String("recipient", recipient), slog.String("reason", reason))
}

// Logger exposes the underlying slog.Logger.
func (s *SecurityLogger) Logger() *slog.Logger {
	return s.logger
}

var sensitiveKeys = map[string]bool{
	"password":      true,
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
	"secret":        true,
	"client_secret": true,
	"authorization": true,
	"cookie":        true,
}

func isSensitiveKey(key string) bool {
	return sensitiveKeys[strings.ToLower(key)]
}
