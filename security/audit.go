// Package security provides security features for the token engine:
// audit logging, per-identifier rate limiting, and expiry grace handling.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"
)

// Auditor handles security event logging with PII protection.
type Auditor struct {
	logger  *slog.Logger
	enabled bool
}

// NewAuditor creates a new security auditor
func NewAuditor(logger *slog.Logger, enabled bool) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{
		logger:  logger,
		enabled: enabled,
	}
}

// Event represents a security audit event
type Event struct {
	Type      string
	Principal string
	ClientID  string
	Details   map[string]any
	Timestamp time.Time
}

// LogEvent logs a security event with hashed PII
func (a *Auditor) LogEvent(event Event) {
	if a == nil || !a.enabled {
		return
	}

	event.Timestamp = time.Now()

	a.logger.Info("security_audit",
		"event_type", event.Type,
		"principal_hash", hashForLogging(event.Principal),
		"client_id", event.ClientID,
		"details", event.Details,
		"timestamp", event.Timestamp,
	)
}

// LogTokenIssued logs when an access token is issued
func (a *Auditor) LogTokenIssued(principal, clientID string, scope []string, refreshed bool) {
	a.LogEvent(Event{
		Type:      EventTokenIssued,
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"scope":                scope,
			"refresh_token_minted": refreshed,
		},
	})
}

// LogTokenRefreshed logs when an access token is refreshed
func (a *Auditor) LogTokenRefreshed(principal, clientID string, rotated bool) {
	a.LogEvent(Event{
		Type:      EventTokenRefreshed,
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"rotated": rotated,
		},
	})
}

// LogTokenRevoked logs when a token is revoked
func (a *Auditor) LogTokenRevoked(clientID, tokenType, reason string) {
	a.LogEvent(Event{
		Type:     EventTokenRevoked,
		ClientID: clientID,
		Details: map[string]any{
			"token_type": tokenType,
			"reason":     reason,
		},
	})
}

// LogGrantFailure logs a failed token grant (bad code, bad refresh token,
// scope violation)
func (a *Auditor) LogGrantFailure(principal, clientID, reason string) {
	a.LogEvent(Event{
		Type:      EventGrantFailure,
		Principal: principal,
		ClientID:  clientID,
		Details: map[string]any{
			"reason": reason,
		},
	})
}

// LogInvalidPKCE logs a failed PKCE verification
func (a *Auditor) LogInvalidPKCE(clientID, method string) {
	a.LogEvent(Event{
		Type:     EventInvalidPKCE,
		ClientID: clientID,
		Details: map[string]any{
			"method": method,
		},
	})
}

// LogClientRegistrationRejected logs a registration or update that failed
// policy validation
func (a *Auditor) LogClientRegistrationRejected(clientID, rule string) {
	a.LogEvent(Event{
		Type:     EventClientRegistrationRejected,
		ClientID: clientID,
		Details: map[string]any{
			"rule": rule,
		},
	})
}

// LogDeviceCodeApproved logs when a user approves a device code
func (a *Auditor) LogDeviceCodeApproved(principal, clientID string) {
	a.LogEvent(Event{
		Type:      EventDeviceCodeApproved,
		Principal: principal,
		ClientID:  clientID,
	})
}

// hashForLogging creates a SHA256 hash of sensitive data for logging
func hashForLogging(sensitive string) string {
	if sensitive == "" {
		return "<empty>"
	}
	hash := sha256.Sum256([]byte(sensitive))
	return hex.EncodeToString(hash[:])[:16]
}
