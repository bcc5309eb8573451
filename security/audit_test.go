package security

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newCapturedAuditor(enabled bool) (*Auditor, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return NewAuditor(logger, enabled), &buf
}

func TestNewAuditor(t *testing.T) {
	tests := []struct {
		name    string
		logger  *slog.Logger
		enabled bool
	}{
		{"enabled with logger", slog.Default(), true},
		{"disabled with logger", slog.Default(), false},
		{"enabled with nil logger", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auditor := NewAuditor(tt.logger, tt.enabled)
			if auditor == nil {
				t.Fatal("NewAuditor() returned nil")
			}
			if auditor.enabled != tt.enabled {
				t.Errorf("enabled = %v, want %v", auditor.enabled, tt.enabled)
			}
			if auditor.logger == nil {
				t.Error("logger should not be nil")
			}
		})
	}
}

func TestLogEventHashesPrincipal(t *testing.T) {
	auditor, buf := newCapturedAuditor(true)

	auditor.LogEvent(Event{
		Type:      EventTokenIssued,
		Principal: "alice@example.com",
		ClientID:  "client-1",
	})

	out := buf.String()
	if !strings.Contains(out, EventTokenIssued) {
		t.Errorf("log output missing event type: %s", out)
	}
	if strings.Contains(out, "alice@example.com") {
		t.Errorf("principal logged in the clear: %s", out)
	}
	if !strings.Contains(out, "client-1") {
		t.Errorf("client id missing from log: %s", out)
	}
}

func TestLogEventDisabled(t *testing.T) {
	auditor, buf := newCapturedAuditor(false)

	auditor.LogEvent(Event{Type: EventTokenIssued, ClientID: "client-1"})

	if buf.Len() != 0 {
		t.Errorf("disabled auditor wrote output: %s", buf.String())
	}
}

func TestNilAuditorIsSafe(t *testing.T) {
	var auditor *Auditor

	// Must not panic.
	auditor.LogEvent(Event{Type: EventTokenIssued})
	auditor.LogTokenIssued("alice", "client-1", []string{"openid"}, true)
	auditor.LogTokenRefreshed("alice", "client-1", false)
	auditor.LogTokenRevoked("client-1", "access_token", "expired")
	auditor.LogGrantFailure("alice", "client-1", "bad code")
	auditor.LogInvalidPKCE("client-1", "S256")
	auditor.LogClientRegistrationRejected("client-1", "grant conflict")
	auditor.LogDeviceCodeApproved("alice", "client-1")
}

func TestHashForLogging(t *testing.T) {
	if got := hashForLogging(""); got != "<empty>" {
		t.Errorf("hashForLogging(\"\") = %q, want <empty>", got)
	}

	a := hashForLogging("alice@example.com")
	b := hashForLogging("bob@example.com")
	if a == b {
		t.Error("distinct inputs produced the same hash")
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
	if a != hashForLogging("alice@example.com") {
		t.Error("hash is not deterministic")
	}
}
