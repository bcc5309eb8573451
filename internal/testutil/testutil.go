// Package testutil provides testing utilities and helpers for the oidc-core
// library.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/lumonhealth/oidc-core/storage"
)

// MockClock provides a controllable time source for deterministic testing
type MockClock struct {
	now time.Time
}

// NewMockClock creates a new mock clock pinned to the given instant
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the current mock time
func (m *MockClock) Now() time.Time {
	return m.now
}

// Advance moves the mock clock forward by the given duration
func (m *MockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

// Set pins the mock clock to a specific instant
func (m *MockClock) Set(t time.Time) {
	m.now = t
}

// NewMockHTTPServer creates a test HTTP server with the given handler
func NewMockHTTPServer(handler http.HandlerFunc) *httptest.Server {
	return httptest.NewServer(handler)
}

// NewClient returns a client fixture with sensible defaults for token tests.
// Callers mutate the returned struct as needed before saving it.
func NewClient(clientID string) *storage.Client {
	return &storage.Client{
		ClientID:                clientID,
		ClientName:              "Test Client",
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		Scope:                   []string{"openid", "profile", "offline_access"},
		RedirectURIs:            []string{"https://client.example.org/callback"},
		TokenEndpointAuthMethod: "client_secret_basic",
		AllowRefresh:            true,
		ReuseRefreshToken:       true,
		CreatedAt:               time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// NewAuthentication returns an authentication context fixture owned by the
// given principal and client.
func NewAuthentication(principal, clientID string, scope ...string) *storage.AuthenticationContext {
	return &storage.AuthenticationContext{
		Principal:   principal,
		Authorities: []string{"ROLE_USER"},
		ClientID:    clientID,
		Scope:       scope,
		Extensions:  map[string]string{},
	}
}
