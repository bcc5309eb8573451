// Package storage defines the entity types and persistence contracts consumed
// by the token and client-policy engine. It supports various backend
// implementations; an in-memory store lives under storage/memory.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by lookup methods when no matching record exists.
// Expired records that have been lazily cleaned up are also reported as
// ErrNotFound, never as a distinct error.
var ErrNotFound = errors.New("storage: not found")

// ClientStore manages OAuth client registrations.
// All methods accept context.Context for tracing and cancellation.
type ClientStore interface {
	// SaveClient persists a new client and assigns its internal ID
	SaveClient(ctx context.Context, client *Client) (*Client, error)

	// GetClientByClientID retrieves a client by its public client_id
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)

	// UpdateClient replaces the stored client, preserving its internal ID
	UpdateClient(ctx context.Context, client *Client) (*Client, error)

	// DeleteClient removes a client. Implementations must cascade to the
	// client's tokens, authorization codes, and device codes.
	DeleteClient(ctx context.Context, clientID string) error

	// ListClients lists all registered clients (for admin purposes)
	ListClients(ctx context.Context) ([]*Client, error)
}

// AuthenticationHolderStore manages durable authentication snapshots.
type AuthenticationHolderStore interface {
	// SaveAuthenticationHolder persists a snapshot and assigns its ID
	SaveAuthenticationHolder(ctx context.Context, holder *AuthenticationHolder) (*AuthenticationHolder, error)

	// GetAuthenticationHolder retrieves a snapshot by ID
	GetAuthenticationHolder(ctx context.Context, id int64) (*AuthenticationHolder, error)

	// DeleteAuthenticationHolder removes a snapshot
	DeleteAuthenticationHolder(ctx context.Context, id int64) error

	// GetOrphanedAuthenticationHolders returns up to limit holders that are no
	// longer referenced by any live token, authorization code, or device code.
	// Sweep callers re-invoke until the result is empty.
	GetOrphanedAuthenticationHolders(ctx context.Context, limit int) ([]*AuthenticationHolder, error)
}

// TokenStore manages access and refresh tokens.
type TokenStore interface {
	// SaveAccessToken persists a token and assigns its internal ID
	SaveAccessToken(ctx context.Context, token *AccessToken) (*AccessToken, error)

	// GetAccessTokenByValue retrieves a token by its opaque bearer value
	GetAccessTokenByValue(ctx context.Context, value string) (*AccessToken, error)

	// DeleteAccessToken removes an access token
	DeleteAccessToken(ctx context.Context, id int64) error

	// GetAccessTokensForClient returns all live access tokens owned by a client
	GetAccessTokensForClient(ctx context.Context, clientID string) ([]*AccessToken, error)

	// GetAccessTokensForRefreshToken returns the access tokens chained to a
	// refresh token
	GetAccessTokensForRefreshToken(ctx context.Context, refreshTokenID int64) ([]*AccessToken, error)

	// GetAccessTokensForPrincipal returns all access tokens whose owning
	// authentication names the given principal
	GetAccessTokensForPrincipal(ctx context.Context, principal string) ([]*AccessToken, error)

	// GetExpiredAccessTokens returns up to limit expired access tokens.
	// Sweep callers re-invoke until the result is empty.
	GetExpiredAccessTokens(ctx context.Context, limit int) ([]*AccessToken, error)

	// SaveRefreshToken persists a refresh token and assigns its internal ID
	SaveRefreshToken(ctx context.Context, token *RefreshToken) (*RefreshToken, error)

	// GetRefreshTokenByValue retrieves a refresh token by its opaque value
	GetRefreshTokenByValue(ctx context.Context, value string) (*RefreshToken, error)

	// GetRefreshTokenByID retrieves a refresh token by internal ID
	GetRefreshTokenByID(ctx context.Context, id int64) (*RefreshToken, error)

	// DeleteRefreshToken removes a refresh token
	DeleteRefreshToken(ctx context.Context, id int64) error

	// GetExpiredRefreshTokens returns up to limit expired refresh tokens
	GetExpiredRefreshTokens(ctx context.Context, limit int) ([]*RefreshToken, error)
}

// AuthorizationCodeStore manages one-time authorization codes.
type AuthorizationCodeStore interface {
	// SaveAuthorizationCode persists a code and assigns its internal ID
	SaveAuthorizationCode(ctx context.Context, code *AuthorizationCode) (*AuthorizationCode, error)

	// ConsumeAuthorizationCode atomically fetches and deletes the record for
	// the given code value. Two concurrent consumptions of the same code must
	// not both succeed; the loser observes ErrNotFound.
	ConsumeAuthorizationCode(ctx context.Context, code string) (*AuthorizationCode, error)

	// DeleteAuthorizationCode removes a code without consuming it
	DeleteAuthorizationCode(ctx context.Context, id int64) error

	// GetExpiredAuthorizationCodes returns up to limit expired codes
	GetExpiredAuthorizationCodes(ctx context.Context, limit int) ([]*AuthorizationCode, error)
}

// DeviceCodeStore manages device/user code pairs.
type DeviceCodeStore interface {
	// SaveDeviceCode persists a device code and assigns its internal ID
	SaveDeviceCode(ctx context.Context, dc *DeviceCode) (*DeviceCode, error)

	// GetDeviceCodeByID retrieves a device code by internal ID
	GetDeviceCodeByID(ctx context.Context, id int64) (*DeviceCode, error)

	// GetByDeviceCode retrieves a device code by its device_code value
	GetByDeviceCode(ctx context.Context, deviceCode string) (*DeviceCode, error)

	// GetByUserCode retrieves a device code by its (upper-cased) user_code
	GetByUserCode(ctx context.Context, userCode string) (*DeviceCode, error)

	// UpdateDeviceCode replaces the stored record, preserving its internal ID
	UpdateDeviceCode(ctx context.Context, dc *DeviceCode) (*DeviceCode, error)

	// DeleteDeviceCode removes a device code
	DeleteDeviceCode(ctx context.Context, id int64) error

	// GetExpiredDeviceCodes returns up to limit expired device codes
	GetExpiredDeviceCodes(ctx context.Context, limit int) ([]*DeviceCode, error)
}

// SystemScopeStore manages registered system scopes.
type SystemScopeStore interface {
	// SaveSystemScope persists a scope and assigns its internal ID
	SaveSystemScope(ctx context.Context, scope *SystemScope) (*SystemScope, error)

	// GetSystemScopeByValue retrieves a scope by value
	GetSystemScopeByValue(ctx context.Context, value string) (*SystemScope, error)

	// GetAllSystemScopes returns every registered scope
	GetAllSystemScopes(ctx context.Context) ([]*SystemScope, error)

	// DeleteSystemScope removes a scope
	DeleteSystemScope(ctx context.Context, value string) error
}

// Store aggregates every persistence contract the engine consumes. Backends
// typically implement all of them on one type.
type Store interface {
	ClientStore
	AuthenticationHolderStore
	TokenStore
	AuthorizationCodeStore
	DeviceCodeStore
	SystemScopeStore
}
