package storage

import (
	"encoding/json"
	"time"
)

// Client represents a registered OAuth client.
// ClientID is opaque, unique, and immutable once issued; ID is the internal
// storage identifier.
type Client struct {
	ID       int64
	ClientID string

	// Secret is empty for public and private-key clients. It is only
	// populated on the value returned from registration; persisted records
	// carry SecretHash instead.
	Secret string

	// SecretHash is the bcrypt hash of Secret
	SecretHash string

	ClientName              string
	GrantTypes              []string
	Scope                   []string
	RedirectURIs            []string
	TokenEndpointAuthMethod string

	// Per-client validity overrides. Nil means use the server default;
	// a pointer to 0 means the token never expires (access/refresh only).
	AccessTokenValiditySeconds  *int64
	RefreshTokenValiditySeconds *int64
	DeviceCodeValiditySeconds   *int64

	AllowRefresh               bool
	ReuseRefreshToken          bool
	ClearAccessTokensOnRefresh bool

	// JWKS is an inline JWK set document. Mutually exclusive with JWKSURI.
	JWKS    json.RawMessage
	JWKSURI string

	SectorIdentifierURI string
	CreatedAt           time.Time
}

// AuthenticationContext captures who requested a token: the authenticated
// principal, its authorities, the requesting client, the originally requested
// scope, and an open extension map (PKCE parameters, approved-site linkage,
// claims requests).
type AuthenticationContext struct {
	Principal   string
	Authorities []string
	ClientID    string
	Scope       []string
	Extensions  map[string]string
}

// AuthenticationHolder is a durable, immutable snapshot of an
// AuthenticationContext taken at the moment a token or code was issued.
// A later refresh reconstructs the original grant from it.
type AuthenticationHolder struct {
	ID             int64
	Authentication AuthenticationContext
}

// Permission is a fine-grained authorization attached to an access token
// when UMA-style authorization is active.
type Permission struct {
	ResourceSetID string   `json:"resource_set_id"`
	Scopes        []string `json:"scopes"`
}

// AccessToken represents an issued access token.
// Expiration nil means the token never expires. Scope is always a subset of
// the owning client's allowed scope.
type AccessToken struct {
	ID         int64
	Value      string
	TokenType  string
	Expiration *time.Time
	Scope      []string
	ClientID   string

	// RefreshTokenID references the linked refresh token; zero means none
	RefreshTokenID int64

	AuthHolderID int64
	Permissions  []Permission

	// ApprovedSiteID records the consent provenance, if any
	ApprovedSiteID string
}

// RefreshToken represents an issued refresh token. One refresh token may back
// zero or many access tokens over its lifetime.
type RefreshToken struct {
	ID           int64
	Value        string
	Expiration   *time.Time
	ClientID     string
	AuthHolderID int64
}

// AuthorizationCode represents a short-lived, strictly single-use
// authorization code.
type AuthorizationCode struct {
	ID           int64
	Code         string
	AuthHolderID int64
	Expiration   time.Time
}

// DeviceCode represents a device/user code pair for the device authorization
// grant (RFC 8628). UserCode is stored upper-cased and compared
// case-insensitively. AuthHolderID is set only once the code is approved.
type DeviceCode struct {
	ID           int64
	DeviceCode   string
	UserCode     string
	Scope        []string
	ClientID     string
	Approved     bool
	Expiration   *time.Time
	AuthHolderID int64

	// Params is the original device authorization request, echoed back at
	// consumption time
	Params map[string]string
}

// SystemScope is a scope known to the server. Unregistered scope values
// requested by clients round-trip as synthetic SystemScopes with
// Registered=false.
type SystemScope struct {
	ID           int64
	Value        string
	Description  string
	DefaultScope bool
	Restricted   bool
	Registered   bool
}

// IsExpired reports whether the access token's expiration has passed at the
// given instant. Tokens without an expiration never expire.
func (t *AccessToken) IsExpired(now time.Time) bool {
	return t.Expiration != nil && now.After(*t.Expiration)
}

// IsExpired reports whether the refresh token's expiration has passed at the
// given instant.
func (t *RefreshToken) IsExpired(now time.Time) bool {
	return t.Expiration != nil && now.After(*t.Expiration)
}

// IsExpired reports whether the device code's expiration has passed at the
// given instant. Device codes without an expiration never expire.
func (d *DeviceCode) IsExpired(now time.Time) bool {
	return d.Expiration != nil && now.After(*d.Expiration)
}
