package oidc

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds the server-wide policy configuration for the token and
// client-policy engine. It is immutable after construction: build it once at
// process start and thread it through the service constructors.
type Config struct {
	// Issuer is the authorization server's issuer identifier (base URL)
	Issuer string

	// HeartMode enables the strict HEART client profile: single grant type per
	// client, mandatory asymmetric keys, no client secrets.
	HeartMode bool

	// ForceHTTPS requires https URLs for sector identifiers and remote key sets
	ForceHTTPS bool

	// AccessTokenTTL is the default access token lifetime, used when a client
	// has no per-client validity configured. Zero means tokens never expire.
	AccessTokenTTL time.Duration

	// RefreshTokenTTL is the default refresh token lifetime. Zero means
	// refresh tokens never expire.
	RefreshTokenTTL time.Duration

	// AuthorizationCodeTTL is how long authorization codes are valid.
	// Default: 5 minutes.
	AuthorizationCodeTTL time.Duration

	// DeviceCodeTTL is the default device code lifetime, used when a client
	// has no per-client device code validity configured. Zero means device
	// codes never expire.
	DeviceCodeTTL time.Duration

	// ReservedScopes lists additional scope values the system assigns itself.
	// The registration and resource token scopes are always reserved.
	ReservedScopes []string

	// SweepPageSize is the page size used by the expiry sweep queries.
	// Default: 100.
	SweepPageSize int

	// SectorCacheTTL is how long fetched sector identifier documents are
	// cached. Default: 5 minutes.
	SectorCacheTTL time.Duration

	// SectorCacheMaxEntries bounds the sector identifier cache.
	// Default: 1000.
	SectorCacheMaxEntries int

	// SectorFetchRate is the per-host rate limit (requests per second) for
	// sector identifier fetches. Zero disables limiting.
	SectorFetchRate int

	// SectorFetchBurst is the per-host burst for sector identifier fetches
	SectorFetchBurst int

	// HTTPClient is the client used for sector identifier fetches. It must
	// carry a timeout; if nil, a 10 second default client is used.
	HTTPClient *http.Client

	// EnableAuditLogging enables security audit logging.
	// Logs token operations and policy violations (principal IDs hashed).
	EnableAuditLogging bool
}

// Default configuration values
const (
	DefaultAuthorizationCodeTTL  = 5 * time.Minute
	DefaultSweepPageSize         = 100
	DefaultSectorCacheTTL        = 5 * time.Minute
	DefaultSectorCacheMaxEntries = 1000
	DefaultHTTPTimeout           = 10 * time.Second
)

// ApplyDefaults returns a copy of the config with unset fields filled with
// safe defaults. The original is not modified.
func (c *Config) ApplyDefaults(logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}

	out := *c

	if out.AuthorizationCodeTTL <= 0 {
		out.AuthorizationCodeTTL = DefaultAuthorizationCodeTTL
	}
	if out.SweepPageSize <= 0 {
		out.SweepPageSize = DefaultSweepPageSize
	}
	if out.SectorCacheTTL <= 0 {
		out.SectorCacheTTL = DefaultSectorCacheTTL
	}
	if out.SectorCacheMaxEntries <= 0 {
		out.SectorCacheMaxEntries = DefaultSectorCacheMaxEntries
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: DefaultHTTPTimeout}
		logger.Debug("No HTTP client configured, using default",
			"timeout", DefaultHTTPTimeout)
	}

	return &out
}

// Reserved returns the full reserved scope set: the configured reserved
// scopes plus the registration and resource token scopes.
func (c *Config) Reserved() []string {
	out := make([]string, 0, len(c.ReservedScopes)+2)
	out = append(out, ScopeRegistrationToken, ScopeResourceToken)
	out = append(out, c.ReservedScopes...)
	return out
}
