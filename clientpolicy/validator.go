package clientpolicy

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/oauth2"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/instrumentation"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/scope"
	"github.com/lumonhealth/oidc-core/security"
	"github.com/lumonhealth/oidc-core/storage"
)

// Validator gates all client create/update calls. It is pure policy: it
// never persists anything itself, it returns the normalized client for the
// caller to store.
type Validator struct {
	scopes  *scope.Registry
	sector  *SectorFetcher
	cfg     *oidc.Config
	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
}

// New creates a client policy validator
func New(scopes *scope.Registry, cfg *oidc.Config, logger *slog.Logger) (*Validator, error) {
	if scopes == nil {
		return nil, fmt.Errorf("scope registry is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.ApplyDefaults(logger)
	return &Validator{
		scopes: scopes,
		sector: NewSectorFetcher(cfg),
		cfg:    cfg,
		logger: logger,
	}, nil
}

// SetAuditor sets the security auditor on the validator and its fetcher
func (v *Validator) SetAuditor(aud *security.Auditor) {
	v.auditor = aud
	v.sector.SetAuditor(aud)
}

// SetInstrumentation sets the metrics holder
func (v *Validator) SetInstrumentation(m *instrumentation.Metrics) {
	v.metrics = m
	v.sector.SetInstrumentation(m)
}

// Sector exposes the sector identifier fetcher for composition-time tuning
func (v *Validator) Sector() *SectorFetcher {
	return v.sector
}

// ValidateNewClient validates and normalizes a registration request.
// On success the returned client carries a generated client_id (when absent)
// and, for secret-based auth methods, a generated secret. On failure nothing
// must be persisted.
func (v *Validator) ValidateNewClient(ctx context.Context, client *storage.Client) (*storage.Client, error) {
	if client == nil {
		return nil, oidc.ErrInvalidClientMetadata("no client metadata supplied")
	}

	c, err := v.validate(ctx, client)
	if err != nil {
		v.reject(client.ClientID, err)
		return nil, err
	}

	if c.ClientID == "" {
		c.ClientID = oauth2.GenerateVerifier()
	}
	if c.Secret == "" && requiresSecret(c.TokenEndpointAuthMethod) && !v.cfg.HeartMode {
		c.Secret = oauth2.GenerateVerifier()
	}
	if c.Secret != "" && c.SecretHash == "" {
		hash, err := HashClientSecret(c.Secret)
		if err != nil {
			return nil, oidc.ErrServerError("hashing client secret: " + err.Error())
		}
		c.SecretHash = hash
	}

	return c, nil
}

// ValidateUpdatedClient validates an update request. The stored identity is
// preserved: internal ID, client_id, and creation time come from the old
// record regardless of what the request carries.
func (v *Validator) ValidateUpdatedClient(ctx context.Context, newClient, oldClient *storage.Client) (*storage.Client, error) {
	if newClient == nil || oldClient == nil {
		return nil, oidc.ErrInvalidClientMetadata("no client metadata supplied")
	}

	c, err := v.validate(ctx, newClient)
	if err != nil {
		v.reject(oldClient.ClientID, err)
		return nil, err
	}

	c.ID = oldClient.ID
	c.ClientID = oldClient.ClientID
	c.CreatedAt = oldClient.CreatedAt
	return c, nil
}

// validate runs every policy rule and returns a normalized copy
func (v *Validator) validate(ctx context.Context, client *storage.Client) (*storage.Client, error) {
	c := *client
	c.GrantTypes = util.Dedupe(c.GrantTypes)
	c.Scope = util.Dedupe(c.Scope)
	c.RedirectURIs = util.Dedupe(c.RedirectURIs)

	if err := validateGrantTypes(&c); err != nil {
		return nil, err
	}

	ensureRefreshConsistency(&c)

	if err := validateKeys(&c); err != nil {
		return nil, err
	}

	if err := v.validateScopes(ctx, &c); err != nil {
		return nil, err
	}

	if v.cfg.HeartMode {
		if err := validateHeart(&c); err != nil {
			return nil, err
		}
	}

	if c.SectorIdentifierURI != "" {
		if err := v.validateSectorURI(ctx, &c); err != nil {
			return nil, err
		}
	}

	return &c, nil
}

// supportedGrantTypes is the set of grant types clients may register
var supportedGrantTypes = map[string]struct{}{
	oidc.GrantTypeAuthorizationCode: {},
	oidc.GrantTypeImplicit:          {},
	oidc.GrantTypeClientCredentials: {},
	oidc.GrantTypePassword:          {},
	oidc.GrantTypeRefreshToken:      {},
	oidc.GrantTypeDeviceCode:        {},
}

// validateGrantTypes rejects grant types the server does not implement
func validateGrantTypes(client *storage.Client) error {
	for _, gt := range client.GrantTypes {
		if _, ok := supportedGrantTypes[gt]; !ok {
			return oidc.ErrInvalidClientMetadata("unsupported grant type: " + gt)
		}
	}
	return nil
}

// ensureRefreshConsistency forces the refresh_token grant and the
// offline_access scope to co-occur: requesting either adds the other.
func ensureRefreshConsistency(client *storage.Client) {
	hasGrant := util.Contains(client.GrantTypes, oidc.GrantTypeRefreshToken)
	hasScope := util.Contains(client.Scope, oidc.ScopeOfflineAccess)

	if hasGrant && !hasScope {
		client.Scope = append(client.Scope, oidc.ScopeOfflineAccess)
	}
	if hasScope && !hasGrant {
		client.GrantTypes = append(client.GrantTypes, oidc.GrantTypeRefreshToken)
	}
}

// validateKeys enforces key consistency: inline jwks and jwks_uri are
// mutually exclusive, an inline jwks must parse as a JWK set, and auth
// methods that need a key must have one.
func validateKeys(client *storage.Client) error {
	hasJWKS := len(client.JWKS) > 0
	hasURI := client.JWKSURI != ""

	if hasJWKS && hasURI {
		return oidc.ErrInvalidClientMetadata("a client may set jwks or jwks_uri, not both")
	}

	if hasJWKS {
		if _, err := jwk.Parse(client.JWKS); err != nil {
			return oidc.ErrInvalidClientMetadata(fmt.Sprintf("jwks does not parse as a JWK set: %v", err))
		}
	}

	if client.TokenEndpointAuthMethod == oidc.TokenEndpointAuthMethodPrivateKey && !hasJWKS && !hasURI {
		return oidc.ErrInvalidClientMetadata("private_key_jwt clients must register a key via jwks or jwks_uri")
	}

	return nil
}

// validateScopes strips reserved scope values from the request and falls
// back to the registered default scopes when nothing is requested. A client
// can never self-grant a reserved scope.
func (v *Validator) validateScopes(ctx context.Context, client *storage.Client) error {
	client.Scope = v.scopes.RemoveReservedScopes(client.Scope)

	if len(client.Scope) == 0 {
		defaults, err := v.scopes.Defaults(ctx)
		if err != nil {
			return fmt.Errorf("failed to load default scopes: %w", err)
		}
		client.Scope = defaults
	}
	return nil
}

// validateSectorURI checks scheme policy on the sector identifier URI and
// then verifies every registered redirect URI against the published list.
func (v *Validator) validateSectorURI(ctx context.Context, client *storage.Client) error {
	u, err := url.Parse(client.SectorIdentifierURI)
	if err != nil {
		return oidc.ErrInvalidClientMetadata(fmt.Sprintf("invalid sector_identifier_uri: %v", err))
	}
	if v.cfg.ForceHTTPS && u.Scheme != "https" {
		return oidc.ErrInvalidClientMetadata("sector_identifier_uri must use https")
	}
	return v.sector.validateSector(ctx, client)
}

// reject records a policy rejection for auditing and metrics
func (v *Validator) reject(clientID string, err error) {
	if v.metrics != nil {
		v.metrics.RegistrationsRejected.Add(context.Background(), 1)
	}
	v.auditor.LogClientRegistrationRejected(clientID, err.Error())
	v.logger.Warn("Client registration rejected",
		"client_id", clientID,
		"error", err.Error())
}

// requiresSecret reports whether the auth method authenticates with a
// shared secret
func requiresSecret(method string) bool {
	switch method {
	case oidc.TokenEndpointAuthMethodBasic,
		oidc.TokenEndpointAuthMethodPost,
		oidc.TokenEndpointAuthMethodSecretJWT:
		return true
	}
	return false
}
