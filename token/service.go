package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/instrumentation"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/scope"
	"github.com/lumonhealth/oidc-core/security"
	"github.com/lumonhealth/oidc-core/storage"
)

// tokenLogLength is the number of characters to include when logging token values
const tokenLogLength = 8

// TokenRequest carries the token-endpoint parameters relevant to a refresh
// call: the authenticated client and the (possibly empty) requested scope.
type TokenRequest struct {
	ClientID   string
	Scope      []string
	Extensions map[string]string
}

// Service is the token engine: it issues access and refresh tokens, executes
// the refresh grant with scope narrowing, revokes tokens, and sweeps expired
// state. Token state moves issued -> expired (detected lazily on read, same
// cleanup as explicit revoke) -> revoked.
type Service struct {
	clients  storage.ClientStore
	tokens   storage.TokenStore
	holders  storage.AuthenticationHolderStore
	scopes   *scope.Registry
	enhancer Enhancer
	clock    oidc.Clock
	cfg      *oidc.Config
	logger   *slog.Logger
	auditor  *security.Auditor
	metrics  *instrumentation.Metrics
}

// New creates a token service
func New(
	clients storage.ClientStore,
	tokens storage.TokenStore,
	holders storage.AuthenticationHolderStore,
	scopes *scope.Registry,
	cfg *oidc.Config,
	clock oidc.Clock,
	logger *slog.Logger,
) (*Service, error) {
	if clients == nil {
		return nil, fmt.Errorf("client store is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}
	if holders == nil {
		return nil, fmt.Errorf("authentication holder store is required")
	}
	if scopes == nil {
		return nil, fmt.Errorf("scope registry is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if clock == nil {
		clock = oidc.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		clients: clients,
		tokens:  tokens,
		holders: holders,
		scopes:  scopes,
		clock:   clock,
		cfg:     cfg.ApplyDefaults(logger),
		logger:  logger,
	}, nil
}

// SetAuditor sets the security auditor
func (s *Service) SetAuditor(aud *security.Auditor) {
	s.auditor = aud
}

// SetInstrumentation sets the metrics holder
func (s *Service) SetInstrumentation(m *instrumentation.Metrics) {
	s.metrics = m
}

// SetEnhancer sets the token-enrichment hook. A nil enhancer means tokens
// keep their opaque values.
func (s *Service) SetEnhancer(e Enhancer) {
	s.enhancer = e
}

// CreateAccessToken mints an access token for the given authentication
// context. A refresh token is minted alongside it only when the client allows
// refresh and the final scope contains offline_access. The enrichment hook
// runs before anything is persisted.
func (s *Service) CreateAccessToken(ctx context.Context, auth *storage.AuthenticationContext) (*storage.AccessToken, error) {
	if auth == nil || auth.ClientID == "" {
		return nil, oidc.ErrCredentialsNotFound("no authentication context to issue a token for")
	}

	client, err := s.clients.GetClientByClientID(ctx, auth.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, oidc.ErrInvalidClient(fmt.Sprintf("unknown client %q", auth.ClientID))
		}
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}

	if err := verifyPKCE(auth.Extensions); err != nil {
		s.auditor.LogInvalidPKCE(auth.ClientID, auth.Extensions[oidc.PKCEParamCodeChallengeMethod])
		if s.metrics != nil {
			s.metrics.PKCEFailures.Add(ctx, 1)
		}
		return nil, err
	}

	tokenScope := s.scopes.RemoveReservedScopes(auth.Scope)
	now := s.clock.Now()

	holder, err := s.holders.SaveAuthenticationHolder(ctx, &storage.AuthenticationHolder{
		Authentication: *auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save authentication holder: %w", err)
	}

	token := &storage.AccessToken{
		Value:          oauth2.GenerateVerifier(),
		TokenType:      oidc.TokenTypeBearer,
		Expiration:     s.accessTokenExpiration(client, now),
		Scope:          tokenScope,
		ClientID:       client.ClientID,
		AuthHolderID:   holder.ID,
		ApprovedSiteID: auth.Extensions[oidc.ExtApprovedSite],
	}

	var refresh *storage.RefreshToken
	if client.AllowRefresh && util.Contains(tokenScope, oidc.ScopeOfflineAccess) {
		refresh = &storage.RefreshToken{
			Value:        oauth2.GenerateVerifier(),
			Expiration:   s.refreshTokenExpiration(client, now),
			ClientID:     client.ClientID,
			AuthHolderID: holder.ID,
		}
	}

	token, err = s.enhance(ctx, token, auth)
	if err != nil {
		return nil, err
	}

	if refresh != nil {
		refresh, err = s.tokens.SaveRefreshToken(ctx, refresh)
		if err != nil {
			return nil, fmt.Errorf("failed to save refresh token: %w", err)
		}
		token.RefreshTokenID = refresh.ID
	}

	token, err = s.tokens.SaveAccessToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to save access token: %w", err)
	}

	s.auditor.LogTokenIssued(auth.Principal, client.ClientID, token.Scope, refresh != nil)
	if s.metrics != nil {
		s.metrics.TokensIssued.Add(ctx, 1)
	}
	s.logger.Debug("Issued access token",
		"client_id", client.ClientID,
		"scope", token.Scope,
		"refresh", refresh != nil,
		"token_prefix", util.SafeTruncate(token.Value, tokenLogLength))

	return token, nil
}

// RefreshAccessToken executes the refresh grant. The new token's scope can
// narrow the original grant but never widen it: a requested scope must be a
// subset of the stored scope, and an empty request inherits the stored scope
// in full. The refresh token is rotated unless the client opts into reuse.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshValue string, req *TokenRequest) (*storage.AccessToken, error) {
	if refreshValue == "" {
		return nil, oidc.ErrInvalidToken("no refresh token supplied")
	}
	if req == nil {
		req = &TokenRequest{}
	}

	refresh, err := s.tokens.GetRefreshTokenByValue(ctx, refreshValue)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, oidc.ErrInvalidToken("refresh token not found")
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}

	now := s.clock.Now()
	if refresh.IsExpired(now) {
		if err := s.RevokeRefreshToken(ctx, refresh); err != nil {
			s.logger.Warn("Failed to revoke expired refresh token",
				"token_prefix", util.SafeTruncate(refresh.Value, tokenLogLength),
				"error", err)
		}
		return nil, oidc.ErrInvalidToken("refresh token expired")
	}

	// A leaked refresh token replayed by a different registered client burns
	// the token.
	if req.ClientID != refresh.ClientID {
		if err := s.RevokeRefreshToken(ctx, refresh); err != nil {
			s.logger.Warn("Failed to revoke refresh token after client mismatch",
				"token_prefix", util.SafeTruncate(refresh.Value, tokenLogLength),
				"error", err)
		}
		s.auditor.LogGrantFailure("", req.ClientID, "refresh token client mismatch")
		return nil, oidc.ErrInvalidClient("refresh token was not issued to this client")
	}

	client, err := s.clients.GetClientByClientID(ctx, refresh.ClientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, oidc.ErrInvalidClient(fmt.Sprintf("unknown client %q", refresh.ClientID))
		}
		return nil, fmt.Errorf("failed to resolve client: %w", err)
	}
	if !client.AllowRefresh {
		return nil, oidc.ErrInvalidClient("client does not allow the refresh grant")
	}

	if client.ClearAccessTokensOnRefresh {
		if err := s.revokeAccessTokensForRefreshToken(ctx, refresh.ID); err != nil {
			return nil, err
		}
	}

	if refresh.IsExpired(s.clock.Now()) {
		return nil, oidc.ErrInvalidToken("refresh token expired")
	}

	holder, err := s.holders.GetAuthenticationHolder(ctx, refresh.AuthHolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load original grant: %w", err)
	}
	auth := holder.Authentication

	stored := s.scopes.RemoveReservedScopes(auth.Scope)
	tokenScope := stored
	if len(req.Scope) > 0 {
		if !s.scopes.ScopesMatch(stored, req.Scope) {
			s.auditor.LogGrantFailure(auth.Principal, client.ClientID, "refresh requested scope beyond original grant")
			return nil, oidc.ErrInvalidScope("requested scope exceeds the original grant")
		}
		tokenScope = req.Scope
	}

	token := &storage.AccessToken{
		Value:        oauth2.GenerateVerifier(),
		TokenType:    oidc.TokenTypeBearer,
		Expiration:   s.accessTokenExpiration(client, now),
		Scope:        tokenScope,
		ClientID:     client.ClientID,
		AuthHolderID: holder.ID,
	}

	rotated := false
	if client.ReuseRefreshToken {
		token.RefreshTokenID = refresh.ID
	} else {
		next := &storage.RefreshToken{
			Value:        oauth2.GenerateVerifier(),
			Expiration:   s.refreshTokenExpiration(client, now),
			ClientID:     client.ClientID,
			AuthHolderID: holder.ID,
		}
		next, err = s.tokens.SaveRefreshToken(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("failed to save rotated refresh token: %w", err)
		}
		if err := s.tokens.DeleteRefreshToken(ctx, refresh.ID); err != nil {
			return nil, fmt.Errorf("failed to delete rotated-out refresh token: %w", err)
		}
		token.RefreshTokenID = next.ID
		rotated = true
		if s.metrics != nil {
			s.metrics.RefreshRotations.Add(ctx, 1)
		}
	}

	token, err = s.enhance(ctx, token, &auth)
	if err != nil {
		return nil, err
	}

	token, err = s.tokens.SaveAccessToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to save refreshed access token: %w", err)
	}

	s.auditor.LogTokenRefreshed(auth.Principal, client.ClientID, rotated)
	if s.metrics != nil {
		s.metrics.TokensRefreshed.Add(ctx, 1)
	}
	s.logger.Debug("Refreshed access token",
		"client_id", client.ClientID,
		"scope", token.Scope,
		"rotated", rotated)

	return token, nil
}

// ReadAccessToken looks up an access token by value. An expired token is
// revoked as a side effect of the read and reported as invalid_token, so a
// subsequent lookup observes it as absent.
func (s *Service) ReadAccessToken(ctx context.Context, value string) (*storage.AccessToken, error) {
	token, err := s.tokens.GetAccessTokenByValue(ctx, value)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, oidc.ErrInvalidToken("access token not found")
		}
		return nil, fmt.Errorf("failed to look up access token: %w", err)
	}

	if token.IsExpired(s.clock.Now()) {
		if err := s.RevokeAccessToken(ctx, token); err != nil {
			s.logger.Warn("Failed to revoke expired access token",
				"token_prefix", util.SafeTruncate(token.Value, tokenLogLength),
				"error", err)
		}
		s.auditor.LogTokenRevoked(token.ClientID, "access_token", "expired")
		return nil, oidc.ErrInvalidToken("access token expired")
	}

	return token, nil
}

// RevokeAccessToken deletes an access token
func (s *Service) RevokeAccessToken(ctx context.Context, token *storage.AccessToken) error {
	if token == nil {
		return nil
	}
	if err := s.tokens.DeleteAccessToken(ctx, token.ID); err != nil {
		return fmt.Errorf("failed to delete access token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TokensRevoked.Add(ctx, 1)
	}
	return nil
}

// RevokeRefreshToken deletes a refresh token and every access token chained
// to it.
func (s *Service) RevokeRefreshToken(ctx context.Context, refresh *storage.RefreshToken) error {
	if refresh == nil {
		return nil
	}
	if err := s.revokeAccessTokensForRefreshToken(ctx, refresh.ID); err != nil {
		return err
	}
	if err := s.tokens.DeleteRefreshToken(ctx, refresh.ID); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TokensRevoked.Add(ctx, 1)
	}
	return nil
}

func (s *Service) revokeAccessTokensForRefreshToken(ctx context.Context, refreshTokenID int64) error {
	chained, err := s.tokens.GetAccessTokensForRefreshToken(ctx, refreshTokenID)
	if err != nil {
		return fmt.Errorf("failed to list access tokens for refresh token: %w", err)
	}
	for _, t := range chained {
		if err := s.RevokeAccessToken(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

// ClearExpiredTokens sweeps expired access tokens, expired refresh tokens,
// and orphaned authentication holders, in that order so that cascades from
// refresh-token revocation are reflected before the orphan scan. Each phase
// is a drain loop that re-queries until the store reports nothing left;
// individual failures are logged and skipped.
func (s *Service) ClearExpiredTokens(ctx context.Context) error {
	deleted := 0

	for {
		expired, err := s.tokens.GetExpiredAccessTokens(ctx, s.cfg.SweepPageSize)
		if err != nil {
			return fmt.Errorf("failed to query expired access tokens: %w", err)
		}
		if len(expired) == 0 {
			break
		}
		progressed := false
		for _, t := range expired {
			if err := s.RevokeAccessToken(ctx, t); err != nil {
				s.logger.Warn("Failed to sweep expired access token",
					"token_prefix", util.SafeTruncate(t.Value, tokenLogLength),
					"error", err)
				continue
			}
			progressed = true
			deleted++
		}
		if !progressed {
			break
		}
	}

	for {
		expired, err := s.tokens.GetExpiredRefreshTokens(ctx, s.cfg.SweepPageSize)
		if err != nil {
			return fmt.Errorf("failed to query expired refresh tokens: %w", err)
		}
		if len(expired) == 0 {
			break
		}
		progressed := false
		for _, t := range expired {
			if err := s.RevokeRefreshToken(ctx, t); err != nil {
				s.logger.Warn("Failed to sweep expired refresh token",
					"token_prefix", util.SafeTruncate(t.Value, tokenLogLength),
					"error", err)
				continue
			}
			progressed = true
			deleted++
		}
		if !progressed {
			break
		}
	}

	for {
		orphaned, err := s.holders.GetOrphanedAuthenticationHolders(ctx, s.cfg.SweepPageSize)
		if err != nil {
			return fmt.Errorf("failed to query orphaned authentication holders: %w", err)
		}
		if len(orphaned) == 0 {
			break
		}
		progressed := false
		for _, h := range orphaned {
			if err := s.holders.DeleteAuthenticationHolder(ctx, h.ID); err != nil {
				s.logger.Warn("Failed to delete orphaned authentication holder",
					"holder_id", h.ID,
					"error", err)
				continue
			}
			progressed = true
			deleted++
		}
		if !progressed {
			break
		}
	}

	if s.metrics != nil && deleted > 0 {
		s.metrics.SweepDeletions.Add(ctx, int64(deleted))
	}
	if deleted > 0 {
		s.auditor.LogEvent(security.Event{
			Type:    security.EventExpiredSweep,
			Details: map[string]any{"deleted": deleted},
		})
		s.logger.Info("Swept expired token state", "deleted", deleted)
	}
	return nil
}

// GetRegistrationAccessTokenForClient finds the client's self-management
// token: the access token whose scope is exactly the single registration or
// resource token scope.
func (s *Service) GetRegistrationAccessTokenForClient(ctx context.Context, client *storage.Client) (*storage.AccessToken, error) {
	if client == nil {
		return nil, oidc.ErrInvalidClient("no client supplied")
	}
	all, err := s.tokens.GetAccessTokensForClient(ctx, client.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list client tokens: %w", err)
	}
	for _, t := range all {
		if len(t.Scope) != 1 {
			continue
		}
		if t.Scope[0] == oidc.ScopeRegistrationToken || t.Scope[0] == oidc.ScopeResourceToken {
			return t, nil
		}
	}
	return nil, storage.ErrNotFound
}

// RefreshTokenFor returns the refresh token linked to an access token, so
// callers can include its value in the token response. Returns
// storage.ErrNotFound when the token has no linked refresh token.
func (s *Service) RefreshTokenFor(ctx context.Context, token *storage.AccessToken) (*storage.RefreshToken, error) {
	if token == nil || token.RefreshTokenID == 0 {
		return nil, storage.ErrNotFound
	}
	refresh, err := s.tokens.GetRefreshTokenByID(ctx, token.RefreshTokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load linked refresh token: %w", err)
	}
	return refresh, nil
}

// GetAccessTokensForPrincipal returns every live access token whose owning
// authentication names the given principal.
func (s *Service) GetAccessTokensForPrincipal(ctx context.Context, principal string) ([]*storage.AccessToken, error) {
	tokens, err := s.tokens.GetAccessTokensForPrincipal(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens for principal: %w", err)
	}
	return tokens, nil
}

func (s *Service) enhance(ctx context.Context, token *storage.AccessToken, auth *storage.AuthenticationContext) (*storage.AccessToken, error) {
	if s.enhancer == nil {
		return token, nil
	}
	enhanced, err := s.enhancer.Enhance(ctx, token, auth)
	if err != nil {
		return nil, fmt.Errorf("token enhancement failed: %w", err)
	}
	return enhanced, nil
}

// accessTokenExpiration computes the access token expiration: the client's
// per-client validity wins when set (0 meaning never), otherwise the server
// default applies (0 meaning never).
func (s *Service) accessTokenExpiration(client *storage.Client, now time.Time) *time.Time {
	return expirationFrom(client.AccessTokenValiditySeconds, s.cfg.AccessTokenTTL, now)
}

func (s *Service) refreshTokenExpiration(client *storage.Client, now time.Time) *time.Time {
	return expirationFrom(client.RefreshTokenValiditySeconds, s.cfg.RefreshTokenTTL, now)
}

func expirationFrom(seconds *int64, fallback time.Duration, now time.Time) *time.Time {
	if seconds != nil {
		if *seconds <= 0 {
			return nil
		}
		t := now.Add(time.Duration(*seconds) * time.Second)
		return &t
	}
	if fallback > 0 {
		t := now.Add(fallback)
		return &t
	}
	return nil
}
