// Package authcode implements issuance and one-time consumption of
// short-lived authorization codes.
package authcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/instrumentation"
	"github.com/lumonhealth/oidc-core/internal/util"
	"github.com/lumonhealth/oidc-core/security"
	"github.com/lumonhealth/oidc-core/storage"
)

// codeLogLength is the number of characters to include when logging codes
const codeLogLength = 8

// Service issues and consumes authorization codes. Codes are strictly
// single-use: consumption atomically deletes the record.
type Service struct {
	codes   storage.AuthorizationCodeStore
	holders storage.AuthenticationHolderStore
	clock   oidc.Clock
	cfg     *oidc.Config
	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
}

// New creates an authorization code service
func New(
	codes storage.AuthorizationCodeStore,
	holders storage.AuthenticationHolderStore,
	cfg *oidc.Config,
	clock oidc.Clock,
	logger *slog.Logger,
) (*Service, error) {
	if codes == nil {
		return nil, fmt.Errorf("authorization code store is required")
	}
	if holders == nil {
		return nil, fmt.Errorf("authentication holder store is required")
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
		codes:   codes,
		holders: holders,
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

// Issue generates a random opaque code for the given authentication context,
// persists a holder snapshot, and stores the pair with the configured TTL.
// Returns the code string.
func (s *Service) Issue(ctx context.Context, auth *storage.AuthenticationContext) (string, error) {
	if auth == nil {
		return "", oidc.ErrCredentialsNotFound("no authentication to issue a code for")
	}

	holder, err := s.holders.SaveAuthenticationHolder(ctx, &storage.AuthenticationHolder{
		Authentication: *auth,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save authentication holder: %w", err)
	}

	code := oauth2.GenerateVerifier()
	record := &storage.AuthorizationCode{
		Code:         code,
		AuthHolderID: holder.ID,
		Expiration:   s.clock.Now().Add(s.cfg.AuthorizationCodeTTL),
	}
	if _, err := s.codes.SaveAuthorizationCode(ctx, record); err != nil {
		return "", fmt.Errorf("failed to save authorization code: %w", err)
	}

	s.auditor.LogEvent(security.Event{
		Type:      security.EventAuthorizationCodeIssued,
		Principal: auth.Principal,
		ClientID:  auth.ClientID,
	})
	if s.metrics != nil {
		s.metrics.CodesIssued.Add(ctx, 1)
	}
	s.logger.Debug("Issued authorization code",
		"client_id", auth.ClientID,
		"code_prefix", util.SafeTruncate(code, codeLogLength))

	return code, nil
}

// Consume atomically fetches and deletes the record for the given code and
// returns the authentication context captured at issuance. A second
// consumption of the same code fails with invalid_grant.
//
// Expiration is not checked here: an expired code that the sweep has not yet
// removed is still honored if found. SweepExpired is the only expiry
// enforcement for authorization codes.
func (s *Service) Consume(ctx context.Context, code string) (*storage.AuthenticationContext, error) {
	record, err := s.codes.ConsumeAuthorizationCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, oidc.ErrInvalidGrant("authorization code not found or already used")
		}
		return nil, fmt.Errorf("failed to consume authorization code: %w", err)
	}

	holder, err := s.holders.GetAuthenticationHolder(ctx, record.AuthHolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load authentication for code: %w", err)
	}

	if s.metrics != nil {
		s.metrics.CodesConsumed.Add(ctx, 1)
	}

	auth := holder.Authentication
	return &auth, nil
}

// SweepExpired scans for codes whose expiration has passed and deletes each.
// It is a paginated drain loop: each iteration re-queries the expired set, so
// the sweep is idempotent and safe to re-invoke if interrupted. A single
// item's deletion failure does not abort the loop.
func (s *Service) SweepExpired(ctx context.Context) error {
	total := 0
	for {
		expired, err := s.codes.GetExpiredAuthorizationCodes(ctx, s.cfg.SweepPageSize)
		if err != nil {
			return fmt.Errorf("failed to query expired authorization codes: %w", err)
		}
		if len(expired) == 0 {
			break
		}
		progressed := false
		for _, c := range expired {
			if err := s.codes.DeleteAuthorizationCode(ctx, c.ID); err != nil {
				s.logger.Warn("Failed to delete expired authorization code",
					"code_prefix", util.SafeTruncate(c.Code, codeLogLength),
					"error", err)
				continue
			}
			progressed = true
			total++
		}
		if !progressed {
			// Every deletion in the page failed; bail out rather than spin
			break
		}
	}

	if total > 0 {
		if s.metrics != nil {
			s.metrics.SweepDeletions.Add(ctx, int64(total))
		}
		s.logger.Info("Swept expired authorization codes", "deleted", total)
	}
	return nil
}
