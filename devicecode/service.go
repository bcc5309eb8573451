// Package devicecode implements the device authorization grant (RFC 8628):
// issuance of device/user code pairs, user approval, and client-scoped
// lookup and cleanup.
package devicecode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	oidc "github.com/lumonhealth/oidc-core"
	"github.com/lumonhealth/oidc-core/instrumentation"
	"github.com/lumonhealth/oidc-core/security"
	"github.com/lumonhealth/oidc-core/storage"
)

// userCodeCharset avoids visually confusable characters: 0, O, 1, I, L
const userCodeCharset = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// userCodeLength is the length of generated user codes
const userCodeLength = 8

// Service manages device/user code pairs for the device authorization grant.
type Service struct {
	codes   storage.DeviceCodeStore
	holders storage.AuthenticationHolderStore
	clock   oidc.Clock
	cfg     *oidc.Config
	logger  *slog.Logger
	auditor *security.Auditor
	metrics *instrumentation.Metrics
}

// New creates a device code service
func New(
	codes storage.DeviceCodeStore,
	holders storage.AuthenticationHolderStore,
	cfg *oidc.Config,
	clock oidc.Clock,
	logger *slog.Logger,
) (*Service, error) {
	if codes == nil {
		return nil, fmt.Errorf("device code store is required")
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

// CreateNewDeviceCode issues a device/user code pair for the given client.
// The device code is a random UUID; the user code is a short random
// alphanumeric string, stored upper-cased. Expiration follows the client's
// device code validity if set, then the server default; when neither is
// configured the code never expires.
func (s *Service) CreateNewDeviceCode(ctx context.Context, scopes []string, client *storage.Client, params map[string]string) (*storage.DeviceCode, error) {
	if client == nil {
		return nil, oidc.ErrInvalidClient("no client for device code")
	}

	userCode, err := generateUserCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate user code: %w", err)
	}

	dc := &storage.DeviceCode{
		DeviceCode: uuid.New().String(),
		UserCode:   userCode,
		Scope:      scopes,
		ClientID:   client.ClientID,
		Approved:   false,
		Params:     params,
	}

	var validity *int64
	if client.DeviceCodeValiditySeconds != nil {
		validity = client.DeviceCodeValiditySeconds
	} else if s.cfg.DeviceCodeTTL > 0 {
		secs := int64(s.cfg.DeviceCodeTTL / time.Second)
		validity = &secs
	}
	if validity != nil {
		exp := s.clock.Now().Add(time.Duration(*validity) * time.Second)
		dc.Expiration = &exp
	}

	saved, err := s.codes.SaveDeviceCode(ctx, dc)
	if err != nil {
		return nil, fmt.Errorf("failed to save device code: %w", err)
	}

	s.auditor.LogEvent(security.Event{
		Type:     security.EventDeviceCodeIssued,
		ClientID: client.ClientID,
		Details:  map[string]any{"scope": scopes},
	})
	if s.metrics != nil {
		s.metrics.DeviceCodesIssued.Add(ctx, 1)
	}
	s.logger.Debug("Issued device code", "client_id", client.ClientID)

	return saved, nil
}

// LookUpByUserCode retrieves a device code by user code. Lookup is
// case-insensitive by contract: input is upper-cased before the query.
func (s *Service) LookUpByUserCode(ctx context.Context, userCode string) (*storage.DeviceCode, error) {
	dc, err := s.codes.GetByUserCode(ctx, strings.ToUpper(userCode))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up user code: %w", err)
	}
	return dc, nil
}

// ApproveDeviceCode marks the device code approved and attaches a holder
// snapshot of the approving user's authentication. The record is re-fetched
// by ID so approval never acts on a stale in-memory copy.
func (s *Service) ApproveDeviceCode(ctx context.Context, dc *storage.DeviceCode, auth *storage.AuthenticationContext) (*storage.DeviceCode, error) {
	if dc == nil {
		return nil, oidc.ErrInvalidGrant("no device code to approve")
	}
	if auth == nil {
		return nil, oidc.ErrCredentialsNotFound("no authentication to approve with")
	}

	found, err := s.codes.GetDeviceCodeByID(ctx, dc.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to re-fetch device code: %w", err)
	}

	holder, err := s.holders.SaveAuthenticationHolder(ctx, &storage.AuthenticationHolder{
		Authentication: *auth,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save authentication holder: %w", err)
	}

	found.Approved = true
	found.AuthHolderID = holder.ID

	updated, err := s.codes.UpdateDeviceCode(ctx, found)
	if err != nil {
		return nil, fmt.Errorf("failed to persist device code approval: %w", err)
	}

	s.auditor.LogDeviceCodeApproved(auth.Principal, found.ClientID)
	if s.metrics != nil {
		s.metrics.DeviceCodesApproved.Add(ctx, 1)
	}

	return updated, nil
}

// FindDeviceCode returns the record for the given device code only if it
// exists and belongs to the calling client. A code owned by a different
// client is reported as not found, so a stolen code cannot be redeemed
// cross-client.
func (s *Service) FindDeviceCode(ctx context.Context, deviceCode string, client *storage.Client) (*storage.DeviceCode, error) {
	if client == nil {
		return nil, storage.ErrNotFound
	}
	dc, err := s.codes.GetByDeviceCode(ctx, deviceCode)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up device code: %w", err)
	}
	if dc.ClientID != client.ClientID {
		return nil, storage.ErrNotFound
	}
	return dc, nil
}

// ClearDeviceCode deletes the device code after a successful token grant.
// Ownership is re-checked through FindDeviceCode.
func (s *Service) ClearDeviceCode(ctx context.Context, deviceCode string, client *storage.Client) error {
	dc, err := s.FindDeviceCode(ctx, deviceCode, client)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return err
	}
	if err := s.codes.DeleteDeviceCode(ctx, dc.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to delete device code: %w", err)
	}
	return nil
}

// ClearExpiredDeviceCodes removes expired device codes in a drain loop:
// the expired set is re-fetched until it comes back empty, since new
// stragglers can appear as deletes commit.
func (s *Service) ClearExpiredDeviceCodes(ctx context.Context) error {
	total := 0
	for {
		expired, err := s.codes.GetExpiredDeviceCodes(ctx, s.cfg.SweepPageSize)
		if err != nil {
			return fmt.Errorf("failed to query expired device codes: %w", err)
		}
		if len(expired) == 0 {
			break
		}
		progressed := false
		for _, dc := range expired {
			if err := s.codes.DeleteDeviceCode(ctx, dc.ID); err != nil {
				s.logger.Warn("Failed to delete expired device code",
					"client_id", dc.ClientID,
					"error", err)
				continue
			}
			progressed = true
			total++
		}
		if !progressed {
			break
		}
	}

	if total > 0 {
		if s.metrics != nil {
			s.metrics.SweepDeletions.Add(ctx, int64(total))
		}
		s.logger.Info("Swept expired device codes", "deleted", total)
	}
	return nil
}

// generateUserCode creates a short random code from the unambiguous charset
func generateUserCode() (string, error) {
	code := make([]byte, userCodeLength)
	max := big.NewInt(int64(len(userCodeCharset)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = userCodeCharset[n.Int64()]
	}
	return string(code), nil
}
