package instrumentation

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all metric instruments for the token engine
type Metrics struct {
	// Token engine metrics
	TokensIssued     metric.Int64Counter
	TokensRefreshed  metric.Int64Counter
	TokensRevoked    metric.Int64Counter
	RefreshRotations metric.Int64Counter
	PKCEFailures     metric.Int64Counter

	// Authorization artifact metrics
	CodesIssued         metric.Int64Counter
	CodesConsumed       metric.Int64Counter
	DeviceCodesIssued   metric.Int64Counter
	DeviceCodesApproved metric.Int64Counter

	// Maintenance metrics
	SweepDeletions metric.Int64Counter

	// Client policy metrics
	RegistrationsRejected metric.Int64Counter
	SectorFetches         metric.Int64Counter
	SectorFetchErrors     metric.Int64Counter

	// Storage gauges (registered via RegisterStorageSizeCallbacks)
	StorageAccessTokensCount  metric.Int64ObservableGauge
	StorageRefreshTokensCount metric.Int64ObservableGauge
	StorageClientsCount       metric.Int64ObservableGauge
	StorageCodesCount         metric.Int64ObservableGauge
	StorageDeviceCodesCount   metric.Int64ObservableGauge
}

// newMetrics creates and registers all metric instruments
func newMetrics(inst *Instrumentation) (*Metrics, error) {
	m := &Metrics{}
	tokenMeter := inst.Meter("token")
	policyMeter := inst.Meter("clientpolicy")
	storageMeter := inst.Meter("storage")

	var err error

	m.TokensIssued, err = tokenMeter.Int64Counter(
		"oidc.token.issued",
		metric.WithDescription("Number of access tokens issued"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.issued counter: %w", err)
	}

	m.TokensRefreshed, err = tokenMeter.Int64Counter(
		"oidc.token.refreshed",
		metric.WithDescription("Number of access tokens refreshed"),
		metric.WithUnit("{refresh}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refreshed counter: %w", err)
	}

	m.TokensRevoked, err = tokenMeter.Int64Counter(
		"oidc.token.revoked",
		metric.WithDescription("Number of tokens revoked (explicit or lazy expiry)"),
		metric.WithUnit("{revocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.revoked counter: %w", err)
	}

	m.RefreshRotations, err = tokenMeter.Int64Counter(
		"oidc.token.refresh_rotations",
		metric.WithDescription("Number of refresh token rotations"),
		metric.WithUnit("{rotation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.refresh_rotations counter: %w", err)
	}

	m.PKCEFailures, err = tokenMeter.Int64Counter(
		"oidc.token.pkce_failures",
		metric.WithDescription("Number of failed PKCE verifications"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create token.pkce_failures counter: %w", err)
	}

	m.CodesIssued, err = tokenMeter.Int64Counter(
		"oidc.code.issued",
		metric.WithDescription("Number of authorization codes issued"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.issued counter: %w", err)
	}

	m.CodesConsumed, err = tokenMeter.Int64Counter(
		"oidc.code.consumed",
		metric.WithDescription("Number of authorization codes consumed"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create code.consumed counter: %w", err)
	}

	m.DeviceCodesIssued, err = tokenMeter.Int64Counter(
		"oidc.device_code.issued",
		metric.WithDescription("Number of device/user code pairs issued"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create device_code.issued counter: %w", err)
	}

	m.DeviceCodesApproved, err = tokenMeter.Int64Counter(
		"oidc.device_code.approved",
		metric.WithDescription("Number of device codes approved by users"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create device_code.approved counter: %w", err)
	}

	m.SweepDeletions, err = tokenMeter.Int64Counter(
		"oidc.sweep.deletions",
		metric.WithDescription("Number of records removed by expiry sweeps"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sweep.deletions counter: %w", err)
	}

	m.RegistrationsRejected, err = policyMeter.Int64Counter(
		"oidc.client.registrations_rejected",
		metric.WithDescription("Number of client registrations rejected by policy"),
		metric.WithUnit("{registration}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client.registrations_rejected counter: %w", err)
	}

	m.SectorFetches, err = policyMeter.Int64Counter(
		"oidc.sector.fetches",
		metric.WithDescription("Number of sector identifier documents fetched"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sector.fetches counter: %w", err)
	}

	m.SectorFetchErrors, err = policyMeter.Int64Counter(
		"oidc.sector.fetch_errors",
		metric.WithDescription("Number of failed sector identifier fetches"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create sector.fetch_errors counter: %w", err)
	}

	m.StorageAccessTokensCount, err = storageMeter.Int64ObservableGauge(
		"oidc.storage.access_tokens",
		metric.WithDescription("Current number of stored access tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.access_tokens gauge: %w", err)
	}

	m.StorageRefreshTokensCount, err = storageMeter.Int64ObservableGauge(
		"oidc.storage.refresh_tokens",
		metric.WithDescription("Current number of stored refresh tokens"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.refresh_tokens gauge: %w", err)
	}

	m.StorageClientsCount, err = storageMeter.Int64ObservableGauge(
		"oidc.storage.clients",
		metric.WithDescription("Current number of registered clients"),
		metric.WithUnit("{client}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.clients gauge: %w", err)
	}

	m.StorageCodesCount, err = storageMeter.Int64ObservableGauge(
		"oidc.storage.authorization_codes",
		metric.WithDescription("Current number of live authorization codes"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.authorization_codes gauge: %w", err)
	}

	m.StorageDeviceCodesCount, err = storageMeter.Int64ObservableGauge(
		"oidc.storage.device_codes",
		metric.WithDescription("Current number of live device codes"),
		metric.WithUnit("{code}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage.device_codes gauge: %w", err)
	}

	return m, nil
}
